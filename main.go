package main

import (
	"github.com/joho/godotenv"
	"github.com/openracer/raceserver/config"
	"github.com/openracer/raceserver/logger"
	"github.com/openracer/raceserver/server"
)

func main() {
	// Initialize logger
	logger.Init()

	// Local development overrides, ignored if absent
	godotenv.Load()

	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize Game Server
	gameServer := server.NewGameServer(cfg)

	// Start Server
	logger.Log.Infof("Starting race relay server on %s", cfg.Server.HTTPAddress)
	if err := gameServer.Start(); err != nil {
		logger.Log.Fatalf("Failed to start server: %v", err)
	}
}
