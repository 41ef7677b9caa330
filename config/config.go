package config

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Relay  RelayConfig  `mapstructure:"relay"`
}

type ServerConfig struct {
	HTTPAddress    string `mapstructure:"http_address"`
	RPCAddress     string `mapstructure:"rpc_address"`
	MetricsAddress string `mapstructure:"metrics_address"`
}

type RelayConfig struct {
	// LateJoin admits players into rooms that are already racing. When
	// false, joins after start_game are rejected with GameInProgress.
	LateJoin bool `mapstructure:"late_join"`
}

// LoadConfig reads config.yaml from path if present, then lets environment
// variables override. PORT selects the HTTP listen port (default 8000).
func LoadConfig(path string) (config *Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetDefault("server.rpc_address", ":8001")
	viper.SetDefault("server.metrics_address", ":9100")
	viper.SetDefault("relay.late_join", true)

	viper.AutomaticEnv()

	err = viper.ReadInConfig()
	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	if err = viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	if config.Server.HTTPAddress == "" {
		port := viper.GetInt("PORT")
		if port == 0 {
			port = 8000
		}
		config.Server.HTTPAddress = fmt.Sprintf(":%d", port)
	}

	return config, nil
}
