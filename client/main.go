// Command client is a headless test client for the relay. With no
// arguments it creates a room and prints the code; with a room code it
// joins as a player and streams synthetic position updates.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"net/url"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"
)

var (
	addr = flag.String("addr", "localhost:8000", "server host:port")
	join = flag.String("join", "", "room code to join as a player (empty: create a room)")
	name = flag.String("name", "TestDriver", "player name when joining")
)

type message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func send(c *websocket.Conn, event string, payload interface{}) error {
	msg := message{Event: event}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		msg.Data = data
	}
	return c.WriteJSON(&msg)
}

func main() {
	flag.Parse()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	u := url.URL{Scheme: "ws", Host: *addr, Path: "/ws"}
	log.Printf("Connecting to %s", u.String())

	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

	done := make(chan struct{})

	// Read loop
	go func() {
		defer close(done)
		for {
			var msg message
			if err := c.ReadJSON(&msg); err != nil {
				log.Println("Read error:", err)
				return
			}
			log.Printf("<- RECV %s: %s", msg.Event, string(msg.Data))
		}
	}()

	if *join == "" {
		log.Println("Sending create_room request...")
		if err := send(c, "create_room", nil); err != nil {
			log.Fatalf("Write error: %v", err)
		}
	} else {
		log.Printf("Joining room %s as %s...", *join, *name)
		if err := send(c, "join_game", map[string]string{
			"room_code":   *join,
			"player_name": *name,
		}); err != nil {
			log.Fatalf("Write error: %v", err)
		}
	}

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	tick := 0
	for {
		select {
		case <-done:
			return
		case <-interrupt:
			log.Println("Interrupt received, closing connection.")
			c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return
		case <-ticker.C:
			if *join == "" {
				continue
			}
			tick++
			update := map[string]interface{}{
				"room_code": *join,
				"position":  [3]float64{float64(tick) * 0.5, 0, 2},
				"rotation":  [3]float64{0, 0, 0},
				"velocity":  [3]float64{5, 0, 0},
			}
			if err := send(c, "player_update", update); err != nil {
				log.Println("Write error:", err)
				return
			}
		}
	}
}
