package main

import (
	"bufio"
	"encoding/json"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strings"

	"github.com/gorilla/websocket"
)

const (
	stepListRooms = 1
	stepJoinRoom  = 2
	stepTransform = 3
	stepExit      = 4
)

type request struct {
	Step      int       `json:"step"`
	GameType  string    `json:"game_type,omitempty"`
	Transform []float64 `json:"transform,omitempty"`
}

func send(c *websocket.Conn, req request) error {
	data, err := json.Marshal(req)
	if err != nil {
		return err
	}
	return c.WriteMessage(websocket.TextMessage, data)
}

func main() {
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	u := url.URL{Scheme: "ws", Host: "localhost:12345", Path: "/ws"}
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
			_, message, err := c.ReadMessage()
			if err != nil {
				log.Println("Read error:", err)
				return
			}
			log.Printf("<- RECV: %s", string(message))
		}
	}()

	log.Println("Requesting room list...")
	if err := send(c, request{Step: stepListRooms}); err != nil {
		log.Println("Write error:", err)
		return
	}

	log.Println("Commands: join <room>, move, exit")

	reader := bufio.NewReader(os.Stdin)
	for {
		select {
		case <-done:
			return
		case <-interrupt:
			send(c, request{Step: stepExit})
			return
		default:
		}

		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "join":
			if len(fields) < 2 {
				log.Println("Usage: join <room>")
				continue
			}
			err = send(c, request{Step: stepJoinRoom, GameType: fields[1]})
		case "move":
			// A throwaway transform: identity-ish 12 floats.
			transform := []float64{1, 0, 0, 0, 1, 0, 0, 0, 1, 0, 0, 0}
			err = send(c, request{Step: stepTransform, Transform: transform})
		case "exit":
			send(c, request{Step: stepExit})
			return
		default:
			log.Printf("Unknown command %q", fields[0])
			continue
		}
		if err != nil {
			log.Println("Write error:", err)
			return
		}
	}
}
