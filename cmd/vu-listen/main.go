package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

// levelMessage mirrors the squeezevu monitor envelope.
type levelMessage struct {
	Type string    `json:"type"`
	Ts   time.Time `json:"ts"`
	Data struct {
		Percent    int   `json:"percent"`
		Output     int   `json:"output"`
		Level      int   `json:"level"`
		Loudness   int64 `json:"loudness"`
		Suppressed bool  `json:"suppressed"`
		Playing    bool  `json:"playing"`
	} `json:"data"`
}

func main() {
	var (
		wsURL   = flag.String("ws", "ws://127.0.0.1:8089/ws", "squeezevu monitor websocket URL")
		changes = flag.Bool("changes", false, "Only print when the output value changes")
		raw     = flag.Bool("raw", false, "Print raw JSON frames")
	)
	flag.Parse()

	u, err := url.Parse(*wsURL)
	if err != nil {
		log.Fatalf("invalid websocket URL: %v", err)
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	d := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	log.Printf("connecting to %s...", u.String())
	conn, _, err := d.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer conn.Close()

	log.Printf("connected! (press Ctrl+C to exit)")

	done := make(chan struct{})
	go func() {
		defer close(done)
		last := -1
		for {
			messageType, message, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Printf("websocket error: %v", err)
				}
				return
			}
			if messageType != websocket.TextMessage {
				continue
			}
			if *raw {
				fmt.Printf("%s\n", message)
				continue
			}

			var msg levelMessage
			if err := json.Unmarshal(message, &msg); err != nil {
				fmt.Printf("[TEXT] %s\n", message)
				continue
			}
			if *changes && msg.Data.Output == last {
				continue
			}
			last = msg.Data.Output
			fmt.Println(formatLevel(msg))
		}
	}()

	select {
	case <-sigc:
		log.Printf("shutting down...")
		err := conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		if err != nil {
			log.Printf("error closing connection: %v", err)
		}
	case <-done:
		log.Printf("connection closed")
	}
}

// formatLevel renders one message as a short status line with a 50-wide bar.
func formatLevel(m levelMessage) string {
	var flags []string
	if m.Type == "level_init" {
		flags = append(flags, "init")
	}
	if m.Data.Suppressed {
		flags = append(flags, "held")
	}
	if !m.Data.Playing {
		flags = append(flags, "stopped")
	}

	bar := strings.Repeat("#", m.Data.Output/2)
	line := fmt.Sprintf("%s [%-50s] %3d%% pwm=%d", m.Ts.Local().Format("15:04:05.000"), bar, m.Data.Output, m.Data.Level)
	if len(flags) > 0 {
		line += " (" + strings.Join(flags, ",") + ")"
	}
	return line
}
