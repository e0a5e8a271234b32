package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"

	"github.com/gorilla/websocket"

	"github.com/aithernet/airelay/internal/domain"
)

var (
	addr   = flag.String("addr", "localhost:7070", "relay address")
	room   = flag.String("room", "general", "room to join")
	userID = flag.Int64("user", 0, "user id")
)

func main() {
	flag.Parse()

	conn := connectWebSocket()
	defer conn.Close()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	done := make(chan struct{})
	go readFrames(conn, done)

	join := domain.ClientFrame{Type: domain.FrameTypeJoin, RoomName: *room, UserID: *userID}
	if err := conn.WriteJSON(join); err != nil {
		log.Fatalf("Failed to join room: %v", err)
	}

	fmt.Println("Write Messages (Press Enter to Send):")
	writeFrames(conn, interrupt, done)
}

func connectWebSocket() *websocket.Conn {
	u := url.URL{Scheme: "ws", Host: *addr, Path: "/ws"}
	log.Printf("Connecting to %s", u.String())

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("Failed to connect to relay: %v", err)
	}
	log.Println("Connected to relay.")
	return conn
}

func readFrames(conn *websocket.Conn, done chan struct{}) {
	defer close(done)
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			log.Printf("Error reading frame: %v", err)
			return
		}

		var head struct {
			Type domain.FrameType `json:"type"`
		}
		if err := json.Unmarshal(message, &head); err != nil {
			log.Printf("Error parsing frame: %v", err)
			continue
		}

		switch head.Type {
		case domain.FrameTypeJoined:
			var frame domain.JoinedFrame
			if json.Unmarshal(message, &frame) == nil {
				fmt.Printf("\n* joined %s (%d members)\n", frame.RoomName, frame.MemberCount)
			}
		case domain.FrameTypeUserJoined:
			var frame domain.UserJoinedFrame
			if json.Unmarshal(message, &frame) == nil {
				fmt.Printf("\n* %s joined (%d members)\n", frame.Username, frame.MemberCount)
			}
		case domain.FrameTypeTyping:
			var frame domain.TypingFrame
			if json.Unmarshal(message, &frame) == nil && frame.IsTyping {
				fmt.Printf("\n* %s is typing...\n", frame.Username)
			}
		case domain.FrameTypeChat:
			var frame domain.ChatFrame
			if json.Unmarshal(message, &frame) == nil {
				fmt.Printf("\n%s: %s\n", frame.UserMessage.Username, frame.UserMessage.Content)
				fmt.Printf("%s: %s\n", frame.AIMessage.AIName, frame.AIMessage.Content)
			}
		case domain.FrameTypeError:
			var frame domain.ErrorFrame
			if json.Unmarshal(message, &frame) == nil {
				fmt.Printf("\n! %s\n", frame.Message)
			}
		}
	}
}

func writeFrames(conn *websocket.Conn, interrupt chan os.Signal, done chan struct{}) {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		select {
		case <-done:
			return
		case <-interrupt:
			log.Println("Interrupt received, closing connection...")
			err := conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			if err != nil {
				log.Printf("Error during close: %v", err)
			}
			return
		default:
			if scanner.Scan() {
				content := scanner.Text()
				if content == "" {
					continue
				}

				frame := domain.ClientFrame{
					Type:     domain.FrameTypeChat,
					RoomName: *room,
					UserID:   *userID,
					Content:  content,
				}
				if err := conn.WriteJSON(frame); err != nil {
					log.Printf("Error sending frame: %v", err)
					return
				}
			}
		}
	}
}
