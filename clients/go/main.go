// chat CLI - Command line client for ephemeral chat rooms
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/subhodeep2005s/realtime-chat/clients/go/chat"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	baseURL := os.Getenv("CHAT_URL")
	client := chat.NewClient(baseURL)
	cmd := os.Args[1]

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	switch cmd {
	case "health":
		resp, err := client.Health(ctx)
		exitOnError(err)
		printJSON(resp)

	case "create":
		roomID, err := client.CreateRoom(ctx)
		exitOnError(err)
		_, err = client.Join(ctx, roomID)
		exitOnError(err)
		exitOnError(client.SaveTokens())
		fmt.Println(roomID)

	case "join":
		roomID := arg(2, "Usage: chat join <room_id>")
		_, err := client.Join(ctx, roomID)
		exitOnError(err)
		exitOnError(client.SaveTokens())
		fmt.Printf("Joined %s\n", roomID)

	case "read":
		roomID := arg(2, "Usage: chat read <room_id>")
		msgs, err := client.GetMessages(ctx, roomID)
		exitOnError(err)
		for _, msg := range msgs {
			printMessage(msg)
		}

	case "post":
		roomID := arg(2, "Usage: chat post <room_id> <sender> <message>")
		sender := arg(3, "Usage: chat post <room_id> <sender> <message>")
		text := arg(4, "Usage: chat post <room_id> <sender> <message>")
		msg, err := client.PostMessage(ctx, roomID, sender, text)
		exitOnError(err)
		fmt.Printf("Posted: %s\n", msg.ID)

	case "ttl":
		roomID := arg(2, "Usage: chat ttl <room_id>")
		ttl, err := client.TTL(ctx, roomID)
		exitOnError(err)
		fmt.Printf("%s remaining\n", ttl)

	case "destroy":
		roomID := arg(2, "Usage: chat destroy <room_id>")
		exitOnError(client.Destroy(ctx, roomID))
		exitOnError(client.SaveTokens())
		fmt.Println("Room destroyed")

	case "watch":
		roomID := arg(2, "Usage: chat watch <room_id>")
		err := client.Watch(ctx, roomID, func(ev chat.Event) error {
			if ev.Event == "chat.message" {
				var msg chat.Message
				if err := json.Unmarshal(ev.Data, &msg); err != nil {
					return err
				}
				printMessage(msg)
			}
			return nil
		})
		if errors.Is(err, chat.ErrRoomDestroyed) {
			fmt.Println("Room destroyed")
			return
		}
		if errors.Is(err, context.Canceled) {
			return
		}
		exitOnError(err)

	case "help", "--help", "-h":
		usage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		usage()
		os.Exit(1)
	}
}

func arg(i int, usage string) string {
	if len(os.Args) <= i {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(1)
	}
	return os.Args[i]
}

func printMessage(msg chat.Message) {
	ts := time.UnixMilli(msg.Timestamp).Format("15:04:05")
	mark := " "
	if msg.Mine() {
		mark = "*"
	}
	fmt.Printf("[%s]%s %s: %s\n", ts, mark, msg.Sender, msg.Text)
}

func usage() {
	fmt.Println(`chat CLI - ephemeral two-party chat rooms

Usage: chat <command> [options]

Commands:
  create                          Create and join a room
  join <room>                     Join a room
  post <room> <sender> <message>  Post a message
  read <room>                     Read room history (* marks your messages)
  watch <room>                    Stream new messages until the room is destroyed
  ttl <room>                      Show remaining room lifetime
  destroy <room>                  Destroy a room for everyone
  health                          Check server health

Environment:
  CHAT_URL      Server URL (default: http://localhost:8080)
  CHAT_CONFIG   Config directory (default: ~/.realtime-chat)`)
}

func exitOnError(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func printJSON(v interface{}) {
	data, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(data))
}
