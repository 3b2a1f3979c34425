// roomdrop CLI - Command line client for roomdrop
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/eldtechnologies/roomdrop/clients/go/roomdrop"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	client := roomdrop.NewClient(os.Getenv("ROOMDROP_URL"))
	if u := os.Getenv("ROOMDROP_UPLOAD_URL"); u != "" {
		client.UploadURL = u
	}
	if d := os.Getenv("ROOMDROP_STORAGE_DOMAIN"); d != "" {
		client.StorageDomain = d
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cmd := os.Args[1]
	switch cmd {
	case "health":
		resp, err := client.Health(ctx)
		exitOnError(err)
		printJSON(resp)

	case "create":
		code, err := client.CreateRoom(ctx)
		exitOnError(err)
		fmt.Println(code)

	case "read":
		requireArgs(3, "roomdrop read <room>")
		room, err := client.GetRoom(ctx, os.Args[2])
		exitOnError(err)
		printRoom(room)

	case "send":
		requireArgs(4, "roomdrop send <room> <text>")
		msg, err := client.SendText(ctx, os.Args[2], strings.Join(os.Args[3:], " "))
		exitOnError(err)
		fmt.Printf("Sent: %s\n", msg.ID)

	case "upload":
		requireArgs(4, "roomdrop upload <room> <file>")
		msg, err := client.UploadFile(ctx, os.Args[2], os.Args[3])
		exitOnError(err)
		fmt.Printf("Uploaded: %s\n", msg.FileURL)

	case "rm":
		requireArgs(4, "roomdrop rm <room> <message_id>")
		exitOnError(client.DeleteMessage(ctx, os.Args[2], os.Args[3]))
		fmt.Println("Removed")

	case "drop":
		requireArgs(3, "roomdrop drop <room>")
		exitOnError(client.DeleteRoom(ctx, os.Args[2]))
		fmt.Println("Room deleted")

	case "help", "--help", "-h":
		usage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		usage()
		os.Exit(1)
	}
}

func printRoom(room *roomdrop.Room) {
	files := lo.CountBy(room.Messages, func(m roomdrop.Message) bool { return m.Type == "file" })
	fmt.Printf("%d messages (%d files), created %s\n",
		len(room.Messages), files, time.UnixMilli(room.CreatedAt).Format("2006-01-02 15:04"))

	for _, msg := range room.Messages {
		ts := time.UnixMilli(msg.Timestamp).Format("15:04:05")
		if msg.Type == "file" {
			fmt.Printf("[%s] %s  %s (%s) %s\n", ts, msg.ID, msg.FileName, formatSize(msg.FileSize), msg.FileURL)
			continue
		}
		fmt.Printf("[%s] %s  %s\n", ts, msg.ID, msg.Content)
	}
}

func formatSize(n int64) string {
	switch {
	case n <= 0:
		return "unknown size"
	case n < 1024:
		return fmt.Sprintf("%d B", n)
	case n < 1024*1024:
		return fmt.Sprintf("%.1f KB", float64(n)/1024)
	case n < 1024*1024*1024:
		return fmt.Sprintf("%.1f MB", float64(n)/(1024*1024))
	}
	return fmt.Sprintf("%.2f GB", float64(n)/(1024*1024*1024))
}

func usage() {
	fmt.Println(`roomdrop CLI - disposable file and text sharing rooms

Usage: roomdrop <command> [options]

Commands:
  create                  Create a room and print its code
  read <room>             List the messages in a room
  send <room> <text>      Send a text message
  upload <room> <file>    Upload a file and share its link
  rm <room> <message_id>  Remove a message
  drop <room>             Delete a room
  health                  Check server health

Environment:
  ROOMDROP_URL             Server URL (default: http://localhost:8080)
  ROOMDROP_UPLOAD_URL      Object storage upload endpoint
  ROOMDROP_STORAGE_DOMAIN  Public domain for uploaded files`)
}

func requireArgs(n int, usage string) {
	if len(os.Args) < n {
		fmt.Fprintln(os.Stderr, "Usage:", usage)
		os.Exit(1)
	}
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
