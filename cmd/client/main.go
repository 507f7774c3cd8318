package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/omochice/broadcast-chat/internal/client"
	clienttcp "github.com/omochice/broadcast-chat/internal/client/tcp"
	clientws "github.com/omochice/broadcast-chat/internal/client/ws"
	"github.com/omochice/broadcast-chat/pkg/protocol"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	transport := flag.String("transport", "ws", "Transport to use: ws or tcp")
	serverAddr := flag.String("server", "", "Server address (default ws://localhost:3000/websocket or localhost:3000)")
	name := flag.String("name", "", "Name to join the chat with")
	flag.Parse()

	if *name == "" {
		return fmt.Errorf("name is required. Use -name flag")
	}

	c, addr, err := newClient(*transport, *serverAddr)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := c.Connect(dialCtx); err != nil {
		return err
	}
	defer c.Disconnect()

	if err := c.Join(*name); err != nil {
		return fmt.Errorf("failed to join chat: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Connected to %s as %s\n", addr, *name)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range c.Messages() {
			printMessage(os.Stdout, msg)
		}
	}()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	fmt.Fprintln(os.Stderr, "Type your messages (or 'quit' to exit):")
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-done:
			fmt.Fprintln(os.Stderr, "Disconnected from server")
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			text := strings.TrimSpace(line)
			if text == "" {
				continue
			}
			if text == "quit" || text == "exit" {
				return nil
			}
			if err := c.SendMessage(text); err != nil {
				fmt.Fprintf(os.Stderr, "Failed to send message: %v\n", err)
			}
		}
	}
}

func newClient(transport, addr string) (*client.Client, string, error) {
	switch transport {
	case "ws":
		if addr == "" {
			addr = "ws://localhost:3000/websocket"
		}
		return clientws.New(addr), addr, nil
	case "tcp":
		if addr == "" {
			addr = "localhost:3000"
		}
		return clienttcp.New(addr), addr, nil
	default:
		return nil, "", fmt.Errorf("unknown transport %q: use ws or tcp", transport)
	}
}

func printMessage(w io.Writer, msg protocol.Message) {
	switch msg.Type {
	case protocol.MessageTypeText:
		fmt.Fprintf(w, "[%s]: %s\n", msg.Sender, msg.Content)
	case protocol.MessageTypeJoin:
		fmt.Fprintf(w, "*** %s joined the chat ***\n", msg.Sender)
	case protocol.MessageTypeLeave:
		fmt.Fprintf(w, "*** %s left the chat ***\n", msg.Sender)
	default:
		fmt.Fprintf(w, "!!! %s\n", msg.Content)
	}
}
