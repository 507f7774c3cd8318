// Package client provides a chat client over any transport implementing chat.Conn.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/omochice/broadcast-chat/internal/chat"
	"github.com/omochice/broadcast-chat/pkg/protocol"
)

// ErrNotConnected is returned when sending without an open connection.
var ErrNotConnected = errors.New("client: not connected to server")

// Dialer opens a connection to the chat server.
type Dialer func(ctx context.Context) (chat.Conn, error)

// Client represents a chat client
type Client struct {
	dial     Dialer
	conn     chat.Conn
	messages chan protocol.Message
	mu       sync.RWMutex
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// New creates a new Client that connects through dial.
func New(dial Dialer) *Client {
	return &Client{
		dial:     dial,
		messages: make(chan protocol.Message, 64),
	}
}

// Connect establishes a connection to the server and starts receiving.
// A Client connects once; create a new one to reconnect.
// The Messages channel is closed when the connection ends.
func (c *Client) Connect(ctx context.Context) error {
	conn, err := c.dial(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}

	recvCtx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	c.conn = conn
	c.cancel = cancel
	c.mu.Unlock()

	c.wg.Add(1)
	go c.receiveMessages(recvCtx, conn)

	return nil
}

// Disconnect closes the connection to the server
func (c *Client) Disconnect() error {
	c.mu.Lock()
	conn, cancel := c.conn, c.cancel
	c.conn = nil
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	cancel()
	err := conn.Close()
	c.wg.Wait()
	return err
}

// IsConnected returns whether the client is connected
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil
}

// Join claims a display name. It must be the first thing sent.
func (c *Client) Join(name string) error {
	return c.send(name)
}

// SendMessage sends a line of chat text.
func (c *Client) SendMessage(content string) error {
	return c.send(content)
}

// Messages returns the channel for receiving messages
func (c *Client) Messages() <-chan protocol.Message {
	return c.messages
}

func (c *Client) send(text string) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil {
		return ErrNotConnected
	}
	if err := conn.Write(context.Background(), text); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

func (c *Client) receiveMessages(ctx context.Context, conn chat.Conn) {
	defer c.wg.Done()
	defer close(c.messages)

	for {
		kind, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		if kind != chat.FrameText {
			continue
		}

		select {
		case c.messages <- protocol.Parse(string(data)):
		case <-ctx.Done():
			return
		}
	}
}
