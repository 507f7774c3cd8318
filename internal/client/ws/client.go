// Package ws dials the chat server over WebSocket.
package ws

import (
	"context"
	"fmt"

	"github.com/gobwas/ws"

	"github.com/omochice/broadcast-chat/internal/chat"
	"github.com/omochice/broadcast-chat/internal/client"
	transportws "github.com/omochice/broadcast-chat/internal/transport/ws"
)

// Dialer returns a client.Dialer for a ws:// or wss:// URL.
func Dialer(url string) client.Dialer {
	return func(ctx context.Context) (chat.Conn, error) {
		conn, br, _, err := ws.Dial(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("websocket dial %s: %w", url, err)
		}
		return transportws.NewConn(conn, br, ws.StateClientSide, 0), nil
	}
}

// New creates a WebSocket Client instance.
func New(url string) *client.Client {
	return client.New(Dialer(url))
}
