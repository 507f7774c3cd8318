// Package tcp dials the chat server over raw TCP.
package tcp

import (
	"context"
	"fmt"
	"net"

	"github.com/omochice/broadcast-chat/internal/chat"
	"github.com/omochice/broadcast-chat/internal/client"
	transporttcp "github.com/omochice/broadcast-chat/internal/transport/tcp"
)

// Dialer returns a client.Dialer for a host:port address.
func Dialer(address string) client.Dialer {
	return func(ctx context.Context) (chat.Conn, error) {
		var d net.Dialer
		conn, err := d.DialContext(ctx, "tcp", address)
		if err != nil {
			return nil, fmt.Errorf("tcp dial %s: %w", address, err)
		}
		return transporttcp.NewConn(conn, nil, 0), nil
	}
}

// New creates a TCP Client instance.
func New(address string) *client.Client {
	return client.New(Dialer(address))
}
