// Package tcp provides TCP transport implementation for the chat server.
// Frames are length-delimited protobuf messages, see protocol.WriteFrame.
package tcp

import (
	"bufio"
	"context"
	"io"
	"net"
	"sync"
	"time"

	"github.com/omochice/broadcast-chat/internal/chat"
	"github.com/omochice/broadcast-chat/pkg/protocol"
)

var aLongTimeAgo = time.Unix(1, 0)

// Conn adapts net.Conn to chat.Conn interface.
type Conn struct {
	conn   net.Conn
	frames *protocol.FrameReader
	wmu    sync.Mutex
}

// NewConn wraps a net.Conn. br may carry bytes already peeked from conn and
// may be nil.
func NewConn(conn net.Conn, br *bufio.Reader, maxFrameSize int) *Conn {
	var src io.Reader = conn
	if br != nil {
		src = br
	}
	return &Conn{
		conn:   conn,
		frames: protocol.NewFrameReader(src, maxFrameSize),
	}
}

// Read implements chat.Conn.
// Every TCP frame carries text.
func (c *Conn) Read(ctx context.Context) (chat.FrameKind, []byte, error) {
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetReadDeadline(aLongTimeAgo)
	})
	defer stop()

	text, err := c.frames.ReadFrame()
	if err != nil {
		if ctx.Err() != nil {
			return 0, nil, ctx.Err()
		}
		return 0, nil, err
	}
	return chat.FrameText, []byte(text), nil
}

// Write implements chat.Conn.
func (c *Conn) Write(ctx context.Context, text string) error {
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetWriteDeadline(aLongTimeAgo)
	})
	defer stop()

	c.wmu.Lock()
	defer c.wmu.Unlock()
	if err := protocol.WriteFrame(c.conn, text); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

// Close implements chat.Conn.
func (c *Conn) Close() error {
	return c.conn.Close()
}
