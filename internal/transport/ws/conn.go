// Package ws provides WebSocket transport implementation for the chat server.
package ws

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/omochice/broadcast-chat/internal/chat"
)

// aLongTimeAgo is a deadline in the past, used to abort blocked I/O.
var aLongTimeAgo = time.Unix(1, 0)

// Conn adapts a gobwas/ws connection to chat.Conn.
// It serves both ends: the server wraps upgraded connections with
// ws.StateServerSide and the client wraps dialed ones with ws.StateClientSide.
type Conn struct {
	conn         net.Conn
	src          io.Reader
	state        ws.State
	maxFrameSize int64

	wmu       sync.Mutex
	closeSent atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// NewConn wraps conn. br holds bytes buffered during the handshake and may be nil.
// maxFrameSize bounds inbound frames; zero means unlimited.
func NewConn(conn net.Conn, br *bufio.Reader, state ws.State, maxFrameSize int) *Conn {
	var src io.Reader = conn
	if br != nil {
		src = br
	}
	return &Conn{
		conn:         conn,
		src:          src,
		state:        state,
		maxFrameSize: int64(maxFrameSize),
	}
}

// Read implements chat.Conn.
// Control frames are answered in place; text and binary frames are returned
// whole, with continuation frames reassembled.
func (c *Conn) Read(ctx context.Context) (chat.FrameKind, []byte, error) {
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetReadDeadline(aLongTimeAgo)
	})
	defer stop()

	control := wsutil.ControlFrameHandler(lockedWriter{c}, c.state)
	rd := wsutil.Reader{
		Source:         c.src,
		State:          c.state,
		CheckUTF8:      true,
		MaxFrameSize:   c.maxFrameSize,
		OnIntermediate: control,
	}

	for {
		hdr, err := rd.NextFrame()
		if err != nil {
			return 0, nil, c.readErr(ctx, err)
		}
		if hdr.OpCode.IsControl() {
			if err := control(hdr, &rd); err != nil {
				return 0, nil, c.readErr(ctx, err)
			}
			continue
		}

		data, err := io.ReadAll(&rd)
		if err != nil {
			return 0, nil, c.readErr(ctx, err)
		}
		if hdr.OpCode == ws.OpText {
			return chat.FrameText, data, nil
		}
		return chat.FrameBinary, data, nil
	}
}

func (c *Conn) readErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var closed wsutil.ClosedError
	if errors.As(err, &closed) {
		return io.EOF
	}
	return err
}

// Write implements chat.Conn.
// The whole frame is encoded up front so it reaches the socket in one write.
func (c *Conn) Write(ctx context.Context, text string) error {
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetWriteDeadline(aLongTimeAgo)
	})
	defer stop()

	if err := c.writeMessage(ws.OpText, []byte(text)); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

func (c *Conn) writeMessage(op ws.OpCode, p []byte) error {
	var buf bytes.Buffer
	if err := wsutil.WriteMessage(&buf, c.state, op, p); err != nil {
		return fmt.Errorf("failed to encode websocket frame: %w", err)
	}
	_, err := lockedWriter{c}.Write(buf.Bytes())
	return err
}

// Close implements chat.Conn.
// A normal-closure frame is sent on a best-effort basis before the socket
// closes, unless one already went out in reply to the peer's.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		if !c.closeSent.Load() {
			_ = c.conn.SetWriteDeadline(time.Now().Add(time.Second))
			_ = c.writeMessage(ws.OpClose, ws.NewCloseFrameBody(ws.StatusNormalClosure, ""))
		}
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

// lockedWriter serialises control-frame replies with data frames.
// Every write carries whole frames, so the first byte holds the opcode.
type lockedWriter struct {
	c *Conn
}

func (w lockedWriter) Write(p []byte) (int, error) {
	w.c.wmu.Lock()
	defer w.c.wmu.Unlock()
	if len(p) > 0 && ws.OpCode(p[0]&0x0f) == ws.OpClose {
		w.c.closeSent.Store(true)
	}
	return w.c.conn.Write(p)
}
