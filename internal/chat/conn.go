// Package chat provides the core chat domain logic shared by all transports.
package chat

import (
	"context"
	"errors"
	"io"
	"net"
)

// FrameKind tells text frames apart from anything else a transport delivers.
type FrameKind int

const (
	FrameText FrameKind = iota
	FrameBinary
)

// Conn abstracts a bidirectional message stream for both TCP and WebSocket.
// This interface isolates transport details from chat logic.
type Conn interface {
	// Read blocks until the next frame arrives.
	// Returns io.EOF when the peer has closed the stream. Implementations must
	// return promptly once ctx is done, even if no frame is pending.
	Read(ctx context.Context) (FrameKind, []byte, error)

	// Write sends a single text frame.
	Write(ctx context.Context, text string) error

	// Close closes the stream.
	Close() error
}

// IsStreamClosed reports whether err is an ordinary end of stream rather than
// a transport fault.
func IsStreamClosed(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, ErrSubscriptionClosed)
}
