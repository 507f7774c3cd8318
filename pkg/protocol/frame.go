package protocol

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"google.golang.org/protobuf/encoding/protodelim"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// DefaultMaxFrameSize bounds a single inbound frame.
const DefaultMaxFrameSize = 64 << 10

// ErrFrameTooLarge is returned when a peer announces a frame above the limit.
var ErrFrameTooLarge = errors.New("protocol: frame too large")

// WriteFrame encodes text as one length-delimited protobuf StringValue.
func WriteFrame(w io.Writer, text string) error {
	if _, err := protodelim.MarshalTo(w, wrapperspb.String(text)); err != nil {
		return fmt.Errorf("failed to encode frame: %w", err)
	}
	return nil
}

// FrameReader decodes frames written by WriteFrame.
type FrameReader struct {
	r    *bufio.Reader
	opts protodelim.UnmarshalOptions
}

// NewFrameReader reads frames from r, rejecting any larger than maxSize bytes.
// If r is already a *bufio.Reader it is used as is.
func NewFrameReader(r io.Reader, maxSize int) *FrameReader {
	if maxSize <= 0 {
		maxSize = DefaultMaxFrameSize
	}
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return &FrameReader{
		r:    br,
		opts: protodelim.UnmarshalOptions{MaxSize: int64(maxSize)},
	}
}

// ReadFrame returns the next frame's text. It returns io.EOF when the stream
// ends cleanly between frames.
func (fr *FrameReader) ReadFrame() (string, error) {
	var msg wrapperspb.StringValue
	if err := fr.opts.UnmarshalFrom(fr.r, &msg); err != nil {
		var tooLarge *protodelim.SizeTooLargeError
		switch {
		case errors.As(err, &tooLarge):
			return "", fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, tooLarge.Size)
		case errors.Is(err, io.EOF):
			return "", io.EOF
		default:
			return "", fmt.Errorf("failed to decode frame: %w", err)
		}
	}
	return msg.GetValue(), nil
}
