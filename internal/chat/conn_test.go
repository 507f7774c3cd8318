package chat_test

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/omochice/broadcast-chat/internal/chat"
)

type frame struct {
	kind chat.FrameKind
	data []byte
}

// mockConn is a channel-backed chat.Conn. Closing frames via drop simulates
// an abrupt disconnect.
type mockConn struct {
	frames chan frame
	writes chan string

	mu           sync.Mutex
	written      []string
	writeErr     error
	panicOnWrite bool
	dropOnce     sync.Once
	closed       bool
}

func newMockConn() *mockConn {
	return &mockConn{
		frames: make(chan frame, 16),
		writes: make(chan string, 256),
	}
}

func (m *mockConn) Read(ctx context.Context) (chat.FrameKind, []byte, error) {
	select {
	case <-ctx.Done():
		return 0, nil, ctx.Err()
	case f, ok := <-m.frames:
		if !ok {
			return 0, nil, io.EOF
		}
		return f.kind, f.data, nil
	}
}

func (m *mockConn) Write(ctx context.Context, text string) error {
	m.mu.Lock()
	err, panicking := m.writeErr, m.panicOnWrite
	if err == nil && !panicking {
		m.written = append(m.written, text)
	}
	m.mu.Unlock()

	if panicking {
		panic("write exploded")
	}
	if err != nil {
		return err
	}
	select {
	case m.writes <- text:
	default:
	}
	return nil
}

func (m *mockConn) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockConn) send(text string) {
	m.frames <- frame{kind: chat.FrameText, data: []byte(text)}
}

func (m *mockConn) sendBinary(data []byte) {
	m.frames <- frame{kind: chat.FrameBinary, data: data}
}

func (m *mockConn) drop() {
	m.dropOnce.Do(func() { close(m.frames) })
}

func (m *mockConn) failWrites(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeErr = err
}

func (m *mockConn) panicWrites() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.panicOnWrite = true
}

func (m *mockConn) Written() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.written...)
}

// waitFor consumes written frames until want shows up.
func (m *mockConn) waitFor(t *testing.T, want string) {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case got := <-m.writes:
			if got == want {
				return
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %q, written so far: %q", want, m.Written())
		}
	}
}

// Compile-time check that mockConn implements chat.Conn
var _ chat.Conn = (*mockConn)(nil)

func startSession(t *testing.T, ctx context.Context, hub *chat.Hub, conn chat.Conn, addr string) <-chan struct{} {
	t.Helper()
	done := make(chan struct{})
	go func() {
		defer close(done)
		hub.HandleConn(ctx, conn, addr)
	}()
	return done
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("session did not finish")
	}
}

func TestIsStreamClosed(t *testing.T) {
	require.True(t, chat.IsStreamClosed(io.EOF))
	require.True(t, chat.IsStreamClosed(context.Canceled))
	require.True(t, chat.IsStreamClosed(chat.ErrSubscriptionClosed))
	require.False(t, chat.IsStreamClosed(chat.ErrLagged))
	require.False(t, chat.IsStreamClosed(io.ErrShortWrite))
}
