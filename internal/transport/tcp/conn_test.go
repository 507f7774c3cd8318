package tcp_test

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omochice/broadcast-chat/internal/chat"
	"github.com/omochice/broadcast-chat/internal/transport/tcp"
	"github.com/omochice/broadcast-chat/pkg/protocol"
)

func TestConn_ImplementsInterface(t *testing.T) {
	var _ chat.Conn = (*tcp.Conn)(nil)
}

func TestConn_Read(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	conn := tcp.NewConn(client, nil, 0)

	go func() {
		_ = protocol.WriteFrame(server, "test message")
		server.Close()
	}()

	kind, data, err := conn.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, chat.FrameText, kind)
	assert.Equal(t, "test message", string(data))

	_, _, err = conn.Read(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestConn_Write(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	conn := tcp.NewConn(client, nil, 0)

	go func() {
		assert.NoError(t, conn.Write(context.Background(), "hello"))
	}()

	got, err := protocol.NewFrameReader(server, 0).ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, "hello", got)
}

func TestConn_ReadUnblocksOnCancel(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	conn := tcp.NewConn(client, nil, 0)
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		_, _, err := conn.Read(ctx)
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Read did not return after cancel")
	}
}

func TestConn_Close(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()

	conn := tcp.NewConn(client, nil, 0)
	require.NoError(t, conn.Close())

	_, err := client.Read(make([]byte, 1))
	assert.Error(t, err)
}
