package server

import (
	"bufio"
	"bytes"
	"io"
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omochice/broadcast-chat/pkg/protocol"
)

func frame(t *testing.T, text string) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, protocol.WriteFrame(&buf, text))
	return buf.Bytes()
}

func TestIsHTTP(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  bool
	}{
		{"get request", []byte("GET /websocket HTTP/1.1\r\n"), true},
		{"post request", []byte("POST / HTTP/1.1\r\n"), true},
		{"name frame", frame(t, "alice"), false},
		{"empty name frame", frame(t, ""), false},
		{"length looks like a letter", frame(t, strings.Repeat("x", 'A'-2)), false},
		{"long frame", frame(t, strings.Repeat("x", 300)), false},
		{"lower case", []byte("get / HTTP/1.1\r\n"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			br := bufio.NewReader(bytes.NewReader(tt.input))
			got, err := isHTTP(br)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			// Sniffing must not consume input.
			rest, err := io.ReadAll(br)
			require.NoError(t, err)
			assert.Equal(t, tt.input, rest)
		})
	}
}

func TestIsHTTP_EmptyFrameDoesNotBlock(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() { _, _ = client.Write(frame(t, "")) }()

	got, err := isHTTP(bufio.NewReader(server))
	require.NoError(t, err)
	assert.False(t, got)
}

func TestIsHTTP_EOF(t *testing.T) {
	_, err := isHTTP(bufio.NewReader(bytes.NewReader(nil)))
	assert.ErrorIs(t, err, io.EOF)
}

func TestBufferedConn_ReplaysPeekedBytes(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() { _, _ = client.Write([]byte("GET")) }()

	br := bufio.NewReader(server)
	_, err := br.Peek(2)
	require.NoError(t, err)

	conn := &bufferedConn{Conn: server, reader: br}
	buf := make([]byte, 3)
	_, err = io.ReadFull(conn, buf)
	require.NoError(t, err)
	assert.Equal(t, "GET", string(buf))
}

func TestConnListener(t *testing.T) {
	addr := &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 3000}
	l := newConnListener(addr)
	assert.Equal(t, addr, l.Addr())

	client, server := net.Pipe()
	defer client.Close()

	go func() { assert.True(t, l.push(server)) }()
	conn, err := l.Accept()
	require.NoError(t, err)
	assert.Same(t, server, conn)

	require.NoError(t, l.Close())
	require.NoError(t, l.Close())

	_, err = l.Accept()
	assert.ErrorIs(t, err, net.ErrClosed)
	assert.False(t, l.push(server))
}
