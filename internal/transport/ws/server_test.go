package ws_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/omochice/broadcast-chat/internal/chat"
	chatws "github.com/omochice/broadcast-chat/internal/transport/ws"
	"github.com/omochice/broadcast-chat/pkg/protocol"
)

func newHubServer(t *testing.T) (*chat.Hub, string) {
	t.Helper()
	hub := chat.NewHub(chat.NewRegistry(), chat.NewBus(chat.DefaultBusCapacity),
		chat.WithLogger(zaptest.NewLogger(t)))
	srv := chatws.New(hub, chatws.WithTrustProxy(true), chatws.WithLogger(zaptest.NewLogger(t)))

	server := httptest.NewServer(srv)
	t.Cleanup(func() {
		hub.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		assert.NoError(t, hub.Wait(ctx))
		server.Close()
	})
	return hub, "ws" + strings.TrimPrefix(server.URL, "http")
}

func dialAs(t *testing.T, url, ip string) *websocket.Conn {
	t.Helper()
	header := http.Header{}
	header.Set("X-Forwarded-For", ip)
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readText(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	mt, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.TextMessage, mt)
	return string(data)
}

func TestServer_RegistersAndRelays(t *testing.T) {
	hub, url := newHubServer(t)

	alice := dialAs(t, url, "10.0.0.1")
	require.NoError(t, alice.WriteMessage(websocket.TextMessage, []byte("alice")))
	assert.Equal(t, "alice joined.", readText(t, alice))

	bob := dialAs(t, url, "10.0.0.2")
	require.NoError(t, bob.WriteMessage(websocket.TextMessage, []byte("bob")))
	assert.Equal(t, "bob joined.", readText(t, bob))
	assert.Equal(t, "bob joined.", readText(t, alice))

	require.NoError(t, alice.WriteMessage(websocket.TextMessage, []byte("hi")))
	assert.Equal(t, "alice: hi", readText(t, bob))

	assert.True(t, hub.Registry().HasAddress("10.0.0.1"))
	assert.Equal(t, []string{"alice", "bob"}, hub.Registry().Names())

	// Abrupt drop: no close handshake.
	require.NoError(t, alice.NetConn().Close())
	assert.Equal(t, "alice left.", readText(t, bob))
	require.Eventually(t, func() bool {
		return !hub.Registry().HasAddress("10.0.0.1") && !hub.Registry().HasName("alice")
	}, 2*time.Second, 10*time.Millisecond)
}

func TestServer_SameAddressRejected(t *testing.T) {
	_, url := newHubServer(t)

	alice := dialAs(t, url, "10.0.0.1")
	require.NoError(t, alice.WriteMessage(websocket.TextMessage, []byte("alice")))
	assert.Equal(t, "alice joined.", readText(t, alice))

	carol := dialAs(t, url, "10.0.0.1")
	assert.Equal(t, protocol.NoticeAlreadyConnected, readText(t, carol))

	_, _, err := carol.ReadMessage()
	assert.Error(t, err, "connection should be closed after the notice")
}
