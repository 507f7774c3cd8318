package chat_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_WaitRefusesNewSessions(t *testing.T) {
	hub, _ := newTestHub(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, hub.Wait(ctx))

	conn := newMockConn()
	waitDone(t, startSession(t, context.Background(), hub, conn, "10.0.0.1"))

	assert.Empty(t, conn.Written())
	assert.False(t, hub.Registry().HasAddress("10.0.0.1"))
}

func TestHub_WaitTimesOutOnRunningSession(t *testing.T) {
	hub, _ := newTestHub(t)
	alice, done := join(t, context.Background(), hub, "10.0.0.1", "alice")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, hub.Wait(ctx), context.DeadlineExceeded)

	alice.drop()
	waitDone(t, done)

	ctx2, cancel2 := context.WithTimeout(context.Background(), time.Second)
	defer cancel2()
	assert.NoError(t, hub.Wait(ctx2))
}
