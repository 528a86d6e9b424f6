package notifications

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testEventuallyTimeout = time.Second
	testPollInterval      = 10 * time.Millisecond
)

func TestHub_RegisterAndUnregister(t *testing.T) {
	hub := NewHub()

	c1, err := hub.Register(0, nil)
	require.NoError(t, err)
	_, err = hub.Register(7, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, hub.Count())

	hub.Unregister(c1)
	hub.Unregister(c1)
	assert.Equal(t, 1, hub.Count())

	_, ok := <-c1.Send
	assert.False(t, ok, "send channel closed on unregister")
}

func TestHub_BroadcastAllReachesEveryClient(t *testing.T) {
	hub := NewHub()
	a, _ := hub.Register(1, nil)
	b, _ := hub.Register(0, nil)

	hub.BroadcastAll(`{"type":"post_published"}`)

	assert.Equal(t, `{"type":"post_published"}`, string(<-a.Send))
	assert.Equal(t, `{"type":"post_published"}`, string(<-b.Send))
}

func TestClient_TrySendDropsWhenFull(t *testing.T) {
	hub := NewHub()
	c, _ := hub.Register(1, nil)
	for i := 0; i < sendBuffer; i++ {
		require.True(t, c.TrySend([]byte("x")))
	}
	assert.False(t, c.TrySend([]byte("overflow")))
}

func TestHub_ShutdownRefusesNewClients(t *testing.T) {
	hub := NewHub()
	c, err := hub.Register(1, nil)
	require.NoError(t, err)
	require.NoError(t, hub.Shutdown(context.Background()))

	assert.Equal(t, 0, hub.Count())
	_, open := <-c.Send
	assert.False(t, open)
	hub.Unregister(c)
	_, err = hub.Register(2, nil)
	assert.ErrorIs(t, err, ErrHubClosed)
}

func TestNotifier_LocalDeliveryWithoutRedis(t *testing.T) {
	hub := NewHub()
	c, _ := hub.Register(0, nil)
	n := NewNotifier(nil)
	require.NoError(t, hub.StartWiring(context.Background(), n))

	require.NoError(t, n.Publish(context.Background(), EventPostDeleted, PostEvent{ID: 9}))

	var ev struct {
		Type    string    `json:"type"`
		Payload PostEvent `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(<-c.Send, &ev))
	assert.Equal(t, EventPostDeleted, ev.Type)
	assert.Equal(t, uint(9), ev.Payload.ID)
}

func TestNotifier_RedisFanOut(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub()
	c, _ := hub.Register(0, nil)
	n := NewNotifier(rdb)
	require.NoError(t, hub.StartWiring(ctx, n))

	require.NoError(t, n.Publish(ctx, EventCommentCreated, CommentEvent{ID: 1, PostID: 2, UserID: 3}))

	assert.Eventually(t, func() bool {
		return len(c.Send) == 1
	}, testEventuallyTimeout, testPollInterval)
	assert.Contains(t, string(<-c.Send), `"type":"comment_created"`)
}

func TestNotifier_NilIsNoop(t *testing.T) {
	var n *Notifier
	assert.NoError(t, n.Publish(context.Background(), EventPostPublished, nil))
}
