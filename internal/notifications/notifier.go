// Package notifications delivers live feed events to websocket subscribers.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"chronicle/internal/middleware"

	"github.com/redis/go-redis/v9"
)

// FeedChannel is the Redis channel carrying feed events between instances.
const FeedChannel = "feed:events"

// Feed event types.
const (
	EventPostPublished  = "post_published"
	EventPostDeleted    = "post_deleted"
	EventCommentCreated = "comment_created"
)

// Event is one message on the live feed.
type Event struct {
	Type    string    `json:"type"`
	Payload any       `json:"payload"`
	SentAt  time.Time `json:"sent_at"`
}

// PostEvent is the payload of post events.
type PostEvent struct {
	ID       uint   `json:"id"`
	Slug     string `json:"slug,omitempty"`
	Title    string `json:"title,omitempty"`
	Category string `json:"category,omitempty"`
	AuthorID uint   `json:"author_id,omitempty"`
}

// CommentEvent is the payload of comment events.
type CommentEvent struct {
	ID     uint `json:"id"`
	PostID uint `json:"post_id"`
	UserID uint `json:"user_id"`
}

// Notifier publishes feed events into Redis.
type Notifier struct {
	rdb *redis.Client
	// local receives events directly when Redis is not configured.
	local func(payload string)
}

// NewNotifier creates a Notifier on rdb. rdb may be nil.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// Publish sends an event of the given type to every subscriber.
func (n *Notifier) Publish(ctx context.Context, eventType string, payload any) error {
	if n == nil {
		return nil
	}
	data, err := json.Marshal(Event{Type: eventType, Payload: payload, SentAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal feed event: %w", err)
	}
	if n.rdb == nil {
		if n.local != nil {
			n.local(string(data))
		}
		return nil
	}
	return n.rdb.Publish(ctx, FeedChannel, string(data)).Err()
}

// StartSubscriber subscribes to FeedChannel and calls onMessage for each payload
// until ctx is done. Without Redis, published events go straight to onMessage.
func (n *Notifier) StartSubscriber(ctx context.Context, onMessage func(payload string)) error {
	if n.rdb == nil {
		n.local = onMessage
		return nil
	}
	sub := n.rdb.Subscribe(ctx, FeedChannel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe %s: %w", FeedChannel, err)
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							middleware.Logger.Error("panic in feed subscriber",
								slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
						}
					}()
					onMessage(msg.Payload)
				}()
			}
		}
	}()
	return nil
}
