package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/novamart/nova-storefront/pkg/metrics"
)

const (
	// StreamName is the name of the chat activity stream.
	StreamName = "CHAT_ACTIVITY"

	// SubjectPrefix is the prefix for all chat activity subjects.
	SubjectPrefix = "chat"
)

// Event is one chat activity record.
type Event struct {
	Kind      string `json:"kind"`
	UserID    string `json:"user_id"`
	Count     int    `json:"count,omitempty"`
	Timestamp int64  `json:"ts,omitempty"`
	At        string `json:"at"`
}

// Events publishes chat activity to JetStream. Publishing is
// best-effort; failures are logged and counted but never surfaced to
// the request path.
type Events struct {
	client *Client
}

// NewEvents creates an event publisher over client.
func NewEvents(client *Client) *Events {
	return &Events{client: client}
}

// EnsureStream ensures the chat activity stream exists.
func (e *Events) EnsureStream(ctx context.Context) error {
	js := e.client.JetStream()

	_, err := js.Stream(ctx, StreamName)
	if err == nil {
		return nil
	}

	_, err = js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{fmt.Sprintf("%s.>", SubjectPrefix)},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      30 * 24 * time.Hour,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Description: "Chat append, read, and delete activity",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}
	return nil
}

// PublishAppend records that count entries were appended for userID.
func (e *Events) PublishAppend(ctx context.Context, userID string, count int) {
	e.publish(ctx, "append", Event{Kind: "append", UserID: userID, Count: count})
}

// PublishMarkRead records that userID's conversation was marked read.
func (e *Events) PublishMarkRead(ctx context.Context, userID string) {
	e.publish(ctx, "read", Event{Kind: "read", UserID: userID})
}

// PublishDelete records that the entry at ts was removed for userID.
func (e *Events) PublishDelete(ctx context.Context, userID string, ts int64) {
	e.publish(ctx, "delete", Event{Kind: "delete", UserID: userID, Timestamp: ts})
}

func (e *Events) publish(ctx context.Context, kind string, ev Event) {
	ev.At = time.Now().UTC().Format(time.RFC3339Nano)

	data, err := json.Marshal(ev)
	if err != nil {
		metrics.NATSEventsTotal.WithLabelValues(kind, "error").Inc()
		return
	}

	subject := fmt.Sprintf("%s.%s.%s", SubjectPrefix, kind, ev.UserID)
	if _, err := e.client.JetStream().Publish(ctx, subject, data); err != nil {
		metrics.NATSEventsTotal.WithLabelValues(kind, "error").Inc()
		e.client.logger.Warn("failed to publish chat event",
			zap.String("subject", subject),
			zap.Error(err),
		)
		return
	}
	metrics.NATSEventsTotal.WithLabelValues(kind, "ok").Inc()
}
