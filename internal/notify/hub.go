// Package notify broadcasts record-change events over Redis pub/sub.
// Subscribers treat an event as a trigger to re-run their permission-scoped
// query; events carry record identifiers only, never record payloads, so an
// out-of-scope record can not leak into a consumer's view through the
// notification path.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Event kinds.
const (
	KindCreated = "created"
	KindUpdated = "updated"
	KindDeleted = "deleted"
)

// Event describes a single record change within a module.
type Event struct {
	Kind     string    `json:"kind"`
	RecordID uuid.UUID `json:"record_id"`
	ActorID  uuid.UUID `json:"actor_id"`
	At       time.Time `json:"at"`
}

// Hub publishes and consumes change events.
type Hub struct {
	client *redis.Client
	logger *slog.Logger
}

// NewHub constructs a Hub.
func NewHub(client *redis.Client, logger *slog.Logger) *Hub {
	return &Hub{client: client, logger: logger}
}

func channelFor(module string) string {
	return "notify:" + module
}

// Publish broadcasts an event for the module. Publish failures are reported
// to the caller but must not abort the mutation that triggered them.
func (h *Hub) Publish(ctx context.Context, module string, event Event) error {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return h.client.Publish(ctx, channelFor(module), payload).Err()
}

// Subscribe consumes events for the module until the context is cancelled.
// Malformed payloads are logged and skipped.
func (h *Hub) Subscribe(ctx context.Context, module string, fn func(Event)) error {
	sub := h.client.Subscribe(ctx, channelFor(module))
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				if h.logger != nil {
					h.logger.Warn("decode notify event", slog.String("channel", msg.Channel), slog.Any("error", err))
				}
				continue
			}
			fn(event)
		}
	}
}
