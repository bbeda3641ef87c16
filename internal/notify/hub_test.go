package notify_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-crm/meridian/internal/notify"
	_ "github.com/meridian-crm/meridian/testing"
)

func TestPublishSubscribe(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	hub := notify.NewHub(client, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan notify.Event, 1)
	go func() {
		_ = hub.Subscribe(ctx, "leads", func(event notify.Event) {
			received <- event
		})
	}()

	// The subscription needs to be registered before the publish lands.
	require.Eventually(t, func() bool {
		return hub.Publish(ctx, "leads", notify.Event{Kind: notify.KindCreated, RecordID: uuid.New()}) == nil && len(received) > 0
	}, 2*time.Second, 10*time.Millisecond)

	event := <-received
	assert.Equal(t, notify.KindCreated, event.Kind)
	assert.False(t, event.At.IsZero())
}

func TestSubscribeScopedToModule(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	hub := notify.NewHub(client, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan notify.Event, 4)
	go func() {
		_ = hub.Subscribe(ctx, "customers", func(event notify.Event) {
			received <- event
		})
	}()

	require.Eventually(t, func() bool {
		require.NoError(t, hub.Publish(ctx, "leads", notify.Event{Kind: notify.KindUpdated, RecordID: uuid.New()}))
		return hub.Publish(ctx, "customers", notify.Event{Kind: notify.KindDeleted, RecordID: uuid.New()}) == nil && len(received) > 0
	}, 2*time.Second, 10*time.Millisecond)

	event := <-received
	assert.Equal(t, notify.KindDeleted, event.Kind)
}
