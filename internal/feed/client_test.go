package feed

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestClient creates a feed client connected to a miniredis instance
func setupTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)

	client, err := NewClient(&redis.Options{Addr: mr.Addr()}, "test-instance")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return client, mr
}

func receiveEvent(t *testing.T, sub *Subscription) *Event {
	t.Helper()
	select {
	case e, ok := <-sub.Events():
		require.True(t, ok, "events channel closed")
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for event")
		return nil
	}
}

func TestNewClient(t *testing.T) {
	t.Run("creates client successfully", func(t *testing.T) {
		client, _ := setupTestClient(t)
		assert.Equal(t, "test-instance", client.InstanceName())
		assert.NoError(t, client.Ping(context.Background()))
	})

	t.Run("rejects empty instance name", func(t *testing.T) {
		_, err := NewClient(&redis.Options{Addr: "localhost:6379"}, "")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "instance name cannot be empty")
	})

	t.Run("dial rejects bad URL", func(t *testing.T) {
		_, err := Dial("http://nope", "x")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "invalid Redis URL")
	})

	t.Run("dial parses redis URL", func(t *testing.T) {
		mr := miniredis.RunT(t)
		client, err := Dial("redis://"+mr.Addr(), "dialled")
		require.NoError(t, err)
		defer client.Close()
		assert.NoError(t, client.Ping(context.Background()))
	})
}

func TestPublishSubscribe(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	sub, err := client.Subscribe(ctx)
	require.NoError(t, err)
	defer sub.Close()

	t.Run("delivers published events", func(t *testing.T) {
		e := NewEvent(EventNotePosted, "session-1").At(3, 4)
		e.Colour = "red"
		e.Message = "hello world"
		require.NoError(t, client.Publish(ctx, e))

		got := receiveEvent(t, sub)
		assert.Equal(t, EventNotePosted, got.Type)
		require.NotNil(t, got.X)
		assert.Equal(t, 3, *got.X)
		assert.Equal(t, 4, *got.Y)
		assert.Equal(t, "hello world", got.Message)
		assert.Equal(t, "session-1", got.Session)
	})

	t.Run("rejects invalid event", func(t *testing.T) {
		err := client.Publish(ctx, NewEvent(EventNotePinned, "s"))
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "invalid event")
	})

	t.Run("reports malformed payloads on the error channel", func(t *testing.T) {
		rdb := redis.NewClient(&redis.Options{Addr: client.rdb.Options().Addr})
		defer rdb.Close()
		require.NoError(t, rdb.Publish(ctx, EventsChannel("test-instance"), "{not json").Err())

		select {
		case err := <-sub.Errors():
			assert.Contains(t, err.Error(), "failed to unmarshal board event")
		case <-time.After(2 * time.Second):
			t.Fatal("timeout waiting for subscription error")
		}
	})

	t.Run("close ends the event stream", func(t *testing.T) {
		other, err := client.Subscribe(ctx)
		require.NoError(t, err)
		require.NoError(t, other.Close())
		require.NoError(t, other.Close())

		select {
		case _, ok := <-other.Events():
			assert.False(t, ok)
		case <-time.After(2 * time.Second):
			t.Fatal("events channel not closed")
		}
	})
}

func TestEventValidate(t *testing.T) {
	tests := []struct {
		name    string
		event   *Event
		wantErr string
	}{
		{"shake needs no coordinates", NewEvent(EventBoardShaken, "s"), ""},
		{"pin with coordinates", NewEvent(EventNotePinned, "s").At(1, 1), ""},
		{"pin without coordinates", NewEvent(EventNotePinned, "s"), "requires coordinates"},
		{"post without message", NewEvent(EventNotePosted, "s").At(1, 1), "requires colour and message"},
		{"unknown type", NewEvent("exploded", "s"), "unknown event type"},
		{"missing timestamp", &Event{Type: EventBoardCleared}, "invalid timestamp"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.event.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestEventsChannel(t *testing.T) {
	assert.Equal(t, "corkboard:prod:board_events", EventsChannel("prod"))
}
