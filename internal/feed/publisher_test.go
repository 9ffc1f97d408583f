package feed

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublish struct {
	mu     sync.Mutex
	events []*Event
	block  chan struct{}
	err    error
}

func (r *recordingPublish) publish(ctx context.Context, e *Event) error {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return r.err
}

func (r *recordingPublish) types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func TestPublisher(t *testing.T) {
	t.Run("publishes queued events in order on close", func(t *testing.T) {
		rec := &recordingPublish{}
		p := newPublisher(rec.publish, 8)

		p.Emit(NewEvent(EventBoardShaken, "s"))
		p.Emit(NewEvent(EventBoardCleared, "s"))
		require.NoError(t, p.Close())

		assert.Equal(t, []EventType{EventBoardShaken, EventBoardCleared}, rec.types())
		assert.Zero(t, p.Dropped())
	})

	t.Run("drops events when the queue is full", func(t *testing.T) {
		rec := &recordingPublish{block: make(chan struct{})}
		p := newPublisher(rec.publish, 1)

		// first event is taken by the loop and blocks, second fills the queue
		p.Emit(NewEvent(EventBoardShaken, "s"))
		assert.Eventually(t, func() bool { return len(p.queue) == 0 }, time.Second, 5*time.Millisecond)
		p.Emit(NewEvent(EventBoardShaken, "s"))
		p.Emit(NewEvent(EventBoardCleared, "s"))

		close(rec.block)
		require.NoError(t, p.Close())

		assert.Equal(t, int64(1), p.Dropped())
		assert.Len(t, rec.types(), 2)
	})

	t.Run("emit after close is dropped", func(t *testing.T) {
		rec := &recordingPublish{}
		p := newPublisher(rec.publish, 4)
		require.NoError(t, p.Close())
		require.NoError(t, p.Close())

		p.Emit(NewEvent(EventBoardShaken, "s"))
		assert.Equal(t, int64(1), p.Dropped())
		assert.Empty(t, rec.types())
	})

	t.Run("publish failures do not stop the loop", func(t *testing.T) {
		rec := &recordingPublish{err: errors.New("redis down")}
		p := newPublisher(rec.publish, 4)
		p.Emit(NewEvent(EventBoardShaken, "s"))
		p.Emit(NewEvent(EventBoardShaken, "s"))
		require.NoError(t, p.Close())
		assert.Len(t, rec.types(), 2)
	})
}

func TestPublisherWithRedis(t *testing.T) {
	client, _ := setupTestClient(t)

	sub, err := client.Subscribe(context.Background())
	require.NoError(t, err)
	defer sub.Close()

	p := NewPublisher(client, 4)
	p.Emit(NewEvent(EventBoardCleared, "s-1"))
	require.NoError(t, p.Close())

	got := receiveEvent(t, sub)
	assert.Equal(t, EventBoardCleared, got.Type)
	assert.Equal(t, "s-1", got.Session)
}
