// Package testutil runs in-process corkboard servers for end-to-end tests.
package testutil

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dyluth/corkboard/internal/feed"
	"github.com/dyluth/corkboard/internal/metrics"
	"github.com/dyluth/corkboard/internal/server"
	"github.com/dyluth/corkboard/pkg/board"
	"github.com/dyluth/corkboard/pkg/client"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// E2EEnvironment is a running server on a loopback port with metrics and,
// optionally, a Redis event feed backed by miniredis.
type E2EEnvironment struct {
	T            *testing.T
	Ctx          context.Context
	Board        *board.Board
	Server       *server.Server
	Metrics      *metrics.Metrics
	Addr         string
	InstanceName string

	// Set only when the feed is enabled
	Redis     *miniredis.Miniredis
	Feed      *feed.Client
	Publisher *feed.Publisher
}

// DefaultBoardConfig is a 20x20 board with 2x2 notes in red and blue.
func DefaultBoardConfig() board.Config {
	return board.Config{Width: 20, Height: 20, NoteWidth: 2, NoteHeight: 2, Colours: []string{"red", "blue"}}
}

// SetupE2EEnvironment starts a server for cfg. Everything it starts is
// stopped by t.Cleanup.
func SetupE2EEnvironment(t *testing.T, cfg board.Config, withFeed bool) *E2EEnvironment {
	t.Helper()

	b, err := board.New(cfg)
	require.NoError(t, err, "Failed to create board")

	ctx, cancel := context.WithCancel(context.Background())
	env := &E2EEnvironment{
		T:            t,
		Ctx:          ctx,
		Board:        b,
		Metrics:      metrics.New(b),
		InstanceName: fmt.Sprintf("test-e2e-%d", time.Now().UnixNano()),
	}

	opts := []server.Option{server.WithMetrics(env.Metrics)}
	if withFeed {
		env.Redis = miniredis.RunT(t)
		env.Feed, err = feed.NewClient(&redis.Options{Addr: env.Redis.Addr()}, env.InstanceName)
		require.NoError(t, err, "Failed to create feed client")
		env.Publisher = feed.NewPublisher(env.Feed, 64)
		opts = append(opts, server.WithEvents(env.Publisher))
	}
	env.Server = server.New(b, opts...)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err, "Failed to listen on loopback")
	env.Addr = ln.Addr().String()

	done := make(chan struct{})
	go func() {
		defer close(done)
		env.Server.Serve(ctx, ln)
	}()

	t.Cleanup(func() {
		cancel()
		<-done
		if env.Publisher != nil {
			env.Publisher.Close()
		}
		if env.Feed != nil {
			env.Feed.Close()
		}
	})

	return env
}

// Dial connects a protocol client to the environment's server.
func (env *E2EEnvironment) Dial() *client.Client {
	env.T.Helper()

	ctx, cancel := context.WithTimeout(env.Ctx, 2*time.Second)
	defer cancel()

	c, err := client.Dial(ctx, env.Addr)
	require.NoError(env.T, err, "Failed to dial board server")
	env.T.Cleanup(func() { c.Close() })
	return c
}

// Subscribe opens a subscription to the environment's event feed.
func (env *E2EEnvironment) Subscribe() *feed.Subscription {
	env.T.Helper()
	require.NotNil(env.T, env.Feed, "Environment was started without a feed")

	sub, err := env.Feed.Subscribe(env.Ctx)
	require.NoError(env.T, err, "Failed to subscribe to feed")
	env.T.Cleanup(func() { sub.Close() })
	return sub
}

// WaitForEvent returns the next event of the given type, skipping others.
// Fails the test after 5 seconds.
func (env *E2EEnvironment) WaitForEvent(sub *feed.Subscription, eventType feed.EventType) *feed.Event {
	env.T.Helper()

	timeout := time.After(5 * time.Second)
	for {
		select {
		case e, ok := <-sub.Events():
			require.True(env.T, ok, "Subscription closed while waiting for %s", eventType)
			if e.Type == eventType {
				return e
			}
		case <-timeout:
			env.T.Fatalf("Timeout waiting for %s event", eventType)
			return nil
		}
	}
}
