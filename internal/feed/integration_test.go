//go:build integration
// +build integration

package feed

import (
	"context"
	"fmt"
	"testing"

	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const redisPort = nat.Port("6379/tcp")

// startRedis runs a throwaway Redis container and returns its redis:// URL
func startRedis(t *testing.T) string {
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{string(redisPort)},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err, "Failed to start Redis container")
	t.Cleanup(func() { container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, redisPort)
	require.NoError(t, err)

	return fmt.Sprintf("redis://%s:%s", host, port.Port())
}

func TestFeedAgainstRealRedis(t *testing.T) {
	url := startRedis(t)
	ctx := context.Background()

	client, err := Dial(url, "integration")
	require.NoError(t, err)
	defer client.Close()
	require.NoError(t, client.Ping(ctx))

	sub, err := client.Subscribe(ctx)
	require.NoError(t, err)
	defer sub.Close()

	p := NewPublisher(client, 16)
	for i := 0; i < 5; i++ {
		p.Emit(NewEvent(EventNotePinned, "it").At(i, i))
	}
	require.NoError(t, p.Close())

	for i := 0; i < 5; i++ {
		got := receiveEvent(t, sub)
		assert.Equal(t, EventNotePinned, got.Type)
		assert.Equal(t, i, *got.X)
	}
}
