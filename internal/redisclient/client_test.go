package redisclient

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startRedis(t *testing.T) *Client {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp"),
		},
		Started: true,
	})
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client, err := NewClient(endpoint, "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestLock(t *testing.T) {
	client := startRedis(t)
	ctx := context.Background()

	token, ok, err := client.AcquireLock(ctx, "reconcile", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotEmpty(t, token)

	_, ok, err = client.AcquireLock(ctx, "reconcile", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "lock is already held")

	// a foreign token leaves the lock in place
	require.NoError(t, client.ReleaseLock(ctx, "reconcile", "someone-else"))
	_, ok, err = client.AcquireLock(ctx, "reconcile", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, client.ReleaseLock(ctx, "reconcile", token))
	_, ok, err = client.AcquireLock(ctx, "reconcile", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLockExpires(t *testing.T) {
	client := startRedis(t)
	ctx := context.Background()

	_, ok, err := client.AcquireLock(ctx, "short", 100*time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)

	ttl, err := client.GetClient().PTTL(ctx, lockKey("short")).Result()
	require.NoError(t, err)
	assert.LessOrEqual(t, ttl, 100*time.Millisecond)

	assert.Eventually(t, func() bool {
		err := client.GetClient().Get(ctx, lockKey("short")).Err()
		return err == redis.Nil
	}, 2*time.Second, 20*time.Millisecond)
}

func TestNewClientUnreachable(t *testing.T) {
	_, err := NewClient("127.0.0.1:1", "", 0)
	assert.Error(t, err)
}
