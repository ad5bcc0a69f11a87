//go:build integration

// Package containers starts throwaway backing services for integration tests.
package containers

import (
	"context"
	"testing"

	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	redisclient "github.com/LeandroAbranti/sistema-de-abordagem/internal/platform/redis"
)

const redisImage = "redis:7-alpine"

// Redis is a running container plus a client built the way the server builds
// its own, so tests exercise the same URL parsing and ping.
type Redis struct {
	URL    string
	Client *redisclient.Client
}

// NewRedisContainer starts Redis and registers cleanup on t. Any failure is
// fatal to the test.
func NewRedisContainer(t testing.TB) *Redis {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx, redisImage)
	if err != nil {
		t.Fatalf("start redis container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("terminate redis container: %v", err)
		}
	})

	url, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("redis connection string: %v", err)
	}
	client, err := redisclient.New(ctx, url)
	if err != nil {
		t.Fatalf("connect to redis: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	return &Redis{URL: url, Client: client}
}

// FlushAll removes every key. Call it between tests sharing one container.
func (r *Redis) FlushAll(ctx context.Context) error {
	return r.Client.FlushAll(ctx).Err()
}
