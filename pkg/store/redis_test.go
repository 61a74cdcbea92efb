package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// startRedis runs a throwaway Redis container for the test and returns its
// address. The test is skipped when no container runtime is available.
func startRedis(t *testing.T) string {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("Failed to start Redis container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	addr, err := container.Endpoint(ctx, "")
	require.NoError(t, err)
	return addr
}

func TestRedisStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping Redis container test in short mode")
	}
	addr := startRedis(t)

	runConformance(t, func(t *testing.T) Store {
		s, err := NewRedisStoreFromOptions(RedisOptions{Addr: addr})
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })

		// Subtests share the container; start each one empty.
		flush := s.client.B().Flushall().Build()
		require.NoError(t, s.client.Do(context.Background(), flush).Error())
		return s
	})
}

func TestTokenIndexKey(t *testing.T) {
	a := tokenIndexKey("u1", "https://api.example", "/api")
	b := tokenIndexKey("u1", "https://api.example", "/api/")
	c := tokenIndexKey("u1:https", "//api.example", "/api")

	require.NotEqual(t, a, b)
	require.NotEqual(t, a, c)
	require.Contains(t, a, tokenIndexPrefix)
}
