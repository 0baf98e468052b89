//go:build !no_containers

package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/crisismatch/core/model"
	"github.com/kilianp07/crisismatch/infra/logger"
)

func startRedis(ctx context.Context, t *testing.T) (tc.Container, string) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp"),
	}
	cont, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Skipf("redis container unavailable: %v", err)
	}
	host, err := cont.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := cont.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	return cont, fmt.Sprintf("redis://%s:%s/0", host, port.Port())
}

func TestRedisCacheRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("short mode")
	}
	ctx := context.Background()
	cont, url := startRedis(ctx, t)
	defer func() { _ = cont.Terminate(ctx) }()

	cfg := DefaultConfig()
	cfg.URL = url
	rdb, err := NewClient(ctx, cfg)
	require.NoError(t, err)
	defer func() { _ = rdb.Close() }()

	c := NewRedisCache[model.QualityScore](rdb, cfg.Prefix+"quality:", logger.NopLogger{})
	c.Set(ctx, "r1", model.QualityScore{ResponderID: "r1", Overall: 0.82, Samples: 4}, time.Minute)

	got, ok := c.Get(ctx, "r1")
	require.True(t, ok)
	assert.Equal(t, "r1", got.ResponderID)
	assert.InDelta(t, 0.82, got.Overall, 1e-9)

	c.Delete(ctx, "r1")
	_, ok = c.Get(ctx, "r1")
	assert.False(t, ok)
}
