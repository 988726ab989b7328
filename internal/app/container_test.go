package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acme/scatter-gather/internal/config"
	"github.com/acme/scatter-gather/pkg/logger"
)

func TestNewWiresDefaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	c, err := New(context.Background(), cfg, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close(context.Background()) })

	assert.Equal(t, []string{"svc-a", "svc-b", "svc-c"}, c.Registry().IDs())
	assert.Equal(t, 500*time.Millisecond, c.Aggregator().CallTimeout())
	assert.NotNil(t, c.MetricsRegistry())
	assert.Nil(t, c.Redis)
	assert.Nil(t, c.Kafka)
	require.NoError(t, c.EnsureTopics(context.Background()))

	got, err := c.Aggregator().FailFast(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestNewRejectsRedisBackendsWithoutRedis(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Backends.Redis = []config.RedisBackendConfig{{ID: "fares"}}

	_, err = New(context.Background(), cfg, logger.Nop())
	require.Error(t, err)
}

func TestNewMetricsDisabled(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Metrics.Enabled = false

	c, err := New(context.Background(), cfg, logger.Nop())
	require.NoError(t, err)
	assert.Nil(t, c.MetricsRegistry())
}
