package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acme/scatter-gather/internal/config"
)

func configWithoutBrokers() config.KafkaConfig {
	return config.KafkaConfig{OutcomeTopic: "scatter.outcomes"}
}

func TestNewWriterIsAsync(t *testing.T) {
	k, err := NewKafka(config.KafkaConfig{Brokers: []string{"localhost:9092"}, BatchTimeout: 20 * time.Millisecond})
	require.NoError(t, err)

	w := k.NewWriter("scatter.outcomes", nil)
	assert.True(t, w.Async)
	assert.Equal(t, "scatter.outcomes", w.Topic)
	assert.Equal(t, 20*time.Millisecond, w.BatchTimeout)
	require.NoError(t, w.Close())
}
