package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/acme/scatter-gather/internal/backend"
	"github.com/acme/scatter-gather/internal/backend/rediscache"
	"github.com/acme/scatter-gather/internal/backend/simulated"
	"github.com/acme/scatter-gather/internal/config"
	"github.com/acme/scatter-gather/internal/infra/redis"
	"github.com/acme/scatter-gather/internal/queue"
	"github.com/acme/scatter-gather/internal/service/aggregator"
	"github.com/acme/scatter-gather/pkg/logger"
)

// Container wires together shared infrastructure dependencies.
type Container struct {
	Config *config.Config
	Logger *logger.Logger

	Redis *redis.Client
	Kafka *queue.Kafka

	registry   *backend.Registry
	aggregator *aggregator.Aggregator
	publisher  *queue.OutcomePublisher
	metrics    *prometheus.Registry
}

// Build constructs a container for the given configuration path. An empty
// path uses defaults and environment variables only.
func Build(ctx context.Context, configPath string) (*Container, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	lg, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, err
	}

	return New(ctx, cfg, lg)
}

// New constructs a container from an already loaded configuration.
func New(ctx context.Context, cfg *config.Config, lg *logger.Logger) (*Container, error) {
	if lg == nil {
		lg = logger.Nop()
	}
	c := &Container{Config: cfg, Logger: lg}

	if cfg.Redis.Enabled() {
		client, err := redis.NewClient(ctx, cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("bootstrap redis: %w", err)
		}
		c.Redis = client
	} else if len(cfg.Backends.Redis) > 0 {
		return nil, fmt.Errorf("bootstrap redis: %d redis backends configured without redis.address", len(cfg.Backends.Redis))
	}

	if cfg.Kafka.Enabled() {
		k, err := queue.NewKafka(cfg.Kafka)
		if err != nil {
			_ = c.Close(ctx)
			return nil, fmt.Errorf("bootstrap kafka: %w", err)
		}
		c.Kafka = k
	}

	if err := c.wire(); err != nil {
		_ = c.Close(ctx)
		return nil, err
	}
	return c, nil
}

func (c *Container) wire() error {
	callers := make([]backend.Caller, 0, len(c.Config.Backends.Simulated)+len(c.Config.Backends.Redis))
	for _, b := range c.Config.Backends.Simulated {
		callers = append(callers, simulated.NewService(b))
	}
	for _, b := range c.Config.Backends.Redis {
		callers = append(callers, rediscache.NewCaller(c.Redis.Inner(), b))
	}
	registry, err := backend.NewRegistry(callers...)
	if err != nil {
		return fmt.Errorf("bootstrap backends: %w", err)
	}
	c.registry = registry

	opts := []aggregator.Option{
		aggregator.WithCallTimeout(c.Config.Aggregator.CallTimeout),
		aggregator.WithLogger(c.Logger),
		aggregator.WithObserver(aggregator.NewLogObserver(c.Logger)),
	}

	if c.Kafka != nil {
		c.publisher = queue.NewOutcomePublisher(c.Kafka, c.Config.Kafka.OutcomeTopic, c.Logger)
		opts = append(opts, aggregator.WithObserver(c.publisher))
	}

	if c.Config.Metrics.Enabled {
		c.metrics = prometheus.NewRegistry()
		c.metrics.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		opts = append(opts, aggregator.WithMetrics(aggregator.MustNewMetrics(c.metrics, c.Config.Metrics.Namespace)))
	}

	c.aggregator = aggregator.New(opts...)
	c.Logger.Info("container: wired",
		zap.Strings("backends", registry.IDs()),
		zap.Duration("call_timeout", c.aggregator.CallTimeout()),
		zap.Bool("kafka", c.publisher != nil),
		zap.Bool("metrics", c.metrics != nil),
	)
	return nil
}

// Registry exposes the named callers.
func (c *Container) Registry() *backend.Registry {
	return c.registry
}

// Aggregator exposes the configured aggregator.
func (c *Container) Aggregator() *aggregator.Aggregator {
	return c.aggregator
}

// MetricsRegistry returns the Prometheus registry, or nil when metrics are disabled.
func (c *Container) MetricsRegistry() *prometheus.Registry {
	return c.metrics
}

// EnsureTopics ensures the outcome topic exists.
func (c *Container) EnsureTopics(ctx context.Context) error {
	if c.Kafka == nil {
		return nil
	}
	return c.Kafka.EnsureTopics(ctx, []string{c.Config.Kafka.OutcomeTopic}, c.Config.Kafka.Partitions, 1)
}

// Close releases all held resources.
func (c *Container) Close(ctx context.Context) error {
	var errs []error
	if c.publisher != nil {
		if err := c.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("outcome publisher close: %w", err))
		}
	}
	if c.Kafka != nil {
		if err := c.Kafka.Close(); err != nil {
			errs = append(errs, fmt.Errorf("kafka close: %w", err))
		}
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		}
	}
	if c.Logger != nil {
		c.Logger.Sync()
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
