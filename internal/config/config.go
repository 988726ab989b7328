package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures the full configuration surface for the application.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Aggregator AggregatorConfig `mapstructure:"aggregator"`
	Backends   BackendsConfig   `mapstructure:"backends"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

type AppConfig struct {
	Name    string `mapstructure:"name"`
	Env     string `mapstructure:"env"`
	Version string `mapstructure:"version"`
}

type HTTPConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type AggregatorConfig struct {
	CallTimeout time.Duration `mapstructure:"call_timeout"`
}

type BackendsConfig struct {
	Simulated []SimulatedBackendConfig `mapstructure:"simulated"`
	Redis     []RedisBackendConfig     `mapstructure:"redis"`
}

// SimulatedBackendConfig describes an in-process service with random latency.
type SimulatedBackendConfig struct {
	ID          string        `mapstructure:"id"`
	MaxJitter   time.Duration `mapstructure:"max_jitter"`
	FailureRate float64       `mapstructure:"failure_rate"`
	Hang        bool          `mapstructure:"hang"`
}

// RedisBackendConfig describes a caller that answers from Redis keys.
type RedisBackendConfig struct {
	ID        string `mapstructure:"id"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

type RedisConfig struct {
	Address      string        `mapstructure:"address"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	MaxRetries   int           `mapstructure:"max_retries"`
}

// Enabled reports whether a Redis address is configured.
func (c RedisConfig) Enabled() bool {
	return strings.TrimSpace(c.Address) != ""
}

type KafkaConfig struct {
	Brokers      []string      `mapstructure:"brokers"`
	ClientID     string        `mapstructure:"client_id"`
	OutcomeTopic string        `mapstructure:"outcome_topic"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
	Partitions   int           `mapstructure:"partitions"`
}

// Enabled reports whether outcome events should be published.
func (c KafkaConfig) Enabled() bool {
	return len(c.Brokers) > 0 && c.OutcomeTopic != ""
}

type TelemetryConfig struct {
	Endpoint        string        `mapstructure:"endpoint"`
	ServiceName     string        `mapstructure:"service_name"`
	SampleRatio     float64       `mapstructure:"sample_ratio"`
	TracingEnabled  bool          `mapstructure:"tracing_enabled"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
	Path      string `mapstructure:"path"`
}

// Load reads configuration from file and environment variables. An empty
// path yields the defaults overlaid with the environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvPrefix("SCATTER")
	v.SetEnvKeyReplacer(NewEnvReplacer())

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: failed to read config file: %w", err)
		}
	}

	cfg := new(Config)
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks values that would otherwise fail at first use.
func (c *Config) Validate() error {
	if c.Aggregator.CallTimeout <= 0 {
		return fmt.Errorf("config: aggregator.call_timeout must be positive, got %s", c.Aggregator.CallTimeout)
	}
	seen := make(map[string]struct{})
	check := func(id string) error {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("config: backend id must not be empty")
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("config: duplicate backend id %q", id)
		}
		seen[id] = struct{}{}
		return nil
	}
	for _, b := range c.Backends.Simulated {
		if err := check(b.ID); err != nil {
			return err
		}
		if b.FailureRate < 0 || b.FailureRate > 1 {
			return fmt.Errorf("config: backend %q failure_rate must be within [0,1]", b.ID)
		}
	}
	for _, b := range c.Backends.Redis {
		if err := check(b.ID); err != nil {
			return err
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "scatter-gather")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.version", "dev")

	v.SetDefault("http.port", 8080)
	v.SetDefault("http.read_timeout", 5*time.Second)
	v.SetDefault("http.write_timeout", 10*time.Second)
	v.SetDefault("http.idle_timeout", 60*time.Second)

	v.SetDefault("aggregator.call_timeout", 500*time.Millisecond)

	v.SetDefault("backends.simulated", []map[string]any{
		{"id": "svc-a", "max_jitter": "30ms"},
		{"id": "svc-b", "max_jitter": "30ms"},
		{"id": "svc-c", "max_jitter": "30ms"},
	})

	v.SetDefault("redis.dial_timeout", 2*time.Second)
	v.SetDefault("redis.read_timeout", 500*time.Millisecond)
	v.SetDefault("redis.write_timeout", 500*time.Millisecond)
	v.SetDefault("redis.pool_size", 10)

	v.SetDefault("kafka.client_id", "scatter-gather")
	v.SetDefault("kafka.outcome_topic", "scatter.outcomes")
	v.SetDefault("kafka.batch_timeout", 50*time.Millisecond)
	v.SetDefault("kafka.partitions", 6)

	v.SetDefault("telemetry.service_name", "scatter-gather")
	v.SetDefault("telemetry.sample_ratio", 1.0)
	v.SetDefault("telemetry.shutdown_timeout", 5*time.Second)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.namespace", "scatter")
	v.SetDefault("metrics.path", "/metrics")
}

// NewEnvReplacer standardizes environment variable names.
func NewEnvReplacer() *strings.Replacer {
	return strings.NewReplacer(".", "_", "-", "_")
}
