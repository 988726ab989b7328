package aggregator

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/acme/scatter-gather/internal/domain"
	apperrors "github.com/acme/scatter-gather/pkg/errors"
)

// Metrics exposes Prometheus collectors that report aggregator activity.
type Metrics struct {
	requestDuration *prometheus.HistogramVec
	callDuration    *prometheus.HistogramVec
	callOutcomes    *prometheus.CounterVec
	callsInFlight   prometheus.Gauge
}

var (
	defaultMetricsOnce sync.Once
	sharedMetrics      *Metrics
)

// DefaultMetrics returns the instance registered with the global registry.
// Collectors are created once so repeated construction does not panic.
func DefaultMetrics(namespace string) *Metrics {
	defaultMetricsOnce.Do(func() {
		sharedMetrics = MustNewMetrics(prometheus.DefaultRegisterer, namespace)
	})
	return sharedMetrics
}

// MustNewMetrics constructs Metrics registered with reg. Collectors that are
// already registered under the same name are reused; any other registration
// error panics.
func MustNewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "scatter"
	}

	m := &Metrics{
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "aggregator",
				Name:      "request_duration_seconds",
				Help:      "Time from dispatch until every call of a request settled.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"policy", "status"},
		),
		callDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "aggregator",
				Name:      "call_duration_seconds",
				Help:      "Time until an individual call settled.",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"caller"},
		),
		callOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "aggregator",
				Name:      "call_outcomes_total",
				Help:      "Settled calls by policy and outcome kind.",
			},
			[]string{"policy", "kind"},
		),
		callsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "aggregator",
				Name:      "calls_in_flight",
				Help:      "Calls dispatched and not yet settled.",
			},
		),
	}

	m.requestDuration = register(reg, m.requestDuration)
	m.callDuration = register(reg, m.callDuration)
	m.callOutcomes = register(reg, m.callOutcomes)
	m.callsInFlight = register(reg, m.callsInFlight)
	return m
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

func (m *Metrics) callStarted() {
	if m == nil {
		return
	}
	m.callsInFlight.Inc()
}

func (m *Metrics) callSettled(policy domain.Policy, out domain.Outcome) {
	if m == nil {
		return
	}
	m.callsInFlight.Dec()
	m.callOutcomes.WithLabelValues(string(policy), string(out.Kind)).Inc()
	m.callDuration.WithLabelValues(out.CallerID).Observe(out.Duration.Seconds())
}

func (m *Metrics) observeRequest(policy domain.Policy, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requestDuration.WithLabelValues(string(policy), requestStatus(err)).Observe(elapsed.Seconds())
}

func requestStatus(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, apperrors.ErrCallTimeout):
		return "timeout"
	default:
		return "failed"
	}
}
