package aggregator

import (
	"context"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/acme/scatter-gather/internal/backend"
	"github.com/acme/scatter-gather/internal/domain"
	"github.com/acme/scatter-gather/pkg/logger"
)

func TestObserversSeeEveryFailure(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []domain.Outcome
		reqs []RequestInfo
	)
	record := ObserverFunc(func(_ context.Context, req RequestInfo, out domain.Outcome) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, out)
		reqs = append(reqs, req)
	})
	callers := []backend.Caller{failing("A", "e", 0), succeeding("B", 0), hanging(t, "C")}

	got, err := newTestAggregator(WithObserver(record)).FailPartial(context.Background(), callers, xyz)
	require.NoError(t, err)
	assert.Equal(t, []string{"B:Y"}, got)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 2)
	kinds := []domain.OutcomeKind{seen[0].Kind, seen[1].Kind}
	assert.ElementsMatch(t, []domain.OutcomeKind{domain.OutcomeFailure, domain.OutcomeTimeout}, kinds)
	assert.Equal(t, domain.PolicyFailPartial, reqs[0].Policy)
	assert.Equal(t, reqs[0].ID, reqs[1].ID)
}

func TestPanickingObserverDoesNotInterruptAggregation(t *testing.T) {
	bad := ObserverFunc(func(context.Context, RequestInfo, domain.Outcome) { panic("observer bug") })
	callers := []backend.Caller{failing("A", "e", 0), succeeding("B", 0)}

	got, err := newTestAggregator(WithObserver(bad)).FailSoft(context.Background(), callers, []string{"a", "b"}, "NA")
	require.NoError(t, err)
	assert.Equal(t, "NA B:B", got)
}

func TestLogObserverWritesWarning(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	lg := logger.FromZap(zap.New(core))
	callers := []backend.Caller{succeeding("A", 0), failing("B", "Service-2 error", 0)}

	_, err := newTestAggregator(WithObserver(NewLogObserver(lg))).FailSoft(context.Background(), callers, []string{"a", "b"}, "NA")
	require.NoError(t, err)

	entries := logs.FilterMessage("aggregator: call failed").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "B", fields["caller"])
	assert.Equal(t, "fail-soft", fields["policy"])
	assert.Equal(t, "substituted", fields["disposition"])
	assert.Equal(t, "failure", fields["kind"])
	assert.Contains(t, fields["error"], "Service-2 error")
}

func TestMetricsCountOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := MustNewMetrics(reg, "test")
	callers := []backend.Caller{succeeding("A", 0), failing("B", "e", 0), hanging(t, "C")}

	_, err := newTestAggregator(WithMetrics(m)).FailFast(context.Background(), callers, xyz)
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.callOutcomes.WithLabelValues("fail-fast", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.callOutcomes.WithLabelValues("fail-fast", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.callOutcomes.WithLabelValues("fail-fast", "timeout")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.callsInFlight))
	assert.Equal(t, 1, testutil.CollectAndCount(m.requestDuration))

	again := MustNewMetrics(reg, "test")
	assert.Same(t, m.callOutcomes, again.callOutcomes)
}

func TestSpansPerRequestAndCall(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	agg := newTestAggregator(WithTracer(tp.Tracer("test")))
	_, err := agg.CompletionOrder(context.Background(), abc(), "q")
	require.NoError(t, err)

	ended := recorder.Ended()
	require.Len(t, ended, 4)

	var root sdktrace.ReadOnlySpan
	calls := 0
	for _, s := range ended {
		switch s.Name() {
		case "aggregate.completion-order":
			root = s
		case "aggregate.call":
			calls++
		}
	}
	require.NotNil(t, root)
	assert.Equal(t, 3, calls)
	for _, s := range ended {
		if s.Name() == "aggregate.call" {
			assert.Equal(t, root.SpanContext().SpanID(), s.Parent().SpanID())
		}
	}
}
