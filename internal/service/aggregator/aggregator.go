package aggregator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/acme/scatter-gather/internal/backend"
	"github.com/acme/scatter-gather/internal/domain"
	apperrors "github.com/acme/scatter-gather/pkg/errors"
	"github.com/acme/scatter-gather/pkg/logger"
)

// DefaultCallTimeout bounds each call when no timeout is configured.
const DefaultCallTimeout = 500 * time.Millisecond

var errNilCaller = errors.New("nil caller")

// Aggregator fans a request out to many callers and combines their outcomes.
type Aggregator struct {
	timeout  time.Duration
	logger   *logger.Logger
	observer Observer
	metrics  *Metrics
	tracer   trace.Tracer
}

// Option customises an Aggregator.
type Option func(*Aggregator)

// WithCallTimeout sets the per-call deadline.
func WithCallTimeout(d time.Duration) Option {
	return func(a *Aggregator) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithLogger sets the logger used for diagnostics.
func WithLogger(lg *logger.Logger) Option {
	return func(a *Aggregator) {
		if lg != nil {
			a.logger = lg
		}
	}
}

// WithObserver registers observers notified of every failed call.
func WithObserver(observers ...Observer) Option {
	return func(a *Aggregator) {
		all := append(MultiObserver{}, observers...)
		if a.observer != nil {
			all = append(MultiObserver{a.observer}, all...)
		}
		a.observer = all
	}
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *Metrics) Option {
	return func(a *Aggregator) { a.metrics = m }
}

// WithTracer overrides the OpenTelemetry tracer.
func WithTracer(t trace.Tracer) Option {
	return func(a *Aggregator) {
		if t != nil {
			a.tracer = t
		}
	}
}

// New constructs an aggregator.
func New(opts ...Option) *Aggregator {
	a := &Aggregator{
		timeout: DefaultCallTimeout,
		logger:  logger.Nop(),
		tracer:  otel.Tracer("scatter.aggregator"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// CallTimeout returns the per-call deadline in effect.
func (a *Aggregator) CallTimeout() time.Duration {
	return a.timeout
}

// RequestInfo identifies one aggregation request.
type RequestInfo struct {
	ID     uuid.UUID
	Policy domain.Policy
}

type gathered struct {
	info     RequestInfo
	outcomes []domain.Outcome
	// completed holds success values in the order the calls settled.
	completed []string
}

func pairCalls(callers []backend.Caller, inputs []string) ([]domain.Call, error) {
	if len(callers) != len(inputs) {
		return nil, fmt.Errorf("%w: services and messages size mismatch (%d callers, %d inputs)",
			apperrors.ErrInvalidArgument, len(callers), len(inputs))
	}
	calls := make([]domain.Call, len(callers))
	for i := range callers {
		calls[i] = domain.Call{Index: i, Caller: callers[i], Input: inputs[i]}
	}
	return calls, nil
}

func broadcastCalls(callers []backend.Caller, input string) []domain.Call {
	calls := make([]domain.Call, len(callers))
	for i, c := range callers {
		calls[i] = domain.Call{Index: i, Caller: c, Input: input}
	}
	return calls
}

// gather dispatches every call before waiting on any of them and returns once
// all of them have settled.
func (a *Aggregator) gather(ctx context.Context, info RequestInfo, calls []domain.Call) gathered {
	outcomes := make([]domain.Outcome, len(calls))
	completed := make([]string, 0, len(calls))

	var (
		g   errgroup.Group
		mu  sync.Mutex
		seq int
	)
	for i, call := range calls {
		i, call := i, call
		g.Go(func() error {
			out := a.invoke(ctx, info, call)

			mu.Lock()
			seq++
			out.Seq = seq
			if out.Succeeded() {
				completed = append(completed, out.Value)
			}
			mu.Unlock()

			if !out.Succeeded() {
				a.notify(ctx, info, out)
			}
			outcomes[i] = out
			return nil
		})
	}
	_ = g.Wait()

	return gathered{info: info, outcomes: outcomes, completed: completed}
}

type reply struct {
	value string
	err   error
}

// invoke races one call against the per-call deadline. A late reply lands in
// the buffered channel and is dropped.
func (a *Aggregator) invoke(ctx context.Context, info RequestInfo, call domain.Call) (out domain.Outcome) {
	out = domain.Outcome{Index: call.Index, CallerID: call.CallerID(), Input: call.Input}

	cctx, span := a.tracer.Start(ctx, "aggregate.call", trace.WithAttributes(
		attribute.String("request.id", info.ID.String()),
		attribute.String("caller.id", out.CallerID),
		attribute.Int("call.index", call.Index),
	))
	defer span.End()

	a.metrics.callStarted()
	start := time.Now()
	defer func() {
		out.Duration = time.Since(start)
		a.metrics.callSettled(info.Policy, out)
	}()

	if call.Caller == nil {
		out.Kind = domain.OutcomeFailure
		out.Err = apperrors.NewCallError(apperrors.CallKindFailure, out.CallerID, call.Index, errNilCaller)
		span.SetStatus(codes.Error, out.Err.Error())
		return out
	}

	cctx, cancel := context.WithTimeout(cctx, a.timeout)
	defer cancel()

	done := make(chan reply, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- reply{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		v, err := call.Caller.Invoke(cctx, call.Input)
		done <- reply{value: v, err: err}
	}()

	select {
	case r := <-done:
		switch {
		case r.err == nil:
			out.Kind = domain.OutcomeSuccess
			out.Value = r.value
		case errors.Is(r.err, context.DeadlineExceeded) && errors.Is(cctx.Err(), context.DeadlineExceeded):
			out.Kind = domain.OutcomeTimeout
			out.Err = apperrors.NewCallError(apperrors.CallKindTimeout, out.CallerID, call.Index, r.err)
		default:
			out.Kind = domain.OutcomeFailure
			out.Err = apperrors.NewCallError(apperrors.CallKindFailure, out.CallerID, call.Index, r.err)
		}
	case <-cctx.Done():
		if errors.Is(cctx.Err(), context.DeadlineExceeded) {
			out.Kind = domain.OutcomeTimeout
			out.Err = apperrors.NewCallError(apperrors.CallKindTimeout, out.CallerID, call.Index,
				fmt.Errorf("no response within %s: %w", a.timeout, cctx.Err()))
		} else {
			out.Kind = domain.OutcomeFailure
			out.Err = apperrors.NewCallError(apperrors.CallKindFailure, out.CallerID, call.Index, cctx.Err())
		}
	}

	span.SetAttributes(attribute.String("outcome.kind", string(out.Kind)))
	if out.Err != nil {
		span.RecordError(out.Err)
		span.SetStatus(codes.Error, string(out.Kind))
	}
	return out
}

func (a *Aggregator) notify(ctx context.Context, info RequestInfo, out domain.Outcome) {
	if a.observer == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("aggregator: observer panic",
				zap.String("request_id", info.ID.String()),
				zap.Any("panic", r),
			)
		}
	}()
	a.observer.CallFailed(ctx, info, out)
}

// startRequest opens the aggregation span and returns a finisher that records
// its duration and status.
func (a *Aggregator) startRequest(ctx context.Context, policy domain.Policy, n int) (context.Context, RequestInfo, func(error)) {
	if ctx == nil {
		ctx = context.Background()
	}
	info := RequestInfo{ID: uuid.New(), Policy: policy}
	sctx, span := a.tracer.Start(ctx, "aggregate."+string(policy), trace.WithAttributes(
		attribute.String("request.id", info.ID.String()),
		attribute.String("policy", string(policy)),
		attribute.Int("call.count", n),
	))
	a.logger.WithContext(sctx).Debug("aggregator: request started",
		zap.String("request_id", info.ID.String()),
		zap.String("policy", string(policy)),
		zap.Int("calls", n),
	)
	start := time.Now()
	return sctx, info, func(err error) {
		a.metrics.observeRequest(policy, err, time.Since(start))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}
