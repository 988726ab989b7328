package aggregator

import (
	"context"

	"go.uber.org/zap"

	"github.com/acme/scatter-gather/internal/domain"
	"github.com/acme/scatter-gather/pkg/logger"
)

// Observer is notified of every call that failed or timed out. It runs on the
// call's goroutine and must not block for long.
type Observer interface {
	CallFailed(ctx context.Context, req RequestInfo, outcome domain.Outcome)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, req RequestInfo, outcome domain.Outcome)

func (f ObserverFunc) CallFailed(ctx context.Context, req RequestInfo, outcome domain.Outcome) {
	f(ctx, req, outcome)
}

// MultiObserver fans a notification out to several observers in order.
type MultiObserver []Observer

func (m MultiObserver) CallFailed(ctx context.Context, req RequestInfo, outcome domain.Outcome) {
	for _, o := range m {
		if o != nil {
			o.CallFailed(ctx, req, outcome)
		}
	}
}

// LogObserver writes failed calls to the application logger.
type LogObserver struct {
	logger *logger.Logger
}

// NewLogObserver constructs a LogObserver.
func NewLogObserver(lg *logger.Logger) *LogObserver {
	if lg == nil {
		lg = logger.Nop()
	}
	return &LogObserver{logger: lg}
}

func (o *LogObserver) CallFailed(ctx context.Context, req RequestInfo, outcome domain.Outcome) {
	o.logger.WithContext(ctx).Warn("aggregator: call failed",
		zap.String("request_id", req.ID.String()),
		zap.String("policy", string(req.Policy)),
		zap.String("disposition", req.Policy.Disposition()),
		zap.String("caller", outcome.CallerID),
		zap.Int("index", outcome.Index),
		zap.String("kind", string(outcome.Kind)),
		zap.Duration("elapsed", outcome.Duration),
		zap.Error(outcome.Err),
	)
}
