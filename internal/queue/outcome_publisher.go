package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/acme/scatter-gather/internal/domain"
	"github.com/acme/scatter-gather/internal/service/aggregator"
	"github.com/acme/scatter-gather/pkg/logger"
)

// MessageWriter is the subset of kafka.Writer used by the publisher.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// OutcomePublisher publishes failed-call events. It implements
// aggregator.Observer.
type OutcomePublisher struct {
	writer MessageWriter
	logger *logger.Logger
	now    func() time.Time
}

var _ aggregator.Observer = (*OutcomePublisher)(nil)

// NewOutcomePublisher constructs a publisher for the given topic.
func NewOutcomePublisher(k *Kafka, topic string, lg *logger.Logger) *OutcomePublisher {
	if lg == nil {
		lg = logger.Nop()
	}
	writer := k.NewWriter(topic, func(err error) {
		lg.Warn("outcome publisher: delivery failed", zap.String("topic", topic), zap.Error(err))
	})
	return newOutcomePublisher(writer, lg)
}

func newOutcomePublisher(w MessageWriter, lg *logger.Logger) *OutcomePublisher {
	return &OutcomePublisher{writer: w, logger: lg, now: time.Now}
}

// PublishOutcome emits one outcome message keyed by request id.
func (p *OutcomePublisher) PublishOutcome(ctx context.Context, msg OutcomeMessage) error {
	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("outcome publisher: marshal message: %w", err)
	}
	record := kafka.Message{
		Key:   msg.RequestID[:],
		Value: value,
		Time:  msg.OccurredAt,
	}
	if err := p.writer.WriteMessages(ctx, record); err != nil {
		return fmt.Errorf("outcome publisher: write message: %w", err)
	}
	return nil
}

// CallFailed publishes the outcome; publish errors are logged, never returned.
func (p *OutcomePublisher) CallFailed(ctx context.Context, req aggregator.RequestInfo, out domain.Outcome) {
	msg := newOutcomeMessage(req.ID, req.Policy, out, p.now())
	if err := p.PublishOutcome(context.WithoutCancel(ctx), msg); err != nil {
		p.logger.Warn("outcome publisher: publish", zap.String("request_id", req.ID.String()), zap.Error(err))
	}
}

// Close closes the publisher.
func (p *OutcomePublisher) Close() error {
	return p.writer.Close()
}
