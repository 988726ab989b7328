package queue

import (
	"time"

	"github.com/google/uuid"

	"github.com/acme/scatter-gather/internal/domain"
	apperrors "github.com/acme/scatter-gather/pkg/errors"
)

// OutcomeMessage reports a call that failed or timed out during aggregation.
type OutcomeMessage struct {
	RequestID   uuid.UUID `json:"request_id"`
	Policy      string    `json:"policy"`
	Disposition string    `json:"disposition"`
	CallerID    string    `json:"caller_id"`
	Index       int       `json:"index"`
	Input       string    `json:"input"`
	Kind        string    `json:"kind"`
	Error       string    `json:"error,omitempty"`
	DurationMs  int64     `json:"duration_ms"`
	OccurredAt  time.Time `json:"occurred_at"`
}

func newOutcomeMessage(requestID uuid.UUID, policy domain.Policy, out domain.Outcome, now time.Time) OutcomeMessage {
	msg := OutcomeMessage{
		RequestID:   requestID,
		Policy:      string(policy),
		Disposition: policy.Disposition(),
		CallerID:    out.CallerID,
		Index:       out.Index,
		Input:       out.Input,
		Kind:        string(out.Kind),
		DurationMs:  int64(out.Duration / time.Millisecond),
		OccurredAt:  now.UTC(),
	}
	if out.Err != nil {
		msg.Error = out.Err.Error()
		if ce, ok := apperrors.AsCallError(out.Err); ok && ce.Err != nil {
			msg.Error = ce.Err.Error()
		}
	}
	return msg
}
