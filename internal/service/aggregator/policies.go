package aggregator

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/acme/scatter-gather/internal/backend"
	"github.com/acme/scatter-gather/internal/domain"
	apperrors "github.com/acme/scatter-gather/pkg/errors"
)

const separator = " "

// FailFast joins every value in input order, or returns the first detected
// call failure. A partial join is never returned.
func (a *Aggregator) FailFast(ctx context.Context, callers []backend.Caller, inputs []string) (string, error) {
	resp, err := a.Aggregate(ctx, Request{Policy: domain.PolicyFailFast, Callers: callers, Inputs: inputs})
	if err != nil {
		return "", err
	}
	return resp.Joined, nil
}

// FailPartial returns the successful values in input order. Failed calls are
// dropped and reported to the observers.
func (a *Aggregator) FailPartial(ctx context.Context, callers []backend.Caller, inputs []string) ([]string, error) {
	resp, err := a.Aggregate(ctx, Request{Policy: domain.PolicyFailPartial, Callers: callers, Inputs: inputs})
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

// FailSoft joins every position in input order, substituting fallback for the
// calls that failed or timed out.
func (a *Aggregator) FailSoft(ctx context.Context, callers []backend.Caller, inputs []string, fallback string) (string, error) {
	resp, err := a.Aggregate(ctx, Request{Policy: domain.PolicyFailSoft, Callers: callers, Inputs: inputs, Fallback: fallback})
	if err != nil {
		return "", err
	}
	return resp.Joined, nil
}

// CompletionOrder sends the same input to every caller and returns the
// successful values in the order they arrived.
func (a *Aggregator) CompletionOrder(ctx context.Context, callers []backend.Caller, input string) ([]string, error) {
	resp, err := a.Aggregate(ctx, Request{Policy: domain.PolicyCompletionOrder, Callers: callers, Input: input})
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

// Request is a policy-neutral aggregation request.
type Request struct {
	Policy  domain.Policy
	Callers []backend.Caller
	// Inputs pairs positionally with Callers. Unused by completion-order.
	Inputs []string
	// Input is broadcast to every caller by completion-order.
	Input    string
	Fallback string
}

// Response carries the combined result plus every per-call outcome.
type Response struct {
	RequestID uuid.UUID
	Policy    domain.Policy
	// Joined is set by fail-fast and fail-soft.
	Joined string
	// Values is set by fail-partial and completion-order.
	Values   []string
	Outcomes []domain.Outcome
}

// Aggregate runs req under its policy. The per-call outcomes are returned
// alongside the result, including on fail-fast errors.
func (a *Aggregator) Aggregate(ctx context.Context, req Request) (Response, error) {
	var (
		calls []domain.Call
		err   error
	)
	switch req.Policy {
	case domain.PolicyFailFast, domain.PolicyFailPartial, domain.PolicyFailSoft:
		calls, err = pairCalls(req.Callers, req.Inputs)
		if err != nil {
			return Response{Policy: req.Policy}, err
		}
	case domain.PolicyCompletionOrder:
		calls = broadcastCalls(req.Callers, req.Input)
	default:
		return Response{Policy: req.Policy}, fmt.Errorf("%w: unknown policy %q", apperrors.ErrInvalidArgument, req.Policy)
	}

	ctx, info, finish := a.startRequest(ctx, req.Policy, len(calls))
	res := a.gather(ctx, info, calls)
	resp := Response{RequestID: info.ID, Policy: req.Policy, Outcomes: res.outcomes}

	switch req.Policy {
	case domain.PolicyFailFast:
		resp.Joined, err = joinAll(res.outcomes)
	case domain.PolicyFailPartial:
		resp.Values = successes(res.outcomes)
	case domain.PolicyFailSoft:
		resp.Joined = joinWithFallback(res.outcomes, req.Fallback)
	case domain.PolicyCompletionOrder:
		resp.Values = res.completed
	}
	finish(err)
	return resp, err
}

// joinAll returns the error of the earliest settled failure, if any.
func joinAll(outcomes []domain.Outcome) (string, error) {
	var first *domain.Outcome
	for i := range outcomes {
		o := &outcomes[i]
		if o.Succeeded() {
			continue
		}
		if first == nil || o.Seq < first.Seq {
			first = o
		}
	}
	if first != nil {
		return "", first.Err
	}

	values := make([]string, len(outcomes))
	for i, o := range outcomes {
		values[i] = o.Value
	}
	return strings.Join(values, separator), nil
}

func successes(outcomes []domain.Outcome) []string {
	values := make([]string, 0, len(outcomes))
	for _, o := range outcomes {
		if o.Succeeded() {
			values = append(values, o.Value)
		}
	}
	return values
}

func joinWithFallback(outcomes []domain.Outcome, fallback string) string {
	values := make([]string, len(outcomes))
	for i, o := range outcomes {
		if o.Succeeded() {
			values[i] = o.Value
		} else {
			values[i] = fallback
		}
	}
	return strings.Join(values, separator)
}
