package handlers

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/acme/scatter-gather/internal/domain"
	"github.com/acme/scatter-gather/internal/service/aggregator"
	apperrors "github.com/acme/scatter-gather/pkg/errors"
)

type aggregateRequest struct {
	Callers  []string `json:"callers"`
	Inputs   []string `json:"inputs"`
	Input    string   `json:"input"`
	Fallback string   `json:"fallback"`
}

type outcomeResponse struct {
	Index      int    `json:"index"`
	Caller     string `json:"caller"`
	Kind       string `json:"kind"`
	Value      string `json:"value,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms"`
	Seq        int    `json:"seq"`
}

type aggregateResponse struct {
	RequestID string            `json:"request_id"`
	Policy    string            `json:"policy"`
	Result    any               `json:"result,omitempty"`
	Error     string            `json:"error,omitempty"`
	Outcomes  []outcomeResponse `json:"outcomes"`
}

func (h *HandlerSet) aggregate(ctx *fiber.Ctx) error {
	policy, err := domain.ParsePolicy(ctx.Params("policy"))
	if err != nil {
		return fiber.NewError(http.StatusNotFound, err.Error())
	}

	var req aggregateRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	if len(req.Callers) == 0 {
		return fiber.NewError(http.StatusBadRequest, "callers must not be empty")
	}

	callers, err := h.registry.Resolve(req.Callers)
	if err != nil {
		return translateError(err)
	}

	resp, err := h.aggregator.Aggregate(ctx.UserContext(), aggregator.Request{
		Policy:   policy,
		Callers:  callers,
		Inputs:   req.Inputs,
		Input:    req.Input,
		Fallback: req.Fallback,
	})

	var callErr *apperrors.CallError
	if err != nil && !errors.As(err, &callErr) {
		return translateError(err)
	}

	body := aggregateResponse{
		RequestID: resp.RequestID.String(),
		Policy:    string(resp.Policy),
		Outcomes:  toOutcomeResponses(resp.Outcomes),
	}
	if err != nil {
		body.Error = err.Error()
		return ctx.Status(statusFor(err)).JSON(body)
	}

	switch policy {
	case domain.PolicyFailFast, domain.PolicyFailSoft:
		body.Result = resp.Joined
	default:
		body.Result = resp.Values
	}
	return ctx.Status(http.StatusOK).JSON(body)
}

func toOutcomeResponses(outcomes []domain.Outcome) []outcomeResponse {
	out := make([]outcomeResponse, 0, len(outcomes))
	for _, o := range outcomes {
		r := outcomeResponse{
			Index:      o.Index,
			Caller:     o.CallerID,
			Kind:       string(o.Kind),
			Value:      o.Value,
			DurationMs: o.Duration.Milliseconds(),
			Seq:        o.Seq,
		}
		if o.Err != nil {
			r.Error = o.Err.Error()
		}
		out = append(out, r)
	}
	return out
}
