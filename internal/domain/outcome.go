package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/acme/scatter-gather/internal/backend"
)

// OutcomeKind enumerates the terminal states of a single call.
type OutcomeKind string

const (
	OutcomeSuccess OutcomeKind = "success"
	OutcomeFailure OutcomeKind = "failure"
	OutcomeTimeout OutcomeKind = "timeout"
)

// Policy selects how the outcomes of one request are combined.
type Policy string

const (
	PolicyFailFast        Policy = "fail-fast"
	PolicyFailPartial     Policy = "fail-partial"
	PolicyFailSoft        Policy = "fail-soft"
	PolicyCompletionOrder Policy = "completion-order"
)

// Policies lists every supported policy.
func Policies() []Policy {
	return []Policy{PolicyFailFast, PolicyFailPartial, PolicyFailSoft, PolicyCompletionOrder}
}

// ParsePolicy accepts the canonical names plus underscore spellings.
func ParsePolicy(raw string) (Policy, error) {
	normalized := Policy(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(raw)), "_", "-"))
	for _, p := range Policies() {
		if p == normalized {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown policy %q", raw)
}

// Disposition names what the policy does with a failed call.
func (p Policy) Disposition() string {
	switch p {
	case PolicyFailFast:
		return "fatal"
	case PolicyFailPartial:
		return "dropped"
	case PolicyFailSoft:
		return "substituted"
	case PolicyCompletionOrder:
		return "omitted"
	default:
		return "unknown"
	}
}

// Call pairs a caller with the input it receives for one request.
type Call struct {
	Index  int
	Caller backend.Caller
	Input  string
}

// CallerID returns the caller's id, tolerating a nil caller.
func (c Call) CallerID() string {
	if c.Caller == nil {
		return ""
	}
	return c.Caller.ID()
}

// Outcome is the terminal result of one call.
type Outcome struct {
	Index    int
	CallerID string
	Input    string
	Kind     OutcomeKind
	Value    string
	Err      error
	Duration time.Duration
	// Seq is the 1-based position at which the call settled within its request.
	Seq int
}

// Succeeded reports whether the call produced a value.
func (o Outcome) Succeeded() bool {
	return o.Kind == OutcomeSuccess
}
