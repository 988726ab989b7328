package backend

import "context"

// Caller is one remote-call-like unit of work. Implementations may ignore ctx;
// the aggregator enforces its own deadline regardless.
type Caller interface {
	ID() string
	Invoke(ctx context.Context, input string) (string, error)
}

// CallerFunc adapts a function to the Caller interface.
type CallerFunc struct {
	Name string
	Fn   func(ctx context.Context, input string) (string, error)
}

// NewCallerFunc returns a Caller backed by fn.
func NewCallerFunc(id string, fn func(ctx context.Context, input string) (string, error)) *CallerFunc {
	return &CallerFunc{Name: id, Fn: fn}
}

func (f *CallerFunc) ID() string { return f.Name }

func (f *CallerFunc) Invoke(ctx context.Context, input string) (string, error) {
	return f.Fn(ctx, input)
}
