package errors

import (
	"errors"
	"strings"
	"testing"
)

func TestCallErrorMatchesKindAndCause(t *testing.T) {
	cause := errors.New("Service-1 error")
	err := error(NewCallError(CallKindFailure, "Service-A", 0, cause))

	if !errors.Is(err, ErrCallFailure) {
		t.Fatalf("expected %v to match ErrCallFailure", err)
	}
	if errors.Is(err, ErrCallTimeout) {
		t.Fatalf("failure must not match ErrCallTimeout")
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected %v to wrap its cause", err)
	}
	if !strings.Contains(err.Error(), "Service-1 error") {
		t.Fatalf("expected message to carry cause, got %q", err.Error())
	}
}

func TestCallErrorTimeout(t *testing.T) {
	err := error(NewCallError(CallKindTimeout, "", 2, nil))

	if !errors.Is(err, ErrCallTimeout) {
		t.Fatalf("expected %v to match ErrCallTimeout", err)
	}
	if got := err.Error(); got != "call 2 (unknown): call timed out" {
		t.Fatalf("unexpected message %q", got)
	}

	ce, ok := AsCallError(Wrap(err, "aggregate"))
	if !ok || ce.Index != 2 {
		t.Fatalf("expected wrapped call error at index 2, got %+v", ce)
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(nil, "ctx") != nil {
		t.Fatal("expected nil")
	}
}
