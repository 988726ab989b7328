package backend

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	apperrors "github.com/acme/scatter-gather/pkg/errors"
)

// Registry resolves callers by id.
type Registry struct {
	mu      sync.RWMutex
	callers map[string]Caller
}

// NewRegistry constructs a registry seeded with the given callers.
func NewRegistry(callers ...Caller) (*Registry, error) {
	r := &Registry{callers: make(map[string]Caller, len(callers))}
	for _, c := range callers {
		if err := r.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a caller. Ids must be unique.
func (r *Registry) Register(c Caller) error {
	if c == nil {
		return fmt.Errorf("registry: %w: nil caller", apperrors.ErrValidation)
	}
	id := strings.TrimSpace(c.ID())
	if id == "" {
		return fmt.Errorf("registry: %w: empty caller id", apperrors.ErrValidation)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.callers[id]; exists {
		return fmt.Errorf("registry: %w: duplicate caller %q", apperrors.ErrValidation, id)
	}
	r.callers[id] = c
	return nil
}

// Lookup returns the caller registered under id.
func (r *Registry) Lookup(id string) (Caller, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.callers[strings.TrimSpace(id)]
	if !ok {
		return nil, fmt.Errorf("registry: caller %q: %w", id, apperrors.ErrNotFound)
	}
	return c, nil
}

// Resolve maps ids to callers, preserving order. Repeated ids are allowed.
func (r *Registry) Resolve(ids []string) ([]Caller, error) {
	out := make([]Caller, 0, len(ids))
	for _, id := range ids {
		c, err := r.Lookup(id)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// IDs lists the registered ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.callers))
	for id := range r.callers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
