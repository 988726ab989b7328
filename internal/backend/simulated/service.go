package simulated

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/acme/scatter-gather/internal/config"
)

// ErrSimulatedFailure is returned when the service rolls a failure.
var ErrSimulatedFailure = errors.New("simulated failure")

// Service simulates a remote service with random latency.
type Service struct {
	id          string
	maxJitter   time.Duration
	failureRate float64
	hang        bool

	mu  sync.Mutex
	rng *rand.Rand
}

// Option customises a Service.
type Option func(*Service)

// WithSeed makes the jitter and failure rolls reproducible.
func WithSeed(seed int64) Option {
	return func(s *Service) { s.rng = rand.New(rand.NewSource(seed)) }
}

// NewService constructs a simulated service that answers "<id>:<INPUT-UPPER>".
func NewService(cfg config.SimulatedBackendConfig, opts ...Option) *Service {
	s := &Service{
		id:          cfg.ID,
		maxJitter:   cfg.MaxJitter,
		failureRate: cfg.FailureRate,
		hang:        cfg.Hang,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID returns the service id.
func (s *Service) ID() string { return s.id }

// Invoke waits a random delay in [0, maxJitter] and answers, unless the
// context ends first.
func (s *Service) Invoke(ctx context.Context, input string) (string, error) {
	if s.hang {
		<-ctx.Done()
		return "", ctx.Err()
	}

	delay, fail := s.roll()
	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timer.C:
		}
	}

	if fail {
		return "", ErrSimulatedFailure
	}
	return s.id + ":" + strings.ToUpper(input), nil
}

func (s *Service) roll() (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var delay time.Duration
	if s.maxJitter > 0 {
		delay = time.Duration(s.rng.Int63n(int64(s.maxJitter) + 1))
	}
	fail := s.failureRate > 0 && s.rng.Float64() < s.failureRate
	return delay, fail
}
