package faulttolerance

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrCircuitOpen is returned without invoking the wrapped call while the
// breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

type breakerState int

const (
	stateClosed breakerState = iota
	stateOpen
	stateHalfOpen
)

func (s breakerState) String() string {
	switch s {
	case stateClosed:
		return "CLOSED"
	case stateOpen:
		return "OPEN"
	case stateHalfOpen:
		return "HALF_OPEN"
	}
	return "UNKNOWN"
}

// BreakerConfig tunes a CircuitBreaker. Zero values fall back to defaults.
type BreakerConfig struct {
	MaxFailures      int
	Cooldown         time.Duration
	SuccessThreshold int
	Name             string
}

// CircuitBreaker stops hammering a failing collaborator: after MaxFailures
// consecutive failures it rejects calls for Cooldown, then lets probes
// through until SuccessThreshold consecutive successes close it again.
type CircuitBreaker struct {
	cfg       BreakerConfig
	logger    *logrus.Logger
	mu        sync.Mutex
	state     breakerState
	failures  int
	successes int
	openedAt  time.Time
}

func NewCircuitBreaker(cfg BreakerConfig, logger *logrus.Logger) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = time.Minute
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 2
	}
	if cfg.Name == "" {
		cfg.Name = "CircuitBreaker"
	}
	return &CircuitBreaker{cfg: cfg, logger: logger, state: stateClosed}
}

// Do runs fn under breaker protection.
func (cb *CircuitBreaker) Do(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !cb.allow() {
		return ErrCircuitOpen
	}
	err := fn()
	cb.record(err)
	return err
}

func (cb *CircuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == stateOpen && time.Since(cb.openedAt) > cb.cfg.Cooldown {
		cb.setState(stateHalfOpen)
		cb.successes = 0
	}
	return cb.state != stateOpen
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if err != nil {
		cb.failures++
		cb.successes = 0
		if cb.state == stateHalfOpen || cb.failures >= cb.cfg.MaxFailures {
			cb.openedAt = time.Now()
			cb.setState(stateOpen)
		}
		return
	}
	cb.failures = 0
	if cb.state == stateHalfOpen {
		cb.successes++
		if cb.successes >= cb.cfg.SuccessThreshold {
			cb.setState(stateClosed)
		}
	}
}

func (cb *CircuitBreaker) setState(s breakerState) {
	if s == cb.state {
		return
	}
	cb.logger.Infof("[%s] circuit breaker %s -> %s", cb.cfg.Name, cb.state, s)
	cb.state = s
}
