// Package faulttolerance provides the retry and circuit-breaker primitives
// the HTTP collaborators wrap their outbound calls in. The engine core never
// retries; by the time a call surfaces there, it either happened or it
// didn't.
package faulttolerance

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"
)

// RetryConfig tunes a Retryer. Zero values fall back to sane defaults.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
	Name        string
}

// Retryer executes functions with exponential backoff and jitter.
type Retryer struct {
	cfg    RetryConfig
	logger *logrus.Logger
	rng    *rand.Rand
}

func NewRetryer(cfg RetryConfig, logger *logrus.Logger) *Retryer {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 30 * time.Second
	}
	if cfg.Multiplier <= 1 {
		cfg.Multiplier = 2.0
	}
	if cfg.Name == "" {
		cfg.Name = "Retryer"
	}
	return &Retryer{
		cfg:    cfg,
		logger: logger,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Do runs fn until it succeeds, the attempts are exhausted, or ctx is done.
func (r *Retryer) Do(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn()
		if lastErr == nil {
			if attempt > 1 {
				r.logger.Infof("[%s] succeeded on attempt %d", r.cfg.Name, attempt)
			}
			return nil
		}
		if attempt == r.cfg.MaxAttempts {
			break
		}
		delay := r.backoff(attempt)
		r.logger.Warnf("[%s] attempt %d failed: %v, retrying in %v", r.cfg.Name, attempt, lastErr, delay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	r.logger.Errorf("[%s] all %d attempts failed: %v", r.cfg.Name, r.cfg.MaxAttempts, lastErr)
	return fmt.Errorf("%s: %d attempts exhausted: %w", r.cfg.Name, r.cfg.MaxAttempts, lastErr)
}

// backoff grows geometrically from BaseDelay, capped at MaxDelay, with up to
// 10% jitter either way to avoid synchronized retries.
func (r *Retryer) backoff(attempt int) time.Duration {
	d := float64(r.cfg.BaseDelay) * math.Pow(r.cfg.Multiplier, float64(attempt-1))
	if d > float64(r.cfg.MaxDelay) {
		d = float64(r.cfg.MaxDelay)
	}
	jitter := d * 0.1 * (2*r.rng.Float64() - 1)
	d += jitter
	if d < float64(r.cfg.BaseDelay) {
		d = float64(r.cfg.BaseDelay)
	}
	return time.Duration(d)
}
