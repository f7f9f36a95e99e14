package faulttolerance

import (
	"context"
	"errors"
	"testing"
	"time"
)

func testBreaker() *CircuitBreaker {
	return NewCircuitBreaker(BreakerConfig{
		MaxFailures:      2,
		Cooldown:         20 * time.Millisecond,
		SuccessThreshold: 2,
		Name:             "test",
	}, testLogger())
}

func TestCircuitBreakerOpensAfterFailures(t *testing.T) {
	cb := testBreaker()
	ctx := context.Background()
	boom := errors.New("boom")

	for i := 0; i < 2; i++ {
		if err := cb.Do(ctx, func() error { return boom }); !errors.Is(err, boom) {
			t.Fatalf("Expected the call error, got %v", err)
		}
	}

	calls := 0
	err := cb.Do(ctx, func() error { calls++; return nil })
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Expected ErrCircuitOpen, got %v", err)
	}
	if calls != 0 {
		t.Error("Expected the wrapped call to be skipped while open")
	}
}

func TestCircuitBreakerRecoversAfterCooldown(t *testing.T) {
	cb := testBreaker()
	ctx := context.Background()
	boom := errors.New("boom")

	for i := 0; i < 2; i++ {
		cb.Do(ctx, func() error { return boom })
	}
	time.Sleep(30 * time.Millisecond)

	// Half-open: probes run, and enough successes close the breaker.
	for i := 0; i < 2; i++ {
		if err := cb.Do(ctx, func() error { return nil }); err != nil {
			t.Fatalf("Expected probe %d to run, got %v", i, err)
		}
	}

	if err := cb.Do(ctx, func() error { return nil }); err != nil {
		t.Errorf("Expected closed breaker to pass calls, got %v", err)
	}
}

func TestCircuitBreakerReopensOnHalfOpenFailure(t *testing.T) {
	cb := testBreaker()
	ctx := context.Background()
	boom := errors.New("boom")

	for i := 0; i < 2; i++ {
		cb.Do(ctx, func() error { return boom })
	}
	time.Sleep(30 * time.Millisecond)

	// The half-open probe fails: straight back to open.
	cb.Do(ctx, func() error { return boom })

	if err := cb.Do(ctx, func() error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Expected ErrCircuitOpen after a failed probe, got %v", err)
	}
}
