package faulttolerance

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func fastRetryer(maxAttempts int) *Retryer {
	return NewRetryer(RetryConfig{
		MaxAttempts: maxAttempts,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
		Multiplier:  2,
		Name:        "test",
	}, testLogger())
}

func TestRetryerSucceedsAfterFailures(t *testing.T) {
	r := fastRetryer(3)
	calls := 0

	err := r.Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("Expected 3 calls, got %d", calls)
	}
}

func TestRetryerExhaustsAttempts(t *testing.T) {
	r := fastRetryer(3)
	sentinel := errors.New("permanent")
	calls := 0

	err := r.Do(context.Background(), func() error {
		calls++
		return sentinel
	})
	if err == nil {
		t.Fatal("Expected an error after exhausting attempts")
	}
	if !errors.Is(err, sentinel) {
		t.Errorf("Expected wrapped sentinel error, got %v", err)
	}
	if calls != 3 {
		t.Errorf("Expected 3 calls, got %d", calls)
	}
}

func TestRetryerHonorsContext(t *testing.T) {
	r := fastRetryer(10)
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := r.Do(ctx, func() error {
		calls++
		cancel()
		return errors.New("transient")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected a single call before cancellation, got %d", calls)
	}
}
