package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
)

func testConfig() Config {
	return Config{
		RetryMaxAttempts:    2,
		RetryInitialBackoff: 1 * time.Millisecond,
		RetryMaxBackoff:     2 * time.Millisecond,
		RetryMultiplier:     2,
		BreakerEnabled:      false,
	}
}

func retryableClassifier(target error) ErrorClassifier {
	return func(err error) ErrorClassification {
		return ErrorClassification{
			Retryable:     errors.Is(err, target),
			RecordFailure: true,
		}
	}
}

func TestExecuteRetriesOnceOnTemporaryFailure(t *testing.T) {
	exec := NewExecutor(testConfig())

	attempts := 0
	errBackend := errors.New("model overloaded")
	err := exec.Execute(context.Background(), "ollama.generate", func(context.Context) error {
		attempts++
		if attempts == 1 {
			return errBackend
		}
		return nil
	}, retryableClassifier(errBackend))
	if err != nil {
		t.Fatalf("expected success on the retry, got %v", err)
	}
	if attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts)
	}
}

func TestExecuteRetryBudgetIsOneRetry(t *testing.T) {
	exec := NewExecutor(DefaultConfig())

	attempts := 0
	errBackend := errors.New("bad gateway")
	err := exec.Execute(context.Background(), "ollama.generate", func(context.Context) error {
		attempts++
		return errBackend
	}, retryableClassifier(errBackend))
	if !errors.Is(err, errBackend) {
		t.Fatalf("expected the backend error to surface, got %v", err)
	}
	// Default policy: the original call plus exactly one retry.
	if attempts != 2 {
		t.Fatalf("expected 2 attempts under the default config, got %d", attempts)
	}
}

func TestExecuteNotifiesRetryObserver(t *testing.T) {
	exec := NewExecutor(testConfig())

	type retry struct {
		operation string
		attempt   int
	}
	var seen []retry
	exec.OnRetry(func(operation string, attempt int) {
		seen = append(seen, retry{operation, attempt})
	})

	errBackend := errors.New("model overloaded")
	attempts := 0
	err := exec.Execute(context.Background(), "ollama.generate", func(context.Context) error {
		attempts++
		if attempts == 1 {
			return errBackend
		}
		return nil
	}, retryableClassifier(errBackend))
	if err != nil {
		t.Fatalf("expected success on the retry, got %v", err)
	}
	if len(seen) != 1 || seen[0].operation != "ollama.generate" || seen[0].attempt != 1 {
		t.Fatalf("observer saw %v, want one notification for ollama.generate attempt 1", seen)
	}
}

func TestExecuteDoesNotRetryPermanentFailure(t *testing.T) {
	exec := NewExecutor(testConfig())

	attempts := 0
	errPermanent := errors.New("invalid model name")
	err := exec.Execute(context.Background(), "ollama.embed", func(context.Context) error {
		attempts++
		return errPermanent
	}, func(error) ErrorClassification {
		return ErrorClassification{Retryable: false, RecordFailure: false}
	})
	if !errors.Is(err, errPermanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}

func TestExecuteStopsWhenContextCancelled(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:    5,
		RetryInitialBackoff: 50 * time.Millisecond,
		RetryMaxBackoff:     100 * time.Millisecond,
		RetryMultiplier:     2,
		BreakerEnabled:      false,
	})

	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	errBackend := errors.New("connection refused")
	err := exec.Execute(ctx, "nats.publish", func(context.Context) error {
		attempts++
		cancel()
		return errBackend
	}, retryableClassifier(errBackend))
	if err == nil {
		t.Fatalf("expected an error after cancellation")
	}
	if attempts != 1 {
		t.Fatalf("cancellation must stop the retry loop, got %d attempts", attempts)
	}
}

func TestExecuteOpensCircuitAfterFailures(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:        1,
		RetryInitialBackoff:     1 * time.Millisecond,
		RetryMaxBackoff:         1 * time.Millisecond,
		RetryMultiplier:         2,
		BreakerEnabled:          true,
		BreakerMinRequests:      2,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      50 * time.Millisecond,
		BreakerHalfOpenMaxCalls: 1,
	})

	errBackend := errors.New("qdrant down")
	classifier := func(error) ErrorClassification {
		return ErrorClassification{Retryable: false, RecordFailure: true}
	}

	for i := 0; i < 2; i++ {
		err := exec.Execute(context.Background(), "ollama.generate", func(context.Context) error {
			return errBackend
		}, classifier)
		if !errors.Is(err, errBackend) {
			t.Fatalf("expected backend error on call %d, got %v", i, err)
		}
	}

	err := exec.Execute(context.Background(), "ollama.generate", func(context.Context) error {
		t.Fatalf("open circuit must not invoke the operation")
		return nil
	}, classifier)
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected open state error, got %v", err)
	}
	if !IsCircuitOpen(err) {
		t.Fatalf("IsCircuitOpen must recognize the breaker error")
	}
}

func TestExecuteBreakersAreIsolatedPerOperation(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:        1,
		RetryInitialBackoff:     1 * time.Millisecond,
		RetryMaxBackoff:         1 * time.Millisecond,
		RetryMultiplier:         2,
		BreakerEnabled:          true,
		BreakerMinRequests:      2,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      time.Second,
		BreakerHalfOpenMaxCalls: 1,
	})

	errBackend := errors.New("down")
	classifier := func(error) ErrorClassification {
		return ErrorClassification{Retryable: false, RecordFailure: true}
	}
	for i := 0; i < 2; i++ {
		_ = exec.Execute(context.Background(), "ollama.generate", func(context.Context) error {
			return errBackend
		}, classifier)
	}

	// The generate breaker is open; embed must still pass.
	err := exec.Execute(context.Background(), "ollama.embed", func(context.Context) error {
		return nil
	}, classifier)
	if err != nil {
		t.Fatalf("unrelated operation tripped by another breaker: %v", err)
	}
}
