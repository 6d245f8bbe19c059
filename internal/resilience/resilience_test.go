package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errTransient = errors.New("transient")

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker(2, time.Minute)
	cb.now = func() time.Time { return now }

	_ = cb.Execute(func() error { return errTransient })
	if !cb.Allow() {
		t.Fatal("breaker should stay closed below the threshold")
	}
	_ = cb.Execute(func() error { return errTransient })
	if err := cb.Execute(func() error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}

	now = now.Add(2 * time.Minute)
	if err := cb.Execute(func() error { return nil }); err != nil {
		t.Fatalf("expected breaker to close after cooldown, got %v", err)
	}
}

func TestCircuitBreakerCountOnly(t *testing.T) {
	cb := NewCircuitBreaker(1, time.Minute).CountOnly(IsRateLimit)
	cb.OnError(errTransient)
	if !cb.Allow() {
		t.Fatal("non-counted errors must not open the breaker")
	}
	cb.OnError(RateLimitError{Provider: "backend"})
	if cb.Allow() {
		t.Fatal("rate limit error should open the breaker")
	}
}

func TestRetryPolicy(t *testing.T) {
	calls := 0
	p := NewRetryPolicy(2, time.Millisecond)
	err := p.Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errTransient
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Fatalf("expected success on third call, got err=%v calls=%d", err, calls)
	}

	calls = 0
	p.Retryable = func(error) bool { return false }
	if err := p.Do(context.Background(), func() error { calls++; return errTransient }); !errors.Is(err, errTransient) || calls != 1 {
		t.Fatalf("non-retryable error should stop immediately, calls=%d", calls)
	}
}

func TestRetryPolicyStopsOnContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	err := NewRetryPolicy(5, time.Hour).Do(ctx, func() error { calls++; return errTransient })
	if err == nil || calls != 1 {
		t.Fatalf("expected one call before cancellation, got %d", calls)
	}
}
