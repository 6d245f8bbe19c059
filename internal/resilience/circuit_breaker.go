// Package resilience provides the retry and circuit breaker primitives used around remote calls.
package resilience

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by Execute while the breaker is open.
var ErrCircuitOpen = errors.New("circuit open")

// RateLimitError represents a provider rate limit response.
type RateLimitError struct {
	Provider string
	Message  string
}

func (e RateLimitError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "rate limit"
}

// IsRateLimit returns true when the error is a RateLimitError.
func IsRateLimit(err error) bool {
	var rl RateLimitError
	return errors.As(err, &rl)
}

// CircuitBreaker blocks requests for a cooldown after consecutive counted failures.
type CircuitBreaker struct {
	mu        sync.Mutex
	failures  int
	threshold int
	openUntil time.Time
	cooldown  time.Duration
	counts    func(error) bool
	now       func() time.Time
}

// NewCircuitBreaker creates a breaker that counts every error.
func NewCircuitBreaker(threshold int, cooldown time.Duration) *CircuitBreaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &CircuitBreaker{threshold: threshold, cooldown: cooldown, now: time.Now}
}

// CountOnly restricts which errors count towards opening the breaker.
func (c *CircuitBreaker) CountOnly(pred func(error) bool) *CircuitBreaker {
	c.counts = pred
	return c
}

// Allow reports whether a call may proceed.
func (c *CircuitBreaker) Allow() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.now().Before(c.openUntil)
}

// OnSuccess closes the breaker.
func (c *CircuitBreaker) OnSuccess() {
	c.mu.Lock()
	c.failures = 0
	c.openUntil = time.Time{}
	c.mu.Unlock()
}

// OnError records a failure and opens the breaker once the threshold is reached.
func (c *CircuitBreaker) OnError(err error) {
	if err == nil || (c.counts != nil && !c.counts(err)) {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures++
	if c.failures >= c.threshold {
		c.openUntil = c.now().Add(c.cooldown)
		c.failures = 0
	}
}

// Execute runs fn through the breaker.
func (c *CircuitBreaker) Execute(fn func() error) error {
	if !c.Allow() {
		return ErrCircuitOpen
	}
	if err := fn(); err != nil {
		c.OnError(err)
		return err
	}
	c.OnSuccess()
	return nil
}
