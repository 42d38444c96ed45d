// Package retry is the supervisor wrapping every pipeline stage with a
// bounded, typed retry policy.
package retry

import (
	"context"
	"math/rand"
	"time"
)

// Class decides what the supervisor does with a failure.
type Class int

const (
	// Transient failures are retried until the attempt bound.
	Transient Class = iota
	// Terminal failures surface immediately.
	Terminal
)

// Classifier maps an error to a retry class. It is never called with nil.
type Classifier func(error) Class

// Policy bounds the retry loop: attempt count and exponential backoff with
// jitter, capped at MaxDelay.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	JitterFrac  float64
}

// DefaultPolicy matches the engine-wide retry settings.
var DefaultPolicy = Policy{MaxAttempts: 3, BaseDelay: 300 * time.Millisecond, MaxDelay: 5 * time.Second, JitterFrac: 0.2}

func (p Policy) attempts() int {
	if p.MaxAttempts <= 0 {
		return 1
	}
	return p.MaxAttempts
}

// Delay computes the backoff before the given retry (attempt is zero-based;
// attempt 0 already failed once).
func (p Policy) Delay(attempt int) time.Duration {
	d := p.BaseDelay
	if d <= 0 {
		d = 100 * time.Millisecond
	}
	for i := 0; i < attempt; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			d = p.MaxDelay
			break
		}
	}
	if p.JitterFrac > 0 {
		span := float64(d) * p.JitterFrac
		d += time.Duration((rand.Float64()*2 - 1) * span)
	}
	if d < 0 {
		d = 0
	}
	return d
}

// Do runs op until it succeeds, a terminal failure surfaces, the attempt
// bound is exhausted, or ctx expires. The last error is returned as-is so
// callers can classify it again.
func Do(ctx context.Context, p Policy, classify Classifier, op func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < p.attempts(); attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if classify != nil && classify(lastErr) == Terminal {
			return lastErr
		}
		if attempt == p.attempts()-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.Delay(attempt)):
		}
	}
	return lastErr
}
