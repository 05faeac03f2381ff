package service

import (
	"context"
	"time"
)

// BackoffPolicy is the bounded exponential backoff applied to transient FBR
// failures. Delay doubles per attempt from Initial and is capped at Max.
type BackoffPolicy struct {
	Initial     time.Duration
	Max         time.Duration
	MaxAttempts int
}

// DefaultBackoff mirrors the config defaults; used when config leaves the
// policy zero-valued.
var DefaultBackoff = BackoffPolicy{
	Initial:     500 * time.Millisecond,
	Max:         30 * time.Second,
	MaxAttempts: 5,
}

func (p BackoffPolicy) normalized() BackoffPolicy {
	if p.Initial <= 0 {
		p.Initial = DefaultBackoff.Initial
	}
	if p.Max <= 0 {
		p.Max = DefaultBackoff.Max
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultBackoff.MaxAttempts
	}
	return p
}

// Delay returns the wait before the given 1-based attempt. The first attempt
// has no delay.
func (p BackoffPolicy) Delay(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}
	d := p.Initial << uint(attempt-2)
	if d <= 0 || d > p.Max {
		return p.Max
	}
	return d
}

// sleepCtx waits for d or until ctx is done, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
