package ratelimit

import (
	"context"
	"sync"
	"time"

	"yieldfetcher/internal/opportunity"
	"yieldfetcher/internal/provider"
)

// TokenBucket is a token bucket limiter.
//   - rate: tokens per second
//   - capacity: maximum tokens the bucket can hold (burst)
type TokenBucket struct {
	rate     float64
	capacity float64

	mu     sync.Mutex
	tokens float64
	last   time.Time
}

func NewTokenBucket(tokensPerSecond float64, burst int) *TokenBucket {
	if tokensPerSecond <= 0 {
		tokensPerSecond = 0.0000001
	}
	if burst <= 0 {
		burst = 1
	}
	return &TokenBucket{
		rate:     tokensPerSecond,
		capacity: float64(burst),
		tokens:   float64(burst),
		last:     time.Now(),
	}
}

// PerMinute builds a bucket allowing rpm requests per minute.
func PerMinute(rpm, burst int) *TokenBucket {
	return NewTokenBucket(float64(rpm)/60, burst)
}

// Wait blocks until one token is available or ctx is done.
func (tb *TokenBucket) Wait(ctx context.Context) error {
	for {
		tb.mu.Lock()
		now := time.Now()
		if elapsed := now.Sub(tb.last).Seconds(); elapsed > 0 {
			tb.tokens = min(tb.tokens+elapsed*tb.rate, tb.capacity)
			tb.last = now
		}
		if tb.tokens >= 1 {
			tb.tokens--
			tb.mu.Unlock()
			return nil
		}
		deficit := 1 - tb.tokens
		tb.mu.Unlock()

		waitDur := time.Duration(deficit / tb.rate * float64(time.Second))
		if waitDur <= 0 {
			waitDur = time.Millisecond
		}
		timer := time.NewTimer(waitDur)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// TokenBucketProvider wraps a Provider and gates fetches using a token bucket.
type TokenBucketProvider struct {
	P  provider.Provider
	TB *TokenBucket
}

func (t *TokenBucketProvider) Name() string            { return t.P.Name() }
func (t *TokenBucketProvider) Interval() time.Duration { return t.P.Interval() }
func (t *TokenBucketProvider) Timeout() time.Duration  { return t.P.Timeout() }

func (t *TokenBucketProvider) Fetch(ctx context.Context) ([]opportunity.Opportunity, error) {
	if t.TB != nil {
		if err := t.TB.Wait(ctx); err != nil {
			return nil, err
		}
	}
	return t.P.Fetch(ctx)
}

// Options configures Wrap. Zero values disable the corresponding limiter.
type Options struct {
	MaxRPM      int
	Burst       int
	MinInterval time.Duration
}

// Wrap applies the configured limiters to p, token bucket innermost.
func Wrap(p provider.Provider, o Options) provider.Provider {
	if o.MaxRPM > 0 {
		p = &TokenBucketProvider{P: p, TB: PerMinute(o.MaxRPM, o.Burst)}
	}
	if o.MinInterval > 0 {
		p = &MinInterval{P: p, Gap: o.MinInterval}
	}
	return p
}
