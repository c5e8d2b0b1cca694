package ratelimit

import (
	"context"
	"sync"
	"time"

	"yieldfetcher/internal/opportunity"
	"yieldfetcher/internal/provider"
)

// MinInterval wraps a provider and enforces a minimum time between fetches.
// Concurrent calls wait until the gap has elapsed since the last fetch,
// or return early if the context is canceled.
type MinInterval struct {
	P   provider.Provider
	Gap time.Duration

	mu   sync.Mutex
	last time.Time
}

func (m *MinInterval) Name() string            { return m.P.Name() }
func (m *MinInterval) Interval() time.Duration { return m.P.Interval() }
func (m *MinInterval) Timeout() time.Duration  { return m.P.Timeout() }

func (m *MinInterval) Fetch(ctx context.Context) ([]opportunity.Opportunity, error) {
	if m.Gap <= 0 {
		return m.P.Fetch(ctx)
	}

	// Hold the lock across the fetch so concurrent callers queue up.
	m.mu.Lock()
	defer m.mu.Unlock()

	if wait := time.Until(m.last.Add(m.Gap)); wait > 0 {
		t := time.NewTimer(wait)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.C:
		}
	}
	recs, err := m.P.Fetch(ctx)
	m.last = time.Now()
	return recs, err
}
