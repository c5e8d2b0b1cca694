package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"yieldfetcher/internal/match"
	"yieldfetcher/internal/opportunity"
	"yieldfetcher/internal/storage"
)

type fakeGateway struct {
	reads  atomic.Int32
	closed atomic.Bool
	delay  time.Duration

	mu   sync.Mutex
	recs []opportunity.Opportunity
	err  error
}

func (f *fakeGateway) BatchUpsertOpportunities(_ context.Context, recs []opportunity.Opportunity) (storage.BatchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return storage.BatchResult{Failed: len(recs)}, f.err
	}
	f.recs = append(f.recs, recs...)
	return storage.BatchResult{Success: len(recs)}, nil
}

func (f *fakeGateway) GetAllOpportunities(context.Context) ([]opportunity.Opportunity, error) {
	f.reads.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]opportunity.Opportunity(nil), f.recs...), nil
}

func (f *fakeGateway) TestConnection(context.Context) bool { return true }

func (f *fakeGateway) GetUserMatch(context.Context, string) (*match.UserMatch, error) {
	return nil, nil
}

func (f *fakeGateway) UpsertUserMatch(_ context.Context, id string, req match.Request) (match.UserMatch, error) {
	return match.UserMatch{UserID: id, Request: req}, nil
}

func (f *fakeGateway) Close() error {
	f.closed.Store(true)
	return nil
}

func opp(id string) opportunity.Opportunity {
	now := time.Now().UTC()
	return opportunity.Opportunity{
		ID: id, Name: id, Provider: "p", Asset: "ETH",
		Chain: opportunity.ChainEthereum, APR: decimal.RequireFromString("0.02"),
		Category: opportunity.CategoryStaking, Liquidity: opportunity.Liquid,
		RiskScore: 2, YieldDate: now, UpdatedAt: now,
	}
}

func TestNew_ZeroTTLPassesThrough(t *testing.T) {
	t.Parallel()

	inner := &fakeGateway{}
	g, err := New(inner, 0, zap.NewNop())
	require.NoError(t, err)
	require.Same(t, inner, g)
}

func TestGetAll_ServedFromCache(t *testing.T) {
	t.Parallel()

	inner := &fakeGateway{recs: []opportunity.Opportunity{opp("a")}}
	g, err := New(inner, time.Minute, zap.NewNop())
	require.NoError(t, err)
	defer g.Close()

	for i := 0; i < 3; i++ {
		got, err := g.GetAllOpportunities(t.Context())
		require.NoError(t, err)
		require.Len(t, got, 1)
	}
	require.EqualValues(t, 1, inner.reads.Load())
}

func TestGetAll_ReturnsCopies(t *testing.T) {
	t.Parallel()

	inner := &fakeGateway{recs: []opportunity.Opportunity{opp("a"), opp("b")}}
	g, err := New(inner, time.Minute, zap.NewNop())
	require.NoError(t, err)
	defer g.Close()

	first, err := g.GetAllOpportunities(t.Context())
	require.NoError(t, err)
	first[0].ID = "mutated"

	second, err := g.GetAllOpportunities(t.Context())
	require.NoError(t, err)
	require.Equal(t, "a", second[0].ID)
}

func TestBatchUpsert_Invalidates(t *testing.T) {
	t.Parallel()

	inner := &fakeGateway{recs: []opportunity.Opportunity{opp("a")}}
	g, err := New(inner, time.Minute, zap.NewNop())
	require.NoError(t, err)
	defer g.Close()

	_, err = g.GetAllOpportunities(t.Context())
	require.NoError(t, err)

	res, err := g.BatchUpsertOpportunities(t.Context(), []opportunity.Opportunity{opp("b")})
	require.NoError(t, err)
	require.Equal(t, 1, res.Success)

	got, err := g.GetAllOpportunities(t.Context())
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.EqualValues(t, 2, inner.reads.Load())
}

func TestBatchUpsert_FailureKeepsCache(t *testing.T) {
	t.Parallel()

	inner := &fakeGateway{recs: []opportunity.Opportunity{opp("a")}}
	g, err := New(inner, time.Minute, zap.NewNop())
	require.NoError(t, err)
	defer g.Close()

	_, err = g.GetAllOpportunities(t.Context())
	require.NoError(t, err)

	inner.err = errors.New("disk full")
	_, err = g.BatchUpsertOpportunities(t.Context(), []opportunity.Opportunity{opp("b")})
	require.Error(t, err)

	_, err = g.GetAllOpportunities(t.Context())
	require.NoError(t, err)
	require.EqualValues(t, 1, inner.reads.Load())
}

func TestGetAll_CoalescesConcurrentMisses(t *testing.T) {
	t.Parallel()

	inner := &fakeGateway{recs: []opportunity.Opportunity{opp("a")}, delay: 50 * time.Millisecond}
	g, err := New(inner, time.Minute, zap.NewNop())
	require.NoError(t, err)
	defer g.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := g.GetAllOpportunities(context.Background())
			if err != nil || len(got) != 1 {
				t.Errorf("got %d records, err %v", len(got), err)
			}
		}()
	}
	wg.Wait()
	require.LessOrEqual(t, inner.reads.Load(), int32(2))
}

func TestClose_ClosesInner(t *testing.T) {
	t.Parallel()

	inner := &fakeGateway{}
	g, err := New(inner, time.Minute, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, g.Close())
	require.True(t, inner.closed.Load())
}
