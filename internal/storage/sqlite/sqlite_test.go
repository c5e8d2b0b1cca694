package sqlite

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"yieldfetcher/internal/match"
	"yieldfetcher/internal/opportunity"
	"yieldfetcher/internal/storage"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func rec(id string, yield time.Time, apr string) opportunity.Opportunity {
	return opportunity.Opportunity{
		ID:        id,
		Name:      "pool " + id,
		Provider:  "test",
		Asset:     "stETH",
		Chain:     opportunity.ChainEthereum,
		APR:       decimal.RequireFromString(apr),
		Category:  opportunity.CategoryStaking,
		Liquidity: opportunity.Liquid,
		RiskScore: 2,
		YieldDate: yield,
		UpdatedAt: yield.Add(time.Minute),
	}
}

var base = time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC)

func TestOpen_Idempotent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "twice.db")
	s1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()
	require.True(t, s2.TestConnection(t.Context()))
}

func TestTestConnection_ClosedStore(t *testing.T) {
	t.Parallel()

	s, err := Open(filepath.Join(t.TempDir(), "closed.db"))
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.False(t, s.TestConnection(t.Context()))
}

func TestBatchUpsert_RoundTrip(t *testing.T) {
	t.Parallel()

	s := openTemp(t)
	in := []opportunity.Opportunity{
		rec("a", base, "0.031"),
		rec("b", base.Add(2*time.Hour), "0.07125"),
		rec("c", base.Add(time.Hour), "0.5"),
	}
	res, err := s.BatchUpsertOpportunities(t.Context(), in)
	require.NoError(t, err)
	require.Equal(t, storage.BatchResult{Success: 3}, res)

	got, err := s.GetAllOpportunities(t.Context())
	require.NoError(t, err)
	require.Len(t, got, 3)

	// Most recent yield date first.
	require.Equal(t, []string{"b", "c", "a"}, []string{got[0].ID, got[1].ID, got[2].ID})
	require.True(t, got[0].APR.Equal(decimal.RequireFromString("0.07125")))
	require.True(t, got[0].YieldDate.Equal(base.Add(2*time.Hour)))
	require.True(t, got[0].UpdatedAt.Equal(base.Add(2*time.Hour+time.Minute)))
	require.Equal(t, opportunity.ChainEthereum, got[0].Chain)
	require.NoError(t, got[0].Validate())
}

func TestBatchUpsert_LastWriteWins(t *testing.T) {
	t.Parallel()

	s := openTemp(t)
	_, err := s.BatchUpsertOpportunities(t.Context(), []opportunity.Opportunity{rec("a", base, "0.03")})
	require.NoError(t, err)

	updated := rec("a", base.Add(time.Hour), "0.04")
	updated.RiskScore = 5
	res, err := s.BatchUpsertOpportunities(t.Context(), []opportunity.Opportunity{updated})
	require.NoError(t, err)
	require.Equal(t, 1, res.Success)

	got, err := s.GetAllOpportunities(t.Context())
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "0.04", got[0].APR.String())
	require.Equal(t, 5, got[0].RiskScore)
}

func TestBatchUpsert_AllOrNothing(t *testing.T) {
	t.Parallel()

	s := openTemp(t)
	bad := rec("d", base, "0.01")
	bad.RiskScore = 0

	res, err := s.BatchUpsertOpportunities(t.Context(), []opportunity.Opportunity{
		rec("a", base, "0.01"),
		rec("b", base, "0.02"),
		rec("c", base, "0.03"),
		bad,
	})
	require.Error(t, err)
	require.True(t, errors.Is(err, storage.ErrStorage))
	require.Equal(t, storage.BatchResult{Success: 0, Failed: 4}, res)

	got, err := s.GetAllOpportunities(t.Context())
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestBatchUpsert_Empty(t *testing.T) {
	t.Parallel()

	res, err := openTemp(t).BatchUpsertOpportunities(t.Context(), nil)
	require.NoError(t, err)
	require.Equal(t, storage.BatchResult{}, res)
}

func TestBatchUpsert_ConcurrentWriters(t *testing.T) {
	t.Parallel()

	s := openTemp(t)
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 5; i++ {
				id := fmt.Sprintf("w%d-%d", w, i)
				_, err := s.BatchUpsertOpportunities(t.Context(), []opportunity.Opportunity{rec(id, base, "0.02")})
				if err != nil {
					t.Errorf("upsert %s: %v", id, err)
				}
			}
		}()
	}
	wg.Wait()

	got, err := s.GetAllOpportunities(t.Context())
	require.NoError(t, err)
	require.Len(t, got, 20)
}

func TestUserMatch(t *testing.T) {
	t.Parallel()

	s := openTemp(t)
	clock := base
	s.now = func() time.Time { return clock }

	m, err := s.GetUserMatch(t.Context(), "user-1")
	require.NoError(t, err)
	require.Nil(t, m)

	req := match.Request{
		WalletBalance:     map[string]decimal.Decimal{"ETH": decimal.RequireFromString("1.5"), "USDC": decimal.NewFromInt(200)},
		RiskTolerance:     6,
		MaxAllocationPct:  25,
		InvestmentHorizon: 90,
	}
	saved, err := s.UpsertUserMatch(t.Context(), "user-1", req)
	require.NoError(t, err)
	require.Equal(t, "user-1", saved.UserID)
	require.Equal(t, 6, saved.RiskTolerance)
	require.True(t, saved.WalletBalance["ETH"].Equal(decimal.RequireFromString("1.5")))
	require.True(t, saved.CreatedAt.Equal(base))

	clock = base.Add(time.Hour)
	req.RiskTolerance = 3
	saved, err = s.UpsertUserMatch(t.Context(), "user-1", req)
	require.NoError(t, err)
	require.Equal(t, 3, saved.RiskTolerance)
	require.True(t, saved.CreatedAt.Equal(base))
	require.True(t, saved.UpdatedAt.Equal(base.Add(time.Hour)))

	got, err := s.GetUserMatch(t.Context(), "user-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, 25, got.MaxAllocationPct)
	require.True(t, got.WalletBalance["USDC"].Equal(decimal.NewFromInt(200)))
}

func TestUpsertUserMatch_EmptyID(t *testing.T) {
	t.Parallel()

	_, err := openTemp(t).UpsertUserMatch(t.Context(), "", match.DefaultRequest())
	require.ErrorIs(t, err, storage.ErrStorage)
}
