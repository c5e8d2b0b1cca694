package risk

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"yieldfetcher/internal/opportunity"
)

func TestScore_Examples(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		f    Factors
		want int
	}{
		{
			name: "deep stable staking pool",
			f:    Factors{TVL: 2e9, Stablecoin: true, Category: opportunity.CategoryStaking},
			want: 1,
		},
		{
			name: "nothing known",
			f:    Factors{},
			want: 4,
		},
		{
			name: "mid-size lending pool",
			f: Factors{
				Sigma:     0.1,
				APYPct1D:  0.5,
				APYPct7D:  -1,
				APYPct30D: 2,
				TVL:       5e8,
				Category:  opportunity.CategoryLending,
			},
			want: 4,
		},
		{
			name: "volatile locked vault",
			f: Factors{
				Sigma:           1,
				APYPct1D:        20,
				APYPct7D:        -30,
				APYPct30D:       40,
				ImpermanentLoss: true,
				Category:        opportunity.CategoryVault,
				Locked:          true,
			},
			want: 10,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Score(tt.f))
		})
	}
}

func TestScore_NonFiniteInputsCountAsMissing(t *testing.T) {
	t.Parallel()

	base := Factors{Category: opportunity.CategoryStaking}
	odd := base
	odd.Sigma = math.NaN()
	odd.TVL = math.Inf(-1)
	odd.APYPct1D = math.Inf(1)

	require.Equal(t, Score(base), Score(odd))
}

func TestScore_AlwaysInRange(t *testing.T) {
	t.Parallel()

	cats := []opportunity.Category{
		opportunity.CategoryStaking,
		opportunity.CategoryLending,
		opportunity.CategoryVault,
		opportunity.CategoryOther,
		"",
	}
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 5000; i++ {
		f := Factors{
			Sigma:           r.NormFloat64() * 2,
			APYPct1D:        r.NormFloat64() * 50,
			APYPct7D:        r.NormFloat64() * 50,
			APYPct30D:       r.NormFloat64() * 50,
			TVL:             r.Float64() * 3e9,
			ImpermanentLoss: r.Intn(2) == 0,
			Stablecoin:      r.Intn(2) == 0,
			Category:        cats[r.Intn(len(cats))],
			Locked:          r.Intn(2) == 0,
		}
		raw := Raw(f)
		require.GreaterOrEqual(t, raw, 0.0)
		require.LessOrEqual(t, raw, 1.0)

		s := Score(f)
		require.GreaterOrEqual(t, s, opportunity.MinRiskScore)
		require.LessOrEqual(t, s, opportunity.MaxRiskScore)
	}
}

func TestScore_MoreTVLNeverRaisesRisk(t *testing.T) {
	t.Parallel()

	f := Factors{Sigma: 0.2, Category: opportunity.CategoryVault}
	prev := Raw(f)
	for _, tvl := range []float64{1e6, 1e7, 1e8, 5e8, 1e9, 5e9} {
		f.TVL = tvl
		cur := Raw(f)
		require.LessOrEqual(t, cur, prev)
		prev = cur
	}
}
