package risk

import (
	"math"

	"yieldfetcher/internal/opportunity"
)

// Factors are the inputs of the multi-factor score. Unknown upstream
// numbers are left at zero.
type Factors struct {
	// Sigma is the APY standard deviation reported upstream.
	Sigma float64
	// APY percentage changes over 1, 7 and 30 days.
	APYPct1D  float64
	APYPct7D  float64
	APYPct30D float64
	// TVL is total value locked in USD.
	TVL             float64
	ImpermanentLoss bool
	Stablecoin      bool
	Category        opportunity.Category
	Locked          bool
}

// Factor weights.
const (
	wVolatility = 0.20
	wSwing      = 0.20
	wSize       = 0.20
	wIL         = 0.10
	wStable     = 0.10
	wCategory   = 0.10
	wLockup     = 0.10
)

const (
	sigmaCap    = 0.5
	swingCap    = 10.0
	tvlCeiling  = 1e9
	lockupScore = 0.2
)

var categoryScore = map[opportunity.Category]float64{
	opportunity.CategoryStaking: 0.15,
	opportunity.CategoryLending: 0.30,
	opportunity.CategoryVault:   0.45,
	opportunity.CategoryOther:   0.10,
}

// Score maps f onto the integer scale [1,10].
func Score(f Factors) int {
	s := int(math.Round(Raw(f)*10)) + 1
	return min(max(s, opportunity.MinRiskScore), opportunity.MaxRiskScore)
}

// Raw is the weighted sum of the sub-scores, clamped to [0,1].
func Raw(f Factors) float64 {
	swing := (math.Abs(f.APYPct1D) + math.Abs(f.APYPct7D) + math.Abs(f.APYPct30D)) / 3

	v := wVolatility*math.Min(finite(f.Sigma)/sigmaCap, 1) +
		wSwing*math.Min(finite(swing)/swingCap, 1) +
		wSize*math.Max(0, 1-finite(f.TVL)/tvlCeiling) +
		wIL*flag(f.ImpermanentLoss, 1) +
		wStable*flag(!f.Stablecoin, 1) +
		wCategory*categoryWeight(f.Category) +
		wLockup*flag(f.Locked, lockupScore)

	return math.Max(0, math.Min(v, 1))
}

func categoryWeight(c opportunity.Category) float64 {
	if w, ok := categoryScore[c]; ok {
		return w
	}
	return categoryScore[opportunity.CategoryOther]
}

func flag(b bool, v float64) float64 {
	if b {
		return v
	}
	return 0
}

// finite treats NaN and infinities from upstream as missing.
func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
