package match

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"yieldfetcher/internal/opportunity"
)

// Wallet keys that stand in for "holds the chain's native asset".
const (
	AssetETH = "ETH"
	AssetSOL = "SOL"
)

// ShortHorizonDays is the horizon below which locked liquidity is never matched.
const ShortHorizonDays = 60

// Request is a user's declared portfolio and risk preferences.
// MaxAllocationPct is carried for allocation sizing and does not filter.
type Request struct {
	WalletBalance     map[string]decimal.Decimal `json:"walletBalance"`
	RiskTolerance     int                        `json:"riskTolerance"`
	MaxAllocationPct  int                        `json:"maxAllocationPct"`
	InvestmentHorizon int                        `json:"investmentHorizon"`
}

// UserMatch is a Request persisted under an opaque user identifier.
type UserMatch struct {
	UserID string `json:"userId"`
	Request
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// DefaultRequest is the profile offered to users who have not saved one yet.
func DefaultRequest() Request {
	return Request{
		WalletBalance:     map[string]decimal.Decimal{AssetETH: decimal.Zero, AssetSOL: decimal.Zero},
		RiskTolerance:     5,
		MaxAllocationPct:  20,
		InvestmentHorizon: 365,
	}
}

// Validate enforces the request schema before the matcher runs.
func (r Request) Validate() error {
	var errs opportunity.ValidationErrors
	if r.RiskTolerance < opportunity.MinRiskScore || r.RiskTolerance > opportunity.MaxRiskScore {
		errs = append(errs, opportunity.ValidationError{Field: "riskTolerance", Reason: fmt.Sprintf("must be in [1,10], got %d", r.RiskTolerance)})
	}
	if r.MaxAllocationPct < 0 || r.MaxAllocationPct > 100 {
		errs = append(errs, opportunity.ValidationError{Field: "maxAllocationPct", Reason: fmt.Sprintf("must be in [0,100], got %d", r.MaxAllocationPct)})
	}
	if r.InvestmentHorizon < 0 {
		errs = append(errs, opportunity.ValidationError{Field: "investmentHorizon", Reason: "must be non-negative"})
	}
	if r.WalletBalance == nil {
		errs = append(errs, opportunity.ValidationError{Field: "walletBalance", Reason: "is required"})
	}
	assets := make([]string, 0, len(r.WalletBalance))
	for asset := range r.WalletBalance {
		assets = append(assets, asset)
	}
	sort.Strings(assets)
	for _, asset := range assets {
		if r.WalletBalance[asset].IsNegative() {
			errs = append(errs, opportunity.ValidationError{Field: "walletBalance." + asset, Reason: "must be non-negative"})
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}
