package match

import (
	"sort"

	"yieldfetcher/internal/opportunity"
)

// Match returns the opportunities a user with req should see.
// Input order is preserved; the request is assumed to be validated.
func Match(opps []opportunity.Opportunity, req Request) []opportunity.Opportunity {
	out := make([]opportunity.Opportunity, 0, len(opps))
	for _, o := range opps {
		if Matches(o, req) {
			out = append(out, o)
		}
	}
	return out
}

// Matches applies the filtering rules to a single opportunity, in order:
// risk ceiling, short-horizon liquidity, direct asset holding, then the
// chain's native asset.
func Matches(o opportunity.Opportunity, req Request) bool {
	if o.RiskScore > req.RiskTolerance {
		return false
	}
	if req.InvestmentHorizon < ShortHorizonDays && o.Liquidity == opportunity.Locked {
		return false
	}
	if holds(req, o.Asset) {
		return true
	}
	if o.Chain == opportunity.ChainSolana && !holds(req, AssetSOL) {
		return false
	}
	if o.Chain == opportunity.ChainEthereum && !holds(req, AssetETH) {
		return false
	}
	return true
}

// holds reports a wallet entry keyed exactly by asset with a non-zero balance.
// A zero balance counts as not holding, so the default profile matches nothing
// until the user fills it in.
func holds(req Request, asset string) bool {
	bal, ok := req.WalletBalance[asset]
	return ok && !bal.IsZero()
}

// SortByAPR orders opportunities by APR, highest first. Ties keep their order.
func SortByAPR(opps []opportunity.Opportunity) {
	sort.SliceStable(opps, func(i, j int) bool {
		return opps[i].APR.GreaterThan(opps[j].APR)
	})
}
