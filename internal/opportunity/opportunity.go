package opportunity

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func init() {
	// APR is served as a JSON number, not a quoted string.
	decimal.MarshalJSONWithoutQuotes = true
}

// Chain is the blockchain an opportunity lives on. The set is closed.
type Chain string

const (
	ChainEthereum Chain = "ethereum"
	ChainSolana   Chain = "solana"
)

// Category classifies how the yield is produced.
type Category string

const (
	CategoryStaking Category = "staking"
	CategoryLending Category = "lending"
	CategoryVault   Category = "vault"
	CategoryOther   Category = "other"
)

// Liquidity tells whether funds can be withdrawn on demand.
type Liquidity string

const (
	Liquid Liquidity = "liquid"
	Locked Liquidity = "locked"
)

const (
	MinRiskScore = 1
	MaxRiskScore = 10
)

var ErrUnknownChain = errors.New("unknown chain")

// Opportunity is the normalized shape produced by every provider and
// served to every consumer. APR is a fraction: 0.041 means 4.1%.
type Opportunity struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Provider  string          `json:"provider"`
	Asset     string          `json:"asset"`
	Chain     Chain           `json:"chain"`
	APR       decimal.Decimal `json:"apr"`
	Category  Category        `json:"category"`
	Liquidity Liquidity       `json:"liquidity"`
	RiskScore int             `json:"riskScore"`
	YieldDate time.Time       `json:"yieldDate"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// ParseChain maps an upstream chain name onto the closed Chain set.
func ParseChain(s string) (Chain, error) {
	switch Chain(strings.ToLower(strings.TrimSpace(s))) {
	case ChainEthereum:
		return ChainEthereum, nil
	case ChainSolana:
		return ChainSolana, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownChain, s)
}

func (c Chain) Valid() bool { return c == ChainEthereum || c == ChainSolana }

func (c Category) Valid() bool {
	switch c {
	case CategoryStaking, CategoryLending, CategoryVault, CategoryOther:
		return true
	}
	return false
}

func (l Liquidity) Valid() bool { return l == Liquid || l == Locked }

// idNamespace scopes opportunity ids so they never collide with other v5 uuids.
var idNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("yieldfetcher/opportunity"))

// NewID derives the upsert key for a pool. The same provider and pool
// identity always produce the same id.
func NewID(provider, pool string) string {
	key := strings.ToLower(strings.TrimSpace(provider)) + "/" + strings.TrimSpace(pool)
	return uuid.NewSHA1(idNamespace, []byte(key)).String()
}

// Validate checks every field against its declared type and range.
func (o Opportunity) Validate() error {
	var errs ValidationErrors
	required := func(field, v string) {
		if strings.TrimSpace(v) == "" {
			errs = append(errs, ValidationError{Field: field, Reason: "is required"})
		}
	}
	required("id", o.ID)
	required("name", o.Name)
	required("provider", o.Provider)
	required("asset", o.Asset)
	if !o.Chain.Valid() {
		errs = append(errs, ValidationError{Field: "chain", Reason: fmt.Sprintf("must be ethereum or solana, got %q", o.Chain)})
	}
	if o.APR.IsNegative() {
		errs = append(errs, ValidationError{Field: "apr", Reason: "must be non-negative"})
	}
	if !o.Category.Valid() {
		errs = append(errs, ValidationError{Field: "category", Reason: fmt.Sprintf("unknown category %q", o.Category)})
	}
	if !o.Liquidity.Valid() {
		errs = append(errs, ValidationError{Field: "liquidity", Reason: fmt.Sprintf("must be liquid or locked, got %q", o.Liquidity)})
	}
	if o.RiskScore < MinRiskScore || o.RiskScore > MaxRiskScore {
		errs = append(errs, ValidationError{Field: "riskScore", Reason: fmt.Sprintf("must be in [%d,%d], got %d", MinRiskScore, MaxRiskScore, o.RiskScore)})
	}
	if o.YieldDate.IsZero() {
		errs = append(errs, ValidationError{Field: "yieldDate", Reason: "is required"})
	}
	if o.UpdatedAt.IsZero() {
		errs = append(errs, ValidationError{Field: "updatedAt", Reason: "is required"})
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}
