package defillama

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"yieldfetcher/internal/opportunity"
	"yieldfetcher/internal/provider"
	"yieldfetcher/internal/provider/llama"
	"yieldfetcher/internal/risk"
)

const (
	DefaultName     = "defillama"
	DefaultInterval = 60 * time.Second
	DefaultTimeout  = 10 * time.Second
)

// minAPY is the APY floor in percent. Dust pools are not worth surfacing.
const minAPY = 1.0

type Config struct {
	Name     string
	Interval time.Duration
	Timeout  time.Duration
}

// Adapter turns the DefiLlama pool listing into opportunities on the
// supported chains.
type Adapter struct {
	cfg    Config
	client *llama.Client
	log    *zap.Logger
	now    func() time.Time
}

func New(cfg Config, client *llama.Client, log *zap.Logger) *Adapter {
	if cfg.Name == "" {
		cfg.Name = DefaultName
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Adapter{cfg: cfg, client: client, log: log.Named(cfg.Name), now: time.Now}
}

func (a *Adapter) Name() string            { return a.cfg.Name }
func (a *Adapter) Interval() time.Duration { return a.cfg.Interval }
func (a *Adapter) Timeout() time.Duration  { return a.cfg.Timeout }

func (a *Adapter) Fetch(ctx context.Context) ([]opportunity.Opportunity, error) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	pools, err := a.client.GetPools(ctx)
	if err != nil {
		return nil, a.fetchError(err)
	}

	now := a.now().UTC()
	out := make([]opportunity.Opportunity, 0, 64)
	var skipped int
	for _, p := range pools {
		if !candidate(p) {
			continue
		}
		o, err := a.mapPool(p, now)
		if err != nil {
			skipped++
			a.log.Debug("skipping pool", zap.Error(err))
			continue
		}
		out = append(out, o)
	}
	if skipped > 0 {
		a.log.Warn("skipped unmappable pools", zap.Int("count", skipped))
	}
	return provider.Validated(a.log, a.cfg.Name, out), nil
}

func (a *Adapter) fetchError(err error) *provider.FetchError {
	op := provider.OpRequest
	var se *llama.StatusError
	var de *llama.DecodeError
	switch {
	case errors.As(err, &se):
		op = provider.OpStatus
	case errors.As(err, &de):
		op = provider.OpDecode
	}
	return &provider.FetchError{Provider: a.cfg.Name, Op: op, Err: err}
}

// candidate applies the pre-filter: supported chain, a staking, lending or
// vault hint, and an APY above the floor.
func candidate(p llama.Pool) bool {
	if _, err := opportunity.ParseChain(p.Chain); err != nil {
		return false
	}
	if !hasAny(p, "stak", "lend", "vault") {
		return false
	}
	return p.APY > minAPY
}

func (a *Adapter) mapPool(p llama.Pool, now time.Time) (opportunity.Opportunity, error) {
	key := poolKey(p)
	chain, err := opportunity.ParseChain(p.Chain)
	if err != nil {
		return opportunity.Opportunity{}, &provider.MappingError{Provider: a.cfg.Name, Record: key, Err: err}
	}
	if strings.TrimSpace(p.Symbol) == "" {
		return opportunity.Opportunity{}, &provider.MappingError{Provider: a.cfg.Name, Record: key, Err: errors.New("missing symbol")}
	}

	cat := category(p)
	locked := isLocked(p)
	liq := opportunity.Liquid
	if locked {
		liq = opportunity.Locked
	}

	return opportunity.Opportunity{
		ID:        opportunity.NewID(a.cfg.Name, key),
		Name:      fmt.Sprintf("%s %s", p.Project, p.Symbol),
		Provider:  a.cfg.Name,
		Asset:     p.Symbol,
		Chain:     chain,
		APR:       decimal.NewFromFloat(p.APY).Div(decimal.NewFromInt(100)),
		Category:  cat,
		Liquidity: liq,
		RiskScore: risk.Score(factors(p, cat, locked)),
		YieldDate: now,
		UpdatedAt: now,
	}, nil
}

// poolKey is the upstream pool uuid, or a composite key when it is absent.
func poolKey(p llama.Pool) string {
	if id := strings.TrimSpace(p.Pool); id != "" {
		return id
	}
	return fmt.Sprintf("%s-%s-%s", p.Project, p.Symbol, meta(p))
}

func category(p llama.Pool) opportunity.Category {
	switch {
	case hasAny(p, "lend"):
		return opportunity.CategoryLending
	case hasAny(p, "vault"):
		return opportunity.CategoryVault
	case hasAny(p, "stak"):
		return opportunity.CategoryStaking
	}
	return opportunity.CategoryOther
}

func isLocked(p llama.Pool) bool {
	return strings.Contains(strings.ToLower(meta(p)), "lock")
}

func factors(p llama.Pool, cat opportunity.Category, locked bool) risk.Factors {
	return risk.Factors{
		Sigma:           deref(p.Sigma),
		APYPct1D:        deref(p.APYPct1D),
		APYPct7D:        deref(p.APYPct7D),
		APYPct30D:       deref(p.APYPct30D),
		TVL:             p.TVLUsd,
		ImpermanentLoss: strings.EqualFold(p.ILRisk, "yes"),
		Stablecoin:      p.Stablecoin,
		Category:        cat,
		Locked:          locked,
	}
}

func hasAny(p llama.Pool, subs ...string) bool {
	project := strings.ToLower(p.Project)
	pm := strings.ToLower(meta(p))
	for _, s := range subs {
		if strings.Contains(project, s) || strings.Contains(pm, s) {
			return true
		}
	}
	return false
}

func meta(p llama.Pool) string {
	if p.PoolMeta == nil {
		return ""
	}
	return *p.PoolMeta
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
