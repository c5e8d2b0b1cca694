package marinade

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"yieldfetcher/internal/httpx"
	"yieldfetcher/internal/opportunity"
	"yieldfetcher/internal/provider"
)

const (
	DefaultName = "marinademsol"
	// The 14 day APY is the figure shown on the Marinade site.
	DefaultURL       = "https://api.marinade.finance/msol/apy/14d"
	DefaultInterval  = 60 * time.Second
	DefaultTimeout   = 10 * time.Second
	DefaultRiskScore = 4

	poolID = "marinade-msol-staking"
)

type Config struct {
	Name      string
	URL       string
	Interval  time.Duration
	Timeout   time.Duration
	RiskScore int
}

type Provider struct {
	cfg    Config
	client *httpx.Client
	log    *zap.Logger
	now    func() time.Time
}

func New(cfg Config, hc *httpx.Client, log *zap.Logger) *Provider {
	if cfg.Name == "" {
		cfg.Name = DefaultName
	}
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RiskScore == 0 {
		cfg.RiskScore = DefaultRiskScore
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Provider{cfg: cfg, client: hc, log: log.Named(cfg.Name), now: time.Now}
}

func (p *Provider) Name() string            { return p.cfg.Name }
func (p *Provider) Interval() time.Duration { return p.cfg.Interval }
func (p *Provider) Timeout() time.Duration  { return p.cfg.Timeout }

// apyResponse.Value is already a fraction, unlike most upstreams.
type apyResponse struct {
	Value      decimal.Decimal `json:"value"`
	EndTime    time.Time       `json:"end_time"`
	EndPrice   float64         `json:"end_price"`
	StartTime  time.Time       `json:"start_time"`
	StartPrice float64         `json:"start_price"`
}

var errMissingEndTime = errors.New("missing end_time")

func (p *Provider) Fetch(ctx context.Context) ([]opportunity.Opportunity, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	var api apyResponse
	if err := p.client.GetJSON(ctx, p.cfg.URL, &api); err != nil {
		return nil, provider.NewFetchError(p.cfg.Name, err)
	}
	if api.EndTime.IsZero() {
		err := &provider.MappingError{Provider: p.cfg.Name, Record: poolID, Err: errMissingEndTime}
		p.log.Warn("skipping record", zap.Error(err))
		return nil, nil
	}

	return provider.Validated(p.log, p.cfg.Name, []opportunity.Opportunity{{
		ID:        opportunity.NewID(p.cfg.Name, poolID),
		Name:      "Marinade mSOL Staking",
		Provider:  p.cfg.Name,
		Asset:     "mSOL",
		Chain:     opportunity.ChainSolana,
		APR:       api.Value,
		Category:  opportunity.CategoryStaking,
		Liquidity: opportunity.Liquid,
		RiskScore: p.cfg.RiskScore,
		YieldDate: api.EndTime.UTC(),
		UpdatedAt: p.now().UTC(),
	}}), nil
}
