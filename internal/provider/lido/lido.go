package lido

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
	DefaultName      = "lidosteth"
	DefaultURL       = "https://eth-api.lido.fi/v1/protocol/steth/apr/last"
	DefaultInterval  = 5 * time.Minute
	DefaultTimeout   = 10 * time.Second
	DefaultRiskScore = 2

	poolID = "lido-steth-staking"
)

type Config struct {
	Name     string
	URL      string
	Interval time.Duration
	Timeout  time.Duration
	// RiskScore is static: a liquid staking token on ethereum.
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

// {"data":{"timeUnix":1700000000,"apr":3.1},"meta":{"symbol":"stETH","address":"0x...","chainId":1}}
type aprResponse struct {
	Data struct {
		TimeUnix int64           `json:"timeUnix"`
		APR      decimal.Decimal `json:"apr"`
	} `json:"data"`
}

var (
	hundred        = decimal.NewFromInt(100)
	errMissingTime = errors.New("missing timeUnix")
)

func (p *Provider) Fetch(ctx context.Context) ([]opportunity.Opportunity, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	var api aprResponse
	if err := p.client.GetJSON(ctx, p.cfg.URL, &api); err != nil {
		return nil, provider.NewFetchError(p.cfg.Name, err)
	}

	if api.Data.TimeUnix <= 0 {
		err := &provider.MappingError{Provider: p.cfg.Name, Record: poolID, Err: errMissingTime}
		p.log.Warn("skipping record", zap.Error(err))
		return nil, nil
	}

	o := opportunity.Opportunity{
		ID:        opportunity.NewID(p.cfg.Name, poolID),
		Name:      "Lido stETH Staking",
		Provider:  p.cfg.Name,
		Asset:     "stETH",
		Chain:     opportunity.ChainEthereum,
		APR:       api.Data.APR.Div(hundred),
		Category:  opportunity.CategoryStaking,
		Liquidity: opportunity.Liquid,
		RiskScore: p.cfg.RiskScore,
		YieldDate: time.Unix(api.Data.TimeUnix, 0).UTC(),
		UpdatedAt: p.now().UTC(),
	}
	return provider.Validated(p.log, p.cfg.Name, []opportunity.Opportunity{o}), nil
}
