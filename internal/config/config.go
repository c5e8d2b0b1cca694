package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Server struct {
	Port              string   `mapstructure:"port"`
	RequestTimeoutSec int      `mapstructure:"request_timeout_sec"`
	AllowedOrigins    []string `mapstructure:"-"`
}

type Log struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
	// File enables a rotated JSON log at this path.
	File string `mapstructure:"file"`
}

// Provider holds the tunables shared by every upstream source.
// Zero values fall back to the provider's own defaults.
type Provider struct {
	APIURL        string `mapstructure:"api_url"`
	IntervalMS    int    `mapstructure:"interval_ms"`
	TimeoutMS     int    `mapstructure:"timeout_ms"`
	RiskScore     int    `mapstructure:"risk_score"`
	MaxRPM        int    `mapstructure:"max_rpm"`
	Burst         int    `mapstructure:"burst"`
	MinIntervalMS int    `mapstructure:"min_interval_ms"`
}

func (p Provider) Interval() time.Duration    { return ms(p.IntervalMS) }
func (p Provider) Timeout() time.Duration     { return ms(p.TimeoutMS) }
func (p Provider) MinInterval() time.Duration { return ms(p.MinIntervalMS) }

type Config struct {
	Server      Server   `mapstructure:",squash"`
	Log         Log      `mapstructure:"log"`
	DatabaseURL string   `mapstructure:"database_url"`
	CacheTTLSec int      `mapstructure:"cache_ttl_sec"`
	LidoSteth   Provider `mapstructure:"lido_steth"`
	MarinadeSol Provider `mapstructure:"marinade_msol"`
	DefiLlama   Provider `mapstructure:"defillama"`
	// EnabledProviders is the ENABLED_PROVIDERS list, split and trimmed.
	// Registry lookups normalize case.
	EnabledProviders []string `mapstructure:"-"`
}

const (
	DefaultPort              = "8080"
	DefaultRequestTimeoutSec = 10
	DefaultDatabaseURL       = "yieldfetcher.db"
	DefaultCacheTTLSec       = 30
	DefaultLogLevel          = "info"
	DefaultAllowedOrigins    = "*"
)

var providerKeys = []string{"lido_steth", "marinade_msol", "defillama"}

func defaults() map[string]any {
	d := map[string]any{
		"port":                DefaultPort,
		"request_timeout_sec": DefaultRequestTimeoutSec,
		"allowed_origins":     DefaultAllowedOrigins,
		"database_url":        DefaultDatabaseURL,
		"cache_ttl_sec":       DefaultCacheTTLSec,
		"enabled_providers":   "",
		"log.level":           DefaultLogLevel,
		"log.development":     false,
		"log.file":            "",
	}
	for _, p := range providerKeys {
		d[p+".api_url"] = ""
		for _, k := range []string{"interval_ms", "timeout_ms", "risk_score", "max_rpm", "burst", "min_interval_ms"} {
			d[p+"."+k] = 0
		}
	}
	return d
}

// Load resolves configuration from, in increasing precedence: defaults, the
// optional config file at path, and the environment. Nested keys map to
// environment names by upper-casing and replacing "." with "_", so
// lido_steth.interval_ms is LIDO_STETH_INTERVAL_MS.
func Load(path string) (Config, error) {
	v := viper.New()
	for key, value := range defaults() {
		v.SetDefault(key, value)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg.EnabledProviders = splitCSV(v.GetString("enabled_providers"))
	cfg.Server.AllowedOrigins = splitCSV(v.GetString("allowed_origins"))

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadEnvFile loads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

func validate(cfg Config) error {
	if strings.TrimSpace(cfg.Server.Port) == "" {
		return errors.New("invalid port")
	}
	if cfg.Server.RequestTimeoutSec <= 0 {
		return errors.New("invalid request_timeout_sec")
	}
	if cfg.CacheTTLSec < 0 {
		return errors.New("invalid cache_ttl_sec")
	}
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return errors.New("missing database_url")
	}
	for name, p := range map[string]Provider{
		"lido_steth":    cfg.LidoSteth,
		"marinade_msol": cfg.MarinadeSol,
		"defillama":     cfg.DefiLlama,
	} {
		if err := validateProvider(name, p); err != nil {
			return err
		}
	}
	return nil
}

func validateProvider(name string, p Provider) error {
	if p.APIURL != "" {
		u, err := url.Parse(p.APIURL)
		if err != nil || !strings.HasPrefix(u.Scheme, "http") || u.Host == "" {
			return fmt.Errorf("invalid %s.api_url %q", name, p.APIURL)
		}
	}
	if p.IntervalMS < 0 || p.TimeoutMS < 0 || p.MinIntervalMS < 0 {
		return fmt.Errorf("invalid %s timing: durations must be non-negative", name)
	}
	if p.RiskScore != 0 && (p.RiskScore < 1 || p.RiskScore > 10) {
		return fmt.Errorf("invalid %s.risk_score %d: must be in [1,10]", name, p.RiskScore)
	}
	if p.MaxRPM < 0 || p.Burst < 0 {
		return fmt.Errorf("invalid %s rate limit", name)
	}
	return nil
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }
