package registry

import (
	"net/http"

	"go.uber.org/zap"

	"yieldfetcher/internal/config"
	"yieldfetcher/internal/httpx"
	"yieldfetcher/internal/provider"
	"yieldfetcher/internal/provider/defillama"
	"yieldfetcher/internal/provider/lido"
	"yieldfetcher/internal/provider/llama"
	"yieldfetcher/internal/provider/marinade"
	"yieldfetcher/internal/provider/ratelimit"
)

// Builtin returns the factory table of every provider this service ships,
// configured from cfg and wrapped in the configured rate limiters.
func Builtin(cfg config.Config, hc *httpx.Client, log *zap.Logger) map[string]Factory {
	if log == nil {
		log = zap.NewNop()
	}
	limited := func(p provider.Provider, pc config.Provider) provider.Provider {
		return ratelimit.Wrap(p, ratelimit.Options{
			MaxRPM:      pc.MaxRPM,
			Burst:       pc.Burst,
			MinInterval: pc.MinInterval(),
		})
	}

	return map[string]Factory{
		lido.DefaultName: func() provider.Provider {
			pc := cfg.LidoSteth
			return limited(lido.New(lido.Config{
				URL:       pc.APIURL,
				Interval:  pc.Interval(),
				Timeout:   pc.Timeout(),
				RiskScore: pc.RiskScore,
			}, hc, log), pc)
		},
		marinade.DefaultName: func() provider.Provider {
			pc := cfg.MarinadeSol
			return limited(marinade.New(marinade.Config{
				URL:       pc.APIURL,
				Interval:  pc.Interval(),
				Timeout:   pc.Timeout(),
				RiskScore: pc.RiskScore,
			}, hc, log), pc)
		},
		defillama.DefaultName: func() provider.Provider {
			pc := cfg.DefiLlama
			client := llama.NewClient(
				llama.WithBaseURL(pc.APIURL),
				llama.WithHTTPClient(hc.HTTP),
				llama.WithHeader(http.Header{"User-Agent": {hc.UserAgent}}),
			)
			return limited(defillama.New(defillama.Config{
				Interval: pc.Interval(),
				Timeout:  pc.Timeout(),
			}, client, log), pc)
		},
	}
}
