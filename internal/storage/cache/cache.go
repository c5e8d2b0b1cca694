package cache

import (
	"context"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/ristretto"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"yieldfetcher/internal/opportunity"
	"yieldfetcher/internal/storage"
)

const allKey = "opportunities:all"

// Gateway caches GetAllOpportunities of the wrapped gateway for TTL.
// Concurrent misses share one read. A successful batch upsert through this
// gateway drops the cached list; writes from other processes show up once
// the TTL expires.
type Gateway struct {
	storage.Gateway

	ttl   time.Duration
	cache *ristretto.Cache
	group singleflight.Group
	gen   atomic.Uint64
	log   *zap.Logger
}

// New wraps g. A non-positive ttl disables caching and returns g unchanged.
func New(g storage.Gateway, ttl time.Duration, log *zap.Logger) (storage.Gateway, error) {
	if ttl <= 0 {
		return g, nil
	}
	if log == nil {
		log = zap.NewNop()
	}
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters:        100,
		MaxCost:            1 << 10,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create cache: %w", err)
	}
	return &Gateway{Gateway: g, ttl: ttl, cache: c, log: log.Named("cache")}, nil
}

func (g *Gateway) GetAllOpportunities(ctx context.Context) ([]opportunity.Opportunity, error) {
	if v, ok := g.cache.Get(allKey); ok {
		return slices.Clone(v.([]opportunity.Opportunity)), nil
	}

	v, err, shared := g.group.Do(allKey, func() (any, error) {
		gen := g.gen.Load()
		recs, err := g.Gateway.GetAllOpportunities(ctx)
		if err != nil {
			return nil, err
		}
		// Skip the fill if a write invalidated the list while we were reading.
		if g.gen.Load() == gen {
			g.cache.SetWithTTL(allKey, recs, 1, g.ttl)
			g.cache.Wait()
		}
		return recs, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		g.log.Debug("coalesced opportunities read")
	}
	return slices.Clone(v.([]opportunity.Opportunity)), nil
}

func (g *Gateway) BatchUpsertOpportunities(ctx context.Context, recs []opportunity.Opportunity) (storage.BatchResult, error) {
	res, err := g.Gateway.BatchUpsertOpportunities(ctx, recs)
	if res.Success > 0 {
		g.Invalidate()
	}
	return res, err
}

// Invalidate drops the cached list.
func (g *Gateway) Invalidate() {
	g.gen.Add(1)
	g.cache.Del(allKey)
}

func (g *Gateway) Close() error {
	g.cache.Close()
	return g.Gateway.Close()
}
