package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"yieldfetcher/internal/opportunity"
	"yieldfetcher/internal/provider"
	"yieldfetcher/internal/storage"
)

// Store is the part of the storage gateway the fetch loop writes to.
//
//go:generate mockgen -package=scheduler_test -destination=mock_store_test.go -source=scheduler.go Store
type Store interface {
	BatchUpsertOpportunities(ctx context.Context, recs []opportunity.Opportunity) (storage.BatchResult, error)
}

// fallbackInterval is used for providers reporting a non-positive interval.
const fallbackInterval = time.Minute

// CycleResult summarizes one fetch-and-store cycle.
type CycleResult struct {
	Provider string
	Fetched  int
	Stored   storage.BatchResult
	Duration time.Duration
	// Err is set when the fetch failed, the store failed or the cycle panicked.
	Err error
}

// Scheduler drives every provider on its own interval.
type Scheduler struct {
	providers []provider.Provider
	store     Store
	log       *zap.Logger

	// OnCycle, when set, observes every finished cycle.
	OnCycle func(CycleResult)
}

func New(providers []provider.Provider, store Store, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{providers: providers, store: store, log: log.Named("scheduler")}
}

// Run performs one sequential pass over all providers in order, then runs
// each provider on its own loop until ctx is done. A provider's next cycle
// is scheduled only after its previous cycle finished, so cycles of one
// provider never overlap. Run returns once every loop has exited.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Info("initial fetch pass", zap.Int("providers", len(s.providers)))
	for _, p := range s.providers {
		if ctx.Err() != nil {
			return nil
		}
		s.RunCycle(ctx, p)
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, p := range s.providers {
		g.Go(func() error {
			s.loop(ctx, p)
			return nil
		})
	}
	err := g.Wait()
	s.log.Info("fetch loops stopped")
	return err
}

func (s *Scheduler) loop(ctx context.Context, p provider.Provider) {
	interval := p.Interval()
	if interval <= 0 {
		interval = fallbackInterval
	}
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		s.RunCycle(ctx, p)
		timer.Reset(interval)
	}
}

// RunCycle fetches from p and stores the result. Failures are logged and
// reported in the result, never propagated, so one bad cycle does not stop
// the provider's loop.
func (s *Scheduler) RunCycle(ctx context.Context, p provider.Provider) (res CycleResult) {
	name := p.Name()
	res.Provider = name
	log := s.log.With(zap.String("provider", name))
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("panic in fetch cycle: %v", r)
			log.Error("fetch cycle panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
		res.Duration = time.Since(start)
		if s.OnCycle != nil {
			s.OnCycle(res)
		}
	}()

	log.Debug("starting fetch cycle")
	recs, err := p.Fetch(ctx)
	if err != nil {
		res.Err = err
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			log.Info("fetch cycle canceled")
			return res
		}
		log.Error("fetch cycle failed", zap.Error(err))
		return res
	}
	res.Fetched = len(recs)
	if len(recs) == 0 {
		log.Info("no opportunities fetched")
		return res
	}

	stored, err := s.store.BatchUpsertOpportunities(ctx, recs)
	res.Stored = stored
	if err != nil {
		res.Err = err
		log.Error("storing opportunities failed",
			zap.Int("success", stored.Success),
			zap.Int("failed", stored.Failed),
			zap.Error(err),
		)
		return res
	}
	log.Info("fetch cycle completed",
		zap.Duration("duration", time.Since(start)),
		zap.Int("success", stored.Success),
		zap.Int("failed", stored.Failed),
	)
	return res
}
