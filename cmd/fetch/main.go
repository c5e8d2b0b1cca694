package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"yieldfetcher/internal/config"
	"yieldfetcher/internal/httpx"
	"yieldfetcher/internal/logger"
	"yieldfetcher/internal/match"
	"yieldfetcher/internal/opportunity"
	"yieldfetcher/internal/provider"
	"yieldfetcher/internal/registry"
	"yieldfetcher/internal/storage/sqlite"
)

type options struct {
	configPath string
	envFile    string
	providers  []string
	store      bool
	limit      int
	timeout    time.Duration
}

type output struct {
	Opportunities []opportunity.Opportunity `json:"opportunities"`
	Errors        map[string]string         `json:"errors,omitempty"`
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Run every enabled provider once and print what it returns",
		Example: `  fetch --providers lidosteth,defillama --limit 5
  fetch --store`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&opts.configPath, "config", os.Getenv("CONFIG_FILE"), "path to a config file (optional)")
	cmd.Flags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	cmd.Flags().StringSliceVar(&opts.providers, "providers", nil, "providers to run, overriding ENABLED_PROVIDERS")
	cmd.Flags().BoolVar(&opts.store, "store", false, "also upsert the results into DATABASE_URL")
	cmd.Flags().IntVar(&opts.limit, "limit", 10, "print at most this many records (0 = all)")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", time.Minute, "overall deadline")
	return cmd
}

func run(ctx context.Context, opts options, out io.Writer) error {
	if err := config.LoadEnvFile(opts.envFile); err != nil {
		return err
	}
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if len(opts.providers) > 0 {
		cfg.EnabledProviders = opts.providers
	}
	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Development: cfg.Log.Development})
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	hc := httpx.New(time.Duration(cfg.Server.RequestTimeoutSec) * time.Second)
	reg := registry.New(registry.Builtin(cfg, hc, log), cfg.EnabledProviders, log)
	if err := reg.Load(); err != nil {
		if errors.Is(err, registry.ErrNoProviders) {
			return fmt.Errorf("%w (available: %v)", err, reg.Available())
		}
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	res := fetchAll(ctx, reg.Enabled())
	for name, msg := range res.Errors {
		log.Error("provider failed", zap.String("provider", name), zap.String("error", msg))
	}
	if len(res.Opportunities) == 0 {
		return errors.New("no opportunities received")
	}

	if opts.store {
		if err := store(ctx, cfg.DatabaseURL, res.Opportunities, log); err != nil {
			return err
		}
	}

	match.SortByAPR(res.Opportunities)
	if opts.limit > 0 && len(res.Opportunities) > opts.limit {
		res.Opportunities = res.Opportunities[:opts.limit]
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

// fetchAll runs every provider concurrently. Failures are collected per
// provider; the records of the others are still returned.
func fetchAll(ctx context.Context, providers []provider.Provider) output {
	results := make([][]opportunity.Opportunity, len(providers))
	errs := make([]error, len(providers))

	var g errgroup.Group
	for i, p := range providers {
		g.Go(func() error {
			results[i], errs[i] = p.Fetch(ctx)
			return nil
		})
	}
	_ = g.Wait()

	var res output
	for i, p := range providers {
		if errs[i] != nil {
			if res.Errors == nil {
				res.Errors = make(map[string]string)
			}
			res.Errors[p.Name()] = errs[i].Error()
			continue
		}
		res.Opportunities = append(res.Opportunities, results[i]...)
	}
	return res
}

func store(ctx context.Context, path string, recs []opportunity.Opportunity, log *zap.Logger) error {
	db, err := sqlite.Open(path)
	if err != nil {
		return err
	}
	defer db.Close()

	got, err := db.BatchUpsertOpportunities(ctx, recs)
	if err != nil {
		return err
	}
	log.Info("stored opportunities", zap.String("path", path), zap.Int("success", got.Success), zap.Int("failed", got.Failed))
	return nil
}
