package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"yieldfetcher/internal/config"
	"yieldfetcher/internal/httpx"
	"yieldfetcher/internal/logger"
	"yieldfetcher/internal/registry"
	"yieldfetcher/internal/scheduler"
	"yieldfetcher/internal/storage"
	"yieldfetcher/internal/storage/cache"
	"yieldfetcher/internal/storage/sqlite"
)

const (
	shutdownTimeout = 5 * time.Second
	storeCheckTries = 5
)

type options struct {
	configPath string
	envFile    string
	api        bool
	fetch      bool
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
		Use:   "yieldfetcher",
		Short: "Collect yield opportunities and serve them over HTTP",
		Long: `Runs the provider fetch loops and the HTTP API against one database.

With neither --api nor --fetch both run in the same process.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !opts.api && !opts.fetch {
				opts.api, opts.fetch = true, true
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, opts)
		},
	}
	cmd.Flags().StringVar(&opts.configPath, "config", os.Getenv("CONFIG_FILE"), "path to a config file (optional)")
	cmd.Flags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	cmd.Flags().BoolVar(&opts.api, "api", false, "serve the HTTP API")
	cmd.Flags().BoolVar(&opts.fetch, "fetch", false, "run the provider fetch loops")
	return cmd
}

func run(ctx context.Context, opts options) error {
	if err := config.LoadEnvFile(opts.envFile); err != nil {
		return err
	}
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Development: cfg.Log.Development, File: cfg.Log.File})
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	store, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Error("database unavailable", zap.Error(err))
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	fetchDone := make(chan struct{})
	if opts.fetch {
		hc := httpx.New(time.Duration(cfg.Server.RequestTimeoutSec) * time.Second)
		reg := registry.New(registry.Builtin(cfg, hc, log), cfg.EnabledProviders, log)
		if err := reg.Load(); err != nil {
			log.Error("cannot start fetcher", zap.Error(err))
			_ = store.Close()
			return err
		}
		sched := scheduler.New(reg.Enabled(), store, log)
		g.Go(func() error {
			defer close(fetchDone)
			return sched.Run(gctx)
		})
	} else {
		close(fetchDone)
	}

	if opts.api {
		srv := &http.Server{
			Addr:              ":" + cfg.Server.Port,
			Handler:           newServer(store, log).handler(cfg.Server.AllowedOrigins),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      20 * time.Second,
			IdleTimeout:       60 * time.Second,
		}
		g.Go(func() error {
			log.Info("server listening", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			<-fetchDone
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	err = g.Wait()
	log.Info("shutting down")
	return errors.Join(err, store.Close())
}

// openStore opens the database, puts the read cache in front of it and
// waits for it to answer before anything else starts.
func openStore(ctx context.Context, cfg config.Config, log *zap.Logger) (storage.Gateway, error) {
	db, err := sqlite.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	store, err := cache.New(db, time.Duration(cfg.CacheTTLSec)*time.Second, log)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	check := func() (struct{}, error) {
		if !store.TestConnection(ctx) {
			return struct{}{}, errors.New("database not reachable")
		}
		return struct{}{}, nil
	}
	notify := func(err error, d time.Duration) {
		log.Warn("database check failed, retrying", zap.Error(err), zap.Duration("backoff", d))
	}
	if _, err := backoff.Retry(ctx, check,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(storeCheckTries),
		backoff.WithNotify(notify)); err != nil {
		_ = store.Close()
		return nil, err
	}
	log.Info("database connection ok", zap.String("path", cfg.DatabaseURL))
	return store, nil
}
