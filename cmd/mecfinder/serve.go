package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ay9334524-ux/mecfinder-backend/internal/api"
	"github.com/ay9334524-ux/mecfinder-backend/internal/auth"
	"github.com/ay9334524-ux/mecfinder-backend/internal/config"
	"github.com/ay9334524-ux/mecfinder-backend/internal/dispatch"
	"github.com/ay9334524-ux/mecfinder-backend/internal/events"
	"github.com/ay9334524-ux/mecfinder-backend/internal/lock"
	"github.com/ay9334524-ux/mecfinder-backend/internal/log"
	"github.com/ay9334524-ux/mecfinder-backend/internal/metrics"
	"github.com/ay9334524-ux/mecfinder-backend/internal/webhook"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the dispatch engine and its HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg)
		},
	}
}

func runServe(ctx context.Context, cfg *config.Config) error {
	log.Setup(cfg.Service.LogLevel, cfg.Service.LogFormat)
	logger := log.WithComponent("main")
	logger.Info("mecfinder starting", "version", version, "config", cfg.SourcePath, "config_locked", cfg.Locked)

	if cfg.Service.PIDFile != "" {
		pidLock, err := lock.Acquire(cfg.Service.PIDFile)
		if err != nil {
			logger.Error("failed to acquire PID lock (another instance may be running)", "path", cfg.Service.PIDFile, "error", err)
			return err
		}
		defer pidLock.Release()
		logger.Info("acquired PID lock", "path", pidLock.Path())
	}

	st, err := openStores(ctx, cfg, log.WithComponent("storage"))
	if err != nil {
		logger.Error("failed to open stores", "error", err)
		return err
	}
	defer st.Close()

	if st.pruner != nil {
		go st.pruner.RunPruner(ctx, cfg.State.PruneInterval)
	}

	hub := events.NewHub(cfg.API.EventsBuffer)

	var (
		collector      *metrics.Collector
		metricsHandler http.Handler
	)
	if cfg.Metrics.Enabled {
		collector = metrics.NewCollector()
		metricsHandler = collector.Handler()
	}

	mgr := dispatch.NewManager(dispatch.Config{
		OfferTimeout:        cfg.Dispatch.OfferTimeout,
		SnapshotTTL:         cfg.Dispatch.SnapshotTTL,
		StoreTimeout:        cfg.Dispatch.StoreTimeout,
		RecoveryConcurrency: cfg.Dispatch.RecoveryConcurrency,
	}, st.records, st.state, hub, collector, log.WithComponent("dispatch"))
	defer mgr.Shutdown()

	if cfg.Dispatch.RecoverOnStart {
		report, err := mgr.Recover(ctx)
		if err != nil {
			logger.Error("recovery scan failed", "error", err)
			return err
		}
		logger.Info("recovery complete",
			"scanned", report.Scanned,
			"resumed", report.Resumed,
			"discarded", report.Discarded,
			"exhausted", report.Exhausted,
			"failed", report.Failed,
		)
	}

	signer, err := auth.NewSigner(cfg.API.JWTSecret, cfg.API.JWTIssuer)
	if err != nil {
		return fmt.Errorf("configure auth: %w", err)
	}

	srv := api.New(api.Config{Listen: cfg.API.Listen}, mgr, st.records, hub, signer, metricsHandler, log.WithComponent("api"))

	var intake *webhook.Server
	if cfg.Webhook.Enabled {
		whCfg, err := webhook.FromGlobalConfig(cfg.Webhook)
		if err != nil {
			return fmt.Errorf("configure webhook: %w", err)
		}
		intake = webhook.New(whCfg, st.records, mgr, log.WithComponent("webhook"))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Start(gctx) })
	if intake != nil {
		g.Go(func() error { return intake.Start(gctx) })
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		logger.Info("shutdown signal received")
		return nil
	}
	if err != nil {
		logger.Error("server failed", "error", err)
	}
	return err
}
