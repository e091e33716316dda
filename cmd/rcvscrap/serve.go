package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/use-agent/rcvscrap/api"
	"github.com/use-agent/rcvscrap/cache"
	"github.com/use-agent/rcvscrap/config"
	"github.com/use-agent/rcvscrap/export"
	"github.com/use-agent/rcvscrap/jobs"
	"github.com/use-agent/rcvscrap/pipeline"
	"github.com/use-agent/rcvscrap/scraper"
	"github.com/use-agent/rcvscrap/webhook"
)

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Serves the HTTP API (the default when no subcommand is given).",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), config.Load())
		},
	})
}

// serve runs the HTTP API until ctx is cancelled.
func serve(ctx context.Context, cfg *config.Config) error {
	initLogger(cfg.Log)
	slog.Info("rcvscrap starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"headless", cfg.Browser.Headless,
		"credentials", cfg.Portal.Credentials(),
	)
	if err := cfg.Validate(); err != nil {
		return err
	}

	// ── 1. Browser ──────────────────────────────────────────────────
	sc, err := scraper.NewScraper(cfg.Browser, cfg.Portal)
	if err != nil {
		return err
	}
	defer sc.Close()

	// ── 2. Pipeline, history cache and run slot ─────────────────────
	orch := pipeline.New(sc, cfg.Portal, cfg.Portal.Credentials())

	cc := cache.New(cfg.Cache.MaxEntries, cfg.Cache.TTL)
	defer cc.Close()

	notifier := webhook.New(cfg.Webhook.URL, cfg.Webhook.Secret)
	runner := jobs.NewRunner(orch,
		jobs.WithWriters(
			export.NewJSONWriter(cfg.Output.JSONPath),
			export.NewExcelWriter(cfg.Output.ExcelPath),
		),
		jobs.WithCache(cc),
		jobs.WithNotifier(notifier),
		jobs.WithRunTimeout(cfg.Portal.RunTimeout),
	)

	// ── 3. HTTP server ──────────────────────────────────────────────
	router := api.NewRouter(runner, cc, cfg, time.Now())
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// ── 4. Graceful shutdown ────────────────────────────────────────
	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	}

	// Give in-flight requests 5 seconds to complete.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	// A running extraction is cancelled so its session closes before Chrome.
	runCtx, runCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer runCancel()
	if err := runner.Shutdown(runCtx); err != nil {
		slog.Warn("extraction did not stop in time", "error", err)
	}
	notifier.Wait()

	slog.Info("rcvscrap stopped")
	return nil
}
