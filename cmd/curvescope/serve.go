package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"curveScope/internal/config"
	"curveScope/internal/server"
)

func runServe(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pipe, err := buildPipeline(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer pipe.Close()

	api := server.NewServer(server.Config{
		TotalSupplyTokens: cfg.TotalSupply,
	}, pipe.store, pipe.reconciler, pipe.curve, logger)

	scheduler := cron.New()
	// Skip a pass when the previous one still runs; syncs are idempotent so
	// nothing is lost by skipping.
	var running atomic.Bool
	if _, err := scheduler.AddFunc(cfg.SyncSpec, func() {
		if !running.CompareAndSwap(false, true) {
			logger.Warn("sync pass still running, skipping")
			return
		}
		defer running.Store(false)
		runScheduledSync(ctx, pipe, cfg.Tokens, logger)
	}); err != nil {
		return err
	}
	scheduler.Start()
	defer scheduler.Stop()

	httpServer := &http.Server{
		Addr:              cfg.Listen,
		Handler:           api,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api listening",
			zap.String("addr", cfg.Listen),
			zap.String("sync_spec", cfg.SyncSpec),
		)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		stopServe(httpServer)
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// runScheduledSync runs one pass: the configured token set when given,
// otherwise every token with factory activity.
func runScheduledSync(ctx context.Context, pipe *pipeline, tokens []string, logger *zap.Logger) {
	if len(tokens) == 0 {
		outcome, err := pipe.reconciler.SyncAll(ctx)
		if err != nil {
			logger.Error("scheduled sync failed", zap.Error(err))
			return
		}
		logger.Info("scheduled sync done",
			zap.Int("tokens", outcome.Tokens),
			zap.Int("new_records", outcome.NewRecords),
			zap.Int("malformed", outcome.Malformed),
		)
		return
	}

	for _, token := range tokens {
		outcome, err := pipe.reconciler.SyncToken(ctx, token)
		if err != nil {
			logger.Error("scheduled sync failed", zap.String("token", token), zap.Error(err))
			continue
		}
		logger.Info("scheduled sync done",
			zap.String("token", token),
			zap.Int("new_records", outcome.NewRecords),
			zap.Int("malformed", outcome.Malformed),
		)
	}
}

func stopServe(httpServer *http.Server) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		httpServer.Close()
	}
}
