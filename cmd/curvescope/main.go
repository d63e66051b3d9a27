package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"curveScope/internal/chain"
	"curveScope/internal/config"
	"curveScope/internal/discovery"
	"curveScope/internal/export"
	"curveScope/internal/factory"
	"curveScope/internal/model"
	"curveScope/internal/oracle"
	"curveScope/internal/reconcile"
	"curveScope/internal/store"
	"curveScope/internal/store/memory"
	"curveScope/internal/store/postgres"
)

func main() {
	root := &cobra.Command{
		Use:          "curvescope",
		Short:        "Launchpad bonding-curve reconciler",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one reconciliation pass",
		RunE:  runSync,
	}
	addPipelineFlags(syncCmd)
	syncCmd.Flags().String("token", "", "limit the pass to one token address")
	root.AddCommand(syncCmd)

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the API with scheduled reconciliation",
		RunE:  runServe,
	}
	addPipelineFlags(serveCmd)
	serveCmd.Flags().String("listen", ":8080", "HTTP listen address")
	serveCmd.Flags().String("sync-spec", "@every 5m", "cron spec for scheduled sync passes")
	serveCmd.Flags().StringSlice("tokens", nil, "token addresses for scheduled syncs (comma-separated, empty syncs all)")
	root.AddCommand(serveCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addPipelineFlags(cmd *cobra.Command) {
	cmd.Flags().String("rpc", "", "Ethereum RPC URL")
	cmd.Flags().String("factory", "", "launchpad factory contract address")
	cmd.Flags().String("pg-dsn", "", "Postgres DSN (empty runs in-memory)")
	cmd.Flags().Duration("lookback", 9*time.Hour, "discovery lookback window")
	cmd.Flags().Uint64("step-blocks", 1000, "blocks per log query")
	cmd.Flags().Int("concurrency", 5, "concurrent log queries")
	cmd.Flags().Int("max-retries", 5, "maximum retry attempts per RPC call")
	cmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	cmd.Flags().Duration("call-timeout", 15*time.Second, "per-call RPC timeout")
	cmd.Flags().String("price-feed", "", "Chainlink ETH/USD aggregator address")
	cmd.Flags().String("price-url", "", "HTTP price API override")
	cmd.Flags().Duration("price-max-stale", 15*time.Minute, "max age of the cached price fallback")
	cmd.Flags().Int64("total-supply", model.DefaultTotalSupplyTokens, "per-token supply in whole tokens")
	cmd.Flags().Duration("volume-window", 24*time.Hour, "rolling volume window")
	cmd.Flags().String("export", "", "JSONL export path (empty disables export)")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
}

// pipeline bundles the wired components a command runs against.
type pipeline struct {
	chain      *chain.Client
	store      store.Store
	closeStore func()
	curve      *factory.CurveReader
	reconciler *reconcile.Reconciler
}

func (p *pipeline) Close() {
	if p.closeStore != nil {
		p.closeStore()
	}
	if p.chain != nil {
		p.chain.Close()
	}
}

func buildPipeline(ctx context.Context, cfg config.Config, logger *zap.Logger) (*pipeline, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("rpc url is required")
	}
	if !common.IsHexAddress(cfg.Factory) {
		return nil, fmt.Errorf("valid factory address is required")
	}
	factoryAddr := common.HexToAddress(cfg.Factory)

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("connect rpc: %w", err)
	}

	var st store.Store
	var closeStore func()
	if cfg.PgDSN != "" {
		pgStore, err := postgres.NewStore(ctx, cfg.PgDSN)
		if err != nil {
			chainClient.Close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := pgStore.EnsureSchema(ctx); err != nil {
			pgStore.Close()
			chainClient.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		st = pgStore
		closeStore = pgStore.Close
	} else {
		logger.Warn("no pg-dsn configured, using in-memory store")
		st = memory.NewStore()
	}

	decoder, err := factory.NewDecoder()
	if err != nil {
		if closeStore != nil {
			closeStore()
		}
		chainClient.Close()
		return nil, fmt.Errorf("build decoder: %w", err)
	}

	discoverer := discovery.NewService(discovery.Config{
		Factory:      factoryAddr,
		Lookback:     cfg.Lookback,
		StepBlocks:   cfg.StepBlocks,
		Concurrency:  cfg.Concurrency,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
		CallTimeout:  cfg.CallTimeout,
	}, chainClient, decoder, logger)

	var feed common.Address
	if cfg.PriceFeed != "" {
		if !common.IsHexAddress(cfg.PriceFeed) {
			if closeStore != nil {
				closeStore()
			}
			chainClient.Close()
			return nil, fmt.Errorf("invalid price feed address %q", cfg.PriceFeed)
		}
		feed = common.HexToAddress(cfg.PriceFeed)
	}
	prices := oracle.New(oracle.Config{
		Feed:     feed,
		PriceURL: cfg.PriceURL,
		MaxStale: cfg.PriceMaxStale,
	}, chainClient, logger)

	curve := factory.NewCurveReader(chainClient, factoryAddr)

	var exporter reconcile.Exporter
	if cfg.ExportPath != "" {
		exporter = export.NewJsonlExporter(cfg.ExportPath)
	}

	reconciler := reconcile.NewReconciler(reconcile.Config{
		TotalSupplyTokens: cfg.TotalSupply,
		VolumeWindow:      cfg.VolumeWindow,
	}, st, discoverer, prices, curve, exporter, logger)

	return &pipeline{
		chain:      chainClient,
		store:      st,
		closeStore: closeStore,
		curve:      curve,
		reconciler: reconciler,
	}, nil
}

func runSync(cmd *cobra.Command, _ []string) error {
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

	token, _ := cmd.Flags().GetString("token")

	logger.Info("sync start",
		zap.String("rpc", cfg.RPCURL),
		zap.String("factory", cfg.Factory),
		zap.String("token", token),
		zap.Duration("lookback", cfg.Lookback),
	)

	var outcome reconcile.Outcome
	if token != "" {
		outcome, err = pipe.reconciler.SyncToken(ctx, token)
	} else {
		outcome, err = pipe.reconciler.SyncAll(ctx)
	}
	if err != nil {
		return err
	}

	logger.Info("sync done",
		zap.Int("tokens", outcome.Tokens),
		zap.Int("new_records", outcome.NewRecords),
		zap.Uint64("from_block", outcome.FromBlock),
		zap.Uint64("to_block", outcome.ToBlock),
		zap.Int("malformed", outcome.Malformed),
	)
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
