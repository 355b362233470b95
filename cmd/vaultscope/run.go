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

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vaultScope/internal/api"
	"vaultScope/internal/chain"
	"vaultScope/internal/config"
	"vaultScope/internal/indexer"
	"vaultScope/internal/reconciler"
	"vaultScope/internal/storage/postgres"
	"vaultScope/internal/vault"
)

func runService(cmd *cobra.Command, _ []string) error {
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

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	if cfg.PostgresDSN == "" {
		return fmt.Errorf("postgres dsn is required")
	}

	vaults, err := vault.ParseAddresses(cfg.VaultAddresses)
	if err != nil {
		return fmt.Errorf("vault addresses: %w", err)
	}
	if len(vaults) == 0 {
		return fmt.Errorf("vault address list is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	store, err := postgres.NewStore(ctx, cfg.PostgresDSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer store.Close()

	// Boot availability wins over store reachability: indexing retries
	// every cycle, so a database that is down right now only delays it.
	if err := store.Ping(ctx); err != nil {
		logger.Warn("postgres unreachable at boot", zap.Error(err))
	}

	rec, err := buildReconciler(ctx, cfg, chainClient, logger)
	if err != nil {
		return err
	}

	projects := indexer.NewProjectCache(store, logger)
	fetcher, err := indexer.NewFetcher(chainClient, vaults, logger)
	if err != nil {
		return err
	}

	poller := indexer.NewPoller(indexer.PollerConfig{
		StartBlock:   cfg.StartBlock,
		BatchSize:    cfg.BatchSize,
		PollInterval: cfg.PollInterval,
		RetryBackoff: cfg.RetryBackoff,
		RetryCeiling: cfg.RetryCeiling,
	}, chainClient, fetcher, store, projects, logger)

	if err := poller.Start(ctx); err != nil {
		return err
	}
	defer poller.Stop()

	if cfg.SweepEnabled {
		go reconciler.NewSweep(store, rec, cfg.SweepDelay, logger).Run(ctx)
	}

	server := api.NewServer(cfg.StatusAddr, poller, logger)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("status server failed", zap.Error(err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("status server shutdown failed", zap.Error(err))
		}
	}()

	logger.Info("vaultscope running",
		zap.String("rpc", cfg.RPCURL),
		zap.Int("vaults", len(vaults)),
		zap.Uint64("start_block", cfg.StartBlock),
		zap.Uint64("batch_size", cfg.BatchSize),
		zap.Duration("poll_interval", cfg.PollInterval),
		zap.Bool("sweep_enabled", cfg.SweepEnabled),
		zap.String("status_addr", cfg.StatusAddr),
	)

	<-ctx.Done()
	logger.Info("shutting down")
	return nil
}
