package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vaultScope/internal/chain"
	"vaultScope/internal/config"
	"vaultScope/internal/reconciler"
)

func runReconcile(cmd *cobra.Command, _ []string) error {
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

	poolID, _ := cmd.Flags().GetString("pool")
	dev, _ := cmd.Flags().GetString("dev")
	projectID, _ := cmd.Flags().GetString("project")
	token, _ := cmd.Flags().GetString("token")
	if poolID == "" || dev == "" {
		return fmt.Errorf("--pool and --dev are required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	rec, err := buildReconciler(ctx, cfg, chainClient, logger)
	if err != nil {
		return err
	}

	outcome, err := rec.Reconcile(ctx, reconciler.Request{
		PoolID:       poolID,
		DevAddress:   dev,
		ProjectID:    projectID,
		TokenAddress: token,
	})
	if err != nil {
		return err
	}

	logger.Info("reconciliation outcome",
		zap.Bool("hook_updated", outcome.HookRoutingUpdated),
		zap.Bool("hook_blocked", outcome.HookRoutingBlockedByPoolAssigned),
		zap.Bool("locker_updated", outcome.LockerRoutingUpdated),
		zap.String("escrow_action", string(outcome.EscrowAction)),
	)
	return nil
}
