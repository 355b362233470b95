package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"vaultScope/internal/chain"
	"vaultScope/internal/config"
	"vaultScope/internal/reconciler"
	"vaultScope/internal/vault"
)

func main() {
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:          "vaultscope",
		Short:        "Fee vault indexer and routing reconciler",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the indexer, status server, and startup sweep",
		RunE:  runService,
	}

	runCmd.Flags().String("rpc", "", "chain RPC URL")
	runCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	runCmd.Flags().StringSlice("vault", nil, "fee vault addresses, current generation first (comma-separated)")
	runCmd.Flags().String("factory", "", "launch factory address (optional)")
	runCmd.Flags().String("hook", "", "fee routing hook address (optional)")
	runCmd.Flags().String("locker", "", "LP locker address (optional)")
	runCmd.Flags().String("admin-key", "", "admin private key hex (optional, disables routing/escrow writes when empty)")
	runCmd.Flags().Uint64("start-block", 0, "first block to index when no cursor exists (0 = chain head)")
	runCmd.Flags().Uint64("batch-size", 1000, "blocks per log query")
	runCmd.Flags().Duration("poll-interval", 15*time.Second, "delay between poll cycles")
	runCmd.Flags().Duration("retry-backoff", 5*time.Second, "initial reported retry delay after a failed cycle")
	runCmd.Flags().Duration("retry-ceiling", 5*time.Minute, "reported retry delay ceiling")
	runCmd.Flags().Bool("sweep-enabled", true, "run the startup reconciliation sweep")
	runCmd.Flags().Duration("sweep-delay", 2*time.Second, "pause between sweep iterations")
	runCmd.Flags().String("status-addr", ":8081", "status/metrics listen address")
	runCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(runCmd)

	reconcileCmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Reconcile routing and escrow for one pool",
		RunE:  runReconcile,
	}

	reconcileCmd.Flags().String("rpc", "", "chain RPC URL")
	reconcileCmd.Flags().StringSlice("vault", nil, "fee vault addresses, current generation first (comma-separated)")
	reconcileCmd.Flags().String("factory", "", "launch factory address (optional)")
	reconcileCmd.Flags().String("hook", "", "fee routing hook address (optional)")
	reconcileCmd.Flags().String("locker", "", "LP locker address (optional)")
	reconcileCmd.Flags().String("admin-key", "", "admin private key hex")
	reconcileCmd.Flags().String("pool", "", "pool id (32-byte hex)")
	reconcileCmd.Flags().String("dev", "", "verified developer address")
	reconcileCmd.Flags().String("project", "", "project id (log context only)")
	reconcileCmd.Flags().String("token", "", "pool token address (enables the locker step)")
	reconcileCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(reconcileCmd)

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "Reconcile every verified project once and exit",
		RunE:  runSweep,
	}

	sweepCmd.Flags().String("rpc", "", "chain RPC URL")
	sweepCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	sweepCmd.Flags().StringSlice("vault", nil, "fee vault addresses, current generation first (comma-separated)")
	sweepCmd.Flags().String("factory", "", "launch factory address (optional)")
	sweepCmd.Flags().String("hook", "", "fee routing hook address (optional)")
	sweepCmd.Flags().String("locker", "", "LP locker address (optional)")
	sweepCmd.Flags().String("admin-key", "", "admin private key hex")
	sweepCmd.Flags().Duration("sweep-delay", 2*time.Second, "pause between sweep iterations")
	sweepCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(sweepCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// buildReconciler assembles the routing reconciler shared by every command.
// Without an admin key the reconciler still constructs, with all of its
// state-changing steps disabled.
func buildReconciler(ctx context.Context, cfg config.Config, chainClient *chain.Client, logger *zap.Logger) (*reconciler.Reconciler, error) {
	vaults, err := vault.ParseAddresses(cfg.VaultAddresses)
	if err != nil {
		return nil, fmt.Errorf("vault addresses: %w", err)
	}
	if len(vaults) == 0 {
		return nil, fmt.Errorf("vault address list is required")
	}
	hook, err := vault.ParseOptionalAddress(cfg.HookAddress)
	if err != nil {
		return nil, fmt.Errorf("hook address: %w", err)
	}
	factory, err := vault.ParseOptionalAddress(cfg.FactoryAddress)
	if err != nil {
		return nil, fmt.Errorf("factory address: %w", err)
	}
	locker, err := vault.ParseOptionalAddress(cfg.LockerAddress)
	if err != nil {
		return nil, fmt.Errorf("locker address: %w", err)
	}

	var sender reconciler.TxSender
	if cfg.AdminKey != "" {
		transactor, err := chain.NewTransactor(ctx, chainClient, cfg.AdminKey, logger)
		if err != nil {
			return nil, fmt.Errorf("admin key: %w", err)
		}
		sender = transactor
		logger.Info("admin signer loaded", zap.String("from", transactor.From().Hex()))
	} else {
		logger.Warn("no admin key configured, routing and escrow writes are disabled")
	}

	return reconciler.New(reconciler.Config{
		Vaults:  vaults,
		Hook:    hook,
		Factory: factory,
		Locker:  locker,
	}, chainClient, sender, logger)
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
