package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start background workers",
	Long:  `Start background workers that repair state the request path leaves behind.`,
}

var ledgerWorkerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Retry spreadsheet sync for completed purchases",
	Long:  `Periodically books completed transactions whose spreadsheet append failed.`,
	Run: func(cmd *cobra.Command, args []string) {
		startLedgerWorker()
	},
}

var (
	ledgerInterval time.Duration
	ledgerBatch    int
	ledgerOnce     bool
)

func startLedgerWorker() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := initializeDependencies(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}
	defer deps.Close()

	lg := deps.Logger
	interval := getDurationFlag(ledgerInterval, deps.Config.Ledger.ResyncInterval)
	batch := getIntFlag(ledgerBatch, deps.Config.Ledger.ResyncBatch)
	grace := deps.Config.Ledger.ResyncGrace

	if !deps.Config.Ledger.Enabled {
		lg.Warn("ledger sync disabled; ledger worker has nothing to do")
		return
	}

	lg.Info("starting ledger worker", "interval", interval, "batch", batch, "grace", grace)

	run := func() {
		synced, failed, err := deps.Transactions.ResyncLedger(ctx, grace, batch)
		if err != nil {
			lg.Error("ledger resync failed", "error", err)
			return
		}
		if synced+failed > 0 {
			lg.Info("ledger resync pass", "synced", synced, "failed", failed)
		}
	}

	run()
	if ledgerOnce {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			lg.Info("ledger worker stopped")
			return
		case <-ticker.C:
			run()
		}
	}
}

func getIntFlag(flagValue, configValue int) int {
	if flagValue > 0 {
		return flagValue
	}
	return configValue
}

func getDurationFlag(flagValue, configValue time.Duration) time.Duration {
	if flagValue > 0 {
		return flagValue
	}
	return configValue
}

func init() {
	ledgerWorkerCmd.Flags().DurationVar(&ledgerInterval, "interval", 0, "Time between resync passes (overrides config)")
	ledgerWorkerCmd.Flags().IntVar(&ledgerBatch, "batch", 0, "Transactions per pass (overrides config)")
	ledgerWorkerCmd.Flags().BoolVar(&ledgerOnce, "once", false, "Run a single pass and exit")

	workerCmd.AddCommand(ledgerWorkerCmd)

	rootCmd.AddCommand(workerCmd)
}
