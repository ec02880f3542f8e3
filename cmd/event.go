package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	txDatamodel "github.com/frahmantamala/credit-marketplace/internal/core/datamodel/transaction"
	"github.com/frahmantamala/credit-marketplace/internal/core/events"
)

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Event management commands",
	Long:  `Inspect and re-emit purchase lifecycle events`,
}

var replayEventCmd = &cobra.Command{
	Use:   "replay [transaction-id]",
	Short: "Re-publish the latest lifecycle event of a transaction",
	Long:  `Rebuilds the event for a transaction's current state and publishes it synchronously, e.g. to backfill Kafka.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := replayEvent(args[0]); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	},
}

func replayEvent(transactionID string) error {
	ctx := context.Background()
	deps, err := initializeDependencies(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}
	defer deps.Close()

	t, err := deps.TxRepo.GetByID(ctx, transactionID)
	if err != nil {
		return fmt.Errorf("load transaction %s: %w", transactionID, err)
	}

	event := lifecycleEvent(t, deps.Config.Payment.Currency, deps.Config.Payment.MinorUnitFactor)
	deps.Logger.Info("replaying event", "event_type", event.EventType(), "event_id", event.EventID(), "transaction_id", t.ID)

	if err := deps.EventBus.PublishSync(ctx, event); err != nil {
		return fmt.Errorf("publish %s: %w", event.EventType(), err)
	}
	return nil
}

func lifecycleEvent(t *txDatamodel.Transaction, currency string, minorUnitFactor int64) events.Event {
	switch {
	case t.PaymentStatus == txDatamodel.StatusCompleted:
		return events.NewPaymentCompletedEvent(t.ID, t.UserID, t.ExternalOrderID(), t.PlanID, t.Amount, t.Credits)
	case t.ExternalOrderID() != "":
		return events.NewOrderCreatedEvent(t.ID, t.UserID, t.ExternalOrderID(), t.Amount*minorUnitFactor, currency)
	default:
		return events.NewTransactionSubmittedEvent(t.ID, t.UserID, t.PlanID, t.Amount, t.Credits, t.PaymentMethod)
	}
}

func init() {
	eventCmd.AddCommand(replayEventCmd)

	rootCmd.AddCommand(eventCmd)
}
