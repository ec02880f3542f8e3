package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeTransactionSubmitted = "transaction.submitted"
	EventTypeOrderCreated         = "transaction.order_created"
	EventTypePaymentCompleted     = "payment.completed"
	EventTypeLedgerSyncFailed     = "ledger.sync_failed"
)

// LifecycleEventTypes lists every event the purchase lifecycle emits.
var LifecycleEventTypes = []string{
	EventTypeTransactionSubmitted,
	EventTypeOrderCreated,
	EventTypePaymentCompleted,
	EventTypeLedgerSyncFailed,
}

// TransactionEvent is published at every lifecycle transition. Key identifies
// the transaction for partitioned sinks.
type TransactionEvent struct {
	BaseEvent
	TransactionID string `json:"transaction_id"`
	UserID        int64  `json:"user_id"`
}

func (e *TransactionEvent) Key() string {
	return e.TransactionID
}

func newTransactionEvent(eventType, transactionID string, userID int64, data map[string]interface{}) *TransactionEvent {
	if data == nil {
		data = map[string]interface{}{}
	}
	data["transaction_id"] = transactionID
	data["user_id"] = userID

	return &TransactionEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      eventType,
			Timestamp: time.Now().UTC(),
			Data:      data,
		},
		TransactionID: transactionID,
		UserID:        userID,
	}
}

func NewTransactionSubmittedEvent(transactionID string, userID int64, planID string, amount, credits int64, paymentMethod string) *TransactionEvent {
	return newTransactionEvent(EventTypeTransactionSubmitted, transactionID, userID, map[string]interface{}{
		"plan_id":        planID,
		"amount":         amount,
		"credits":        credits,
		"payment_method": paymentMethod,
	})
}

func NewOrderCreatedEvent(transactionID string, userID int64, orderID string, amountMinor int64, currency string) *TransactionEvent {
	return newTransactionEvent(EventTypeOrderCreated, transactionID, userID, map[string]interface{}{
		"order_id":     orderID,
		"amount_minor": amountMinor,
		"currency":     currency,
	})
}

func NewPaymentCompletedEvent(transactionID string, userID int64, orderID, planID string, amount, credits int64) *TransactionEvent {
	return newTransactionEvent(EventTypePaymentCompleted, transactionID, userID, map[string]interface{}{
		"order_id": orderID,
		"plan_id":  planID,
		"amount":   amount,
		"credits":  credits,
	})
}

func NewLedgerSyncFailedEvent(transactionID string, userID int64, reason string) *TransactionEvent {
	return newTransactionEvent(EventTypeLedgerSyncFailed, transactionID, userID, map[string]interface{}{
		"reason": reason,
	})
}
