package paymentgateway

import (
	"errors"
	"fmt"
)

type OrderStatus string

const (
	OrderStatusCreated   OrderStatus = "created"
	OrderStatusAttempted OrderStatus = "attempted"
	OrderStatusPaid      OrderStatus = "paid"
)

type OrderRequest struct {
	AmountMinor int64             `json:"amount"`
	Currency    string            `json:"currency"`
	Receipt     string            `json:"receipt"`
	Notes       map[string]string `json:"notes,omitempty"`
}

func (r *OrderRequest) Validate() error {
	if r.AmountMinor <= 0 {
		return errors.New("amount must be greater than 0")
	}
	if r.Currency == "" {
		return errors.New("currency is required")
	}
	if r.Receipt == "" {
		return errors.New("receipt is required")
	}
	if len(r.Receipt) > 40 {
		return fmt.Errorf("receipt must not exceed 40 characters, got %d", len(r.Receipt))
	}
	return nil
}

// Order mirrors the provider's order entity.
type Order struct {
	ID         string            `json:"id"`
	Entity     string            `json:"entity,omitempty"`
	Amount     int64             `json:"amount"`
	AmountPaid int64             `json:"amount_paid"`
	AmountDue  int64             `json:"amount_due"`
	Currency   string            `json:"currency"`
	Receipt    string            `json:"receipt"`
	Status     OrderStatus       `json:"status"`
	Attempts   int               `json:"attempts"`
	Notes      map[string]string `json:"notes,omitempty"`
	CreatedAt  int64             `json:"created_at"`
}

func (o *Order) IsPaid() bool {
	return o.Status == OrderStatusPaid
}

type APIError struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
		Source      string `json:"source,omitempty"`
		Step        string `json:"step,omitempty"`
		Reason      string `json:"reason,omitempty"`
	} `json:"error"`
}

// WebhookEvent is the subset of the provider webhook envelope we consume.
type WebhookEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Order struct {
			Entity Order `json:"entity"`
		} `json:"order"`
		Payment struct {
			Entity struct {
				ID      string `json:"id"`
				OrderID string `json:"order_id"`
				Status  string `json:"status"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

const (
	WebhookEventOrderPaid       = "order.paid"
	WebhookEventPaymentCaptured = "payment.captured"
)

// OrderID picks the order id from whichever entity the event carries.
func (e *WebhookEvent) OrderID() string {
	if e.Payload.Order.Entity.ID != "" {
		return e.Payload.Order.Entity.ID
	}
	return e.Payload.Payment.Entity.OrderID
}
