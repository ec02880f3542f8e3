package transaction

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

const (
	PaymentMethodFull = "full"
	PaymentMethodEMI  = "emi"
)

type Address struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

type BillingDetails struct {
	FullName string  `json:"fullName"`
	Email    string  `json:"email"`
	Phone    string  `json:"phone"`
	Address  Address `json:"address"`
}

type Transaction struct {
	ID             string                             `gorm:"primaryKey;size:36"`
	UserID         int64                              `gorm:"column:user_id;not null;index"`
	PlanID         string                             `gorm:"column:plan_id;not null"`
	Amount         int64                              `gorm:"column:amount;not null"`
	Credits        int64                              `gorm:"column:credits;not null"`
	Currency       string                             `gorm:"column:currency"`
	PaymentMethod  string                             `gorm:"column:payment_method;not null"`
	EMIDuration    int                                `gorm:"column:emi_duration;not null"`
	EMIAmount      decimal.Decimal                    `gorm:"column:emi_amount;type:numeric(12,2);not null"`
	BillingDetails datatypes.JSONType[BillingDetails] `gorm:"column:billing_details;not null"`
	OrderID        *string                            `gorm:"column:order_id;uniqueIndex"`
	PaymentStatus  string                             `gorm:"column:payment_status;not null;index"`
	LedgerRowRef   string                             `gorm:"column:ledger_row_ref;not null"`
	CompletedAt    *time.Time                         `gorm:"column:completed_at"`
	CreatedAt      time.Time                          `gorm:"column:created_at"`
	UpdatedAt      time.Time                          `gorm:"column:updated_at"`
}

func (Transaction) TableName() string {
	return "transactions"
}

// ExternalOrderID returns the attached provider order id or "".
func (t *Transaction) ExternalOrderID() string {
	if t.OrderID == nil {
		return ""
	}
	return *t.OrderID
}

func (t *Transaction) IsPending() bool {
	return t.PaymentStatus == StatusPending
}
