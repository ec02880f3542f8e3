package transaction

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	paymentgatewaytypes "github.com/frahmantamala/credit-marketplace/internal/core/datamodel/paymentgateway"
	txDatamodel "github.com/frahmantamala/credit-marketplace/internal/core/datamodel/transaction"
	"github.com/frahmantamala/credit-marketplace/internal/plan"
)

// Verification outcomes. AlreadyProcessed is success-shaped: the payment did
// go through, an earlier call credited it.
const (
	VerifyStatusCompleted        = "completed"
	VerifyStatusAlreadyProcessed = "already_processed"
	VerifyStatusFailed           = "failed"
)

const maxEMIDuration = 24

type VerifyResult struct {
	Status         string `json:"status"`
	TransactionID  string `json:"transactionId,omitempty"`
	Credits        int64  `json:"credits,omitempty"`
	ProviderStatus string `json:"providerStatus,omitempty"`
}

// RepositoryAPI persists transactions. State changes are conditional updates
// so that concurrent callers, in or across processes, cannot both win.
type RepositoryAPI interface {
	Create(ctx context.Context, t *txDatamodel.Transaction) error
	GetByID(ctx context.Context, id string) (*txDatamodel.Transaction, error)
	GetByOrderID(ctx context.Context, orderID string) (*txDatamodel.Transaction, error)
	// AttachOrder stores the provider order on a pending transaction and
	// returns ErrTransactionNotPending otherwise.
	AttachOrder(ctx context.Context, id, orderID, currency string) error
	// CompleteByOrderID flips pending to completed and reports whether this
	// call made the transition.
	CompleteByOrderID(ctx context.Context, orderID string, completedAt time.Time) (bool, error)
	// CompleteWithOrder does the same transition by transaction id for a paid
	// order that a later CreateOrder replaced.
	CompleteWithOrder(ctx context.Context, id, orderID string, completedAt time.Time) (bool, error)
	SetLedgerRowRef(ctx context.Context, id, rowRef string) error
	ListUnsynced(ctx context.Context, completedBefore time.Time, limit int) ([]*txDatamodel.Transaction, error)
}

type OrderGateway interface {
	CreateOrder(ctx context.Context, req *paymentgatewaytypes.OrderRequest) (*paymentgatewaytypes.Order, error)
	FetchOrder(ctx context.Context, orderID string) (*paymentgatewaytypes.Order, error)
}

// CreditLedger adds purchased credits to a user balance.
type CreditLedger interface {
	AddCredits(ctx context.Context, userID int64, amount int64) error
}

type PlanCatalog interface {
	Lookup(id string) (plan.Plan, error)
}

// View is the API representation of a transaction.
type View struct {
	ID             string                     `json:"id"`
	UserID         int64                      `json:"userId"`
	PlanID         string                     `json:"planId"`
	Amount         int64                      `json:"amount"`
	Credits        int64                      `json:"credits"`
	Currency       string                     `json:"currency,omitempty"`
	PaymentMethod  string                     `json:"paymentMethod"`
	EMIDuration    int                        `json:"emiDuration"`
	EMIAmount      decimal.Decimal            `json:"emiAmount"`
	BillingDetails txDatamodel.BillingDetails `json:"billingDetails"`
	OrderID        string                     `json:"orderId"`
	PaymentStatus  string                     `json:"paymentStatus"`
	LedgerRowRef   string                     `json:"ledgerRowRef"`
	CreatedAt      time.Time                  `json:"createdAt"`
	CompletedAt    *time.Time                 `json:"completedAt,omitempty"`
}

func FromDataModel(t *txDatamodel.Transaction) *View {
	return &View{
		ID:             t.ID,
		UserID:         t.UserID,
		PlanID:         t.PlanID,
		Amount:         t.Amount,
		Credits:        t.Credits,
		Currency:       t.Currency,
		PaymentMethod:  t.PaymentMethod,
		EMIDuration:    t.EMIDuration,
		EMIAmount:      t.EMIAmount,
		BillingDetails: t.BillingDetails.Data(),
		OrderID:        t.ExternalOrderID(),
		PaymentStatus:  t.PaymentStatus,
		LedgerRowRef:   t.LedgerRowRef,
		CreatedAt:      t.CreatedAt,
		CompletedAt:    t.CompletedAt,
	}
}

// EMIInstallment splits amount over months, rounded half away from zero to cents.
func EMIInstallment(amount int64, months int) decimal.Decimal {
	if months <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(amount).DivRound(decimal.NewFromInt(int64(months)), 2)
}
