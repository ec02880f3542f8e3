// Package ledger appends completed purchases to the bookkeeping spreadsheet.
package ledger

import (
	"context"
	"strconv"
	"time"

	"github.com/frahmantamala/credit-marketplace/internal/core/datamodel/transaction"
)

// Ledger appends one row and returns a reference to where it landed.
type Ledger interface {
	AppendRow(ctx context.Context, values []string) (rowRef string, err error)
}

// Nop is used when spreadsheet sync is disabled.
type Nop struct{}

func (Nop) AppendRow(context.Context, []string) (string, error) {
	return "", nil
}

// Row renders a transaction in sheet column order:
// userId, planId, amount, credits, fullName, email, createdAt, paymentMethod,
// emiDuration, emiAmount, orderId, paymentStatus.
func Row(t *transaction.Transaction) []string {
	billing := t.BillingDetails.Data()

	emiDuration, emiAmount := "", ""
	if t.PaymentMethod == transaction.PaymentMethodEMI {
		emiDuration = strconv.Itoa(t.EMIDuration)
		emiAmount = t.EMIAmount.StringFixed(2)
	}

	return []string{
		strconv.FormatInt(t.UserID, 10),
		t.PlanID,
		strconv.FormatInt(t.Amount, 10),
		strconv.FormatInt(t.Credits, 10),
		billing.FullName,
		billing.Email,
		t.CreatedAt.UTC().Format(time.RFC3339),
		t.PaymentMethod,
		emiDuration,
		emiAmount,
		t.ExternalOrderID(),
		t.PaymentStatus,
	}
}
