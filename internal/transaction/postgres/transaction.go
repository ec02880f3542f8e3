package postgres

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	errors "github.com/frahmantamala/credit-marketplace/internal"
	"github.com/frahmantamala/credit-marketplace/internal/core/database"
	txDatamodel "github.com/frahmantamala/credit-marketplace/internal/core/datamodel/transaction"
)

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{
		db: db,
	}
}

func (r *TransactionRepository) Create(ctx context.Context, t *txDatamodel.Transaction) error {
	if err := database.Conn(ctx, r.db).Create(t).Error; err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}
	return nil
}

func (r *TransactionRepository) GetByID(ctx context.Context, id string) (*txDatamodel.Transaction, error) {
	var t txDatamodel.Transaction
	err := database.Conn(ctx, r.db).Where("id = ?", id).First(&t).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return &t, nil
}

func (r *TransactionRepository) GetByOrderID(ctx context.Context, orderID string) (*txDatamodel.Transaction, error) {
	var t txDatamodel.Transaction
	err := database.Conn(ctx, r.db).Where("order_id = ?", orderID).First(&t).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("get transaction by order: %w", err)
	}
	return &t, nil
}

func (r *TransactionRepository) AttachOrder(ctx context.Context, id, orderID, currency string) error {
	res := database.Conn(ctx, r.db).
		Model(&txDatamodel.Transaction{}).
		Where("id = ? AND payment_status = ?", id, txDatamodel.StatusPending).
		Updates(map[string]interface{}{
			"order_id":   orderID,
			"currency":   currency,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return fmt.Errorf("attach order: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return errors.ErrTransactionNotPending
	}
	return nil
}

// CompleteByOrderID is the pending to completed transition for the stored order.
func (r *TransactionRepository) CompleteByOrderID(ctx context.Context, orderID string, completedAt time.Time) (bool, error) {
	res := database.Conn(ctx, r.db).
		Model(&txDatamodel.Transaction{}).
		Where("order_id = ? AND payment_status = ?", orderID, txDatamodel.StatusPending).
		Updates(map[string]interface{}{
			"payment_status": txDatamodel.StatusCompleted,
			"completed_at":   completedAt,
			"updated_at":     completedAt,
		})
	if res.Error != nil {
		return false, fmt.Errorf("complete transaction: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// CompleteWithOrder completes a pending transaction by id and points it at
// orderID, the order that was actually paid.
func (r *TransactionRepository) CompleteWithOrder(ctx context.Context, id, orderID string, completedAt time.Time) (bool, error) {
	res := database.Conn(ctx, r.db).
		Model(&txDatamodel.Transaction{}).
		Where("id = ? AND payment_status = ?", id, txDatamodel.StatusPending).
		Updates(map[string]interface{}{
			"order_id":       orderID,
			"payment_status": txDatamodel.StatusCompleted,
			"completed_at":   completedAt,
			"updated_at":     completedAt,
		})
	if res.Error != nil {
		return false, fmt.Errorf("complete transaction with order: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *TransactionRepository) SetLedgerRowRef(ctx context.Context, id, rowRef string) error {
	res := database.Conn(ctx, r.db).
		Model(&txDatamodel.Transaction{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"ledger_row_ref": rowRef,
			"updated_at":     time.Now().UTC(),
		})
	if res.Error != nil {
		return fmt.Errorf("set ledger row ref: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return errors.ErrTransactionNotFound
	}
	return nil
}

func (r *TransactionRepository) ListUnsynced(ctx context.Context, completedBefore time.Time, limit int) ([]*txDatamodel.Transaction, error) {
	var out []*txDatamodel.Transaction
	err := database.Conn(ctx, r.db).
		Where("payment_status = ? AND ledger_row_ref = ? AND completed_at < ?", txDatamodel.StatusCompleted, "", completedBefore).
		Order("completed_at ASC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list unsynced transactions: %w", err)
	}
	return out, nil
}
