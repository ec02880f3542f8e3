package postgres

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	errors "github.com/frahmantamala/credit-marketplace/internal"
	"github.com/frahmantamala/credit-marketplace/internal/core/database"
	userDatamodel "github.com/frahmantamala/credit-marketplace/internal/core/datamodel/user"
	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db: db,
	}
}

func (r *Repository) GetByID(ctx context.Context, userID int64) (*userDatamodel.User, error) {
	var u userDatamodel.User
	err := database.Conn(ctx, r.db).First(&u, userID).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

func (r *Repository) GetCredits(ctx context.Context, userID int64) (int64, error) {
	u, err := r.GetByID(ctx, userID)
	if err != nil {
		return 0, err
	}
	return u.CreditBalance, nil
}

// AddCredits increments the balance in one statement.
func (r *Repository) AddCredits(ctx context.Context, userID int64, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("credit amount must be positive, got %d", amount)
	}

	res := database.Conn(ctx, r.db).
		Model(&userDatamodel.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"credit_balance": gorm.Expr("credit_balance + ?", amount),
			"updated_at":     time.Now().UTC(),
		})
	if res.Error != nil {
		return fmt.Errorf("add credits: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return errors.ErrUserNotFound
	}
	return nil
}

// SpendCredit decrements only while the balance is positive.
func (r *Repository) SpendCredit(ctx context.Context, userID int64) error {
	conn := database.Conn(ctx, r.db)

	res := conn.Model(&userDatamodel.User{}).
		Where("id = ? AND credit_balance > 0", userID).
		Updates(map[string]interface{}{
			"credit_balance": gorm.Expr("credit_balance - 1"),
			"updated_at":     time.Now().UTC(),
		})
	if res.Error != nil {
		return fmt.Errorf("spend credit: %w", res.Error)
	}
	if res.RowsAffected == 1 {
		return nil
	}

	var count int64
	if err := conn.Model(&userDatamodel.User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
		return fmt.Errorf("spend credit: %w", err)
	}
	if count == 0 {
		return errors.ErrUserNotFound
	}
	return errors.ErrInsufficientCredits
}
