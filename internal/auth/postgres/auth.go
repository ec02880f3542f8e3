package auth

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	errors "github.com/frahmantamala/credit-marketplace/internal"
	"github.com/frahmantamala/credit-marketplace/internal/core/database"
	userDatamodel "github.com/frahmantamala/credit-marketplace/internal/core/datamodel/user"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db: db,
	}
}

func (r *Repository) Create(ctx context.Context, u *userDatamodel.User) error {
	err := database.Conn(ctx, r.db).Create(u).Error
	if err != nil {
		if isUniqueViolation(err) {
			return errors.ErrEmailTaken
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *Repository) GetByEmail(ctx context.Context, email string) (*userDatamodel.User, error) {
	var u userDatamodel.User
	err := database.Conn(ctx, r.db).Where("email = ?", email).First(&u).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return &u, nil
}

// isUniqueViolation recognises duplicate keys from postgres (23505) and sqlite.
func isUniqueViolation(err error) bool {
	if stderrors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "23505") || strings.Contains(msg, "UNIQUE constraint failed")
}
