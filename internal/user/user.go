package user

import (
	"context"
	"time"

	userDatamodel "github.com/frahmantamala/credit-marketplace/internal/core/datamodel/user"
)

type User struct {
	ID            int64     `json:"id"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	PasswordHash  string    `json:"-"`
	CreditBalance int64     `json:"creditBalance"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// RepositoryAPI is the credit ledger storage. Balance changes are single
// atomic statements and join the caller's transaction when ctx carries one.
type RepositoryAPI interface {
	GetByID(ctx context.Context, userID int64) (*userDatamodel.User, error)
	GetCredits(ctx context.Context, userID int64) (int64, error)
	AddCredits(ctx context.Context, userID int64, amount int64) error
	SpendCredit(ctx context.Context, userID int64) error
}

func ToDataModel(u *User) *userDatamodel.User {
	return &userDatamodel.User{
		ID:            u.ID,
		Email:         u.Email,
		Name:          u.Name,
		PasswordHash:  u.PasswordHash,
		CreditBalance: u.CreditBalance,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

func FromDataModel(u *userDatamodel.User) *User {
	return &User{
		ID:            u.ID,
		Email:         u.Email,
		Name:          u.Name,
		PasswordHash:  u.PasswordHash,
		CreditBalance: u.CreditBalance,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}
