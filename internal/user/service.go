package user

import (
	"context"
	"fmt"
	"log/slog"

	errors "github.com/frahmantamala/credit-marketplace/internal"
)

type Service struct {
	repo   RepositoryAPI
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

func (s *Service) GetByID(ctx context.Context, userID int64) (*User, error) {
	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if _, ok := errors.IsAppError(err); ok {
			return nil, err
		}
		return nil, errors.NewInternalError("failed to load user", err)
	}
	return FromDataModel(u), nil
}

func (s *Service) GetCredits(ctx context.Context, userID int64) (int64, error) {
	credits, err := s.repo.GetCredits(ctx, userID)
	if err != nil {
		if _, ok := errors.IsAppError(err); ok {
			return 0, err
		}
		return 0, errors.NewInternalError("failed to load credit balance", err)
	}
	return credits, nil
}

// AddCredits grants credits to a user. Inside a database.Transactor unit of
// work it shares the caller's transaction.
func (s *Service) AddCredits(ctx context.Context, userID int64, amount int64) error {
	if amount <= 0 {
		return errors.NewValidationError(fmt.Sprintf("credit amount must be positive, got %d", amount), errors.ErrCodeValidationFailed)
	}
	if err := s.repo.AddCredits(ctx, userID, amount); err != nil {
		return err
	}
	s.logger.Info("credits added", "user_id", userID, "amount", amount)
	return nil
}

// SpendCredit takes one credit, failing with ErrInsufficientCredits at zero.
func (s *Service) SpendCredit(ctx context.Context, userID int64) error {
	return s.repo.SpendCredit(ctx, userID)
}

// RefundCredit gives back a credit taken by SpendCredit.
func (s *Service) RefundCredit(ctx context.Context, userID int64) error {
	if err := s.repo.AddCredits(ctx, userID, 1); err != nil {
		s.logger.Error("credit refund failed", "user_id", userID, "error", err)
		return err
	}
	return nil
}
