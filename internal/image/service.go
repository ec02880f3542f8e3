package image

import (
	"context"
	stderrors "errors"
	"log/slog"

	errors "github.com/frahmantamala/credit-marketplace/internal"
	"github.com/frahmantamala/credit-marketplace/internal/metrics"
)

type Service struct {
	generator Generator
	credits   CreditStore
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

func NewService(generator Generator, credits CreditStore, m *metrics.Metrics, logger *slog.Logger) *Service {
	if m == nil {
		m = metrics.NewNop()
	}
	return &Service{
		generator: generator,
		credits:   credits,
		metrics:   m,
		logger:    logger,
	}
}

// Generate spends one credit before calling the provider and gives it back
// if no image comes out.
func (s *Service) Generate(ctx context.Context, userID int64, dto GenerateDTO) (*Result, error) {
	if userID <= 0 {
		return nil, errors.ErrInvalidToken
	}
	dto.Normalize()
	if appErr := dto.Validate(); appErr != nil {
		return nil, appErr
	}

	if err := s.credits.SpendCredit(ctx, userID); err != nil {
		if stderrors.Is(err, errors.ErrInsufficientCredits) || stderrors.Is(err, errors.ErrUserNotFound) {
			return nil, err
		}
		return nil, errors.NewInternalError("failed to spend credit", err)
	}

	img, err := s.generator.Generate(ctx, dto.Prompt)
	if err != nil {
		s.logger.Error("image generation failed", "user_id", userID, "error", err)
		if refundErr := s.credits.RefundCredit(context.WithoutCancel(ctx), userID); refundErr != nil {
			s.logger.Error("credit refund failed", "user_id", userID, "error", refundErr)
		} else {
			s.logger.Info("credit refunded", "user_id", userID)
		}
		return nil, errors.NewExternalError("Image generation failed", errors.ErrCodeImageAPIFailed, err)
	}

	s.metrics.CreditsSpent.Inc()

	balance, err := s.credits.GetCredits(ctx, userID)
	if err != nil {
		return nil, errors.NewInternalError("failed to load credit balance", err)
	}

	s.logger.Info("image generated", "user_id", userID, "credit_balance", balance)
	return &Result{Image: img, CreditBalance: balance}, nil
}
