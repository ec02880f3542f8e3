package image

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net/http"

	errors "github.com/frahmantamala/credit-marketplace/internal"
	"github.com/frahmantamala/credit-marketplace/internal/transport"
	"github.com/frahmantamala/credit-marketplace/pkg/logger"
)

type ServiceAPI interface {
	Generate(ctx context.Context, userID int64, dto GenerateDTO) (*Result, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(svc ServiceAPI) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     svc,
	}
}

// GenerateImage handles POST /api/image/generate-image
func (h *Handler) GenerateImage(w http.ResponseWriter, r *http.Request) {
	userID := errors.UserIDFromContext(r.Context())
	if userID == 0 {
		h.HandleError(w, errors.ErrInvalidToken)
		return
	}

	var dto GenerateDTO
	if !h.DecodeJSON(w, r, &dto) {
		return
	}

	result, err := h.Service.Generate(r.Context(), userID, dto)
	if err != nil {
		// zero balance answers 200 with success=false
		if stderrors.Is(err, errors.ErrInsufficientCredits) {
			h.WriteJSON(w, http.StatusOK, GenerateResponse{
				Success:       false,
				Message:       errors.ErrInsufficientCredits.Message,
				CreditBalance: 0,
			})
			return
		}
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, GenerateResponse{
		Success:       true,
		Message:       "Image Generated",
		ResultImage:   result.Image.DataURI(),
		CreditBalance: result.CreditBalance,
	})
}
