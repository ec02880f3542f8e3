package transaction

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"

	errors "github.com/frahmantamala/credit-marketplace/internal"
	paymentgatewaytypes "github.com/frahmantamala/credit-marketplace/internal/core/datamodel/paymentgateway"
	txDatamodel "github.com/frahmantamala/credit-marketplace/internal/core/datamodel/transaction"
	"github.com/frahmantamala/credit-marketplace/internal/transport"
	"github.com/frahmantamala/credit-marketplace/pkg/logger"
)

type ServiceAPI interface {
	Submit(ctx context.Context, userID int64, dto SubmitFormDTO) (*txDatamodel.Transaction, error)
	CreateOrder(ctx context.Context, userID int64, dto CreateOrderDTO) (*paymentgatewaytypes.Order, error)
	Verify(ctx context.Context, orderID string) (*VerifyResult, error)
	Get(ctx context.Context, userID int64, transactionID string) (*txDatamodel.Transaction, error)
}

// SignatureVerifier checks checkout callback and webhook signatures.
type SignatureVerifier interface {
	VerifyPaymentSignature(orderID, paymentID, signature string) bool
	VerifyWebhookSignature(body []byte, signature string) bool
}

type Handler struct {
	*transport.BaseHandler
	Service  ServiceAPI
	Verifier SignatureVerifier
}

func NewHandler(svc ServiceAPI, verifier SignatureVerifier) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     svc,
		Verifier:    verifier,
	}
}

// SubmitForm handles POST /api/user/submit-form
func (h *Handler) SubmitForm(w http.ResponseWriter, r *http.Request) {
	userID := errors.UserIDFromContext(r.Context())

	var dto SubmitFormDTO
	if !h.DecodeJSON(w, r, &dto) {
		return
	}

	t, err := h.Service.Submit(r.Context(), userID, dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, SubmitResponse{Success: true, TransactionID: t.ID})
}

// PayRazor handles POST /api/user/pay-razor
func (h *Handler) PayRazor(w http.ResponseWriter, r *http.Request) {
	userID := errors.UserIDFromContext(r.Context())

	var dto CreateOrderDTO
	if !h.DecodeJSON(w, r, &dto) {
		return
	}

	order, err := h.Service.CreateOrder(r.Context(), userID, dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"order":   order,
	})
}

// VerifyRazor handles POST /api/user/verify-razor. It is unauthenticated and
// safe to replay.
func (h *Handler) VerifyRazor(w http.ResponseWriter, r *http.Request) {
	var dto VerifyDTO
	if !h.DecodeJSON(w, r, &dto) {
		return
	}

	orderID := dto.OrderID()
	if dto.RazorpaySignature != "" && h.Verifier != nil {
		if !h.Verifier.VerifyPaymentSignature(orderID, dto.RazorpayPaymentID, dto.RazorpaySignature) {
			h.Logger.Warn("checkout signature mismatch", "order_id", orderID, "payment_id", dto.RazorpayPaymentID)
			h.HandleError(w, errors.ErrInvalidSignature)
			return
		}
	}

	result, err := h.Service.Verify(r.Context(), orderID)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, verifyResponse(result))
}

// GetTransaction handles GET /api/user/transactions/{id}
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	userID := errors.UserIDFromContext(r.Context())

	t, err := h.Service.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success":     true,
		"transaction": FromDataModel(t),
	})
}

func verifyResponse(result *VerifyResult) VerifyResponse {
	resp := VerifyResponse{
		Status:        result.Status,
		TransactionID: result.TransactionID,
	}
	switch result.Status {
	case VerifyStatusCompleted:
		resp.Success = true
		resp.Message = "Credits Added"
	case VerifyStatusAlreadyProcessed:
		resp.Success = true
		resp.Message = "Payment already processed"
	default:
		resp.Message = "Payment Failed"
	}
	return resp
}
