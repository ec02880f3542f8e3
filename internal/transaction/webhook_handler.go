package transaction

import (
	"encoding/json"
	"io"
	"net/http"

	errors "github.com/frahmantamala/credit-marketplace/internal"
	paymentgatewaytypes "github.com/frahmantamala/credit-marketplace/internal/core/datamodel/paymentgateway"
	"github.com/frahmantamala/credit-marketplace/internal/transport"
)

const maxWebhookBody = 1 << 20

type WebhookHandler struct {
	*transport.BaseHandler
	service  ServiceAPI
	verifier SignatureVerifier
}

func NewWebhookHandler(baseHandler *transport.BaseHandler, service ServiceAPI, verifier SignatureVerifier) *WebhookHandler {
	return &WebhookHandler{
		BaseHandler: baseHandler,
		service:     service,
		verifier:    verifier,
	}
}

type WebhookResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HandleRazorpay handles POST /api/webhooks/razorpay. Paid events run the
// same verification as the checkout callback, so webhook retries are harmless.
func (h *WebhookHandler) HandleRazorpay(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		h.HandleError(w, errors.NewValidationError("Invalid request body", errors.ErrCodeValidationFailed))
		return
	}

	if !h.verifier.VerifyWebhookSignature(body, r.Header.Get("X-Razorpay-Signature")) {
		h.Logger.Warn("webhook signature mismatch", "remote_addr", r.RemoteAddr)
		h.HandleError(w, errors.ErrInvalidSignature)
		return
	}

	var event paymentgatewaytypes.WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		h.HandleError(w, errors.NewValidationError("Invalid webhook payload", errors.ErrCodeValidationFailed))
		return
	}

	switch event.Event {
	case paymentgatewaytypes.WebhookEventOrderPaid, paymentgatewaytypes.WebhookEventPaymentCaptured:
	default:
		h.Logger.Debug("webhook event ignored", "event", event.Event)
		h.WriteJSON(w, http.StatusOK, WebhookResponse{Status: "ignored"})
		return
	}

	orderID := event.OrderID()
	if orderID == "" {
		h.HandleError(w, errors.NewValidationError("Webhook payload has no order id", errors.ErrCodeValidationFailed))
		return
	}

	h.Logger.Info("webhook received", "event", event.Event, "order_id", orderID)

	result, err := h.service.Verify(r.Context(), orderID)
	if err != nil {
		// non-2xx makes the provider redeliver
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, WebhookResponse{Status: result.Status})
}
