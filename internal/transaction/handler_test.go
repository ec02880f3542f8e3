package transaction_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	errors "github.com/frahmantamala/credit-marketplace/internal"
	paymentgatewaytypes "github.com/frahmantamala/credit-marketplace/internal/core/datamodel/paymentgateway"
	txDatamodel "github.com/frahmantamala/credit-marketplace/internal/core/datamodel/transaction"
	"github.com/frahmantamala/credit-marketplace/internal/transaction"
	"github.com/frahmantamala/credit-marketplace/internal/transport"
	"github.com/frahmantamala/credit-marketplace/pkg/logger"
)

type stubService struct {
	submitted *transaction.SubmitFormDTO
	submitErr error
	verified  []string
	verifyRes *transaction.VerifyResult
	verifyErr error
	orderErr  error
	stored    *txDatamodel.Transaction
}

func (s *stubService) Submit(_ context.Context, _ int64, dto transaction.SubmitFormDTO) (*txDatamodel.Transaction, error) {
	s.submitted = &dto
	if s.submitErr != nil {
		return nil, s.submitErr
	}
	return &txDatamodel.Transaction{ID: "tx-1"}, nil
}

func (s *stubService) CreateOrder(_ context.Context, _ int64, dto transaction.CreateOrderDTO) (*paymentgatewaytypes.Order, error) {
	if s.orderErr != nil {
		return nil, s.orderErr
	}
	return &paymentgatewaytypes.Order{ID: "order_1", Amount: 1000, Currency: "INR", Receipt: dto.TransactionID, Status: paymentgatewaytypes.OrderStatusCreated}, nil
}

func (s *stubService) Verify(_ context.Context, orderID string) (*transaction.VerifyResult, error) {
	s.verified = append(s.verified, orderID)
	if s.verifyErr != nil {
		return nil, s.verifyErr
	}
	return s.verifyRes, nil
}

func (s *stubService) Get(_ context.Context, userID int64, id string) (*txDatamodel.Transaction, error) {
	if s.stored == nil || s.stored.ID != id || s.stored.UserID != userID {
		return nil, errors.ErrTransactionNotFound
	}
	return s.stored, nil
}

type stubVerifier struct {
	paymentOK bool
	webhookOK bool
}

func (v stubVerifier) VerifyPaymentSignature(string, string, string) bool { return v.paymentOK }
func (v stubVerifier) VerifyWebhookSignature([]byte, string) bool      { return v.webhookOK }

func decodeBody(rec *httptest.ResponseRecorder) map[string]interface{} {
	var body map[string]interface{}
	Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
	return body
}

var _ = Describe("Handler", func() {
	var (
		svc     *stubService
		handler *transaction.Handler
	)

	authed := func(req *http.Request) *http.Request {
		return req.WithContext(errors.ContextWithUserID(req.Context(), 7))
	}

	BeforeEach(func() {
		svc = &stubService{verifyRes: &transaction.VerifyResult{Status: transaction.VerifyStatusCompleted, TransactionID: "tx-1", Credits: 100}}
		handler = transaction.NewHandler(svc, stubVerifier{paymentOK: true})
	})

	Describe("SubmitForm", func() {
		It("returns the new transaction id", func() {
			req := authed(httptest.NewRequest(http.MethodPost, "/api/user/submit-form",
				strings.NewReader(`{"planId":"Basic","paymentMethod":"emi","emiDuration":"6","billingDetails":{"fullName":"Ada","email":"a@b.co"}}`)))
			rec := httptest.NewRecorder()

			handler.SubmitForm(rec, req)

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(decodeBody(rec)).To(Equal(map[string]interface{}{"success": true, "transactionId": "tx-1"}))
			Expect(int(svc.submitted.EMIDuration)).To(Equal(6))
		})

		It("rejects malformed JSON", func() {
			req := authed(httptest.NewRequest(http.MethodPost, "/api/user/submit-form", strings.NewReader(`{"planId":`)))
			rec := httptest.NewRecorder()

			handler.SubmitForm(rec, req)

			Expect(rec.Code).To(Equal(http.StatusBadRequest))
			Expect(svc.submitted).To(BeNil())
		})

		It("maps service errors to their status", func() {
			svc.submitErr = errors.ErrUnknownPlan
			req := authed(httptest.NewRequest(http.MethodPost, "/api/user/submit-form", strings.NewReader(`{"planId":"Gold"}`)))
			rec := httptest.NewRecorder()

			handler.SubmitForm(rec, req)

			Expect(rec.Code).To(Equal(http.StatusBadRequest))
			Expect(decodeBody(rec)).To(HaveKeyWithValue("success", false))
		})
	})

	Describe("PayRazor", func() {
		It("returns the provider order", func() {
			req := authed(httptest.NewRequest(http.MethodPost, "/api/user/pay-razor", strings.NewReader(`{"transactionId":"tx-1"}`)))
			rec := httptest.NewRecorder()

			handler.PayRazor(rec, req)

			Expect(rec.Code).To(Equal(http.StatusOK))
			body := decodeBody(rec)
			Expect(body).To(HaveKeyWithValue("success", true))
			Expect(body["order"]).To(HaveKeyWithValue("id", "order_1"))
			Expect(body["order"]).To(HaveKeyWithValue("receipt", "tx-1"))
		})

		It("reports a gateway outage as 502", func() {
			svc.orderErr = errors.ErrGatewayUnavailable
			req := authed(httptest.NewRequest(http.MethodPost, "/api/user/pay-razor", strings.NewReader(`{"transactionId":"tx-1"}`)))
			rec := httptest.NewRecorder()

			handler.PayRazor(rec, req)

			Expect(rec.Code).To(Equal(http.StatusBadGateway))
		})
	})

	Describe("VerifyRazor", func() {
		DescribeTable("reports the outcome",
			func(status string, success bool, message string) {
				svc.verifyRes = &transaction.VerifyResult{Status: status}
				req := httptest.NewRequest(http.MethodPost, "/api/user/verify-razor", strings.NewReader(`{"externalOrderId":"order_1"}`))
				rec := httptest.NewRecorder()

				handler.VerifyRazor(rec, req)

				Expect(rec.Code).To(Equal(http.StatusOK))
				body := decodeBody(rec)
				Expect(body).To(HaveKeyWithValue("success", success))
				Expect(body).To(HaveKeyWithValue("message", message))
				Expect(body).To(HaveKeyWithValue("status", status))
			},
			Entry("completed", transaction.VerifyStatusCompleted, true, "Credits Added"),
			Entry("already processed", transaction.VerifyStatusAlreadyProcessed, true, "Payment already processed"),
			Entry("failed", transaction.VerifyStatusFailed, false, "Payment Failed"),
		)

		It("accepts the checkout callback field names", func() {
			req := httptest.NewRequest(http.MethodPost, "/api/user/verify-razor",
				strings.NewReader(`{"razorpay_order_id":"order_9","razorpay_payment_id":"pay_1","razorpay_signature":"sig"}`))
			rec := httptest.NewRecorder()

			handler.VerifyRazor(rec, req)

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(svc.verified).To(Equal([]string{"order_9"}))
		})

		It("refuses a forged checkout signature", func() {
			handler = transaction.NewHandler(svc, stubVerifier{paymentOK: false})
			req := httptest.NewRequest(http.MethodPost, "/api/user/verify-razor",
				strings.NewReader(`{"razorpay_order_id":"order_9","razorpay_payment_id":"pay_1","razorpay_signature":"forged"}`))
			rec := httptest.NewRecorder()

			handler.VerifyRazor(rec, req)

			Expect(rec.Code).To(Equal(http.StatusBadRequest))
			Expect(svc.verified).To(BeEmpty())
		})

		It("propagates gateway errors", func() {
			svc.verifyErr = errors.ErrGatewayUnavailable
			req := httptest.NewRequest(http.MethodPost, "/api/user/verify-razor", strings.NewReader(`{"externalOrderId":"order_1"}`))
			rec := httptest.NewRecorder()

			handler.VerifyRazor(rec, req)

			Expect(rec.Code).To(Equal(http.StatusBadGateway))
		})
	})

	Describe("GetTransaction", func() {
		var router chi.Router

		BeforeEach(func() {
			svc.stored = &txDatamodel.Transaction{ID: "tx-1", UserID: 7, PlanID: "Basic", Amount: 10, Credits: 100, PaymentStatus: txDatamodel.StatusPending}
			router = chi.NewRouter()
			router.Get("/api/user/transactions/{id}", handler.GetTransaction)
		})

		It("returns the caller's transaction", func() {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, authed(httptest.NewRequest(http.MethodGet, "/api/user/transactions/tx-1", nil)))

			Expect(rec.Code).To(Equal(http.StatusOK))
			body := decodeBody(rec)
			Expect(body).To(HaveKeyWithValue("success", true))
			Expect(body["transaction"]).To(HaveKeyWithValue("id", "tx-1"))
		})

		It("returns 404 for unknown ids", func() {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, authed(httptest.NewRequest(http.MethodGet, "/api/user/transactions/tx-2", nil)))

			Expect(rec.Code).To(Equal(http.StatusNotFound))
		})
	})
})

var _ = Describe("WebhookHandler", func() {
	var (
		svc     *stubService
		webhook *transaction.WebhookHandler
	)

	post := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/webhooks/razorpay", strings.NewReader(body))
		req.Header.Set("X-Razorpay-Signature", "sig")
		rec := httptest.NewRecorder()
		webhook.HandleRazorpay(rec, req)
		return rec
	}

	BeforeEach(func() {
		svc = &stubService{verifyRes: &transaction.VerifyResult{Status: transaction.VerifyStatusCompleted}}
		webhook = transaction.NewWebhookHandler(transport.NewBaseHandler(logger.Discard()), svc, stubVerifier{webhookOK: true})
	})

	It("verifies order.paid events", func() {
		rec := post(`{"event":"order.paid","payload":{"order":{"entity":{"id":"order_5","status":"paid"}}}}`)

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(decodeBody(rec)).To(HaveKeyWithValue("status", transaction.VerifyStatusCompleted))
		Expect(svc.verified).To(Equal([]string{"order_5"}))
	})

	It("takes the order id from payment.captured events", func() {
		svc.verifyRes = &transaction.VerifyResult{Status: transaction.VerifyStatusAlreadyProcessed}

		rec := post(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_1","order_id":"order_6"}}}}`)

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(decodeBody(rec)).To(HaveKeyWithValue("status", transaction.VerifyStatusAlreadyProcessed))
		Expect(svc.verified).To(Equal([]string{"order_6"}))
	})

	It("ignores other events", func() {
		rec := post(`{"event":"payment.failed","payload":{}}`)

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(decodeBody(rec)).To(HaveKeyWithValue("status", "ignored"))
		Expect(svc.verified).To(BeEmpty())
	})

	It("rejects unsigned deliveries", func() {
		webhook = transaction.NewWebhookHandler(transport.NewBaseHandler(logger.Discard()), svc, stubVerifier{webhookOK: false})

		rec := post(`{"event":"order.paid","payload":{"order":{"entity":{"id":"order_5"}}}}`)

		Expect(rec.Code).To(Equal(http.StatusBadRequest))
		Expect(svc.verified).To(BeEmpty())
	})

	It("fails so the provider redelivers when settlement errors", func() {
		svc.verifyErr = errors.NewInternalError("failed to settle payment", nil)

		rec := post(`{"event":"order.paid","payload":{"order":{"entity":{"id":"order_5"}}}}`)

		Expect(rec.Code).To(Equal(http.StatusInternalServerError))
	})
})
