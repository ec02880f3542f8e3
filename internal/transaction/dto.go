package transaction

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	errors "github.com/frahmantamala/credit-marketplace/internal"
	"github.com/frahmantamala/credit-marketplace/internal/core/common/validation"
	txDatamodel "github.com/frahmantamala/credit-marketplace/internal/core/datamodel/transaction"
)

// FlexInt accepts 3 or "3"; the billing form posts select values as strings.
type FlexInt int

func (f *FlexInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*f = 0
			return nil
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("invalid integer %q", s)
		}
		*f = FlexInt(n)
		return nil
	}
	var n int
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = FlexInt(n)
	return nil
}

// SubmitFormDTO has no amount or credits fields; pricing comes from the plan
// catalog and anything else the client sends is dropped by the decoder.
type SubmitFormDTO struct {
	PlanID         string                     `json:"planId"`
	PaymentMethod  string                     `json:"paymentMethod"`
	EMIDuration    FlexInt                    `json:"emiDuration"`
	BillingDetails txDatamodel.BillingDetails `json:"billingDetails"`
}

func (d *SubmitFormDTO) Normalize() {
	d.PlanID = strings.TrimSpace(d.PlanID)
	d.PaymentMethod = strings.ToLower(strings.TrimSpace(d.PaymentMethod))
	if d.PaymentMethod == "" {
		d.PaymentMethod = txDatamodel.PaymentMethodFull
	}
	if d.PaymentMethod == txDatamodel.PaymentMethodFull {
		d.EMIDuration = 0
	}
	d.BillingDetails.FullName = strings.TrimSpace(d.BillingDetails.FullName)
	d.BillingDetails.Email = strings.TrimSpace(d.BillingDetails.Email)
	d.BillingDetails.Phone = strings.TrimSpace(d.BillingDetails.Phone)
}

func (d SubmitFormDTO) Validate() *errors.AppError {
	v := validation.NewValidator()
	v.Field("planId", d.PlanID).Required()
	v.Field("billingDetails.fullName", d.BillingDetails.FullName).Required().MaxLength(200)
	v.Field("billingDetails.email", d.BillingDetails.Email).Required().Email()
	v.Field("paymentMethod", d.PaymentMethod).OneOf(errors.ErrCodeInvalidPaymentMethod, txDatamodel.PaymentMethodFull, txDatamodel.PaymentMethodEMI)
	if d.PaymentMethod == txDatamodel.PaymentMethodEMI {
		v.Field("emiDuration", int(d.EMIDuration)).
			MinInt(1, errors.ErrCodeInvalidEMIDuration).
			MaxInt(maxEMIDuration, errors.ErrCodeInvalidEMIDuration)
	}
	return v.Validate()
}

type CreateOrderDTO struct {
	TransactionID string `json:"transactionId"`
	PlanID        string `json:"planId"`
}

func (d CreateOrderDTO) Validate() *errors.AppError {
	v := validation.NewValidator()
	v.Field("transactionId", strings.TrimSpace(d.TransactionID)).Required()
	return v.Validate()
}

// VerifyDTO accepts both our field name and the checkout callback names.
type VerifyDTO struct {
	ExternalOrderID   string `json:"externalOrderId"`
	RazorpayOrderID   string `json:"razorpay_order_id"`
	RazorpayPaymentID string `json:"razorpay_payment_id"`
	RazorpaySignature string `json:"razorpay_signature"`
}

func (d VerifyDTO) OrderID() string {
	if id := strings.TrimSpace(d.ExternalOrderID); id != "" {
		return id
	}
	return strings.TrimSpace(d.RazorpayOrderID)
}

type SubmitResponse struct {
	Success       bool   `json:"success"`
	TransactionID string `json:"transactionId"`
}

type VerifyResponse struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	Status        string `json:"status"`
	TransactionID string `json:"transactionId,omitempty"`
}
