package validation_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	errors "github.com/frahmantamala/credit-marketplace/internal"
	"github.com/frahmantamala/credit-marketplace/internal/core/common/validation"
)

func TestValidation(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Validation Suite")
}

var _ = Describe("ValidationBuilder", func() {
	It("passes when every rule holds", func() {
		v := validation.NewValidator()
		v.Field("email", "jane@example.com").Required().Email()
		v.Field("emiDuration", int64(3)).MinInt(1, errors.ErrCodeInvalidEMIDuration)
		Expect(v.Validate()).To(BeNil())
	})

	It("collects one error per failing field", func() {
		v := validation.NewValidator()
		v.Field("fullName", "  ").Required().MinLength(2)
		v.Field("email", "not-an-email").Required().Email()

		appErr := v.Validate()
		Expect(appErr).ToNot(BeNil())
		Expect(appErr.Type).To(Equal(errors.ErrorTypeValidation))

		details, ok := appErr.Details.(errors.ValidationErrors)
		Expect(ok).To(BeTrue())
		Expect(details.Errors).To(HaveLen(2))
		Expect(details.Errors[0].Field).To(Equal("fullName"))
		Expect(details.Errors[1].Code).To(Equal(string(errors.ErrCodeInvalidEmail)))
	})

	It("leaves empty emails to Required", func() {
		v := validation.NewValidator()
		v.Field("email", "").Email()
		Expect(v.Validate()).To(BeNil())
	})

	It("restricts values with OneOf", func() {
		v := validation.NewValidator()
		v.Field("paymentMethod", "card").OneOf(errors.ErrCodeInvalidPaymentMethod, "full", "emi")

		appErr := v.Validate()
		Expect(appErr).ToNot(BeNil())
		Expect(appErr.GetDetailedMessage()).To(ContainSubstring("full, emi"))
	})

	It("enforces integer bounds", func() {
		v := validation.NewValidator()
		v.Field("emiDuration", 30).MaxInt(24, errors.ErrCodeInvalidEMIDuration)
		Expect(v.Validate()).ToNot(BeNil())
	})
})
