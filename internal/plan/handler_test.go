package plan_test

import (
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/credit-marketplace/internal/plan"
)

var _ = Describe("Handler", func() {
	It("lists the catalog in order", func() {
		h := plan.NewHandler(plan.DefaultCatalog())
		rec := httptest.NewRecorder()

		h.ListPlans(rec, httptest.NewRequest(http.MethodGet, "/api/plans", nil))

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(MatchJSON(`{
			"success": true,
			"plans": [
				{"id":"Basic","credits":100,"amount":10,"desc":"Best for personal use."},
				{"id":"Advanced","credits":750,"amount":50,"desc":"Best for business use."},
				{"id":"Business","credits":5000,"amount":250,"desc":"Best for enterprise use."}
			]
		}`))
	})
})
