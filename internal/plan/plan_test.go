package plan_test

import (
	stderrors "errors"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	errors "github.com/frahmantamala/credit-marketplace/internal"
	"github.com/frahmantamala/credit-marketplace/internal/plan"
)

func TestPlan(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Plan Catalog Suite")
}

var _ = Describe("Catalog", func() {
	var catalog *plan.Catalog

	BeforeEach(func() {
		catalog = plan.DefaultCatalog()
	})

	DescribeTable("resolves the fixed plans",
		func(id string, credits, amount int64) {
			p, err := catalog.Lookup(id)
			Expect(err).ToNot(HaveOccurred())
			Expect(p.Credits).To(Equal(credits))
			Expect(p.Amount).To(Equal(amount))
		},
		Entry("Basic", plan.Basic, int64(100), int64(10)),
		Entry("Advanced", plan.Advanced, int64(750), int64(50)),
		Entry("Business", plan.Business, int64(5000), int64(250)),
	)

	It("rejects unknown and differently-cased ids", func() {
		for _, id := range []string{"", "Premium", "basic"} {
			_, err := catalog.Lookup(id)
			Expect(stderrors.Is(err, errors.ErrUnknownPlan)).To(BeTrue(), id)
		}
	})

	It("lists plans in catalog order without exposing internal state", func() {
		all := catalog.All()
		Expect(all).To(HaveLen(3))
		Expect(all[0].ID).To(Equal(plan.Basic))

		all[0].Credits = 1
		p, _ := catalog.Lookup(plan.Basic)
		Expect(p.Credits).To(Equal(int64(100)))
	})
})
