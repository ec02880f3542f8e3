package user

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	errors "github.com/frahmantamala/credit-marketplace/internal"
	userDatamodel "github.com/frahmantamala/credit-marketplace/internal/core/datamodel/user"
	"github.com/frahmantamala/credit-marketplace/pkg/logger"
)

func TestUser(t *testing.T) {
	gomega.RegisterFailHandler(ginkgo.Fail)
	ginkgo.RunSpecs(t, "User Module Suite")
}

type mockRepository struct {
	users    map[int64]*userDatamodel.User
	addErr   error
	added    []int64
	spendErr error
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		users: map[int64]*userDatamodel.User{
			1: {ID: 1, Email: "ada@example.com", Name: "Ada", CreditBalance: 7},
		},
	}
}

func (m *mockRepository) GetByID(_ context.Context, userID int64) (*userDatamodel.User, error) {
	u, ok := m.users[userID]
	if !ok {
		return nil, errors.ErrUserNotFound
	}
	return u, nil
}

func (m *mockRepository) GetCredits(ctx context.Context, userID int64) (int64, error) {
	u, err := m.GetByID(ctx, userID)
	if err != nil {
		return 0, err
	}
	return u.CreditBalance, nil
}

func (m *mockRepository) AddCredits(_ context.Context, userID int64, amount int64) error {
	if m.addErr != nil {
		return m.addErr
	}
	m.added = append(m.added, amount)
	m.users[userID].CreditBalance += amount
	return nil
}

func (m *mockRepository) SpendCredit(_ context.Context, userID int64) error {
	if m.spendErr != nil {
		return m.spendErr
	}
	m.users[userID].CreditBalance--
	return nil
}

var _ = ginkgo.Describe("Service", func() {
	var (
		repo    *mockRepository
		service *Service
		ctx     context.Context
	)

	ginkgo.BeforeEach(func() {
		repo = newMockRepository()
		service = NewService(repo, logger.Discard())
		ctx = context.Background()
	})

	ginkgo.It("adds positive credit amounts", func() {
		gomega.Expect(service.AddCredits(ctx, 1, 750)).To(gomega.Succeed())
		gomega.Expect(repo.added).To(gomega.Equal([]int64{750}))
	})

	ginkgo.It("refuses zero or negative grants", func() {
		err := service.AddCredits(ctx, 1, -3)
		appErr, ok := errors.IsAppError(err)
		gomega.Expect(ok).To(gomega.BeTrue())
		gomega.Expect(appErr.StatusCode).To(gomega.Equal(http.StatusBadRequest))
		gomega.Expect(repo.added).To(gomega.BeEmpty())
	})

	ginkgo.It("refunds one credit", func() {
		gomega.Expect(service.RefundCredit(ctx, 1)).To(gomega.Succeed())
		gomega.Expect(repo.users[1].CreditBalance).To(gomega.Equal(int64(8)))
	})

	ginkgo.It("passes insufficient balance through", func() {
		repo.spendErr = errors.ErrInsufficientCredits
		gomega.Expect(service.SpendCredit(ctx, 1)).To(gomega.MatchError(errors.ErrInsufficientCredits))
	})

	ginkgo.It("keeps not-found errors and reads balances", func() {
		credits, err := service.GetCredits(ctx, 1)
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		gomega.Expect(credits).To(gomega.Equal(int64(7)))

		_, err = service.GetByID(ctx, 2)
		gomega.Expect(err).To(gomega.MatchError(errors.ErrUserNotFound))
	})
})

var _ = ginkgo.Describe("Handler", func() {
	var handler *Handler

	ginkgo.BeforeEach(func() {
		handler = NewHandler(NewService(newMockRepository(), logger.Discard()))
	})

	ginkgo.It("returns the balance and name of the caller", func() {
		req := httptest.NewRequest(http.MethodGet, "/api/user/credits", nil)
		req = req.WithContext(errors.ContextWithUserID(req.Context(), 1))
		rec := httptest.NewRecorder()

		handler.GetCredits(rec, req)

		gomega.Expect(rec.Code).To(gomega.Equal(http.StatusOK))
		gomega.Expect(rec.Body.String()).To(gomega.MatchJSON(`{"success":true,"credits":7,"user":{"name":"Ada"}}`))
	})

	ginkgo.It("answers 404 for a deleted account", func() {
		req := httptest.NewRequest(http.MethodGet, "/api/user/credits", nil)
		req = req.WithContext(errors.ContextWithUserID(req.Context(), 99))
		rec := httptest.NewRecorder()

		handler.GetCredits(rec, req)

		gomega.Expect(rec.Code).To(gomega.Equal(http.StatusNotFound))
	})

	ginkgo.It("answers 401 without an authenticated user", func() {
		rec := httptest.NewRecorder()
		handler.GetCredits(rec, httptest.NewRequest(http.MethodGet, "/api/user/credits", nil))
		gomega.Expect(rec.Code).To(gomega.Equal(http.StatusUnauthorized))
	})
})
