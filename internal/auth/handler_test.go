package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
	"golang.org/x/crypto/bcrypt"

	errors "github.com/frahmantamala/credit-marketplace/internal"
	"github.com/frahmantamala/credit-marketplace/pkg/logger"
)

var _ = ginkgo.Describe("Handler", func() {
	var (
		handler  *Handler
		tokenGen *JWTTokenGenerator
	)

	ginkgo.BeforeEach(func() {
		tokenGen = NewJWTTokenGenerator("test-secret-test-secret-test-secret", time.Hour)
		svc := NewService(newMockUserRepository(), tokenGen, Config{BCryptCost: bcrypt.MinCost, SignupBonus: 5}, logger.Discard())
		handler = NewHandler(svc)
	})

	ginkgo.It("registers and answers with a token and the user name", func() {
		body := `{"name":"Ada","email":"ada@example.com","password":"s3cretpass"}`
		rec := httptest.NewRecorder()
		handler.Register(rec, httptest.NewRequest(http.MethodPost, "/api/user/register", strings.NewReader(body)))

		gomega.Expect(rec.Code).To(gomega.Equal(http.StatusCreated))
		gomega.Expect(rec.Body.String()).To(gomega.ContainSubstring(`"success":true`))
		gomega.Expect(rec.Body.String()).To(gomega.ContainSubstring(`"user":{"name":"Ada"}`))
	})

	ginkgo.It("answers 401 on bad credentials", func() {
		body := `{"email":"user@example.com","password":"nope"}`
		rec := httptest.NewRecorder()
		handler.Login(rec, httptest.NewRequest(http.MethodPost, "/api/user/login", strings.NewReader(body)))

		gomega.Expect(rec.Code).To(gomega.Equal(http.StatusUnauthorized))
		gomega.Expect(rec.Body.String()).To(gomega.ContainSubstring(`"code":"INVALID_CREDENTIALS"`))
	})

	ginkgo.It("answers 400 on malformed json", func() {
		rec := httptest.NewRecorder()
		handler.Login(rec, httptest.NewRequest(http.MethodPost, "/api/user/login", strings.NewReader("{")))
		gomega.Expect(rec.Code).To(gomega.Equal(http.StatusBadRequest))
	})

	ginkgo.Describe("AuthMiddleware", func() {
		var (
			seen int64
			next http.Handler
		)

		ginkgo.BeforeEach(func() {
			seen = 0
			next = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = errors.UserIDFromContext(r.Context())
				w.WriteHeader(http.StatusNoContent)
			})
		})

		ginkgo.It("accepts bearer tokens", func() {
			token, _ := tokenGen.GenerateAccessToken(42)
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			rec := httptest.NewRecorder()

			handler.AuthMiddleware(next).ServeHTTP(rec, req)

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusNoContent))
			gomega.Expect(seen).To(gomega.Equal(int64(42)))
		})

		ginkgo.It("accepts the legacy token header", func() {
			token, _ := tokenGen.GenerateAccessToken(7)
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("token", token)
			rec := httptest.NewRecorder()

			handler.AuthMiddleware(next).ServeHTTP(rec, req)

			gomega.Expect(seen).To(gomega.Equal(int64(7)))
		})

		ginkgo.It("stops requests without a token", func() {
			rec := httptest.NewRecorder()
			handler.AuthMiddleware(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusUnauthorized))
			gomega.Expect(seen).To(gomega.BeZero())
		})

		ginkgo.It("stops requests with a forged token", func() {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", "Bearer not.a.jwt")
			rec := httptest.NewRecorder()

			handler.AuthMiddleware(next).ServeHTTP(rec, req)

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusUnauthorized))
		})
	})
})
