package rest

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/frahmantamala/credit-marketplace/internal/auth"
	"github.com/frahmantamala/credit-marketplace/internal/image"
	"github.com/frahmantamala/credit-marketplace/internal/metrics"
	"github.com/frahmantamala/credit-marketplace/internal/plan"
	"github.com/frahmantamala/credit-marketplace/internal/transaction"
	"github.com/frahmantamala/credit-marketplace/internal/transport/middleware"
	"github.com/frahmantamala/credit-marketplace/internal/transport/swagger"
	"github.com/frahmantamala/credit-marketplace/internal/user"
)

// Handlers groups everything the router mounts. Nil handlers are skipped.
type Handlers struct {
	Health      *HealthHandler
	Auth        *auth.Handler
	User        *user.Handler
	Plan        *plan.Handler
	Transaction *transaction.Handler
	Webhook     *transaction.WebhookHandler
	Image       *image.Handler
}

type Options struct {
	AllowedOrigins []string
	Metrics        *metrics.Metrics
	MetricsPath    string
	Gatherer       prometheus.Gatherer
	OpenAPIPath    string
}

func RegisterAllRoutes(router chi.Router, h Handlers, opts Options, logger *slog.Logger) {
	router.Use(middleware.CORS(opts.AllowedOrigins))
	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(logger))
	if opts.Metrics != nil {
		router.Use(middleware.Metrics(opts.Metrics))
	}

	if opts.MetricsPath != "" && opts.Gatherer != nil {
		router.Handle(opts.MetricsPath, promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	if opts.OpenAPIPath != "" {
		router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
			http.ServeFile(w, r, opts.OpenAPIPath)
		})
		router.Handle("/swagger/*", swagger.Handler())
	}

	router.Route("/api", func(r chi.Router) {
		r.Use(middleware.LoggingMiddleware(logger))

		if h.Health != nil {
			r.Get("/health", h.Health.Health)
			r.Get("/ping", h.Health.Ping)
		}

		if h.Plan != nil {
			r.Get("/plans", h.Plan.ListPlans)
		}

		if h.Webhook != nil {
			r.Post("/webhooks/razorpay", h.Webhook.HandleRazorpay)
		}

		r.Route("/user", func(ur chi.Router) {
			if h.Auth != nil {
				ur.Post("/register", h.Auth.Register)
				ur.Post("/login", h.Auth.Login)
			}

			// provider callback; the order id is checked against the provider
			if h.Transaction != nil {
				ur.Post("/verify-razor", h.Transaction.VerifyRazor)
			}

			if h.Auth == nil {
				return
			}
			ur.Group(func(pr chi.Router) {
				pr.Use(h.Auth.AuthMiddleware)

				if h.User != nil {
					pr.Get("/credits", h.User.GetCredits)
				}
				if h.Transaction != nil {
					pr.Post("/submit-form", h.Transaction.SubmitForm)
					pr.Post("/pay-razor", h.Transaction.PayRazor)
					pr.Get("/transactions/{id}", h.Transaction.GetTransaction)
				}
			})
		})

		if h.Image != nil && h.Auth != nil {
			r.Route("/image", func(ir chi.Router) {
				ir.Use(h.Auth.AuthMiddleware)
				ir.Post("/generate-image", h.Image.GenerateImage)
			})
		}
	})
}
