package paymentgateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	paymentgatewaytypes "github.com/frahmantamala/credit-marketplace/internal/core/datamodel/paymentgateway"
	"github.com/frahmantamala/credit-marketplace/internal/metrics"
	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"
)

// ErrUnavailable wraps every failure to reach the provider or get a usable answer.
var ErrUnavailable = errors.New("payment gateway unavailable")

type Config struct {
	BaseURL       string
	KeyID         string
	KeySecret     string
	WebhookSecret string
	Timeout       time.Duration

	BreakerMaxRequests  uint32
	BreakerInterval     time.Duration
	BreakerOpenTimeout  time.Duration
	BreakerMinRequests  uint32
	BreakerFailureRatio float64
}

// Client talks to Razorpay's orders API.
type Client struct {
	http          *resty.Client
	breaker       *gobreaker.CircuitBreaker
	keySecret     string
	webhookSecret string
	metrics       *metrics.Metrics
	logger        *slog.Logger
}

func NewClient(cfg Config, m *metrics.Metrics, logger *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetBasicAuth(cfg.KeyID, cfg.KeySecret).
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout).
		SetRetryCount(0)

	c := &Client{
		http:          httpClient,
		keySecret:     cfg.KeySecret,
		webhookSecret: cfg.WebhookSecret,
		metrics:       m,
		logger:        logger,
	}
	c.breaker = c.newBreaker(cfg)
	return c
}

func (c *Client) newBreaker(cfg Config) *gobreaker.CircuitBreaker {
	maxRequests := cfg.BreakerMaxRequests
	if maxRequests == 0 {
		maxRequests = 3
	}
	interval := cfg.BreakerInterval
	if interval == 0 {
		interval = 30 * time.Second
	}
	openTimeout := cfg.BreakerOpenTimeout
	if openTimeout == 0 {
		openTimeout = 30 * time.Second
	}
	minRequests := cfg.BreakerMinRequests
	if minRequests == 0 {
		minRequests = 5
	}
	ratio := cfg.BreakerFailureRatio
	if ratio == 0 {
		ratio = 0.6
	}

	const name = "razorpay"
	c.metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: maxRequests,
		Interval:    interval,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= minRequests && failureRatio >= ratio
		},
		// provider rejections (4xx) say nothing about provider health
		IsSuccessful: func(err error) bool {
			var rejected *RejectedError
			return err == nil || errors.As(err, &rejected)
		},
		OnStateChange: func(cbName string, from, to gobreaker.State) {
			state := float64(0)
			switch to {
			case gobreaker.StateOpen:
				state = 1
			case gobreaker.StateHalfOpen:
				state = 2
			}
			c.metrics.CircuitBreakerState.WithLabelValues(cbName).Set(state)
			c.logger.Warn("circuit breaker state changed", "circuit", cbName, "from", from.String(), "to", to.String())
		},
	})
}

// RejectedError is a non-2xx answer from the provider.
type RejectedError struct {
	StatusCode  int
	Code        string
	Description string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("provider rejected request (%d %s): %s", e.StatusCode, e.Code, e.Description)
}

func (c *Client) CreateOrder(ctx context.Context, req *paymentgatewaytypes.OrderRequest) (*paymentgatewaytypes.Order, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}

	order, err := c.do(ctx, "create_order", func() (*resty.Response, *paymentgatewaytypes.Order, *paymentgatewaytypes.APIError, error) {
		var out paymentgatewaytypes.Order
		var apiErr paymentgatewaytypes.APIError
		resp, err := c.http.R().
			SetContext(ctx).
			SetBody(req).
			SetResult(&out).
			SetError(&apiErr).
			Post("/v1/orders")
		return resp, &out, &apiErr, err
	})
	if err != nil {
		return nil, err
	}

	c.logger.Debug("provider order created", "order_id", order.ID, "receipt", order.Receipt, "amount", order.Amount)
	return order, nil
}

func (c *Client) FetchOrder(ctx context.Context, orderID string) (*paymentgatewaytypes.Order, error) {
	if orderID == "" {
		return nil, errors.New("validation error: order id is required")
	}

	return c.do(ctx, "fetch_order", func() (*resty.Response, *paymentgatewaytypes.Order, *paymentgatewaytypes.APIError, error) {
		var out paymentgatewaytypes.Order
		var apiErr paymentgatewaytypes.APIError
		resp, err := c.http.R().
			SetContext(ctx).
			SetPathParam("id", orderID).
			SetResult(&out).
			SetError(&apiErr).
			Get("/v1/orders/{id}")
		return resp, &out, &apiErr, err
	})
}

type call func() (*resty.Response, *paymentgatewaytypes.Order, *paymentgatewaytypes.APIError, error)

func (c *Client) do(ctx context.Context, operation string, fn call) (*paymentgatewaytypes.Order, error) {
	start := time.Now()

	result, err := c.breaker.Execute(func() (interface{}, error) {
		resp, order, apiErr, err := fn()
		if err != nil {
			return nil, err
		}
		if resp.IsError() {
			rejected := &RejectedError{
				StatusCode:  resp.StatusCode(),
				Code:        apiErr.Error.Code,
				Description: apiErr.Error.Description,
			}
			// 5xx and throttling count against the breaker
			if resp.StatusCode() >= http.StatusInternalServerError || resp.StatusCode() == http.StatusTooManyRequests {
				return nil, fmt.Errorf("%s", rejected.Error())
			}
			return nil, rejected
		}
		if order.ID == "" {
			return nil, errors.New("provider returned an order without id")
		}
		return order, nil
	})

	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	c.metrics.GatewayDuration.WithLabelValues(operation, outcome).Observe(time.Since(start).Seconds())

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			c.logger.Warn("gateway call short-circuited", "operation", operation, "error", err)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, operation, ctxErr)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, operation, err)
	}

	return result.(*paymentgatewaytypes.Order), nil
}

// BreakerError is non-nil while the circuit is open.
func (c *Client) BreakerError() error {
	if c.breaker.State() == gobreaker.StateOpen {
		return fmt.Errorf("%w: circuit breaker is open", ErrUnavailable)
	}
	return nil
}

// VerifyPaymentSignature checks the checkout callback signature
// hmac_sha256(order_id + "|" + payment_id, key_secret).
func (c *Client) VerifyPaymentSignature(orderID, paymentID, signature string) bool {
	return validHMAC(c.keySecret, orderID+"|"+paymentID, signature)
}

// VerifyWebhookSignature checks X-Razorpay-Signature against the raw body.
func (c *Client) VerifyWebhookSignature(body []byte, signature string) bool {
	if c.webhookSecret == "" {
		return false
	}
	return validHMAC(c.webhookSecret, string(body), signature)
}

func validHMAC(secret, message, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	expected := Sign(secret, message)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// Sign returns the lowercase hex HMAC-SHA256 of message.
func Sign(secret, message string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}
