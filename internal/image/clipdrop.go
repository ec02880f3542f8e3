package image

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrGenerationFailed wraps every failure to get an image back from the provider.
var ErrGenerationFailed = errors.New("image generation failed")

type ClipDropConfig struct {
	APIURL  string
	APIKey  string
	Timeout time.Duration
}

// ClipDropClient calls the ClipDrop text-to-image endpoint.
type ClipDropClient struct {
	http   *resty.Client
	apiURL string
	logger *slog.Logger
}

func NewClipDropClient(cfg ClipDropConfig, logger *slog.Logger) *ClipDropClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &ClipDropClient{
		http: resty.New().
			SetHeader("x-api-key", cfg.APIKey).
			SetTimeout(timeout).
			SetRetryCount(0),
		apiURL: cfg.APIURL,
		logger: logger,
	}
}

type clipDropError struct {
	Error string `json:"error"`
}

func (c *ClipDropClient) Generate(ctx context.Context, prompt string) (*Image, error) {
	start := time.Now()
	var apiErr clipDropError

	resp, err := c.http.R().
		SetContext(ctx).
		SetMultipartFormData(map[string]string{"prompt": prompt}).
		SetError(&apiErr).
		Post(c.apiURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: provider returned %d: %s", ErrGenerationFailed, resp.StatusCode(), apiErr.Error)
	}

	data := resp.Body()
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty response body", ErrGenerationFailed)
	}

	contentType := resp.Header().Get("Content-Type")
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = contentType[:i]
	}
	if !strings.HasPrefix(contentType, "image/") {
		contentType = "image/png"
	}

	c.logger.Debug("image generated", "bytes", len(data), "content_type", contentType, "duration", time.Since(start))
	return &Image{Data: data, ContentType: contentType}, nil
}
