// Package imagesvc is the HTTP client of the external image service.
package imagesvc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/bioportal/internal/domain"
	"github.com/kailas-cloud/bioportal/internal/domain/image"
	"github.com/kailas-cloud/bioportal/internal/metrics"
	"github.com/kailas-cloud/bioportal/internal/version"
)

const maxErrorBody = 4 << 10

// Config holds the image service client settings.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	RatePerSec float64
	Logger     *zap.Logger
}

// Client fetches image metadata, spacing requests with a token bucket.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewClient creates an image service client.
func NewClient(cfg *Config) *Client {
	limit := rate.Inf
	burst := 1
	if cfg.RatePerSec > 0 {
		limit = rate.Limit(cfg.RatePerSec)
		burst = max(1, int(cfg.RatePerSec))
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(limit, burst),
		logger:  cfg.Logger,
	}
}

// BaseURL returns the service root used to build object URLs.
func (c *Client) BaseURL() string { return c.baseURL }

// Images returns the image metadata of the given process IDs.
// Every failure wraps domain.ErrUpstream.
func (c *Client) Images(ctx context.Context, processIDs []string) ([]image.Metadata, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("image service rate limit: %w", err)
	}

	u := c.baseURL + "/api/images?" + url.Values{"processids": {strings.Join(processIDs, ",")}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build image request: %w", err)
	}
	req.Header.Set("User-Agent", version.UserAgent())

	start := time.Now()
	resp, err := c.http.Do(req)
	duration := time.Since(start)
	if err != nil {
		metrics.ImageRequestsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("image request failed: %v: %w", err, domain.ErrUpstream)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode/100 != 2 {
		metrics.ImageRequestsTotal.WithLabelValues("error").Inc()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, parseAPIError(resp.StatusCode, body)
	}

	var out []image.Metadata
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		metrics.ImageRequestsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("decode image metadata: %v: %w", err, domain.ErrUpstream)
	}

	metrics.ImageRequestsTotal.WithLabelValues("success").Inc()
	metrics.ImageRequestDuration.Observe(duration.Seconds())
	c.logger.Debug("Image metadata fetched",
		zap.Int("processids", len(processIDs)),
		zap.Int("images", len(out)),
		zap.Duration("duration", duration))
	return out, nil
}

// parseAPIError extracts a readable error from the response body.
func parseAPIError(status int, body []byte) error {
	if detail := extractDetail(body); detail != "" {
		return fmt.Errorf("image service error %d: %s: %w", status, detail, domain.ErrUpstream)
	}
	return fmt.Errorf("image service error %d: %s: %w", status, strings.TrimSpace(string(body)), domain.ErrUpstream)
}

// extractDetail reads the "detail" field of a JSON error body.
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
