// Package brands fetches brand fee configuration from the platform brand
// service and caches it.
package brands

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/portalpay/backend/internal/domain/split"
)

// HTTPPolicyClient fetches brand configuration over HTTP from the platform
// brand service. It implements split.PolicySource.
type HTTPPolicyClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// HTTPPolicyClientOption is a functional option for configuring the client
type HTTPPolicyClientOption func(*HTTPPolicyClient)

// WithHTTPClient sets the underlying HTTP client
func WithHTTPClient(c *http.Client) HTTPPolicyClientOption {
	return func(p *HTTPPolicyClient) {
		p.httpClient = c
	}
}

// WithLogger sets the logger for the client
func WithLogger(logger *zap.Logger) HTTPPolicyClientOption {
	return func(p *HTTPPolicyClient) {
		p.logger = logger
	}
}

// NewHTTPPolicyClient creates a new brand config client
func NewHTTPPolicyClient(baseURL string, timeout time.Duration, opts ...HTTPPolicyClientOption) *HTTPPolicyClient {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	c := &HTTPPolicyClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// brandConfigResponse is the wire shape of the brand service response. Only
// the fee-relevant fields are decoded; everything else is ignored.
type brandConfigResponse struct {
	Brand     *split.FeePolicy `json:"brand"`
	Overrides *split.FeePolicy `json:"overrides"`
}

// Fetch retrieves the effective brand configuration for the given brand key.
func (c *HTTPPolicyClient) Fetch(ctx context.Context, brandKey string) (split.BrandConfig, error) {
	endpoint := fmt.Sprintf("%s/api/platform/brands/%s/config",
		c.baseURL, url.PathEscape(strings.ToLower(brandKey)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return split.BrandConfig{}, fmt.Errorf("failed to build brand config request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return split.BrandConfig{}, fmt.Errorf("brand config fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return split.BrandConfig{}, fmt.Errorf("brand config fetch returned status %d", resp.StatusCode)
	}

	var body brandConfigResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return split.BrandConfig{}, fmt.Errorf("failed to decode brand config: %w", err)
	}

	var cfg split.BrandConfig
	if body.Brand != nil {
		cfg.Brand = *body.Brand
	}
	if body.Overrides != nil {
		cfg.Overrides = *body.Overrides
	}

	c.logger.Debug("fetched brand config",
		zap.String("brand_key", brandKey),
		zap.Bool("has_brand", body.Brand != nil))
	return cfg, nil
}

var _ split.PolicySource = (*HTTPPolicyClient)(nil)
