package shopify

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bundlewise/backend/internal/domain/platform"
	"github.com/bundlewise/backend/internal/infrastructure/config"
)

// defaultTimeout bounds Admin API calls when the config leaves it unset
const defaultTimeout = 10 * time.Second

// Factory builds per-shop Admin API clients. All clients share one
// http.Client; credentials are bound per call to ForShop.
type Factory struct {
	apiVersion string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewFactory creates a client factory from the Shopify app configuration
func NewFactory(cfg config.ShopifyConfig, logger *zap.Logger) *Factory {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Factory{
		apiVersion: cfg.APIVersion,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// ForShop returns a client bound to the shop's domain and token.
// Returns platform.ErrClientAbsent when the shop has no usable credentials.
func (f *Factory) ForShop(shopDomain, accessToken string) (platform.AdminClient, error) {
	domain := strings.TrimSpace(strings.ToLower(shopDomain))
	if domain == "" || strings.TrimSpace(accessToken) == "" {
		return nil, platform.ErrClientAbsent
	}
	return &Client{
		endpoint:    fmt.Sprintf("https://%s/admin/api/%s/graphql.json", domain, f.apiVersion),
		accessToken: accessToken,
		httpClient:  f.httpClient,
		logger:      f.logger.With(zap.String("shop_domain", domain)),
	}, nil
}

// Ensure Factory implements the ClientFactory port
var _ platform.ClientFactory = (*Factory)(nil)
