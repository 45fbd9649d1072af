package hosted

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Config holds connection settings for the hosted identity service.
type Config struct {
	// BaseURL is the service root (e.g. "https://abc.example.co").
	BaseURL string

	// APIKey is the publishable key sent with every request.
	APIKey string

	// ServiceKey is the privileged key for admin endpoints. Leave empty
	// on clients that must never perform admin operations.
	ServiceKey string

	// JWTSecret validates HS256 tokens. Ignored when JWKSURL is set.
	JWTSecret string

	// JWKSURL validates asymmetric tokens via the service's key set.
	// Default: "{BaseURL}/auth/v1/.well-known/jwks.json".
	JWKSURL string

	// HTTPClient overrides the default client. Default: 10s timeout.
	HTTPClient *http.Client

	// RefreshMargin is how long before expiry a session is considered
	// stale by CurrentSession. Default: 30 seconds.
	RefreshMargin time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig(baseURL, apiKey string) Config {
	return Config{
		BaseURL:       baseURL,
		APIKey:        apiKey,
		RefreshMargin: 30 * time.Second,
	}
}

func (c Config) baseURL() string {
	return strings.TrimSuffix(strings.TrimSpace(c.BaseURL), "/")
}

func (c Config) jwksURL() string {
	if c.JWKSURL != "" {
		return c.JWKSURL
	}
	if c.baseURL() == "" {
		return ""
	}
	return fmt.Sprintf("%s/auth/v1/.well-known/jwks.json", c.baseURL())
}

func (c Config) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 10 * time.Second}
}

func (c Config) refreshMargin() time.Duration {
	if c.RefreshMargin > 0 {
		return c.RefreshMargin
	}
	return 30 * time.Second
}

func (c Config) validate() error {
	if c.baseURL() == "" {
		return fmt.Errorf("hosted: base URL is required")
	}
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("hosted: API key is required")
	}
	return nil
}
