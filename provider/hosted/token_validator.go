package hosted

import (
	stderrors "errors"
	"fmt"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	authstate "github.com/printworks/go-authstate"
)

// TokenValidator verifies tokens issued by the hosted service. With a
// shared secret configured it checks HS256 signatures locally; otherwise
// it pulls the service's JWKS and validates asymmetric signatures.
type TokenValidator struct {
	config  Config
	jwks    *keyfunc.JWKS
	keyFunc jwt.Keyfunc
}

// NewTokenValidator creates a validator for hosted-service tokens.
func NewTokenValidator(cfg Config) (*TokenValidator, error) {
	v := &TokenValidator{config: cfg}

	if cfg.JWTSecret != "" {
		secret := []byte(cfg.JWTSecret)
		v.keyFunc = func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("hosted: unexpected signing method: %v", token.Header["alg"])
			}
			return secret, nil
		}
		return v, nil
	}

	jwksURL := cfg.jwksURL()
	if jwksURL == "" {
		return nil, fmt.Errorf("hosted: JWT secret or JWKS URL is required")
	}

	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  time.Minute * 5,
		RefreshTimeout:    time.Second * 10,
		RefreshUnknownKID: true,
	})
	if err != nil {
		return nil, fmt.Errorf("hosted: failed to load JWKS: %w", err)
	}

	v.jwks = jwks
	v.keyFunc = jwks.Keyfunc

	return v, nil
}

// Validate parses and verifies a token, returning the session it encodes.
func (v *TokenValidator) Validate(tokenString string) (*authstate.Session, error) {
	token, err := jwt.Parse(tokenString, v.keyFunc)
	if err != nil {
		return nil, normalizeValidationError(err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || claims == nil {
		return nil, authstate.ErrUnableToMapClaims
	}

	return authstate.SessionFromClaims(claims)
}

// Close releases the background JWKS refresh goroutine.
func (v *TokenValidator) Close() {
	if v.jwks != nil {
		v.jwks.EndBackground()
	}
}

func normalizeValidationError(err error) error {
	if err == nil {
		return nil
	}

	clone := authstate.ErrTokenMalformed.Clone()
	if stderrors.Is(err, jwt.ErrTokenExpired) {
		clone = authstate.ErrTokenExpired.Clone()
	}

	clone.Source = err
	return clone.WithMetadata(map[string]any{
		"provider": "hosted",
		"cause":    err.Error(),
	})
}
