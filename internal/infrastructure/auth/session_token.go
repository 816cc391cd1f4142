// Package auth verifies Shopify App Bridge session tokens.
package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/bundlewise/backend/internal/infrastructure/config"
)

// Common errors
var (
	ErrInvalidToken     = errors.New("auth: invalid session token")
	ErrExpiredToken     = errors.New("auth: session token has expired")
	ErrTokenNotYetValid = errors.New("auth: session token is not yet valid")
	ErrInvalidClaims    = errors.New("auth: invalid session token claims")
	ErrWrongAudience    = errors.New("auth: session token audience mismatch")
	ErrMissingDest      = errors.New("auth: missing dest claim")
)

// clockSkewLeeway absorbs small clock drift between Shopify's token issuer
// and this process. App Bridge mints short-lived tokens (60s), so the leeway
// has to stay tight.
const clockSkewLeeway = 5 * time.Second

// SessionClaims are the claims carried by a Shopify session token.
// dest identifies the shop the token was minted for; aud is the app's
// client ID (API key).
type SessionClaims struct {
	jwt.RegisteredClaims
	Dest      string `json:"dest"`
	SessionID string `json:"sid,omitempty"`
}

// ShopDomain extracts the myshopify domain from the dest claim
// ("https://demo.myshopify.com" -> "demo.myshopify.com").
func (c *SessionClaims) ShopDomain() string {
	dest := strings.TrimSpace(c.Dest)
	dest = strings.TrimPrefix(dest, "https://")
	dest = strings.TrimPrefix(dest, "http://")
	if i := strings.IndexByte(dest, '/'); i >= 0 {
		dest = dest[:i]
	}
	return strings.ToLower(dest)
}

// SessionTokenVerifier validates session tokens signed with the app secret
type SessionTokenVerifier struct {
	secret []byte
	apiKey string
}

// NewSessionTokenVerifier creates a verifier from the app credentials
func NewSessionTokenVerifier(cfg config.ShopifyConfig) *SessionTokenVerifier {
	return &SessionTokenVerifier{
		secret: []byte(cfg.APISecret),
		apiKey: cfg.APIKey,
	}
}

// Verify parses and validates a session token and returns its claims.
// Signature (HS256, app secret), expiry and not-before (with leeway), the
// aud claim against the app's API key, and the presence of dest are all
// checked.
func (v *SessionTokenVerifier) Verify(tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, ErrInvalidToken
			}
			return v.secret, nil
		},
		jwt.WithLeeway(clockSkewLeeway),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpiredToken
		case errors.Is(err, jwt.ErrTokenNotValidYet):
			return nil, ErrTokenNotYetValid
		default:
			return nil, ErrInvalidToken
		}
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidClaims
	}

	if v.apiKey != "" {
		audience, err := claims.GetAudience()
		if err != nil || !containsAudience(audience, v.apiKey) {
			return nil, ErrWrongAudience
		}
	}

	if claims.ShopDomain() == "" {
		return nil, ErrMissingDest
	}

	return claims, nil
}

func containsAudience(audience jwt.ClaimStrings, apiKey string) bool {
	for _, aud := range audience {
		if aud == apiKey {
			return true
		}
	}
	return false
}
