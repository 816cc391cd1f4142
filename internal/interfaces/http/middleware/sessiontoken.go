package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/bundlewise/backend/internal/infrastructure/auth"
)

// Session token context keys
const (
	SessionClaimsKey     = "session_claims"
	SessionShopDomainKey = "session_shop_domain"
	AuthHeaderKey        = "Authorization"
	BearerPrefix         = "Bearer "
)

// SessionAuth returns middleware that authenticates admin API requests with
// a Shopify App Bridge session token. On success the shop's myshopify
// domain is available via GetSessionShopDomain; handlers resolve the shop
// record from it.
func SessionAuth(verifier *auth.SessionTokenVerifier, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		header := c.GetHeader(AuthHeaderKey)
		if !strings.HasPrefix(header, BearerPrefix) {
			unauthorized(c, "ERR_UNAUTHORIZED", "Missing session token")
			return
		}

		claims, err := verifier.Verify(strings.TrimPrefix(header, BearerPrefix))
		if err != nil {
			logger.Debug("session token rejected",
				zap.String("path", c.Request.URL.Path),
				zap.Error(err))
			code := "ERR_TOKEN_INVALID"
			if errors.Is(err, auth.ErrExpiredToken) {
				code = "ERR_TOKEN_EXPIRED"
			}
			unauthorized(c, code, "Invalid session token")
			return
		}

		c.Set(SessionClaimsKey, claims)
		c.Set(SessionShopDomainKey, claims.ShopDomain())
		c.Next()
	}
}

func unauthorized(c *gin.Context, code, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

// GetSessionShopDomain returns the authenticated shop domain, or "" when
// the request did not pass SessionAuth
func GetSessionShopDomain(c *gin.Context) string {
	return c.GetString(SessionShopDomainKey)
}

// GetSessionClaims returns the verified session claims, if present
func GetSessionClaims(c *gin.Context) (*auth.SessionClaims, bool) {
	value, ok := c.Get(SessionClaimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := value.(*auth.SessionClaims)
	return claims, ok
}
