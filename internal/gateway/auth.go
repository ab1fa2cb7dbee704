package gateway

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	// ContextKeyUserID is the gin context key set by either auth path.
	ContextKeyUserID   = "user_id"
	ContextKeyAuthMethod = "auth_method"
)

var (
	ErrMissingToken = errors.New("gateway: no bearer token or api key provided")
	ErrInvalidToken = errors.New("gateway: token signature or claims invalid")
)

// Claims is the subset of a caller's JWT this gateway trusts: issuer-agnostic,
// signature verified against a single shared secret.
type Claims struct {
	jwt.RegisteredClaims
	EmailConfirmed bool `json:"email_confirmed"`
}

// AuthMiddleware accepts either a user Bearer JWT or an allow-listed API key
// (X-API-Key service-key fallback), and sets ContextKeyUserID for downstream
// handlers.
type AuthMiddleware struct {
	jwtSecret    []byte
	requireEmail bool
	apiKeys      []string
}

// NewAuthMiddleware constructs the dual JWT-or-API-key gate.
func NewAuthMiddleware(jwtSecret string, requireEmail bool, apiKeys []string) *AuthMiddleware {
	return &AuthMiddleware{jwtSecret: []byte(jwtSecret), requireEmail: requireEmail, apiKeys: apiKeys}
}

// RequireAuth validates a request's credentials before letting it reach a handler.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey := extractAPIKey(c); apiKey != "" {
			if !m.apiKeyAllowed(apiKey) {
				respondError(c, http.StatusUnauthorized, "invalid api key")
				c.Abort()
				return
			}
			c.Set(ContextKeyUserID, "api-key:"+apiKeyFingerprint(apiKey))
			c.Set(ContextKeyAuthMethod, "api_key")
			c.Next()
			return
		}

		token := extractBearer(c)
		if token == "" {
			respondError(c, http.StatusUnauthorized, ErrMissingToken.Error())
			c.Abort()
			return
		}

		claims, err := m.validateJWT(token)
		if err != nil {
			respondError(c, http.StatusUnauthorized, err.Error())
			c.Abort()
			return
		}
		if m.requireEmail && !claims.EmailConfirmed {
			respondError(c, http.StatusForbidden, "email not confirmed")
			c.Abort()
			return
		}

		c.Set(ContextKeyUserID, claims.Subject)
		c.Set(ContextKeyAuthMethod, "jwt")
		c.Next()
	}
}

func (m *AuthMiddleware) validateJWT(token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.jwtSecret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// apiKeyAllowed does a constant-time comparison against every allow-listed key.
func (m *AuthMiddleware) apiKeyAllowed(candidate string) bool {
	for _, allowed := range m.apiKeys {
		if subtle.ConstantTimeCompare([]byte(candidate), []byte(allowed)) == 1 {
			return true
		}
	}
	return false
}

func extractBearer(c *gin.Context) string {
	auth := c.GetHeader("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

func extractAPIKey(c *gin.Context) string {
	return c.GetHeader("X-API-Key")
}

func apiKeyFingerprint(key string) string {
	if len(key) <= 8 {
		return key
	}
	return key[:8]
}

// UserID extracts the authenticated caller's user id from a gin context.
func UserID(c *gin.Context) (string, bool) {
	v, ok := c.Get(ContextKeyUserID)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
