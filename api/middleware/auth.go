package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/rcvscrap/models"
)

// callerKey holds the API key that authenticated the request.
const callerKey = "api_key"

// Auth admits requests presenting one of apiKeys, either as X-API-Key or as
// an Authorization bearer token. With no usable key configured every request
// passes, which is how a single-user local deployment runs.
func Auth(apiKeys []string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(apiKeys))
	for _, k := range apiKeys {
		if k = strings.TrimSpace(k); k != "" {
			allowed[k] = true
		}
	}

	return func(c *gin.Context) {
		if len(allowed) == 0 {
			c.Next()
			return
		}
		key, ok := presentedKey(c.Request)
		switch {
		case !ok:
			abort(c, http.StatusUnauthorized, models.ErrCodeUnauthorized,
				"missing API key: send X-API-Key or Authorization: Bearer <key>")
		case !allowed[key]:
			abort(c, http.StatusUnauthorized, models.ErrCodeUnauthorized, "invalid API key")
		default:
			c.Set(callerKey, key)
			c.Next()
		}
	}
}

// Caller names who is making the request: the API key Auth accepted, or the
// client IP when auth is off. Rate limits are kept per caller.
func Caller(c *gin.Context) string {
	if key := c.GetString(callerKey); key != "" {
		return key
	}
	return c.ClientIP()
}

func presentedKey(r *http.Request) (string, bool) {
	if key := strings.TrimSpace(r.Header.Get("X-API-Key")); key != "" {
		return key, true
	}
	scheme, token, found := strings.Cut(r.Header.Get("Authorization"), " ")
	if token = strings.TrimSpace(token); found && strings.EqualFold(scheme, "Bearer") && token != "" {
		return token, true
	}
	return "", false
}

func abort(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, models.NewErrorResponse(code, message))
}
