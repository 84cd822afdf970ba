package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/moviemate/authkeeper/internal/common"
	"github.com/moviemate/authkeeper/internal/logging"
	"github.com/moviemate/authkeeper/internal/server/auth"
	"github.com/moviemate/authkeeper/internal/server/ratelimit"
)

// Context key under which BearerAuth stores the authenticated user id.
const ctxUserID = "userID"

// BearerAuth verifies the Authorization header's access token and stores the
// subject user id on the gin context. Requests without a valid token are
// rejected before the handler runs.
func BearerAuth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(c, http.StatusUnauthorized, CodeUnauthorized, "authentication required")
			return
		}

		claims, err := auth.ParseAccessToken(token, secret)
		if err != nil || claims.Subject == "" {
			writeError(c, http.StatusUnauthorized, CodeUnauthorized, "authentication required")
			return
		}

		c.Set(ctxUserID, claims.Subject)
		c.Next()
	}
}

// RateLimit keys the limiter by client IP and turns an exhausted budget into
// a 429 before the handler runs. Limiter transport failures fail open with a
// warning: a broken Redis must not take down login.
func RateLimit(limiter ratelimit.Limiter, logger logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		err := limiter.Allow(c.Request.Context(), clientIP(c))
		if err == nil {
			c.Next()
			return
		}
		if errors.Is(err, common.ErrRateLimited) {
			writeError(c, http.StatusTooManyRequests, CodeRateLimited, "too many requests")
			return
		}
		logger.Warn(c.Request.Context(), "rate limiter unavailable", "error", err)
		c.Next()
	}
}

// clientIP prefers the first X-Forwarded-For entry, the address of the
// original client, and falls back to the peer address.
func clientIP(c *gin.Context) string {
	if xff := c.GetHeader("X-Forwarded-For"); xff != "" {
		first := strings.SplitN(xff, ",", 2)[0]
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	return c.ClientIP()
}
