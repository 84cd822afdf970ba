package httpapi

import (
	"github.com/gin-gonic/gin"

	"github.com/moviemate/authkeeper/internal/logging"
	"github.com/moviemate/authkeeper/internal/server/ratelimit"
)

// NewRouter wires the auth routes. The rate limiter guards only the
// credential-bearing endpoints; health and profile reads stay outside it.
func NewRouter(h *AuthHandler, accessSecret []byte, limiter ratelimit.Limiter, logger logging.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", h.Health)

	authGroup := r.Group("/auth")
	{
		limited := authGroup.Group("", RateLimit(limiter, logger))
		limited.POST("/register", h.Register)
		limited.POST("/login", h.Login)
		limited.POST("/refresh", h.Refresh)

		authGroup.POST("/logout", h.Logout)
		authGroup.GET("/me", BearerAuth(accessSecret), h.Me)
	}

	return r
}
