// Package httpapi exposes the authentication service over HTTP using gin.
// Every error leaves through one envelope: {"error": CODE, "message": ...},
// so clients switch on stable codes rather than message text.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/moviemate/authkeeper/internal/common"
	"github.com/moviemate/authkeeper/internal/logging"
	"github.com/moviemate/authkeeper/internal/server/models"
	"github.com/moviemate/authkeeper/internal/server/services"
)

// Stable machine-readable error codes of the API.
const (
	CodeConflict           = "AUTH_CONFLICT"
	CodeInvalidCredentials = "AUTH_INVALID_CREDENTIALS"
	CodeRefreshRevoked     = "AUTH_REFRESH_REVOKED"
	CodeUnauthorized       = "GEN_UNAUTHORIZED"
	CodeRateLimited        = "GEN_RATE_LIMITED"
	CodeValidationFailed   = "GEN_VALIDATION_FAILED"
	CodeInternal           = "GEN_INTERNAL"
)

// AuthService is the slice of the service layer the handlers need.
// Satisfied by *services.AuthService.
type AuthService interface {
	Register(ctx context.Context, email, password, displayName, locale string) (*models.User, error)
	Login(ctx context.Context, email, password string, meta services.Meta) (*services.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string, meta services.Meta) (*services.TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	GetUser(ctx context.Context, userID string) (*models.User, error)
}

type registerRequest struct {
	Email           string `json:"email" binding:"required,email"`
	Password        string `json:"password" binding:"required,min=8"`
	DisplayName     string `json:"display_name"`
	PreferredLocale string `json:"preferred_locale"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// The refresh token is optional on logout: a client that already lost it
// still gets a clean 204.
type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type userResponse struct {
	ID              string    `json:"id"`
	Email           string    `json:"email"`
	DisplayName     string    `json:"display_name,omitempty"`
	PreferredLocale string    `json:"preferred_locale,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

type tokenPairResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Pinger is the readiness probe behind the health endpoint. Satisfied by
// *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// AuthHandler translates HTTP requests into service calls.
type AuthHandler struct {
	service AuthService
	pinger  Pinger
	logger  logging.Logger
}

// NewAuthHandler constructs an AuthHandler. pinger may be nil, in which case
// health reports liveness only.
func NewAuthHandler(service AuthService, pinger Pinger, logger logging.Logger) *AuthHandler {
	return &AuthHandler{service: service, pinger: pinger, logger: logger.With("component", "httpapi")}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusUnprocessableEntity, CodeValidationFailed, "invalid request body")
		return
	}

	user, err := h.service.Register(c.Request.Context(), req.Email, req.Password, req.DisplayName, req.PreferredLocale)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toUserResponse(user))
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusUnprocessableEntity, CodeValidationFailed, "invalid request body")
		return
	}

	pair, err := h.service.Login(c.Request.Context(), req.Email, req.Password, requestMeta(c))
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, tokenPairResponse{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken})
}

func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusUnprocessableEntity, CodeValidationFailed, "invalid request body")
		return
	}

	pair, err := h.service.Refresh(c.Request.Context(), req.RefreshToken, requestMeta(c))
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, tokenPairResponse{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	var req logoutRequest
	_ = c.ShouldBindJSON(&req)

	if req.RefreshToken != "" {
		if err := h.service.Logout(c.Request.Context(), req.RefreshToken); err != nil {
			h.writeServiceError(c, err)
			return
		}
	}

	c.Status(http.StatusNoContent)
}

// Me returns the profile of the authenticated user. Requires BearerAuth.
func (h *AuthHandler) Me(c *gin.Context) {
	userID := c.GetString(ctxUserID)
	if userID == "" {
		writeError(c, http.StatusUnauthorized, CodeUnauthorized, "authentication required")
		return
	}

	user, err := h.service.GetUser(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			writeError(c, http.StatusUnauthorized, CodeUnauthorized, "authentication required")
			return
		}
		h.writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, toUserResponse(user))
}

func (h *AuthHandler) Health(c *gin.Context) {
	if h.pinger != nil {
		if err := h.pinger.PingContext(c.Request.Context()); err != nil {
			h.logger.Error(c.Request.Context(), "readiness probe failed", "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *AuthHandler) writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, common.ErrorConflict):
		writeError(c, http.StatusConflict, CodeConflict, "email already registered")
	case errors.Is(err, common.ErrInvalidCredentials):
		writeError(c, http.StatusUnauthorized, CodeInvalidCredentials, "invalid email or password")
	// Malformed, unknown, and revoked refresh tokens are indistinguishable
	// to the caller.
	case errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrRefreshRevoked):
		writeError(c, http.StatusUnauthorized, CodeRefreshRevoked, "refresh token rejected")
	case errors.Is(err, common.ErrRateLimited):
		writeError(c, http.StatusTooManyRequests, CodeRateLimited, "too many requests")
	default:
		h.logger.Error(c.Request.Context(), "request failed", "error", err, "path", c.FullPath())
		writeError(c, http.StatusInternalServerError, CodeInternal, "internal error")
	}
}

func writeError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": code, "message": message})
}

func toUserResponse(u *models.User) userResponse {
	return userResponse{
		ID:              u.ID,
		Email:           u.Email,
		DisplayName:     u.DisplayName,
		PreferredLocale: u.PreferredLocale,
		CreatedAt:       u.CreatedAt,
	}
}

func requestMeta(c *gin.Context) services.Meta {
	return services.Meta{
		UserAgent: c.Request.UserAgent(),
		IP:        clientIP(c),
	}
}
