package auth

import (
	"context"
	"errors"
	"net/http"
	"time"

	"authsvc/internal/http/middleware"
	"authsvc/internal/http/response"
	authsvc "authsvc/internal/services/auth"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Generic wire messages. Credential and token failures deliberately
// share one message per error class so callers cannot probe which
// check failed.
const (
	msgInvalidCredentials = "Invalid email or password"
	msgInvalidToken       = "Invalid or expired refresh token"
)

type AuthService interface {
	Login(ctx context.Context, email, password, ip, agent string) (*authsvc.AuthResult, error)
	Register(ctx context.Context, email, password, confirmPassword, roleName string) (*authsvc.AuthResult, error)
	Refresh(ctx context.Context, presentedValue, ip, agent string) (*authsvc.AuthResult, error)
	Revoke(ctx context.Context, value string) (bool, error)
	RequestEmailVerification(ctx context.Context, userID uuid.UUID) (string, error)
	VerifyEmail(ctx context.Context, userID uuid.UUID, token string) (bool, error)
}

type Handler struct {
	service AuthService
	timeout time.Duration
}

func NewHandler(service AuthService, timeout time.Duration) *Handler {
	return &Handler{service: service, timeout: timeout}
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	result, err := h.service.Login(ctx, req.Email, req.Password, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		switch {
		case errors.Is(err, authsvc.ErrInvalidCredentials), errors.Is(err, authsvc.ErrAccountInactive):
			response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", msgInvalidCredentials)
		case errors.Is(err, authsvc.ErrStoreUnavailable):
			response.Error(c, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "Service temporarily unavailable")
		default:
			response.Error(c, http.StatusInternalServerError, "INTERNAL", "An error occurred during login")
		}
		return
	}

	response.Success(c, http.StatusOK, toAuthResponse(result))
}

func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	result, err := h.service.Register(ctx, req.Email, req.Password, req.ConfirmPassword, req.Role)
	if err != nil {
		switch {
		case errors.Is(err, authsvc.ErrPasswordMismatch):
			response.Error(c, http.StatusBadRequest, "PASSWORD_MISMATCH", "Passwords do not match")
		case errors.Is(err, authsvc.ErrInvalidRole):
			response.Error(c, http.StatusBadRequest, "INVALID_ROLE", "Invalid role")
		case errors.Is(err, authsvc.ErrEmailAlreadyRegistered):
			response.Error(c, http.StatusConflict, "EMAIL_TAKEN", "Email already registered")
		case errors.Is(err, authsvc.ErrStoreUnavailable):
			response.Error(c, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "Service temporarily unavailable")
		default:
			response.Error(c, http.StatusInternalServerError, "INTERNAL", "An error occurred during registration")
		}
		return
	}

	response.Success(c, http.StatusCreated, toAuthResponse(result))
}

func (h *Handler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	result, err := h.service.Refresh(ctx, req.RefreshToken, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		switch {
		case errors.Is(err, authsvc.ErrInvalidOrExpiredToken):
			response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", msgInvalidToken)
		case errors.Is(err, authsvc.ErrStoreUnavailable):
			response.Error(c, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "Service temporarily unavailable")
		default:
			response.Error(c, http.StatusInternalServerError, "INTERNAL", "An error occurred during token refresh")
		}
		return
	}

	response.Success(c, http.StatusOK, toAuthResponse(result))
}

// Logout revokes the presented refresh token. Revocation is
// idempotent, so an unknown token still logs out cleanly.
func (h *Handler) Logout(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	if _, err := h.service.Revoke(ctx, req.RefreshToken); err != nil {
		if errors.Is(err, authsvc.ErrStoreUnavailable) {
			response.Error(c, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "Service temporarily unavailable")
			return
		}
		response.Error(c, http.StatusInternalServerError, "INTERNAL", "An error occurred during logout")
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "Logged out successfully"})
}

func (h *Handler) VerifyEmail(c *gin.Context) {
	userID, err := uuid.Parse(c.Query("userId"))
	if err != nil {
		response.Error(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid user id")
		return
	}
	token := c.Query("token")
	if token == "" {
		response.Error(c, http.StatusBadRequest, "INVALID_REQUEST", "Token is required")
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	ok, err := h.service.VerifyEmail(ctx, userID, token)
	if err != nil {
		if errors.Is(err, authsvc.ErrStoreUnavailable) {
			response.Error(c, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "Service temporarily unavailable")
			return
		}
		response.Error(c, http.StatusInternalServerError, "INTERNAL", "An error occurred during email verification")
		return
	}
	if !ok {
		response.Error(c, http.StatusBadRequest, "INVALID_TOKEN", "Invalid verification token")
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "Email verified successfully"})
}

// RequestVerification issues a fresh verification token for the
// authenticated user. Delivery (email send) belongs to the
// notification service; the token is returned for it to pick up.
func (h *Handler) RequestVerification(c *gin.Context) {
	userID, err := uuid.Parse(c.GetString(middleware.ContextUserID))
	if err != nil {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	token, err := h.service.RequestEmailVerification(ctx, userID)
	if err != nil {
		if errors.Is(err, authsvc.ErrStoreUnavailable) {
			response.Error(c, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "Service temporarily unavailable")
			return
		}
		response.Error(c, http.StatusInternalServerError, "INTERNAL", "An error occurred issuing the verification token")
		return
	}

	response.Success(c, http.StatusOK, gin.H{"token": token})
}

func (h *Handler) Me(c *gin.Context) {
	response.Success(c, http.StatusOK, gin.H{
		"id":    c.GetString(middleware.ContextUserID),
		"email": c.GetString(middleware.ContextEmail),
		"role":  c.GetString(middleware.ContextRole),
	})
}

func (h *Handler) requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), h.timeout)
}

func toAuthResponse(result *authsvc.AuthResult) authResponse {
	return authResponse{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		ExpiresAt:    result.ExpiresAt,
		User:         result.User,
	}
}
