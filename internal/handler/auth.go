package handler

import (
	"crypto/subtle"
	"net/http"

	"github.com/codex-app/codex/internal/constants"
	"github.com/codex-app/codex/internal/dto"
	apperrors "github.com/codex-app/codex/internal/errors"
	"github.com/codex-app/codex/internal/middleware"
	"github.com/codex-app/codex/internal/service"
	"github.com/gin-gonic/gin"
)

// AuthHandler exposes the account lifecycle endpoints.
type AuthHandler struct {
	auth    *service.AuthService
	purge   *service.PurgeService
	cronKey string
	debug   bool
}

func NewAuthHandler(auth *service.AuthService, purge *service.PurgeService, cronKey string, debug bool) *AuthHandler {
	return &AuthHandler{
		auth:    auth,
		purge:   purge,
		cronKey: cronKey,
		debug:   debug,
	}
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, err)
		return
	}

	resp, err := h.auth.Register(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err, h.debug)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, err)
		return
	}

	resp, err := h.auth.Login(c.Request.Context(), req.Email, req.Password, c.ClientIP())
	if err != nil {
		respondError(c, err, h.debug)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// VerifyEmail handles POST /auth/verify-email.
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	var req dto.VerifyEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, err)
		return
	}

	resp, err := h.auth.VerifyEmail(c.Request.Context(), req.Email, req.Code)
	if err != nil {
		respondError(c, err, h.debug)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ResendVerification handles POST /auth/resend-verification.
func (h *AuthHandler) ResendVerification(c *gin.Context) {
	var req dto.ResendVerificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, err)
		return
	}

	resp, err := h.auth.ResendVerification(c.Request.Context(), req.Email)
	if err != nil {
		respondError(c, err, h.debug)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Logout handles POST /auth/logout. Sessions are stateless JWTs, so
// logout is an acknowledgement; the client discards its token.
func (h *AuthHandler) Logout(c *gin.Context) {
	c.JSON(http.StatusOK, constants.BuildSuccessResponse("Logged out"))
}

// Me handles GET /auth/me.
func (h *AuthHandler) Me(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		respondError(c, apperrors.ErrUnauthorized, h.debug)
		return
	}

	resp, err := h.auth.Me(c.Request.Context(), user.ID)
	if err != nil {
		respondError(c, err, h.debug)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// UpdateProfile handles PUT /auth/me.
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		respondError(c, apperrors.ErrUnauthorized, h.debug)
		return
	}

	var req dto.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, err)
		return
	}

	if err := h.auth.UpdateProfile(c.Request.Context(), user.ID, &req); err != nil {
		respondError(c, err, h.debug)
		return
	}

	c.JSON(http.StatusOK, constants.BuildSuccessResponse("Profile updated"))
}

// DeleteAccount handles DELETE /auth/delete.
func (h *AuthHandler) DeleteAccount(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		respondError(c, apperrors.ErrUnauthorized, h.debug)
		return
	}

	resp, err := h.auth.DeleteAccount(c.Request.Context(), user.ID)
	if err != nil {
		respondError(c, err, h.debug)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// CancelDeletion handles POST /auth/cancel-deletion. Unauthenticated:
// a soft-deleted account has no valid session.
func (h *AuthHandler) CancelDeletion(c *gin.Context) {
	var req dto.CancelDeletionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, err)
		return
	}

	resp, err := h.auth.CancelDeletion(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err, h.debug)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ProcessDeletions handles GET /auth/process-deletions, the external
// trigger for the purge pass. When CRON_KEY is configured the caller
// must present it in X-Cron-Key.
func (h *AuthHandler) ProcessDeletions(c *gin.Context) {
	if h.cronKey != "" {
		supplied := c.GetHeader("X-Cron-Key")
		if subtle.ConstantTimeCompare([]byte(supplied), []byte(h.cronKey)) != 1 {
			respondError(c, apperrors.ErrUnauthorized, h.debug)
			return
		}
	}

	deleted, err := h.purge.Run(c.Request.Context())
	if err != nil {
		respondError(c, apperrors.WrapError(apperrors.ErrInternal, err), h.debug)
		return
	}

	c.JSON(http.StatusOK, dto.ProcessDeletionsResponse{DeletedCount: deleted})
}
