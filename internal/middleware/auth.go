package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/codex-app/codex/internal/constants"
	"github.com/codex-app/codex/internal/dto"
	apperrors "github.com/codex-app/codex/internal/errors"
	"github.com/codex-app/codex/internal/model"
	"github.com/codex-app/codex/internal/service"
	"github.com/codex-app/codex/pkg/ctxutil"
	"github.com/gin-gonic/gin"
)

// UserLoader resolves a token subject to the current user row.
// *repository.UserRepository satisfies it.
type UserLoader interface {
	GetByID(ctx context.Context, id uint) (*model.User, error)
}

// RequireAuth validates the bearer token and loads the current user.
// A token for a soft-deleted account is rejected: marking an account
// for deletion invalidates every outstanding session.
func RequireAuth(tokens *service.TokenService, users UserLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c)
		if !ok {
			abortUnauthorized(c, apperrors.ErrUnauthorized)
			return
		}

		claims, err := tokens.Validate(tokenString)
		if err != nil {
			abortUnauthorized(c, apperrors.ErrInvalidToken)
			return
		}

		userID, ok := tokens.UserID(claims)
		if !ok {
			abortUnauthorized(c, apperrors.ErrInvalidToken)
			return
		}

		user, err := users.GetByID(c.Request.Context(), userID)
		if err != nil || user.MarkedForDeletion {
			abortUnauthorized(c, apperrors.ErrInvalidToken)
			return
		}

		c.Set(constants.CtxAuthUser, dto.AuthUser{
			ID:            user.ID,
			Email:         user.Email,
			Username:      user.Username,
			EmailVerified: user.EmailVerified,
		})

		ctx := ctxutil.WithUserID(c.Request.Context(), user.ID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// CurrentUser returns the identity attached by RequireAuth.
func CurrentUser(c *gin.Context) (dto.AuthUser, bool) {
	val, exists := c.Get(constants.CtxAuthUser)
	if !exists {
		return dto.AuthUser{}, false
	}
	user, ok := val.(dto.AuthUser)
	return user, ok
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func abortUnauthorized(c *gin.Context, err *apperrors.DomainError) {
	c.AbortWithStatusJSON(http.StatusUnauthorized,
		constants.BuildErrorResponse(err.Code, err.Message))
}
