package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/codex-app/codex/internal/constants"
	apperrors "github.com/codex-app/codex/internal/errors"
	"github.com/gin-gonic/gin"
)

// respondError translates a service error into the wire envelope.
// Throttled logins get a Retry-After header plus rateLimited/timeLeft
// fields; unverified logins get requiresVerification plus the pending
// code's email and expiry.
func respondError(c *gin.Context, err error, debug bool) {
	var rateLimited *apperrors.RateLimitedError
	if errors.As(err, &rateLimited) {
		retryAfter := retryAfterSeconds(rateLimited.RetryAfter)
		c.Header("Retry-After", strconv.Itoa(retryAfter))
		c.JSON(http.StatusTooManyRequests, constants.BuildErrorResponse(
			apperrors.ErrRateLimited.Code,
			apperrors.ErrRateLimited.Message,
			map[string]any{
				"rateLimited": true,
				"timeLeft":    timeLeftMinutes(rateLimited.RetryAfter),
			},
		))
		return
	}

	var pending *apperrors.VerificationPendingError
	if errors.As(err, &pending) {
		c.JSON(http.StatusUnauthorized, constants.BuildErrorResponse(
			apperrors.ErrVerificationRequired.Code,
			apperrors.ErrVerificationRequired.Message,
			map[string]any{
				"requiresVerification": true,
				"email":                pending.Email,
				"expiresAt":            pending.ExpiresAt,
			},
		))
		return
	}

	status := apperrors.ToHTTPStatus(err)
	domainErr := apperrors.GetDomainError(err)
	if domainErr == nil {
		domainErr = apperrors.ErrInternal
	}

	extras := codeExtras(domainErr)

	if debug && domainErr.Err != nil {
		response := constants.BuildErrorResponseWithDetails(
			domainErr.Code, domainErr.Message, domainErr.Err.Error())
		for k, v := range extras {
			response[constants.ResponseFieldError].(map[string]any)[k] = v
		}
		c.JSON(status, response)
		return
	}

	c.JSON(status, constants.BuildErrorResponse(domainErr.Code, domainErr.Message, extras))
}

func codeExtras(err *apperrors.DomainError) map[string]any {
	switch err.Code {
	case "CODE_EXPIRED":
		return map[string]any{"expired": true}
	case "ALREADY_VERIFIED":
		return map[string]any{"alreadyVerified": true}
	default:
		return nil
	}
}

func respondBindingError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, constants.BuildErrorResponse(
		apperrors.ErrInvalidInput.Code,
		err.Error(),
	))
}

// retryAfterSeconds rounds up so a client honoring the header never
// retries inside the window.
func retryAfterSeconds(d time.Duration) int {
	seconds := int((d + time.Second - 1) / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	return seconds
}

func timeLeftMinutes(d time.Duration) int {
	minutes := int((d + time.Minute - 1) / time.Minute)
	if minutes < 1 {
		minutes = 1
	}
	return minutes
}
