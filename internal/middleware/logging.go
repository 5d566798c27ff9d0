package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/codex-app/codex/internal/constants"
	apperrors "github.com/codex-app/codex/internal/errors"
	"github.com/codex-app/codex/pkg/ctxutil"
	"github.com/codex-app/codex/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestContext seeds the request context with a request id, client
// ip and user agent so every downstream log entry carries them.
func RequestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx := c.Request.Context()
		ctx = context.WithValue(ctx, ctxutil.RequestIDKey, requestID)
		ctx = context.WithValue(ctx, ctxutil.ClientIPKey, c.ClientIP())
		ctx = context.WithValue(ctx, ctxutil.UserAgentKey, c.Request.UserAgent())
		ctx = context.WithValue(ctx, ctxutil.StartTimeKey, time.Now())
		c.Request = c.Request.WithContext(ctx)

		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// RequestLogger logs one line per completed request.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		logger.LogRequest(
			c.Request.Method,
			path,
			c.Writer.Status(),
			time.Since(start).Milliseconds(),
			c.ClientIP(),
			c.Request.UserAgent(),
		)
	}
}

// Recovery converts a handler panic into a 500 with the standard
// error envelope instead of tearing down the connection.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if recovered := recover(); recovered != nil {
				logger.LogPanic(recovered)
				c.AbortWithStatusJSON(http.StatusInternalServerError,
					constants.BuildErrorResponse(
						apperrors.ErrInternal.Code,
						apperrors.ErrInternal.Message,
					))
			}
		}()
		c.Next()
	}
}
