package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	apperrors "github.com/codex-app/codex/internal/errors"
	"github.com/gin-gonic/gin"
)

func errorEnvelope(t *testing.T, body []byte) map[string]any {
	t.Helper()
	var parsed map[string]any
	if err := json.Unmarshal(body, &parsed); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	errObj, ok := parsed["error"].(map[string]any)
	if !ok {
		t.Fatalf("response has no error object: %s", body)
	}
	return errObj
}

func TestRespondErrorRateLimited(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)

	respondError(c, &apperrors.RateLimitedError{RetryAfter: 5 * time.Minute}, false)

	if recorder.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", recorder.Code)
	}
	if got := recorder.Header().Get("Retry-After"); got != "300" {
		t.Errorf("Retry-After = %q, want 300", got)
	}

	errObj := errorEnvelope(t, recorder.Body.Bytes())
	if errObj["code"] != "RATE_LIMITED" {
		t.Errorf("code = %v, want RATE_LIMITED", errObj["code"])
	}
	if errObj["rateLimited"] != true {
		t.Error("rateLimited flag missing")
	}
	if timeLeft, _ := errObj["timeLeft"].(float64); timeLeft != 5 {
		t.Errorf("timeLeft = %v, want 5 minutes", errObj["timeLeft"])
	}
}

func TestRespondErrorVerificationPending(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)

	respondError(c, &apperrors.VerificationPendingError{
		Email:     "user@example.com",
		ExpiresAt: time.Now().Add(30 * time.Minute),
	}, false)

	if recorder.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", recorder.Code)
	}

	errObj := errorEnvelope(t, recorder.Body.Bytes())
	if errObj["code"] != "VERIFICATION_REQUIRED" {
		t.Errorf("code = %v, want VERIFICATION_REQUIRED", errObj["code"])
	}
	if errObj["requiresVerification"] != true {
		t.Error("requiresVerification flag missing")
	}
	if errObj["email"] != "user@example.com" {
		t.Errorf("email = %v, want user@example.com", errObj["email"])
	}
	if _, ok := errObj["expiresAt"]; !ok {
		t.Error("expiresAt missing")
	}
}

func TestRespondErrorDomainMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"email exists", apperrors.ErrEmailExists, http.StatusConflict, "EMAIL_EXISTS"},
		{"invalid credentials", apperrors.ErrInvalidCredentials, http.StatusUnauthorized, "INVALID_CREDENTIALS"},
		{"code expired", apperrors.ErrCodeExpired, http.StatusBadRequest, "CODE_EXPIRED"},
		{"already verified", apperrors.ErrAlreadyVerified, http.StatusBadRequest, "ALREADY_VERIFIED"},
		{"prompt not found", apperrors.ErrPromptNotFound, http.StatusNotFound, "PROMPT_NOT_FOUND"},
		{"internal", apperrors.ErrInternal, http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	gin.SetMode(gin.TestMode)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(recorder)

			respondError(c, tt.err, false)

			if recorder.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", recorder.Code, tt.wantStatus)
			}
			errObj := errorEnvelope(t, recorder.Body.Bytes())
			if errObj["code"] != tt.wantCode {
				t.Errorf("code = %v, want %s", errObj["code"], tt.wantCode)
			}
		})
	}
}

func TestRespondErrorExpiredAndVerifiedFlags(t *testing.T) {
	gin.SetMode(gin.TestMode)

	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)
	respondError(c, apperrors.ErrCodeExpired, false)
	if errObj := errorEnvelope(t, recorder.Body.Bytes()); errObj["expired"] != true {
		t.Error("expired flag missing for CODE_EXPIRED")
	}

	recorder = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(recorder)
	respondError(c, apperrors.ErrAlreadyVerified, false)
	if errObj := errorEnvelope(t, recorder.Body.Bytes()); errObj["alreadyVerified"] != true {
		t.Error("alreadyVerified flag missing for ALREADY_VERIFIED")
	}
}

func TestRetryAfterSecondsRoundsUp(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want int
	}{
		{900 * time.Millisecond, 1},
		{time.Second, 1},
		{1100 * time.Millisecond, 2},
		{5 * time.Minute, 300},
		{0, 1},
	}
	for _, tt := range tests {
		if got := retryAfterSeconds(tt.d); got != tt.want {
			t.Errorf("retryAfterSeconds(%v) = %d, want %d", tt.d, got, tt.want)
		}
	}
}
