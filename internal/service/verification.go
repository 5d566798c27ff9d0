package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/codex-app/codex/pkg/ctxutil"
	"github.com/codex-app/codex/pkg/logger"
	"github.com/codex-app/codex/pkg/mailer"
)

// VerificationService issues the time-boxed numeric email codes and
// dispatches them through the mailer. Dispatch failures never abort
// the calling operation; the user can ask for a resend.
type VerificationService struct {
	mailer  mailer.Mailer
	appName string
	codeTTL time.Duration
	timeout time.Duration
}

func NewVerificationService(m mailer.Mailer, appName string, codeTTL time.Duration) *VerificationService {
	if codeTTL <= 0 {
		codeTTL = 30 * time.Minute
	}
	return &VerificationService{
		mailer:  m,
		appName: appName,
		codeTTL: codeTTL,
		timeout: 10 * time.Second,
	}
}

// Issue generates a 6-digit code uniformly distributed over
// 100000-999999 with the configured expiry.
func (s *VerificationService) Issue() (string, time.Time, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to generate verification code: %w", err)
	}

	code := fmt.Sprintf("%06d", n.Int64()+100000)
	expiresAt := time.Now().Add(s.codeTTL)

	return code, expiresAt, nil
}

// IsExpired reports whether the stored expiry instant has passed.
// A nil expiry counts as expired so a missing code always reissues.
func (s *VerificationService) IsExpired(expiresAt *time.Time) bool {
	if expiresAt == nil {
		return true
	}
	return time.Now().After(*expiresAt)
}

// Dispatch renders and sends the verification email on a bounded
// timeout. Errors are logged and swallowed.
func (s *VerificationService) Dispatch(ctx context.Context, email, username, code string, expiresAt time.Time) {
	ctx = ctxutil.NewContext(ctx, "service", "Dispatch")

	html, err := mailer.RenderVerificationEmail(mailer.VerificationEmailData{
		AppName:    s.appName,
		Username:   username,
		Code:       code,
		ExpiresAt:  expiresAt,
		TTLMinutes: int(s.codeTTL.Minutes()),
	})
	if err != nil {
		logger.ErrorWithContext(ctx, "Failed to render verification email").
			Err(err).
			Log()
		return
	}

	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	subject := fmt.Sprintf("Your %s verification code", s.appName)
	if err := s.mailer.Send(sendCtx, email, subject, html); err != nil {
		logger.WarnWithContext(ctx, "Failed to dispatch verification email").
			Err(err).
			Log()
		return
	}

	logger.InfoWithContext(ctx, "Verification email dispatched").
		Time("expires_at", expiresAt).
		Log()
}
