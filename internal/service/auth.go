package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/codex-app/codex/internal/dto"
	apperrors "github.com/codex-app/codex/internal/errors"
	"github.com/codex-app/codex/internal/model"
	"github.com/codex-app/codex/pkg/ctxutil"
	"github.com/codex-app/codex/pkg/logger"
	"github.com/codex-app/codex/pkg/validator"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// UserStore is the credential-store access the lifecycle machine
// needs. *repository.UserRepository satisfies it.
type UserStore interface {
	GetByID(ctx context.Context, id uint) (*model.User, error)
	GetActiveByEmail(ctx context.Context, email string) (*model.User, error)
	GetActiveByUsername(ctx context.Context, username string) (*model.User, error)
	GetSoftDeletedByPreDeletionEmail(ctx context.Context, email string) (*model.User, error)
	Create(ctx context.Context, user *model.User) error
	UpdateFields(ctx context.Context, id uint, fields map[string]interface{}) error
	SetVerification(ctx context.Context, id uint, code string, expiresAt time.Time) error
	MarkVerified(ctx context.Context, id uint) error
	SoftDelete(ctx context.Context, user *model.User, deletedAt time.Time) error
	Restore(ctx context.Context, user *model.User, email, username string) error
}

// AuthService orchestrates the account lifecycle:
// Unregistered -> PendingVerification -> Active -> SoftDeleted ->
// {Restored -> Active | Purged}.
type AuthService struct {
	users         UserStore
	limiter       *RateLimitService
	tokens        *TokenService
	verification  *VerificationService
	retentionDays int
}

func NewAuthService(users UserStore, limiter *RateLimitService, tokens *TokenService, verification *VerificationService, retentionDays int) *AuthService {
	if retentionDays <= 0 {
		retentionDays = 7
	}
	return &AuthService{
		users:         users,
		limiter:       limiter,
		tokens:        tokens,
		verification:  verification,
		retentionDays: retentionDays,
	}
}

func userSummary(user *model.User) dto.UserResponse {
	return dto.UserResponse{
		ID:            user.ID,
		Email:         user.Email,
		Username:      user.Username,
		EmailVerified: user.EmailVerified,
	}
}

func hashPassword(password string) (string, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashedPassword), nil
}

func checkPassword(hashedPassword, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password)) == nil
}

func (s *AuthService) issueAuthResponse(user *model.User) (*dto.AuthResponse, error) {
	summary := userSummary(user)
	token, err := s.tokens.Issue(&summary)
	if err != nil {
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}
	return &dto.AuthResponse{Token: token, User: summary}, nil
}

// Register creates a pending-verification account, dispatches the
// verification code and issues a session token so the client can move
// straight to the verification screen.
func (s *AuthService) Register(ctx context.Context, req *dto.RegisterRequest) (*dto.AuthResponse, error) {
	ctx = ctxutil.NewContext(ctx, "service", "Register")

	if violations := validator.ValidateRegistration(req.Email, req.Username, req.Password); len(violations) > 0 {
		logger.InfoWithContext(ctx, "Registration rejected by validation").
			Int("violation_count", len(violations)).
			Log()
		return nil, apperrors.NewValidationError(strings.Join(violations, "; "))
	}

	if _, err := s.users.GetActiveByEmail(ctx, req.Email); err == nil {
		return nil, apperrors.ErrEmailExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	if _, err := s.users.GetActiveByUsername(ctx, req.Username); err == nil {
		return nil, apperrors.ErrUsernameExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	hashedPassword, err := hashPassword(req.Password)
	if err != nil {
		logger.ErrorWithContext(ctx, "Failed to hash password").
			Err(err).
			Log()
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	code, expiresAt, err := s.verification.Issue()
	if err != nil {
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	user := &model.User{
		Email:                     strings.TrimSpace(req.Email),
		Username:                  strings.TrimSpace(req.Username),
		Password:                  hashedPassword,
		EmailVerified:             false,
		VerificationCode:          &code,
		VerificationCodeExpiresAt: &expiresAt,
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	// Dispatch failure is non-fatal: the user can request a resend.
	go s.verification.Dispatch(context.WithoutCancel(ctx), user.Email, user.Username, code, expiresAt)

	logger.InfoWithContext(ctx, "User registered, pending verification").
		Int("user_id", int(user.ID)).
		Log()

	return s.issueAuthResponse(user)
}

// Login authenticates a user. Ordering is fixed: rate-limit check,
// then credential lookup, then any state mutation.
func (s *AuthService) Login(ctx context.Context, email, password, clientIP string) (*dto.AuthResponse, error) {
	ctx = ctxutil.NewContext(ctx, "service", "Login")

	if result := s.limiter.Check(ctx, clientIP, email); result.Limited {
		logger.WarnWithContext(ctx, "Login rate limited").
			String("client_ip", clientIP).
			Duration(result.RetryAfter).
			Log()
		return nil, &apperrors.RateLimitedError{RetryAfter: result.RetryAfter}
	}

	user, err := s.users.GetActiveByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.limiter.RecordFailure(ctx, clientIP, email)
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	if !checkPassword(user.Password, password) {
		s.limiter.RecordFailure(ctx, clientIP, email)
		logger.InfoWithContext(ctx, "Login failed: incorrect password").
			Int("user_id", int(user.ID)).
			Log()
		return nil, apperrors.ErrInvalidCredentials
	}

	if !user.EmailVerified {
		return nil, s.requireVerification(ctx, user)
	}

	s.limiter.Reset(ctx, clientIP, email)

	logger.InfoWithContext(ctx, "User logged in").
		Int("user_id", int(user.ID)).
		Log()

	return s.issueAuthResponse(user)
}

// requireVerification applies the re-issue policy: an unexpired
// pending code is reported as-is, an expired or missing one is
// replaced and dispatched.
func (s *AuthService) requireVerification(ctx context.Context, user *model.User) error {
	if user.VerificationCode != nil && !s.verification.IsExpired(user.VerificationCodeExpiresAt) {
		return &apperrors.VerificationPendingError{
			Email:     user.Email,
			ExpiresAt: *user.VerificationCodeExpiresAt,
		}
	}

	code, expiresAt, err := s.verification.Issue()
	if err != nil {
		return apperrors.WrapError(apperrors.ErrInternal, err)
	}
	if err := s.users.SetVerification(ctx, user.ID, code, expiresAt); err != nil {
		return apperrors.WrapError(apperrors.ErrInternal, err)
	}

	go s.verification.Dispatch(context.WithoutCancel(ctx), user.Email, user.Username, code, expiresAt)

	return &apperrors.VerificationPendingError{Email: user.Email, ExpiresAt: expiresAt}
}

// VerifyEmail checks the submitted code against the stored one. An
// expired code is a distinct failure from a mismatch: the client
// should request a new code rather than re-prompt.
func (s *AuthService) VerifyEmail(ctx context.Context, email, code string) (*dto.AuthResponse, error) {
	ctx = ctxutil.NewContext(ctx, "service", "VerifyEmail")

	user, err := s.users.GetActiveByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrCodeMismatch
		}
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	if user.EmailVerified {
		return nil, apperrors.ErrAlreadyVerified
	}

	if user.VerificationCode == nil || *user.VerificationCode != code {
		logger.InfoWithContext(ctx, "Verification code mismatch").
			Int("user_id", int(user.ID)).
			Log()
		return nil, apperrors.ErrCodeMismatch
	}

	if s.verification.IsExpired(user.VerificationCodeExpiresAt) {
		return nil, apperrors.ErrCodeExpired
	}

	if err := s.users.MarkVerified(ctx, user.ID); err != nil {
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	user.EmailVerified = true
	user.VerificationCode = nil
	user.VerificationCodeExpiresAt = nil

	logger.InfoWithContext(ctx, "Email verified").
		Int("user_id", int(user.ID)).
		Log()

	return s.issueAuthResponse(user)
}

// ResendVerification always answers success-shaped so that the
// endpoint cannot be used to probe which emails are registered.
func (s *AuthService) ResendVerification(ctx context.Context, email string) (*dto.ResendVerificationResponse, error) {
	ctx = ctxutil.NewContext(ctx, "service", "ResendVerification")

	user, err := s.users.GetActiveByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &dto.ResendVerificationResponse{
				Message: "If the email is registered, a verification code has been sent",
			}, nil
		}
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	if user.EmailVerified {
		return &dto.ResendVerificationResponse{
			Message:         "Email is already verified",
			AlreadyVerified: true,
		}, nil
	}

	code, expiresAt, err := s.verification.Issue()
	if err != nil {
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}
	if err := s.users.SetVerification(ctx, user.ID, code, expiresAt); err != nil {
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	go s.verification.Dispatch(context.WithoutCancel(ctx), user.Email, user.Username, code, expiresAt)

	return &dto.ResendVerificationResponse{
		Message: "If the email is registered, a verification code has been sent",
	}, nil
}

// DeleteAccount soft-deletes the authenticated user: deletion flags
// set, identity anonymized, owned prompts and responses left in place
// for the purge job once the retention window elapses.
func (s *AuthService) DeleteAccount(ctx context.Context, userID uint) (*dto.DeleteAccountResponse, error) {
	ctx = ctxutil.NewContext(ctx, "service", "DeleteAccount")

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}
	if user.MarkedForDeletion {
		return nil, apperrors.ErrUserNotFound
	}

	deletedAt := time.Now()
	if err := s.users.SoftDelete(ctx, user, deletedAt); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	scheduleDeletedAt := deletedAt.AddDate(0, 0, s.retentionDays)

	logger.InfoWithContext(ctx, "Account marked for deletion").
		Int("user_id", int(userID)).
		Time("purge_after", scheduleDeletedAt).
		Log()

	return &dto.DeleteAccountResponse{
		Message:             "Account scheduled for deletion",
		RetentionPeriodDays: s.retentionDays,
		ScheduleDeletedAt:   scheduleDeletedAt,
	}, nil
}

// CancelDeletion restores a soft-deleted account. Restoration is
// scoped to the row whose pre-deletion email matches the supplied one
// and whose password checks out; there is no cross-account match.
func (s *AuthService) CancelDeletion(ctx context.Context, email, password string) (*dto.AuthResponse, error) {
	ctx = ctxutil.NewContext(ctx, "service", "CancelDeletion")

	user, err := s.users.GetSoftDeletedByPreDeletionEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNoDeletionPending
		}
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	if !checkPassword(user.Password, password) {
		return nil, apperrors.ErrNoDeletionPending
	}

	// The original email may have been re-registered during the
	// retention window; restoring over it would violate uniqueness.
	if _, err := s.users.GetActiveByEmail(ctx, email); err == nil {
		return nil, apperrors.ErrEmailExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	username := usernameFromEmail(email)
	if user.PreDeletionUsername != nil {
		username = *user.PreDeletionUsername
	}

	if err := s.users.Restore(ctx, user, email, username); err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return nil, apperrors.ErrNoDeletionPending
		case errors.Is(err, gorm.ErrDuplicatedKey):
			return nil, apperrors.ErrEmailExists
		}
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	user.Email = email
	user.Username = username
	user.MarkedForDeletion = false
	user.DeletedAt = nil

	logger.InfoWithContext(ctx, "Account deletion cancelled").
		Int("user_id", int(user.ID)).
		Log()

	return s.issueAuthResponse(user)
}

// UpdateProfile applies a partial update; changed email/username are
// re-checked for collisions with other active accounts.
func (s *AuthService) UpdateProfile(ctx context.Context, userID uint, req *dto.UpdateProfileRequest) error {
	ctx = ctxutil.NewContext(ctx, "service", "UpdateProfile")

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrUserNotFound
		}
		return apperrors.WrapError(apperrors.ErrInternal, err)
	}

	fields := make(map[string]interface{})

	if req.Email != nil && *req.Email != user.Email {
		if violations := validator.ValidateEmail(*req.Email); len(violations) > 0 {
			return apperrors.NewValidationError(strings.Join(violations, "; "))
		}
		if _, err := s.users.GetActiveByEmail(ctx, *req.Email); err == nil {
			return apperrors.ErrEmailExists
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.WrapError(apperrors.ErrInternal, err)
		}
		fields["email"] = *req.Email
	}

	if req.Username != nil && *req.Username != user.Username {
		if violations := validator.ValidateUsername(*req.Username); len(violations) > 0 {
			return apperrors.NewValidationError(strings.Join(violations, "; "))
		}
		if _, err := s.users.GetActiveByUsername(ctx, *req.Username); err == nil {
			return apperrors.ErrUsernameExists
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.WrapError(apperrors.ErrInternal, err)
		}
		fields["username"] = *req.Username
	}

	if req.Password != nil {
		if violations := validator.ValidatePassword(*req.Password); len(violations) > 0 {
			return apperrors.NewValidationError(strings.Join(violations, "; "))
		}
		hashedPassword, err := hashPassword(*req.Password)
		if err != nil {
			return apperrors.WrapError(apperrors.ErrInternal, err)
		}
		fields["password"] = hashedPassword
	}

	if len(fields) == 0 {
		return nil
	}

	if err := s.users.UpdateFields(ctx, userID, fields); err != nil {
		return apperrors.WrapError(apperrors.ErrInternal, err)
	}

	logger.InfoWithContext(ctx, "Profile updated").
		Int("user_id", int(userID)).
		Int("field_count", len(fields)).
		Log()

	return nil
}

// Me returns the filtered user summary for the authenticated user.
func (s *AuthService) Me(ctx context.Context, userID uint) (*dto.UserResponse, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}
	if user.MarkedForDeletion {
		return nil, apperrors.ErrUserNotFound
	}

	summary := userSummary(user)
	return &summary, nil
}

func usernameFromEmail(email string) string {
	local := email
	if at := strings.IndexByte(email, '@'); at > 0 {
		local = email[:at]
	}
	if len(local) < 3 {
		local = local + "_user"
	}
	if len(local) > 20 {
		local = local[:20]
	}
	return local
}
