package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/codex-app/codex/internal/constants"
	"github.com/codex-app/codex/internal/dto"
	apperrors "github.com/codex-app/codex/internal/errors"
	"github.com/codex-app/codex/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type memoryUserStore struct {
	mu     sync.Mutex
	nextID uint
	users  map[uint]*model.User
}

func newMemoryUserStore() *memoryUserStore {
	return &memoryUserStore{nextID: 1, users: make(map[uint]*model.User)}
}

func (s *memoryUserStore) GetByID(ctx context.Context, id uint) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user, ok := s.users[id]; ok {
		copied := *user
		return &copied, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *memoryUserStore) GetActiveByEmail(ctx context.Context, email string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.Email == email && !user.MarkedForDeletion {
			copied := *user
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *memoryUserStore) GetActiveByUsername(ctx context.Context, username string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.Username == username && !user.MarkedForDeletion {
			copied := *user
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *memoryUserStore) GetSoftDeletedByPreDeletionEmail(ctx context.Context, email string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.MarkedForDeletion && user.PreDeletionEmail != nil && *user.PreDeletionEmail == email {
			copied := *user
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *memoryUserStore) Create(ctx context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user.ID = s.nextID
	s.nextID++
	user.CreatedAt = time.Now()
	user.UpdatedAt = time.Now()
	copied := *user
	s.users[user.ID] = &copied
	return nil
}

func (s *memoryUserStore) UpdateFields(ctx context.Context, id uint, fields map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for key, value := range fields {
		switch key {
		case "email":
			user.Email = value.(string)
		case "username":
			user.Username = value.(string)
		case "password":
			user.Password = value.(string)
		case "email_verified":
			user.EmailVerified = value.(bool)
		case "verification_code":
			if value == nil {
				user.VerificationCode = nil
			} else {
				code := value.(string)
				user.VerificationCode = &code
			}
		case "verification_code_expires_at":
			if value == nil {
				user.VerificationCodeExpiresAt = nil
			} else {
				expiresAt := value.(time.Time)
				user.VerificationCodeExpiresAt = &expiresAt
			}
		}
	}
	return nil
}

func (s *memoryUserStore) SetVerification(ctx context.Context, id uint, code string, expiresAt time.Time) error {
	return s.UpdateFields(ctx, id, map[string]interface{}{
		"verification_code":            code,
		"verification_code_expires_at": expiresAt,
	})
}

func (s *memoryUserStore) MarkVerified(ctx context.Context, id uint) error {
	return s.UpdateFields(ctx, id, map[string]interface{}{
		"email_verified":               true,
		"verification_code":            nil,
		"verification_code_expires_at": nil,
	})
}

func (s *memoryUserStore) SoftDelete(ctx context.Context, user *model.User, deletedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.users[user.ID]
	if !ok || stored.MarkedForDeletion {
		return gorm.ErrRecordNotFound
	}
	email := stored.Email
	username := stored.Username
	stored.PreDeletionEmail = &email
	stored.PreDeletionUsername = &username
	stored.Email = fmt.Sprintf(constants.DeletedEmailFormat, stored.ID)
	stored.Username = fmt.Sprintf(constants.DeletedUsernameFormat, stored.ID)
	stored.MarkedForDeletion = true
	stored.DeletedAt = &deletedAt
	return nil
}

func (s *memoryUserStore) Restore(ctx context.Context, user *model.User, email, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.users[user.ID]
	if !ok || !stored.MarkedForDeletion {
		return gorm.ErrRecordNotFound
	}
	stored.Email = email
	stored.Username = username
	stored.MarkedForDeletion = false
	stored.DeletedAt = nil
	stored.PreDeletionEmail = nil
	stored.PreDeletionUsername = nil
	return nil
}

func newTestAuthService(store *memoryUserStore, counters *fakeCounterStore) *AuthService {
	limiter := NewRateLimitService(counters, 10, 5, 15*time.Minute)
	tokens := NewTokenService("test-secret", time.Hour)
	verification := NewVerificationService(&fakeMailer{}, "codex", 30*time.Minute)
	return NewAuthService(store, limiter, tokens, verification, 7)
}

func registerActiveUser(t *testing.T, store *memoryUserStore, email, username, password string) *model.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	user := &model.User{
		Email:         email,
		Username:      username,
		Password:      string(hash),
		EmailVerified: true,
	}
	require.NoError(t, store.Create(context.Background(), user))
	return user
}

func TestRegisterCreatesPendingUser(t *testing.T) {
	store := newMemoryUserStore()
	svc := newTestAuthService(store, newFakeCounterStore())

	resp, err := svc.Register(context.Background(), &dto.RegisterRequest{
		Email:    "user@example.com",
		Username: "alice",
		Password: "Password1!",
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Token)
	assert.Equal(t, "user@example.com", resp.User.Email)
	assert.False(t, resp.User.EmailVerified)

	stored, err := store.GetByID(context.Background(), resp.User.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.VerificationCode)
	assert.Len(t, *stored.VerificationCode, 6)
	require.NotNil(t, stored.VerificationCodeExpiresAt)
	assert.True(t, stored.VerificationCodeExpiresAt.After(time.Now()))
	assert.NotEqual(t, "Password1!", stored.Password)
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	store := newMemoryUserStore()
	svc := newTestAuthService(store, newFakeCounterStore())
	registerActiveUser(t, store, "taken@example.com", "taken", "Password1!")

	_, err := svc.Register(context.Background(), &dto.RegisterRequest{
		Email:    "taken@example.com",
		Username: "alice",
		Password: "Password1!",
	})
	assert.ErrorIs(t, err, apperrors.ErrEmailExists)

	_, err = svc.Register(context.Background(), &dto.RegisterRequest{
		Email:    "fresh@example.com",
		Username: "taken",
		Password: "Password1!",
	})
	assert.ErrorIs(t, err, apperrors.ErrUsernameExists)
}

func TestRegisterRejectsWeakInput(t *testing.T) {
	svc := newTestAuthService(newMemoryUserStore(), newFakeCounterStore())

	_, err := svc.Register(context.Background(), &dto.RegisterRequest{
		Email:    "not-an-email",
		Username: "x",
		Password: "short",
	})
	require.Error(t, err)

	domainErr := apperrors.GetDomainError(err)
	require.NotNil(t, domainErr)
	assert.Equal(t, "INVALID_INPUT", domainErr.Code)
}

func TestLoginSuccessResetsCounters(t *testing.T) {
	store := newMemoryUserStore()
	counters := newFakeCounterStore()
	svc := newTestAuthService(store, counters)
	user := registerActiveUser(t, store, "user@example.com", "alice", "Password1!")

	svc.limiter.RecordFailure(context.Background(), "10.0.0.1", "user@example.com")

	resp, err := svc.Login(context.Background(), "user@example.com", "Password1!", "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, user.ID, resp.User.ID)
	assert.NotEmpty(t, resp.Token)

	_, ok := counters.counts[constants.LoginEmailKeyPrefix+"user@example.com"]
	assert.False(t, ok, "email counter should be cleared after successful login")
}

func TestLoginWrongPasswordRecordsFailure(t *testing.T) {
	store := newMemoryUserStore()
	counters := newFakeCounterStore()
	svc := newTestAuthService(store, counters)
	registerActiveUser(t, store, "user@example.com", "alice", "Password1!")

	_, err := svc.Login(context.Background(), "user@example.com", "wrong-password", "10.0.0.1")
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
	assert.Equal(t, int64(1), counters.counts[constants.LoginIPKeyPrefix+"10.0.0.1"])
	assert.Equal(t, int64(1), counters.counts[constants.LoginEmailKeyPrefix+"user@example.com"])
}

func TestLoginUnknownEmailRecordsFailure(t *testing.T) {
	counters := newFakeCounterStore()
	svc := newTestAuthService(newMemoryUserStore(), counters)

	_, err := svc.Login(context.Background(), "ghost@example.com", "Password1!", "10.0.0.1")
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
	assert.Equal(t, int64(1), counters.counts[constants.LoginEmailKeyPrefix+"ghost@example.com"])
}

func TestLoginRateLimited(t *testing.T) {
	store := newMemoryUserStore()
	counters := newFakeCounterStore()
	svc := newTestAuthService(store, counters)
	registerActiveUser(t, store, "user@example.com", "alice", "Password1!")

	for i := 0; i < 5; i++ {
		svc.limiter.RecordFailure(context.Background(), "10.0.0.1", "user@example.com")
	}

	// Correct credentials are still refused while the window is active.
	_, err := svc.Login(context.Background(), "user@example.com", "Password1!", "10.0.0.1")
	require.Error(t, err)

	var rateLimited *apperrors.RateLimitedError
	require.ErrorAs(t, err, &rateLimited)
	assert.Positive(t, rateLimited.RetryAfter)
	assert.ErrorIs(t, err, apperrors.ErrRateLimited)
}

func TestLoginUnverifiedReturnsPending(t *testing.T) {
	store := newMemoryUserStore()
	svc := newTestAuthService(store, newFakeCounterStore())

	resp, err := svc.Register(context.Background(), &dto.RegisterRequest{
		Email:    "user@example.com",
		Username: "alice",
		Password: "Password1!",
	})
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), "user@example.com", "Password1!", "10.0.0.1")
	require.Error(t, err)

	var pending *apperrors.VerificationPendingError
	require.ErrorAs(t, err, &pending)
	assert.Equal(t, "user@example.com", pending.Email)

	// The unexpired registration code is kept, not replaced.
	stored, err := store.GetByID(context.Background(), resp.User.ID)
	require.NoError(t, err)
	assert.Equal(t, stored.VerificationCodeExpiresAt.Unix(), pending.ExpiresAt.Unix())
}

func TestLoginUnverifiedReissuesExpiredCode(t *testing.T) {
	store := newMemoryUserStore()
	svc := newTestAuthService(store, newFakeCounterStore())

	resp, err := svc.Register(context.Background(), &dto.RegisterRequest{
		Email:    "user@example.com",
		Username: "alice",
		Password: "Password1!",
	})
	require.NoError(t, err)

	expired := time.Now().Add(-time.Minute)
	require.NoError(t, store.SetVerification(context.Background(), resp.User.ID, "111111", expired))

	_, err = svc.Login(context.Background(), "user@example.com", "Password1!", "10.0.0.1")
	var pending *apperrors.VerificationPendingError
	require.ErrorAs(t, err, &pending)
	assert.True(t, pending.ExpiresAt.After(time.Now()))

	stored, err := store.GetByID(context.Background(), resp.User.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "111111", *stored.VerificationCode)
}

func TestVerifyEmail(t *testing.T) {
	store := newMemoryUserStore()
	svc := newTestAuthService(store, newFakeCounterStore())

	resp, err := svc.Register(context.Background(), &dto.RegisterRequest{
		Email:    "user@example.com",
		Username: "alice",
		Password: "Password1!",
	})
	require.NoError(t, err)

	stored, err := store.GetByID(context.Background(), resp.User.ID)
	require.NoError(t, err)
	code := *stored.VerificationCode

	_, err = svc.VerifyEmail(context.Background(), "user@example.com", "000000")
	assert.ErrorIs(t, err, apperrors.ErrCodeMismatch)

	authResp, err := svc.VerifyEmail(context.Background(), "user@example.com", code)
	require.NoError(t, err)
	assert.True(t, authResp.User.EmailVerified)
	assert.NotEmpty(t, authResp.Token)

	stored, err = store.GetByID(context.Background(), resp.User.ID)
	require.NoError(t, err)
	assert.True(t, stored.EmailVerified)
	assert.Nil(t, stored.VerificationCode)

	_, err = svc.VerifyEmail(context.Background(), "user@example.com", code)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyVerified)
}

func TestVerifyEmailExpiredCode(t *testing.T) {
	store := newMemoryUserStore()
	svc := newTestAuthService(store, newFakeCounterStore())

	resp, err := svc.Register(context.Background(), &dto.RegisterRequest{
		Email:    "user@example.com",
		Username: "alice",
		Password: "Password1!",
	})
	require.NoError(t, err)

	expired := time.Now().Add(-time.Minute)
	require.NoError(t, store.SetVerification(context.Background(), resp.User.ID, "222222", expired))

	_, err = svc.VerifyEmail(context.Background(), "user@example.com", "222222")
	assert.ErrorIs(t, err, apperrors.ErrCodeExpired)
}

func TestResendVerificationDoesNotLeakExistence(t *testing.T) {
	store := newMemoryUserStore()
	svc := newTestAuthService(store, newFakeCounterStore())

	resp, err := svc.ResendVerification(context.Background(), "ghost@example.com")
	require.NoError(t, err)
	assert.False(t, resp.AlreadyVerified)
	assert.NotEmpty(t, resp.Message)

	registerActiveUser(t, store, "user@example.com", "alice", "Password1!")
	resp, err = svc.ResendVerification(context.Background(), "user@example.com")
	require.NoError(t, err)
	assert.True(t, resp.AlreadyVerified)
}

func TestDeleteAccountAnonymizes(t *testing.T) {
	store := newMemoryUserStore()
	svc := newTestAuthService(store, newFakeCounterStore())
	user := registerActiveUser(t, store, "user@example.com", "alice", "Password1!")

	resp, err := svc.DeleteAccount(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, resp.RetentionPeriodDays)
	assert.WithinDuration(t, time.Now().AddDate(0, 0, 7), resp.ScheduleDeletedAt, time.Minute)

	stored, err := store.GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.True(t, stored.MarkedForDeletion)
	assert.Equal(t, fmt.Sprintf(constants.DeletedEmailFormat, user.ID), stored.Email)
	assert.Equal(t, fmt.Sprintf(constants.DeletedUsernameFormat, user.ID), stored.Username)
	require.NotNil(t, stored.PreDeletionEmail)
	assert.Equal(t, "user@example.com", *stored.PreDeletionEmail)

	// The freed identity is immediately reusable.
	_, err = store.GetActiveByEmail(context.Background(), "user@example.com")
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))

	// Deleting again fails: the session should already be invalid.
	_, err = svc.DeleteAccount(context.Background(), user.ID)
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
}

func TestCancelDeletionRestoresIdentity(t *testing.T) {
	store := newMemoryUserStore()
	svc := newTestAuthService(store, newFakeCounterStore())
	user := registerActiveUser(t, store, "user@example.com", "alice", "Password1!")

	_, err := svc.DeleteAccount(context.Background(), user.ID)
	require.NoError(t, err)

	_, err = svc.CancelDeletion(context.Background(), "user@example.com", "wrong-password")
	assert.ErrorIs(t, err, apperrors.ErrNoDeletionPending)

	resp, err := svc.CancelDeletion(context.Background(), "user@example.com", "Password1!")
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", resp.User.Email)
	assert.Equal(t, "alice", resp.User.Username)
	assert.NotEmpty(t, resp.Token)

	stored, err := store.GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.False(t, stored.MarkedForDeletion)
	assert.Nil(t, stored.DeletedAt)
	assert.Nil(t, stored.PreDeletionEmail)
}

func TestCancelDeletionEmailReRegistered(t *testing.T) {
	store := newMemoryUserStore()
	svc := newTestAuthService(store, newFakeCounterStore())
	user := registerActiveUser(t, store, "user@example.com", "alice", "Password1!")

	_, err := svc.DeleteAccount(context.Background(), user.ID)
	require.NoError(t, err)

	// The freed email is claimed by a new account during the window.
	registerActiveUser(t, store, "user@example.com", "carol", "Password1!")

	_, err = svc.CancelDeletion(context.Background(), "user@example.com", "Password1!")
	assert.ErrorIs(t, err, apperrors.ErrEmailExists)

	// The soft-deleted row is untouched and still restorable later.
	stored, err := store.GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.True(t, stored.MarkedForDeletion)
	require.NotNil(t, stored.PreDeletionEmail)
	assert.Equal(t, "user@example.com", *stored.PreDeletionEmail)
}

func TestCancelDeletionWithoutPendingDeletion(t *testing.T) {
	svc := newTestAuthService(newMemoryUserStore(), newFakeCounterStore())

	_, err := svc.CancelDeletion(context.Background(), "ghost@example.com", "Password1!")
	assert.ErrorIs(t, err, apperrors.ErrNoDeletionPending)
}

func TestUpdateProfile(t *testing.T) {
	store := newMemoryUserStore()
	svc := newTestAuthService(store, newFakeCounterStore())
	user := registerActiveUser(t, store, "user@example.com", "alice", "Password1!")
	registerActiveUser(t, store, "other@example.com", "bob", "Password1!")

	newEmail := "other@example.com"
	err := svc.UpdateProfile(context.Background(), user.ID, &dto.UpdateProfileRequest{Email: &newEmail})
	assert.ErrorIs(t, err, apperrors.ErrEmailExists)

	newUsername := "bob"
	err = svc.UpdateProfile(context.Background(), user.ID, &dto.UpdateProfileRequest{Username: &newUsername})
	assert.ErrorIs(t, err, apperrors.ErrUsernameExists)

	freshEmail := "fresh@example.com"
	freshUsername := "alice2"
	newPassword := "NewPassword2!"
	err = svc.UpdateProfile(context.Background(), user.ID, &dto.UpdateProfileRequest{
		Email:    &freshEmail,
		Username: &freshUsername,
		Password: &newPassword,
	})
	require.NoError(t, err)

	stored, err := store.GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, "fresh@example.com", stored.Email)
	assert.Equal(t, "alice2", stored.Username)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.Password), []byte("NewPassword2!")))
}

func TestMe(t *testing.T) {
	store := newMemoryUserStore()
	svc := newTestAuthService(store, newFakeCounterStore())
	user := registerActiveUser(t, store, "user@example.com", "alice", "Password1!")

	resp, err := svc.Me(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", resp.Username)

	_, err = svc.DeleteAccount(context.Background(), user.ID)
	require.NoError(t, err)

	_, err = svc.Me(context.Background(), user.ID)
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
}
