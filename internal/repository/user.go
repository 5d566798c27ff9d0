package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/codex-app/codex/internal/constants"
	"github.com/codex-app/codex/internal/model"
	"github.com/codex-app/codex/pkg/ctxutil"
	"github.com/codex-app/codex/pkg/logger"
	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByID(ctx context.Context, id uint) (*model.User, error) {
	ctx = ctxutil.NewContext(ctx, "repository", "GetByID")

	var user model.User
	result := r.db.WithContext(ctx).Where("id = ?", id).First(&user)
	if result.Error != nil {
		if result.Error != gorm.ErrRecordNotFound {
			logger.ErrorWithContext(ctx, "Failed to get user by ID").
				Int("user_id", int(id)).
				Err(result.Error).
				Log()
		}
		return nil, result.Error
	}

	return &user, nil
}

// GetActiveByEmail finds a user by email among non-soft-deleted rows.
// Soft-deleted accounts never resolve here: their email column holds
// the anonymized placeholder.
func (r *UserRepository) GetActiveByEmail(ctx context.Context, email string) (*model.User, error) {
	ctx = ctxutil.NewContext(ctx, "repository", "GetActiveByEmail")

	var user model.User
	result := r.db.WithContext(ctx).
		Where("email = ? AND marked_for_deletion = ?", email, false).
		First(&user)
	if result.Error != nil {
		if result.Error != gorm.ErrRecordNotFound {
			logger.ErrorWithContext(ctx, "Failed to get user by email").
				Err(result.Error).
				Log()
		}
		return nil, result.Error
	}

	return &user, nil
}

func (r *UserRepository) GetActiveByUsername(ctx context.Context, username string) (*model.User, error) {
	var user model.User
	result := r.db.WithContext(ctx).
		Where("username = ? AND marked_for_deletion = ?", username, false).
		First(&user)
	if result.Error != nil {
		return nil, result.Error
	}
	return &user, nil
}

// GetSoftDeletedByPreDeletionEmail locates the soft-deleted row whose
// original (pre-anonymization) email matches, scoping restoration to
// the right account. Should multiple rows share a pre-deletion email,
// the most recently deleted one wins.
func (r *UserRepository) GetSoftDeletedByPreDeletionEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	result := r.db.WithContext(ctx).
		Where("pre_deletion_email = ? AND marked_for_deletion = ?", email, true).
		Order("deleted_at DESC").
		First(&user)
	if result.Error != nil {
		return nil, result.Error
	}
	return &user, nil
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	ctx = ctxutil.NewContext(ctx, "repository", "Create")

	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		logger.ErrorWithContext(ctx, "Failed to create user").
			String("email", user.Email).
			Err(err).
			Log()
		return err
	}
	return nil
}

// UpdateFields applies a partial update to the user row.
func (r *UserRepository) UpdateFields(ctx context.Context, id uint, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Updates(fields).Error
}

// SetVerification stores a freshly issued verification code and expiry.
func (r *UserRepository) SetVerification(ctx context.Context, id uint, code string, expiresAt time.Time) error {
	return r.UpdateFields(ctx, id, map[string]interface{}{
		"verification_code":            code,
		"verification_code_expires_at": expiresAt,
	})
}

// MarkVerified clears the verification fields and flips the account to
// verified in one update.
func (r *UserRepository) MarkVerified(ctx context.Context, id uint) error {
	return r.UpdateFields(ctx, id, map[string]interface{}{
		"email_verified":               true,
		"verification_code":            nil,
		"verification_code_expires_at": nil,
	})
}

// SoftDelete marks the user for deletion inside a transaction:
// deletion flags set, original identity snapshotted, email/username
// anonymized. The password hash is left untouched.
func (r *UserRepository) SoftDelete(ctx context.Context, user *model.User, deletedAt time.Time) error {
	ctx = ctxutil.NewContext(ctx, "repository", "SoftDelete")

	anonymizedEmail := fmt.Sprintf(constants.DeletedEmailFormat, user.ID)
	anonymizedUsername := fmt.Sprintf(constants.DeletedUsernameFormat, user.ID)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Conditional update closes the race with a concurrent delete
		// or restore on the same row.
		result := tx.Model(&model.User{}).
			Where("id = ? AND marked_for_deletion = ?", user.ID, false).
			Updates(map[string]interface{}{
				"marked_for_deletion":   true,
				"deleted_at":            deletedAt,
				"pre_deletion_email":    user.Email,
				"pre_deletion_username": user.Username,
				"email":                 anonymizedEmail,
				"username":              anonymizedUsername,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil && err != gorm.ErrRecordNotFound {
		logger.ErrorWithContext(ctx, "Failed to soft delete user").
			Int("user_id", int(user.ID)).
			Err(err).
			Log()
	}
	return err
}

// Restore clears the deletion state and puts the original identity
// back. Conditional on the row still being soft-deleted so two
// concurrent restorations cannot both succeed.
func (r *UserRepository) Restore(ctx context.Context, user *model.User, email, username string) error {
	ctx = ctxutil.NewContext(ctx, "repository", "Restore")

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&model.User{}).
			Where("id = ? AND marked_for_deletion = ?", user.ID, true).
			Updates(map[string]interface{}{
				"marked_for_deletion":   false,
				"deleted_at":            nil,
				"pre_deletion_email":    nil,
				"pre_deletion_username": nil,
				"email":                 email,
				"username":              username,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil && err != gorm.ErrRecordNotFound {
		logger.ErrorWithContext(ctx, "Failed to restore user").
			Int("user_id", int(user.ID)).
			Err(err).
			Log()
	}
	return err
}

// FindPurgeCandidates returns soft-deleted users whose retention
// window ended at or before the cutoff.
func (r *UserRepository) FindPurgeCandidates(ctx context.Context, cutoff time.Time) ([]model.User, error) {
	var users []model.User
	err := r.db.WithContext(ctx).
		Where("marked_for_deletion = ? AND deleted_at IS NOT NULL AND deleted_at <= ?", true, cutoff).
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

// HardDelete permanently removes the user row. Deleting an already
// absent row is a no-op, keeping the purge job idempotent.
func (r *UserRepository) HardDelete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Unscoped().Where("id = ?", id).Delete(&model.User{}).Error
}
