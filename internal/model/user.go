package model

import (
	"time"
)

// User is the account lifecycle record. Exactly one of
// {active, pending-verification, soft-deleted} holds at any time,
// encoded by MarkedForDeletion and EmailVerified together with the
// verification fields.
//
// Soft delete overwrites Email/Username with anonymized placeholders;
// the originals are kept in the PreDeletion* shadow fields so that
// restoration can be scoped to the correct account.
type User struct {
	ID        uint      `gorm:"primarykey"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Email    string `gorm:"column:email;unique;not null"`
	Username string `gorm:"column:username;unique;not null"`
	Password string `gorm:"column:password;not null"`

	EmailVerified             bool       `gorm:"column:email_verified;default:false;not null"`
	VerificationCode          *string    `gorm:"column:verification_code"`
	VerificationCodeExpiresAt *time.Time `gorm:"column:verification_code_expires_at"`

	MarkedForDeletion   bool       `gorm:"column:marked_for_deletion;default:false;not null;index:idx_users_purge,where:marked_for_deletion"`
	DeletedAt           *time.Time `gorm:"column:deleted_at"`
	PreDeletionEmail    *string    `gorm:"column:pre_deletion_email;index:idx_users_pre_deletion_email,where:pre_deletion_email IS NOT NULL"`
	PreDeletionUsername *string    `gorm:"column:pre_deletion_username"`

	Prompts []Prompt `gorm:"foreignKey:UserID"`
}
