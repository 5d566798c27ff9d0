package dto

import "time"

type RegisterRequest struct {
	Email    string `json:"email" binding:"required"`
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type VerifyEmailRequest struct {
	Email string `json:"email" binding:"required,email"`
	Code  string `json:"code" binding:"required,len=6,numeric"`
}

type ResendVerificationRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type CancelDeletionRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type UpdateProfileRequest struct {
	Email    *string `json:"email" binding:"omitempty,email"`
	Username *string `json:"username" binding:"omitempty,min=3,max=20"`
	Password *string `json:"password" binding:"omitempty,password"`
}

// UserResponse is the filtered subset of the user record exposed to
// clients. Password hash, verification code and lifecycle timestamps
// are never returned.
type UserResponse struct {
	ID            uint   `json:"id"`
	Email         string `json:"email"`
	Username      string `json:"username"`
	EmailVerified bool   `json:"emailVerified"`
}

type AuthResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

type DeleteAccountResponse struct {
	Message             string    `json:"message"`
	RetentionPeriodDays int       `json:"retentionPeriodDays"`
	ScheduleDeletedAt   time.Time `json:"scheduleDeletedAt"`
}

type ResendVerificationResponse struct {
	Message         string `json:"message"`
	AlreadyVerified bool   `json:"alreadyVerified,omitempty"`
}

type ProcessDeletionsResponse struct {
	DeletedCount int `json:"deletedCount"`
}

// AuthUser is the authenticated identity attached to the request
// context by the auth middleware.
type AuthUser struct {
	ID            uint
	Email         string
	Username      string
	EmailVerified bool
}
