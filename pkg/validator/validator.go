package validator

import (
	"regexp"
	"unicode"
)

var (
	// Username: 3-20 characters, alphanumeric plus underscore and hyphen
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,20}$`)

	// Email: basic format validation
	emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
)

const (
	minPasswordLength = 8
	maxPasswordLength = 128
	minCharClasses    = 3
)

// ValidateEmail checks if email format is valid
func ValidateEmail(email string) []string {
	var violations []string
	if len(email) == 0 || len(email) > 255 || !emailRegex.MatchString(email) {
		violations = append(violations, "email must be a valid email address")
	}
	return violations
}

// ValidateUsername checks the username shape: 3-20 characters from
// [a-zA-Z0-9_-].
func ValidateUsername(username string) []string {
	var violations []string
	if !usernameRegex.MatchString(username) {
		violations = append(violations, "username must be 3-20 characters of letters, digits, underscore or hyphen")
	}
	return violations
}

// ValidatePassword enforces the registration complexity policy:
// at least 8 characters containing at least 3 of the 4 classes
// {lowercase, uppercase, digit, special}.
func ValidatePassword(password string) []string {
	var violations []string

	if len(password) < minPasswordLength {
		violations = append(violations, "password must be at least 8 characters")
	}
	if len(password) > maxPasswordLength {
		violations = append(violations, "password must be at most 128 characters")
	}

	var hasLower, hasUpper, hasDigit, hasSpecial bool
	for _, char := range password {
		switch {
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsDigit(char):
			hasDigit = true
		case unicode.IsPunct(char) || unicode.IsSymbol(char):
			hasSpecial = true
		}
	}

	classes := 0
	for _, ok := range []bool{hasLower, hasUpper, hasDigit, hasSpecial} {
		if ok {
			classes++
		}
	}
	if classes < minCharClasses {
		violations = append(violations, "password must contain at least 3 of: lowercase, uppercase, digit, special character")
	}

	return violations
}

// ValidateRegistration runs all registration rules and returns every
// unmet rule so the client can show them together.
func ValidateRegistration(email, username, password string) []string {
	var violations []string
	violations = append(violations, ValidateEmail(email)...)
	violations = append(violations, ValidateUsername(username)...)
	violations = append(violations, ValidatePassword(password)...)
	return violations
}
