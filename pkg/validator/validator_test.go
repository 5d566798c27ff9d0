package validator

import "testing"

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		name    string
		email   string
		wantErr bool
	}{
		{"valid", "user@example.com", false},
		{"valid with plus", "user+tag@example.com", false},
		{"valid subdomain", "user@mail.example.co.uk", false},
		{"empty", "", true},
		{"missing at", "userexample.com", true},
		{"missing domain", "user@", true},
		{"missing tld", "user@example", true},
		{"spaces", "user name@example.com", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			violations := ValidateEmail(tt.email)
			if (len(violations) > 0) != tt.wantErr {
				t.Errorf("ValidateEmail(%q) violations = %v, wantErr %v", tt.email, violations, tt.wantErr)
			}
		})
	}
}

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		name     string
		username string
		wantErr  bool
	}{
		{"valid", "alice", false},
		{"valid with underscore", "alice_b", false},
		{"valid with hyphen", "alice-b", false},
		{"valid minimum length", "abc", false},
		{"valid maximum length", "abcdefghijklmnopqrst", false},
		{"too short", "ab", true},
		{"too long", "abcdefghijklmnopqrstu", true},
		{"spaces", "alice b", true},
		{"special characters", "alice!", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			violations := ValidateUsername(tt.username)
			if (len(violations) > 0) != tt.wantErr {
				t.Errorf("ValidateUsername(%q) violations = %v, wantErr %v", tt.username, violations, tt.wantErr)
			}
		})
	}
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{"lower upper digit", "Password1", false},
		{"lower digit special", "password1!", false},
		{"all four classes", "Password1!", false},
		{"too short", "Pass1!", true},
		{"only lowercase", "passwordpassword", true},
		{"two classes", "password1", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			violations := ValidatePassword(tt.password)
			if (len(violations) > 0) != tt.wantErr {
				t.Errorf("ValidatePassword(%q) violations = %v, wantErr %v", tt.password, violations, tt.wantErr)
			}
		})
	}
}

func TestValidateRegistrationAggregatesViolations(t *testing.T) {
	violations := ValidateRegistration("bad-email", "x", "short")
	if len(violations) < 3 {
		t.Errorf("expected at least 3 violations, got %d: %v", len(violations), violations)
	}

	if got := ValidateRegistration("user@example.com", "alice", "Password1!"); len(got) != 0 {
		t.Errorf("expected no violations for valid input, got %v", got)
	}
}
