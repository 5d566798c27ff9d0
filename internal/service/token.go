package service

import (
	"errors"
	"time"

	"github.com/codex-app/codex/internal/dto"
	"github.com/golang-jwt/jwt/v5"
)

// TokenService issues and validates the HS256 session tokens binding
// {user id, email, username, verified flag, issued-at, expiry}.
// The horizon defaults to 24 hours (JWT_EXPIRATION).
type TokenService struct {
	secretKey  string
	expiration time.Duration
}

func NewTokenService(secretKey string, expiration time.Duration) *TokenService {
	if expiration <= 0 {
		expiration = 24 * time.Hour
	}
	return &TokenService{
		secretKey:  secretKey,
		expiration: expiration,
	}
}

// Issue creates a signed token for the user.
func (s *TokenService) Issue(user *dto.UserResponse) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"user_id":        user.ID,
		"email":          user.Email,
		"username":       user.Username,
		"email_verified": user.EmailVerified,
		"iat":            now.Unix(),
		"exp":            now.Add(s.expiration).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString([]byte(s.secretKey))
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// Validate parses and verifies a token, rejecting bad signatures,
// malformed structure, wrong algorithms and expired tokens.
func (s *TokenService) Validate(tokenString string) (*jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return []byte(s.secretKey), nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return &claims, nil
	}

	return nil, errors.New("invalid token")
}

// UserID extracts the subject user id from validated claims.
func (s *TokenService) UserID(claims *jwt.MapClaims) (uint, bool) {
	idFloat, ok := (*claims)["user_id"].(float64)
	if !ok {
		return 0, false
	}
	return uint(idFloat), true
}
