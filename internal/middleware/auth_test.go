package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/codex-app/codex/internal/dto"
	"github.com/codex-app/codex/internal/model"
	"github.com/codex-app/codex/internal/service"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type fakeUserLoader struct {
	users map[uint]*model.User
}

func (l *fakeUserLoader) GetByID(ctx context.Context, id uint) (*model.User, error) {
	if user, ok := l.users[id]; ok {
		return user, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func authTestRouter(tokens *service.TokenService, users UserLoader) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.GET("/protected", RequireAuth(tokens, users), func(c *gin.Context) {
		user, _ := CurrentUser(c)
		c.JSON(http.StatusOK, gin.H{"username": user.Username})
	})
	return engine
}

func issueToken(t *testing.T, tokens *service.TokenService, user *model.User) string {
	t.Helper()
	token, err := tokens.Issue(&dto.UserResponse{
		ID:            user.ID,
		Email:         user.Email,
		Username:      user.Username,
		EmailVerified: user.EmailVerified,
	})
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	return token
}

func TestRequireAuthAcceptsValidToken(t *testing.T) {
	tokens := service.NewTokenService("test-secret", time.Hour)
	user := &model.User{ID: 1, Email: "user@example.com", Username: "alice", EmailVerified: true}
	engine := authTestRouter(tokens, &fakeUserLoader{users: map[uint]*model.User{1: user}})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+issueToken(t, tokens, user))
	recorder := httptest.NewRecorder()
	engine.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Errorf("status = %d, want 200, body %s", recorder.Code, recorder.Body.String())
	}
}

func TestRequireAuthRejectsMissingHeader(t *testing.T) {
	tokens := service.NewTokenService("test-secret", time.Hour)
	engine := authTestRouter(tokens, &fakeUserLoader{users: map[uint]*model.User{}})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	recorder := httptest.NewRecorder()
	engine.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", recorder.Code)
	}
}

func TestRequireAuthRejectsBadToken(t *testing.T) {
	tokens := service.NewTokenService("test-secret", time.Hour)
	engine := authTestRouter(tokens, &fakeUserLoader{users: map[uint]*model.User{}})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer not.a.token")
	recorder := httptest.NewRecorder()
	engine.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", recorder.Code)
	}
}

func TestRequireAuthRejectsSoftDeletedUser(t *testing.T) {
	tokens := service.NewTokenService("test-secret", time.Hour)
	user := &model.User{ID: 1, Email: "user@example.com", Username: "alice", MarkedForDeletion: true}
	engine := authTestRouter(tokens, &fakeUserLoader{users: map[uint]*model.User{1: user}})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+issueToken(t, tokens, user))
	recorder := httptest.NewRecorder()
	engine.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401: deletion must invalidate sessions", recorder.Code)
	}
}

func TestRequireAuthRejectsUnknownUser(t *testing.T) {
	tokens := service.NewTokenService("test-secret", time.Hour)
	ghost := &model.User{ID: 99, Email: "ghost@example.com", Username: "ghost"}
	engine := authTestRouter(tokens, &fakeUserLoader{users: map[uint]*model.User{}})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+issueToken(t, tokens, ghost))
	recorder := httptest.NewRecorder()
	engine.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", recorder.Code)
	}
}
