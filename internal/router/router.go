package router

import (
	"github.com/codex-app/codex/config"
	"github.com/codex-app/codex/internal/handler"
	"github.com/codex-app/codex/internal/middleware"
	"github.com/codex-app/codex/internal/service"
	"github.com/gin-gonic/gin"
)

// Handlers bundles everything the router mounts.
type Handlers struct {
	Auth   *handler.AuthHandler
	Prompt *handler.PromptHandler
	Health *handler.HealthHandler
}

// Setup builds the gin engine with the full middleware chain and all
// route groups under /api/v1.
func Setup(cfg *config.Config, h Handlers, tokens *service.TokenService, users middleware.UserLoader) *gin.Engine {
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(
		middleware.Recovery(),
		middleware.RequestContext(),
		middleware.RequestLogger(),
		middleware.CORS(),
	)

	engine.GET("/api/health", h.Health.Health)

	api := engine.Group("/api/v1")
	registerAuthRoutes(api, h.Auth, tokens, users)
	registerPromptRoutes(api, h.Prompt, tokens, users)

	return engine
}

func registerAuthRoutes(api *gin.RouterGroup, h *handler.AuthHandler, tokens *service.TokenService, users middleware.UserLoader) {
	auth := api.Group("/auth")
	{
		auth.POST("/register", h.Register)
		auth.POST("/login", h.Login)
		auth.POST("/verify-email", h.VerifyEmail)
		auth.POST("/resend-verification", h.ResendVerification)
		auth.POST("/cancel-deletion", h.CancelDeletion)
		auth.GET("/process-deletions", h.ProcessDeletions)
	}

	authed := api.Group("/auth")
	authed.Use(middleware.RequireAuth(tokens, users))
	{
		authed.POST("/logout", h.Logout)
		authed.GET("/me", h.Me)
		authed.PUT("/me", h.UpdateProfile)
		authed.DELETE("/delete", h.DeleteAccount)
	}
}

func registerPromptRoutes(api *gin.RouterGroup, h *handler.PromptHandler, tokens *service.TokenService, users middleware.UserLoader) {
	prompts := api.Group("/prompts")
	prompts.Use(middleware.RequireAuth(tokens, users))
	{
		prompts.POST("", h.Create)
		prompts.GET("", h.List)
		prompts.GET("/:id", h.Get)
		prompts.PUT("/:id", h.Update)
		prompts.DELETE("/:id", h.Delete)
		prompts.POST("/:id/responses", h.AddResponse)
		prompts.DELETE("/:id/responses/:responseId", h.DeleteResponse)
	}
}
