package handler

import (
	"net/http"
	"strconv"

	"github.com/codex-app/codex/internal/dto"
	apperrors "github.com/codex-app/codex/internal/errors"
	"github.com/codex-app/codex/internal/middleware"
	"github.com/codex-app/codex/internal/service"
	"github.com/gin-gonic/gin"
)

// PromptHandler exposes the saved-prompt and response endpoints. All
// routes require authentication; ownership is enforced in the service.
type PromptHandler struct {
	prompts *service.PromptService
	debug   bool
}

func NewPromptHandler(prompts *service.PromptService, debug bool) *PromptHandler {
	return &PromptHandler{prompts: prompts, debug: debug}
}

// Create handles POST /prompts.
func (h *PromptHandler) Create(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		respondError(c, apperrors.ErrUnauthorized, h.debug)
		return
	}

	var req dto.CreatePromptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, err)
		return
	}

	resp, err := h.prompts.Create(c.Request.Context(), user.ID, &req)
	if err != nil {
		respondError(c, err, h.debug)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// List handles GET /prompts.
func (h *PromptHandler) List(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		respondError(c, apperrors.ErrUnauthorized, h.debug)
		return
	}

	resp, err := h.prompts.List(c.Request.Context(), user.ID)
	if err != nil {
		respondError(c, err, h.debug)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Get handles GET /prompts/:id.
func (h *PromptHandler) Get(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		respondError(c, apperrors.ErrUnauthorized, h.debug)
		return
	}

	promptID, ok := pathID(c, "id")
	if !ok {
		return
	}

	resp, err := h.prompts.Get(c.Request.Context(), user.ID, promptID)
	if err != nil {
		respondError(c, err, h.debug)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Update handles PUT /prompts/:id.
func (h *PromptHandler) Update(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		respondError(c, apperrors.ErrUnauthorized, h.debug)
		return
	}

	promptID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req dto.UpdatePromptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, err)
		return
	}

	if err := h.prompts.Update(c.Request.Context(), user.ID, promptID, &req); err != nil {
		respondError(c, err, h.debug)
		return
	}

	resp, err := h.prompts.Get(c.Request.Context(), user.ID, promptID)
	if err != nil {
		respondError(c, err, h.debug)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Delete handles DELETE /prompts/:id.
func (h *PromptHandler) Delete(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		respondError(c, apperrors.ErrUnauthorized, h.debug)
		return
	}

	promptID, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.prompts.Delete(c.Request.Context(), user.ID, promptID); err != nil {
		respondError(c, err, h.debug)
		return
	}

	c.Status(http.StatusNoContent)
}

// AddResponse handles POST /prompts/:id/responses.
func (h *PromptHandler) AddResponse(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		respondError(c, apperrors.ErrUnauthorized, h.debug)
		return
	}

	promptID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req dto.CreateResponseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, err)
		return
	}

	resp, err := h.prompts.AddResponse(c.Request.Context(), user.ID, promptID, &req)
	if err != nil {
		respondError(c, err, h.debug)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// DeleteResponse handles DELETE /prompts/:id/responses/:responseId.
func (h *PromptHandler) DeleteResponse(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		respondError(c, apperrors.ErrUnauthorized, h.debug)
		return
	}

	promptID, ok := pathID(c, "id")
	if !ok {
		return
	}
	responseID, ok := pathID(c, "responseId")
	if !ok {
		return
	}

	if err := h.prompts.DeleteResponse(c.Request.Context(), user.ID, promptID, responseID); err != nil {
		respondError(c, err, h.debug)
		return
	}

	c.Status(http.StatusNoContent)
}

func pathID(c *gin.Context, name string) (uint, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		respondBindingError(c, apperrors.NewValidationError("invalid "+name+" parameter"))
		return 0, false
	}
	return uint(id), true
}
