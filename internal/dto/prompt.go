package dto

import (
	"encoding/json"
	"time"
)

type CreatePromptRequest struct {
	Title       string `json:"title" binding:"required,min=1,max=255"`
	Description string `json:"description" binding:"omitempty,max=2000"`
	Content     string `json:"content" binding:"required"`
}

type UpdatePromptRequest struct {
	Title       *string `json:"title" binding:"omitempty,min=1,max=255"`
	Description *string `json:"description" binding:"omitempty,max=2000"`
	Content     *string `json:"content" binding:"omitempty"`
}

type CreateResponseRequest struct {
	Provider string          `json:"provider" binding:"required,min=1,max=100"`
	Model    string          `json:"model" binding:"required,min=1,max=100"`
	Metadata json.RawMessage `json:"metadata" binding:"omitempty"`
	Content  string          `json:"content" binding:"required"`
}

type PromptResponse struct {
	ID          uint              `json:"id"`
	Title       string            `json:"title"`
	Description string            `json:"description,omitempty"`
	Content     string            `json:"content,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
	Responses   []ModelResponse   `json:"responses,omitempty"`
}

type ModelResponse struct {
	ID        uint            `json:"id"`
	Provider  string          `json:"provider"`
	Model     string          `json:"model"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	Content   string          `json:"content,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}
