package model

import (
	"time"

	"gorm.io/datatypes"
)

// Prompt is a saved prompt owned by a user. The prompt body itself
// lives in the blob store under ContentKey; the row carries metadata.
type Prompt struct {
	ID        uint      `gorm:"primarykey"`
	CreatedAt time.Time
	UpdatedAt time.Time

	UserID      uint   `gorm:"column:user_id;not null;index"`
	Title       string `gorm:"column:title;not null"`
	Description string `gorm:"column:description"`
	ContentKey  string `gorm:"column:content_key;not null"`

	Responses []Response `gorm:"foreignKey:PromptID"`
}

// Response is one LLM-generated answer to a prompt. Metadata holds
// provider-specific generation parameters (temperature, max tokens, ...).
type Response struct {
	ID        uint      `gorm:"primarykey"`
	CreatedAt time.Time
	UpdatedAt time.Time

	PromptID   uint           `gorm:"column:prompt_id;not null;index"`
	Provider   string         `gorm:"column:provider;not null"`
	Model      string         `gorm:"column:model;not null"`
	Metadata   datatypes.JSON `gorm:"column:metadata"`
	ContentKey string         `gorm:"column:content_key;not null"`
}
