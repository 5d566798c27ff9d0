package database

import (
	"github.com/codex-app/codex/internal/model"
	"gorm.io/gorm"
)

// AutoMigrate creates or updates the schema for all models. Order
// matters: users before prompts before responses so the foreign key
// constraints resolve.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.User{},
		&model.Prompt{},
		&model.Response{},
	)
}
