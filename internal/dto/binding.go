package dto

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	pkgvalidator "github.com/codex-app/codex/pkg/validator"
)

// The "password" binding tag enforces the registration complexity
// policy wherever a password rides in a request body.
func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
			return len(pkgvalidator.ValidatePassword(fl.Field().String())) == 0
		})
	}
}
