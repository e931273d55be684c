package auth

import (
	"strings"

	"github.com/frahmantamala/expense-approval/internal"
	"github.com/frahmantamala/expense-approval/internal/core/common/validation"
)

// LoginDTO is the transport shape used by the HTTP handler to accept login requests.
type LoginDTO struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RefreshTokenDTO struct {
	RefreshToken string `json:"refresh_token"`
}

func (d *LoginDTO) Normalize() {
	d.Email = strings.ToLower(strings.TrimSpace(d.Email))
}

func (d LoginDTO) Validate() *internal.AppError {
	validator := validation.NewValidator()
	validator.Field("email", d.Email).Required().Email()
	validator.Field("password", d.Password).Required()
	return validator.Validate()
}

func (d RefreshTokenDTO) Validate() *internal.AppError {
	validator := validation.NewValidator()
	validator.Field("refresh_token", d.RefreshToken).Required()
	return validator.Validate()
}
