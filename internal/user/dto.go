package user

import (
	"strings"

	"github.com/frahmantamala/expense-approval/internal"
	"github.com/frahmantamala/expense-approval/internal/core/common/validation"
)

// CreateUserDTO is the payload of POST /users.
type CreateUserDTO struct {
	Email     string `json:"email"`
	Name      string `json:"name"`
	Password  string `json:"password"`
	Role      string `json:"role"`
	ManagerID *int64 `json:"manager_id,omitempty"`
}

func (d *CreateUserDTO) Normalize() {
	d.Email = strings.ToLower(strings.TrimSpace(d.Email))
	d.Name = strings.TrimSpace(d.Name)
	d.Role = strings.ToLower(strings.TrimSpace(d.Role))
}

func (d CreateUserDTO) Validate() *internal.AppError {
	validator := validation.NewValidator()
	validator.Field("email", d.Email).Required().Email().MaxLength(255)
	validator.Field("name", d.Name).Required().MaxLength(255)
	validator.Field("password", d.Password).Required().MinLength(8).MaxLength(72)
	validator.Field("role", d.Role).Required().Custom(func(value interface{}) *internal.AppError {
		if !internal.Role(d.Role).IsValid() {
			return internal.NewValidationFieldError("role", "role must be one of admin, manager, employee", internal.ErrCodeInvalidRole)
		}
		return nil
	})
	return validator.Validate()
}

// SetManagerDTO reassigns or clears (null) a manager.
type SetManagerDTO struct {
	ManagerID *int64 `json:"manager_id"`
}

type AddPoolMemberDTO struct {
	UserID int64 `json:"user_id"`
}

func (d AddPoolMemberDTO) Validate() *internal.AppError {
	validator := validation.NewValidator()
	validator.Field("user_id", d.UserID).Required()
	return validator.Validate()
}
