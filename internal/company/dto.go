package company

import (
	"regexp"
	"strings"

	"github.com/frahmantamala/expense-approval/internal"
	"github.com/frahmantamala/expense-approval/internal/auth"
	"github.com/frahmantamala/expense-approval/internal/core/common/validation"
	"github.com/frahmantamala/expense-approval/internal/user"
)

// SignupDTO is the payload of POST /signup.
type SignupDTO struct {
	CompanyName string `json:"company_name"`
	Country     string `json:"country"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Password    string `json:"password"`
}

var countryPattern = regexp.MustCompile(`^[A-Z]{2}$`)

func (d *SignupDTO) Normalize() {
	d.CompanyName = strings.TrimSpace(d.CompanyName)
	d.Country = strings.ToUpper(strings.TrimSpace(d.Country))
	d.Name = strings.TrimSpace(d.Name)
	d.Email = strings.ToLower(strings.TrimSpace(d.Email))
	if d.Name == "" {
		d.Name = d.Email
	}
}

func (d SignupDTO) Validate() *internal.AppError {
	validator := validation.NewValidator()
	validator.Field("company_name", d.CompanyName).Required().MaxLength(255)
	validator.Field("country", d.Country).Required().
		Matches(countryPattern, "country must be a two-letter country code", internal.ErrCodeValidationFailed)
	validator.Field("email", d.Email).Required().Email().MaxLength(255)
	validator.Field("password", d.Password).Required().MinLength(8).MaxLength(72)
	return validator.Validate()
}

type SignupResponse struct {
	Company *Company        `json:"company"`
	Admin   *user.User      `json:"admin"`
	Tokens  auth.AuthTokens `json:"tokens"`
}
