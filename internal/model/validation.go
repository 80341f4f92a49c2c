package model

import (
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// Validate checks the login form before it reaches the identity service.
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

// Validate only checks presence and shape. Password rules stay with the
// identity service so their errors keep their own kinds.
func (r RegisterRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&r.Password, validation.Required),
		validation.Field(&r.ConfirmPassword, validation.Required),
		validation.Field(&r.Name, validation.Required, validation.Length(1, 120)),
		validation.Field(&r.Role, validation.Required, validation.In(roleValues()...)),
		validation.Field(&r.SchoolID, validation.Length(0, 64)),
	)
}

func (r ThemeRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Theme, validation.Required,
			validation.In(string(ThemeLight), string(ThemeDark), string(ThemeSystem))),
	)
}

func roleValues() []interface{} {
	values := make([]interface{}, 0, len(Roles))
	for _, role := range Roles {
		values = append(values, role)
	}
	return values
}
