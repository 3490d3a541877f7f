package auth

import (
	"errors"
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"github.com/FACorreiaa/medical-record/internal/pkg/validate"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate checks the payload shape before any store access.
func (r RegisterRequest) Validate() error {
	return validate.Struct(&r,
		validation.Field(&r.Username,
			validation.Required,
			validation.Length(3, 30),
			validation.Match(usernamePattern).Error("letters, numbers, underscores only"),
		),
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 128)),
	)
}

// LoginRequest accepts either identifier. Username wins when both are sent.
type LoginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r LoginRequest) Validate() error {
	err := validation.ValidateStruct(&r,
		validation.Field(&r.Email, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
	if r.Username == "" && r.Email == "" {
		errs, _ := err.(validation.Errors)
		if errs == nil {
			errs = validation.Errors{}
		}
		errs["username"] = errors.New("username or email is required")
		err = errs
	}
	return validate.FieldErrors(err)
}
