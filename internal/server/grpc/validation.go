package grpc

import (
	"fmt"

	"github.com/dmitrijs2005/gophauth/internal/api"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	maxEmailLen      = 254
	maxPasswordBytes = 72 // bcrypt limit
	maxNameLen       = 100
	maxGenderLen     = 32
	maxSecretLen     = 512
)

func validateRegister(req *api.RegisterRequest) error {
	return invalid(validation.ValidateStruct(req,
		validation.Field(&req.Email, validation.Required, validation.Length(3, maxEmailLen), is.Email),
		validation.Field(&req.Password, validation.Required, validation.By(maxBytes(maxPasswordBytes))),
		validation.Field(&req.FirstName, validation.Required, validation.Length(1, maxNameLen)),
		validation.Field(&req.LastName, validation.Required, validation.Length(1, maxNameLen)),
		validation.Field(&req.Gender, validation.Length(0, maxGenderLen)),
	))
}

func validateLogin(req *api.LoginRequest) error {
	return invalid(validation.ValidateStruct(req,
		validation.Field(&req.Email, validation.Required, validation.Length(3, maxEmailLen)),
		validation.Field(&req.Password, validation.Required, validation.By(maxBytes(maxPasswordBytes))),
	))
}

func validateRefreshToken(token *string) error {
	return invalid(validation.Validate(*token, validation.Required, validation.Length(1, maxSecretLen)))
}

func validateID(id *string) error {
	return invalid(validation.Validate(*id, validation.Required, is.UUID))
}

func validateUpdate(req *api.UpdateUserRequest) error {
	return invalid(validation.ValidateStruct(req,
		validation.Field(&req.ID, validation.Required, is.UUID),
		validation.Field(&req.Email, validation.Required, validation.Length(3, maxEmailLen), is.Email),
		validation.Field(&req.FirstName, validation.Required, validation.Length(1, maxNameLen)),
		validation.Field(&req.LastName, validation.Required, validation.Length(1, maxNameLen)),
		validation.Field(&req.Gender, validation.Length(0, maxGenderLen)),
	))
}

func invalid(err error) error {
	if err == nil {
		return nil
	}
	return status.Error(codes.InvalidArgument, err.Error())
}

func maxBytes(n int) validation.RuleFunc {
	return func(value interface{}) error {
		if s, ok := value.(string); ok && len(s) > n {
			return fmt.Errorf("must be at most %d bytes", n)
		}
		return nil
	}
}
