package grpc

import (
	"errors"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/cryptox"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var statusMap = []struct {
	err  error
	code codes.Code
}{
	{common.ErrDuplicateAccount, codes.AlreadyExists},
	{common.ErrInvalidCredentials, codes.Unauthenticated},
	{common.ErrInvalidRefreshToken, codes.Unauthenticated},
	{common.ErrRefreshTokenExpired, codes.Unauthenticated},
	{common.ErrAccountNotFound, codes.NotFound},
	{cryptox.ErrEmptyPassword, codes.InvalidArgument},
}

// toStatus maps a service error to a gRPC status. Domain errors keep their
// message; anything else becomes an opaque Internal error.
func toStatus(err error) error {
	for _, m := range statusMap {
		if errors.Is(err, m.err) {
			return status.Error(m.code, m.err.Error())
		}
	}
	return status.Error(codes.Internal, "internal error")
}
