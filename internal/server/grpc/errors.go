package grpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/userledger/internal/common"
	"github.com/dmitrijs2005/userledger/internal/kv"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// toStatus maps registry errors to gRPC codes. Errors that already carry a
// status pass through.
func toStatus(err error) error {
	if _, ok := status.FromError(err); ok {
		return err
	}

	var code codes.Code
	switch {
	case errors.Is(err, common.ErrNotAuthorized):
		code = codes.PermissionDenied
	case errors.Is(err, common.ErrUserExists), errors.Is(err, common.ErrAlreadyInstantiated):
		code = codes.AlreadyExists
	case errors.Is(err, common.ErrUserNotFound), errors.Is(err, common.ErrSessionNotFound):
		code = codes.NotFound
	case errors.Is(err, common.ErrSessionExpired), errors.Is(err, common.ErrNotInstantiated):
		code = codes.FailedPrecondition
	case errors.Is(err, common.ErrInvalidAddress), errors.Is(err, common.ErrInvalidRequest):
		code = codes.InvalidArgument
	case errors.Is(err, kv.ErrConflict):
		code = codes.Aborted
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	default:
		return status.Error(codes.Internal, "internal error")
	}
	return status.Error(code, err.Error())
}
