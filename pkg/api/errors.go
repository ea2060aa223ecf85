package api

import (
	"context"
	"errors"
	"fmt"

	"github.com/cuemby/googol/pkg/types"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ToStatus maps domain errors onto gRPC status codes
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, types.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, types.ErrUnavailable), errors.Is(err, types.ErrNoBarrels):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	default:
		return status.Error(codes.Unknown, err.Error())
	}
}

// FromStatus turns a gRPC status back into a domain error that still
// carries the status, so both errors.Is and status.Code work on it.
func FromStatus(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}

	switch st.Code() {
	case codes.NotFound:
		return &statusError{st: st, sentinel: types.ErrNotFound}
	case codes.Unavailable:
		return &statusError{st: st, sentinel: types.ErrUnavailable}
	case codes.DeadlineExceeded:
		return &statusError{st: st, sentinel: context.DeadlineExceeded}
	case codes.Canceled:
		return &statusError{st: st, sentinel: context.Canceled}
	}
	return err
}

type statusError struct {
	st       *status.Status
	sentinel error
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%s: %s", e.sentinel, e.st.Message())
}

func (e *statusError) Unwrap() error { return e.sentinel }

func (e *statusError) GRPCStatus() *status.Status { return e.st }
