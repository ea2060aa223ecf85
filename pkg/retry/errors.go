package retry

import (
	"context"
	"errors"
	"net"
	"syscall"

	"github.com/cuemby/googol/pkg/types"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// IsConnectionRefused reports whether err means the peer is gone rather than
// that it answered with a failure.
func IsConnectionRefused(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, types.ErrUnavailable) || errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	var se interface{ GRPCStatus() *status.Status }
	if errors.As(err, &se) {
		return se.GRPCStatus().Code() == codes.Unavailable
	}
	return false
}

// IsTimeout reports whether err is a deadline or network timeout
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	var se interface{ GRPCStatus() *status.Status }
	if errors.As(err, &se) {
		return se.GRPCStatus().Code() == codes.DeadlineExceeded
	}
	return false
}

// IsTransient reports whether err is worth retrying (unreachable peer or timeout)
func IsTransient(err error) bool {
	return IsConnectionRefused(err) || IsTimeout(err)
}
