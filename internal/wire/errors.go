package wire

import (
	"context"
	"errors"
	"net"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Transient reports whether err represents a socket-level/transport
// failure that should be treated as "status unchanged" and retried
// next sweep, rather than an unrecoverable per-task fault.
// Deadline/cancellation, connectivity-class gRPC codes and raw
// network (net.Error) failures are transient; anything else (including
// a well-formed error response from the worker) is not.
func Transient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	st, ok := status.FromError(err)
	if !ok {
		// not a gRPC status at all: transient only if it is a raw
		// dial/socket error
		var netErr net.Error
		return errors.As(err, &netErr)
	}
	switch st.Code() {
	case codes.Unavailable, codes.DeadlineExceeded, codes.Canceled,
		codes.ResourceExhausted, codes.Aborted:
		return true
	default:
		return false
	}
}
