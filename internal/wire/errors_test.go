package wire

import (
	"context"
	"net"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestTransientNil(t *testing.T) {
	assert.False(t, Transient(nil))
}

func TestTransientContextErrors(t *testing.T) {
	assert.True(t, Transient(context.DeadlineExceeded))
	assert.True(t, Transient(context.Canceled))
}

func TestTransientGRPCCodes(t *testing.T) {
	transient := []codes.Code{codes.Unavailable, codes.DeadlineExceeded, codes.Canceled, codes.ResourceExhausted, codes.Aborted}
	for _, c := range transient {
		err := status.Error(c, "boom")
		assert.True(t, Transient(err), "expected %s to be transient", c)
	}
}

func TestTransientGRPCNonTransientCodes(t *testing.T) {
	nonTransient := []codes.Code{codes.NotFound, codes.InvalidArgument, codes.PermissionDenied}
	for _, c := range nonTransient {
		err := status.Error(c, "nope")
		assert.False(t, Transient(err), "expected %s to not be transient", c)
	}
}

func TestTransientRawError(t *testing.T) {
	assert.True(t, Transient(&net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}))
}
