// Package endpoint defines the worker-endpoint contract and the
// Handle variants that the scheduler and manager depend on. Any
// transport implementing Endpoint is interchangeable;
// this package ships one concrete implementation, a gRPC-backed
// RemoteEndpoint, used for both remote fleet members and the local
// endpoint (which is just a RemoteEndpoint dialed over loopback).
package endpoint

import (
	"context"
	"time"

	"github.com/ChuLiYu/superpy/pkg/types"
)

// Method names as published by ListMethods. Workers publishing
// neither load method are unreachable for placement purposes.
const (
	MethodEstWaitTime   = "EstWaitTime"
	MethodCPULoad       = "CPULoad"
	MethodSubmit        = "Submit"
	MethodKill          = "Kill"
	MethodCleanup       = "Cleanup"
	MethodTerminate     = "Terminate"
	MethodShowQueue     = "ShowQueue"
	MethodCleanOldTasks = "CleanOldTasks"
)

// Endpoint is the only interface the scheduler and manager depend on
// to reach a worker, local or remote.
type Endpoint interface {
	// Key identifies this endpoint for registry and logging purposes.
	Key() types.EndpointKey

	// ListMethods returns the set of method names this worker
	// publishes, used both for liveness probing (see IsServerUp) and
	// backward-compat method discovery.
	ListMethods(ctx context.Context) (map[string]struct{}, error)

	// EstWaitTime queries the preferred load metric.
	EstWaitTime(ctx context.Context, priority types.Priority) (float64, error)

	// CPULoad queries the legacy load metric for workers predating
	// EstWaitTime.
	CPULoad(ctx context.Context) (float64, error)

	// Submit submits a task and returns a fresh live Handle.
	Submit(ctx context.Context, task types.Task, extra ...interface{}) (Handle, error)

	// ShowQueue returns a human-readable queue dump.
	ShowQueue(ctx context.Context) (string, error)

	// CleanOldTasks asks the worker to drop its finished-task
	// bookkeeping.
	CleanOldTasks(ctx context.Context) error

	// Terminate is a fire-and-forget shutdown request.
	Terminate(ctx context.Context) error
}

// Handle is a polymorphic reference to one submitted task: either a
// live handle bound to an endpoint and server-side task id, or a
// synthetic invalid handle manufactured by the manager to carry an
// unrecoverable error forward as a normal completion. It is a tagged
// variant, not an inheritance hierarchy.
type Handle interface {
	// Status returns the last known status record without making an
	// RPC call.
	Status() types.StatusRecord

	// Refresh polls the endpoint for the latest status and returns a
	// new Handle carrying it. The receiver is never mutated in place.
	Refresh(ctx context.Context, timeout time.Duration) (Handle, error)

	// Kill asks the endpoint to terminate the task early. No-op on an
	// invalid handle.
	Kill(ctx context.Context) error

	// Cleanup releases any server-side bookkeeping for this task.
	// No-op on an invalid handle. Must be called at most once.
	Cleanup(ctx context.Context) error

	// IsInvalid reports whether this is a synthetic error handle.
	IsInvalid() bool
}
