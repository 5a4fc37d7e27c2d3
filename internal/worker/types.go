package worker

import (
	"context"
	"time"
)

// Task is the unit of work pushed into a local Pool by the
// self-hosted endpoint. Ctx carries both the per-task timeout and a
// cancel path: the endpoint's Kill RPC cancels it directly, which is
// how a manager's timeout-breach kill reaches an in-flight task.
type Task struct {
	ID      string
	Payload interface{}
	Ctx     context.Context
}

// Result is what a Worker reports back after running a Task.
type Result struct {
	TaskID   string
	Value    interface{}
	Err      error
	Duration time.Duration
}
