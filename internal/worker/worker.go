// ============================================================================
// Superpy Worker - Task Execution Unit
// ============================================================================
//
// Package: internal/worker
// File: worker.go
// Function: The Local Endpoint's in-process task runtime — a small
//           goroutine pool the scheduler starts on demand so single-box
//           usage needs no external setup
//
// How it works:
//   Each Worker is an independent goroutine running this loop:
//   1. Receive a Task from taskCh (blocking wait)
//   2. Execute it through an Executor, honoring task.Ctx
//   3. Send the Result to resultCh (non-blocking; drop if full)
//   4. Repeat until taskCh is closed
//
// Execution Model:
//   ┌─────────────────────────────────────┐
//   │  Worker Goroutine                   │
//   │  ┌──────────────────────────────┐   │
//   │  │ for task := range taskCh     │   │
//   │  │   ├─ ctx := task.Ctx          │   │
//   │  │   ├─ exec.Execute(ctx, ...)   │   │
//   │  │   └─ send Result to resultCh │   │
//   │  └──────────────────────────────┘   │
//   └─────────────────────────────────────┘
//
// Timeout Control:
//   task.Ctx carries whatever deadline/cancellation the caller set up
//   (the manager's timeout-breach kill cancels it); Worker itself never
//   constructs a timeout, it only forwards the context to Execute.
//
// Task Execution Logic:
//   Execute is the seam where a real application plugs in its own task
//   runtime. SimulatedExecutor stands in for it during local
//   smoke-testing of a fleet: random 0-500ms latency and a 10% failure
//   rate, just enough to exercise the full pending/running/finished
//   lifecycle.
//
// Error Handling:
//   - Timeout: ctx.Err() returns context.DeadlineExceeded
//   - Execution failure: Execute's own error is forwarded verbatim
//   - Both are encapsulated in Result.Err, never panicked
//
// ============================================================================
package worker

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// Executor runs one task's payload to completion, or returns early if
// ctx is cancelled (timeout breach or an explicit Kill).
type Executor interface {
	Execute(ctx context.Context, payload interface{}) (interface{}, error)
}

// SimulatedExecutor stands in for the real on-worker task runtime: a
// random 0-500ms delay and a 10% failure rate, just enough to exercise
// the full pending/running/finished lifecycle without depending on
// application-specific task semantics.
type SimulatedExecutor struct{}

func (SimulatedExecutor) Execute(ctx context.Context, payload interface{}) (interface{}, error) {
	workDuration := time.Duration(rand.Intn(500)) * time.Millisecond

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(workDuration):
		if rand.Intn(100) < 10 {
			return nil, errors.New("simulated execution failure")
		}
		return payload, nil
	}
}

// Worker is an independent goroutine that pulls tasks from a shared
// channel and runs them through an Executor.
type Worker struct {
	id       int
	taskCh   <-chan Task
	resultCh chan<- Result
	exec     Executor
}

func newWorker(id int, taskCh <-chan Task, resultCh chan<- Result, exec Executor) *Worker {
	return &Worker{id: id, taskCh: taskCh, resultCh: resultCh, exec: exec}
}

// Run is the Worker's main loop: receive, execute, report, repeat
// until taskCh is closed.
func (w *Worker) Run() {
	for task := range w.taskCh {
		start := time.Now()

		ctx := task.Ctx
		if ctx == nil {
			ctx = context.Background()
		}
		value, err := w.exec.Execute(ctx, task.Payload)

		result := Result{
			TaskID:   task.ID,
			Value:    value,
			Err:      err,
			Duration: time.Since(start),
		}

		select {
		case w.resultCh <- result:
		default:
			// Result channel full: the caller stopped draining
			// (resultCh is closed only after every Worker.Run has
			// returned, so it is never closed here). Dropping here
			// matches the bounded-buffer contract in worker_pool.go;
			// the server-side task registry still has the task's
			// last known status from the running transition.
		}
	}
}
