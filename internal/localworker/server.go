// ============================================================================
// Superpy Local Worker - Self-Hosted Endpoint Server
// ============================================================================
//
// Package: internal/localworker
// File: server.go
// Purpose: Server side of the Local Endpoint — a wire.EndpointServer
//          backed by an internal/worker.Pool, so the self-hosted worker
//          the scheduler spawns on demand speaks the exact same RPC
//          contract a remote fleet member does
//
// Architecture Components:
//
//   ┌────────────┐   wire.EndpointServer   ┌─────────┐
//   │ Scheduler  │ ──────────────────────→ │ Server  │
//   │ (local)    │ ←────────────────────── │ (this)  │
//   └────────────┘                         └────┬────┘
//                                                │ Submit/Status/Refresh/Kill
//                                                ↓
//                                         ┌─────────────┐
//                                         │ worker.Pool │
//                                         └─────────────┘
//
// Method Catalog:
//   DefaultMethods lists every RPC this Server answers. A narrower
//   methods set can be configured to simulate an older worker that only
//   publishes CPULoad, for backward-compat testing against a fleet with
//   mixed worker generations.
//
// Concurrency Control:
//   mu (sync.Mutex) protects the task registry (taskEntry map); pool
//   itself owns the concurrency of task execution.
//
// Graceful Shutdown:
//   Terminate only closes the Terminated channel; Submit keeps accepting
//   tasks after it. The owner then calls Shutdown, which stops the pool
//   and waits for running workers to return. Neither cancels a task's
//   context: only Kill does, via taskEntry.cancel.
//
// ============================================================================
package localworker

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ChuLiYu/superpy/internal/wire"
	"github.com/ChuLiYu/superpy/internal/worker"
	"github.com/ChuLiYu/superpy/pkg/types"
	"github.com/rs/zerolog"
)

// DefaultMethods is the full, current-generation method catalog. A
// Server can be configured with a narrower set to simulate an older
// worker that only publishes CPULoad, for backward-compat testing.
var DefaultMethods = []string{
	"ListMethods", "EstWaitTime", "CPULoad", "Submit", "Status", "Refresh",
	"Kill", "Cleanup", "ShowQueue", "CleanOldTasks", "Terminate",
}

type taskEntry struct {
	status types.StatusRecord
	cancel context.CancelFunc
}

// Server is a self-hosted wire.EndpointServer. It is safe for
// concurrent RPC dispatch.
type Server struct {
	pool     *worker.Pool
	methods  map[string]struct{}
	logger   zerolog.Logger
	mu       sync.Mutex
	tasks    map[string]*taskEntry
	nextID   uint64
	term     chan struct{}
	termOnce sync.Once
}

// NewServer starts workerCount Worker goroutines running exec and
// returns a ready Server. methods overrides DefaultMethods when
// non-nil, to simulate a legacy worker in tests.
func NewServer(workerCount, bufferSize int, exec worker.Executor, methods []string, logger zerolog.Logger) *Server {
	if methods == nil {
		methods = DefaultMethods
	}
	set := make(map[string]struct{}, len(methods))
	for _, m := range methods {
		set[m] = struct{}{}
	}

	s := &Server{
		pool:    worker.NewPool(bufferSize),
		methods: set,
		logger:  logger,
		tasks:   make(map[string]*taskEntry),
		term:    make(chan struct{}),
	}
	_ = s.pool.Start(workerCount, exec)
	go s.collect()
	return s
}

// Terminated is closed once Terminate has been called, so the owner
// (internal/scheduler.Scheduler) can stop the gRPC server and drain
// the pool.
func (s *Server) Terminated() <-chan struct{} { return s.term }

// Shutdown stops the worker pool. Safe to call after Terminate.
func (s *Server) Shutdown() {
	s.pool.Stop()
}

func (s *Server) collect() {
	for {
		res, err := s.pool.ReceiveResult()
		if err != nil {
			return
		}
		s.mu.Lock()
		entry, ok := s.tasks[res.TaskID]
		if ok {
			result := res.Value
			if res.Err != nil {
				result = res.Err.Error()
			}
			entry.status = types.StatusRecord{
				Mode:      types.ModeFinished,
				StartTime: entry.status.StartTime,
				Result:    result,
			}
		}
		s.mu.Unlock()
	}
}

func (s *Server) load() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.tasks {
		if e.status.Mode != types.ModeFinished {
			n++
		}
	}
	return float64(n)
}

func (s *Server) ListMethods(ctx context.Context, req *wire.Empty) (*wire.MethodListResp, error) {
	methods := make([]string, 0, len(s.methods))
	for m := range s.methods {
		methods = append(methods, m)
	}
	return &wire.MethodListResp{Methods: methods}, nil
}

func (s *Server) EstWaitTime(ctx context.Context, req *wire.PriorityReq) (*wire.LoadResp, error) {
	return &wire.LoadResp{Load: s.load()}, nil
}

func (s *Server) CPULoad(ctx context.Context, req *wire.Empty) (*wire.LoadResp, error) {
	return &wire.LoadResp{Load: s.load()}, nil
}

func (s *Server) Submit(ctx context.Context, req *wire.SubmitReq) (*wire.SubmitResp, error) {
	if req.Task.Name == "" {
		return nil, fmt.Errorf("task must have a name")
	}
	payload, err := req.Task.Payload.Extract()
	if err != nil {
		return nil, fmt.Errorf("decode task payload: %w", err)
	}

	id := strconv.FormatUint(atomic.AddUint64(&s.nextID, 1), 10)
	taskCtx, cancel := context.WithCancel(context.Background())
	now := time.Now()

	s.mu.Lock()
	s.tasks[id] = &taskEntry{
		status: types.StatusRecord{Mode: types.ModeRunning, StartTime: &now},
		cancel: cancel,
	}
	s.mu.Unlock()

	if err := s.pool.Submit(worker.Task{ID: id, Payload: payload, Ctx: taskCtx}); err != nil {
		s.mu.Lock()
		delete(s.tasks, id)
		s.mu.Unlock()
		cancel()
		return nil, err
	}

	s.logger.Debug().Str("task_id", id).Str("task_name", req.Task.Name).Msg("submitted task to local worker pool")
	return &wire.SubmitResp{TaskID: id}, nil
}

func (s *Server) statusResp(id string) (*wire.StatusResp, error) {
	s.mu.Lock()
	entry, ok := s.tasks[id]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unknown task id %q", id)
	}

	resp := &wire.StatusResp{Mode: string(entry.status.Mode)}
	if entry.status.StartTime != nil {
		resp.StartTime = entry.status.StartTime.UnixNano()
	}
	if entry.status.Mode == types.ModeFinished {
		env, err := wire.NewEncodedEnvelope(entry.status.Result)
		if err != nil {
			return nil, err
		}
		resp.HasResult = true
		resp.Result = env
	}
	return resp, nil
}

func (s *Server) Status(ctx context.Context, req *wire.HandleRef) (*wire.StatusResp, error) {
	return s.statusResp(req.TaskID)
}

func (s *Server) Refresh(ctx context.Context, req *wire.HandleRef) (*wire.StatusResp, error) {
	return s.statusResp(req.TaskID)
}

func (s *Server) Kill(ctx context.Context, req *wire.HandleRef) (*wire.Empty, error) {
	s.mu.Lock()
	entry, ok := s.tasks[req.TaskID]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unknown task id %q", req.TaskID)
	}
	entry.cancel()
	return &wire.Empty{}, nil
}

func (s *Server) Cleanup(ctx context.Context, req *wire.HandleRef) (*wire.Empty, error) {
	s.mu.Lock()
	delete(s.tasks, req.TaskID)
	s.mu.Unlock()
	return &wire.Empty{}, nil
}

func (s *Server) ShowQueue(ctx context.Context, req *wire.Empty) (*wire.QueueDumpResp, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	dump := fmt.Sprintf("%d task(s) tracked\n", len(s.tasks))
	for id, e := range s.tasks {
		dump += fmt.Sprintf("  %s: %s\n", id, e.status.Mode)
	}
	return &wire.QueueDumpResp{Dump: dump}, nil
}

func (s *Server) CleanOldTasks(ctx context.Context, req *wire.Empty) (*wire.Empty, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.tasks {
		if e.status.Mode == types.ModeFinished {
			delete(s.tasks, id)
		}
	}
	return &wire.Empty{}, nil
}

func (s *Server) Terminate(ctx context.Context, req *wire.Empty) (*wire.Empty, error) {
	s.termOnce.Do(func() { close(s.term) })
	return &wire.Empty{}, nil
}
