// ============================================================================
// Superpy Scheduler - Fleet Registry and Placement Coordinator
// ============================================================================
//
// Package: internal/scheduler
// File: scheduler.go
// Purpose: Central coordinator for endpoint registration, liveness, and
//          load-aware task placement
//
// Architecture Components:
//
//   ┌─────────────┐      dial/probe      ┌──────────────┐
//   │  Scheduler   │ ───────────────────→ │  Endpoint(s) │
//   │  (registry)  │ ←─────────────────── │  (remote)    │
//   └──────┬───────┘      IsServerUp      └──────────────┘
//          │
//          │ spawn on demand
//          ↓
//   ┌──────────────┐
//   │ local worker │
//   │ grpc server  │
//   └──────────────┘
//
// Responsibilities:
//   1. Registry - Hold one Endpoint per configured (host, port) key
//   2. Liveness - Probe IsServerUp before considering an endpoint for
//      placement
//   3. Local spawn - Start an in-process localworker.Server and dial it
//      as any other endpoint when ConnectToLocalServer is used
//   4. Placement - SubmitToBestServer picks the least-loaded reachable
//      endpoint and dispatches exactly one task to it
//
// Concurrency Control:
//   mu (sync.RWMutex) protects the registry map and order slice.
//   AllHosts/Connection take the read lock; registry mutation (spawning
//   the local server) takes the write lock. SubmitToBestServer itself
//   holds no lock across the network round trips it makes.
//
// Error Handling:
//   ErrDuplicateEndpoint during New means two specs canonicalize to the
//   same key — a configuration bug caught before any dial. ErrUnknownEndpoint
//   means the caller asked Connection for a (host, port) never registered.
//   ErrLocalUnreachable means a freshly spawned local endpoint still
//   doesn't answer after the grace period.
//
// ============================================================================
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/ChuLiYu/superpy/internal/endpoint"
	"github.com/ChuLiYu/superpy/internal/localworker"
	"github.com/ChuLiYu/superpy/internal/metrics"
	"github.com/ChuLiYu/superpy/internal/wire"
	"github.com/ChuLiYu/superpy/internal/worker"
	"github.com/ChuLiYu/superpy/pkg/types"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrDuplicateEndpoint is a configuration error: two specs resolved to
// the same (host, port) key.
var ErrDuplicateEndpoint = errors.New("duplicate endpoint in configuration")

// ErrLocalUnreachable is returned by ConnectToLocalServer when the
// freshly spawned local endpoint still does not answer after the
// grace period.
var ErrLocalUnreachable = errors.New("local endpoint unreachable after spawn")

// ErrUnknownEndpoint is returned by Connection for any (host, port)
// that is neither a registered remote endpoint nor the local endpoint
// key; a registry miss is a programming error, not something silently
// re-dialed.
var ErrUnknownEndpoint = errors.New("endpoint not registered")

// Scheduler holds the endpoint registry and implements load-aware
// placement. It is safe for concurrent use: AllHosts/Connection may be
// called while SubmitToBestServer is running.
type Scheduler struct {
	cfg    Config
	logger zerolog.Logger
	m      *metrics.Collector

	mu       sync.RWMutex
	order    []types.EndpointKey
	registry map[types.EndpointKey]endpoint.Endpoint
	localKey types.EndpointKey

	localServer *grpc.Server
	localWorker *localworker.Server
}

// New dials every endpoint in cfg.Endpoints and returns a ready
// Scheduler. Duplicate keys (after "localhost" canonicalization) fail
// with ErrDuplicateEndpoint before any dial happens.
func New(ctx context.Context, cfg Config, logger zerolog.Logger, m *metrics.Collector) (*Scheduler, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("resolve local hostname: %w", err)
	}

	canon := func(host string) string {
		if host == "localhost" || host == "" {
			return hostname
		}
		return host
	}

	keys := make([]types.EndpointKey, 0, len(cfg.Endpoints))
	seen := make(map[types.EndpointKey]struct{}, len(cfg.Endpoints))
	for _, spec := range cfg.Endpoints {
		port := spec.Port
		if port == 0 {
			port = DefaultPort
		}
		key := types.EndpointKey{Host: canon(spec.Host), Port: port}
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateEndpoint, key)
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}

	s := &Scheduler{
		cfg:      cfg,
		logger:   logger,
		m:        m,
		order:    keys,
		registry: make(map[types.EndpointKey]endpoint.Endpoint, len(keys)),
		localKey: types.EndpointKey{Host: canon(cfg.LocalHost), Port: cfg.LocalPort},
	}

	for _, key := range keys {
		ep, err := endpoint.Dial(ctx, key)
		if err != nil {
			return nil, err
		}
		s.registry[key] = ep
	}

	return s, nil
}

// Connection resolves (host, port) to a registered Endpoint.
// "localhost" is canonicalized exactly as in New. A miss against the
// local key lazily dials a client (the connection itself does not
// block on the server being up — see IsServerUp); a miss against
// anything else is ErrUnknownEndpoint — the registry is authoritative.
func (s *Scheduler) Connection(host string, port int) (endpoint.Endpoint, error) {
	if host == "localhost" || host == "" {
		host = s.localKey.Host
	}
	if port == 0 {
		port = DefaultPort
	}
	key := types.EndpointKey{Host: host, Port: port}

	s.mu.RLock()
	ep, ok := s.registry[key]
	s.mu.RUnlock()
	if ok {
		return ep, nil
	}
	if key != s.localKey {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEndpoint, key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if ep, ok := s.registry[key]; ok {
		return ep, nil
	}
	ep, err := endpoint.Dial(context.Background(), key)
	if err != nil {
		return nil, err
	}
	s.registry[key] = ep
	return ep, nil
}

// IsServerUp treats list_methods as a liveness ping: any error is
// down, any successful response is up.
func (s *Scheduler) IsServerUp(ctx context.Context, ep endpoint.Endpoint) bool {
	_, err := ep.ListMethods(ctx)
	return err == nil
}

// ConnectToLocalServer resolves the local endpoint, spawning an
// in-process worker if it is not already answering, and returns a
// live connection once reachable.
func (s *Scheduler) ConnectToLocalServer(ctx context.Context) (endpoint.Endpoint, error) {
	ep, err := s.Connection(s.localKey.Host, s.localKey.Port)
	if err != nil {
		return nil, err
	}

	probeCtx, cancel := context.WithTimeout(ctx, s.cfg.LoadTimeout)
	up := s.IsServerUp(probeCtx, ep)
	cancel()
	if up {
		return ep, nil
	}

	if err := s.spawnLocalEndpoint(); err != nil {
		return nil, fmt.Errorf("spawn local endpoint: %w", err)
	}
	s.logger.Info().Str("endpoint", s.localKey.String()).Msg("spawned local endpoint, waiting grace period")

	select {
	case <-time.After(s.cfg.LocalGracePeriod):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	probeCtx, cancel = context.WithTimeout(ctx, s.cfg.LoadTimeout)
	up = s.IsServerUp(probeCtx, ep)
	cancel()
	if !up {
		return nil, fmt.Errorf("%w: %s", ErrLocalUnreachable, s.localKey)
	}
	return ep, nil
}

func (s *Scheduler) spawnLocalEndpoint() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.localServer != nil {
		return nil
	}

	lis, err := net.Listen("tcp", s.localKey.String())
	if err != nil {
		return err
	}

	srv := localworker.NewServer(s.cfg.LocalWorkerCount, s.cfg.LocalBufferSize, worker.SimulatedExecutor{}, nil, s.logger)
	grpcServer := grpc.NewServer()
	grpcServer.RegisterService(&wire.ServiceDesc, srv)

	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			s.logger.Debug().Err(err).Msg("local endpoint server stopped")
		}
	}()

	s.localServer = grpcServer
	s.localWorker = srv
	return nil
}

// AllHosts returns the sorted, deduplicated union of the configured
// endpoints and the local endpoint (included only if it is currently
// up), sorted by host then port.
func (s *Scheduler) AllHosts(ctx context.Context) []types.EndpointKey {
	s.mu.RLock()
	keys := make([]types.EndpointKey, len(s.order))
	copy(keys, s.order)
	localEp, hasLocal := s.registry[s.localKey]
	s.mu.RUnlock()

	seen := make(map[types.EndpointKey]struct{}, len(keys)+1)
	out := make([]types.EndpointKey, 0, len(keys)+1)
	for _, k := range keys {
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}

	if hasLocal {
		if _, dup := seen[s.localKey]; !dup && s.IsServerUp(ctx, localEp) {
			out = append(out, s.localKey)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// candidate is one endpoint's placement-time load observation.
type candidate struct {
	key  types.EndpointKey
	ep   endpoint.Endpoint
	load float64
}

// SubmitToBestServer implements the placement algorithm: query every
// endpoint's load, demote unreachable ones with a warning, pick the
// minimum, submit there.
func (s *Scheduler) SubmitToBestServer(ctx context.Context, task types.Task, extra ...interface{}) (endpoint.Handle, error) {
	if task.Name == "" {
		return nil, fmt.Errorf("task must have a name")
	}

	start := time.Now()
	if s.m != nil {
		defer func() { s.m.ObservePlacementLatency(time.Since(start).Seconds()) }()
	}

	s.mu.RLock()
	order := make([]types.EndpointKey, len(s.order))
	copy(order, s.order)
	registry := make(map[types.EndpointKey]endpoint.Endpoint, len(s.registry))
	for k, v := range s.registry {
		registry[k] = v
	}
	s.mu.RUnlock()

	candidates := make([]candidate, 0, len(order))
	for _, key := range order {
		ep := registry[key]
		callCtx, cancel := context.WithTimeout(ctx, s.cfg.LoadTimeout)
		load, ok, err := s.probeLoad(callCtx, ep, task.Priority)
		cancel()
		if err != nil {
			s.logger.Warn().Str("endpoint", key.String()).Err(err).Msg("endpoint demoted to unreachable during placement")
			if s.m != nil {
				s.m.ObserveEndpointDown(key.String())
			}
			continue
		}
		if !ok {
			s.logger.Warn().Str("endpoint", key.String()).Msg("endpoint publishes neither EstWaitTime nor CPULoad, skipping")
			continue
		}
		if s.m != nil {
			s.m.ObserveEndpointUp(key.String())
			s.m.ObserveLoad(key.String(), load)
		}
		candidates = append(candidates, candidate{key: key, ep: ep, load: load})
	}

	if len(candidates) == 0 {
		return nil, fmt.Errorf("no server reachable within %s timeout window", s.cfg.LoadTimeout)
	}

	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].load < candidates[j].load })
	best := candidates[0]

	h, err := best.ep.Submit(ctx, task, extra...)
	if err != nil {
		return nil, err
	}
	if s.m != nil {
		s.m.IncDispatched(best.key.String())
	}
	return h, nil
}

// probeLoad fetches the method catalog and queries whichever load
// method the endpoint publishes, preferring EstWaitTime over the
// legacy CPULoad.
func (s *Scheduler) probeLoad(ctx context.Context, ep endpoint.Endpoint, priority types.Priority) (load float64, ok bool, err error) {
	methods, err := ep.ListMethods(ctx)
	if err != nil {
		return 0, false, err
	}
	if _, has := methods[endpoint.MethodEstWaitTime]; has {
		load, err := ep.EstWaitTime(ctx, priority)
		return load, true, err
	}
	if _, has := methods[endpoint.MethodCPULoad]; has {
		load, err := ep.CPULoad(ctx)
		return load, true, err
	}
	return 0, false, nil
}

// PeekLoad resolves (host, port) and queries whichever load method it
// publishes, without taking part in placement. Used by operator
// tooling to print a live snapshot of fleet load.
func (s *Scheduler) PeekLoad(ctx context.Context, host string, port int) (float64, error) {
	ep, err := s.Connection(host, port)
	if err != nil {
		return 0, err
	}
	callCtx, cancel := context.WithTimeout(ctx, s.cfg.LoadTimeout)
	defer cancel()
	load, ok, err := s.probeLoad(callCtx, ep, 0)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("endpoint %s publishes neither EstWaitTime nor CPULoad", types.EndpointKey{Host: host, Port: port})
	}
	return load, nil
}

// ShowQueue is a thin timeout-bounded passthrough; a timeout is
// non-fatal and returns an empty dump.
func (s *Scheduler) ShowQueue(ctx context.Context, host string, port int, timeout time.Duration) (string, error) {
	ep, err := s.Connection(host, port)
	if err != nil {
		return "", err
	}
	if timeout <= 0 {
		timeout = s.cfg.ShowQueueTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	dump, err := ep.ShowQueue(callCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || status.Code(err) == codes.DeadlineExceeded {
			s.logger.Warn().Str("endpoint", types.EndpointKey{Host: host, Port: port}.String()).Msg("show_queue timed out")
			return "", nil
		}
		return "", err
	}
	return dump, nil
}

// CleanOldTasks is a thin passthrough to the named endpoint.
func (s *Scheduler) CleanOldTasks(ctx context.Context, host string, port int) error {
	ep, err := s.Connection(host, port)
	if err != nil {
		return err
	}
	return ep.CleanOldTasks(ctx)
}

// Close tears down the local endpoint if it was spawned: it sends
// terminate, waits until the local worker has received it or the grace
// period elapses (whichever comes first), then stops the local pool and
// the gRPC server. Go has no destructors, so
// callers must invoke this explicitly (typically via defer).
func (s *Scheduler) Close(ctx context.Context) error {
	s.mu.Lock()
	srv := s.localServer
	lw := s.localWorker
	localEp, hasLocal := s.registry[s.localKey]
	s.mu.Unlock()

	if srv == nil {
		return nil
	}

	if hasLocal {
		termCtx, cancel := context.WithTimeout(ctx, s.cfg.RefreshTimeout)
		if err := localEp.Terminate(termCtx); err != nil {
			s.logger.Warn().Err(err).Msg("terminate local endpoint failed")
		}
		cancel()
	}

	select {
	case <-lw.Terminated():
	case <-time.After(s.cfg.LocalGracePeriod):
	}

	lw.Shutdown()
	srv.GracefulStop()
	return nil
}
