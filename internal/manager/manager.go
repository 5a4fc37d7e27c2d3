// ============================================================================
// Superpy Manager - Dispatch/Wait/Collect Pipeline
// ============================================================================
//
// Package: internal/manager
// File: manager.go
// Purpose: Drive a batch of caller-supplied elements through dispatch,
//          bounded-concurrency polling, and exactly-once result delivery
//
// Pipeline State Machine:
//   Dispatched (Handle obtained via DispatchFunc)
//      ↓ first Refresh()
//   Running (StartTime observed)
//      ↓ timeout breach → Kill()          ↓ Refresh() sees Finished
//   Invalid (unrecoverable poll error)   Finished → ResultFunc, removed
//
// State Transitions:
//   - Dispatched → Running: first successful Refresh with StartTime set
//   - Running → Finished: Refresh observes StatusRecord.Finished()
//   - Running → Invalid: a non-transient poll error manufactures an
//     Invalid handle instead of retrying forever
//   - Running (timeout breach) → Kill() issued, polling continues until
//     Finished or Invalid
//
// Concurrency:
//   The outstanding set is polled serially, one Refresh at a time
//   (waitForTasks' Threshold controls how much of the set must drain
//   per call); no shared mutable state is kept beyond the outstanding
//   slice owned by one ProcessElements call, so no package-level mutex
//   is needed here.
//
// ============================================================================
package manager

import (
	"context"
	"fmt"
	"time"

	"github.com/ChuLiYu/superpy/internal/endpoint"
	"github.com/ChuLiYu/superpy/internal/metrics"
	"github.com/ChuLiYu/superpy/internal/wire"
	"github.com/rs/zerolog"
)

// DispatchFunc turns one batch element into a live Handle, typically
// by calling Scheduler.SubmitToBestServer.
type DispatchFunc func(ctx context.Context, element interface{}) (endpoint.Handle, error)

// ResultFunc delivers one element's final, unwrapped result.
type ResultFunc func(element interface{}, result interface{})

// ExceptionFunc is invoked when a handle hits an unrecoverable
// (non-transient) error during polling, before the Invalid handle is
// manufactured. The default swallows and logs.
type ExceptionFunc func(handle endpoint.Handle, element interface{}, err error)

// Threshold selects when a wait phase stops draining the outstanding set.
type Threshold int

const (
	// ThresholdAny drains at least one pair before returning.
	ThresholdAny Threshold = iota
	// ThresholdAll drains every pair before returning.
	ThresholdAll
)

// pair is one outstanding (Handle, element) entry in the working set.
type pair struct {
	handle  endpoint.Handle
	element interface{}
}

// Manager drives batches through dispatch, wait, and cleanup.
type Manager struct {
	logger          zerolog.Logger
	m               *metrics.Collector
	refreshTimeout  time.Duration
	handleException ExceptionFunc
}

// New builds a Manager. handleException may be nil, which installs
// the default log-and-swallow hook.
func New(logger zerolog.Logger, m *metrics.Collector, refreshTimeout time.Duration, handleException ExceptionFunc) *Manager {
	if handleException == nil {
		handleException = func(handle endpoint.Handle, element interface{}, err error) {
			logger.Warn().Err(err).Msg("unrecoverable error polling handle, manufacturing invalid handle")
		}
	}
	return &Manager{
		logger:           logger,
		m:                m,
		refreshTimeout:   refreshTimeout,
		handleException:  handleException,
	}
}

// ProcessElements is the Manager's single entry point: it dispatches
// elements one at a time, running a wait phase after each
// dispatch that drains at least one finished handle before dispatching
// the next (natural backpressure, outstanding ≈ 1), then drains
// everything remaining after the batch is exhausted.
func (mgr *Manager) ProcessElements(ctx context.Context, elements []interface{}, dispatch DispatchFunc, result ResultFunc, maxTime time.Duration) error {
	outstanding := make([]pair, 0, 1)

	for i := 0; i < len(elements); i++ {
		h, err := dispatch(ctx, elements[i])
		if err != nil {
			return fmt.Errorf("dispatch element %d: %w", i, err)
		}
		outstanding = append(outstanding, pair{handle: h, element: elements[i]})

		outstanding, err = mgr.waitForTasks(ctx, outstanding, ThresholdAny, maxTime, result)
		if err != nil {
			return err
		}
	}

	_, err := mgr.waitForTasks(ctx, outstanding, ThresholdAll, maxTime, result)
	return err
}

// waitForTasks polls every outstanding pair until threshold is met,
// calling cleanupFinishedHandles on every pair it drains, and returns
// the pairs still outstanding.
func (mgr *Manager) waitForTasks(ctx context.Context, outstanding []pair, threshold Threshold, maxTime time.Duration, result ResultFunc) ([]pair, error) {
	for len(outstanding) > 0 {
		deadline := time.Now().Add(-maxTime) // evaluated fresh each sweep
		var finished []pair
		remaining := outstanding[:0:0]

		for _, p := range outstanding {
			newHandle, err := p.handle.Refresh(ctx, mgr.refreshTimeout)
			switch {
			case err == nil:
				status := newHandle.Status()
				if status.Finished() {
					finished = append(finished, pair{handle: newHandle, element: p.element})
					continue
				}
				if maxTime > 0 && status.StartTime != nil && status.StartTime.Before(deadline) {
					if killErr := newHandle.Kill(ctx); killErr != nil {
						mgr.logger.Warn().Err(killErr).Msg("kill on timeout breach failed")
					}
					if mgr.m != nil {
						mgr.m.IncKilled()
					}
				}
				remaining = append(remaining, pair{handle: newHandle, element: p.element})

			case wire.Transient(err):
				mgr.logger.Warn().Err(err).Msg("transient transport error during refresh, status assumed unchanged")
				remaining = append(remaining, p)

			default:
				mgr.handleException(p.handle, p.element, err)
				if mgr.m != nil {
					mgr.m.IncInvalidHandle()
				}
				invalid := endpoint.NewInvalidHandle(err.Error())
				finished = append(finished, pair{handle: invalid, element: p.element})
			}
		}

		outstanding = remaining
		if len(finished) > 0 {
			mgr.cleanupFinishedHandles(ctx, finished, result)
		}

		if threshold == ThresholdAny && len(finished) > 0 {
			return outstanding, nil
		}
		if threshold == ThresholdAll && len(outstanding) == 0 {
			return outstanding, nil
		}
		if len(finished) == 0 && len(outstanding) > 0 {
			// nothing finished this sweep; avoid a hot spin when every
			// handle is merely still running.
			select {
			case <-ctx.Done():
				return outstanding, ctx.Err()
			case <-time.After(50 * time.Millisecond):
			}
		}
	}
	return outstanding, nil
}

// cleanupFinishedHandles delivers each finished pair's unwrapped
// result and then cleans up server-side state. Cleanup failures are
// logged and swallowed so they never mask delivery.
func (mgr *Manager) cleanupFinishedHandles(ctx context.Context, finished []pair, result ResultFunc) {
	for _, p := range finished {
		status := p.handle.Status()
		decoded, err := wire.Unwrap(status.Result)
		if err != nil {
			mgr.logger.Warn().Err(err).Msg("failed to decode lazily-encoded result, delivering raw")
			decoded = status.Result
		}

		result(p.element, decoded)
		if mgr.m != nil {
			mgr.m.IncFinished()
		}

		if err := p.handle.Cleanup(ctx); err != nil {
			mgr.logger.Warn().Err(err).Msg("handle cleanup failed")
		}
	}
}
