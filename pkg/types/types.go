// ============================================================================
// Superpy Core Type Definitions
// ============================================================================
//
// Package: pkg/types
// Purpose: Core domain models shared by the scheduler, the manager, and
//          the wire transport
//
// Design Principles:
//   1. Domain-Driven Design (DDD) - Dispatch concepts as types, not
//      bare strings/maps
//   2. Type Safety - Priority/Mode/EndpointKey prevent primitive
//      obsession at package boundaries
//   3. Opacity at the edges - Task.Payload and StatusRecord.Result are
//      left as interface{}; serialization of either is out of scope
//      for this package
//
// Core Types:
//   - Task: caller-submitted unit of work (Name, Priority, Payload)
//   - EndpointKey: (host, port) identity of one worker endpoint
//   - Mode / StatusRecord: lifecycle state a worker reports for a handle
//
// Usage:
//   - scheduler: placement, registry keys
//   - endpoint/wire: RPC argument and result types
//   - manager/handle: polling loop reads StatusRecord.Mode/Result
//
// Timestamps:
//   StartTime uses time.Time rather than a Unix integer — this package
//   has no wire format of its own to keep portable, and callers that do
//   serialize (wire.StatusResp, as unix nanoseconds) convert explicitly.
//
// ============================================================================
package types

import (
	"strconv"
	"time"
)

// Priority is an orderable scalar hint passed to workers so they can
// estimate wait time. The core never interprets the scale itself; it
// only needs to be comparable and forwardable to a worker.
type Priority float64

// Task is the opaque payload the caller submits. The core only
// observes Name and Priority; Payload is forwarded to the worker
// without interpretation — serialization of Payload is out of scope
// for this module.
type Task struct {
	Name     string      // Display name, used for logging and CLI output
	Priority Priority    // Forwarded to the worker as a wait-time hint
	Payload  interface{} // Opaque; never interpreted by scheduler/manager
}

// EndpointKey is the immutable (host, port) pair identifying one
// worker endpoint. Host "localhost" must already be canonicalized to
// the machine's hostname by the time a key reaches the registry.
type EndpointKey struct {
	Host string
	Port int
}

func (k EndpointKey) String() string {
	return k.Host + ":" + strconv.Itoa(k.Port)
}

// Less orders keys lexicographically by host, then numeric by port.
func (k EndpointKey) Less(other EndpointKey) bool {
	if k.Host != other.Host {
		return k.Host < other.Host
	}
	return k.Port < other.Port
}

// Mode is the lifecycle stage of a submitted task as reported by a
// worker's status record. Once Finished is observed it never reverts.
type Mode string

const (
	ModePending  Mode = "pending"
	ModeRunning  Mode = "running"
	ModeFinished Mode = "finished"
)

// StatusRecord is the unordered status mapping a worker reports for a
// handle. StartTime is present only once Mode is Running or Finished,
// and is immutable once set. Result is present only once Mode is
// Finished; it may be a plain value or a wire.Envelope requiring
// Extract.
type StatusRecord struct {
	Mode      Mode
	StartTime *time.Time
	Result    interface{}
}

// Finished reports whether this record represents a terminal state.
func (s StatusRecord) Finished() bool {
	return s.Mode == ModeFinished
}
