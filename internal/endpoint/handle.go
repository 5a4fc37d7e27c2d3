package endpoint

import (
	"context"
	"time"

	"github.com/ChuLiYu/superpy/internal/wire"
	"github.com/ChuLiYu/superpy/pkg/types"
)

// LiveHandle is bound to one endpoint and one server-side task id.
// Refresh/Kill/Cleanup are real RPCs against that endpoint.
type LiveHandle struct {
	key    types.EndpointKey
	client *wire.Client
	taskID string
	status types.StatusRecord
}

// NewLiveHandle wraps a freshly submitted task id.
func NewLiveHandle(key types.EndpointKey, client *wire.Client, taskID string, status types.StatusRecord) *LiveHandle {
	return &LiveHandle{key: key, client: client, taskID: taskID, status: status}
}

func (h *LiveHandle) Status() types.StatusRecord { return h.status }

func (h *LiveHandle) Refresh(ctx context.Context, timeout time.Duration) (Handle, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := h.client.Refresh(ctx, &wire.HandleRef{TaskID: h.taskID})
	if err != nil {
		return nil, err
	}
	status, err := statusFromWire(resp)
	if err != nil {
		return nil, err
	}
	return &LiveHandle{key: h.key, client: h.client, taskID: h.taskID, status: status}, nil
}

func (h *LiveHandle) Kill(ctx context.Context) error {
	_, err := h.client.Kill(ctx, &wire.HandleRef{TaskID: h.taskID})
	return err
}

func (h *LiveHandle) Cleanup(ctx context.Context) error {
	_, err := h.client.Cleanup(ctx, &wire.HandleRef{TaskID: h.taskID})
	return err
}

func (h *LiveHandle) IsInvalid() bool { return false }

func statusFromWire(resp *wire.StatusResp) (types.StatusRecord, error) {
	rec := types.StatusRecord{Mode: types.Mode(resp.Mode)}
	if resp.StartTime != 0 {
		t := time.Unix(0, resp.StartTime)
		rec.StartTime = &t
	}
	if resp.HasResult {
		rec.Result = resp.Result
	}
	return rec, nil
}

// InvalidHandle is the synthetic terminal handle the manager
// manufactures when an unrecoverable fault occurs during polling. Its
// status is pre-filled and its Refresh/Kill/Cleanup are no-ops — it is
// a constructor of the Handle variant, not a subclass.
type InvalidHandle struct {
	status types.StatusRecord
}

// NewInvalidHandle fabricates a finished handle whose result names the
// error that made polling unrecoverable.
func NewInvalidHandle(reason string) *InvalidHandle {
	return &InvalidHandle{status: types.StatusRecord{
		Mode:   types.ModeFinished,
		Result: reason,
	}}
}

func (h *InvalidHandle) Status() types.StatusRecord { return h.status }

func (h *InvalidHandle) Refresh(ctx context.Context, timeout time.Duration) (Handle, error) {
	return h, nil
}

func (h *InvalidHandle) Kill(ctx context.Context) error    { return nil }
func (h *InvalidHandle) Cleanup(ctx context.Context) error { return nil }
func (h *InvalidHandle) IsInvalid() bool                   { return true }
