package manager

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/ChuLiYu/superpy/internal/endpoint"
	"github.com/ChuLiYu/superpy/pkg/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeHandle is a scriptable endpoint.Handle used to drive the
// Manager's wait/cleanup loop without a real transport.
type fakeHandle struct {
	id string

	mu         sync.Mutex
	status     types.StatusRecord
	refreshErr error
	killed     bool
	cleanedUp  bool

	// script, if set, is consulted on each Refresh call and pops one
	// scripted outcome; nil falls back to status/refreshErr.
	script []scriptedRefresh
}

type scriptedRefresh struct {
	status types.StatusRecord
	err    error
}

func (h *fakeHandle) Status() types.StatusRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status
}

func (h *fakeHandle) Refresh(ctx context.Context, timeout time.Duration) (endpoint.Handle, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.script) > 0 {
		next := h.script[0]
		h.script = h.script[1:]
		if next.err != nil {
			return nil, next.err
		}
		h.status = next.status
		return h, nil
	}
	if h.refreshErr != nil {
		return nil, h.refreshErr
	}
	return h, nil
}

func (h *fakeHandle) Kill(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.killed = true
	return nil
}

func (h *fakeHandle) Cleanup(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cleanedUp = true
	return nil
}

func (h *fakeHandle) IsInvalid() bool { return false }

func newFinishedHandle(id string, result interface{}) *fakeHandle {
	return &fakeHandle{id: id, status: types.StatusRecord{Mode: types.ModeFinished, Result: result}}
}

func testManager() *Manager {
	return New(zerolog.New(io.Discard), nil, time.Second, nil)
}

// A batch of 3 elements where element 2's handle raises a non-socket
// exception on its first refresh. All three must be
// delivered exactly once, element 2's delivered result must mention
// the exception text, and cleanup must be attempted on all three.
func TestProcessElements_UnrecoverableFaultDeliversInvalidHandle(t *testing.T) {
	h1 := newFinishedHandle("h1", "ok-1")
	h2 := &fakeHandle{id: "h2", script: []scriptedRefresh{{err: errors.New("boom: worker exploded")}}}
	h3 := newFinishedHandle("h3", "ok-3")

	handles := map[string]*fakeHandle{"e1": h1, "e2": h2, "e3": h3}
	dispatch := func(ctx context.Context, element interface{}) (endpoint.Handle, error) {
		return handles[element.(string)], nil
	}

	var mu sync.Mutex
	delivered := map[string]interface{}{}
	result := func(element interface{}, res interface{}) {
		mu.Lock()
		defer mu.Unlock()
		delivered[element.(string)] = res
	}

	mgr := testManager()
	err := mgr.ProcessElements(context.Background(), []interface{}{"e1", "e2", "e3"}, dispatch, result, 0)
	require.NoError(t, err)

	require.Len(t, delivered, 3)
	assert.Equal(t, "ok-1", delivered["e1"])
	assert.Equal(t, "ok-3", delivered["e3"])
	assert.Contains(t, delivered["e2"], "boom: worker exploded")

	assert.True(t, h1.cleanedUp)
	assert.True(t, h3.cleanedUp)
}

// With max_time=1s, a handle reports starttime in the past and mode
// running; kill() must be invoked, and the next sweep (finished)
// delivers the result exactly once.
func TestProcessElements_TimeoutBreachKillsThenDelivers(t *testing.T) {
	past := time.Now().Add(-10 * time.Second)
	h := &fakeHandle{
		id: "h",
		script: []scriptedRefresh{
			{status: types.StatusRecord{Mode: types.ModeRunning, StartTime: &past}},
			{status: types.StatusRecord{Mode: types.ModeFinished, Result: "done"}},
		},
	}

	dispatch := func(ctx context.Context, element interface{}) (endpoint.Handle, error) {
		return h, nil
	}

	var delivered []interface{}
	result := func(element interface{}, res interface{}) {
		delivered = append(delivered, res)
	}

	mgr := testManager()
	err := mgr.ProcessElements(context.Background(), []interface{}{"only"}, dispatch, result, time.Second)
	require.NoError(t, err)

	assert.True(t, h.killed)
	require.Len(t, delivered, 1)
	assert.Equal(t, "done", delivered[0])
}

func TestProcessElements_TransientErrorRetainsPreviousStatus(t *testing.T) {
	h := &fakeHandle{
		id: "h",
		script: []scriptedRefresh{
			{err: fmt.Errorf("dial tcp: %w", context.DeadlineExceeded)},
			{status: types.StatusRecord{Mode: types.ModeFinished, Result: "ok"}},
		},
	}
	dispatch := func(ctx context.Context, element interface{}) (endpoint.Handle, error) { return h, nil }

	var delivered []interface{}
	result := func(element interface{}, res interface{}) { delivered = append(delivered, res) }

	mgr := testManager()
	err := mgr.ProcessElements(context.Background(), []interface{}{"only"}, dispatch, result, 0)
	require.NoError(t, err)
	require.Len(t, delivered, 1)
	assert.Equal(t, "ok", delivered[0])
}

func TestProcessElements_NoLostElements(t *testing.T) {
	n := 5
	elements := make([]interface{}, n)
	handlesByElement := make(map[string]*fakeHandle, n)
	for i := 0; i < n; i++ {
		key := fmt.Sprintf("e%d", i)
		elements[i] = key
		handlesByElement[key] = newFinishedHandle(key, i)
	}

	dispatch := func(ctx context.Context, element interface{}) (endpoint.Handle, error) {
		return handlesByElement[element.(string)], nil
	}

	var mu sync.Mutex
	delivered := make(map[string]bool)
	result := func(element interface{}, res interface{}) {
		mu.Lock()
		defer mu.Unlock()
		delivered[element.(string)] = true
	}

	mgr := testManager()
	require.NoError(t, mgr.ProcessElements(context.Background(), elements, dispatch, result, 0))
	assert.Len(t, delivered, n)
}

func TestProcessElements_DispatchErrorAborts(t *testing.T) {
	dispatch := func(ctx context.Context, element interface{}) (endpoint.Handle, error) {
		return nil, errors.New("no server reachable")
	}
	mgr := testManager()
	err := mgr.ProcessElements(context.Background(), []interface{}{"only"}, dispatch, func(interface{}, interface{}) {}, 0)
	assert.Error(t, err)
}
