package localworker

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/ChuLiYu/superpy/internal/wire"
	"github.com/ChuLiYu/superpy/internal/worker"
	"github.com/ChuLiYu/superpy/pkg/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoExecutor struct{}

func (echoExecutor) Execute(ctx context.Context, payload interface{}) (interface{}, error) {
	return payload, nil
}

type failExecutor struct{}

func (failExecutor) Execute(ctx context.Context, payload interface{}) (interface{}, error) {
	return nil, errors.New("execution failed")
}

func newTestServer(t *testing.T, exec worker.Executor) *Server {
	s := NewServer(2, 8, exec, nil, zerolog.New(io.Discard))
	t.Cleanup(s.Shutdown)
	return s
}

func waitForFinished(t *testing.T, s *Server, taskID string) *wire.StatusResp {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := s.Status(context.Background(), &wire.HandleRef{TaskID: taskID})
		require.NoError(t, err)
		if resp.Mode == string(types.ModeFinished) {
			return resp
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("task %s did not finish in time", taskID)
	return nil
}

func TestSubmitAndCollect(t *testing.T) {
	s := newTestServer(t, echoExecutor{})

	resp, err := s.Submit(context.Background(), &wire.SubmitReq{Task: wire.TaskMsg{Name: "t1"}})
	require.NoError(t, err)
	require.NotEmpty(t, resp.TaskID)

	status := waitForFinished(t, s, resp.TaskID)
	assert.True(t, status.HasResult)

	value, err := status.Result.Extract()
	require.NoError(t, err)
	assert.Nil(t, value)
}

func TestSubmitRejectsEmptyName(t *testing.T) {
	s := newTestServer(t, echoExecutor{})
	_, err := s.Submit(context.Background(), &wire.SubmitReq{Task: wire.TaskMsg{Name: ""}})
	assert.Error(t, err)
}

func TestListMethodsHonorsConfiguredSet(t *testing.T) {
	s := NewServer(1, 4, echoExecutor{}, []string{"CPULoad"}, zerolog.New(io.Discard))
	t.Cleanup(s.Shutdown)
	resp, err := s.ListMethods(context.Background(), &wire.Empty{})
	require.NoError(t, err)
	assert.Equal(t, []string{"CPULoad"}, resp.Methods)
}

func TestKillCancelsTask(t *testing.T) {
	s := newTestServer(t, failExecutor{})

	resp, err := s.Submit(context.Background(), &wire.SubmitReq{Task: wire.TaskMsg{Name: "t1"}})
	require.NoError(t, err)

	_, err = s.Kill(context.Background(), &wire.HandleRef{TaskID: resp.TaskID})
	require.NoError(t, err)

	waitForFinished(t, s, resp.TaskID)
}

func TestEstWaitTimeTracksOutstandingCount(t *testing.T) {
	s := newTestServer(t, echoExecutor{})

	load, err := s.EstWaitTime(context.Background(), &wire.PriorityReq{Priority: 0})
	require.NoError(t, err)
	assert.Equal(t, float64(0), load.Load)

	_, err = s.Submit(context.Background(), &wire.SubmitReq{Task: wire.TaskMsg{Name: "t1"}})
	require.NoError(t, err)

	load, err = s.EstWaitTime(context.Background(), &wire.PriorityReq{Priority: 0})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, load.Load, float64(0))
}

func TestTerminateClosesChannel(t *testing.T) {
	s := newTestServer(t, echoExecutor{})
	_, err := s.Terminate(context.Background(), &wire.Empty{})
	require.NoError(t, err)

	select {
	case <-s.Terminated():
	default:
		t.Fatal("expected Terminated channel to be closed")
	}
	s.Shutdown()
}
