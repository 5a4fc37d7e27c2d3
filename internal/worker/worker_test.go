package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPool(t *testing.T) {
	pool := NewPool(10)
	assert.NotNil(t, pool)
	assert.Equal(t, 0, pool.GetWorkerCount())
	assert.False(t, pool.IsStarted())
}

func TestPoolStart(t *testing.T) {
	pool := NewPool(10)

	err := pool.Start(8, SimulatedExecutor{})
	require.NoError(t, err)
	assert.Equal(t, 8, pool.GetWorkerCount())
	assert.True(t, pool.IsStarted())

	err = pool.Start(4, SimulatedExecutor{})
	assert.Error(t, err)

	pool.Stop()
}

func TestWorkerExecution(t *testing.T) {
	pool := NewPool(10)
	err := pool.Start(1, SimulatedExecutor{})
	require.NoError(t, err)

	taskCount := 10
	for i := 0; i < taskCount; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		task := Task{ID: fmt.Sprintf("task-%d", i), Payload: i, Ctx: ctx}
		require.NoError(t, pool.Submit(task))
	}

	results := make(map[string]Result)
	for i := 0; i < taskCount; i++ {
		result, err := pool.ReceiveResult()
		require.NoError(t, err)
		results[result.TaskID] = result
	}

	assert.Equal(t, taskCount, len(results))
	pool.Stop()
}

func TestTimeout(t *testing.T) {
	pool := NewPool(10)
	err := pool.Start(1, SimulatedExecutor{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	task := Task{ID: "timeout-task", Payload: nil, Ctx: ctx}
	require.NoError(t, pool.Submit(task))

	result, err := pool.ReceiveResult()
	require.NoError(t, err)

	assert.Error(t, result.Err)
	assert.True(t, errors.Is(result.Err, context.DeadlineExceeded))

	pool.Stop()
}

func TestConcurrentSubmit(t *testing.T) {
	pool := NewPool(100)
	err := pool.Start(4, SimulatedExecutor{})
	require.NoError(t, err)

	taskCount := 50
	var wg sync.WaitGroup
	wg.Add(taskCount)

	for i := 0; i < taskCount; i++ {
		go func(index int) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			task := Task{ID: fmt.Sprintf("task-%d", index), Payload: index, Ctx: ctx}
			assert.NoError(t, pool.Submit(task))
		}(i)
	}
	wg.Wait()

	for i := 0; i < taskCount; i++ {
		_, err := pool.ReceiveResult()
		require.NoError(t, err)
	}
	pool.Stop()
}

func TestSubmitBeforeStart(t *testing.T) {
	pool := NewPool(10)
	task := Task{ID: "task-before-start", Ctx: context.Background()}
	err := pool.Submit(task)
	assert.Error(t, err)
	assert.Equal(t, ErrPoolNotStarted, err)
}

func TestSubmitAfterStop(t *testing.T) {
	pool := NewPool(10)
	require.NoError(t, pool.Start(2, SimulatedExecutor{}))
	pool.Stop()

	task := Task{ID: "task-after-stop", Ctx: context.Background()}
	err := pool.Submit(task)
	assert.Error(t, err)
	assert.Equal(t, ErrPoolClosed, err)
}

func TestReceiveResultAfterStop(t *testing.T) {
	pool := NewPool(10)
	require.NoError(t, pool.Start(2, SimulatedExecutor{}))
	pool.Stop()

	_, err := pool.ReceiveResult()
	assert.Error(t, err)
	assert.Equal(t, ErrPoolClosed, err)
}

func TestStopBeforeStart(t *testing.T) {
	pool := NewPool(10)
	assert.NotPanics(t, func() {
		pool.Stop()
	})
}

func TestSimulatedExecutorTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(10 * time.Millisecond)

	_, err := (SimulatedExecutor{}).Execute(ctx, "payload")
	assert.Error(t, err)
	assert.Equal(t, context.DeadlineExceeded, err)
}
