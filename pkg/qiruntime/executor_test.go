package qiruntime

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExecutor(t *testing.T, workers int) *Executor {
	t.Helper()
	pool, err := NewWorkerPool(PoolConfig{WorkerCount: workers, EnableWorkStealing: true})
	require.NoError(t, err)
	e := NewExecutor(pool, NewScheduler())
	t.Cleanup(e.Shutdown)
	return e
}

func TestExecutor_SpawnRunsTask(t *testing.T) {
	e := newTestExecutor(t, 2)

	var ran atomic.Bool
	h := e.Spawn(func() { ran.Store(true) })

	require.NoError(t, h.Join())
	assert.True(t, ran.Load())
	assert.Equal(t, StatusCompleted, h.Status())
}

func TestExecutor_ManyTasksAllComplete(t *testing.T) {
	e := newTestExecutor(t, 4)

	const n = 200
	var count atomic.Int64
	handles := make([]*TaskHandle, 0, n)
	for i := 0; i < n; i++ {
		handles = append(handles, e.Spawn(func() { count.Add(1) }))
	}
	for _, h := range handles {
		require.NoError(t, h.Join())
	}
	assert.Equal(t, int64(n), count.Load())
	assert.Equal(t, uint64(n), e.CompletedTaskCount())
	assert.Equal(t, 0, e.ActiveTaskCount())
}

func TestExecutor_PanicMarksTaskFailed(t *testing.T) {
	e := newTestExecutor(t, 1)

	h := e.Spawn(func() { panic("boom") })
	err := h.Join()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTaskFailed)
	assert.Equal(t, StatusFailed, h.Status())
}

func TestExecutor_CancelBeforeRunSkipsBody(t *testing.T) {
	// A single busy worker keeps the second task queued long enough to
	// cancel it while still pending.
	e := newTestExecutor(t, 1)

	release := make(chan struct{})
	blocker := e.Spawn(func() { <-release })

	var ran atomic.Bool
	victim := e.Spawn(func() { ran.Store(true) })
	victim.Cancel()
	close(release)

	require.NoError(t, blocker.Join())
	assert.ErrorIs(t, victim.Join(), ErrTaskCancelled)
	assert.Equal(t, StatusCancelled, victim.Status())

	time.Sleep(20 * time.Millisecond)
	assert.False(t, ran.Load(), "cancelled task body must not run")
}

func TestExecutor_PriorityWinsSelection(t *testing.T) {
	e := newTestExecutor(t, 1)

	release := make(chan struct{})
	blocker := e.Spawn(func() { <-release })

	var mu sync.Mutex
	var order []TaskPriority
	record := func(p TaskPriority) func() {
		return func() {
			mu.Lock()
			order = append(order, p)
			mu.Unlock()
		}
	}

	low := e.SpawnWithPriority(record(PriorityLow), PriorityLow)
	crit := e.SpawnWithPriority(record(PriorityCritical), PriorityCritical)
	normal := e.SpawnWithPriority(record(PriorityNormal), PriorityNormal)

	close(release)
	require.NoError(t, blocker.Join())
	require.NoError(t, low.Join())
	require.NoError(t, crit.Join())
	require.NoError(t, normal.Join())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, order, 3)
	assert.Equal(t, PriorityCritical, order[0], "critical task must be selected first")
}

func TestExecutor_StatusMonotonicity(t *testing.T) {
	inner := newTaskInner(NewTaskID(), PriorityNormal)

	assert.True(t, inner.transition(StatusRunning))
	assert.True(t, inner.transition(StatusWaiting))
	assert.True(t, inner.transition(StatusRunning))
	assert.True(t, inner.transition(StatusCompleted))

	// No transitions out of a terminal state, and never back to pending.
	assert.False(t, inner.transition(StatusRunning))
	assert.False(t, inner.transition(StatusPending))
	assert.False(t, inner.transition(StatusCancelled))
}

func TestScheduler_Bookkeeping(t *testing.T) {
	s := NewScheduler()
	id := NewTaskID()
	s.RegisterTask(TaskMetadata{ID: id, Priority: PriorityHigh})

	md, ok := s.GetTask(id)
	require.True(t, ok)
	assert.Equal(t, PriorityHigh, md.Priority)
	assert.Equal(t, 1, s.ActiveTaskCount())
	assert.Equal(t, uint64(1), s.TotalScheduled())

	s.UnregisterTask(id)
	assert.Equal(t, 0, s.ActiveTaskCount())
	assert.Equal(t, uint64(1), s.TotalCompleted())
	_, ok = s.GetTask(id)
	assert.False(t, ok)
}

func TestTaskID_Monotone(t *testing.T) {
	a := NewTaskID()
	b := NewTaskID()
	assert.Greater(t, uint64(b), uint64(a))
}

func TestWorkerPool_RejectsZeroWorkersAfterExplicitNegative(t *testing.T) {
	_, err := NewWorkerPool(PoolConfig{WorkerCount: -1})
	assert.Error(t, err)
}

func TestWorkerPool_StealingEnabledCompletesAllTasks(t *testing.T) {
	pool, err := NewWorkerPool(PoolConfig{WorkerCount: 3, EnableWorkStealing: true})
	require.NoError(t, err)
	e := NewExecutor(pool, NewScheduler())
	t.Cleanup(e.Shutdown)

	// Spawn spreads the tasks round-robin over the three queues; with
	// stealing on, every task must still run to completion.
	var count atomic.Int64
	var handles []*TaskHandle
	for i := 0; i < 64; i++ {
		h := e.Spawn(func() {
			time.Sleep(time.Millisecond)
			count.Add(1)
		})
		handles = append(handles, h)
	}
	for _, h := range handles {
		require.NoError(t, h.Join())
	}
	assert.Equal(t, int64(64), count.Load())
}
