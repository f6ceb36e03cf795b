package qiruntime

import (
	"errors"
	"fmt"
	"sync/atomic"
)

var errInvalidWorkerCount = errors.New("worker count must be at least 1")

// Executor ties the worker pool and scheduler together and exposes task
// spawning. At most one worker executes a given task's continuation at a
// time: a task is a single runnable from the queues' point of view.
type Executor struct {
	pool      *WorkerPool
	scheduler *Scheduler

	activeTasks    atomic.Int64
	queuedTasks    atomic.Int64
	completedTasks atomic.Uint64
	nextWorker     atomic.Uint64
}

// NewExecutor builds an executor over a pool and scheduler and starts the
// workers.
func NewExecutor(pool *WorkerPool, scheduler *Scheduler) *Executor {
	e := &Executor{pool: pool, scheduler: scheduler}
	pool.Start()
	return e
}

// Spawn schedules fn as a task with normal priority.
func (e *Executor) Spawn(fn func()) *TaskHandle {
	return e.SpawnWithPriority(fn, PriorityNormal)
}

// SpawnWithPriority schedules fn at the given priority and returns its
// handle. The function runs on one of the pool's workers; a panic marks the
// task failed rather than crashing the worker.
func (e *Executor) SpawnWithPriority(fn func(), priority TaskPriority) *TaskHandle {
	inner := newTaskInner(NewTaskID(), priority)
	handle := &TaskHandle{inner: inner}

	e.scheduler.RegisterTask(TaskMetadata{ID: inner.id, Priority: priority})
	e.queuedTasks.Add(1)
	e.activeTasks.Add(1)

	r := &runnable{
		inner: inner,
		run: func() {
			e.queuedTasks.Add(-1)
			defer func() {
				p := recover()
				// Counters settle before the terminal transition releases Join.
				e.activeTasks.Add(-1)
				e.completedTasks.Add(1)
				e.scheduler.UnregisterTask(inner.id)
				if p != nil {
					inner.failure = fmt.Errorf("panic: %v", p)
					inner.transition(StatusFailed)
					return
				}
				inner.transition(StatusCompleted)
			}()

			// A cancel that landed while the task was still queued wins.
			if !inner.transition(StatusRunning) {
				return
			}
			gid := bindCurrentTask(inner)
			defer unbindCurrentTask(gid)
			fn()
		},
	}

	// Round-robin placement approximates least-pending-work well enough and
	// keeps the hot path lock-free.
	worker := int(e.nextWorker.Add(1)-1) % e.pool.WorkerCount()
	e.pool.Submit(r, worker)
	return handle
}

// ActiveTaskCount returns the number of tasks spawned but not yet finished.
func (e *Executor) ActiveTaskCount() int { return int(e.activeTasks.Load()) }

// QueuedTaskCount returns the number of tasks waiting to start.
func (e *Executor) QueuedTaskCount() int { return int(e.queuedTasks.Load()) }

// CompletedTaskCount returns the number of tasks that reached a terminal
// state.
func (e *Executor) CompletedTaskCount() uint64 { return e.completedTasks.Load() }

// Shutdown stops the pool and waits for quiescence.
func (e *Executor) Shutdown() {
	e.pool.Shutdown()
}
