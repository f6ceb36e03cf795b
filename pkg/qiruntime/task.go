// Package qiruntime implements the async runtime linked into compiled
// programs: a work-stealing task executor, typed futures, and channels with
// select. The exported surface mirrors the C ABI the code generator emits
// calls against; see abi.go.
package qiruntime

import (
	"fmt"
	"sync"
	"sync/atomic"
)

var taskIDCounter atomic.Uint64

// TaskID uniquely identifies a task for the lifetime of the process.
type TaskID uint64

// NewTaskID returns the next process-wide task identifier.
func NewTaskID() TaskID {
	return TaskID(taskIDCounter.Add(1))
}

func (id TaskID) String() string { return fmt.Sprintf("Task(%d)", uint64(id)) }

// TaskPriority orders tasks when more than one is ready. Preemption is
// cooperative: a higher priority wins selection but never interrupts a
// running task.
type TaskPriority int

const (
	PriorityLow TaskPriority = iota
	PriorityNormal
	PriorityHigh
	PriorityCritical
)

func (p TaskPriority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	default:
		return "normal"
	}
}

// TaskStatus is the lifecycle state of a task. Transitions are monotone:
// Pending -> Running -> (Waiting <-> Running)* -> Completed|Cancelled|Failed.
type TaskStatus int32

const (
	StatusPending TaskStatus = iota
	StatusRunning
	StatusWaiting
	StatusCompleted
	StatusCancelled
	StatusFailed
)

func (s TaskStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusWaiting:
		return "waiting"
	case StatusCompleted:
		return "completed"
	case StatusCancelled:
		return "cancelled"
	case StatusFailed:
		return "failed"
	}
	return "unknown"
}

// Terminal reports whether no further transition is allowed.
func (s TaskStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusFailed
}

// validTransition encodes the status monotonicity rules.
func validTransition(from, to TaskStatus) bool {
	if from.Terminal() {
		return false
	}
	switch to {
	case StatusPending:
		return false
	case StatusRunning:
		return from == StatusPending || from == StatusWaiting
	case StatusWaiting:
		return from == StatusRunning
	default:
		return true
	}
}

// taskInner is the shared state behind every handle to a task.
type taskInner struct {
	id       TaskID
	priority TaskPriority
	status   atomic.Int32

	cancel chan struct{} // closed on cancellation, observed at suspension points
	done   chan struct{} // closed on any terminal transition

	cancelOnce sync.Once
	doneOnce   sync.Once

	failure error
}

func newTaskInner(id TaskID, priority TaskPriority) *taskInner {
	return &taskInner{
		id:       id,
		priority: priority,
		cancel:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (t *taskInner) Status() TaskStatus {
	return TaskStatus(t.status.Load())
}

// transition moves the task to a new status, refusing transitions that
// break monotonicity. It returns whether the transition was applied.
func (t *taskInner) transition(to TaskStatus) bool {
	for {
		cur := TaskStatus(t.status.Load())
		if !validTransition(cur, to) {
			return false
		}
		if t.status.CompareAndSwap(int32(cur), int32(to)) {
			if to.Terminal() {
				t.doneOnce.Do(func() { close(t.done) })
			}
			return true
		}
	}
}

// TaskHandle is a reference to a spawned task. Dropping the last handle does
// not abort the task; an explicit Cancel does.
type TaskHandle struct {
	inner *taskInner
}

// ID returns the task identifier.
func (h *TaskHandle) ID() TaskID { return h.inner.id }

// Priority returns the priority the task was spawned with.
func (h *TaskHandle) Priority() TaskPriority { return h.inner.priority }

// Status returns the task's current lifecycle state.
func (h *TaskHandle) Status() TaskStatus { return h.inner.Status() }

// Cancel requests cooperative cancellation: the task observes it at its next
// suspension point. A task that already reached a terminal state is
// unaffected.
func (h *TaskHandle) Cancel() {
	h.inner.cancelOnce.Do(func() { close(h.inner.cancel) })
	h.inner.transition(StatusCancelled)
}

// Join blocks until the task reaches a terminal state and reports how it
// ended.
func (h *TaskHandle) Join() error {
	<-h.inner.done
	switch h.inner.Status() {
	case StatusCompleted:
		return nil
	case StatusCancelled:
		return ErrTaskCancelled
	default:
		if h.inner.failure != nil {
			return fmt.Errorf("%w: %v", ErrTaskFailed, h.inner.failure)
		}
		return ErrTaskFailed
	}
}

// Done returns a channel closed when the task reaches a terminal state.
func (h *TaskHandle) Done() <-chan struct{} { return h.inner.done }

// TaskMetadata is the scheduler's view of a task.
type TaskMetadata struct {
	ID       TaskID
	Priority TaskPriority
}
