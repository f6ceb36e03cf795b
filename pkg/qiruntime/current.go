package qiruntime

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
)

// currentTasks binds a goroutine to the task it is executing so blocking
// primitives can flip the task between running and waiting at suspension
// points. Workers install the binding around each task body.
var currentTasks sync.Map // goroutine id -> *taskInner

// goid extracts the current goroutine's id from the stack header. It is
// called once per task execution and once per suspension point, never on a
// hot loop.
func goid() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	// The header reads "goroutine <id> [".
	fields := bytes.Fields(buf[:n])
	if len(fields) < 2 {
		return 0
	}
	id, _ := strconv.ParseUint(string(fields[1]), 10, 64)
	return id
}

func bindCurrentTask(t *taskInner) uint64 {
	id := goid()
	currentTasks.Store(id, t)
	return id
}

func unbindCurrentTask(id uint64) {
	currentTasks.Delete(id)
}

// currentTask returns the task bound to this goroutine, or nil when the
// caller is not running on a worker.
func currentTask() *taskInner {
	v, ok := currentTasks.Load(goid())
	if !ok {
		return nil
	}
	return v.(*taskInner)
}

// enterWait marks the bound task waiting and returns a function restoring
// it to running. Both are no-ops outside a task context, and cancellation
// is surfaced through the returned channel (nil when not cancellable).
func enterWait() (exit func(), cancelled <-chan struct{}) {
	t := currentTask()
	if t == nil {
		return func() {}, nil
	}
	t.transition(StatusWaiting)
	return func() { t.transition(StatusRunning) }, t.cancel
}
