package qiruntime

import (
	"sync"
	"time"
)

// WaitGroup, mutex, and timer entry points used by the synchronization
// built-ins.

// WaitGroup wraps sync.WaitGroup behind the ABI's status-code surface.
type WaitGroup struct {
	wg sync.WaitGroup
}

// RuntimeWaitgroupCreate backs runtime_waitgroup_create.
func RuntimeWaitgroupCreate() *WaitGroup { return &WaitGroup{} }

// RuntimeWaitgroupAdd backs runtime_waitgroup_add.
func RuntimeWaitgroupAdd(w *WaitGroup, delta int32) int32 {
	w.wg.Add(int(delta))
	return StatusOK
}

// RuntimeWaitgroupDone backs runtime_waitgroup_done.
func RuntimeWaitgroupDone(w *WaitGroup) int32 {
	w.wg.Done()
	return StatusOK
}

// RuntimeWaitgroupWait backs runtime_waitgroup_wait; a suspension point.
func RuntimeWaitgroupWait(w *WaitGroup) int32 {
	exit, _ := enterWait()
	defer exit()
	w.wg.Wait()
	return StatusOK
}

// Mutex wraps sync.Mutex with a trylock surface.
type Mutex struct {
	mu sync.Mutex
}

// RuntimeMutexCreate backs runtime_mutex_create.
func RuntimeMutexCreate() *Mutex { return &Mutex{} }

// RuntimeMutexLock backs runtime_mutex_lock.
func RuntimeMutexLock(m *Mutex) int32 {
	m.mu.Lock()
	return StatusOK
}

// RuntimeMutexUnlock backs runtime_mutex_unlock.
func RuntimeMutexUnlock(m *Mutex) int32 {
	m.mu.Unlock()
	return StatusOK
}

// RuntimeMutexTrylock backs runtime_mutex_trylock: 0 when the lock was
// taken, nonzero when it was contended.
func RuntimeMutexTrylock(m *Mutex) int32 {
	if m.mu.TryLock() {
		return StatusOK
	}
	return StatusError
}

// Timer is a one-shot deadline.
type Timer struct {
	deadline time.Time
	stopped  bool
	mu       sync.Mutex
}

// RuntimeTimerCreate backs runtime_timer_create with a duration in
// milliseconds.
func RuntimeTimerCreate(ms int64) *Timer {
	return &Timer{deadline: time.Now().Add(time.Duration(ms) * time.Millisecond)}
}

// RuntimeTimerExpired backs runtime_timer_expired.
func RuntimeTimerExpired(t *Timer) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return 0
	}
	if time.Now().After(t.deadline) {
		return 1
	}
	return 0
}

// RuntimeTimerStop backs runtime_timer_stop; idempotent.
func RuntimeTimerStop(t *Timer) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	return 0
}

// RuntimeGetTimeMs backs runtime_get_time_ms.
func RuntimeGetTimeMs() int64 {
	return time.Now().UnixMilli()
}
