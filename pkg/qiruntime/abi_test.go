package qiruntime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuntime_InitializeIsIdempotent(t *testing.T) {
	require.Equal(t, int32(0), RuntimeInitialize())
	require.Equal(t, int32(0), RuntimeInitialize())
	assert.Equal(t, int32(0), RuntimeShutdown())
	// Shutdown without a live runtime still succeeds.
	assert.Equal(t, int32(0), RuntimeShutdown())
}

func TestRuntime_SpawnGoroutineWithArgsCopiesArray(t *testing.T) {
	require.Equal(t, int32(0), RuntimeInitialize())
	t.Cleanup(func() { RuntimeShutdown() })

	got := make(chan []int64, 1)
	args := []int64{1, 2, 3}
	RuntimeSpawnGoroutineWithArgs(func(a []int64) { got <- a }, args)

	// Mutating the caller's array after the spawn must not leak through.
	args[0] = 99
	assert.Equal(t, []int64{1, 2, 3}, <-got)
}

func TestRuntime_CreateAndSpawnTask(t *testing.T) {
	require.Equal(t, int32(0), RuntimeInitialize())
	t.Cleanup(func() { RuntimeShutdown() })

	done := make(chan struct{})
	task := RuntimeCreateTask(func() { close(done) }, 0)
	require.NotNil(t, task)
	require.Nil(t, task.Handle(), "create must not start the task")

	require.Equal(t, StatusOK, RuntimeSpawnTask(task))
	<-done
	require.NoError(t, task.Handle().Join())
}

func TestStringHelpers(t *testing.T) {
	assert.Equal(t, "值=42", RuntimeStringConcat("值=", "42"))
	assert.Equal(t, int64(6), RuntimeStringLength("值=42")) // UTF-8 bytes
	assert.Equal(t, "42", RuntimeIntToString(42))
	assert.Equal(t, "3.140000", RuntimeFloatToString(3.14))
	assert.Equal(t, int64(-7), RuntimeStringToInt("-7"))
	assert.Equal(t, 2.5, RuntimeStringToFloat("2.5"))
}

func TestAlloc_RoundTrip(t *testing.T) {
	p := RuntimeAlloc(64)
	require.NotNil(t, p)
	assert.GreaterOrEqual(t, AllocatedBytes(), int64(64))
	assert.Equal(t, StatusOK, RuntimeDealloc(p, 64))
	assert.Equal(t, StatusError, RuntimeDealloc(p, 64), "double free reports an error status")
}

func TestWaitGroupAndMutex(t *testing.T) {
	wg := RuntimeWaitgroupCreate()
	RuntimeWaitgroupAdd(wg, 1)
	go RuntimeWaitgroupDone(wg)
	assert.Equal(t, StatusOK, RuntimeWaitgroupWait(wg))

	m := RuntimeMutexCreate()
	require.Equal(t, StatusOK, RuntimeMutexLock(m))
	assert.Equal(t, StatusError, RuntimeMutexTrylock(m))
	require.Equal(t, StatusOK, RuntimeMutexUnlock(m))
	assert.Equal(t, StatusOK, RuntimeMutexTrylock(m))
	RuntimeMutexUnlock(m)
}

func TestTimer_ExpiresAndStops(t *testing.T) {
	expired := RuntimeTimerCreate(0)
	assert.Eventually(t, func() bool { return RuntimeTimerExpired(expired) == 1 },
		100*time.Millisecond, time.Millisecond)

	stopped := RuntimeTimerCreate(0)
	RuntimeTimerStop(stopped)
	assert.Equal(t, int64(0), RuntimeTimerExpired(stopped))
}
