package qiruntime

import (
	"fmt"
	"os"
	"strconv"
	"unsafe"
)

// This file is the Go expression of the C ABI the code generator emits
// calls against. Each function carries the name of its IR-level symbol.
// Opaque `ptr` values are Go pointers here; `(ptr, len)` string pairs
// collapse to Go strings. Status codes keep the 0-ok convention.

// RuntimeInitialize backs the runtime_initialize symbol.
func RuntimeInitialize() int32 { return Initialize() }

// RuntimeShutdown backs runtime_shutdown.
func RuntimeShutdown() int32 { return Shutdown() }

// PendingTask is a created-but-unscheduled task, as returned by
// runtime_create_task.
type PendingTask struct {
	fn     func()
	handle *TaskHandle
}

// RuntimeCreateTask backs runtime_create_task: it wraps a function without
// starting it.
func RuntimeCreateTask(fn func(), argc int64) *PendingTask {
	_ = argc // the Go closure already carries its arguments
	return &PendingTask{fn: fn}
}

// RuntimeSpawnTask backs runtime_spawn_task: it schedules a created task.
func RuntimeSpawnTask(t *PendingTask) int32 {
	if t == nil || t.fn == nil {
		return StatusError
	}
	t.handle = current().executor.Spawn(t.fn)
	return StatusOK
}

// Handle returns the task handle once spawned.
func (t *PendingTask) Handle() *TaskHandle { return t.handle }

// RuntimeSpawnGoroutine backs runtime_spawn_goroutine.
func RuntimeSpawnGoroutine(fn func()) {
	current().executor.Spawn(fn)
}

// RuntimeSpawnGoroutineWithArgs backs runtime_spawn_goroutine_with_args:
// the generated wrapper receives the packed i64 argument array.
func RuntimeSpawnGoroutineWithArgs(fn func(args []int64), args []int64) {
	// The spawn site's stack array dies with its frame; copy before the
	// task escapes.
	owned := make([]int64, len(args))
	copy(owned, args)
	current().executor.Spawn(func() { fn(owned) })
}

// RuntimeAwait backs runtime_await for generic handles.
func RuntimeAwait(f *Future) unsafe.Pointer {
	return f.AwaitPtr()
}

// Future constructors and awaits, one pair per payload type.

// FutureReadyI64 backs future_ready_i64.
func FutureReadyI64(v int64) *Future { return NewReadyI64(v) }

// FutureAwaitI64 backs future_await_i64.
func FutureAwaitI64(f *Future) int64 { return f.AwaitI64() }

// FutureReadyF64 backs future_ready_f64.
func FutureReadyF64(v float64) *Future { return NewReadyF64(v) }

// FutureAwaitF64 backs future_await_f64.
func FutureAwaitF64(f *Future) float64 { return f.AwaitF64() }

// FutureReadyBool backs future_ready_bool; the payload is pre-widened i32.
func FutureReadyBool(v int32) *Future { return NewReadyBool(v) }

// FutureAwaitBool backs future_await_bool, returning i32 for the caller to
// narrow.
func FutureAwaitBool(f *Future) int32 { return f.AwaitBool() }

// FutureReadyString backs future_ready_string.
func FutureReadyString(s string) *Future { return NewReadyString(s) }

// FutureAwaitString backs future_await_string; ownership of the payload
// transfers to the caller.
func FutureAwaitString(f *Future) string { return f.AwaitString() }

// FutureReadyPtr backs future_ready_ptr.
func FutureReadyPtr(p unsafe.Pointer) *Future { return NewReadyPtr(p) }

// FutureAwaitPtr backs future_await_ptr.
func FutureAwaitPtr(f *Future) unsafe.Pointer { return f.AwaitPtr() }

// FutureFailed backs future_failed.
func FutureFailed(msg string) *Future { return NewFailed(msg) }

// FutureIsCompleted backs future_is_completed.
func FutureIsCompleted(f *Future) int32 {
	if f.IsCompleted() {
		return 1
	}
	return 0
}

// FutureFree backs future_free; safe exactly once.
func FutureFree(f *Future) { _ = f.Free() }

// StringFree backs string_free. Runtime strings are garbage collected on
// this side of the ABI, so the call only exists for contract parity.
func StringFree(s string) { _ = s }

// Channels.

// RuntimeCreateChannel backs runtime_create_channel; capacity 0 is
// unbuffered.
func RuntimeCreateChannel(capacity int64) *Channel { return NewChannel(capacity) }

// RuntimeChannelSend backs runtime_channel_send.
func RuntimeChannelSend(ch *Channel, v int64) int32 { return ch.Send(v) }

// RuntimeChannelReceive backs runtime_channel_receive, writing the value
// through the out pointer.
func RuntimeChannelReceive(ch *Channel, out *int64) int32 {
	v, st := ch.Receive()
	if st == StatusOK && out != nil {
		*out = v
	}
	return st
}

// RuntimeChannelClose backs runtime_channel_close; idempotent.
func RuntimeChannelClose(ch *Channel) int32 { return ch.Close() }

// RuntimeSelect backs runtime_select, returning the chosen case index.
func RuntimeSelect(cases []SelectCase) int64 { return int64(Select(cases)) }

// Print helpers.

// RuntimePrint backs runtime_print.
func RuntimePrint(s string) int32 {
	fmt.Fprint(os.Stdout, s)
	return 0
}

// RuntimePrintln backs runtime_println.
func RuntimePrintln(s string) int32 {
	fmt.Fprintln(os.Stdout, s)
	return 0
}

// RuntimePrintInt backs runtime_print_int.
func RuntimePrintInt(v int64) int32 {
	fmt.Fprint(os.Stdout, v)
	return 0
}

// RuntimePrintlnInt backs runtime_println_int.
func RuntimePrintlnInt(v int64) int32 {
	fmt.Fprintln(os.Stdout, v)
	return 0
}

// RuntimePrintFloat backs runtime_print_float, matching printf's %f shape.
func RuntimePrintFloat(v float64) int32 {
	fmt.Fprintf(os.Stdout, "%f", v)
	return 0
}

// RuntimePrintlnFloat backs runtime_println_float.
func RuntimePrintlnFloat(v float64) int32 {
	fmt.Fprintf(os.Stdout, "%f\n", v)
	return 0
}

// RuntimePrintBool backs runtime_print_bool; the argument arrives widened.
func RuntimePrintBool(v int32) int32 {
	fmt.Fprint(os.Stdout, v != 0)
	return 0
}

// RuntimePrintlnBool backs runtime_println_bool.
func RuntimePrintlnBool(v int32) int32 {
	fmt.Fprintln(os.Stdout, v != 0)
	return 0
}

// String helpers.

// RuntimeStringConcat backs runtime_string_concat; the result is a fresh
// allocation owned by the caller.
func RuntimeStringConcat(a, b string) string { return a + b }

// RuntimeStringLength backs runtime_string_length.
func RuntimeStringLength(s string) int64 { return int64(len(s)) }

// RuntimeIntToString backs runtime_int_to_string.
func RuntimeIntToString(v int64) string { return strconv.FormatInt(v, 10) }

// RuntimeFloatToString backs runtime_float_to_string, using the six-digit
// rendering printf's %f produces.
func RuntimeFloatToString(v float64) string { return strconv.FormatFloat(v, 'f', 6, 64) }

// RuntimeStringToInt backs runtime_string_to_int; malformed input yields 0.
func RuntimeStringToInt(s string) int64 {
	v, _ := strconv.ParseInt(s, 10, 64)
	return v
}

// RuntimeStringToFloat backs runtime_string_to_float.
func RuntimeStringToFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}
