package qiruntime

import (
	"runtime"
	"sync"
	"sync/atomic"
	"unsafe"
)

// Heap entry points. Allocations are backed by Go slices pinned in a
// registry so the collector does not reclaim memory the generated code
// still references through raw pointers.

var (
	allocMu       sync.Mutex
	allocRegistry = map[unsafe.Pointer][]byte{}
	allocatedSize atomic.Int64
)

// gcAdviseThreshold is the outstanding-bytes level past which the advisory
// hook starts answering yes.
const gcAdviseThreshold = 64 << 20

// RuntimeAlloc backs runtime_alloc.
func RuntimeAlloc(size int64) unsafe.Pointer {
	if size <= 0 {
		return nil
	}
	buf := make([]byte, size)
	p := unsafe.Pointer(&buf[0])
	allocMu.Lock()
	allocRegistry[p] = buf
	allocMu.Unlock()
	allocatedSize.Add(size)
	return p
}

// RuntimeDealloc backs runtime_dealloc. Unknown pointers report an error
// status rather than corrupting the registry.
func RuntimeDealloc(p unsafe.Pointer, size int64) int32 {
	allocMu.Lock()
	_, ok := allocRegistry[p]
	if ok {
		delete(allocRegistry, p)
	}
	allocMu.Unlock()
	if !ok {
		return StatusError
	}
	allocatedSize.Add(-size)
	return StatusOK
}

// AllocatedBytes reports outstanding runtime-allocated bytes.
func AllocatedBytes() int64 { return allocatedSize.Load() }

// RuntimeGCShouldCollect backs runtime_gc_should_collect, an advisory hook
// consulted by generated code around large allocations.
func RuntimeGCShouldCollect() int64 {
	if allocatedSize.Load() > gcAdviseThreshold {
		return 1
	}
	return 0
}

// RuntimeGCCollect backs runtime_gc_collect.
func RuntimeGCCollect() { runtime.GC() }
