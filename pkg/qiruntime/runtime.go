package qiruntime

import (
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/arbor/models"
)

// Runtime is the process-wide singleton behind the ABI entry points. The
// generated program's main calls Initialize before anything else.
type Runtime struct {
	pool      *WorkerPool
	scheduler *Scheduler
	executor  *Executor
	log       arbor.ILogger
}

var (
	globalMu      sync.Mutex
	globalRuntime *Runtime
)

// Config controls runtime construction.
type Config struct {
	Pool     PoolConfig
	LogLevel string
}

// DefaultConfig mirrors the linked runtime's defaults: one worker per
// logical CPU, stealing on, warnings only.
func DefaultConfig() Config {
	return Config{Pool: DefaultPoolConfig(), LogLevel: "warn"}
}

// NewRuntime builds an isolated runtime, mostly for tests; production code
// goes through Initialize.
func NewRuntime(cfg Config) (*Runtime, error) {
	pool, err := NewWorkerPool(cfg.Pool)
	if err != nil {
		return nil, err
	}
	scheduler := NewScheduler()
	log := arbor.NewLogger().
		WithConsoleWriter(models.WriterConfiguration{
			Type:       models.LogWriterTypeConsole,
			TimeFormat: "15:04:05.000",
		}).
		WithLevelFromString(cfg.LogLevel)
	rt := &Runtime{
		pool:      pool,
		scheduler: scheduler,
		executor:  NewExecutor(pool, scheduler),
		log:       log,
	}
	rt.log.Debug().Int("workers", pool.WorkerCount()).Msg("runtime started")
	return rt, nil
}

// Initialize creates the process-wide runtime. Idempotent; returns 0 on
// success, matching the ABI's status convention.
func Initialize() int32 {
	return InitializeWith(DefaultConfig())
}

// InitializeWith creates the singleton with an explicit configuration; a
// later call with the singleton live is a no-op success.
func InitializeWith(cfg Config) int32 {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalRuntime != nil {
		return 0
	}
	rt, err := NewRuntime(cfg)
	if err != nil {
		return StatusError
	}
	globalRuntime = rt
	return 0
}

// Shutdown flushes and frees process-wide state. Safe to call without a
// prior Initialize.
func Shutdown() int32 {
	globalMu.Lock()
	rt := globalRuntime
	globalRuntime = nil
	globalMu.Unlock()
	if rt == nil {
		return 0
	}
	rt.Close()
	return 0
}

// Close stops an isolated runtime's workers.
func (r *Runtime) Close() {
	r.executor.Shutdown()
	r.log.Debug().Msg("runtime stopped")
}

// Executor exposes the runtime's executor.
func (r *Runtime) Executor() *Executor { return r.executor }

// Scheduler exposes the runtime's scheduler.
func (r *Runtime) Scheduler() *Scheduler { return r.scheduler }

// current returns the singleton, creating it with defaults when a runtime
// entry point is reached before Initialize. The generated code always
// initializes first; this guards hand-written callers.
func current() *Runtime {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalRuntime == nil {
		rt, err := NewRuntime(DefaultConfig())
		if err != nil {
			panic(err)
		}
		globalRuntime = rt
	}
	return globalRuntime
}

// Stats is a point-in-time view of the runtime, served by the inspection
// API.
type Stats struct {
	Workers        int    `json:"workers"`
	WorkStealing   bool   `json:"work_stealing"`
	ActiveTasks    int    `json:"active_tasks"`
	QueuedTasks    int    `json:"queued_tasks"`
	PendingInQueue int    `json:"pending_in_queue"`
	CompletedTasks uint64 `json:"completed_tasks"`
	TotalScheduled uint64 `json:"total_scheduled"`
}

// Stats snapshots the runtime counters.
func (r *Runtime) Stats() Stats {
	return Stats{
		Workers:        r.pool.WorkerCount(),
		WorkStealing:   r.pool.WorkStealingEnabled(),
		ActiveTasks:    r.executor.ActiveTaskCount(),
		QueuedTasks:    r.executor.QueuedTaskCount(),
		PendingInQueue: r.pool.PendingTasks(),
		CompletedTasks: r.executor.CompletedTaskCount(),
		TotalScheduled: r.scheduler.TotalScheduled(),
	}
}

// GlobalStats snapshots the singleton runtime, initializing it if needed.
func GlobalStats() Stats { return current().Stats() }
