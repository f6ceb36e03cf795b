package qiruntime

import (
	"runtime"
	"sync"
	"time"
)

// PoolConfig configures the worker pool.
type PoolConfig struct {
	// WorkerCount is the number of OS-thread workers; zero means one per
	// logical CPU.
	WorkerCount int
	// QueueCapacity is advisory: queues grow past it, and neither the pool
	// nor Stats reads it.
	QueueCapacity int
	// EnableWorkStealing lets idle workers raid other workers' queues.
	EnableWorkStealing bool
}

// DefaultPoolConfig mirrors the runtime's out-of-the-box behavior.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		WorkerCount:        runtime.NumCPU(),
		QueueCapacity:      1024,
		EnableWorkStealing: true,
	}
}

// WorkerPool owns the per-worker queues and the shared injector queue.
// Workers never own queues: the pool hands them out and reclaims everything
// at shutdown.
type WorkerPool struct {
	cfg    PoolConfig
	queues []*taskQueue
	global *taskQueue

	wake chan struct{}
	stop chan struct{}
	wg   sync.WaitGroup

	mu      sync.Mutex
	started bool
	stopped bool
}

// NewWorkerPool validates the configuration and builds an idle pool.
func NewWorkerPool(cfg PoolConfig) (*WorkerPool, error) {
	if cfg.WorkerCount == 0 {
		cfg.WorkerCount = runtime.NumCPU()
	}
	if cfg.WorkerCount < 1 {
		return nil, errInvalidWorkerCount
	}
	p := &WorkerPool{
		cfg:    cfg,
		global: newTaskQueue(),
		wake:   make(chan struct{}, 1),
		stop:   make(chan struct{}),
	}
	for i := 0; i < cfg.WorkerCount; i++ {
		p.queues = append(p.queues, newTaskQueue())
	}
	return p, nil
}

// WorkerCount returns the number of workers.
func (p *WorkerPool) WorkerCount() int { return p.cfg.WorkerCount }

// WorkStealingEnabled reports whether idle workers steal.
func (p *WorkerPool) WorkStealingEnabled() bool { return p.cfg.EnableWorkStealing }

// PendingTasks counts runnables waiting in any queue.
func (p *WorkerPool) PendingTasks() int {
	n := p.global.Len()
	for _, q := range p.queues {
		n += q.Len()
	}
	return n
}

// Start launches the workers. Idempotent.
func (p *WorkerPool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true
	for i := 0; i < p.cfg.WorkerCount; i++ {
		p.wg.Add(1)
		go p.workerLoop(i)
	}
}

// Submit queues a runnable on the preferred worker's queue, or on the shared
// injector queue when preferred is not a valid worker index. It does not
// compare queue lengths; the caller chooses the worker.
func (p *WorkerPool) Submit(r *runnable, preferred int) {
	if preferred >= 0 && preferred < len(p.queues) {
		p.queues[preferred].Push(r)
	} else {
		p.global.Push(r)
	}
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Shutdown signals termination and blocks until every worker is quiescent.
// Workers exit only once they find every queue empty, so work queued before
// Shutdown still runs; work submitted afterwards is never run.
func (p *WorkerPool) Shutdown() {
	p.mu.Lock()
	if p.stopped || !p.started {
		p.stopped = true
		p.mu.Unlock()
		return
	}
	p.stopped = true
	p.mu.Unlock()

	close(p.stop)
	p.wg.Wait()
}

// workerLoop drains the worker's own queue, then the injector queue, then —
// when stealing is enabled — the other workers' queues.
func (p *WorkerPool) workerLoop(idx int) {
	defer p.wg.Done()
	own := p.queues[idx]
	for {
		r := own.Pop()
		if r == nil {
			r = p.global.Pop()
		}
		if r == nil && p.cfg.EnableWorkStealing {
			r = p.stealFrom(idx)
		}
		if r == nil {
			select {
			case <-p.stop:
				return
			case <-p.wake:
				continue
			case <-time.After(time.Millisecond):
				continue
			}
		}
		r.run()
	}
}

// stealFrom raids the busiest other worker.
func (p *WorkerPool) stealFrom(self int) *runnable {
	victim := -1
	busiest := 0
	for i, q := range p.queues {
		if i == self {
			continue
		}
		if n := q.Len(); n > busiest {
			busiest = n
			victim = i
		}
	}
	if victim < 0 {
		return nil
	}
	return p.queues[victim].Steal()
}
