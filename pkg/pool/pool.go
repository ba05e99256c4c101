package pool

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/prowire/prowire/pkg/logger"
)

// ErrClosed is returned by Submit after the pool has been closed.
var ErrClosed = errors.New("pool is closed")

const defaultQueueSize = 1024

// Config describes a bounded pool: Core workers run for the lifetime of the
// pool, and up to Max workers may exist while the queue is saturated.
type Config struct {
	Name      string
	Core      int
	Max       int
	QueueSize int
}

// Normalized returns a copy of the config with out-of-range values corrected.
// The second return value reports whether anything had to be adjusted.
func (c Config) Normalized() (Config, bool) {
	adjusted := false
	if c.Core < 1 {
		c.Core = 1
		adjusted = true
	}
	if c.Max < c.Core {
		c.Max = c.Core
		adjusted = true
	}
	if c.QueueSize <= 0 {
		c.QueueSize = defaultQueueSize
	}
	return c, adjusted
}

// Pool is a bounded worker pool. Core workers run permanently; transient
// workers are spawned up to Max while the task queue is saturated and exit
// once it drains.
type Pool struct {
	cfg   Config
	tasks chan func()

	mu     sync.RWMutex // guards closed against concurrent Submit/Close
	closed bool

	wmu     sync.Mutex // guards workers
	workers int

	totalSpawned atomic.Uint64
	completed    atomic.Uint64
	overflows    atomic.Uint64

	wg sync.WaitGroup
}

// New creates a pool and starts its core workers.
func New(cfg Config) *Pool {
	cfg, _ = cfg.Normalized()
	p := &Pool{
		cfg:   cfg,
		tasks: make(chan func(), cfg.QueueSize),
	}
	p.wmu.Lock()
	p.workers = cfg.Core
	p.wmu.Unlock()
	p.totalSpawned.Add(uint64(cfg.Core))
	for i := 0; i < cfg.Core; i++ {
		p.wg.Add(1)
		go p.coreWorker()
	}
	return p
}

// Submit schedules a task for execution. When the queue is saturated a
// transient worker is spawned if the pool is below Max; otherwise the call
// blocks until a slot frees up.
func (p *Pool) Submit(task func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}

	select {
	case p.tasks <- task:
		return nil
	default:
	}

	p.grow()
	p.tasks <- task
	return nil
}

// Close stops accepting tasks and waits for queued tasks to finish.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()
	p.wg.Wait()
}

// Name returns the configured pool name.
func (p *Pool) Name() string { return p.cfg.Name }

// CoreSize returns the configured number of permanent workers.
func (p *Pool) CoreSize() int { return p.cfg.Core }

// MaxSize returns the configured worker ceiling.
func (p *Pool) MaxSize() int { return p.cfg.Max }

// Workers returns the current number of live workers.
func (p *Pool) Workers() int {
	p.wmu.Lock()
	defer p.wmu.Unlock()
	return p.workers
}

// Queued returns the number of tasks waiting in the queue.
func (p *Pool) Queued() int { return len(p.tasks) }

// TotalSpawned returns the total number of workers ever started.
func (p *Pool) TotalSpawned() uint64 { return p.totalSpawned.Load() }

// Completed returns the total number of tasks that have finished.
func (p *Pool) Completed() uint64 { return p.completed.Load() }

// Overflows returns how many times a saturated queue could not grow the pool.
func (p *Pool) Overflows() uint64 { return p.overflows.Load() }

func (p *Pool) grow() {
	p.wmu.Lock()
	defer p.wmu.Unlock()
	if p.workers >= p.cfg.Max {
		p.overflows.Add(1)
		return
	}
	p.workers++
	p.totalSpawned.Add(1)
	p.wg.Add(1)
	go p.transientWorker()
}

func (p *Pool) coreWorker() {
	defer p.wg.Done()
	for task := range p.tasks {
		p.run(task)
	}
	p.wmu.Lock()
	p.workers--
	p.wmu.Unlock()
}

func (p *Pool) transientWorker() {
	defer p.wg.Done()
	for {
		select {
		case task, ok := <-p.tasks:
			if !ok {
				p.retire()
				return
			}
			p.run(task)
		default:
			p.retire()
			return
		}
	}
}

func (p *Pool) retire() {
	p.wmu.Lock()
	p.workers--
	p.wmu.Unlock()
}

func (p *Pool) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Log.Error("Pool: task panicked", "pool", p.cfg.Name, "panic", r)
		}
		p.completed.Add(1)
	}()
	task()
}
