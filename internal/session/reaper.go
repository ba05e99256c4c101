package session

import (
	"time"

	"github.com/prowire/prowire/pkg/logger"
)

// Reaper periodically sweeps the session registry and evicts sessions that
// have been idle longer than the configured maximum. It runs on its own
// timer, independent of request-processing goroutines, and only ever touches
// session records.
type Reaper struct {
	registry *Registry
	maxIdle  time.Duration
	interval time.Duration
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewReaper creates a reaper from the configured millisecond values.
// Non-positive values fall back to the documented defaults.
func NewReaper(registry *Registry, maxIdleMillis, checkIntervalMillis int64) *Reaper {
	if maxIdleMillis <= 0 {
		maxIdleMillis = 180000
	}
	if checkIntervalMillis <= 0 {
		checkIntervalMillis = 3000000
	}
	return &Reaper{
		registry: registry,
		maxIdle:  time.Duration(maxIdleMillis) * time.Millisecond,
		interval: time.Duration(checkIntervalMillis) * time.Millisecond,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start launches the sweep loop.
func (r *Reaper) Start() {
	logger.Log.Info("Reaper: starting idle session monitor", "max_idle", r.maxIdle, "interval", r.interval)
	go r.loop()
}

// Stop terminates the sweep loop and waits for it to exit.
func (r *Reaper) Stop() {
	close(r.stopCh)
	<-r.doneCh
}

func (r *Reaper) loop() {
	defer close(r.doneCh)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			if evicted := r.registry.Sweep(r.maxIdle); evicted > 0 {
				logger.Log.Info("Reaper: evicted idle sessions", "count", evicted)
			}
		}
	}
}
