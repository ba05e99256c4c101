package reconfig

import (
	"github.com/prowire/prowire/internal/app"
	"github.com/prowire/prowire/internal/config"
	"github.com/prowire/prowire/internal/monitor"
	"github.com/prowire/prowire/internal/server"
	"github.com/prowire/prowire/pkg/logger"
)

// Controller drives non-disruptive restarts from configuration-change
// notifications. A single consumer goroutine drains the updates channel, so
// at most one reconfiguration is ever in flight. A failed restart is a
// recoverable operational error: it is logged and swallowed, and the server
// keeps running under the old configuration where possible.
type Controller struct {
	mgr     *server.Manager
	appCtx  *app.Context
	updates <-chan *config.Raw
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewController creates a controller consuming raw configurations from
// updates.
func NewController(mgr *server.Manager, appCtx *app.Context, updates <-chan *config.Raw) *Controller {
	return &Controller{
		mgr:     mgr,
		appCtx:  appCtx,
		updates: updates,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// Start launches the reconciliation loop.
func (c *Controller) Start() {
	go c.loop()
}

// Stop terminates the reconciliation loop and waits for it to exit.
func (c *Controller) Stop() {
	close(c.stopCh)
	<-c.doneCh
}

func (c *Controller) loop() {
	defer close(c.doneCh)
	for {
		select {
		case <-c.stopCh:
			return
		case raw, ok := <-c.updates:
			if !ok {
				return
			}
			c.apply(raw)
		}
	}
}

// apply performs one reconfiguration cycle. It must never crash the owning
// process: failures surface only through logs and metrics.
func (c *Controller) apply(raw *config.Raw) {
	defer func() {
		if r := recover(); r != nil {
			logger.Log.Error("Reconfig: panic during restart", "panic", r)
			monitor.ReconfigFailures.Inc()
		}
	}()

	// Maintain history of previous settings for change detection.
	prev := c.mgr.Settings()
	c.mgr.Reconfigure(raw)

	if err := c.mgr.Restart(c.appCtx, prev); err != nil {
		logger.Log.Error("Reconfig: could not modify configuration; restart the server to apply changes", "err", err)
		monitor.ReconfigFailures.Inc()
		return
	}
	logger.Log.Info("Reconfig: configuration change applied")
}
