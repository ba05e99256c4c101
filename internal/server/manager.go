package server

import (
	stderrors "errors"
	"sync"

	"github.com/prowire/prowire/internal/app"
	"github.com/prowire/prowire/internal/config"
	"github.com/prowire/prowire/internal/monitor"
	"github.com/prowire/prowire/internal/pipeline"
	"github.com/prowire/prowire/internal/session"
	"github.com/prowire/prowire/pkg/errors"
	"github.com/prowire/prowire/pkg/fsm"
	"github.com/prowire/prowire/pkg/logger"
	"github.com/prowire/prowire/pkg/pool"
)

// ManagementNamespace is the root under which the transport's management
// handle is registered when monitoring is enabled.
const ManagementNamespace = "prowire"

// Lifecycle states of the manager.
const (
	StateUnconfigured fsm.State = "UNCONFIGURED"
	StateConfigured   fsm.State = "CONFIGURED"
	StateRunning      fsm.State = "RUNNING"
	StateStopped      fsm.State = "STOPPED"
)

// PreviousSettings is the subset of the prior snapshot needed for change
// detection during a restart.
type PreviousSettings struct {
	BindHost          string
	BindPort          uint16
	MonitoringEnabled bool
}

// Manager owns the transport lifecycle: it binds and unbinds listeners,
// swaps in freshly built chains, toggles monitoring, and decides whether a
// configuration change requires a disruptive rebind. All mutation funnels
// through the restart entry point, guarded by one mutex; there is exactly
// one logical restart in flight at a time.
type Manager struct {
	mu        sync.Mutex
	lifecycle *fsm.StateMachine

	snap      config.Snapshot
	transport *Transport

	mgmt   *monitor.ManagementRegistry
	bridge *monitor.Bridge
	handle *monitor.Handle

	reaper *session.Reaper
}

// NewManager derives the initial snapshot, builds the executor pools per
// the thread pool policy, and constructs the transport. This configuration
// step runs once; restarts reuse the same transport and pools.
func NewManager(raw *config.Raw) *Manager {
	m := &Manager{
		snap: config.NewSnapshot(raw),
		mgmt: monitor.NewManagementRegistry(),
	}
	m.bridge = monitor.NewBridge(m.mgmt)

	m.lifecycle = fsm.New(StateUnconfigured)
	m.lifecycle.AddTransition(StateUnconfigured, StateConfigured, "configure", nil)
	m.lifecycle.AddTransition(StateConfigured, StateRunning, "start", nil)
	m.lifecycle.AddTransition(StateRunning, StateRunning, "restart", nil)
	m.lifecycle.AddTransition(StateConfigured, StateStopped, "stop", nil)
	m.lifecycle.AddTransition(StateRunning, StateStopped, "stop", nil)

	m.configureTransport()
	return m
}

func (m *Manager) configureTransport() {
	workerCfg, kernelCfg := poolConfigs(m.snap)
	m.transport = NewTransport(pool.New(workerCfg), pool.New(kernelCfg))
	m.fire("configure")
}

// State returns the current lifecycle state.
func (m *Manager) State() fsm.State {
	return m.lifecycle.Current()
}

// Transport exposes the transport handle. The manager remains its sole
// mutator.
func (m *Manager) Transport() *Transport {
	return m.transport
}

// Snapshot returns the currently applied configuration snapshot.
func (m *Manager) Snapshot() config.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap
}

// Settings returns the change-detection subset of the current snapshot,
// captured by the reconfiguration controller before applying a new one.
func (m *Manager) Settings() PreviousSettings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return PreviousSettings{
		BindHost:          m.snap.BindHost,
		BindPort:          m.snap.BindPort,
		MonitoringEnabled: m.snap.MonitoringEnabled,
	}
}

// Reconfigure derives and installs a new snapshot from the raw
// configuration. The next restart applies it.
func (m *Manager) Reconfigure(raw *config.Raw) {
	m.mu.Lock()
	m.snap = config.NewSnapshot(raw)
	m.mu.Unlock()
}

// Start brings the server up: equivalent to a restart that also begins
// accepting connections and launches the idle session reaper. Errors are
// startup-fatal.
func (m *Manager) Start(appCtx *app.Context) error {
	return m.restart(appCtx, false, PreviousSettings{})
}

// Restart applies the current snapshot to the running server without
// stopping the accept loop. prev carries the last-applied settings for
// change detection.
func (m *Manager) Restart(appCtx *app.Context, prev PreviousSettings) error {
	return m.restart(appCtx, true, prev)
}

func (m *Manager) restart(appCtx *app.Context, isRestart bool, prev PreviousSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := m.snap

	// Build the new chain first: a build error aborts the restart and leaves
	// the previously running transport untouched.
	chain, err := pipeline.Build(snap, appCtx)
	if err != nil {
		return err
	}

	strategy := StrategyFor(snap.IOStrategyName)
	logger.Log.Info("Transport: using IO strategy", "strategy", strategy.Name())
	m.transport.SetIOStrategy(strategy)
	m.transport.SetProcessor(chain)

	// Unbind everything first, then bind back, but only if changed.
	if prev.BindHost != snap.BindHost || prev.BindPort != snap.BindPort {
		m.transport.UnbindAll()
		if err := m.transport.Bind(snap.BindHost, snap.BindPort); err != nil {
			return errors.New(errors.ErrCodeBindFailed, "server.restart",
				"binding transport", err)
		}
		logger.Log.Info("Transport: bound", "host", snap.BindHost, "port", snap.BindPort)
	}

	if prev.MonitoringEnabled != snap.MonitoringEnabled {
		if snap.MonitoringEnabled {
			m.handle = monitor.NewHandle(m.transport.ManagementObjects()...)
			m.mgmt.RegisterAtRoot(m.handle, ManagementNamespace)
			if err := m.bridge.RegisterCatalog(appCtx.Metrics); err != nil {
				return err
			}
			logger.Log.Info("Monitoring enabled")
		} else if isRestart {
			// Only deregister on a restart; on an initial run nothing was
			// registered yet.
			if err := m.mgmt.Deregister(m.handle); err != nil {
				if stderrors.Is(err, monitor.ErrHandleNotFound) {
					logger.Log.Debug("Could not deregister management handle on restart; perhaps it was never registered")
				} else {
					logger.Log.Warn("Monitoring: deregistration failed", "err", err)
				}
			}
			m.bridge.DeregisterCatalog(appCtx.Metrics)
			m.handle = nil
			logger.Log.Info("Monitoring disabled")
		}
	}

	// The transport keeps accepting across restarts; only the first start
	// begins acceptance and launches the idle session reaper.
	if !isRestart {
		if err := m.transport.Start(); err != nil {
			return errors.New(errors.ErrCodeTransportStart, "server.start",
				"starting transport", err)
		}
		m.reaper = session.NewReaper(appCtx.Sessions, snap.IdleMaxMillis, snap.IdleCheckIntervalMillis)
		m.reaper.Start()
		m.fire("start")
		monitor.RestartTotal.WithLabelValues("start").Inc()
	} else {
		m.fire("restart")
		monitor.RestartTotal.WithLabelValues("restart").Inc()
	}
	return nil
}

// Stop unconditionally stops the reaper and the transport. Terminal state.
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.reaper != nil {
		m.reaper.Stop()
		m.reaper = nil
	}
	err := m.transport.Stop()
	m.fire("stop")
	if err != nil {
		return errors.New(errors.ErrCodeTransportStop, "server.stop", "stopping transport", err)
	}
	return nil
}

func (m *Manager) fire(event fsm.Event) {
	if err := m.lifecycle.Fire(event); err != nil {
		logger.Log.Debug("Lifecycle: transition skipped", "event", event, "err", err)
	}
}
