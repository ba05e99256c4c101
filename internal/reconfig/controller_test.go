package reconfig

import (
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prowire/prowire/internal/app"
	"github.com/prowire/prowire/internal/config"
	"github.com/prowire/prowire/internal/monitor"
	"github.com/prowire/prowire/internal/server"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func rawFor(t *testing.T, yaml string) *config.Raw {
	t.Helper()
	raw, err := config.Parse([]byte(yaml))
	require.NoError(t, err)
	return raw
}

func portConfig(t *testing.T, port int) *config.Raw {
	return rawFor(t, fmt.Sprintf("server:\n  host: 127.0.0.1\n  port: %d\n", port))
}

func startedManager(t *testing.T, port int) (*server.Manager, *app.Context) {
	t.Helper()
	appCtx := app.NewContext(app.ExecutorFunc(func(sessionID string, request []byte) ([]byte, error) {
		return request, nil
	}))
	mgr := server.NewManager(portConfig(t, port))
	require.NoError(t, mgr.Start(appCtx))
	t.Cleanup(func() { mgr.Stop() })
	return mgr, appCtx
}

func TestControllerAppliesUpdate(t *testing.T) {
	p1 := freePort(t)
	p2 := freePort(t)
	mgr, appCtx := startedManager(t, p1)

	updates := make(chan *config.Raw, 1)
	ctl := NewController(mgr, appCtx, updates)
	ctl.Start()
	defer ctl.Stop()

	updates <- portConfig(t, p2)

	newAddr := fmt.Sprintf("127.0.0.1:%d", p2)
	assert.Eventually(t, func() bool {
		_, bound := mgr.Transport().Listener(newAddr)
		return bound
	}, 2*time.Second, 10*time.Millisecond, "controller should rebind to the new port")
	assert.Equal(t, server.StateRunning, mgr.State())
}

// A configuration that cannot be turned into a chain must not take the
// running server down.
func TestControllerSwallowsFailedReconfiguration(t *testing.T) {
	port := freePort(t)
	mgr, appCtx := startedManager(t, port)

	failures := testutil.ToFloat64(monitor.ReconfigFailures)

	updates := make(chan *config.Raw, 1)
	ctl := NewController(mgr, appCtx, updates)
	ctl.Start()
	defer ctl.Stop()

	updates <- rawFor(t, fmt.Sprintf(
		"server:\n  host: 127.0.0.1\n  port: %d\nsecurity:\n  type: bogus\n", port))

	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(monitor.ReconfigFailures) > failures
	}, 2*time.Second, 10*time.Millisecond)

	// Still running on the original endpoint.
	assert.Equal(t, server.StateRunning, mgr.State())
	_, bound := mgr.Transport().Listener(fmt.Sprintf("127.0.0.1:%d", port))
	assert.True(t, bound)
}

func TestControllerStopEndsLoop(t *testing.T) {
	port := freePort(t)
	mgr, appCtx := startedManager(t, port)

	updates := make(chan *config.Raw)
	ctl := NewController(mgr, appCtx, updates)
	ctl.Start()

	done := make(chan struct{})
	go func() {
		ctl.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("controller did not stop")
	}
}
