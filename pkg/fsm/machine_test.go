package fsm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFireFollowsTransitions(t *testing.T) {
	sm := New("UNCONFIGURED")
	sm.AddTransition("UNCONFIGURED", "CONFIGURED", "configure", nil)
	sm.AddTransition("CONFIGURED", "RUNNING", "start", nil)
	sm.AddTransition("RUNNING", "RUNNING", "restart", nil)

	require.NoError(t, sm.Fire("configure"))
	require.NoError(t, sm.Fire("start"))
	assert.Equal(t, State("RUNNING"), sm.Current())

	// Self-loop keeps the machine in place.
	require.NoError(t, sm.Fire("restart"))
	assert.Equal(t, State("RUNNING"), sm.Current())
}

func TestFireRejectsInvalidTransition(t *testing.T) {
	sm := New("CONFIGURED")
	sm.AddTransition("CONFIGURED", "RUNNING", "start", nil)

	err := sm.Fire("stop")
	require.Error(t, err)
	assert.Equal(t, State("CONFIGURED"), sm.Current())
}

func TestCallbackVetoesTransition(t *testing.T) {
	veto := errors.New("not ready")
	sm := New("CONFIGURED")
	sm.AddTransition("CONFIGURED", "RUNNING", "start", func(Event, ...interface{}) error {
		return veto
	})

	err := sm.Fire("start")
	require.ErrorIs(t, err, veto)
	assert.Equal(t, State("CONFIGURED"), sm.Current())
}

func TestCan(t *testing.T) {
	sm := New("RUNNING")
	sm.AddTransition("RUNNING", "RUNNING", "restart", nil)

	assert.True(t, sm.Can("restart"))
	assert.False(t, sm.Can("start"))
}
