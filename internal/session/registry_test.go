package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryCreateAndGet(t *testing.T) {
	r := NewRegistry()

	s := r.Create()
	require.NotEmpty(t, s.ID)

	got, ok := r.Get(s.ID)
	require.True(t, ok)
	assert.Same(t, s, got)
	assert.Equal(t, 1, r.Len())

	r.Remove(s.ID)
	_, ok = r.Get(s.ID)
	assert.False(t, ok)
	assert.Equal(t, 0, r.Len())
}

func TestSweepEvictsOnlyIdleSessions(t *testing.T) {
	r := NewRegistry()

	stale := r.Create()
	stale.lastActive.Store(time.Now().Add(-time.Minute).UnixMilli())
	fresh := r.Create()

	evicted := r.Sweep(30 * time.Second)
	assert.Equal(t, 1, evicted)

	_, ok := r.Get(stale.ID)
	assert.False(t, ok)
	_, ok = r.Get(fresh.ID)
	assert.True(t, ok)
}

func TestTouchResetsIdleClock(t *testing.T) {
	r := NewRegistry()
	s := r.Create()
	s.lastActive.Store(time.Now().Add(-time.Minute).UnixMilli())

	s.Touch()
	assert.Equal(t, 0, r.Sweep(30*time.Second))
}

func TestReaperEvictsStaleSessions(t *testing.T) {
	r := NewRegistry()
	s := r.Create()
	s.lastActive.Store(time.Now().Add(-time.Hour).UnixMilli())

	reaper := NewReaper(r, 1000, 20) // 1s max idle, 20ms sweep
	reaper.Start()
	defer reaper.Stop()

	require.Eventually(t, func() bool {
		_, ok := r.Get(s.ID)
		return !ok
	}, 2*time.Second, 10*time.Millisecond)
}

func TestReaperDefaultsForBadValues(t *testing.T) {
	reaper := NewReaper(NewRegistry(), 0, -5)
	assert.Equal(t, 180*time.Second, reaper.maxIdle)
	assert.Equal(t, 3000*time.Second, reaper.interval)
}
