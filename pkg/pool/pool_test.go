package pool

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizedClampsOutOfRange(t *testing.T) {
	cfg, adjusted := Config{Name: "worker", Core: 8, Max: 2}.Normalized()
	assert.True(t, adjusted)
	assert.Equal(t, 8, cfg.Core)
	assert.Equal(t, 8, cfg.Max)

	cfg, adjusted = Config{Name: "worker", Core: 0, Max: 0}.Normalized()
	assert.True(t, adjusted)
	assert.Equal(t, 1, cfg.Core)
	assert.Equal(t, 1, cfg.Max)

	_, adjusted = Config{Name: "worker", Core: 4, Max: 8}.Normalized()
	assert.False(t, adjusted)
}

func TestSubmitRunsTasks(t *testing.T) {
	p := New(Config{Name: "test", Core: 2, Max: 4})
	defer p.Close()

	var count atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		require.NoError(t, p.Submit(func() {
			defer wg.Done()
			count.Add(1)
		}))
	}
	wg.Wait()
	assert.Equal(t, int64(50), count.Load())
	assert.Eventually(t, func() bool { return p.Completed() == 50 },
		2*time.Second, 10*time.Millisecond)
}

func TestSubmitAfterCloseFails(t *testing.T) {
	p := New(Config{Name: "test", Core: 1, Max: 1})
	p.Close()
	assert.ErrorIs(t, p.Submit(func() {}), ErrClosed)
}

func TestTaskPanicDoesNotKillWorker(t *testing.T) {
	p := New(Config{Name: "test", Core: 1, Max: 1})
	defer p.Close()

	require.NoError(t, p.Submit(func() { panic("boom") }))

	done := make(chan struct{})
	require.NoError(t, p.Submit(func() { close(done) }))
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not survive the panic")
	}
}

func TestSizes(t *testing.T) {
	p := New(Config{Name: "test", Core: 2, Max: 6})
	defer p.Close()

	assert.Equal(t, "test", p.Name())
	assert.Equal(t, 2, p.CoreSize())
	assert.Equal(t, 6, p.MaxSize())
	assert.Equal(t, 2, p.Workers())
	assert.Equal(t, uint64(2), p.TotalSpawned())
}
