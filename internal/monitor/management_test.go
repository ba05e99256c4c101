package monitor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAtRootMakesObjectsResolvable(t *testing.T) {
	r := NewManagementRegistry()
	obj := staticObject{name: ObjectThreadPool, attrs: map[string]float64{"thread-pool-core-pool-size": 8}}
	h := NewHandle(obj)

	r.RegisterAtRoot(h, "prowire")

	resolved, ok := r.Lookup(ObjectThreadPool)
	require.True(t, ok)
	assert.Equal(t, float64(8), resolved.Attribute("thread-pool-core-pool-size"))
}

func TestDeregisterRemovesObjects(t *testing.T) {
	r := NewManagementRegistry()
	h := NewHandle(staticObject{name: ObjectThreadPool})
	r.RegisterAtRoot(h, "prowire")

	require.NoError(t, r.Deregister(h))
	_, ok := r.Lookup(ObjectThreadPool)
	assert.False(t, ok)
}

func TestDeregisterUnknownHandleIsBenign(t *testing.T) {
	r := NewManagementRegistry()

	// Never registered.
	err := r.Deregister(NewHandle())
	assert.ErrorIs(t, err, ErrHandleNotFound)

	// Nil handle, as after a double restart without an intervening enable.
	err = r.Deregister(nil)
	assert.ErrorIs(t, err, ErrHandleNotFound)

	// Double deregistration.
	h := NewHandle(staticObject{name: ObjectBufferPool})
	r.RegisterAtRoot(h, "prowire")
	require.NoError(t, r.Deregister(h))
	assert.ErrorIs(t, r.Deregister(h), ErrHandleNotFound)
}
