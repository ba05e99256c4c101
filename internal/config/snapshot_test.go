package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotDefaults(t *testing.T) {
	snap := NewSnapshot(NewRaw(nil))

	assert.Equal(t, "0.0.0.0", snap.BindHost)
	assert.Equal(t, uint16(8184), snap.BindPort)
	assert.Equal(t, 8, snap.WorkerPoolCore)
	assert.Equal(t, 8, snap.WorkerPoolMax)
	assert.Equal(t, 4, snap.KernelPoolCore)
	assert.Equal(t, 4, snap.KernelPoolMax)
	assert.Equal(t, int64(180000), snap.IdleMaxMillis)
	assert.Equal(t, int64(3000000), snap.IdleCheckIntervalMillis)
	assert.False(t, snap.MonitoringEnabled)
	assert.Equal(t, "leader-follower", snap.IOStrategyName)
	assert.Equal(t, SecurityNone, snap.Security.Kind)
	assert.True(t, snap.SessionsAllowed)
}

func TestSnapshotFromYAML(t *testing.T) {
	raw, err := Parse([]byte(`
server:
  host: 127.0.0.1
  port: 8185
thread-pool:
  worker:
    core-size: 2
    max-size: 16
  kernel:
    core-size: 1
    max-size: 2
connection:
  max-idle: 1000
  check-interval: 500
monitoring:
  enabled: true
io-strategy: same-thread
sessions:
  enabled: false
`))
	require.NoError(t, err)

	snap := NewSnapshot(raw)
	assert.Equal(t, "127.0.0.1", snap.BindHost)
	assert.Equal(t, uint16(8185), snap.BindPort)
	assert.Equal(t, 2, snap.WorkerPoolCore)
	assert.Equal(t, 16, snap.WorkerPoolMax)
	assert.Equal(t, 1, snap.KernelPoolCore)
	assert.Equal(t, 2, snap.KernelPoolMax)
	assert.Equal(t, int64(1000), snap.IdleMaxMillis)
	assert.Equal(t, int64(500), snap.IdleCheckIntervalMillis)
	assert.True(t, snap.MonitoringEnabled)
	assert.Equal(t, "same-thread", snap.IOStrategyName)
	assert.False(t, snap.SessionsAllowed)
}

func TestSecurityModeParsing(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		kind SecurityKind
		ref  string
	}{
		{"missing section", ``, SecurityNone, ""},
		{"explicit none", "security:\n  type: none\n", SecurityNone, ""},
		{"default", "security:\n  type: default\n", SecurityDefault, ""},
		{"custom ref", "security:\n  type: acme-ldap\n", SecurityCustom, "acme-ldap"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			raw, err := Parse([]byte(tc.yaml))
			require.NoError(t, err)
			snap := NewSnapshot(raw)
			assert.Equal(t, tc.kind, snap.Security.Kind)
			assert.Equal(t, tc.ref, snap.Security.Ref)
		})
	}
}

func TestRawGetters(t *testing.T) {
	raw, err := Parse([]byte(`
a:
  b:
    c: hello
    n: 7
    big: 3000000
    flag: true
`))
	require.NoError(t, err)

	assert.Equal(t, "hello", raw.GetString("a.b.c", "x"))
	assert.Equal(t, "x", raw.GetString("a.b.missing", "x"))
	assert.Equal(t, 7, raw.GetInt("a.b.n", 0))
	assert.Equal(t, int64(3000000), raw.GetInt64("a.b.big", 0))
	assert.True(t, raw.GetBool("a.b.flag", false))
	assert.Equal(t, 42, raw.GetInt("nope", 42))

	sub := raw.Sub("a.b")
	require.NotNil(t, sub)
	assert.Equal(t, "hello", sub.GetString("c", ""))
	assert.Nil(t, raw.Sub("a.b.c"))
}

func TestParseRejectsInvalidYAML(t *testing.T) {
	_, err := Parse([]byte("a: [unterminated"))
	require.Error(t, err)
}

func TestSnapshotPassesThroughOutOfRangePoolSizes(t *testing.T) {
	raw, err := Parse([]byte("thread-pool:\n  worker:\n    core-size: 8\n    max-size: 2\n"))
	require.NoError(t, err)

	// The snapshot carries out-of-range values uncorrected; clamping happens
	// when the pools are built.
	snap := NewSnapshot(raw)
	assert.Equal(t, 8, snap.WorkerPoolCore)
	assert.Equal(t, 2, snap.WorkerPoolMax)
}
