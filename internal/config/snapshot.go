package config

// Documented defaults applied when a key is missing from the raw
// configuration.
const (
	DefaultPort              uint16 = 8184
	DefaultHost                     = "0.0.0.0"
	DefaultWorkerCore               = 8
	DefaultWorkerMax                = 8
	DefaultKernelCore               = 4
	DefaultKernelMax                = 4
	DefaultIdleMaxMillis            = 180000
	DefaultIdleCheckMillis          = 3000000
	DefaultIOStrategy               = "leader-follower"
	DefaultSessionsAllowed          = true
)

// SecurityKind discriminates how the security stage slot is filled.
type SecurityKind int

const (
	// SecurityNone leaves the security slot empty.
	SecurityNone SecurityKind = iota
	// SecurityDefault selects the built-in security stage.
	SecurityDefault
	// SecurityCustom selects a registered custom stage by reference.
	SecurityCustom
)

// SecurityMode is the parsed "security" section discriminator.
type SecurityMode struct {
	Kind SecurityKind
	// Ref names the registered constructor when Kind is SecurityCustom.
	Ref string
}

// Snapshot is an immutable point-in-time copy of all tunables. A fresh
// Snapshot is derived from the raw configuration on every change
// notification; it is never mutated afterwards.
type Snapshot struct {
	BindHost string
	BindPort uint16

	WorkerPoolCore int
	WorkerPoolMax  int
	KernelPoolCore int
	KernelPoolMax  int

	IdleMaxMillis           int64
	IdleCheckIntervalMillis int64

	MonitoringEnabled bool
	IOStrategyName    string
	Security          SecurityMode
	SessionsAllowed   bool

	// raw backs the Configure hook of pluggable security stages.
	raw *Raw
}

// NewSnapshot derives a Snapshot from the raw configuration, applying the
// documented default for every missing key. Out-of-range pool sizes are not
// corrected here; the pool layer clamps them when the executors are built.
func NewSnapshot(raw *Raw) Snapshot {
	if raw == nil {
		raw = NewRaw(nil)
	}
	return Snapshot{
		BindHost:                raw.GetString("server.host", DefaultHost),
		BindPort:                uint16(raw.GetInt("server.port", int(DefaultPort))),
		WorkerPoolCore:          raw.GetInt("thread-pool.worker.core-size", DefaultWorkerCore),
		WorkerPoolMax:           raw.GetInt("thread-pool.worker.max-size", DefaultWorkerMax),
		KernelPoolCore:          raw.GetInt("thread-pool.kernel.core-size", DefaultKernelCore),
		KernelPoolMax:           raw.GetInt("thread-pool.kernel.max-size", DefaultKernelMax),
		IdleMaxMillis:           raw.GetInt64("connection.max-idle", DefaultIdleMaxMillis),
		IdleCheckIntervalMillis: raw.GetInt64("connection.check-interval", DefaultIdleCheckMillis),
		MonitoringEnabled:       raw.GetBool("monitoring.enabled", false),
		IOStrategyName:          raw.GetString("io-strategy", DefaultIOStrategy),
		Security:                parseSecurityMode(raw),
		SessionsAllowed:         raw.GetBool("sessions.enabled", DefaultSessionsAllowed),
		raw:                     raw,
	}
}

// Raw returns the raw configuration this snapshot was derived from. It is
// handed to pluggable security stages through their Configure hook.
func (s Snapshot) Raw() *Raw {
	return s.raw
}

func parseSecurityMode(raw *Raw) SecurityMode {
	sec := raw.Sub("security")
	if sec == nil {
		return SecurityMode{Kind: SecurityNone}
	}
	switch t := sec.GetString("type", "none"); t {
	case "none":
		return SecurityMode{Kind: SecurityNone}
	case "default":
		return SecurityMode{Kind: SecurityDefault}
	default:
		return SecurityMode{Kind: SecurityCustom, Ref: t}
	}
}
