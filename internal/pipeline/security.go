package pipeline

import (
	"crypto/subtle"
	"fmt"
	"sync"

	"github.com/prowire/prowire/internal/config"
)

// SecurityStage is the capability set a pluggable security stage must
// satisfy: a regular pipeline stage plus a Configure hook invoked once with
// the raw configuration after the stage is appended to a chain. Name is used
// only for logging.
type SecurityStage interface {
	Stage
	Configure(raw *config.Raw) error
}

// SecurityConstructor builds a fresh security stage instance. A new instance
// is created for every chain build; stages are never shared across chains.
type SecurityConstructor func() (SecurityStage, error)

var (
	securityMu    sync.RWMutex
	securityCtors = make(map[string]SecurityConstructor)
)

// RegisterSecurity maps a configuration discriminator to a constructor.
// Registering a name twice is an error.
func RegisterSecurity(name string, ctor SecurityConstructor) error {
	if name == "" || ctor == nil {
		return fmt.Errorf("security registration requires a name and constructor")
	}
	securityMu.Lock()
	defer securityMu.Unlock()
	if _, exists := securityCtors[name]; exists {
		return fmt.Errorf("security stage %q already registered", name)
	}
	securityCtors[name] = ctor
	return nil
}

// UnregisterSecurity removes a previously registered constructor.
func UnregisterSecurity(name string) {
	securityMu.Lock()
	defer securityMu.Unlock()
	delete(securityCtors, name)
}

func resolveSecurity(name string) (SecurityConstructor, bool) {
	securityMu.RLock()
	defer securityMu.RUnlock()
	ctor, ok := securityCtors[name]
	return ctor, ok
}

// defaultSecurityStage is the built-in security stage. It requires the first
// message on a connection to be an auth frame carrying the configured shared
// secret; every later message passes through once the connection is marked
// authenticated.
type defaultSecurityStage struct {
	secret string
}

// NewDefaultSecurityStage creates the built-in security stage. It is
// exported so embedders can register it under custom discriminators.
func NewDefaultSecurityStage() SecurityStage {
	return &defaultSecurityStage{}
}

func (s *defaultSecurityStage) Name() string { return "default-security" }

func (s *defaultSecurityStage) Configure(raw *config.Raw) error {
	if raw != nil {
		s.secret = raw.GetString("security.secret", "")
	}
	return nil
}

func (s *defaultSecurityStage) Handle(ctx *Context, in any) (any, error) {
	msg, ok := in.(*Message)
	if !ok {
		return nil, fmt.Errorf("unexpected input %T", in)
	}
	if ctx.Authenticated {
		return msg, nil
	}
	if msg.Type != MsgTypeAuth {
		return nil, fmt.Errorf("connection is not authenticated")
	}
	if subtle.ConstantTimeCompare(msg.Body, []byte(s.secret)) != 1 {
		return nil, fmt.Errorf("authentication rejected")
	}
	ctx.Authenticated = true
	ack := &Message{Version: ProtocolVersion, Type: MsgTypeAuth, SessionID: msg.SessionID}
	if err := WriteMessage(ctx.Conn, ack); err != nil {
		return nil, err
	}
	return nil, nil
}
