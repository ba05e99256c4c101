package app

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/prowire/prowire/internal/session"
)

// Executor is the slot for whatever evaluates protocol requests. Its
// request/response semantics are owned by the embedding application; the
// server only routes bytes to it from the terminal pipeline stage.
type Executor interface {
	Execute(sessionID string, request []byte) ([]byte, error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(sessionID string, request []byte) ([]byte, error)

func (f ExecutorFunc) Execute(sessionID string, request []byte) ([]byte, error) {
	return f(sessionID, request)
}

// Context is the application context injected at start/restart. It owns the
// metrics registry used by the monitoring bridge and is passed opaquely into
// the session and execution stages.
type Context struct {
	Metrics  *prometheus.Registry
	Sessions *session.Registry
	Exec     Executor
}

// NewContext creates an application context with a fresh metrics registry
// and session registry around the given executor.
func NewContext(exec Executor) *Context {
	return &Context{
		Metrics:  prometheus.NewRegistry(),
		Sessions: session.NewRegistry(),
		Exec:     exec,
	}
}
