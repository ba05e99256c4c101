package pipeline

import (
	"bufio"
	"errors"
	"io"
	"net"

	"github.com/prowire/prowire/internal/app"
	"github.com/prowire/prowire/internal/session"
	"github.com/prowire/prowire/pkg/logger"
)

// Context carries per-connection state through the stages of a chain.
type Context struct {
	Conn    net.Conn
	App     *app.Context
	Session *session.Session

	// Authenticated is set by the security stage once the connection has
	// passed its check. Later stages assume an authenticated peer.
	Authenticated bool

	reader *bufio.Reader
	frame  *Message
}

// trackFrame remembers the decoded frame so its pooled buffer can be
// reclaimed once the event has traversed the chain.
func (c *Context) trackFrame(m *Message) {
	c.frame = m
}

func (c *Context) releaseFrame() {
	if c.frame != nil {
		c.frame.Release()
		c.frame = nil
	}
}

// Reader returns the buffered reader for the connection, creating it on
// first use.
func (c *Context) Reader() *bufio.Reader {
	if c.reader == nil {
		c.reader = bufio.NewReader(c.Conn)
	}
	return c.reader
}

// Stage is one unit in the ordered processing chain applied to every
// accepted connection. Handle receives the output of the previous stage and
// returns the value handed to the next one. A nil output with a nil error
// means the stage consumed the event; the chain starts over with the next
// inbound read.
type Stage interface {
	Name() string
	Handle(ctx *Context, in any) (any, error)
}

// Chain is an immutable ordered sequence of stages. A new chain is built for
// every (re)start; connections dispatched before a swap keep running against
// the chain instance they captured.
type Chain struct {
	stages []Stage
	app    *app.Context
}

// Stages returns a copy of the ordered stage list.
func (c *Chain) Stages() []Stage {
	out := make([]Stage, len(c.stages))
	copy(out, c.stages)
	return out
}

// Serve processes a single accepted connection until it closes or a stage
// fails. It is invoked from the transport's dispatch path.
func (c *Chain) Serve(conn net.Conn) {
	defer conn.Close()
	ctx := &Context{Conn: conn, App: c.app}
	for c.serveOne(ctx) {
	}
}

// serveOne runs one event through the stages and reports whether the
// connection should keep being served.
func (c *Chain) serveOne(ctx *Context) bool {
	defer ctx.releaseFrame()
	var in any
	var err error
	for _, s := range c.stages {
		in, err = s.Handle(ctx, in)
		if err != nil {
			c.logClose(ctx.Conn, s, err)
			return false
		}
		if in == nil {
			return true
		}
	}
	return true
}

func (c *Chain) logClose(conn net.Conn, s Stage, err error) {
	if errors.Is(err, io.EOF) {
		logger.Log.Debug("Pipeline: connection closed by peer", "remote", conn.RemoteAddr())
		return
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		logger.Log.Debug("Pipeline: closing idle connection", "remote", conn.RemoteAddr())
		return
	}
	logger.Log.Warn("Pipeline: closing connection", "remote", conn.RemoteAddr(), "stage", s.Name(), "err", err)
}
