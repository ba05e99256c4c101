package pipeline

import (
	"bufio"
	"fmt"
	"time"
)

// transportStage is always first. It hands the connection's buffered reader
// downstream so the idle and framing stages see raw transport reads in order.
type transportStage struct{}

func newTransportStage() *transportStage { return &transportStage{} }

func (s *transportStage) Name() string { return "transport" }

func (s *transportStage) Handle(ctx *Context, _ any) (any, error) {
	return ctx.Reader(), nil
}

// idleTimeoutStage enforces the per-connection idle ceiling. It must run
// before framing so the deadline covers the blocking read of the next frame.
type idleTimeoutStage struct {
	maxIdle       time.Duration
	checkInterval time.Duration
}

func newIdleTimeoutStage(checkIntervalMillis, maxIdleMillis int64) *idleTimeoutStage {
	return &idleTimeoutStage{
		maxIdle:       time.Duration(maxIdleMillis) * time.Millisecond,
		checkInterval: time.Duration(checkIntervalMillis) * time.Millisecond,
	}
}

func (s *idleTimeoutStage) Name() string { return "idle-timeout" }

func (s *idleTimeoutStage) Handle(ctx *Context, in any) (any, error) {
	if s.maxIdle > 0 {
		if err := ctx.Conn.SetReadDeadline(time.Now().Add(s.maxIdle)); err != nil {
			return nil, err
		}
	}
	return in, nil
}

// framingStage decodes raw bytes into protocol messages.
type framingStage struct{}

func newFramingStage() *framingStage { return &framingStage{} }

func (s *framingStage) Name() string { return "message-framing" }

func (s *framingStage) Handle(ctx *Context, in any) (any, error) {
	r, ok := in.(*bufio.Reader)
	if !ok {
		return nil, fmt.Errorf("unexpected input %T", in)
	}
	msg, err := ReadMessage(r)
	if err != nil {
		return nil, err
	}
	ctx.trackFrame(msg)
	return msg, nil
}

// sessionStage resolves or creates the session a message addresses and tracks
// its activity. It runs after security and before execution.
type sessionStage struct{}

func newSessionStage() *sessionStage { return &sessionStage{} }

func (s *sessionStage) Name() string { return "session" }

func (s *sessionStage) Handle(ctx *Context, in any) (any, error) {
	msg, ok := in.(*Message)
	if !ok {
		return nil, fmt.Errorf("unexpected input %T", in)
	}
	if msg.SessionID != "" {
		if existing, ok := ctx.App.Sessions.Get(msg.SessionID); ok {
			ctx.Session = existing
		}
	}
	if ctx.Session == nil {
		ctx.Session = ctx.App.Sessions.Create()
		msg.SessionID = ctx.Session.ID
	}
	ctx.Session.Touch()
	return msg, nil
}

// execStage is the terminal stage: it hands the request body to the
// application's executor and writes the framed response. Always last,
// always present exactly once.
type execStage struct{}

func newExecStage() *execStage { return &execStage{} }

func (s *execStage) Name() string { return "exec" }

func (s *execStage) Handle(ctx *Context, in any) (any, error) {
	msg, ok := in.(*Message)
	if !ok {
		return nil, fmt.Errorf("unexpected input %T", in)
	}
	sessionID := msg.SessionID
	if ctx.Session != nil {
		sessionID = ctx.Session.ID
	}
	result, err := ctx.App.Exec.Execute(sessionID, msg.Body)
	if err != nil {
		return nil, err
	}
	reply := &Message{
		Version:   ProtocolVersion,
		Type:      msg.Type,
		SessionID: sessionID,
		Body:      result,
	}
	if err := WriteMessage(ctx.Conn, reply); err != nil {
		return nil, err
	}
	return nil, nil
}
