package server

import (
	"errors"
	"net"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/prowire/prowire/internal/pipeline"
	"github.com/prowire/prowire/pkg/logger"
	"github.com/prowire/prowire/pkg/pool"
)

// Transport owns the listening sockets, the executor pools, and the active
// processing chain. It is created once by the lifecycle manager and mutated
// only through the manager's restart path; accept loops run on the kernel
// pool and dispatch connections per the configured IO strategy.
type Transport struct {
	mu        sync.Mutex
	listeners map[string]net.Listener
	conns     map[net.Conn]struct{}
	strategy  IOStrategy

	workers *pool.Pool
	kernel  *pool.Pool

	processor atomic.Pointer[pipeline.Chain]
	running   atomic.Bool

	acceptedTotal atomic.Uint64
	openConns     atomic.Int64
	bytesRead     atomic.Uint64
	bytesWritten  atomic.Uint64
}

// NewTransport constructs the transport around its executor pools. Runs
// once, at manager construction; never repeated.
func NewTransport(workers, kernel *pool.Pool) *Transport {
	t := &Transport{
		listeners: make(map[string]net.Listener),
		conns:     make(map[net.Conn]struct{}),
		strategy:  leaderFollowerStrategy{},
		workers:   workers,
		kernel:    kernel,
	}
	return t
}

// SetProcessor swaps the active chain. Connections dispatched before the
// swap keep executing against the chain instance they captured.
func (t *Transport) SetProcessor(c *pipeline.Chain) {
	t.processor.Store(c)
}

// Processor returns the currently installed chain.
func (t *Transport) Processor() *pipeline.Chain {
	return t.processor.Load()
}

// SetIOStrategy installs the dispatch strategy for subsequently accepted
// connections.
func (t *Transport) SetIOStrategy(s IOStrategy) {
	t.mu.Lock()
	t.strategy = s
	t.mu.Unlock()
}

// IOStrategy returns the current dispatch strategy.
func (t *Transport) IOStrategy() IOStrategy {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.strategy
}

// Bind opens a listener on host:port. Binding an address that is already
// bound is a no-op. If the transport is running, the new listener starts
// accepting immediately.
func (t *Transport) Bind(host string, port uint16) error {
	addr := net.JoinHostPort(host, strconv.Itoa(int(port)))

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.listeners[addr]; ok {
		return nil
	}
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	t.listeners[addr] = l
	if t.running.Load() {
		t.launchAcceptLocked(l)
	}
	return nil
}

// UnbindAll closes every listener. Connections already accepted are not
// disturbed.
func (t *Transport) UnbindAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for addr, l := range t.listeners {
		if err := l.Close(); err != nil {
			logger.Log.Warn("Transport: error closing listener", "addr", addr, "err", err)
		}
	}
	t.listeners = make(map[string]net.Listener)
}

// BoundAddrs returns the bound addresses in deterministic order.
func (t *Transport) BoundAddrs() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	addrs := make([]string, 0, len(t.listeners))
	for addr := range t.listeners {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)
	return addrs
}

// Listener returns the live listener for addr, if bound. Used by tests to
// assert that an unchanged endpoint is not rebound.
func (t *Transport) Listener(addr string) (net.Listener, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.listeners[addr]
	return l, ok
}

// Start begins accepting connections on all bound listeners. Only the first
// start and Stop toggle the running flag; restarts never touch it.
func (t *Transport) Start() error {
	if !t.running.CompareAndSwap(false, true) {
		return errors.New("transport already started")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, l := range t.listeners {
		t.launchAcceptLocked(l)
	}
	return nil
}

// Stop unconditionally stops the transport: closes all listeners, drops
// open connections, and shuts the executor pools down. Terminal.
func (t *Transport) Stop() error {
	t.running.Store(false)
	t.UnbindAll()

	t.mu.Lock()
	for conn := range t.conns {
		conn.Close()
	}
	t.conns = make(map[net.Conn]struct{})
	t.mu.Unlock()

	t.kernel.Close()
	t.workers.Close()
	return nil
}

// IsRunning reports whether the transport is accepting connections.
func (t *Transport) IsRunning() bool {
	return t.running.Load()
}

func (t *Transport) launchAcceptLocked(l net.Listener) {
	if err := t.kernel.Submit(func() { t.acceptLoop(l) }); err != nil {
		logger.Log.Error("Transport: could not schedule accept loop", "addr", l.Addr(), "err", err)
	}
}

func (t *Transport) acceptLoop(l net.Listener) {
	for {
		conn, err := l.Accept()
		if err != nil {
			// Listener closed by an unbind or stop.
			logger.Log.Debug("Transport: accept loop exiting", "addr", l.Addr(), "err", err)
			return
		}
		chain := t.processor.Load()
		if chain == nil {
			conn.Close()
			continue
		}
		t.acceptedTotal.Add(1)
		t.openConns.Add(1)
		counted := newCountingConn(conn, t)
		t.mu.Lock()
		t.conns[counted] = struct{}{}
		t.mu.Unlock()
		strategy := t.IOStrategy()
		strategy.Dispatch(t.workers, func() {
			defer func() {
				t.openConns.Add(-1)
				t.mu.Lock()
				delete(t.conns, counted)
				t.mu.Unlock()
			}()
			chain.Serve(counted)
		})
	}
}

// countingConn feeds the transport's byte counters.
type countingConn struct {
	net.Conn
	t *Transport
}

func newCountingConn(conn net.Conn, t *Transport) *countingConn {
	return &countingConn{Conn: conn, t: t}
}

func (c *countingConn) Read(p []byte) (int, error) {
	n, err := c.Conn.Read(p)
	if n > 0 {
		c.t.bytesRead.Add(uint64(n))
	}
	return n, err
}

func (c *countingConn) Write(p []byte) (int, error) {
	n, err := c.Conn.Write(p)
	if n > 0 {
		c.t.bytesWritten.Add(uint64(n))
	}
	return n, err
}
