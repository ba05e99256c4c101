package control

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/prowire/prowire/pkg/logger"
)

// DefaultSocketPath is where the control socket lives unless configured
// otherwise ("control.socket-path").
const DefaultSocketPath = "/tmp/prowire.sock"

// Server listens on a unix domain socket for operator commands. The only
// command today is "reload", which forces a re-read of the configuration
// file through the registered callback.
type Server struct {
	socketPath string
	onReload   func() error

	l      net.Listener
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewServer creates a control server invoking onReload for each reload
// command.
func NewServer(socketPath string, onReload func() error) *Server {
	if socketPath == "" {
		socketPath = DefaultSocketPath
	}
	return &Server{
		socketPath: socketPath,
		onReload:   onReload,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
}

// Start binds the control socket and begins serving commands. A stale socket
// file from a previous run is removed first.
func (s *Server) Start() error {
	if _, err := os.Stat(s.socketPath); err == nil {
		os.Remove(s.socketPath)
	}
	l, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return err
	}
	os.Chmod(s.socketPath, 0700)
	s.l = l
	go s.acceptLoop()
	logger.Log.Info("Control: listening", "socket", s.socketPath)
	return nil
}

// Stop closes the control socket and removes its file.
func (s *Server) Stop() {
	close(s.stopCh)
	if s.l != nil {
		s.l.Close()
	}
	<-s.doneCh
	os.Remove(s.socketPath)
}

func (s *Server) acceptLoop() {
	defer close(s.doneCh)
	for {
		conn, err := s.l.Accept()
		if err != nil {
			select {
			case <-s.stopCh:
			default:
				logger.Log.Error("Control: accept failed", "err", err)
			}
			return
		}
		go s.handle(conn)
	}
}

func (s *Server) handle(conn net.Conn) {
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		return
	}
	switch cmd := strings.TrimSpace(line); cmd {
	case "reload":
		logger.Log.Info("Control: reload requested")
		if err := s.onReload(); err != nil {
			fmt.Fprintf(conn, "err %v\n", err)
			return
		}
		fmt.Fprint(conn, "ok\n")
	default:
		fmt.Fprintf(conn, "err unknown command %q\n", cmd)
	}
}

// Reload is the client side: it connects to the control socket of a running
// server and requests a configuration reload.
func Reload(socketPath string, timeout time.Duration) error {
	if socketPath == "" {
		socketPath = DefaultSocketPath
	}
	conn, err := net.DialTimeout("unix", socketPath, timeout)
	if err != nil {
		return fmt.Errorf("connecting to control socket: %w", err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(timeout))

	if _, err := fmt.Fprint(conn, "reload\n"); err != nil {
		return err
	}
	reply, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		return err
	}
	reply = strings.TrimSpace(reply)
	if reply != "ok" {
		return fmt.Errorf("reload rejected: %s", reply)
	}
	return nil
}
