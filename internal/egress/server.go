package egress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/kstaniek/zmk-ipc-bridge/internal/logging"
	"github.com/kstaniek/zmk-ipc-bridge/internal/metrics"
)

// Sentinel errors, classified the same way as the ingress server: startup
// failures are fatal to this component only, runtime failures are
// per-connection and never fatal.
var (
	ErrListen = errors.New("egress: listen")
	ErrAccept = errors.New("egress: accept")
)

const acceptBackoff = 100 * time.Millisecond

// Server owns the egress listener and the client Table fed by its accept
// loop. It has no reader: an egress client is write-only from the server's
// point of view, so a dead client is only discovered lazily, on the next
// Broadcast that tries to write to it.
type Server struct {
	SocketPath string
	Backlog    int
	Table      *Table
	logger     *slog.Logger

	listener net.Listener
	readyCh  chan struct{}
}

// NewServer constructs an egress broadcaster bound to socketPath once Serve
// runs. backlog is recorded in Backlog (<= 0 becomes 5); Serve opens the
// listener through net.ListenConfig, which uses the operating system's
// default backlog, not this value.
func NewServer(socketPath string, table *Table, backlog int, logger *slog.Logger) *Server {
	if backlog <= 0 {
		backlog = 5
	}
	if logger == nil {
		logger = logging.L()
	}
	return &Server{
		SocketPath: socketPath,
		Backlog:    backlog,
		Table:      table,
		logger:     logger,
		readyCh:    make(chan struct{}),
	}
}

// Ready is closed once the listener is bound.
func (s *Server) Ready() <-chan struct{} { return s.readyCh }

// Serve unlinks any stale socket file, binds, listens, and accepts
// connections until ctx is cancelled. A bind/listen failure is fatal to the
// egress component only.
func (s *Server) Serve(ctx context.Context) error {
	if err := os.Remove(s.SocketPath); err != nil && !os.IsNotExist(err) {
		wrap := fmt.Errorf("%w: unlink stale socket: %v", ErrListen, err)
		metrics.IncError(metrics.ErrEgressListen)
		return wrap
	}
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "unix", s.SocketPath)
	if err != nil {
		wrap := fmt.Errorf("%w: %v", ErrListen, err)
		metrics.IncError(metrics.ErrEgressListen)
		return wrap
	}
	if ul, ok := ln.(*net.UnixListener); ok {
		ul.SetUnlinkOnClose(true)
	}
	s.listener = ln
	close(s.readyCh)
	s.logger.Info("egress_listen", "path", s.SocketPath)

	go func() { <-ctx.Done(); _ = ln.Close() }()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			metrics.IncError(metrics.ErrEgressAccept)
			s.logger.Warn("egress_accept_error", "error", err)
			time.Sleep(acceptBackoff)
			continue
		}
		s.acceptOne(conn)
	}
}

func (s *Server) acceptOne(conn net.Conn) {
	id, ok := s.Table.tryAdd(conn)
	if !ok {
		metrics.IncEgressRejected()
		s.logger.Warn("egress_client_rejected_capacity", "max_clients", s.Table.MaxClients)
		_ = conn.Close()
		return
	}
	metrics.SetEgressClients(s.Table.Count())
	s.logger.Info("egress_client_connected", "client_id", id)
}

// Shutdown closes the listener and every connected client.
func (s *Server) Shutdown() {
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.Table.closeAll()
}
