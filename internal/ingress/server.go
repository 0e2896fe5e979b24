// Package ingress implements the injection side of the IPC bridge: a
// single-peer Unix-domain socket that decodes ClientMessage frames and
// dispatches them into the simulated key-scan subsystem.
//
// Unlike the egress broadcaster, which serves any number of observers, the
// ingress socket serves at most one connected injector at a time. The
// server is a small state machine with
// two states: WAIT_PEER, where it blocks in Accept, and SERVING, where it
// decodes frames off the one connected peer until that peer disconnects or
// sends something unrecoverable, at which point it falls back to
// WAIT_PEER. A decode error on an otherwise-live peer does not drop the
// connection — only a truncated read, an oversize frame, or the peer
// closing does.
package ingress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/kstaniek/zmk-ipc-bridge/internal/logging"
	"github.com/kstaniek/zmk-ipc-bridge/internal/metrics"
	"github.com/kstaniek/zmk-ipc-bridge/internal/wire"
)

const (
	acceptBackoff     = 100 * time.Millisecond
	defaultMaxMessage = 64 // same value as schema.MaxClientMessageSize
)

// Server owns the ingress listener and the single live peer connection, if
// any. Geometry and the enabled gate can both be changed at runtime via
// Configure/Enable/Disable; a disabled server keeps decoding and draining
// frames (so a slow or confused peer can't wedge the socket) but does not
// forward them to Injector.
type Server struct {
	SocketPath   string
	Backlog      int
	MaxFrameSize uint32
	Injector     Injector

	logger   *slog.Logger
	listener net.Listener
	readyCh  chan struct{}

	mu      sync.RWMutex
	geom    Geometry
	enabled bool
}

// NewServer constructs an ingress server bound to socketPath once Serve
// runs. The server starts disabled; call Enable once the host is ready to
// accept injected events.
func NewServer(socketPath string, geom Geometry, inj Injector, backlog int, logger *slog.Logger) *Server {
	if backlog <= 0 {
		backlog = 1
	}
	if logger == nil {
		logger = logging.L()
	}
	return &Server{
		SocketPath:   socketPath,
		Backlog:      backlog,
		MaxFrameSize: defaultMaxMessage,
		Injector:     inj,
		logger:       logger,
		readyCh:      make(chan struct{}),
		geom:         geom,
	}
}

// Ready is closed once the listener is bound.
func (s *Server) Ready() <-chan struct{} { return s.readyCh }

// Configure replaces the matrix geometry used to resolve an explicit
// KeyPosition into the host's linear numbering and to validate a linear
// Position payload, e.g. once the simulated host learns its real column
// count.
func (s *Server) Configure(geom Geometry) {
	s.mu.Lock()
	s.geom = geom
	s.mu.Unlock()
}

// Enable allows decoded key events to reach Injector.
func (s *Server) Enable() { s.mu.Lock(); s.enabled = true; s.mu.Unlock() }

// Disable stops forwarding decoded key events to Injector without closing
// the peer connection or the listener; frames are still read and decoded.
func (s *Server) Disable() { s.mu.Lock(); s.enabled = false; s.mu.Unlock() }

func (s *Server) snapshot() (Geometry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.geom, s.enabled
}

// Serve binds the listener and runs the WAIT_PEER/SERVING loop until ctx is
// cancelled. A bind failure is fatal to this component only.
func (s *Server) Serve(ctx context.Context) error {
	if err := os.Remove(s.SocketPath); err != nil && !os.IsNotExist(err) {
		wrap := fmt.Errorf("%w: unlink stale socket: %v", ErrListen, err)
		metrics.IncError(metrics.ErrIngressListen)
		return wrap
	}
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "unix", s.SocketPath)
	if err != nil {
		wrap := fmt.Errorf("%w: %v", ErrListen, err)
		metrics.IncError(metrics.ErrIngressListen)
		return wrap
	}
	if ul, ok := ln.(*net.UnixListener); ok {
		ul.SetUnlinkOnClose(true)
	}
	s.listener = ln
	close(s.readyCh)
	s.logger.Info("ingress_listen", "path", s.SocketPath)

	go func() { <-ctx.Done(); _ = ln.Close() }()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			metrics.IncError(metrics.ErrIngressAccept)
			s.logger.Warn("ingress_accept_error", "error", err)
			time.Sleep(acceptBackoff)
			continue
		}
		metrics.IncIngressPeer()
		s.logPeer(conn)
		s.servePeer(ctx, conn)
		// Fall back to WAIT_PEER: loop around to Accept again.
	}
}

func (s *Server) logPeer(conn net.Conn) {
	if creds, ok := peerCredsOf(conn); ok {
		s.logger.Info("ingress_peer_connected", "pid", creds.PID, "uid", creds.UID)
		return
	}
	s.logger.Info("ingress_peer_connected")
}

// servePeer runs the SERVING state for one connection: decode until the
// peer disconnects, the frame is oversize, or a read fails outright. A
// malformed-but-bounded frame is logged and the loop continues on the same
// peer; corrupt frames don't disconnect it.
func (s *Server) servePeer(ctx context.Context, conn net.Conn) {
	defer func() { _ = conn.Close() }()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		msg, err := wire.RecvClientMessage(conn, s.MaxFrameSize)
		if err != nil {
			switch {
			case errors.Is(err, wire.ErrPeerClosed):
				s.logger.Info("ingress_peer_disconnected")
				return
			case errors.Is(err, wire.ErrTooLarge):
				metrics.IncIngressDropped()
				s.logger.Warn("ingress_frame_oversize_disconnect")
				return
			case errors.Is(err, wire.ErrDecode), errors.Is(err, wire.ErrTruncated):
				metrics.IncIngressMalformed()
				s.logger.Warn("ingress_frame_malformed", "error", err)
				continue
			default:
				metrics.IncError(metrics.ErrIngressRead)
				s.logger.Warn("ingress_read_error", "error", err)
				return
			}
		}
		metrics.IncIngressDecoded()
		geom, enabled := s.snapshot()
		if !enabled {
			continue
		}
		if err := Dispatch(msg, geom, s.Injector); err != nil {
			metrics.IncIngressDropped()
			s.logger.Warn("ingress_dispatch_rejected", "error", err)
		}
	}
}

// Shutdown closes the listener, dropping any peer currently in Accept.
func (s *Server) Shutdown() {
	if s.listener != nil {
		_ = s.listener.Close()
	}
}
