// Package egress implements the broadcaster side of the IPC bridge: a
// bounded client table fed by an accept loop, and a fan-out that encodes
// each event once and writes it to every occupied slot under the table's
// mutex.
//
// An earlier design routed broadcasts through a buffered per-client channel
// drained by its own ticker-batched writer goroutine, but that shape is
// deliberately not kept here, because the required invariants contradict
// it: broadcast must never block on socket I/O, must encode exactly once
// per call, and concurrent broadcasts must leave every client's frames
// contiguous in call order. A channel-plus-goroutine design can't promise
// that last property. Table keeps a "fixed set of slots behind one mutex"
// data structure and does the fan-out inline: Broadcast writes to every
// slot synchronously under the lock — see DESIGN.md for the full writeup
// of this decision.
package egress

import (
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kstaniek/zmk-ipc-bridge/internal/logging"
	"github.com/kstaniek/zmk-ipc-bridge/internal/metrics"
	"github.com/kstaniek/zmk-ipc-bridge/internal/schema"
	"github.com/kstaniek/zmk-ipc-bridge/internal/wire"
)

// slot holds one occupied client connection. A free slot is represented by
// its absence from Table.conns (a map keyed by an opaque handle), which
// gives a fixed-capacity array of free/occupied slots the same accept/evict
// semantics without a separate free-list to maintain — capacity is enforced
// by comparing len(conns) to MaxClients at accept time.
type slot struct {
	id   string
	conn net.Conn
}

// Table is the only shared mutable structure of the egress broadcaster: all
// mutation (insert on accept, evict on failed send) happens under mu, held
// for the duration of the operation.
type Table struct {
	mu         sync.Mutex
	conns      map[*slot]struct{}
	MaxClients int // 0 = unlimited
	SendTimeout time.Duration
	logger     *slog.Logger
}

// NewTable creates an empty client table. maxClients <= 0 means unlimited.
func NewTable(maxClients int) *Table {
	return &Table{
		conns:       make(map[*slot]struct{}),
		MaxClients:  maxClients,
		SendTimeout: 100 * time.Millisecond,
		logger:      logging.L(),
	}
}

// Count returns the number of currently occupied slots.
func (t *Table) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.conns)
}

// tryAdd inserts conn into the first free slot, or reports rejection if the
// table is at capacity. Returns the client's log-correlation id and true on
// success; on rejection it returns false and closes nothing — the caller
// closes the connection.
func (t *Table) tryAdd(conn net.Conn) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.MaxClients > 0 && len(t.conns) >= t.MaxClients {
		return "", false
	}
	id := uuid.NewString()
	t.conns[&slot{id: id, conn: conn}] = struct{}{}
	metrics.SetEgressClients(len(t.conns))
	return id, true
}

// Broadcast encodes ev once, aborts on encode failure, then under a single
// mutex acquisition attempts a non-blocking send to every occupied slot,
// evicting any slot whose send fails before moving to the next one.
func (t *Table) Broadcast(ev schema.ZmkEvent) {
	buf := make([]byte, schema.MaxZmkEventSize)
	n, err := wire.Encode(ev, buf)
	if err != nil {
		t.logger.Warn("egress_encode_failed", "error", err)
		return
	}
	payload := buf[:n]

	t.mu.Lock()
	defer t.mu.Unlock()
	metrics.SetBroadcastFanout(len(t.conns))
	for s := range t.conns {
		if sendErr := wire.Send(s.conn, payload, t.SendTimeout); sendErr != nil {
			_ = s.conn.Close()
			delete(t.conns, s)
			metrics.IncEgressEvicted()
			t.logger.Debug("egress_client_evicted", "client_id", s.id, "error", sendErr)
		} else {
			metrics.AddEgressTx(1)
		}
	}
	metrics.SetEgressClients(len(t.conns))
}

// closeAll closes every connection and empties the table; used on shutdown.
func (t *Table) closeAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for s := range t.conns {
		_ = s.conn.Close()
		delete(t.conns, s)
	}
	metrics.SetEgressClients(0)
}
