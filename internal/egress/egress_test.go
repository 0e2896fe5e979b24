package egress

import (
	"context"
	"net"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/kstaniek/zmk-ipc-bridge/internal/schema"
	"github.com/kstaniek/zmk-ipc-bridge/internal/wire"
)

func startServer(t *testing.T, maxClients int) (*Server, string) {
	t.Helper()
	sock := filepath.Join(t.TempDir(), "egress.sock")
	table := NewTable(maxClients)
	srv := NewServer(sock, table, 5, nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() {
		if err := srv.Serve(ctx); err != nil {
			t.Logf("serve returned: %v", err)
		}
	}()
	select {
	case <-srv.Ready():
	case <-time.After(time.Second):
		t.Fatalf("server not ready")
	}
	return srv, sock
}

func dial(t *testing.T, sock string) net.Conn {
	t.Helper()
	conn, err := net.DialTimeout("unix", sock, time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func waitForCount(t *testing.T, tbl *Table, want int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if tbl.Count() == want {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("table count never reached %d (at %d)", want, tbl.Count())
}

func TestBroadcastFanOutToAllClients(t *testing.T) {
	srv, sock := startServer(t, 0)
	const k = 3
	conns := make([]net.Conn, k)
	for i := range conns {
		conns[i] = dial(t, sock)
	}
	waitForCount(t, srv.Table, k)

	ev := schema.ZmkEvent{Kscan: &schema.KscanEvent{Source: 1, Position: 5, Pressed: true, Timestamp: 9}}
	srv.Table.Broadcast(ev)

	want := make([]byte, schema.MaxZmkEventSize)
	n, err := wire.Encode(ev, want)
	if err != nil {
		t.Fatalf("encode reference: %v", err)
	}
	wantFrame := make([]byte, 4+n)
	wantFrame[0], wantFrame[1], wantFrame[2], wantFrame[3] = 0, 0, 0, byte(n)
	copy(wantFrame[4:], want[:n])

	for i, c := range conns {
		_ = c.SetReadDeadline(time.Now().Add(time.Second))
		got := make([]byte, len(wantFrame))
		if _, err := readFull(t, c, got); err != nil {
			t.Fatalf("client %d read: %v", i, err)
		}
		for j := range got {
			if got[j] != wantFrame[j] {
				t.Fatalf("client %d frame mismatch at byte %d: got %x want %x", i, j, got, wantFrame)
			}
		}
	}
}

func readFull(t *testing.T, c net.Conn, buf []byte) (int, error) {
	t.Helper()
	total := 0
	for total < len(buf) {
		n, err := c.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func TestDeadClientEvictedOnNextBroadcast(t *testing.T) {
	srv, sock := startServer(t, 0)
	dead := dial(t, sock)
	waitForCount(t, srv.Table, 1)
	_ = dead.Close()

	// First broadcast after close may or may not observe the failure
	// immediately depending on OS buffering, so retry a few times — the
	// property under test is "the client is evicted by some subsequent
	// broadcast", not "the very next one" on every platform.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && srv.Table.Count() > 0 {
		srv.Table.Broadcast(schema.ZmkEvent{Kscan: &schema.KscanEvent{Source: 1}})
		time.Sleep(5 * time.Millisecond)
	}
	if srv.Table.Count() != 0 {
		t.Fatalf("expected dead client to be evicted, table count=%d", srv.Table.Count())
	}
}

func TestCapacityRejectsBeyondMax(t *testing.T) {
	srv, sock := startServer(t, 2)
	c1 := dial(t, sock)
	c2 := dial(t, sock)
	_ = c1
	_ = c2
	waitForCount(t, srv.Table, 2)

	c3 := dial(t, sock)
	// The kernel accepts the TCP/unix connection; the broadcaster then
	// closes it. Expect EOF on read or a count that stays at 2.
	_ = c3.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	buf := make([]byte, 1)
	_, err := c3.Read(buf)
	if err == nil {
		t.Fatalf("expected rejected connection to be closed")
	}
	if srv.Table.Count() != 2 {
		t.Fatalf("expected existing clients unaffected, count=%d", srv.Table.Count())
	}
}

func TestConcurrentBroadcastsAreContiguousPerClient(t *testing.T) {
	srv, sock := startServer(t, 0)
	conn := dial(t, sock)
	waitForCount(t, srv.Table, 1)

	const n = 50
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			srv.Table.Broadcast(schema.ZmkEvent{Kscan: &schema.KscanEvent{Source: 1, Position: uint32(i)}})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			srv.Table.Broadcast(schema.ZmkEvent{Kscan: &schema.KscanEvent{Source: 2, Position: uint32(i)}})
		}
	}()
	wg.Wait()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	received := 0
	for received < 2*n {
		payload, err := wire.ReadFrame(conn, schema.MaxZmkEventSize)
		if err != nil {
			t.Fatalf("read frame %d: %v", received, err)
		}
		if _, err := wire.DecodeZmkEvent(payload); err != nil {
			t.Fatalf("decode frame %d: %v", received, err)
		}
		received++
	}
}
