package wire

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/kstaniek/zmk-ipc-bridge/internal/schema"
)

func pipe(t *testing.T) (client, server net.Conn) {
	t.Helper()
	c, s := net.Pipe()
	t.Cleanup(func() { _ = c.Close(); _ = s.Close() })
	return c, s
}

func TestFrameRoundTrip(t *testing.T) {
	client, server := pipe(t)

	msg := schema.ClientMessage{KeyEvent: &schema.KeyEvent{
		Action: schema.ActionPress,
		Pos:    &schema.KeyPosition{Row: 1, Col: 3},
	}}
	payload := make([]byte, schema.MaxClientMessageSize)
	n, err := Encode(msg, payload)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	payload = payload[:n]

	done := make(chan error, 1)
	go func() { done <- Send(client, payload, time.Second) }()

	got, err := RecvClientMessage(server, schema.MaxClientMessageSize)
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("send: %v", err)
	}
	if got.KeyEvent == nil || got.KeyEvent.Pos == nil ||
		got.KeyEvent.Pos.Row != 1 || got.KeyEvent.Pos.Col != 3 {
		t.Fatalf("unexpected decode: %+v", got)
	}
}

func TestFrameOversizeRejectedWithoutReadingBody(t *testing.T) {
	client, server := pipe(t)

	const maxLen = 16
	go func() {
		lenPrefix := make([]byte, 4)
		putU32(lenPrefix, maxLen+1)
		_, _ = client.Write(lenPrefix) // oversize length prefix only, no body
	}()

	_, err := ReadFrame(server, maxLen)
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
}

func TestFrameShortReadResilience(t *testing.T) {
	client, server := pipe(t)

	msg := schema.ClientMessage{KeyEvent: &schema.KeyEvent{
		Action:   schema.ActionRelease,
		Position: u32ptr(7),
	}}
	payload := make([]byte, schema.MaxClientMessageSize)
	n, err := Encode(msg, payload)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	payload = payload[:n]

	frame := make([]byte, 4+len(payload))
	putU32(frame, uint32(len(payload)))
	copy(frame[4:], payload)

	// Trickle the frame one byte at a time to exercise readFull's looping.
	go func() {
		for _, b := range frame {
			_, _ = client.Write([]byte{b})
		}
	}()

	got, err := RecvClientMessage(server, schema.MaxClientMessageSize)
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	if got.KeyEvent == nil || got.KeyEvent.Position == nil || *got.KeyEvent.Position != 7 {
		t.Fatalf("unexpected decode after trickled write: %+v", got)
	}
}

func TestFramePeerClosedBeforeLength(t *testing.T) {
	client, server := pipe(t)
	_ = client.Close()

	_, err := ReadFrame(server, schema.MaxClientMessageSize)
	if !errors.Is(err, ErrPeerClosed) {
		t.Fatalf("expected ErrPeerClosed, got %v", err)
	}
}

func TestFramePeerClosedAfterLengthBeforeBody(t *testing.T) {
	client, server := pipe(t)

	go func() {
		frame := make([]byte, 4)
		putU32(frame, 10)
		_, _ = client.Write(frame)
		_ = client.Close()
	}()

	_, err := ReadFrame(server, schema.MaxClientMessageSize)
	if !errors.Is(err, ErrPeerClosed) {
		t.Fatalf("expected ErrPeerClosed, got %v", err)
	}
}

func putU32(b []byte, v uint32) {
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
}

func u32ptr(v uint32) *uint32 { return &v }
