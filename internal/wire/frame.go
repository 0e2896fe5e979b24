package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/kstaniek/zmk-ipc-bridge/internal/schema"
)

// lengthPrefixSize is the size, in bytes, of the big-endian frame length
// prefix that precedes every schema-encoded payload on the wire.
const lengthPrefixSize = 4

// Sentinel errors. Callers classify with errors.Is to decide their own
// disposition (close connection, free slot, log and continue, etc).
var (
	ErrEncode     = errors.New("wire: encode")
	ErrDecode     = errors.New("wire: decode")
	ErrTruncated  = errors.New("wire: truncated write")
	ErrWouldBlock = errors.New("wire: would block")
	ErrPeerClosed = errors.New("wire: peer closed")
	ErrTooLarge   = errors.New("wire: frame too large")
	ErrIO         = errors.New("wire: io")
)

// Encode serializes msg into out using the schema's canonical wire format
// and returns the number of bytes written. It fails with ErrEncode if out's
// capacity is smaller than the produced output.
func Encode(msg schema.Message, out []byte) (int, error) {
	var buf []byte
	switch m := msg.(type) {
	case schema.ClientMessage:
		buf = EncodeClientMessage(nil, m)
	case schema.ZmkEvent:
		buf = EncodeZmkEvent(nil, m)
	default:
		return 0, fmt.Errorf("%w: unsupported message type %T", ErrEncode, msg)
	}
	if len(buf) > cap(out) {
		return 0, fmt.Errorf("%w: need %d bytes, have capacity %d", ErrEncode, len(buf), cap(out))
	}
	n := copy(out[:cap(out)], buf)
	return n, nil
}

// Send constructs a single contiguous [u32 BE length][payload] buffer and
// performs exactly one write, under a deadline so a congested peer reports
// as ErrWouldBlock rather than blocking the caller. A partial write poisons
// the stream (ErrTruncated): the caller must close it.
func Send(conn net.Conn, payload []byte, timeout time.Duration) error {
	frame := make([]byte, lengthPrefixSize+len(payload))
	binary.BigEndian.PutUint32(frame[:lengthPrefixSize], uint32(len(payload)))
	copy(frame[lengthPrefixSize:], payload)

	if timeout > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
			return fmt.Errorf("%w: set write deadline: %v", ErrIO, err)
		}
		defer conn.SetWriteDeadline(time.Time{})
	}

	n, err := conn.Write(frame)
	if err != nil {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return ErrWouldBlock
		}
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	if n != len(frame) {
		return ErrTruncated
	}
	return nil
}

// ReadFrame reads exactly one length-prefixed payload from conn, rejecting
// any payload whose advertised length exceeds maxLen without reading its
// body (ErrTooLarge — the stream is then unsynchronized and must be closed).
func ReadFrame(conn net.Conn, maxLen uint32) ([]byte, error) {
	var lenBuf [lengthPrefixSize]byte
	if err := readFull(conn, lenBuf[:]); err != nil {
		return nil, err
	}
	l := binary.BigEndian.Uint32(lenBuf[:])
	if l > maxLen {
		return nil, ErrTooLarge
	}
	payload := make([]byte, l)
	if err := readFull(conn, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// RecvClientMessage reads one frame and decodes it as a ClientMessage. This
// is the only message type ever received (the egress socket is write-only
// from the server's perspective).
func RecvClientMessage(conn net.Conn, maxLen uint32) (schema.ClientMessage, error) {
	payload, err := ReadFrame(conn, maxLen)
	if err != nil {
		return schema.ClientMessage{}, err
	}
	msg, err := DecodeClientMessage(payload)
	if err != nil {
		return schema.ClientMessage{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return msg, nil
}

// readFull loops internally to absorb short reads (the Go runtime already
// retries EINTR transparently inside the net package). A read that ends
// with zero bytes consumed of the current phase is a clean peer close; a
// read that ends partway through (closing after the length prefix but
// before any body bytes) is still classified as a peer close, not a
// truncation error.
func readFull(conn net.Conn, buf []byte) error {
	_, err := io.ReadFull(conn, buf)
	if err == nil {
		return nil
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrPeerClosed
	}
	return fmt.Errorf("%w: %v", ErrIO, err)
}
