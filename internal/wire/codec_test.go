package wire

import (
	"reflect"
	"testing"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/kstaniek/zmk-ipc-bridge/internal/schema"
)

func appendUnknownVarintField(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func TestClientMessageRoundTripKeyPosition(t *testing.T) {
	want := schema.ClientMessage{KeyEvent: &schema.KeyEvent{
		Action: schema.ActionPress,
		Pos:    &schema.KeyPosition{Row: 1, Col: 3},
	}}
	buf := make([]byte, schema.MaxClientMessageSize)
	n, err := Encode(want, buf)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeClientMessage(buf[:n])
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(want, got) {
		t.Fatalf("round trip mismatch: want %+v got %+v", want, got)
	}
}

func TestClientMessageRoundTripLinearPosition(t *testing.T) {
	pos := uint32(25)
	want := schema.ClientMessage{KeyEvent: &schema.KeyEvent{
		Action:   schema.ActionRelease,
		Position: &pos,
	}}
	buf := make([]byte, schema.MaxClientMessageSize)
	n, err := Encode(want, buf)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeClientMessage(buf[:n])
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(want, got) {
		t.Fatalf("round trip mismatch: want %+v got %+v", want, got)
	}
}

func TestZmkEventRoundTripEachArm(t *testing.T) {
	cases := []schema.ZmkEvent{
		{Kscan: &schema.KscanEvent{Source: 1, Position: 42, Pressed: true, Timestamp: 1000}},
		{Keyboard: &schema.HidKeyboardReport{
			Endpoint:  schema.Endpoint{Transport: schema.TransportUSB},
			Modifiers: 0x02,
			Keys:      []byte{0x04, 0, 0, 0, 0, 0},
		}},
		{Consumer: &schema.HidConsumerReport{
			Endpoint: schema.Endpoint{Transport: schema.TransportBLE, BLEProfileIdx: 2},
			Keys:     []byte{0xE9},
		}},
		{Mouse: &schema.HidMouseReport{
			Endpoint: schema.Endpoint{Transport: schema.TransportUSB},
			Buttons:  1,
			DX:       -5,
			DY:       7,
			ScrollX:  0,
			ScrollY:  -1,
		}},
	}
	for i, want := range cases {
		buf := make([]byte, schema.MaxZmkEventSize)
		n, err := Encode(want, buf)
		if err != nil {
			t.Fatalf("case %d encode: %v", i, err)
		}
		got, err := DecodeZmkEvent(buf[:n])
		if err != nil {
			t.Fatalf("case %d decode: %v", i, err)
		}
		if !reflect.DeepEqual(want, got) {
			t.Fatalf("case %d round trip mismatch: want %+v got %+v", i, want, got)
		}
	}
}

func TestEncodeBufferTooSmall(t *testing.T) {
	msg := schema.ClientMessage{KeyEvent: &schema.KeyEvent{
		Action: schema.ActionPress,
		Pos:    &schema.KeyPosition{Row: 1, Col: 1},
	}}
	buf := make([]byte, 1)
	if _, err := Encode(msg, buf); err == nil {
		t.Fatalf("expected error for undersized buffer")
	}
}

func TestDecodeUnknownFieldIsSkippedNotRejected(t *testing.T) {
	want := schema.ClientMessage{KeyEvent: &schema.KeyEvent{
		Action: schema.ActionPress,
		Pos:    &schema.KeyPosition{Row: 2, Col: 2},
	}}
	buf := EncodeClientMessage(nil, want)

	// Append an unrecognized field (field number 99, varint type) after the
	// known ones; a schema-compatible decoder must skip it, not fail.
	buf = appendUnknownVarintField(buf, 99, 7)

	got, err := DecodeClientMessage(buf)
	if err != nil {
		t.Fatalf("expected unknown field to be skipped, got error: %v", err)
	}
	if !reflect.DeepEqual(want, got) {
		t.Fatalf("mismatch after skipping unknown field: want %+v got %+v", want, got)
	}
}
