package adapter

import (
	"testing"

	"github.com/kstaniek/zmk-ipc-bridge/internal/schema"
)

func TestParseEndpointUSB(t *testing.T) {
	ep := ParseEndpoint("usb")
	if ep.Transport != schema.TransportUSB {
		t.Fatalf("unexpected endpoint: %+v", ep)
	}
}

func TestParseEndpointBLEWithProfile(t *testing.T) {
	ep := ParseEndpoint("ble:2")
	if ep.Transport != schema.TransportBLE || ep.BLEProfileIdx != 2 {
		t.Fatalf("unexpected endpoint: %+v", ep)
	}
}

func TestParseEndpointNone(t *testing.T) {
	ep := ParseEndpoint("none")
	if ep.Transport != schema.TransportNone {
		t.Fatalf("unexpected endpoint: %+v", ep)
	}
}

func TestParseEndpointUnknownTransportFallsBackToNone(t *testing.T) {
	ep := ParseEndpoint("Foo")
	if ep.Transport != schema.TransportNone || ep.BLEProfileIdx != 0 {
		t.Fatalf("expected fallback to NONE, got %+v", ep)
	}
}

func TestParseEndpointInvalidBLEProfileFallsBackToNone(t *testing.T) {
	ep := ParseEndpoint("ble:nope")
	if ep.Transport != schema.TransportNone {
		t.Fatalf("expected fallback to NONE, got %+v", ep)
	}
}

func TestKscanBuildsEvent(t *testing.T) {
	ev := Kscan(KscanTransition{Source: 1, Position: 14, Pressed: true, Timestamp: 500})
	if ev.Kscan == nil || ev.Kscan.Position != 14 || !ev.Kscan.Pressed {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestHIDKeyboardPreservesShortKeySliceUnpadded(t *testing.T) {
	ep := schema.Endpoint{Transport: schema.TransportUSB}
	ev := HIDKeyboard(ep, 0x01, []byte{0x04})
	if ev.Keyboard == nil {
		t.Fatalf("expected keyboard report")
	}
	if len(ev.Keyboard.Keys) != 1 {
		t.Fatalf("expected unpadded key slice of length 1, got %d: %+v", len(ev.Keyboard.Keys), ev.Keyboard.Keys)
	}
	if ev.Keyboard.Keys[0] != 0x04 {
		t.Fatalf("first key byte not preserved: %+v", ev.Keyboard.Keys)
	}
}

func TestHIDKeyboardTruncatesLongKeySlice(t *testing.T) {
	ep := schema.Endpoint{Transport: schema.TransportUSB}
	long := make([]byte, schema.MaxKeyBytes+10)
	for i := range long {
		long[i] = byte(i + 1)
	}
	ev := HIDKeyboard(ep, 0, long)
	if len(ev.Keyboard.Keys) != schema.MaxKeyBytes {
		t.Fatalf("expected truncation to %d bytes, got %d", schema.MaxKeyBytes, len(ev.Keyboard.Keys))
	}
}

func TestHIDConsumerTruncatesToSmallerMax(t *testing.T) {
	ep := schema.Endpoint{Transport: schema.TransportBLE, BLEProfileIdx: 1}
	long := make([]byte, schema.MaxConsumerKeyBytes+4)
	for i := range long {
		long[i] = byte(i + 1)
	}
	ev := HIDConsumer(ep, long)
	if ev.Consumer == nil || len(ev.Consumer.Keys) != schema.MaxConsumerKeyBytes {
		t.Fatalf("expected truncation to %d bytes, got %+v", schema.MaxConsumerKeyBytes, ev.Consumer)
	}
}

func TestHIDConsumerPreservesShortKeySliceUnpadded(t *testing.T) {
	ep := schema.Endpoint{Transport: schema.TransportBLE, BLEProfileIdx: 1}
	ev := HIDConsumer(ep, []byte{0xE9})
	if ev.Consumer == nil || len(ev.Consumer.Keys) != 1 || ev.Consumer.Keys[0] != 0xE9 {
		t.Fatalf("unexpected consumer report: %+v", ev.Consumer)
	}
}

func TestPointingStubPanicsWhenDisabled(t *testing.T) {
	if PointingEnabled {
		t.Skip("built with pointing support enabled")
	}
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected panic calling HIDMouse in a non-pointing build")
		}
	}()
	_ = HIDMouse(schema.Endpoint{}, 0, 0, 0, 0, 0)
}
