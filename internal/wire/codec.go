// Package wire implements the length-prefixed, schema-tagged framing shared
// by the ingress and egress IPC sockets, and the encode/decode of the
// internal/schema message types onto that wire format.
//
// The wire format for a single message is a sequence of protobuf-style
// tag/value fields (see google.golang.org/protobuf/encoding/protowire):
// field numbers are preserved across versions, and a decoder that meets a
// field number it doesn't recognize skips the value rather than failing.
// This gives the "additive tagged-union arms, unknown tag -> log and drop"
// behavior the schema requires without needing a .proto file or generated
// code: we drive protowire's primitives by hand, one field at a time, the
// same cursor-based style as a hand-rolled tag/varint frame codec.
package wire

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/kstaniek/zmk-ipc-bridge/internal/schema"
)

// Field numbers. Grouped by message; never renumber an existing field.
const (
	fnClientMessageKeyEvent protowire.Number = 1

	fnKeyEventAction   protowire.Number = 1
	fnKeyEventKeyPos   protowire.Number = 2
	fnKeyEventPosition protowire.Number = 3

	fnKeyPositionRow protowire.Number = 1
	fnKeyPositionCol protowire.Number = 2

	fnZmkEventKscan    protowire.Number = 1
	fnZmkEventKeyboard protowire.Number = 2
	fnZmkEventConsumer protowire.Number = 3
	fnZmkEventMouse    protowire.Number = 4

	fnEndpointTransport  protowire.Number = 1
	fnEndpointBLEProfile protowire.Number = 2

	fnKscanSource    protowire.Number = 1
	fnKscanPosition  protowire.Number = 2
	fnKscanPressed   protowire.Number = 3
	fnKscanTimestamp protowire.Number = 4

	fnHidKbEndpoint  protowire.Number = 1
	fnHidKbModifiers protowire.Number = 2
	fnHidKbKeys      protowire.Number = 3

	fnHidConsumerEndpoint protowire.Number = 1
	fnHidConsumerKeys     protowire.Number = 2

	fnHidMouseEndpoint protowire.Number = 1
	fnHidMouseButtons  protowire.Number = 2
	fnHidMouseDX       protowire.Number = 3
	fnHidMouseDY       protowire.Number = 4
	fnHidMouseScrollX  protowire.Number = 5
	fnHidMouseScrollY  protowire.Number = 6
)

func appendEmbedded(b []byte, num protowire.Number, payload []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, payload)
}

// --- Endpoint ---

func appendEndpoint(b []byte, e schema.Endpoint) []byte {
	if e.Transport != schema.TransportNone {
		b = protowire.AppendTag(b, fnEndpointTransport, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(e.Transport))
	}
	if e.BLEProfileIdx != 0 {
		b = protowire.AppendTag(b, fnEndpointBLEProfile, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(e.BLEProfileIdx))
	}
	return b
}

func decodeEndpoint(payload []byte) (schema.Endpoint, error) {
	var e schema.Endpoint
	c := newCursor(payload)
	for {
		num, typ, ok := c.tag()
		if !ok {
			break
		}
		switch num {
		case fnEndpointTransport:
			e.Transport = schema.TransportType(c.varint())
		case fnEndpointBLEProfile:
			e.BLEProfileIdx = uint32(c.varint())
		default:
			c.skip(num, typ)
		}
	}
	if c.err != nil {
		return schema.Endpoint{}, fmt.Errorf("decode endpoint: %w", c.err)
	}
	return e, nil
}

// --- KeyPosition ---

func appendKeyPosition(b []byte, kp schema.KeyPosition) []byte {
	if kp.Row != 0 {
		b = protowire.AppendTag(b, fnKeyPositionRow, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(kp.Row))
	}
	if kp.Col != 0 {
		b = protowire.AppendTag(b, fnKeyPositionCol, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(kp.Col))
	}
	return b
}

func decodeKeyPosition(payload []byte) (schema.KeyPosition, error) {
	var kp schema.KeyPosition
	c := newCursor(payload)
	for {
		num, typ, ok := c.tag()
		if !ok {
			break
		}
		switch num {
		case fnKeyPositionRow:
			kp.Row = uint32(c.varint())
		case fnKeyPositionCol:
			kp.Col = uint32(c.varint())
		default:
			c.skip(num, typ)
		}
	}
	if c.err != nil {
		return schema.KeyPosition{}, fmt.Errorf("decode key_position: %w", c.err)
	}
	return kp, nil
}

// --- KeyEvent / ClientMessage ---

func appendKeyEvent(b []byte, ke schema.KeyEvent) []byte {
	b = protowire.AppendTag(b, fnKeyEventAction, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(ke.Action))
	switch {
	case ke.Pos != nil:
		b = appendEmbedded(b, fnKeyEventKeyPos, appendKeyPosition(nil, *ke.Pos))
	case ke.Position != nil:
		b = protowire.AppendTag(b, fnKeyEventPosition, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(*ke.Position))
	}
	return b
}

func decodeKeyEvent(payload []byte) (schema.KeyEvent, error) {
	var ke schema.KeyEvent
	c := newCursor(payload)
	for {
		num, typ, ok := c.tag()
		if !ok {
			break
		}
		switch num {
		case fnKeyEventAction:
			ke.Action = schema.Action(c.varint())
		case fnKeyEventKeyPos:
			sub := c.bytes()
			if c.err != nil {
				break
			}
			kp, err := decodeKeyPosition(sub)
			if err != nil {
				c.err = err
				break
			}
			ke.Pos = &kp
			ke.Position = nil
		case fnKeyEventPosition:
			p := uint32(c.varint())
			ke.Position = &p
			ke.Pos = nil
		default:
			c.skip(num, typ)
		}
	}
	if c.err != nil {
		return schema.KeyEvent{}, fmt.Errorf("decode key_event: %w", c.err)
	}
	return ke, nil
}

// EncodeClientMessage appends the wire encoding of msg to b and returns the result.
func EncodeClientMessage(b []byte, msg schema.ClientMessage) []byte {
	if msg.KeyEvent != nil {
		b = appendEmbedded(b, fnClientMessageKeyEvent, appendKeyEvent(nil, *msg.KeyEvent))
	}
	return b
}

// DecodeClientMessage parses a ClientMessage from its wire payload.
func DecodeClientMessage(payload []byte) (schema.ClientMessage, error) {
	var msg schema.ClientMessage
	c := newCursor(payload)
	for {
		num, typ, ok := c.tag()
		if !ok {
			break
		}
		switch num {
		case fnClientMessageKeyEvent:
			sub := c.bytes()
			if c.err != nil {
				break
			}
			ke, err := decodeKeyEvent(sub)
			if err != nil {
				c.err = err
				break
			}
			msg.KeyEvent = &ke
		default:
			c.skip(num, typ)
		}
	}
	if c.err != nil {
		return schema.ClientMessage{}, fmt.Errorf("decode client_message: %w", c.err)
	}
	return msg, nil
}

// --- ZmkEvent arms ---

func appendKscanEvent(b []byte, ev schema.KscanEvent) []byte {
	if ev.Source != 0 {
		b = protowire.AppendTag(b, fnKscanSource, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(ev.Source))
	}
	if ev.Position != 0 {
		b = protowire.AppendTag(b, fnKscanPosition, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(ev.Position))
	}
	if ev.Pressed {
		b = protowire.AppendTag(b, fnKscanPressed, protowire.VarintType)
		b = protowire.AppendVarint(b, 1)
	}
	if ev.Timestamp != 0 {
		b = protowire.AppendTag(b, fnKscanTimestamp, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(ev.Timestamp))
	}
	return b
}

func decodeKscanEvent(payload []byte) (schema.KscanEvent, error) {
	var ev schema.KscanEvent
	c := newCursor(payload)
	for {
		num, typ, ok := c.tag()
		if !ok {
			break
		}
		switch num {
		case fnKscanSource:
			ev.Source = uint32(c.varint())
		case fnKscanPosition:
			ev.Position = uint32(c.varint())
		case fnKscanPressed:
			ev.Pressed = c.varint() != 0
		case fnKscanTimestamp:
			ev.Timestamp = uint32(c.varint())
		default:
			c.skip(num, typ)
		}
	}
	if c.err != nil {
		return schema.KscanEvent{}, fmt.Errorf("decode kscan_event: %w", c.err)
	}
	return ev, nil
}

func appendHidKeyboardReport(b []byte, r schema.HidKeyboardReport) []byte {
	b = appendEmbedded(b, fnHidKbEndpoint, appendEndpoint(nil, r.Endpoint))
	if r.Modifiers != 0 {
		b = protowire.AppendTag(b, fnHidKbModifiers, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(r.Modifiers))
	}
	if len(r.Keys) > 0 {
		b = protowire.AppendTag(b, fnHidKbKeys, protowire.BytesType)
		b = protowire.AppendBytes(b, r.Keys)
	}
	return b
}

func decodeHidKeyboardReport(payload []byte) (schema.HidKeyboardReport, error) {
	var r schema.HidKeyboardReport
	c := newCursor(payload)
	for {
		num, typ, ok := c.tag()
		if !ok {
			break
		}
		switch num {
		case fnHidKbEndpoint:
			sub := c.bytes()
			if c.err != nil {
				break
			}
			ep, err := decodeEndpoint(sub)
			if err != nil {
				c.err = err
				break
			}
			r.Endpoint = ep
		case fnHidKbModifiers:
			r.Modifiers = uint8(c.varint())
		case fnHidKbKeys:
			b := c.bytes()
			if b != nil {
				r.Keys = append([]byte(nil), b...)
			}
		default:
			c.skip(num, typ)
		}
	}
	if c.err != nil {
		return schema.HidKeyboardReport{}, fmt.Errorf("decode hid_keyboard_report: %w", c.err)
	}
	return r, nil
}

func appendHidConsumerReport(b []byte, r schema.HidConsumerReport) []byte {
	b = appendEmbedded(b, fnHidConsumerEndpoint, appendEndpoint(nil, r.Endpoint))
	if len(r.Keys) > 0 {
		b = protowire.AppendTag(b, fnHidConsumerKeys, protowire.BytesType)
		b = protowire.AppendBytes(b, r.Keys)
	}
	return b
}

func decodeHidConsumerReport(payload []byte) (schema.HidConsumerReport, error) {
	var r schema.HidConsumerReport
	c := newCursor(payload)
	for {
		num, typ, ok := c.tag()
		if !ok {
			break
		}
		switch num {
		case fnHidConsumerEndpoint:
			sub := c.bytes()
			if c.err != nil {
				break
			}
			ep, err := decodeEndpoint(sub)
			if err != nil {
				c.err = err
				break
			}
			r.Endpoint = ep
		case fnHidConsumerKeys:
			b := c.bytes()
			if b != nil {
				r.Keys = append([]byte(nil), b...)
			}
		default:
			c.skip(num, typ)
		}
	}
	if c.err != nil {
		return schema.HidConsumerReport{}, fmt.Errorf("decode hid_consumer_report: %w", c.err)
	}
	return r, nil
}

func appendHidMouseReport(b []byte, r schema.HidMouseReport) []byte {
	b = appendEmbedded(b, fnHidMouseEndpoint, appendEndpoint(nil, r.Endpoint))
	if r.Buttons != 0 {
		b = protowire.AppendTag(b, fnHidMouseButtons, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(r.Buttons))
	}
	if r.DX != 0 {
		b = protowire.AppendTag(b, fnHidMouseDX, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeZigZag(int64(r.DX)))
	}
	if r.DY != 0 {
		b = protowire.AppendTag(b, fnHidMouseDY, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeZigZag(int64(r.DY)))
	}
	if r.ScrollX != 0 {
		b = protowire.AppendTag(b, fnHidMouseScrollX, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeZigZag(int64(r.ScrollX)))
	}
	if r.ScrollY != 0 {
		b = protowire.AppendTag(b, fnHidMouseScrollY, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeZigZag(int64(r.ScrollY)))
	}
	return b
}

func decodeHidMouseReport(payload []byte) (schema.HidMouseReport, error) {
	var r schema.HidMouseReport
	c := newCursor(payload)
	for {
		num, typ, ok := c.tag()
		if !ok {
			break
		}
		switch num {
		case fnHidMouseEndpoint:
			sub := c.bytes()
			if c.err != nil {
				break
			}
			ep, err := decodeEndpoint(sub)
			if err != nil {
				c.err = err
				break
			}
			r.Endpoint = ep
		case fnHidMouseButtons:
			r.Buttons = uint32(c.varint())
		case fnHidMouseDX:
			r.DX = int32(c.zigzag())
		case fnHidMouseDY:
			r.DY = int32(c.zigzag())
		case fnHidMouseScrollX:
			r.ScrollX = int32(c.zigzag())
		case fnHidMouseScrollY:
			r.ScrollY = int32(c.zigzag())
		default:
			c.skip(num, typ)
		}
	}
	if c.err != nil {
		return schema.HidMouseReport{}, fmt.Errorf("decode hid_mouse_report: %w", c.err)
	}
	return r, nil
}

// EncodeZmkEvent appends the wire encoding of ev to b and returns the result.
func EncodeZmkEvent(b []byte, ev schema.ZmkEvent) []byte {
	switch {
	case ev.Kscan != nil:
		b = appendEmbedded(b, fnZmkEventKscan, appendKscanEvent(nil, *ev.Kscan))
	case ev.Keyboard != nil:
		b = appendEmbedded(b, fnZmkEventKeyboard, appendHidKeyboardReport(nil, *ev.Keyboard))
	case ev.Consumer != nil:
		b = appendEmbedded(b, fnZmkEventConsumer, appendHidConsumerReport(nil, *ev.Consumer))
	case ev.Mouse != nil:
		b = appendEmbedded(b, fnZmkEventMouse, appendHidMouseReport(nil, *ev.Mouse))
	}
	return b
}

// DecodeZmkEvent parses a ZmkEvent from its wire payload.
func DecodeZmkEvent(payload []byte) (schema.ZmkEvent, error) {
	var ev schema.ZmkEvent
	c := newCursor(payload)
	for {
		num, typ, ok := c.tag()
		if !ok {
			break
		}
		switch num {
		case fnZmkEventKscan:
			sub := c.bytes()
			if c.err != nil {
				break
			}
			v, err := decodeKscanEvent(sub)
			if err != nil {
				c.err = err
				break
			}
			ev.Kscan = &v
		case fnZmkEventKeyboard:
			sub := c.bytes()
			if c.err != nil {
				break
			}
			v, err := decodeHidKeyboardReport(sub)
			if err != nil {
				c.err = err
				break
			}
			ev.Keyboard = &v
		case fnZmkEventConsumer:
			sub := c.bytes()
			if c.err != nil {
				break
			}
			v, err := decodeHidConsumerReport(sub)
			if err != nil {
				c.err = err
				break
			}
			ev.Consumer = &v
		case fnZmkEventMouse:
			sub := c.bytes()
			if c.err != nil {
				break
			}
			v, err := decodeHidMouseReport(sub)
			if err != nil {
				c.err = err
				break
			}
			ev.Mouse = &v
		default:
			c.skip(num, typ)
		}
	}
	if c.err != nil {
		return schema.ZmkEvent{}, fmt.Errorf("decode zmk_event: %w", c.err)
	}
	return ev, nil
}
