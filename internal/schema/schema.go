// Package schema defines the wire message types shared by the ingress and
// egress IPC endpoints. Field numbers are part of the wire contract: they
// are assigned once and never reused, matching a protobuf-style tagged
// union so new fields/arms can be added without breaking older peers.
package schema

// Action is the KeyEvent.action enum (field 1 of KeyEvent).
type Action int32

const (
	ActionPress   Action = 0
	ActionRelease Action = 1
)

func (a Action) Valid() bool { return a == ActionPress || a == ActionRelease }

// TransportType is the Endpoint.transport enum (field 1 of Endpoint).
type TransportType int32

const (
	TransportNone TransportType = 0
	TransportUSB  TransportType = 1
	TransportBLE  TransportType = 2
)

// Sizing constants governing the receive buffers in internal/wire. These are
// the schema's canonical maximum encoded size; any change to
// MaxKeyBytes/MaxConsumerKeyBytes must re-derive MaxZmkEventSize below.
const (
	// MaxKeyBytes bounds the NKRO keyboard report key array.
	MaxKeyBytes = 32
	// MaxConsumerKeyBytes bounds the consumer usage-code report.
	MaxConsumerKeyBytes = 6

	// MaxClientMessageSize is a conservative upper bound for an encoded
	// ClientMessage: one oneof tag, one Action varint, one KeyPosition
	// submessage (two small varints) or a linear position varint.
	MaxClientMessageSize = 64
	// MaxZmkEventSize is a conservative upper bound for an encoded ZmkEvent:
	// the largest arm is HidKeyboardReport (endpoint submessage + modifiers +
	// up to MaxKeyBytes of key data), with headroom for tag/length overhead.
	MaxZmkEventSize = 4 + MaxKeyBytes + 32
)

// Message is implemented by the two top-level tagged unions carried over the
// wire: ClientMessage (ingress) and ZmkEvent (egress).
type Message interface {
	isMessage()
}

// Endpoint describes the transport a HID report was committed to.
type Endpoint struct {
	Transport     TransportType
	BLEProfileIdx uint32 // meaningful iff Transport == TransportBLE
}

// KeyPosition is explicit key-matrix coordinates.
type KeyPosition struct {
	Row uint32
	Col uint32
}

// KeyEvent is the sole arm of ClientMessage today. Address is a oneof: either
// Pos (matrix coordinates) or Position (a linear index expanded by the
// ingress server's configured column count) is set, never both.
type KeyEvent struct {
	Action   Action
	Pos      *KeyPosition
	Position *uint32
}

// ClientMessage is the single-variant tagged union accepted on ingress.
type ClientMessage struct {
	KeyEvent *KeyEvent
}

func (ClientMessage) isMessage() {}

// KscanEvent is a raw matrix transition observed before keymap processing.
type KscanEvent struct {
	Source    uint32
	Position  uint32
	Pressed   bool
	Timestamp uint32
}

// HidKeyboardReport carries a keyboard boot/NKRO report snapshot.
type HidKeyboardReport struct {
	Endpoint  Endpoint
	Modifiers uint8
	Keys      []byte // len <= MaxKeyBytes
}

// HidConsumerReport carries a consumer-control usage report snapshot.
type HidConsumerReport struct {
	Endpoint Endpoint
	Keys     []byte // len <= MaxConsumerKeyBytes
}

// HidMouseReport carries a pointing-device report snapshot. Only produced
// when the host is built with the pointing capability (internal/adapter's
// zmk_pointing build tag).
type HidMouseReport struct {
	Endpoint Endpoint
	Buttons  uint32
	DX       int32
	DY       int32
	ScrollX  int32
	ScrollY  int32
}

// ZmkEvent is the tagged union fanned out over the egress socket. Exactly one
// field is set.
type ZmkEvent struct {
	Kscan    *KscanEvent
	Keyboard *HidKeyboardReport
	Consumer *HidConsumerReport
	Mouse    *HidMouseReport
}

func (ZmkEvent) isMessage() {}
