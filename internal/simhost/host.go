// Package simhost simulates the key-scan matrix and HID report pipeline
// that the ingress and egress sockets sit in front of. It exists so the
// bridge can run end to end without real keyboard firmware: injected key
// events flip entries in a simulated matrix, and every flip is published
// both as a raw kscan transition and as a recomputed keyboard HID report,
// exactly as a real ZMK host would emit them to its event bus.
package simhost

import (
	"sort"
	"sync"
	"time"

	"github.com/kstaniek/zmk-ipc-bridge/internal/adapter"
	"github.com/kstaniek/zmk-ipc-bridge/internal/schema"
)

// Broadcaster is the narrow egress dependency simhost needs: publish one
// event to every connected observer. *egress.Table satisfies this.
type Broadcaster interface {
	Broadcast(ev schema.ZmkEvent)
}

// Keymap resolves a linear key-scan position to the HID usage byte it
// produces when held down. Positions absent from the map produce no HID
// usage (e.g. transparent or unmapped keys) but still emit a kscan event.
type Keymap map[uint32]byte

// Host is the simulated key matrix plus the HID report it currently
// represents. A single Host corresponds to one simulated keyboard half; its
// zero value is not usable, use NewHost.
type Host struct {
	mu       sync.Mutex
	pressed  map[uint32]bool
	keymap   Keymap
	endpoint schema.Endpoint
	source   uint32
	bus      Broadcaster
	now      func() time.Time
	lastHID  schema.HidKeyboardReport
}

// NewHost constructs a simulated host publishing to bus under the given
// source id (the kscan "which physical matrix" field) and HID endpoint.
func NewHost(source uint32, endpoint schema.Endpoint, keymap Keymap, bus Broadcaster) *Host {
	return &Host{
		pressed:  make(map[uint32]bool),
		keymap:   keymap,
		endpoint: endpoint,
		source:   source,
		bus:      bus,
		now:      time.Now,
	}
}

// InjectKeyEvent implements ingress.Injector: it updates the simulated
// matrix, then publishes a kscan transition followed by the recomputed
// keyboard HID report, matching how a real host's key-scan ISR hands off to
// the HID report queue on every edge.
func (h *Host) InjectKeyEvent(action schema.Action, position uint32) error {
	pressed := action == schema.ActionPress

	h.mu.Lock()
	h.pressed[position] = pressed
	hid := adapter.HIDKeyboard(h.endpoint, 0, h.collectKeysLocked())
	h.lastHID = schema.HidKeyboardReport{Endpoint: h.endpoint, Keys: append([]byte(nil), hid.Keyboard.Keys...)}
	h.mu.Unlock()

	ts := uint32(h.now().UnixMilli())
	h.bus.Broadcast(adapter.Kscan(adapter.KscanTransition{
		Source:    h.source,
		Position:  position,
		Pressed:   pressed,
		Timestamp: ts,
	}))
	h.bus.Broadcast(hid)
	return nil
}

// collectKeysLocked gathers HID usage bytes for every currently pressed,
// mapped position, in ascending position order (a stable, arbitrary but
// deterministic ordering — real USB HID reports have no ordering guarantee
// beyond "whatever the host's key queue produced").
func (h *Host) collectKeysLocked() []byte {
	positions := make([]uint32, 0, len(h.pressed))
	for pos, isDown := range h.pressed {
		if isDown {
			positions = append(positions, pos)
		}
	}
	sort.Slice(positions, func(i, j int) bool { return positions[i] < positions[j] })

	keys := make([]byte, 0, len(positions))
	for _, pos := range positions {
		if usage, ok := h.keymap[pos]; ok {
			keys = append(keys, usage)
		}
	}
	return keys
}

// Snapshot returns a copy of the currently pressed positions, for tests and
// status introspection.
func (h *Host) Snapshot() map[uint32]bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[uint32]bool, len(h.pressed))
	for k, v := range h.pressed {
		if v {
			out[k] = v
		}
	}
	return out
}

// LastHIDReport returns the most recently published keyboard HID report.
func (h *Host) LastHIDReport() schema.HidKeyboardReport {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastHID
}
