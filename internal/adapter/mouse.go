//go:build zmk_pointing

package adapter

import "github.com/kstaniek/zmk-ipc-bridge/internal/schema"

// HIDMouse builds the egress event for a pointing-device HID report. Only
// compiled into builds with pointing support enabled, matching how the
// simulated host only advertises a mouse HID descriptor in that
// configuration.
func HIDMouse(endpoint schema.Endpoint, buttons uint32, dx, dy, scrollX, scrollY int32) schema.ZmkEvent {
	return schema.ZmkEvent{Mouse: &schema.HidMouseReport{
		Endpoint: endpoint,
		Buttons:  buttons,
		DX:       dx,
		DY:       dy,
		ScrollX:  scrollX,
		ScrollY:  scrollY,
	}}
}

// PointingEnabled reports whether this build was compiled with pointing
// device support.
const PointingEnabled = true
