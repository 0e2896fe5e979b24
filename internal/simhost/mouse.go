//go:build zmk_pointing

package simhost

import "github.com/kstaniek/zmk-ipc-bridge/internal/adapter"

// NotifyMouseReport publishes a pointing-device HID report to the egress
// bus, mirroring the point at which a real host commits a mouse report to
// its configured endpoint. Only compiled into builds with pointing support.
func (h *Host) NotifyMouseReport(buttons uint32, dx, dy, scrollX, scrollY int32) {
	h.mu.Lock()
	endpoint := h.endpoint
	h.mu.Unlock()
	h.bus.Broadcast(adapter.HIDMouse(endpoint, buttons, dx, dy, scrollX, scrollY))
}
