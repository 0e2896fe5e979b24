//go:build !zmk_pointing

package adapter

import "github.com/kstaniek/zmk-ipc-bridge/internal/schema"

// HIDMouse is unavailable without pointing support; callers must check
// PointingEnabled before invoking it. It panics rather than silently
// dropping mouse events, because the mismatch between a caller wired for
// pointing and a build without it is a build-time configuration mistake.
func HIDMouse(endpoint schema.Endpoint, buttons uint32, dx, dy, scrollX, scrollY int32) schema.ZmkEvent {
	panic("adapter: HIDMouse called in a build without pointing support (build with -tags zmk_pointing)")
}

// PointingEnabled reports whether this build was compiled with pointing
// device support.
const PointingEnabled = false
