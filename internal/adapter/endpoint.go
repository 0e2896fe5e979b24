// Package adapter translates host-internal event types — raw key-scan
// transitions and HID output reports — into the schema.ZmkEvent wire
// messages the egress broadcaster sends to observers.
package adapter

import (
	"strconv"
	"strings"

	"github.com/kstaniek/zmk-ipc-bridge/internal/schema"
)

// ParseEndpoint parses a transport descriptor of the form "usb",
// "ble:<profile>", or "none" into a schema.Endpoint. The simulated host
// configures one of these per output endpoint at startup. Anything
// unrecognized — an unknown transport name, or a non-numeric BLE profile
// remainder — falls back to Endpoint{Transport: NONE} rather than erroring:
// there is no trust boundary here to enforce with a hard failure, only a
// best-effort description of where HID reports should go.
func ParseEndpoint(s string) schema.Endpoint {
	transport, rest, _ := strings.Cut(s, ":")
	switch strings.ToLower(transport) {
	case "usb":
		return schema.Endpoint{Transport: schema.TransportUSB}
	case "ble":
		if rest == "" {
			return schema.Endpoint{Transport: schema.TransportBLE}
		}
		idx, err := strconv.ParseUint(rest, 10, 32)
		if err != nil {
			return schema.Endpoint{Transport: schema.TransportNone}
		}
		return schema.Endpoint{Transport: schema.TransportBLE, BLEProfileIdx: uint32(idx)}
	case "none", "":
		return schema.Endpoint{Transport: schema.TransportNone}
	default:
		return schema.Endpoint{Transport: schema.TransportNone}
	}
}
