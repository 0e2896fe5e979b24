package adapter

import "github.com/kstaniek/zmk-ipc-bridge/internal/schema"

// buildKeyReport is the one generic builder shared by every fixed-width
// key-byte HID report (keyboard, consumer): it truncates src to at most
// maxLen bytes (never pads a short report out to capacity) and hands the
// result to build to assemble the concrete report type.
func buildKeyReport[T any](src []byte, maxLen int, endpoint schema.Endpoint, build func(schema.Endpoint, []byte) T) T {
	keys := make([]byte, min(len(src), maxLen))
	copy(keys, src)
	return build(endpoint, keys)
}

// HIDKeyboard builds the egress event for a keyboard HID report.
func HIDKeyboard(endpoint schema.Endpoint, modifiers uint8, keys []byte) schema.ZmkEvent {
	rep := buildKeyReport(keys, schema.MaxKeyBytes, endpoint, func(ep schema.Endpoint, k []byte) schema.HidKeyboardReport {
		return schema.HidKeyboardReport{Endpoint: ep, Modifiers: modifiers, Keys: k}
	})
	return schema.ZmkEvent{Keyboard: &rep}
}

// HIDConsumer builds the egress event for a consumer-control HID report.
func HIDConsumer(endpoint schema.Endpoint, keys []byte) schema.ZmkEvent {
	rep := buildKeyReport(keys, schema.MaxConsumerKeyBytes, endpoint, func(ep schema.Endpoint, k []byte) schema.HidConsumerReport {
		return schema.HidConsumerReport{Endpoint: ep, Keys: k}
	})
	return schema.ZmkEvent{Consumer: &rep}
}
