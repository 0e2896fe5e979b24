package simhost

import (
	"testing"

	"github.com/kstaniek/zmk-ipc-bridge/internal/adapter"
	"github.com/kstaniek/zmk-ipc-bridge/internal/schema"
)

func TestNotifyMouseReportPublishesReport(t *testing.T) {
	if !adapter.PointingEnabled {
		t.Skip("built without pointing support")
	}
	bus := &recordingBus{}
	host := NewHost(3, schema.Endpoint{Transport: schema.TransportUSB}, Keymap{}, bus)

	host.NotifyMouseReport(1, 5, -3, 0, 1)

	events := bus.snapshot()
	if len(events) != 1 || events[0].Mouse == nil {
		t.Fatalf("expected one published mouse event, got %+v", events)
	}
	mouse := events[0].Mouse
	if mouse.Buttons != 1 || mouse.DX != 5 || mouse.DY != -3 || mouse.ScrollY != 1 {
		t.Fatalf("unexpected mouse report: %+v", mouse)
	}
}

func TestNotifyMouseReportStubPanicsWhenDisabled(t *testing.T) {
	if adapter.PointingEnabled {
		t.Skip("built with pointing support enabled")
	}
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected panic calling NotifyMouseReport in a non-pointing build")
		}
	}()
	host := NewHost(0, schema.Endpoint{}, Keymap{}, &recordingBus{})
	host.NotifyMouseReport(0, 0, 0, 0, 0)
}
