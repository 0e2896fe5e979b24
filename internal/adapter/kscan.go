package adapter

import "github.com/kstaniek/zmk-ipc-bridge/internal/schema"

// KscanTransition is a raw key-scan edge as the simulated matrix driver
// reports it: one source (physical matrix id), one linear position, the new
// pressed state, and a millisecond timestamp of when the edge was observed
// (internal/simhost uses wall-clock Unix milliseconds truncated to 32 bits).
type KscanTransition struct {
	Source    uint32
	Position  uint32
	Pressed   bool
	Timestamp uint32
}

// Kscan wraps a raw transition into the egress wire event.
func Kscan(t KscanTransition) schema.ZmkEvent {
	return schema.ZmkEvent{Kscan: &schema.KscanEvent{
		Source:    t.Source,
		Position:  t.Position,
		Pressed:   t.Pressed,
		Timestamp: t.Timestamp,
	}}
}
