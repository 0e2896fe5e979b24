package ingress

import (
	"fmt"

	"github.com/kstaniek/zmk-ipc-bridge/internal/schema"
)

// Injector is the target of a dispatched key event: the simulated key-scan
// subsystem. It is a narrow interface so the ingress package can be tested
// without depending on internal/simhost.
type Injector interface {
	InjectKeyEvent(action schema.Action, position uint32) error
}

// Geometry resolves a linear key-scan position against the host's matrix
// column count, matching how the simulated matrix enumerates its positions.
type Geometry struct {
	Columns uint32
}

// ToLinear converts an explicit row/column pair into the host's linear
// position numbering as row*Columns + col. With Columns == 0 the row
// contributes nothing and the result is col.
func (g Geometry) ToLinear(pos schema.KeyPosition) uint32 {
	return pos.Row*g.Columns + pos.Col
}

// Dispatch resolves one decoded ClientMessage to a linear position and
// injects it into inj. Exactly one of KeyEvent.Pos or KeyEvent.Position must
// be set (enforced upstream by the codec, which never produces both).
//
// A KeyEvent whose Action is neither PRESS nor RELEASE is rejected.
//
// A KeyPosition payload is converted with ToLinear and never rejected for
// lack of configured geometry. A linear Position payload requires Columns > 0 —
// with no matrix configured, a bare linear index can't be validated against
// anything, so it is dropped with an error instead of injected.
func Dispatch(msg schema.ClientMessage, geom Geometry, inj Injector) error {
	if msg.KeyEvent == nil {
		return ErrNoKeyEvent
	}
	ev := msg.KeyEvent
	if !ev.Action.Valid() {
		return fmt.Errorf("ingress: invalid key action %d", ev.Action)
	}
	switch {
	case ev.Pos != nil:
		return inj.InjectKeyEvent(ev.Action, geom.ToLinear(*ev.Pos))
	case ev.Position != nil:
		if geom.Columns == 0 {
			return ErrColumnsZero
		}
		return inj.InjectKeyEvent(ev.Action, *ev.Position)
	default:
		return ErrNoKeyEvent
	}
}
