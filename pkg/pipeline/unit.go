package pipeline

import "github.com/asticode/go-astiav"

// UnitKind distinguishes the two media units that flow between stages
// (spec.md §3): Packet (encoded) or Frame (decoded). The orchestrator's
// stage-chain validator walks a sequence of these to reject ill-typed
// adjacency before a single stage is opened.
type UnitKind int

const (
	UnitPacket UnitKind = iota
	UnitFrame
)

func (k UnitKind) String() string {
	if k == UnitFrame {
		return "frame"
	}
	return "packet"
}

// Unit is the tagged union a Partial pipeline's iterator yields: whichever
// of Packet or Frame the terminal stage produces (spec.md §4.8, "Partial
// (no sink)"). Exactly one field is non-nil.
type Unit struct {
	Kind   UnitKind
	Packet *astiav.Packet
	Frame  *astiav.Frame
}

// Free releases the wrapped native object, if any. Safe to call on a zero
// Unit.
func (u Unit) Free() {
	if u.Packet != nil {
		u.Packet.Free()
	}
	if u.Frame != nil {
		u.Frame.Free()
	}
}
