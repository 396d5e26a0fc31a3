package pipeline

import (
	"github.com/asticode/go-astiav"

	"github.com/chicogong/avpipeline/pkg/avutil"
	"github.com/chicogong/avpipeline/pkg/mux"
)

// Sink describes where one track's output goes: a shared or per-track
// MediaOutput (packet unit), a caller-supplied frame/packet consumer
// (spec.md §3's Frame-sink/Packet-sink variants), or the zero value,
// meaning "no sink" (a Partial pipeline: the caller drains an iterator
// instead).
type Sink struct {
	Output *mux.MediaOutput

	FrameFunc  func(*astiav.Frame) error
	PacketFunc func(*astiav.Packet) error
}

// IsZero reports whether no sink was configured, the Partial-pipeline case.
func (s Sink) IsZero() bool {
	return s.Output == nil && s.FrameFunc == nil && s.PacketFunc == nil
}

func (s Sink) unit() (UnitKind, bool) {
	switch {
	case s.Output != nil, s.PacketFunc != nil:
		return UnitPacket, true
	case s.FrameFunc != nil:
		return UnitFrame, true
	default:
		return 0, false
	}
}

func (s Sink) consumePacket(pkt *astiav.Packet, srcTimeBase avutil.Rational, interleave bool) error {
	switch {
	case s.Output != nil:
		return s.Output.WritePacket(pkt, srcTimeBase, interleave)
	case s.PacketFunc != nil:
		return s.PacketFunc(pkt)
	default:
		return avutil.New("pipeline", avutil.KindInvalidArgument, "packet produced with no packet sink configured")
	}
}

func (s Sink) consumeFrame(frame *astiav.Frame) error {
	if s.FrameFunc == nil {
		return avutil.New("pipeline", avutil.KindInvalidArgument, "frame produced with no frame sink configured")
	}
	return s.FrameFunc(frame)
}
