package pipeline

import (
	"context"

	"github.com/asticode/go-astiav"

	"github.com/chicogong/avpipeline/pkg/avutil"
	"github.com/chicogong/avpipeline/pkg/demux"
)

// Source describes where one track's data originates: a demuxed stream
// (packet unit), or a caller-supplied frame/packet generator (spec.md
// §4.8's "frame iterator" source and §3's Frame-source/Packet-source
// stage variants).
type Source struct {
	// Input + Stream select a demuxed stream. Stream may be left nil with
	// Kind set to have the orchestrator resolve it via Input's
	// best-stream rule (demux.MediaInput.Video/Audio/Subtitles).
	Input  *demux.MediaInput
	Stream *demux.Stream
	Kind   avutil.MediaKind

	// FrameFunc / PacketFunc, mutually exclusive with Input, supply units
	// directly: a frame generator (e.g. synthesized test frames) or a raw
	// packet generator. Must return io.EOF, or an avutil KindEndOfStream
	// error, when exhausted; the run loop treats both as end of stream.
	FrameFunc func() (*astiav.Frame, error)
	PacketFunc func() (*astiav.Packet, error)

	// Info describes a synthetic source's format. The orchestrator does
	// not read it: nothing checks that it is set, and no stage is
	// configured from it.
	Info avutil.MediaInfo

	// TimeBase is not read by the orchestrator: an Input source's units
	// are always timed in the demuxed stream's own time base.
	TimeBase avutil.Rational
}

// unit reports whether this source emits Packet or Frame units.
func (s Source) unit() UnitKind {
	if s.FrameFunc != nil {
		return UnitFrame
	}
	return UnitPacket
}

// resolveStream picks Stream, or the best stream of Kind from Input, when
// Input is set and Stream is nil.
func (s *Source) resolveStream() (*demux.Stream, error) {
	if s.Stream != nil {
		return s.Stream, nil
	}
	if s.Input == nil {
		return nil, nil
	}
	switch s.Kind {
	case avutil.MediaKindVideo:
		return s.Input.Video()
	case avutil.MediaKindAudio:
		return s.Input.Audio()
	case avutil.MediaKindSubtitle:
		return s.Input.Subtitles()
	default:
		return nil, avutil.New("pipeline", avutil.KindInvalidArgument, "source requires an explicit Stream or a Kind to resolve the best stream")
	}
}

// packets returns a packet-pull function for this source, valid when
// unit() == UnitPacket.
func (s *Source) packets(ctx context.Context) (func() (*astiav.Packet, error), *demux.Stream, error) {
	if s.PacketFunc != nil {
		return s.PacketFunc, nil, nil
	}
	stream, err := s.resolveStream()
	if err != nil {
		return nil, nil, err
	}
	if stream == nil {
		return nil, nil, avutil.New("pipeline", avutil.KindInvalidArgument, "packet source requires Input+Stream or PacketFunc")
	}
	return s.Input.Packets(ctx), stream, nil
}

// frames returns a frame-pull function for this source, valid when
// unit() == UnitFrame.
func (s *Source) frames() (func() (*astiav.Frame, error), error) {
	if s.FrameFunc == nil {
		return nil, avutil.New("pipeline", avutil.KindInvalidArgument, "frame source requires FrameFunc")
	}
	return s.FrameFunc, nil
}
