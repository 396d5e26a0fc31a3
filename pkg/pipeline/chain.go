package pipeline

import (
	"io"

	"github.com/asticode/go-astiav"

	"github.com/chicogong/avpipeline/pkg/avutil"
)

// packetPull and framePull are the pull-function shapes every stage
// package's combinator (Decoder.Frames, Encoder.Packets, Graph.Frames,
// Filter.Packets) already exposes. The orchestrator's job is purely to
// compose them in the order validateChain approved; no stage package
// needs to know about its neighbors.
type packetPull func() (*astiav.Packet, error)
type framePull func() (*astiav.Frame, error)

// buildChain composes stages onto a source pull function, returning a
// Unit-pull function that yields the terminal stage's output (or the raw
// source output, for an empty chain / passthrough). Each EncoderStage's
// own TimeBase is the time base handed to its Encoder.Packets for the
// lazy-open EnsureOpen call.
func buildChain(srcUnit UnitKind, srcPackets packetPull, srcFrames framePull, stages []Stage) (func() (Unit, error), error) {
	unit := srcUnit
	var pPull packetPull = srcPackets
	var fPull framePull = srcFrames

	for _, st := range stages {
		switch s := st.(type) {
		case *DecoderStage:
			fPull = s.Decoder.Frames(pPull)
			unit = UnitFrame
		case *FilterStage:
			fPull = s.Graph.Frames(s.Info, fPull)
			unit = UnitFrame
		case *EncoderStage:
			// reblockForEncoder is transparent when the encoder does not
			// require a fixed frame size; it only buffers through an
			// AudioFifo once FrameSize() is known to be non-zero after
			// the encoder's lazy open (spec.md §4.8.3 rule 4).
			pPull = s.Encoder.Packets(reblockForEncoder(fPull, s.Encoder, s.TimeBase), s.TimeBase)
			unit = UnitPacket
		case *BitstreamFilterStage:
			pPull = s.Filter.Packets(pPull)
			unit = UnitPacket
		case *PassthroughStage:
			// unit and the active pull function are already correct.
		default:
			return nil, avutil.Newf("pipeline", avutil.KindInvalidArgument, "unsupported stage type %T", st)
		}
	}

	final := unit
	return func() (Unit, error) {
		switch final {
		case UnitFrame:
			f, err := fPull()
			if err != nil {
				return Unit{}, err
			}
			return Unit{Kind: UnitFrame, Frame: f}, nil
		default:
			p, err := pPull()
			if err != nil {
				return Unit{}, err
			}
			return Unit{Kind: UnitPacket, Packet: p}, nil
		}
	}, nil
}

// eof normalizes both io.EOF (demux.MediaInput.Packets' convention) and
// avutil's KindEndOfStream sentinel to a single check the orchestrator's
// run loop tests against.
func eof(err error) bool {
	return err == io.EOF || avutil.KindOf(err) == avutil.KindEndOfStream
}

func tryAgain(err error) bool {
	return avutil.KindOf(err) == avutil.KindTryAgain
}
