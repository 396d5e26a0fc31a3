package pipeline

import (
	"context"

	"github.com/chicogong/avpipeline/pkg/avutil"
	"github.com/chicogong/avpipeline/pkg/demux"
)

// trackPlan is the result of priming one track: the finalized output
// codec parameters and time base a muxer stream must be declared with,
// the composed pull function to keep draining from, and (for a
// transcode or bitstream-filtered track) the first unit already pulled
// while priming, which must still be emitted once the header is written
// (spec.md §4.8.3 rule 2, §9 "Lazy initialization").
type trackPlan struct {
	params   *avutil.CodecParameters
	timeBase avutil.Rational
	pull     func() (Unit, error)
	buffered *Unit
}

// planTrack opens src and stages, composes the pull chain, and — for
// chains that end in an encoder or a bitstream filter — pulls units
// until the finalized output codec parameters are known. Stream-copy
// chains (no encoder, no bitstream filter) need no priming pull at all:
// their parameters are already known from the demuxed stream descriptor
// (spec.md §4.8.3 rule 1).
func planTrack(ctx context.Context, src Source, stages []Stage) (*trackPlan, error) {
	unit := src.unit()

	var (
		pPull  packetPull
		fPull  framePull
		stream *demux.Stream
		err    error
	)
	if unit == UnitPacket {
		pPull, stream, err = src.packets(ctx)
	} else {
		fPull, err = src.frames()
	}
	if err != nil {
		return nil, err
	}

	chainPull, err := buildChain(unit, pPull, fPull, stages)
	if err != nil {
		return nil, err
	}

	var lastEncoder *EncoderStage
	var lastBSF *BitstreamFilterStage
	for _, st := range stages {
		switch s := st.(type) {
		case *EncoderStage:
			lastEncoder = s
		case *BitstreamFilterStage:
			lastBSF = s
		}
	}

	switch {
	case lastEncoder != nil:
		for {
			u, err := chainPull()
			if err != nil {
				if tryAgain(err) {
					continue
				}
				if eof(err) {
					return nil, avutil.New("pipeline", avutil.KindMalformedInput, "encoder produced no packets before source exhausted; cannot finalize output stream parameters")
				}
				return nil, err
			}
			params, perr := lastEncoder.Encoder.CodecParameters()
			if perr != nil {
				u.Free()
				return nil, perr
			}
			return &trackPlan{params: params, timeBase: lastEncoder.Encoder.TimeBase(), pull: chainPull, buffered: &u}, nil
		}

	case lastBSF != nil:
		for {
			u, err := chainPull()
			if err != nil {
				if tryAgain(err) {
					continue
				}
				if eof(err) {
					return nil, avutil.New("pipeline", avutil.KindMalformedInput, "bitstream filter produced no packets before source exhausted; cannot finalize output stream parameters")
				}
				return nil, err
			}
			return &trackPlan{params: lastBSF.Filter.OutputCodecParameters(), timeBase: lastBSF.Filter.OutputTimeBase(), pull: chainPull, buffered: &u}, nil
		}

	default:
		if stream == nil {
			return nil, avutil.New("pipeline", avutil.KindInvalidArgument, "stream-copy track requires a demuxed Source stream")
		}
		return &trackPlan{params: stream.Params, timeBase: stream.TimeBase(), pull: chainPull}, nil
	}
}
