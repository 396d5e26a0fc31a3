package pipeline

import (
	"context"

	"github.com/chicogong/avpipeline/pkg/avutil"
)

// Iterator is what Partial hands back: a pull-based cursor over a stage
// chain with no sink attached (spec.md §4.8, "Partial (no sink)"), for
// callers who want to inspect or re-route units themselves rather than
// have the orchestrator write them anywhere.
type Iterator struct {
	pull   func() (Unit, error)
	cancel context.CancelFunc
	stages []Stage
	closed bool
}

// Next pulls the next unit. Once the source and every stage have drained
// it returns the end-of-stream error of the last puller in the chain:
// avutil's KindEndOfStream (check with avutil.KindOf) from a stage, or
// io.EOF straight from the source when only passthrough stages (or none)
// follow it.
func (it *Iterator) Next() (Unit, error) {
	for {
		u, err := it.pull()
		if err != nil {
			if tryAgain(err) {
				continue
			}
			return Unit{}, err
		}
		return u, nil
	}
}

// Close cancels the underlying context and closes every stage. Safe to
// call more than once.
func (it *Iterator) Close() error {
	if it.closed {
		return nil
	}
	it.closed = true
	it.cancel()
	var first error
	for _, st := range it.stages {
		if err := st.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Partial builds a sinkless pipeline: source -> stages, yielded through
// an Iterator the caller drains itself (spec.md §4.8, "Partial (no
// sink)"). Unlike Simple/Named, there is no muxer to prime a header for,
// so encoder/bitstream-filter stages open lazily on the caller's first
// Next call rather than during construction.
func Partial(ctx context.Context, src Source, stages []Stage, opts *Options) (*Iterator, error) {
	unit := src.unit()
	if err := validateChain(unit, stages, Sink{}); err != nil {
		return nil, avutil.Newf("pipeline", avutil.KindInvalidArgument, "%v", err)
	}

	runCtx, cancel := context.WithCancel(ctx)

	var (
		pPull packetPull
		fPull framePull
		err   error
	)
	if unit == UnitPacket {
		pPull, _, err = src.packets(runCtx)
	} else {
		fPull, err = src.frames()
	}
	if err != nil {
		cancel()
		return nil, err
	}

	chainPull, err := buildChain(unit, pPull, fPull, stages)
	if err != nil {
		cancel()
		return nil, err
	}

	return &Iterator{pull: chainPull, cancel: cancel, stages: stages}, nil
}
