package pipeline

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/chicogong/avpipeline/pkg/avutil"
)

// trackRun drains one track's trackPlan into its Sink until EOF,
// cancellation, or a fatal error (spec.md §4.8.4, "Running/Draining").
type trackRun struct {
	name       string
	sink       Sink
	interleave bool
	log        zerolog.Logger
	onProgress func(string, Progress)
	units      int64
}

// drain emits plan.buffered (if any) first, then repeatedly pulls and
// writes units until the plan's pull function signals end of stream. A
// soft KindTryAgain is retried silently; cancellation is only observed
// between pulls, never abandoning a unit already read from the chain
// (spec.md §5: "an in-flight native call always finishes").
func (r *trackRun) drain(ctx context.Context, plan *trackPlan, ctrl *Control) error {
	if plan.buffered != nil {
		if err := r.emit(*plan.buffered, plan.timeBase); err != nil {
			return err
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		if ctrl.IsStopped() {
			return nil
		}

		u, err := plan.pull()
		if err != nil {
			if tryAgain(err) {
				continue
			}
			if eof(err) {
				return nil
			}
			return err
		}
		if err := r.emit(u, plan.timeBase); err != nil {
			return err
		}
	}
}

func (r *trackRun) emit(u Unit, timeBase avutil.Rational) error {
	defer u.Free()

	var pts int64
	switch u.Kind {
	case UnitPacket:
		pts = u.Packet.Pts()
	default:
		pts = u.Frame.Pts()
	}

	var err error
	switch u.Kind {
	case UnitPacket:
		err = r.sink.consumePacket(u.Packet, timeBase, r.interleave)
	default:
		err = r.sink.consumeFrame(u.Frame)
	}
	if err != nil {
		return err
	}

	r.units++
	if r.onProgress != nil {
		r.onProgress(r.name, Progress{
			UnitsProcessed: r.units,
			CurrentPTS:     float64(pts) * avutil.RationalFloat64(timeBase),
		})
	}
	return nil
}
