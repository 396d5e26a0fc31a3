package pipeline

import (
	"context"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/chicogong/avpipeline/pkg/avutil"
	"github.com/chicogong/avpipeline/pkg/mux"
)

// Track is one named track of a Named pipeline (spec.md §4.8, "Named
// (multi-track)"): a source, an ordered stage chain (nil/empty means
// passthrough/stream-copy), and an optional per-track sink overriding
// whatever shared sink Named was called with.
type Track struct {
	Source Source
	Stages []Stage
	Sink   Sink
}

// Simple builds a single-track pipeline: source -> stages -> sink
// (spec.md §4.8, "Simple (single-track)"). This is pipeline(...)'s
// single-source/single-sink overload; Named and Partial are the other
// two the spec's "typed pipeline builder and its overload resolution"
// describes.
func Simple(ctx context.Context, src Source, stages []Stage, sink Sink, opts *Options) (*Control, error) {
	return Named(ctx, map[string]Track{"default": {Source: src, Stages: stages}}, sink, opts)
}

// Named builds a multi-track pipeline: every track runs as an
// independent cooperative loop (goroutine), multiplexed into sink unless
// the track sets its own Sink (spec.md §4.8, "Named (multi-track)").
// Tracks that share the identical *mux.MediaOutput are barriered so the
// header is written exactly once, with every stream declared, and the
// trailer is written exactly once after the last of them drains
// (spec.md §4.8.4).
func Named(ctx context.Context, tracks map[string]Track, sink Sink, opts *Options) (*Control, error) {
	if len(tracks) == 0 {
		return nil, avutil.New("pipeline", avutil.KindInvalidArgument, "at least one track is required")
	}

	type resolved struct {
		name  string
		track Track
		unit  UnitKind
	}
	order := make([]resolved, 0, len(tracks))
	for name, tr := range tracks {
		if tr.Sink.IsZero() {
			tr.Sink = sink
		}
		unit := tr.Source.unit()
		if err := validateChain(unit, tr.Stages, tr.Sink); err != nil {
			return nil, avutil.Newf("pipeline", avutil.KindInvalidArgument, "track %q: %v", name, err)
		}
		order = append(order, resolved{name: name, track: tr, unit: unit})
	}

	groups := map[*mux.MediaOutput]*sinkGroup{}
	counts := map[*mux.MediaOutput]int{}
	for _, r := range order {
		if r.track.Sink.Output != nil {
			counts[r.track.Sink.Output]++
		}
	}
	for mo, n := range counts {
		groups[mo] = newSinkGroup(mo, n)
	}

	runCtx, cancel := context.WithCancel(ctx)
	ctrl := newControl(cancel)
	log := opts.logger()
	interleave := opts.interleave()
	onProgress := opts.onProgress()

	eg, egCtx := errgroup.WithContext(runCtx)
	for _, r := range order {
		r := r
		var group *sinkGroup
		if r.track.Sink.Output != nil {
			group = groups[r.track.Sink.Output]
		}
		eg.Go(func() error {
			return runTrack(egCtx, r.name, r.track, r.unit, group, interleave, log, onProgress, ctrl)
		})
	}

	go func() {
		err := eg.Wait()
		ctrl.finish(err)
	}()

	return ctrl, nil
}

// runTrack drives one track through Priming, Running/Draining, and
// Finalizing (spec.md §4.8.4). Cancellation is observed between pulls,
// never mid-native-call (spec.md §5): an in-flight Decode/Encode/Process
// call always finishes before the next ctx check.
func runTrack(ctx context.Context, name string, tr Track, unit UnitKind, group *sinkGroup, interleave bool, log zerolog.Logger, onProgress func(string, Progress), ctrl *Control) (err error) {
	sublog := log.With().Str("track", name).Logger()
	sublog.Debug().Msg("priming")

	defer func() {
		for _, st := range tr.Stages {
			_ = st.Close()
		}
	}()

	plan, err := planTrack(ctx, tr.Source, tr.Stages)
	if err != nil {
		wrapped := avutil.Newf("pipeline", avutil.KindOf(err), "track %q priming: %v", name, err)
		if group != nil {
			// This track will never call arrive; release every other
			// member blocked waiting for it instead of leaving them
			// stuck forever (spec.md §4.8.5).
			group.abort(wrapped)
		}
		return wrapped
	}

	if group != nil {
		if _, err := group.arrive(ctx, plan.params, plan.timeBase); err != nil {
			return avutil.Newf("pipeline", avutil.KindOf(err), "track %q: write header: %v", name, err)
		}
	}

	sublog.Debug().Msg("running")
	run := &trackRun{name: name, sink: tr.Sink, interleave: interleave, log: sublog, onProgress: onProgress}

	runErr := run.drain(ctx, plan, ctrl)

	if group != nil {
		sublog.Debug().Msg("finalizing")
		if ferr := group.trackDone(ctx); ferr != nil && runErr == nil {
			runErr = ferr
		}
	}
	if runErr != nil && ctrl.IsStopped() {
		sublog.Debug().Err(runErr).Msg("aborting after stop")
		return nil
	}
	return runErr
}
