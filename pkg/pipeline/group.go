package pipeline

import (
	"context"
	"sync"

	"github.com/chicogong/avpipeline/pkg/avutil"
	"github.com/chicogong/avpipeline/pkg/mux"
)

// sinkGroup barriers every track that writes to the same *mux.MediaOutput
// so AddStreamFrom is called for every stream before the single shared
// WriteHeader call, and WriteTrailer is called exactly once after the
// last track finishes draining (spec.md §4.8.4: "writes the muxer header
// (once, shared across tracks)" / "after the last track finishes
// draining, the shared muxer writes its trailer and closes"). A track
// whose sink is not a shared muxer (or has none) never touches a
// sinkGroup at all.
//
// A group can never produce a coherent header once any one of its
// members fails before reaching arrive (e.g. priming fails, or the run
// is stopped while a track waits its turn): one stream would simply be
// missing. abort accounts for that member so every other track blocked
// in arrive or trackDone is released with an error instead of waiting
// for an arrival that will never come (spec.md §4.8.5: every path
// executes the same cleanup sequence).
type sinkGroup struct {
	mo   *mux.MediaOutput
	want int

	mu         sync.Mutex
	pending    []*pendingStream
	arrived    int
	headerCh   chan struct{}
	headerErr  error
	headerOnce sync.Once

	doneCount    int
	finalizeCh   chan struct{}
	finalizeErr  error
	finalizeOnce sync.Once
}

type pendingStream struct {
	params   *avutil.CodecParameters
	timeBase avutil.Rational
	index    int
}

func newSinkGroup(mo *mux.MediaOutput, want int) *sinkGroup {
	return &sinkGroup{mo: mo, want: want, headerCh: make(chan struct{}), finalizeCh: make(chan struct{})}
}

// arrive registers params/timeBase as this track's finalized output
// stream and blocks until every track in the group has arrived, at which
// point the last arrival adds every stream (in arrival order) and writes
// the header once. It also unblocks, with an error, if ctx is cancelled
// before that happens or if another member of the group aborts first.
func (g *sinkGroup) arrive(ctx context.Context, params *avutil.CodecParameters, timeBase avutil.Rational) (int, error) {
	ps := &pendingStream{params: params, timeBase: timeBase}

	g.mu.Lock()
	g.pending = append(g.pending, ps)
	g.arrived++
	last := g.arrived == g.want
	g.mu.Unlock()

	if last {
		g.finalizeHeader()
	} else {
		select {
		case <-g.headerCh:
		case <-ctx.Done():
			g.abort(ctx.Err())
			return 0, ctx.Err()
		}
	}

	g.mu.Lock()
	err := g.headerErr
	g.mu.Unlock()
	if err != nil {
		return 0, err
	}
	return ps.index, nil
}

// finalizeHeader adds every pending stream and writes the header exactly
// once, whichever caller reaches it first (the last arrival, or abort).
func (g *sinkGroup) finalizeHeader() {
	g.headerOnce.Do(func() {
		g.mu.Lock()
		pending := g.pending
		g.mu.Unlock()

		var err error
		for _, p := range pending {
			idx, aerr := g.mo.AddStreamFrom(p.params, p.timeBase)
			if aerr != nil {
				err = aerr
				break
			}
			p.index = idx
		}
		if err == nil {
			err = g.mo.WriteHeader(nil)
		}

		g.mu.Lock()
		g.headerErr = err
		g.mu.Unlock()
		close(g.headerCh)
	})
}

// trackDone marks one track's draining complete; the last track in the
// group writes the trailer, but only if the header was actually written
// (spec.md §4.8.5: "muxer writes a trailer if the header was written").
// Like arrive, it also unblocks on ctx cancellation or another member's
// abort rather than waiting forever for a doneCount that will never
// reach want.
func (g *sinkGroup) trackDone(ctx context.Context) error {
	g.mu.Lock()
	g.doneCount++
	last := g.doneCount == g.want
	g.mu.Unlock()

	if last {
		g.finalizeTrailer()
	} else {
		select {
		case <-g.finalizeCh:
		case <-ctx.Done():
			g.abort(ctx.Err())
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	return g.finalizeErr
}

func (g *sinkGroup) finalizeTrailer() {
	g.finalizeOnce.Do(func() {
		var err error
		if g.mo.HeaderWritten() {
			err = g.mo.WriteTrailer()
		}
		g.mu.Lock()
		g.finalizeErr = err
		g.mu.Unlock()
		close(g.finalizeCh)
	})
}

// abort releases every track currently blocked in arrive or trackDone
// (and any future caller) with err, because this group's member set can
// no longer be completed: a missing stream means the header, and by
// extension the trailer, can never be written coherently. Safe to call
// more than once or concurrently; only the first error sticks.
func (g *sinkGroup) abort(err error) {
	if err == nil {
		err = avutil.New("pipeline", avutil.KindCancelled, "sink group member failed before arriving")
	}
	g.headerOnce.Do(func() {
		g.mu.Lock()
		g.headerErr = err
		g.mu.Unlock()
		close(g.headerCh)
	})
	g.finalizeOnce.Do(func() {
		g.mu.Lock()
		if g.finalizeErr == nil {
			g.finalizeErr = err
		}
		g.mu.Unlock()
		close(g.finalizeCh)
	})
}
