// Package pipeline is the orchestrator (spec.md §4.8, C8): the typed
// dataflow engine that composes demux, decoder, filter, encoder, bsf, and
// mux stages into a runnable chain, drives both halves of the send/receive
// codec APIs, multiplexes named tracks through a shared muxer, and
// guarantees deterministic shutdown on completion, cancellation, or a
// hard stage error. This is the system's core; every other package in
// this module is a collaborator it composes, never the other way around.
//
// The scheduling model (spec.md §5) is single-threaded cooperative within
// a track: the orchestrator repeatedly asks the source for the next unit
// and drains it through the stage chain before re-prompting the source.
// Tracks of a named pipeline run as independent goroutines coordinated by
// golang.org/x/sync/errgroup, the same fan-out/error-aggregation
// primitive zsiec-prism and ManuGH-xg2g use for their own concurrent
// stream loops; the shared muxer is the only synchronization point
// between them.
package pipeline

import (
	"github.com/rs/zerolog"
)

// Options configures a pipeline run. The zero value is valid: logging is
// a no-op and interleaved writes are enabled, matching spec.md's
// "logging is an external concern" non-goal and its interleaved-write
// default for WritePacket.
type Options struct {
	// Logger receives debug-level stage-transition logs (priming, running,
	// finalizing, aborting); soft-error retries are not logged. Defaults
	// to zerolog.Nop().
	Logger zerolog.Logger

	// Interleave is not read. Whether MediaOutput.WritePacket buffers
	// packets across streams for dts-monotonic output (spec.md §4.2) is
	// decided by DisableInterleave alone: interleaving is on unless
	// DisableInterleave is set.
	Interleave bool

	// DisableInterleave is the explicit opt-out, since Options' zero value
	// cannot distinguish "unset" from "false" for a bool that defaults to
	// true.
	DisableInterleave bool

	// OnProgress, if set, is called after every unit a track emits. It
	// must return quickly: it runs inline on the track's own goroutine,
	// between the native call that produced the unit and the next pull.
	OnProgress func(track string, p Progress)
}

// Progress is a snapshot of one track's draining state, reported after
// every unit it emits. CurrentPTS is expressed in seconds, converted
// from the unit's own time base.
type Progress struct {
	UnitsProcessed int64
	CurrentPTS     float64
}

func (o *Options) onProgress() func(string, Progress) {
	if o == nil || o.OnProgress == nil {
		return func(string, Progress) {}
	}
	return o.OnProgress
}

func (o *Options) logger() zerolog.Logger {
	if o == nil {
		return zerolog.Nop()
	}
	return o.Logger
}

func (o *Options) interleave() bool {
	if o == nil {
		return true
	}
	return !o.DisableInterleave
}
