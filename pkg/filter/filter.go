// Package filter implements FilterAPI (spec.md §4.5): a filter graph
// described by a textual expression, built lazily when the first frame is
// sent, with the buffer source configured from the MediaInfo passed
// alongside that frame. Grounded on astiav's FilterGraph/
// BuffersrcFlags send/receive idiom and, for the auto-scale preset this
// package's sibling pkg/presets builds on, the teacher's
// pkg/operators/builtin/scale.go argument-formatting style.
package filter

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/asticode/go-astiav"

	"github.com/chicogong/avpipeline/pkg/avutil"
)

// sourceExhausted reports whether err is the clean end-of-stream a pull
// source signals (io.EOF, or the equivalent KindEndOfStream), as opposed
// to a hard failure that must abort the track instead of triggering a
// flush.
func sourceExhausted(err error) bool {
	return err == io.EOF || avutil.KindOf(err) == avutil.KindEndOfStream
}

type state int

const (
	stateUnconfigured state = iota
	stateReady
	stateClosed
)

// Graph wraps a single-input, single-output filter chain.
type Graph struct {
	mu          sync.Mutex
	expression  string
	state       state
	info        avutil.MediaInfo
	graph       *astiav.FilterGraph
	buffersrc   *astiav.FilterContext
	buffersink  *astiav.FilterContext
	description string
}

// New constructs a Graph bound to expression; the graph itself is not
// built until the first frame is sent, since the buffer source needs a
// concrete format.
func New(expression string) *Graph {
	return &Graph{expression: expression}
}

// IsReady reports whether the graph has been configured.
func (g *Graph) IsReady() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state == stateReady
}

// Description returns the graph's textual description, valid after the
// graph is configured.
func (g *Graph) Description() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.description
}

func (g *Graph) configure(info avutil.MediaInfo) error {
	graph := astiav.AllocFilterGraph()
	if graph == nil {
		return avutil.New("filter", avutil.KindResourceExhausted, "allocate filter graph")
	}

	var srcArgs string
	var srcName, sinkName string
	switch info.Kind {
	case avutil.MediaKindVideo:
		srcName, sinkName = "buffer", "buffersink"
		srcArgs = fmt.Sprintf("video_size=%dx%d:pix_fmt=%d:time_base=%d/%d:pixel_aspect=%d/%d",
			info.Video.Width, info.Video.Height, int(info.Video.PixelFormat),
			info.Video.TimeBase.Num(), info.Video.TimeBase.Den(),
			info.Video.SampleAspectRatio.Num(), orOne(info.Video.SampleAspectRatio.Den()))
	case avutil.MediaKindAudio:
		srcName, sinkName = "abuffer", "abuffersink"
		srcArgs = fmt.Sprintf("sample_rate=%d:sample_fmt=%s:channel_layout=%s:time_base=%d/%d",
			info.Audio.SampleRate, info.Audio.SampleFormat.Name(), info.Audio.ChannelLayout.String(),
			info.Audio.TimeBase.Num(), info.Audio.TimeBase.Den())
	default:
		graph.Free()
		return avutil.New("filter", avutil.KindInvalidArgument, "unsupported media kind for filter graph")
	}

	srcFilter := astiav.FindFilterByName(srcName)
	sinkFilter := astiav.FindFilterByName(sinkName)
	if srcFilter == nil || sinkFilter == nil {
		graph.Free()
		return avutil.New("filter", avutil.KindNotFound, "buffer source/sink filters not registered")
	}

	buffersrc, err := graph.NewFilterContext(srcFilter, "in", srcArgs)
	if err != nil {
		graph.Free()
		return avutil.Newf("filter", avutil.KindInvalidArgument, "create buffer source: %v", err)
	}
	buffersink, err := graph.NewFilterContext(sinkFilter, "out", "")
	if err != nil {
		graph.Free()
		return avutil.Newf("filter", avutil.KindInvalidArgument, "create buffer sink: %v", err)
	}

	inputs := astiav.AllocFilterInOut()
	outputs := astiav.AllocFilterInOut()
	defer inputs.Free()
	defer outputs.Free()

	outputs.SetName("in")
	outputs.SetFilterContext(buffersrc)
	outputs.SetPadIdx(0)
	outputs.SetNext(nil)

	inputs.SetName("out")
	inputs.SetFilterContext(buffersink)
	inputs.SetPadIdx(0)
	inputs.SetNext(nil)

	if err := graph.Parse(g.expression, inputs, outputs); err != nil {
		graph.Free()
		return avutil.Newf("filter", avutil.KindInvalidArgument, "parse filter expression %q: %v", g.expression, err)
	}
	if err := graph.Configure(); err != nil {
		graph.Free()
		return avutil.Newf("filter", avutil.KindInvalidArgument, "configure filter graph: %v", err)
	}

	g.graph = graph
	g.buffersrc = buffersrc
	g.buffersink = buffersink
	g.info = info
	g.description = graph.String()
	g.state = stateReady
	return nil
}

func orOne(n int) int {
	if n == 0 {
		return 1
	}
	return n
}

// sameFormat reports whether a new frame's format still matches the
// configured graph, per the "tear down and rebuild on format change"
// invariant.
func sameFormat(a, b avutil.MediaInfo) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case avutil.MediaKindVideo:
		return a.Video.Width == b.Video.Width && a.Video.Height == b.Video.Height && a.Video.PixelFormat == b.Video.PixelFormat
	case avutil.MediaKindAudio:
		return a.Audio.SampleRate == b.Audio.SampleRate && a.Audio.SampleFormat == b.Audio.SampleFormat && a.Audio.ChannelLayout.String() == b.Audio.ChannelLayout.String()
	}
	return true
}

func (g *Graph) teardown() {
	if g.graph != nil {
		g.graph.Free()
		g.graph = nil
	}
	g.buffersrc = nil
	g.buffersink = nil
	g.state = stateUnconfigured
}

// ensureConfigured builds or rebuilds the graph against info's format.
func (g *Graph) ensureConfigured(info avutil.MediaInfo) error {
	if g.state == stateReady {
		if sameFormat(g.info, info) {
			return nil
		}
		g.teardown()
	}
	return g.configure(info)
}

// Process sends frame through the graph and returns at most one output
// frame. A KindTryAgain result is the soft "no output yet" case.
func (g *Graph) Process(frame *astiav.Frame, info avutil.MediaInfo, out *astiav.Frame) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == stateClosed {
		return false, avutil.New("filter", avutil.KindClosed, "process on closed graph")
	}
	if err := g.ensureConfigured(info); err != nil {
		return false, err
	}

	if err := g.buffersrc.BuffersrcAddFrame(frame, astiav.NewBuffersrcFlags()); err != nil {
		return false, avutil.Classify("filter", err)
	}
	if err := g.buffersink.BuffersinkGetFrame(out, astiav.NewBuffersinkFlags()); err != nil {
		if errors.Is(err, astiav.ErrEagain) {
			return false, avutil.Err(avutil.KindTryAgain)
		}
		if errors.Is(err, astiav.ErrEof) {
			return false, avutil.Err(avutil.KindEndOfStream)
		}
		return false, avutil.Newf("filter", avutil.KindMalformedInput, "get filtered frame: %v", err)
	}
	return true, nil
}

// ProcessMultiple feeds every frame in frames and drains the sink
// completely, returning all produced frames. Each returned frame must be
// freed by the caller.
func (g *Graph) ProcessMultiple(frames []*astiav.Frame, info avutil.MediaInfo) ([]*astiav.Frame, error) {
	var out []*astiav.Frame
	for _, f := range frames {
		produced := astiav.AllocFrame()
		ok, err := g.Process(f, info, produced)
		for ok {
			out = append(out, produced)
			produced = astiav.AllocFrame()
			ok, err = g.Receive(produced)
		}
		produced.Free()
		if err != nil && avutil.KindOf(err) != avutil.KindTryAgain {
			return out, err
		}
	}
	return out, nil
}

// Receive drains one pending output frame without submitting new input.
func (g *Graph) Receive(out *astiav.Frame) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != stateReady {
		return false, avutil.Err(avutil.KindTryAgain)
	}
	if err := g.buffersink.BuffersinkGetFrame(out, astiav.NewBuffersinkFlags()); err != nil {
		if errors.Is(err, astiav.ErrEagain) {
			return false, avutil.Err(avutil.KindTryAgain)
		}
		if errors.Is(err, astiav.ErrEof) {
			return false, avutil.Err(avutil.KindEndOfStream)
		}
		return false, avutil.Newf("filter", avutil.KindMalformedInput, "get filtered frame: %v", err)
	}
	return true, nil
}

// Frames returns a pull combinator driving next (the upstream source)
// through Process until next is exhausted, then flushing.
func (g *Graph) Frames(info avutil.MediaInfo, next func() (*astiav.Frame, error)) func() (*astiav.Frame, error) {
	flushed := false
	return func() (*astiav.Frame, error) {
		for {
			out := astiav.AllocFrame()
			ok, err := g.Receive(out)
			if ok {
				return out, nil
			}
			out.Free()
			if err != nil && avutil.KindOf(err) != avutil.KindTryAgain {
				if avutil.KindOf(err) == avutil.KindEndOfStream {
					return nil, avutil.Err(avutil.KindEndOfStream)
				}
				return nil, err
			}
			if flushed {
				return nil, avutil.Err(avutil.KindEndOfStream)
			}
			in, ferr := next()
			if ferr != nil {
				if !sourceExhausted(ferr) {
					return nil, ferr
				}
				flushed = true
				if err := g.Flush(); err != nil {
					return nil, err
				}
				continue
			}
			produced := astiav.AllocFrame()
			if ok, perr := g.Process(in, info, produced); ok {
				return produced, nil
			} else if perr != nil && avutil.KindOf(perr) != avutil.KindTryAgain {
				produced.Free()
				return nil, perr
			} else {
				produced.Free()
			}
		}
	}
}

// Flush sends EOF to the buffer source.
func (g *Graph) Flush() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != stateReady {
		return nil
	}
	if err := g.buffersrc.BuffersrcAddFrame(nil, astiav.NewBuffersrcFlags()); err != nil {
		return avutil.Classify("filter", err)
	}
	return nil
}

// SendCommand synchronously applies cmd/arg to every filter instance
// named target.
func (g *Graph) SendCommand(target, cmd, arg string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != stateReady {
		return "", avutil.New("filter", avutil.KindInvalidArgument, "send command before graph configured")
	}
	resp, err := g.graph.SendCommand(target, cmd, arg, 0)
	if err != nil {
		return "", avutil.Newf("filter", avutil.KindInvalidArgument, "send command: %v", err)
	}
	return resp, nil
}

// QueueCommand defers cmd/arg to target, to be applied when the graph's
// internal clock reaches atSeconds.
func (g *Graph) QueueCommand(target, cmd, arg string, atSeconds float64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != stateReady {
		return avutil.New("filter", avutil.KindInvalidArgument, "queue command before graph configured")
	}
	if err := g.graph.QueueCommand(target, cmd, arg, 0, atSeconds); err != nil {
		return avutil.Newf("filter", avutil.KindInvalidArgument, "queue command: %v", err)
	}
	return nil
}

// Close tears down the graph. Idempotent.
func (g *Graph) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == stateClosed {
		return nil
	}
	g.teardown()
	g.state = stateClosed
	return nil
}
