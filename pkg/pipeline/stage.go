package pipeline

import (
	"github.com/chicogong/avpipeline/pkg/avutil"
	"github.com/chicogong/avpipeline/pkg/bsf"
	"github.com/chicogong/avpipeline/pkg/decoder"
	"github.com/chicogong/avpipeline/pkg/encoder"
	"github.com/chicogong/avpipeline/pkg/filter"
)

// StageKind is the sealed variant spec.md §3 names for a pipeline stage.
// Source and sink ends are represented separately (Source, Sink), not as
// StageKind values, since they are never repeated mid-chain.
type StageKind int

const (
	StageKindDecoder StageKind = iota
	StageKindFilter
	StageKindEncoder
	StageKindBitstreamFilter
	StageKindPassthrough
)

func (k StageKind) String() string {
	switch k {
	case StageKindDecoder:
		return "decoder"
	case StageKindFilter:
		return "filter"
	case StageKindEncoder:
		return "encoder"
	case StageKindBitstreamFilter:
		return "bitstream_filter"
	case StageKindPassthrough:
		return "passthrough"
	default:
		return "unknown"
	}
}

// Stage is the contract the orchestrator composes (spec.md §1: "the stage
// abstractions ... as contracts the orchestrator composes"). Stages hold
// no pipeline state themselves; the orchestrator owns all scheduling
// state (spec.md §3).
type Stage interface {
	Kind() StageKind
	InputUnit() UnitKind
	OutputUnit() UnitKind
	Close() error
}

// DecoderStage adapts a *decoder.Decoder (packet -> frame).
type DecoderStage struct {
	Decoder *decoder.Decoder
}

func NewDecoderStage(d *decoder.Decoder) *DecoderStage { return &DecoderStage{Decoder: d} }

func (s *DecoderStage) Kind() StageKind     { return StageKindDecoder }
func (s *DecoderStage) InputUnit() UnitKind { return UnitPacket }
func (s *DecoderStage) OutputUnit() UnitKind { return UnitFrame }
func (s *DecoderStage) Close() error         { return s.Decoder.Close() }

// FilterStage adapts a *filter.Graph (frame -> frame). Info describes the
// frame-producing upstream's format; the graph's lazy configure step at
// the first frame builds its buffer source from Info, not from the frame
// (spec.md §4.5). A zero Info is not filled in from the frame: configure
// then fails with KindInvalidArgument.
type FilterStage struct {
	Graph *filter.Graph
	Info  avutil.MediaInfo
}

func NewFilterStage(g *filter.Graph, info avutil.MediaInfo) *FilterStage {
	return &FilterStage{Graph: g, Info: info}
}

func (s *FilterStage) Kind() StageKind      { return StageKindFilter }
func (s *FilterStage) InputUnit() UnitKind  { return UnitFrame }
func (s *FilterStage) OutputUnit() UnitKind { return UnitFrame }
func (s *FilterStage) Close() error         { return s.Graph.Close() }

// EncoderStage adapts a *encoder.Encoder (frame -> packet). TimeBase is
// the time base frames arrive in, used only when Options.TimeBase was
// left zero on the encoder itself (spec.md §4.4's lazy-open rule).
type EncoderStage struct {
	Encoder  *encoder.Encoder
	TimeBase avutil.Rational
}

func NewEncoderStage(e *encoder.Encoder, timeBase avutil.Rational) *EncoderStage {
	return &EncoderStage{Encoder: e, TimeBase: timeBase}
}

func (s *EncoderStage) Kind() StageKind      { return StageKindEncoder }
func (s *EncoderStage) InputUnit() UnitKind  { return UnitFrame }
func (s *EncoderStage) OutputUnit() UnitKind { return UnitPacket }
func (s *EncoderStage) Close() error         { return s.Encoder.Close() }

// BitstreamFilterStage adapts a *bsf.Filter (packet -> packet).
type BitstreamFilterStage struct {
	Filter *bsf.Filter
}

func NewBitstreamFilterStage(f *bsf.Filter) *BitstreamFilterStage {
	return &BitstreamFilterStage{Filter: f}
}

func (s *BitstreamFilterStage) Kind() StageKind      { return StageKindBitstreamFilter }
func (s *BitstreamFilterStage) InputUnit() UnitKind  { return UnitPacket }
func (s *BitstreamFilterStage) OutputUnit() UnitKind { return UnitPacket }
func (s *BitstreamFilterStage) Close() error         { return s.Filter.Close() }

// PassthroughStage carries units through unchanged: the "passthrough"
// named-track shape (spec.md §4.8, stream-copy with no bitstream filter).
// Its unit kind is fixed at construction since the chain validator needs
// it before any data has flowed.
type PassthroughStage struct {
	Unit UnitKind
}

func NewPassthroughStage(unit UnitKind) *PassthroughStage { return &PassthroughStage{Unit: unit} }

func (s *PassthroughStage) Kind() StageKind      { return StageKindPassthrough }
func (s *PassthroughStage) InputUnit() UnitKind  { return s.Unit }
func (s *PassthroughStage) OutputUnit() UnitKind { return s.Unit }
func (s *PassthroughStage) Close() error         { return nil }
