package avutil

import "github.com/asticode/go-astiav"

// MediaKind distinguishes the codec-type-specific branches of
// CodecParameters and MediaInfo.
type MediaKind int

const (
	MediaKindUnknown MediaKind = iota
	MediaKindVideo
	MediaKindAudio
	MediaKindSubtitle
	MediaKindData
)

func mediaKindFrom(t astiav.MediaType) MediaKind {
	switch t {
	case astiav.MediaTypeVideo:
		return MediaKindVideo
	case astiav.MediaTypeAudio:
		return MediaKindAudio
	case astiav.MediaTypeSubtitle:
		return MediaKindSubtitle
	default:
		return MediaKindData
	}
}

// CodecParameters is the minimal, language-neutral description of a
// stream's codec, shared by decoders and muxers. It wraps
// astiav.CodecParameters, adding the sealed video/audio field split
// spec.md §3 names.
type CodecParameters struct {
	native *astiav.CodecParameters

	CodecID   astiav.CodecID
	Kind      MediaKind

	// Video fields, zero for audio.
	Width            int
	Height           int
	PixelFormat      astiav.PixelFormat
	SampleAspectRatio Rational

	// Audio fields, zero for video.
	SampleRate     int
	SampleFormat   astiav.SampleFormat
	ChannelLayout  astiav.ChannelLayout
}

// Native returns the wrapped astiav.CodecParameters, for calls (e.g.
// ToCodecContext) this package does not re-expose.
func (p *CodecParameters) Native() *astiav.CodecParameters { return p.native }

// FromStream builds CodecParameters from a demuxed stream's native
// parameters.
func FromStream(s *astiav.Stream) *CodecParameters {
	cp := s.CodecParameters()
	p := &CodecParameters{
		native:  cp,
		CodecID: cp.CodecID(),
		Kind:    mediaKindFrom(cp.MediaType()),
	}
	switch p.Kind {
	case MediaKindVideo:
		p.Width = cp.Width()
		p.Height = cp.Height()
		p.PixelFormat = cp.PixelFormat()
		p.SampleAspectRatio = cp.SampleAspectRatio()
	case MediaKindAudio:
		p.SampleRate = cp.SampleRate()
		p.SampleFormat = cp.SampleFormat()
		p.ChannelLayout = cp.ChannelLayout()
	}
	return p
}

// FromCodecContext builds CodecParameters from an opened encoder/decoder
// context, used once an encoder has finalized negotiation on first frame.
// The native parameters are populated via the context so the result can
// still be handed straight to mux.AddStreamFrom.
func FromCodecContext(cc *astiav.CodecContext) *CodecParameters {
	native := astiav.AllocCodecParameters()
	if native != nil {
		_ = cc.ToCodecParameters(native)
	}
	p := &CodecParameters{
		native:  native,
		CodecID: cc.CodecID(),
		Kind:    mediaKindFrom(cc.MediaType()),
	}
	switch p.Kind {
	case MediaKindVideo:
		p.Width = cc.Width()
		p.Height = cc.Height()
		p.PixelFormat = cc.PixelFormat()
		p.SampleAspectRatio = cc.SampleAspectRatio()
	case MediaKindAudio:
		p.SampleRate = cc.SampleRate()
		p.SampleFormat = cc.SampleFormat()
		p.ChannelLayout = cc.ChannelLayout()
	}
	return p
}

// FromNative builds CodecParameters from an already-populated native
// astiav.CodecParameters, e.g. a bitstream filter's output parameters.
func FromNative(cp *astiav.CodecParameters) *CodecParameters {
	p := &CodecParameters{
		native:  cp,
		CodecID: cp.CodecID(),
		Kind:    mediaKindFrom(cp.MediaType()),
	}
	switch p.Kind {
	case MediaKindVideo:
		p.Width = cp.Width()
		p.Height = cp.Height()
		p.PixelFormat = cp.PixelFormat()
		p.SampleAspectRatio = cp.SampleAspectRatio()
	case MediaKindAudio:
		p.SampleRate = cp.SampleRate()
		p.SampleFormat = cp.SampleFormat()
		p.ChannelLayout = cp.ChannelLayout()
	}
	return p
}

// ApplyToCodecContext copies parameters into a newly allocated decoder
// context, mirroring astiav's CodecParameters.ToCodecContext.
func (p *CodecParameters) ApplyToCodecContext(cc *astiav.CodecContext) error {
	if p.native == nil {
		return New("avutil", KindInvalidArgument, "codec parameters have no native backing; construct from a stream")
	}
	if err := p.native.ToCodecContext(cc); err != nil {
		return Newf("avutil", KindInvalidArgument, "copy codec parameters: %v", err)
	}
	return nil
}
