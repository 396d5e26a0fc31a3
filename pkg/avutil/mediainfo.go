package avutil

import "github.com/asticode/go-astiav"

// MediaInfo is the sealed variant that flows between pipeline stages as
// the type-level contract (spec.md §3): either a Video or an Audio
// configuration, never both. The stage constructors do not take one:
// encoder.Open/EnsureOpen and filter.Graph.Process/Frames receive the
// MediaInfo describing their input, built with FromFrame or
// FromCodecParameters.
type MediaInfo struct {
	Kind MediaKind

	Video VideoInfo
	Audio AudioInfo
}

// VideoInfo describes a video stream's negotiated format.
type VideoInfo struct {
	Width             int
	Height            int
	PixelFormat       astiav.PixelFormat
	FrameRate         Rational
	TimeBase          Rational
	SampleAspectRatio Rational
}

// AudioInfo describes an audio stream's negotiated format.
type AudioInfo struct {
	SampleRate    int
	SampleFormat  astiav.SampleFormat
	ChannelLayout astiav.ChannelLayout
	TimeBase      Rational
}

// NewVideoInfo constructs a MediaInfo in the Video branch.
func NewVideoInfo(v VideoInfo) MediaInfo {
	return MediaInfo{Kind: MediaKindVideo, Video: v}
}

// NewAudioInfo constructs a MediaInfo in the Audio branch.
func NewAudioInfo(a AudioInfo) MediaInfo {
	return MediaInfo{Kind: MediaKindAudio, Audio: a}
}

// IsVideo reports whether mi is the Video branch.
func (mi MediaInfo) IsVideo() bool { return mi.Kind == MediaKindVideo }

// IsAudio reports whether mi is the Audio branch.
func (mi MediaInfo) IsAudio() bool { return mi.Kind == MediaKindAudio }

// FromFrame builds the MediaInfo an encoder opens against, reading the
// concrete format off the first frame a decoder or filter actually
// produced rather than a pre-declared description.
func FromFrame(frame *astiav.Frame, timeBase Rational) MediaInfo {
	if frame.NbSamples() > 0 {
		return NewAudioInfo(AudioInfo{
			SampleRate:    frame.SampleRate(),
			SampleFormat:  frame.SampleFormat(),
			ChannelLayout: frame.ChannelLayout(),
			TimeBase:      timeBase,
		})
	}
	return NewVideoInfo(VideoInfo{
		Width:             frame.Width(),
		Height:            frame.Height(),
		PixelFormat:       frame.PixelFormat(),
		SampleAspectRatio: frame.SampleAspectRatio(),
		TimeBase:          timeBase,
	})
}

// FromCodecParameters projects CodecParameters down to the MediaInfo
// contract a decoder emits to its first downstream stage.
func FromCodecParameters(p *CodecParameters, timeBase, frameRate Rational) MediaInfo {
	switch p.Kind {
	case MediaKindVideo:
		return NewVideoInfo(VideoInfo{
			Width:             p.Width,
			Height:            p.Height,
			PixelFormat:       p.PixelFormat,
			FrameRate:         frameRate,
			TimeBase:          timeBase,
			SampleAspectRatio: p.SampleAspectRatio,
		})
	case MediaKindAudio:
		return NewAudioInfo(AudioInfo{
			SampleRate:    p.SampleRate,
			SampleFormat:  p.SampleFormat,
			ChannelLayout: p.ChannelLayout,
			TimeBase:      timeBase,
		})
	default:
		return MediaInfo{Kind: MediaKindUnknown}
	}
}
