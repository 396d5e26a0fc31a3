// Package encoder implements Encoder (spec.md §4.4): frames in, encoded
// packets out, opened lazily on the first frame so codec parameters
// (width/height/pixel format, sample rate/format/layout) can be taken
// from what the upstream decoder or filter actually produced rather than
// guessed ahead of time. Grounded on the same astiav send/receive pump as
// pkg/decoder, run in the opposite direction.
package encoder

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/asticode/go-astiav"

	"github.com/chicogong/avpipeline/pkg/avutil"
	"github.com/chicogong/avpipeline/pkg/hwaccel"
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
	stateUnopened state = iota
	stateRunning
	stateFlushing
	stateClosed
)

// Options configures New. Open is deferred until the first frame arrives;
// the source format (dimensions, pixel or sample format, channel layout)
// comes from the MediaInfo Open receives, and FrameRate/TimeBase fall back
// to values derived from it when left zero.
type Options struct {
	Codec string // encoder name, e.g. "libx264", "aac"

	// Bitrate accepts plain integers or a "NNNk"/"NNNM" suffix, e.g.
	// "2500k" or "6M", matching the informal bitrate strings users type.
	Bitrate string

	GOPSize       int
	MaxBFrames    int
	FrameRate     avutil.Rational
	TimeBase      avutil.Rational
	Threads       int
	Options       *avutil.Dictionary
	Hardware      *hwaccel.Device
	HardwareFrames *hwaccel.FramesPool

	// FrameSize, for audio encoders requiring fixed-size frames (e.g.
	// AAC's 1024 samples/frame), is read back after Open via FrameSize().
}

// Encoder turns frames into encoded packets for one output stream. It is
// opened lazily: construct with New, then call Open once the first frame
// is available, or rely on Packets, which calls EnsureOpen on the first
// frame. Encode itself rejects an encoder that has not been opened.
type Encoder struct {
	mu      sync.Mutex
	opts    Options
	codec   *astiav.Codec
	cc      *astiav.CodecContext
	hw      *hwaccel.Device
	state   state
	kind    avutil.MediaKind
}

// New resolves the named codec but does not open it yet.
func New(opts Options) (*Encoder, error) {
	codec := astiav.FindEncoderByName(opts.Codec)
	if codec == nil {
		return nil, avutil.Newf("encoder", avutil.KindNotFound, "no encoder named %q", opts.Codec)
	}
	return &Encoder{opts: opts, codec: codec}, nil
}

// ParseBitrate converts "2500k"/"6M"/"128000"-style bitrate strings into
// bits per second.
func ParseBitrate(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	mult := int64(1)
	switch suffix := s[len(s)-1]; suffix {
	case 'k', 'K':
		mult = 1000
		s = s[:len(s)-1]
	case 'm', 'M':
		mult = 1000 * 1000
		s = s[:len(s)-1]
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, avutil.Newf("encoder", avutil.KindInvalidArgument, "invalid bitrate %q: %v", s, err)
	}
	return int64(v * float64(mult)), nil
}

// Open finalizes the codec context from info, the upstream-produced
// description of the media being encoded (video dims/pixel format, or
// audio sample rate/format/layout), plus whatever Options overrides were
// supplied. Safe to call exactly once; EnsureOpen should be preferred by
// pipeline callers driving lazy-open-on-first-frame.
func (e *Encoder) Open(info avutil.MediaInfo) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != stateUnopened {
		return avutil.New("encoder", avutil.KindInvalidArgument, "encoder already open")
	}

	cc := astiav.AllocCodecContext(e.codec)
	if cc == nil {
		return avutil.New("encoder", avutil.KindResourceExhausted, "allocate codec context")
	}
	e.kind = info.Kind

	switch info.Kind {
	case avutil.MediaKindVideo:
		cc.SetWidth(info.Video.Width)
		cc.SetHeight(info.Video.Height)
		cc.SetPixelFormat(e.choosePixelFormat(info.Video.PixelFormat))
		cc.SetSampleAspectRatio(info.Video.SampleAspectRatio)
		fr := e.opts.FrameRate
		if fr.Num() == 0 {
			fr = info.Video.FrameRate
		}
		cc.SetFramerate(fr)
		tb := e.opts.TimeBase
		if tb.Num() == 0 {
			tb = info.Video.TimeBase
		}
		if tb.Num() == 0 {
			if inv, err := avutil.RationalInv(fr); err == nil {
				tb = inv
			} else {
				tb = astiav.NewRational(1, 25)
			}
		}
		cc.SetTimeBase(tb)
		if e.opts.GOPSize > 0 {
			cc.SetGopSize(e.opts.GOPSize)
		}
		if e.opts.MaxBFrames > 0 {
			cc.SetMaxBFrames(e.opts.MaxBFrames)
		}
		if e.opts.Hardware != nil {
			e.hw = e.opts.Hardware.Ref()
			cc.SetHardwareDeviceContext(e.hw.Native())
		}
		if e.opts.HardwareFrames != nil {
			cc.SetHardwareFramesContext(e.opts.HardwareFrames.Native())
		}
	case avutil.MediaKindAudio:
		rate := info.Audio.SampleRate
		format := info.Audio.SampleFormat
		layout := info.Audio.ChannelLayout
		cc.SetSampleRate(rate)
		cc.SetSampleFormat(e.chooseSampleFormat(format))
		if err := cc.SetChannelLayout(layout); err != nil {
			cc.Free()
			return avutil.Newf("encoder", avutil.KindInvalidArgument, "set channel layout: %v", err)
		}
		tb := e.opts.TimeBase
		if tb.Num() == 0 {
			tb = info.Audio.TimeBase
		}
		if tb.Num() == 0 {
			tb = astiav.NewRational(1, rate)
		}
		cc.SetTimeBase(tb)
	default:
		cc.Free()
		return avutil.New("encoder", avutil.KindInvalidArgument, "unsupported media kind for encoding")
	}

	if e.opts.Bitrate != "" {
		bps, err := ParseBitrate(e.opts.Bitrate)
		if err != nil {
			cc.Free()
			return err
		}
		cc.SetBitRate(bps)
	}
	if e.opts.Threads > 0 {
		cc.SetThreadCount(e.opts.Threads)
	}

	if err := cc.Open(e.codec, e.opts.Options); err != nil {
		cc.Free()
		if e.hw != nil {
			e.hw.Close()
		}
		return avutil.Newf("encoder", avutil.KindInvalidArgument, "open codec %q: %v", e.opts.Codec, err)
	}

	e.cc = cc
	e.state = stateRunning
	return nil
}

// EnsureOpen opens the encoder from info unless it has already been
// opened, implementing the spec's lazy-open-on-first-frame rule.
func (e *Encoder) EnsureOpen(info avutil.MediaInfo) error {
	e.mu.Lock()
	opened := e.state != stateUnopened
	e.mu.Unlock()
	if opened {
		return nil
	}
	return e.Open(info)
}

func (e *Encoder) choosePixelFormat(produced astiav.PixelFormat) astiav.PixelFormat {
	supported := e.SupportedPixelFormats()
	if len(supported) == 0 {
		return produced
	}
	for _, pf := range supported {
		if pf == produced {
			return produced
		}
	}
	return supported[0]
}

func (e *Encoder) chooseSampleFormat(produced astiav.SampleFormat) astiav.SampleFormat {
	formats := e.codec.SampleFormats()
	if len(formats) == 0 {
		return produced
	}
	for _, sf := range formats {
		if sf == produced {
			return produced
		}
	}
	return formats[0]
}

// SupportedPixelFormats lists the pixel formats the underlying codec
// accepts, in the codec's preference order.
func (e *Encoder) SupportedPixelFormats() []astiav.PixelFormat {
	return e.codec.PixelFormats()
}

// PreferredPixelFormat returns the first (highest-preference) supported
// pixel format, or PixelFormatNone if the codec does not restrict formats.
func (e *Encoder) PreferredPixelFormat() astiav.PixelFormat {
	pfs := e.SupportedPixelFormats()
	if len(pfs) == 0 {
		return astiav.PixelFormatNone
	}
	return pfs[0]
}

// FrameSize returns the fixed number of samples per frame this audio
// encoder requires, or 0 if any frame size is accepted (video encoders
// always report 0).
func (e *Encoder) FrameSize() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cc == nil {
		return 0
	}
	return e.cc.FrameSize()
}

// Encode submits frame and returns at most one packet into pkt. A
// KindTryAgain result means pending packets must be received before
// submitting more frames.
func (e *Encoder) Encode(frame *astiav.Frame, pkt *astiav.Packet) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == stateClosed {
		return false, avutil.New("encoder", avutil.KindClosed, "encode on closed encoder")
	}
	if e.state == stateUnopened {
		return false, avutil.New("encoder", avutil.KindInvalidArgument, "encode before open")
	}

	if err := e.cc.SendFrame(frame); err != nil && !errors.Is(err, astiav.ErrEagain) {
		return false, avutil.Classify("encoder", err)
	}

	if err := e.cc.ReceivePacket(pkt); err != nil {
		if errors.Is(err, astiav.ErrEagain) {
			return false, avutil.Err(avutil.KindTryAgain)
		}
		if errors.Is(err, astiav.ErrEof) {
			return false, avutil.Err(avutil.KindEndOfStream)
		}
		return false, avutil.Newf("encoder", avutil.KindMalformedInput, "receive packet: %v", err)
	}
	return true, nil
}

// FlushPackets sends the EOF frame and returns a pull function draining
// remaining packets until KindEndOfStream.
func (e *Encoder) FlushPackets(pkt *astiav.Packet) func() (bool, error) {
	e.mu.Lock()
	if e.state == stateRunning {
		e.state = stateFlushing
		_ = e.cc.SendFrame(nil)
	}
	e.mu.Unlock()

	return func() (bool, error) {
		e.mu.Lock()
		defer e.mu.Unlock()
		if err := e.cc.ReceivePacket(pkt); err != nil {
			if errors.Is(err, astiav.ErrEof) {
				return false, avutil.Err(avutil.KindEndOfStream)
			}
			return false, avutil.Newf("encoder", avutil.KindMalformedInput, "receive packet during flush: %v", err)
		}
		return true, nil
	}
}

// Packets returns a pull combinator that encodes frames pulled from next,
// opening the encoder from the first frame's format (via timeBase when
// Options.TimeBase is unset) if it has not already been opened, and
// flushing once next is exhausted. Each returned packet must be freed by
// the caller.
func (e *Encoder) Packets(next func() (*astiav.Frame, error), timeBase avutil.Rational) func() (*astiav.Packet, error) {
	var flush func() (bool, error)
	var flushPkt *astiav.Packet
	return func() (*astiav.Packet, error) {
		for {
			if flush != nil {
				ok, err := flush()
				if ok {
					out := flushPkt
					flushPkt = astiav.AllocPacket()
					flush = e.FlushPackets(flushPkt)
					return out, nil
				}
				flushPkt.Free()
				return nil, avutil.Err(avutil.KindEndOfStream)
			}

			frame, ferr := next()
			if ferr != nil {
				if !sourceExhausted(ferr) {
					return nil, ferr
				}
				flushPkt = astiav.AllocPacket()
				flush = e.FlushPackets(flushPkt)
				continue
			}

			if err := e.EnsureOpen(avutil.FromFrame(frame, timeBase)); err != nil {
				frame.Free()
				return nil, err
			}

			out := astiav.AllocPacket()
			ok, err := e.Encode(frame, out)
			frame.Free()
			if ok {
				return out, nil
			}
			out.Free()
			if err != nil && avutil.KindOf(err) != avutil.KindTryAgain {
				return nil, err
			}
		}
	}
}

// CodecParameters returns the finalized output codec parameters, valid
// only after Open/EnsureOpen has succeeded.
func (e *Encoder) CodecParameters() (*avutil.CodecParameters, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cc == nil {
		return nil, avutil.New("encoder", avutil.KindInvalidArgument, "codec parameters requested before open")
	}
	return avutil.FromCodecContext(e.cc), nil
}

// TimeBase returns the encoder's packet time base, valid after open.
func (e *Encoder) TimeBase() avutil.Rational {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cc == nil {
		return avutil.Rational{}
	}
	return e.cc.TimeBase()
}

func (e *Encoder) String() string {
	return fmt.Sprintf("encoder.Encoder{codec=%s, state=%d}", e.opts.Codec, e.state)
}

// Close releases native resources. Idempotent.
func (e *Encoder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == stateClosed {
		return nil
	}
	e.state = stateClosed
	if e.cc != nil {
		e.cc.Free()
		e.cc = nil
	}
	if e.hw != nil {
		e.hw.Close()
		e.hw = nil
	}
	return nil
}
