// Package demux implements MediaInput (spec.md §4.1): opening a source,
// probing its streams, and yielding packets tagged with stream index.
// It is grounded on the teacher's pkg/prober (which shelled out to
// ffprobe) and on astiav's FormatContext.OpenInput/FindStreamInfo/
// ReadFrame idiom, generalized to also accept caller-supplied custom I/O.
package demux

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/asticode/go-astiav"
	"github.com/rs/zerolog"

	"github.com/chicogong/avpipeline/pkg/avutil"
)

// Options configures Open.
type Options struct {
	// FormatName forces a container/demuxer name instead of probing it.
	FormatName string
	// Dictionary carries protocol/format options (e.g. probesize).
	Dictionary *avutil.Dictionary
	// ProbeSize and MaxAnalyzeDuration bound extended stream analysis.
	ProbeSize          int64
	MaxAnalyzeDuration int64
	// CustomIO, when set, is used instead of opening path as a native
	// protocol URL.
	CustomIO *CustomIO
	// Logger is kept on the MediaInput; demux itself writes no log lines
	// to it. Defaults to a no-op logger, since spec.md treats logging as an
	// external concern.
	Logger zerolog.Logger
}

// CustomIO is the caller-supplied byte stream spec.md §6 describes:
// read/seek callbacks invoked on the worker pool, plus a buffer size.
type CustomIO struct {
	Read       func(p []byte) (n int, err error)
	Seek       func(offset int64, whence int) (int64, error)
	BufferSize int
}

// MediaInput is an opened demuxer: container + stream list, yielding
// packets tagged with their stream index.
type MediaInput struct {
	mu      sync.Mutex
	fc      *astiav.FormatContext
	ioCtx   *astiav.IOContext
	streams []*Stream
	closed  bool
	log     zerolog.Logger
}

// Stream is a demuxed stream descriptor (spec.md §3).
type Stream struct {
	native *astiav.Stream
	Index  int
	Params *avutil.CodecParameters
}

// TimeBase returns the stream's native time base.
func (s *Stream) TimeBase() avutil.Rational { return s.native.TimeBase() }

// FrameRate returns the stream's average frame rate.
func (s *Stream) FrameRate() avutil.Rational { return s.native.AvgFrameRate() }

// Native exposes the wrapped astiav.Stream for calls this package does
// not re-expose (metadata, disposition, discard policy).
func (s *Stream) Native() *astiav.Stream { return s.native }

// Open opens src (a path or URL) and probes its streams, or uses
// opts.CustomIO when provided. Fails with a KindNotFound,
// KindPermissionDenied or KindIO error if src cannot be opened, and with
// KindMalformedInput if its streams cannot be probed.
func Open(src string, opts *Options) (*MediaInput, error) {
	if opts == nil {
		opts = &Options{}
	}
	fc := astiav.AllocFormatContext()
	if fc == nil {
		return nil, avutil.New("demux", avutil.KindResourceExhausted, "allocate format context")
	}

	mi := &MediaInput{fc: fc, log: opts.Logger}

	if opts.ProbeSize > 0 {
		fc.SetProbeSize(opts.ProbeSize)
	}
	if opts.MaxAnalyzeDuration > 0 {
		fc.SetMaxAnalyzeDuration(opts.MaxAnalyzeDuration)
	}

	var inputFormat *astiav.InputFormat
	if opts.FormatName != "" {
		inputFormat = astiav.FindInputFormat(opts.FormatName)
		if inputFormat == nil {
			fc.Free()
			return nil, avutil.Newf("demux", avutil.KindNotFound, "input format %q not found", opts.FormatName)
		}
	}

	if opts.CustomIO != nil {
		bufSize := opts.CustomIO.BufferSize
		if bufSize <= 0 {
			bufSize = 32 * 1024
		}
		ioCtx, err := astiav.AllocIOContext(bufSize, false, opts.CustomIO.Read, opts.CustomIO.Seek, nil)
		if err != nil {
			fc.Free()
			return nil, avutil.Newf("demux", avutil.KindIO, "allocate custom io: %v", err)
		}
		fc.SetPb(ioCtx)
		mi.ioCtx = ioCtx
	}

	if err := fc.OpenInput(src, inputFormat, opts.Dictionary); err != nil {
		mi.closeNative()
		return nil, classifyOpenErr(err)
	}

	if err := fc.FindStreamInfo(opts.Dictionary); err != nil {
		mi.closeNative()
		return nil, avutil.Newf("demux", avutil.KindMalformedInput, "find stream info: %v", err)
	}

	for _, s := range fc.Streams() {
		mi.streams = append(mi.streams, &Stream{
			native: s,
			Index:  s.Index(),
			Params: avutil.FromStream(s),
		})
	}

	return mi, nil
}

func classifyOpenErr(err error) error {
	if errors.Is(err, astiav.ErrEnoent) {
		return avutil.Newf("demux", avutil.KindNotFound, "open input: %v", err)
	}
	if errors.Is(err, astiav.ErrEacces) {
		return avutil.Newf("demux", avutil.KindPermissionDenied, "open input: %v", err)
	}
	return avutil.Newf("demux", avutil.KindIO, "open input: %v", err)
}

// Streams returns every probed stream, in container order.
func (mi *MediaInput) Streams() []*Stream { return mi.streams }

// best implements the tie-break rule spec.md §4.1 delegates to the
// native library: disposition flags, then bitrate, then channel count or
// frame rate, then id. astiav exposes this directly as
// FormatContext.FindBestStream.
func (mi *MediaInput) best(mediaType astiav.MediaType) (*Stream, error) {
	idx, _, err := mi.fc.FindBestStream(mediaType, -1, -1, nil)
	if err != nil {
		return nil, avutil.Newf("demux", avutil.KindNotFound, "no %s stream: %v", mediaType, err)
	}
	for _, s := range mi.streams {
		if s.Index == idx {
			return s, nil
		}
	}
	return nil, avutil.New("demux", avutil.KindNotFound, "best stream index not found in stream list")
}

// Video returns the best video stream.
func (mi *MediaInput) Video() (*Stream, error) { return mi.best(astiav.MediaTypeVideo) }

// Audio returns the best audio stream.
func (mi *MediaInput) Audio() (*Stream, error) { return mi.best(astiav.MediaTypeAudio) }

// Subtitles returns the best subtitle stream.
func (mi *MediaInput) Subtitles() (*Stream, error) { return mi.best(astiav.MediaTypeSubtitle) }

// FormatName returns the probed container's short name.
func (mi *MediaInput) FormatName() string {
	if f := mi.fc.InputFormat(); f != nil {
		return f.Name()
	}
	return ""
}

// Duration returns the container's overall duration, or 0 if unknown.
func (mi *MediaInput) Duration() int64 { return mi.fc.Duration() }

// Metadata returns the container-level metadata dictionary.
func (mi *MediaInput) Metadata() *avutil.Dictionary { return mi.fc.Metadata() }

// ReadPacket pulls the next packet into pkt, tagged with its stream
// index. Returns a KindEndOfStream *avutil.Error when the source is
// exhausted; callers drive this in a loop rather than via an iterator,
// since astiav reuses a single packet buffer across calls.
func (mi *MediaInput) ReadPacket(ctx context.Context, pkt *astiav.Packet) error {
	select {
	case <-ctx.Done():
		return avutil.New("demux", avutil.KindCancelled, "read packet")
	default:
	}
	if err := mi.fc.ReadFrame(pkt); err != nil {
		if errors.Is(err, astiav.ErrEof) {
			return avutil.Err(avutil.KindEndOfStream)
		}
		if errors.Is(err, astiav.ErrEagain) {
			return avutil.Err(avutil.KindTryAgain)
		}
		return avutil.Newf("demux", avutil.KindMalformedInput, "read frame: %v", err)
	}
	return nil
}

// Packets returns a pull function suitable for the pipeline orchestrator:
// each call reuses the returned packet until io.EOF (mapped from
// KindEndOfStream) is returned. Not restartable.
func (mi *MediaInput) Packets(ctx context.Context) func() (*astiav.Packet, error) {
	pkt := astiav.AllocPacket()
	return func() (*astiav.Packet, error) {
		for {
			err := mi.ReadPacket(ctx, pkt)
			if err == nil {
				return pkt, nil
			}
			if avutil.KindOf(err) == avutil.KindEndOfStream {
				pkt.Free()
				return nil, io.EOF
			}
			if avutil.KindOf(err) == avutil.KindTryAgain {
				continue
			}
			return nil, err
		}
	}
}

// Seek seeks the given stream to targetTimestamp (in the stream's time
// base) honoring flags (e.g. astiav.NewSeekFlags(astiav.SeekFlagBackward)).
func (mi *MediaInput) Seek(streamIndex int, targetTimestamp int64, flags astiav.SeekFlags) error {
	if err := mi.fc.SeekFrame(streamIndex, targetTimestamp, flags); err != nil {
		return avutil.Newf("demux", avutil.KindIO, "seek: %v", err)
	}
	return nil
}

// Close releases the demuxer and any custom I/O. Idempotent.
func (mi *MediaInput) Close() error {
	mi.mu.Lock()
	defer mi.mu.Unlock()
	if mi.closed {
		return nil
	}
	mi.closed = true
	mi.closeNative()
	return nil
}

func (mi *MediaInput) closeNative() {
	if mi.fc != nil {
		mi.fc.CloseInput()
		mi.fc.Free()
		mi.fc = nil
	}
	if mi.ioCtx != nil {
		mi.ioCtx.Free()
		mi.ioCtx = nil
	}
}
