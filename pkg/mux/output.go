// Package mux implements MediaOutput (spec.md §4.2): a container writer
// that streams are added to before WriteHeader, then fed packets —
// stream-copied or transcoded — through WritePacket until WriteTrailer.
// Grounded on the teacher's executor/storage_manager output handling and
// on the Muxer shape shown in the obinnaokechukwu/ffgo reference package,
// rebuilt over astiav.FormatContext in output mode.
package mux

import (
	"fmt"
	"sync"

	"github.com/asticode/go-astiav"

	"github.com/chicogong/avpipeline/pkg/avutil"
)

type state int

const (
	stateConfiguring state = iota
	stateRunning
	stateClosed
)

// MediaOutput is an opened muxer: a container being written to a path or
// a custom write sink.
type MediaOutput struct {
	mu            sync.Mutex // guards WritePacket's critical section (spec.md §5)
	fc            *astiav.FormatContext
	ioCtx         *astiav.IOContext
	streams       []*outStream
	state         state
	headerWritten bool
}

type outStream struct {
	native   *astiav.Stream
	index    int
	timeBase avutil.Rational
}

// CustomIO is the caller-supplied write sink, mirroring demux.CustomIO.
type CustomIO struct {
	Write func(p []byte) (n int, err error)
	Seek  func(offset int64, whence int) (int64, error)
}

// Options configures Create.
type Options struct {
	FormatName string // explicit container name; "" infers from path extension
	CustomIO   *CustomIO
}

// Create opens an output container at path (or via opts.CustomIO).
func Create(path string, opts *Options) (*MediaOutput, error) {
	if opts == nil {
		opts = &Options{}
	}
	fc, err := astiav.AllocOutputFormatContext(nil, opts.FormatName, path)
	if err != nil || fc == nil {
		return nil, avutil.Newf("mux", avutil.KindNotFound, "allocate output context for %q: %v", path, err)
	}

	mo := &MediaOutput{fc: fc}

	if opts.CustomIO != nil {
		ioCtx, err := astiav.AllocIOContext(32*1024, true, nil, opts.CustomIO.Seek, opts.CustomIO.Write)
		if err != nil {
			fc.Free()
			return nil, avutil.Newf("mux", avutil.KindIO, "allocate custom io: %v", err)
		}
		fc.SetPb(ioCtx)
		mo.ioCtx = ioCtx
	} else if !fc.OutputFormat().Flags().Has(astiav.IOFormatFlagNofile) {
		ioCtx, err := astiav.AllocIOContext(32*1024, true, nil, nil, nil)
		if err != nil {
			fc.Free()
			return nil, avutil.Newf("mux", avutil.KindIO, "open io for %q: %v", path, err)
		}
		if err := ioCtx.Open(path, astiav.NewIOContextFlags(astiav.IOContextFlagWrite)); err != nil {
			fc.Free()
			return nil, avutil.Newf("mux", avutil.KindPermissionDenied, "open %q for write: %v", path, err)
		}
		fc.SetPb(ioCtx)
		mo.ioCtx = ioCtx
	}

	return mo, nil
}

// AddStreamFrom adds an output stream whose codec parameters are copied
// from params (either a stream-copy source or a finalized encoder), with
// the given output time base. Must be called before WriteHeader.
func (mo *MediaOutput) AddStreamFrom(params *avutil.CodecParameters, timeBase avutil.Rational) (int, error) {
	mo.mu.Lock()
	defer mo.mu.Unlock()
	if mo.state != stateConfiguring {
		return 0, avutil.New("mux", avutil.KindClosed, "cannot add stream after header has been written")
	}

	s := mo.fc.NewStream(nil)
	if s == nil {
		return 0, avutil.New("mux", avutil.KindResourceExhausted, "allocate output stream")
	}
	if params.native != nil {
		if err := params.native.Copy(s.CodecParameters()); err != nil {
			return 0, avutil.Newf("mux", avutil.KindInvalidArgument, "copy codec parameters: %v", err)
		}
	}
	s.SetTimeBase(timeBase)

	idx := len(mo.streams)
	mo.streams = append(mo.streams, &outStream{native: s, index: s.Index(), timeBase: timeBase})
	return idx, nil
}

// WriteHeader transitions from configuring to running. After this call no
// streams may be added and codec parameters are frozen (spec.md §4.2,
// §3's stream-descriptor invariant).
func (mo *MediaOutput) WriteHeader(opts *avutil.Dictionary) error {
	mo.mu.Lock()
	defer mo.mu.Unlock()
	if mo.state != stateConfiguring {
		return avutil.New("mux", avutil.KindClosed, "write header called out of order")
	}
	if err := mo.fc.WriteHeader(opts); err != nil {
		return avutil.Newf("mux", avutil.KindInvalidArgument, "write header: %v", err)
	}
	mo.state = stateRunning
	mo.headerWritten = true
	return nil
}

// WritePacket rescales pkt's timestamps from its producer's time base to
// the destination stream's time base and writes it, optionally through
// the interleaving discipline that buffers packets across streams to
// keep per-stream dts monotonic.
func (mo *MediaOutput) WritePacket(pkt *astiav.Packet, srcTimeBase avutil.Rational, useInterleaving bool) error {
	mo.mu.Lock()
	defer mo.mu.Unlock()
	if mo.state != stateRunning {
		return avutil.New("mux", avutil.KindClosed, "write packet before header or after trailer")
	}
	if pkt.StreamIndex() < 0 || pkt.StreamIndex() >= len(mo.streams) {
		return avutil.Newf("mux", avutil.KindInvalidArgument, "stream index %d out of bounds", pkt.StreamIndex())
	}
	if pkt.Dts() != astiav.NoPtsValue && pkt.Pts() != astiav.NoPtsValue && pkt.Dts() > pkt.Pts() {
		return avutil.New("mux", avutil.KindInvalidArgument, "packet dts must not exceed pts")
	}

	dst := mo.streams[pkt.StreamIndex()]
	pkt.RescaleTs(srcTimeBase, dst.timeBase)

	var err error
	if useInterleaving {
		err = mo.fc.InterleavedWriteFrame(pkt)
	} else {
		err = mo.fc.WriteFrame(pkt)
	}
	if err != nil {
		return avutil.Newf("mux", avutil.KindIO, "write packet: %v", err)
	}
	return nil
}

// WriteTrailer transitions to closed. Idempotent after the first success.
func (mo *MediaOutput) WriteTrailer() error {
	mo.mu.Lock()
	defer mo.mu.Unlock()
	if mo.state == stateClosed {
		return nil
	}
	if mo.state != stateRunning {
		return avutil.New("mux", avutil.KindInvalidArgument, "write trailer before header written")
	}
	if err := mo.fc.WriteTrailer(); err != nil {
		return avutil.Newf("mux", avutil.KindIO, "write trailer: %v", err)
	}
	mo.state = stateClosed
	return nil
}

// HeaderWritten reports whether WriteHeader has ever succeeded, used by
// the orchestrator's abort path to decide whether a trailer must be
// attempted during cleanup.
func (mo *MediaOutput) HeaderWritten() bool {
	mo.mu.Lock()
	defer mo.mu.Unlock()
	return mo.headerWritten
}

// Close releases the muxer's native resources. Safe to call after
// WriteTrailer; double-free is a no-op.
func (mo *MediaOutput) Close() error {
	mo.mu.Lock()
	defer mo.mu.Unlock()
	if mo.fc == nil {
		return nil
	}
	if mo.ioCtx != nil && mo.fc.OutputFormat() != nil && !mo.fc.OutputFormat().Flags().Has(astiav.IOFormatFlagNofile) {
		mo.ioCtx.Close()
	}
	mo.fc.Free()
	mo.fc = nil
	return nil
}

func (mo *MediaOutput) String() string {
	return fmt.Sprintf("mux.MediaOutput{streams=%d, state=%d}", len(mo.streams), mo.state)
}
