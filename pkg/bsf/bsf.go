// Package bsf implements BitStreamFilterAPI (spec.md §4.6): packet-level
// transforms that run without decoding, bound to a stream's codec
// parameters (e.g. h264_mp4toannexb preparing Annex B output for fragmented
// MP4 muxing). Grounded on the same send/receive shape as pkg/decoder and
// pkg/encoder, applied to astiav.BitStreamFilterContext.
package bsf

import (
	"errors"
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

// Filter is a bitstream filter context bound to one stream's codec
// parameters.
type Filter struct {
	mu     sync.Mutex
	ctx    *astiav.BitStreamFilterContext
	closed bool
}

// New looks up name and binds it to params/timeBase, the source stream's
// codec parameters and time base.
func New(name string, params *avutil.CodecParameters, timeBase avutil.Rational) (*Filter, error) {
	bsfilter := astiav.FindBitStreamFilterByName(name)
	if bsfilter == nil {
		return nil, avutil.Newf("bsf", avutil.KindNotFound, "bitstream filter %q not found", name)
	}
	ctx, err := astiav.AllocBitStreamFilterContext(bsfilter)
	if err != nil || ctx == nil {
		return nil, avutil.Newf("bsf", avutil.KindResourceExhausted, "allocate bitstream filter context: %v", err)
	}
	if params.Native() != nil {
		if err := params.Native().Copy(ctx.InputCodecParameters()); err != nil {
			ctx.Free()
			return nil, avutil.Newf("bsf", avutil.KindInvalidArgument, "copy input codec parameters: %v", err)
		}
	}
	ctx.SetInputTimeBase(timeBase)
	if err := ctx.Initialize(); err != nil {
		ctx.Free()
		return nil, avutil.Newf("bsf", avutil.KindInvalidArgument, "initialize %q: %v", name, err)
	}
	return &Filter{ctx: ctx}, nil
}

// OutputCodecParameters returns the (possibly rewritten, e.g. extradata)
// output codec parameters, populated once the filter has processed at
// least one packet.
func (f *Filter) OutputCodecParameters() *avutil.CodecParameters {
	f.mu.Lock()
	defer f.mu.Unlock()
	return avutil.FromNative(f.ctx.OutputCodecParameters())
}

// OutputTimeBase returns the filter's output time base, populated after
// the first packet.
func (f *Filter) OutputTimeBase() avutil.Rational {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ctx.OutputTimeBase()
}

// Send submits pkt for filtering.
func (f *Filter) Send(pkt *astiav.Packet) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return avutil.New("bsf", avutil.KindClosed, "send on closed bitstream filter")
	}
	if err := f.ctx.SendPacket(pkt); err != nil {
		return avutil.Classify("bsf", err)
	}
	return nil
}

// Receive drains one transformed packet, or a soft KindTryAgain/
// KindEndOfStream.
func (f *Filter) Receive(pkt *astiav.Packet) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false, avutil.New("bsf", avutil.KindClosed, "receive on closed bitstream filter")
	}
	if err := f.ctx.ReceivePacket(pkt); err != nil {
		if errors.Is(err, astiav.ErrEagain) {
			return false, avutil.Err(avutil.KindTryAgain)
		}
		if errors.Is(err, astiav.ErrEof) {
			return false, avutil.Err(avutil.KindEndOfStream)
		}
		return false, avutil.Newf("bsf", avutil.KindMalformedInput, "receive packet: %v", err)
	}
	return true, nil
}

// Process is the convenience send-then-drain-all combinator: it submits
// pkt and returns every packet the filter produces in response. Each
// returned packet must be freed by the caller.
func (f *Filter) Process(pkt *astiav.Packet) ([]*astiav.Packet, error) {
	if err := f.Send(pkt); err != nil {
		return nil, err
	}
	var out []*astiav.Packet
	for {
		p := astiav.AllocPacket()
		ok, err := f.Receive(p)
		if ok {
			out = append(out, p)
			continue
		}
		p.Free()
		if avutil.KindOf(err) == avutil.KindTryAgain {
			return out, nil
		}
		if avutil.KindOf(err) == avutil.KindEndOfStream {
			return out, nil
		}
		return out, err
	}
}

// Flush sends the EOF packet.
func (f *Filter) Flush() error {
	return f.Send(nil)
}

// Packets returns a pull combinator that filters packets pulled from
// next, queuing whatever Process yields (a bitstream filter may emit zero
// or several packets per input), and flushing once next is exhausted.
// Each returned packet must be freed by the caller.
func (f *Filter) Packets(next func() (*astiav.Packet, error)) func() (*astiav.Packet, error) {
	var pending []*astiav.Packet
	flushed := false
	return func() (*astiav.Packet, error) {
		for {
			if len(pending) > 0 {
				p := pending[0]
				pending = pending[1:]
				return p, nil
			}
			if flushed {
				p := astiav.AllocPacket()
				ok, err := f.Receive(p)
				if ok {
					return p, nil
				}
				p.Free()
				return nil, avutil.Err(avutil.KindEndOfStream)
			}

			pkt, perr := next()
			if perr != nil {
				if !sourceExhausted(perr) {
					return nil, perr
				}
				flushed = true
				if err := f.Flush(); err != nil {
					return nil, err
				}
				continue
			}

			out, err := f.Process(pkt)
			if err != nil && avutil.KindOf(err) != avutil.KindTryAgain {
				return nil, err
			}
			pending = out
		}
	}
}

// Close releases native resources. Idempotent.
func (f *Filter) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	if f.ctx != nil {
		f.ctx.Free()
		f.ctx = nil
	}
	return nil
}
