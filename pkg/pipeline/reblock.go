package pipeline

import (
	"github.com/asticode/go-astiav"

	"github.com/chicogong/avpipeline/pkg/audiofifo"
	"github.com/chicogong/avpipeline/pkg/avutil"
	"github.com/chicogong/avpipeline/pkg/encoder"
)

// reblockForEncoder wraps next so that, once enc's lazy open reveals a
// fixed required frame size, frames pulled from next are accumulated in
// an AudioFifo and re-emitted in exactly that size, with pts rewritten
// monotonically from the accumulated sample count times 1/sample_rate in
// the encoder's time base (spec.md §4.8.3 rule 4). Video encoders, and
// audio encoders that accept any frame size (FrameSize() == 0), pass
// frames through unchanged.
func reblockForEncoder(next framePull, enc *encoder.Encoder, timeBase avutil.Rational) framePull {
	var (
		opened     bool
		reblocking bool
		fifo       *audiofifo.Fifo
		format     astiav.SampleFormat
		layout     astiav.ChannelLayout
		rate       int
		planar     bool
		channels   int
		frameSize  int
		samplesOut int64
		encTB      avutil.Rational
		exhausted  bool
	)

	ensureOpened := func(first *astiav.Frame) error {
		if opened {
			return nil
		}
		opened = true
		if err := enc.EnsureOpen(avutil.FromFrame(first, timeBase)); err != nil {
			return err
		}
		frameSize = enc.FrameSize()
		if frameSize <= 0 {
			return nil
		}
		reblocking = true
		format = first.SampleFormat()
		layout = first.ChannelLayout()
		rate = first.SampleRate()
		planar = format.Planar()
		channels = layout.Channels()
		encTB = enc.TimeBase()
		f, err := audiofifo.New(format, channels, frameSize*2)
		if err != nil {
			return err
		}
		fifo = f
		return nil
	}

	writeIn := func(f *astiav.Frame) error {
		bufs := sampleBuffers(f, channels, planar)
		_, err := fifo.Write(bufs, f.NbSamples())
		return err
	}

	readOut := func(n int) (*astiav.Frame, error) {
		out := astiav.AllocFrame()
		out.SetSampleFormat(format)
		if err := out.SetChannelLayout(layout); err != nil {
			out.Free()
			return nil, avutil.Newf("pipeline", avutil.KindInvalidArgument, "reblock channel layout: %v", err)
		}
		out.SetSampleRate(rate)
		out.SetNbSamples(n)
		if err := out.AllocBuffer(0); err != nil {
			out.Free()
			return nil, avutil.Newf("pipeline", avutil.KindResourceExhausted, "reblock alloc buffer: %v", err)
		}
		bufs := sampleBuffers(out, channels, planar)
		if _, err := fifo.Read(bufs, n); err != nil {
			out.Free()
			return nil, err
		}
		pts, err := ptsFromSamples(samplesOut, rate, encTB)
		if err == nil {
			out.SetPts(pts)
		}
		samplesOut += int64(n)
		return out, nil
	}

	return func() (*astiav.Frame, error) {
		for {
			if !opened {
				f, err := next()
				if err != nil {
					return nil, err
				}
				if openErr := ensureOpened(f); openErr != nil {
					f.Free()
					return nil, openErr
				}
				if !reblocking {
					return f, nil
				}
				if err := writeIn(f); err != nil {
					f.Free()
					return nil, err
				}
				f.Free()
				continue
			}
			if !reblocking {
				return next()
			}
			if fifo.Size() >= frameSize {
				return readOut(frameSize)
			}
			if exhausted {
				if fifo.Size() > 0 {
					return readOut(fifo.Size())
				}
				return nil, avutil.Err(avutil.KindEndOfStream)
			}
			f, err := next()
			if err != nil {
				if !eof(err) {
					return nil, err
				}
				exhausted = true
				continue
			}
			if err := writeIn(f); err != nil {
				f.Free()
				return nil, err
			}
			f.Free()
		}
	}
}

// ptsFromSamples converts an accumulated sample count at rate Hz into a
// pts expressed in encTB units: samples * (1/rate) / encTB.
func ptsFromSamples(samples int64, rate int, encTB avutil.Rational) (int64, error) {
	if rate <= 0 || encTB.Num() == 0 {
		return samples, nil
	}
	num := samples * int64(encTB.Den())
	den := int64(rate) * int64(encTB.Num())
	if den == 0 {
		return 0, avutil.New("pipeline", avutil.KindInvalidArgument, "invalid encoder time base for pts computation")
	}
	return num / den, nil
}

// sampleBuffers returns the data planes that have the shape
// audiofifo.Fifo expects for format: one buffer for interleaved, one per
// channel for planar.
func sampleBuffers(f *astiav.Frame, channels int, planar bool) [][]byte {
	data := f.Data()
	if !planar {
		if len(data) > 1 {
			return data[:1]
		}
		return data
	}
	if len(data) > channels {
		return data[:channels]
	}
	return data
}
