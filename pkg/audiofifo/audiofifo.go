// Package audiofifo implements AudioFifo (spec.md §4.7): a per-format
// sample queue that lets the pipeline orchestrator re-block frames of
// varying size into the fixed frame size an encoder like AAC requires.
// Grounded on astiav.AudioFifo, with the planar/interleaved buffer-list
// shape and transparent-reallocation behavior spec.md names made explicit
// at this package's boundary.
package audiofifo

import (
	"sync"

	"github.com/asticode/go-astiav"

	"github.com/chicogong/avpipeline/pkg/avutil"
)

// Fifo is a sample queue for one channel layout/sample format/sample
// rate combination.
type Fifo struct {
	mu       sync.Mutex
	native   *astiav.AudioFifo
	format   astiav.SampleFormat
	channels int
	closed   bool
}

// New allocates a fifo for format/channels with an initial sample
// capacity.
func New(format astiav.SampleFormat, channels int, initialCapacity int) (*Fifo, error) {
	f := astiav.AllocAudioFifo(format, channels, initialCapacity)
	if f == nil {
		return nil, avutil.New("audiofifo", avutil.KindResourceExhausted, "allocate audio fifo")
	}
	return &Fifo{native: f, format: format, channels: channels}, nil
}

func (f *Fifo) checkShape(buffers [][]byte) error {
	planar := f.format.Planar()
	if planar && len(buffers) != f.channels {
		return avutil.Newf("audiofifo", avutil.KindInvalidArgument, "planar format requires %d buffers, got %d", f.channels, len(buffers))
	}
	if !planar && len(buffers) != 1 {
		return avutil.New("audiofifo", avutil.KindInvalidArgument, "interleaved format requires exactly one buffer")
	}
	return nil
}

// Write appends nbSamples samples from buffers, reallocating transparently
// if the fifo's capacity is exceeded.
func (f *Fifo) Write(buffers [][]byte, nbSamples int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return 0, avutil.New("audiofifo", avutil.KindClosed, "write on closed fifo")
	}
	if err := f.checkShape(buffers); err != nil {
		return 0, err
	}
	n, err := f.native.Write(buffers, nbSamples)
	if err != nil {
		return 0, avutil.Newf("audiofifo", avutil.KindInvalidArgument, "write: %v", err)
	}
	return n, nil
}

// Read consumes up to nbSamples samples into buffers. A read from an
// empty fifo is the soft case: it returns 0 samples, no error.
func (f *Fifo) Read(buffers [][]byte, nbSamples int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return 0, avutil.New("audiofifo", avutil.KindClosed, "read on closed fifo")
	}
	if err := f.checkShape(buffers); err != nil {
		return 0, err
	}
	if f.native.Size() == 0 {
		return 0, nil
	}
	n, err := f.native.Read(buffers, nbSamples)
	if err != nil {
		return 0, avutil.Newf("audiofifo", avutil.KindInvalidArgument, "read: %v", err)
	}
	return n, nil
}

// Peek reads nbSamples samples into buffers without consuming them.
func (f *Fifo) Peek(buffers [][]byte, nbSamples int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return 0, avutil.New("audiofifo", avutil.KindClosed, "peek on closed fifo")
	}
	if err := f.checkShape(buffers); err != nil {
		return 0, err
	}
	if f.native.Size() == 0 {
		return 0, nil
	}
	n, err := f.native.Peek(buffers, nbSamples)
	if err != nil {
		return 0, avutil.Newf("audiofifo", avutil.KindInvalidArgument, "peek: %v", err)
	}
	return n, nil
}

// Drain discards nbSamples samples without returning them.
func (f *Fifo) Drain(nbSamples int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return avutil.New("audiofifo", avutil.KindClosed, "drain on closed fifo")
	}
	if err := f.native.Drain(nbSamples); err != nil {
		return avutil.Newf("audiofifo", avutil.KindInvalidArgument, "drain: %v", err)
	}
	return nil
}

// Reset discards all buffered samples.
func (f *Fifo) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.native.Reset()
	}
}

// Realloc grows or shrinks the fifo's backing capacity.
func (f *Fifo) Realloc(capacity int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return avutil.New("audiofifo", avutil.KindClosed, "realloc on closed fifo")
	}
	if err := f.native.Realloc(capacity); err != nil {
		return avutil.Newf("audiofifo", avutil.KindInvalidArgument, "realloc: %v", err)
	}
	return nil
}

// Size returns the number of samples currently queued.
func (f *Fifo) Size() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return 0
	}
	return f.native.Size()
}

// Space returns the number of samples that can be written before the
// fifo must reallocate.
func (f *Fifo) Space() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return 0
	}
	return f.native.Space()
}

// Close releases native resources. Idempotent.
func (f *Fifo) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	if f.native != nil {
		f.native.Free()
		f.native = nil
	}
	return nil
}
