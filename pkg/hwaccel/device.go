// Package hwaccel is the hardware device/frames-context façade spec.md §3
// and §4.3 describe: a thin, refcounted wrapper over
// astiav.HardwareDeviceContext and astiav.HardwareFramesContext that
// names the device types the spec enumerates and enforces the invariant
// that a hardware frame is invalid once its frames context is freed.
package hwaccel

import (
	"sync"

	"github.com/asticode/go-astiav"
	"github.com/chicogong/avpipeline/pkg/avutil"
)

// DeviceType names the accelerator families spec.md §3 lists.
type DeviceType int

const (
	DeviceTypeNone DeviceType = iota
	DeviceTypeVideoToolbox
	DeviceTypeCUDA
	DeviceTypeVAAPI
	DeviceTypeQSV
	DeviceTypeD3D11VA
)

func (t DeviceType) native() astiav.HardwareDeviceType {
	switch t {
	case DeviceTypeVideoToolbox:
		return astiav.HardwareDeviceTypeVideotoolbox
	case DeviceTypeCUDA:
		return astiav.HardwareDeviceTypeCuda
	case DeviceTypeVAAPI:
		return astiav.HardwareDeviceTypeVaapi
	case DeviceTypeQSV:
		return astiav.HardwareDeviceTypeQsv
	case DeviceTypeD3D11VA:
		return astiav.HardwareDeviceTypeD3D11Va
	default:
		return astiav.HardwareDeviceTypeNone
	}
}

// Device is a reference-counted handle to a GPU/accelerator session,
// shared between the decoder that creates it and any filter or encoder
// that consumes device frames from it (spec.md §3 ownership rule).
type Device struct {
	mu     sync.Mutex
	native *astiav.HardwareDeviceContext
	refs   int
	closed bool
}

// Open creates a hardware device context of the given type. name, when
// non-empty, selects a specific device (e.g. a VAAPI render node path).
func Open(t DeviceType, name string) (*Device, error) {
	hwctx, err := astiav.CreateHardwareDeviceContext(t.native(), name, nil, 0)
	if err != nil {
		return nil, avutil.Newf("hwaccel", avutil.KindHardwareUnavailable, "create device context: %v", err)
	}
	return &Device{native: hwctx, refs: 1}, nil
}

// Native exposes the wrapped context for decoder/encoder open calls that
// take it directly.
func (d *Device) Native() *astiav.HardwareDeviceContext { return d.native }

// Ref increments the refcount; call Close once for every Ref (and once
// for the Open that created it) to release the underlying context.
func (d *Device) Ref() *Device {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.refs++
	return d
}

// Close decrements the refcount, freeing the native context when it
// reaches zero. Double-close is a no-op per spec.md's ownership rules.
func (d *Device) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.refs--
	if d.refs > 0 {
		return
	}
	d.closed = true
	if d.native != nil {
		d.native.Free()
	}
}

// FramesPool is a pool of device-resident frames with a fixed hw/sw
// format and initial size (spec.md §3's HardwareFramesContext).
type FramesPool struct {
	native *astiav.HardwareFramesContext
	device *Device
}

// NewFramesPool allocates a frames pool bound to device. The pool takes a
// ref on device so it outlives the decoder/filter using it until Close.
func NewFramesPool(device *Device, hwFormat, swFormat astiav.PixelFormat, width, height, initialPoolSize int) (*FramesPool, error) {
	fc, err := device.native.AllocHardwareFramesContext()
	if err != nil {
		return nil, avutil.Newf("hwaccel", avutil.KindResourceExhausted, "alloc frames context: %v", err)
	}
	fc.SetPixelFormat(hwFormat)
	fc.SetSoftwarePixelFormat(swFormat)
	fc.SetWidth(width)
	fc.SetHeight(height)
	fc.SetInitialPoolSize(initialPoolSize)
	if err := fc.Initialize(); err != nil {
		return nil, avutil.Newf("hwaccel", avutil.KindResourceExhausted, "initialize frames context: %v", err)
	}
	return &FramesPool{native: fc, device: device.Ref()}, nil
}

// Native exposes the wrapped frames context.
func (p *FramesPool) Native() *astiav.HardwareFramesContext { return p.native }

// Close frees the frames context and releases the device ref. Any
// hardware frame still referencing this pool becomes invalid, per
// spec.md's containment invariant; callers must not use such frames
// afterward.
func (p *FramesPool) Close() {
	if p.native != nil {
		p.native.Free()
		p.native = nil
	}
	if p.device != nil {
		p.device.Close()
		p.device = nil
	}
}
