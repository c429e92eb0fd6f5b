package sift

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/sift/internal/gpu"
)

// Detector owns every GPU resource a Detect call touches across its
// lifetime: compiled pipelines, the kernel cache, pyramid textures, and the
// fixed-size keypoint/descriptor/dispatch buffers reused call to call.
// A Detector is not safe for concurrent Detect calls; one call at a time
// per instance is enforced by an internal mutex.
type Detector struct {
	mu   sync.Mutex
	impl *gpu.Detector
	opts Options
	log  *slog.Logger
}

// NewDetector compiles every pipeline opts.Layout/opts.QuantizeDescriptors
// requires and allocates the fixed-size buffers the detect pass sequence
// reuses, on the given device/queue.
func NewDetector(device hal.Device, queue hal.Queue, opts Options) (*Detector, error) {
	opts = opts.normalized()
	logger := Logger()
	impl, err := gpu.NewDetector(device, queue, gpu.DetectorConfig{
		Layout:              gpuLayout(opts.Layout),
		QuantizeDescriptors: opts.QuantizeDescriptors,
		ContrastThreshold:   opts.ContrastThreshold,
		EdgeThreshold:       opts.EdgeThreshold,
		DebugHistograms:     opts.DebugHistograms,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("sift: new detector: %w", err)
	}
	return &Detector{impl: impl, opts: opts, log: logger}, nil
}

// NewDetectorFromContext builds a Detector from a shared gpucontext.Context
// (or anything satisfying gpucontext.DeviceProvider), for callers that
// already hold one because they share a device with another gogpu consumer
// in the same process.
func NewDetectorFromContext(provider gpucontext.DeviceProvider, opts Options) (*Detector, error) {
	device, queue, err := deviceAndQueueFrom(provider)
	if err != nil {
		return nil, fmt.Errorf("sift: new detector from context: %w", err)
	}
	return NewDetector(device, queue, opts)
}

// deviceAndQueueFrom bridges a gpucontext.DeviceProvider's Device()/Queue()
// to the hal.Device/hal.Queue interfaces this package's internals are built
// on. The provider's concrete handles are the same underlying backend
// objects gogpu's own HAL implementations vend, so the assertion succeeds
// for every provider gogpu ships; a provider backed by something else
// fails loudly here rather than deep inside a pipeline call.
func deviceAndQueueFrom(provider gpucontext.DeviceProvider) (hal.Device, hal.Queue, error) {
	device, ok := any(provider.Device()).(hal.Device)
	if !ok {
		return nil, nil, fmt.Errorf("%w: device provider's Device() does not implement hal.Device", ErrDeviceUnavailable)
	}
	queue, ok := any(provider.Queue()).(hal.Queue)
	if !ok {
		return nil, nil, fmt.Errorf("%w: device provider's Queue() does not implement hal.Queue", ErrDeviceUnavailable)
	}
	return device, queue, nil
}

// gpuLayout translates the root package's Layout into internal/gpu's
// mirror type, keeping internal/gpu independent of its own parent package.
func gpuLayout(l Layout) gpu.Layout {
	if l == LayoutPacked {
		return gpu.LayoutPacked
	}
	return gpu.LayoutPerPixel
}

// Close destroys every GPU resource the detector owns.
func (d *Detector) Close() error {
	if d == nil {
		return nil
	}
	d.impl.Close()
	return nil
}

// Detect runs one full pass sequence: upload, grayscale, Gaussian/DoG
// pyramids, extrema, dispatch preparation, orientation, descriptor. It
// leaves the keypoint/descriptor buffers populated for subsequent
// Keypoints/ReadbackDescriptors calls. Only one Detect call may be in
// flight on a given Detector at a time; a second concurrent call returns
// ErrDetectInProgress rather than racing the shared buffers.
func (d *Detector) Detect(ctx context.Context, rgba []byte, width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("sift: detect: invalid dimensions %dx%d", width, height)
	}
	if len(rgba) < width*height*4 {
		return fmt.Errorf("sift: detect: rgba buffer too small for %dx%d", width, height)
	}

	if !d.mu.TryLock() {
		return ErrDetectInProgress
	}
	defer d.mu.Unlock()

	if err := d.impl.Detect(ctx, rgba, uint32(width), uint32(height)); err != nil {
		return fmt.Errorf("sift: detect: %w", err)
	}
	return nil
}

// Keypoints returns the host-side records from the most recent Detect
// call, converted from the internal GPU wire record.
func (d *Detector) Keypoints() []Keypoint {
	records := d.impl.Keypoints()
	out := make([]Keypoint, len(records))
	for i, r := range records {
		out[i] = Keypoint{
			X:           r.X,
			Y:           r.Y,
			Octave:      int32(r.Octave),
			ScaleIndex:  int32(r.ScaleIndex),
			Sigma:       r.Sigma,
			Orientation: r.Orientation,
		}
	}
	return out
}

// KeypointCount returns the saturating count from the most recent Detect
// call; equal to len(Keypoints()).
func (d *Detector) KeypointCount() int {
	return int(d.impl.KeypointCount())
}

// ReadbackDescriptors reads back descriptors for the most recent Detect
// call's keypoints as a flat []float32 of length KeypointCount()*128. In
// quantized mode each value is widened to [0,255]; this is a host-side
// readback convenience, not the on-GPU packed representation.
//
// Secondary-peak keypoints appended by orientation assignment (see
// Options and the design notes on indirect-dispatch sequencing) are
// reported by Keypoints but do not receive a populated descriptor slot:
// the descriptor dispatch is sized from the pre-orientation keypoint
// count, so any record appended after that point keeps whatever the
// descriptor buffer was last written (zero, on a freshly allocated
// buffer, or a stale value from a prior Detect call at the same slot).
func (d *Detector) ReadbackDescriptors(ctx context.Context) ([]float32, error) {
	descs, err := d.impl.ReadDescriptors(ctx)
	if err != nil {
		return nil, fmt.Errorf("sift: readback descriptors: %w", err)
	}
	return descs, nil
}

// ReadbackDebugHistograms reads back the per-keypoint 36-bin orientation
// histogram the orientation stage writes when Options.DebugHistograms is
// set. Returns ErrDebugHistogramsDisabled otherwise.
func (d *Detector) ReadbackDebugHistograms(ctx context.Context) ([][36]float32, error) {
	if !d.opts.DebugHistograms {
		return nil, ErrDebugHistogramsDisabled
	}
	hists, err := d.impl.ReadDebugHistograms(ctx)
	if err != nil {
		return nil, fmt.Errorf("sift: readback debug histograms: %w", err)
	}
	return hists, nil
}

// Profiling reports per-stage GPU timings in milliseconds from the most
// recent Detect call's timestamp queries, or all-zero if the device does
// not support them.
func (d *Detector) Profiling(ctx context.Context) Profiling {
	ticks, period := d.impl.ProfilingTicks(ctx)
	if period == 0 {
		return Profiling{}
	}
	ms := func(a, b uint64) float64 {
		return float64(b-a) * float64(period) / 1e6
	}
	return Profiling{
		GrayscaleMs:   ms(ticks[0], ticks[1]),
		PyramidsMs:    ms(ticks[1], ticks[2]),
		ExtremaMs:     ms(ticks[2], ticks[3]),
		OrientationMs: ms(ticks[3], ticks[4]),
		DescriptorMs:  ms(ticks[4], ticks[5]),
		TotalMs:       ms(ticks[0], ticks[6]),
	}
}
