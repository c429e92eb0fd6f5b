package gpu

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// DetectorConfig carries everything BuildPipelines and Detect need, the
// internal/gpu mirror of the root package's Options (translated once at
// construction so this package stays independent of its parent).
type DetectorConfig struct {
	Layout              Layout
	QuantizeDescriptors bool
	ContrastThreshold   float32
	EdgeThreshold       float32
	DebugHistograms     bool
}

// descriptorRecordSize returns the per-keypoint descriptor byte size for
// cfg's descriptor mode.
func (cfg DetectorConfig) descriptorRecordSize() uint64 {
	if cfg.QuantizeDescriptors {
		return QuantizedDescriptorSize
	}
	return FloatDescriptorSize
}

// Detector owns every GPU resource a Detect call touches across its
// lifetime: compiled pipelines, the kernel cache, pyramid textures, and the
// fixed-size keypoint/descriptor/dispatch buffers reused call to call.
type Detector struct {
	device hal.Device
	queue  hal.Queue
	cfg    DetectorConfig
	logger *slog.Logger

	pipelines *Pipelines
	kernels   *KernelCache
	pyramid   *PyramidCache

	keypoints    hal.Buffer
	dispatchArgs hal.Buffer
	descriptors  hal.Buffer
	debugHist    hal.Buffer

	querySet         hal.QuerySet
	timestampResolve hal.Buffer
	timestampPeriod  float32

	inputTex      hal.Texture
	inputView     hal.TextureView
	inputW, inputH uint32

	lastCount   uint32
	lastRecords []KeypointRecord
}

// NewDetector compiles every pipeline for cfg.Layout/cfg.QuantizeDescriptors
// and allocates the fixed-size buffers the detect pass sequence reuses.
func NewDetector(device hal.Device, queue hal.Queue, cfg DetectorConfig, logger *slog.Logger) (*Detector, error) {
	if logger == nil {
		logger = slog.Default()
	}
	pipelines, err := BuildPipelines(device, cfg.Layout, cfg.QuantizeDescriptors)
	if err != nil {
		return nil, fmt.Errorf("build pipelines: %w", err)
	}

	d := &Detector{
		device:    device,
		queue:     queue,
		cfg:       cfg,
		logger:    logger,
		pipelines: pipelines,
		kernels:   NewKernelCache(device),
		pyramid:   NewPyramidCache(device, cfg.Layout),
	}

	keypointBufSize := uint64(KeypointHeaderSize) + uint64(MaxKeypoints)*KeypointRecordSize
	d.keypoints, err = CreateBuffer(device, BufferDescriptor{
		Label: "sift_keypoints",
		Size:  keypointBufSize,
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopySrc | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("create keypoint buffer: %w", err)
	}

	d.dispatchArgs, err = CreateBuffer(device, BufferDescriptor{
		Label: "sift_dispatch_args",
		Size:  IndirectDispatchSize,
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopySrc | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("create dispatch-args buffer: %w", err)
	}

	d.descriptors, err = CreateBuffer(device, BufferDescriptor{
		Label: "sift_descriptors",
		Size:  uint64(MaxKeypoints) * cfg.descriptorRecordSize(),
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopySrc,
	})
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("create descriptor buffer: %w", err)
	}

	if cfg.DebugHistograms {
		d.debugHist, err = CreateBuffer(device, BufferDescriptor{
			Label: "sift_debug_hist",
			Size:  uint64(MaxKeypoints) * DebugHistogramBinCount * 4,
			Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopySrc,
		})
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("create debug histogram buffer: %w", err)
		}
	} else {
		// A zero-size buffer so the orientation shader's
		// arrayLength(&debug_hist) > 0u gate reads false. CreateBuffer
		// rejects size 0, so this one bypasses it deliberately.
		d.debugHist, err = device.CreateBuffer(&hal.BufferDescriptor{
			Label: "sift_debug_hist_disabled",
			Size:  0,
			Usage: gputypes.BufferUsageStorage,
		})
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("create disabled debug histogram buffer: %w", err)
		}
	}

	querySet, period, err := createTimestampQuerySet(device, queue)
	if err == nil {
		d.querySet = querySet
		d.timestampPeriod = period
		d.timestampResolve, err = CreateBuffer(device, BufferDescriptor{
			Label: "sift_timestamp_resolve",
			Size:  TimestampCount * 8,
			Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopySrc | gputypes.BufferUsageQueryResolve,
		})
		if err != nil {
			d.querySet = nil
		}
	}
	// Timestamp queries are an optional profiling feature; any failure to
	// acquire a query set just leaves Profiling() zeroed.

	return d, nil
}

// createTimestampQuerySet attempts to allocate a TimestampCount-slot query
// set. Returns a nil set and no error on any unsupported-feature failure;
// the caller treats that as silent degradation, not a construction error.
func createTimestampQuerySet(device hal.Device, queue hal.Queue) (hal.QuerySet, float32, error) {
	qs, err := device.CreateQuerySet(&hal.QuerySetDescriptor{
		Label: "sift_timestamps",
		Type:  hal.QueryTypeTimestamp,
		Count: TimestampCount,
	})
	if err != nil {
		return nil, 0, err
	}
	return qs, queue.GetTimestampPeriod(), nil
}

// Close destroys every GPU resource the detector owns. Safe on a
// partially-constructed Detector left behind by a failed NewDetector call.
func (d *Detector) Close() {
	if d == nil {
		return
	}
	d.destroyInputTexture()
	if d.pyramid != nil {
		d.pyramid.Close()
	}
	if d.kernels != nil {
		d.kernels.Close()
	}
	if d.pipelines != nil {
		d.pipelines.Close()
	}
	for _, buf := range []hal.Buffer{d.keypoints, d.dispatchArgs, d.descriptors, d.debugHist, d.timestampResolve} {
		if buf != nil {
			d.device.DestroyBuffer(buf)
		}
	}
	if d.querySet != nil {
		d.device.DestroyQuerySet(d.querySet)
	}
}

func (d *Detector) destroyInputTexture() {
	if d.inputView != nil {
		d.device.DestroyTextureView(d.inputView)
		d.inputView = nil
	}
	if d.inputTex != nil {
		d.device.DestroyTexture(d.inputTex)
		d.inputTex = nil
	}
}

// ensureInputTexture (re)creates the RGBA8 input texture when dimensions
// change, mirroring the pyramid cache's own rebuild-on-mismatch rule.
func (d *Detector) ensureInputTexture(width, height uint32) error {
	if d.inputTex != nil && d.inputW == width && d.inputH == height {
		return nil
	}
	d.destroyInputTexture()
	tex, err := d.device.CreateTexture(&hal.TextureDescriptor{
		Label:         "sift_input",
		Size:          hal.Extent3D{Width: width, Height: height, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatRGBA8Unorm,
		Usage:         gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create input texture: %w", err)
	}
	view, err := d.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         "sift_input_view",
		Format:        gputypes.TextureFormatRGBA8Unorm,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		d.device.DestroyTexture(tex)
		return fmt.Errorf("create input texture view: %w", err)
	}
	d.inputTex, d.inputView = tex, view
	d.inputW, d.inputH = width, height
	return nil
}

// Detect runs one full pass sequence: upload, grayscale, Gaussian/DoG
// pyramids, extrema, dispatch preparation, orientation, descriptor. It
// reads back the keypoint records (see Keypoints) and leaves the descriptor
// buffer populated for subsequent ReadDescriptors calls.
func (d *Detector) Detect(ctx context.Context, rgba []byte, width, height uint32) error {
	if err := d.ensureInputTexture(width, height); err != nil {
		return err
	}
	if err := d.pyramid.Ensure(width, height); err != nil {
		return fmt.Errorf("ensure pyramid: %w", err)
	}

	d.queue.WriteTexture(
		&hal.ImageCopyTexture{Texture: d.inputTex, MipLevel: 0},
		rgba,
		&hal.ImageDataLayout{Offset: 0, BytesPerRow: width * 4, RowsPerImage: height},
		&hal.Extent3D{Width: width, Height: height, DepthOrArrayLayers: 1},
	)

	encoder, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "sift_detect"})
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("sift_detect"); err != nil {
		return fmt.Errorf("begin encoding: %w", err)
	}

	// Reset the keypoint counter: the 16-byte header (counter plus padding)
	// of the keypoint buffer. ClearBuffer keeps this independent of the
	// record payload.
	encoder.ClearBuffer(d.keypoints, 0, KeypointHeaderSize)

	d.writeTimestamp(encoder, 0)
	if err := d.runGrayscale(encoder); err != nil {
		return err
	}
	d.writeTimestamp(encoder, 1)
	if err := d.runPyramids(encoder); err != nil {
		return err
	}
	d.writeTimestamp(encoder, 2)
	if err := d.runExtrema(encoder); err != nil {
		return err
	}
	d.writeTimestamp(encoder, 3)
	if err := d.runPrepareDispatch(encoder); err != nil {
		return err
	}
	if err := d.runOrientation(encoder); err != nil {
		return err
	}
	d.writeTimestamp(encoder, 4)
	if err := d.runDescriptor(encoder); err != nil {
		return err
	}
	d.writeTimestamp(encoder, 5)
	d.writeTimestamp(encoder, 6)

	if d.querySet != nil {
		encoder.ResolveQuerySet(d.querySet, 0, TimestampCount, d.timestampResolve, 0)
	}

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("end encoding: %w", err)
	}
	defer d.device.FreeCommandBuffer(cmdBuf)

	fence, err := d.device.CreateFence()
	if err != nil {
		return fmt.Errorf("create fence: %w", err)
	}
	defer d.device.DestroyFence(fence)
	if err := d.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	if ok, err := d.device.Wait(fence, 1, fenceWaitTimeout); err != nil || !ok {
		return fmt.Errorf("%w: detect pass did not complete", ErrDeviceLost)
	}

	count, err := ReadKeypointCount(ctx, d.device, d.queue, d.keypoints)
	if err != nil {
		return fmt.Errorf("read keypoint count: %w", err)
	}
	records, err := ReadKeypointRecords(ctx, d.device, d.queue, d.keypoints, count)
	if err != nil {
		return fmt.Errorf("read keypoint records: %w", err)
	}
	d.lastCount = count
	d.lastRecords = records
	d.logger.Debug("sift detect complete", "keypoints", count, "width", width, "height", height)
	return nil
}

func (d *Detector) writeTimestamp(encoder hal.CommandEncoder, index uint32) {
	if d.querySet == nil {
		return
	}
	encoder.WriteTimestamp(d.querySet, index)
}

func (d *Detector) runGrayscale(encoder hal.CommandEncoder) error {
	bg, err := makeBindGroup(d.device, "sift_grayscale_bg", d.pipelines.Grayscale.BindLayout, []gputypes.BindGroupEntry{
		texBinding(0, d.inputView),
		texBinding(1, d.pyramid.Gaussian(0, 0).view),
	})
	if err != nil {
		return fmt.Errorf("grayscale bind group: %w", err)
	}
	w, h := d.pyramid.OctaveSize(0)
	dispatchImage(encoder, d.pipelines.Grayscale, bg, w, h)
	return nil
}

// runPyramids walks every octave building the Gaussian stack (blur or
// downsample per §4.2) followed by the DoG stack for that octave.
func (d *Detector) runPyramids(encoder hal.CommandEncoder) error {
	for o := 0; o < NumOctaves; o++ {
		w, h := d.pyramid.OctaveSize(o)
		for s := 0; s < ScalesPerOctave+3; s++ {
			if o == 0 && s == 0 {
				continue // filled by runGrayscale
			}
			if o > 0 && s == 0 {
				if err := d.runDownsample(encoder, o); err != nil {
					return err
				}
				continue
			}
			sigmaInc := incrementalSigma(s)
			radius := KernelRadius(sigmaInc)
			weights, err := d.kernels.Get(d.queue, sigmaInc, radius)
			if err != nil {
				return fmt.Errorf("kernel weights o=%d s=%d: %w", o, s, err)
			}
			if err := d.runBlur(encoder, o, s, radius, weights, w, h); err != nil {
				return err
			}
		}
		for s := 0; s < ScalesPerOctave+2; s++ {
			if err := d.runDoG(encoder, o, s, w, h); err != nil {
				return err
			}
		}
	}
	return nil
}

// incrementalSigma returns sigma_inc = sqrt(sigma(s)^2 - sigma(s-1)^2) for
// s>=1, and sigmaBase for s==0 (the base-octave initial blur).
func incrementalSigma(s int) float32 {
	if s == 0 {
		return SigmaBase
	}
	cur := Sigma(s)
	prev := Sigma(s - 1)
	diff := cur*cur - prev*prev
	if diff < 0 {
		diff = 0
	}
	return sqrt32(diff)
}

func (d *Detector) runBlur(encoder hal.CommandEncoder, o, s, radius int, weights hal.Buffer, w, h uint32) error {
	params := PutUniformU32x4(w, h, uint32(radius), 0)
	uniformBuf, err := d.uploadUniform("sift_blur_params", params)
	if err != nil {
		return err
	}
	defer d.device.DestroyBuffer(uniformBuf)

	src := d.pyramid.Gaussian(o, s-1)
	dst := d.pyramid.Gaussian(o, s)
	scratch := d.pyramid.Scratch()

	bgH, err := makeBindGroup(d.device, "sift_blur_h_bg", d.pipelines.BlurHorizontal.BindLayout, []gputypes.BindGroupEntry{
		bufBinding(0, uniformBuf, 16),
		bufBinding(1, weights, uint64(2*radius+1)*4),
		texBinding(2, src.view),
		texBinding(3, scratch.view),
	})
	if err != nil {
		return fmt.Errorf("blur_h bind group: %w", err)
	}
	dispatchImage(encoder, d.pipelines.BlurHorizontal, bgH, w, h)

	bgV, err := makeBindGroup(d.device, "sift_blur_v_bg", d.pipelines.BlurVertical.BindLayout, []gputypes.BindGroupEntry{
		bufBinding(0, uniformBuf, 16),
		bufBinding(1, weights, uint64(2*radius+1)*4),
		texBinding(2, scratch.view),
		texBinding(3, dst.view),
	})
	if err != nil {
		return fmt.Errorf("blur_v bind group: %w", err)
	}
	dispatchImage(encoder, d.pipelines.BlurVertical, bgV, w, h)
	return nil
}

func (d *Detector) runDownsample(encoder hal.CommandEncoder, o int) error {
	srcW, srcH := d.pyramid.OctaveSize(o - 1)
	dstW, dstH := d.pyramid.OctaveSize(o)
	params := PutUniformU32x4(srcW, srcH, dstW, dstH)
	uniformBuf, err := d.uploadUniform("sift_downsample_params", params)
	if err != nil {
		return err
	}
	defer d.device.DestroyBuffer(uniformBuf)

	src := d.pyramid.Gaussian(o-1, ScalesPerOctave)
	dst := d.pyramid.Gaussian(o, 0)
	bg, err := makeBindGroup(d.device, "sift_downsample_bg", d.pipelines.Downsample.BindLayout, []gputypes.BindGroupEntry{
		bufBinding(0, uniformBuf, 16),
		texBinding(1, src.view),
		texBinding(2, dst.view),
	})
	if err != nil {
		return fmt.Errorf("downsample bind group: %w", err)
	}
	dispatchImage(encoder, d.pipelines.Downsample, bg, dstW, dstH)
	return nil
}

func (d *Detector) runDoG(encoder hal.CommandEncoder, o, s int, w, h uint32) error {
	params := PutUniformU32x4(w, h, 0, 0)
	uniformBuf, err := d.uploadUniform("sift_dog_params", params)
	if err != nil {
		return err
	}
	defer d.device.DestroyBuffer(uniformBuf)

	lo := d.pyramid.Gaussian(o, s)
	hi := d.pyramid.Gaussian(o, s+1)
	dst := d.pyramid.DoG(o, s)
	bg, err := makeBindGroup(d.device, "sift_dog_bg", d.pipelines.DoG.BindLayout, []gputypes.BindGroupEntry{
		bufBinding(0, uniformBuf, 16),
		texBinding(1, lo.view),
		texBinding(2, hi.view),
		texBinding(3, dst.view),
	})
	if err != nil {
		return fmt.Errorf("dog bind group: %w", err)
	}
	dispatchImage(encoder, d.pipelines.DoG, bg, w, h)
	return nil
}

func (d *Detector) runExtrema(encoder hal.CommandEncoder) error {
	for o := 0; o < NumOctaves; o++ {
		w, h := d.pyramid.OctaveSize(o)
		for s := 1; s <= ScalesPerOctave; s++ {
			params := PutExtremaParams(w, h, uint32(o), uint32(s), d.cfg.ContrastThreshold, d.cfg.EdgeThreshold)
			uniformBuf, err := d.uploadUniform("sift_extrema_params", params)
			if err != nil {
				return err
			}
			defer d.device.DestroyBuffer(uniformBuf)

			lo := d.pyramid.DoG(o, s-1)
			mid := d.pyramid.DoG(o, s)
			hi := d.pyramid.DoG(o, s+1)
			bg, err := makeBindGroup(d.device, "sift_extrema_bg", d.pipelines.Extrema.BindLayout, []gputypes.BindGroupEntry{
				bufBinding(0, uniformBuf, 24),
				texBinding(1, lo.view),
				texBinding(2, mid.view),
				texBinding(3, hi.view),
				bufBinding(4, d.keypoints, uint64(KeypointHeaderSize)+uint64(MaxKeypoints)*KeypointRecordSize),
			})
			if err != nil {
				return fmt.Errorf("extrema bind group o=%d s=%d: %w", o, s, err)
			}
			dispatchImage(encoder, d.pipelines.Extrema, bg, w, h)
		}
	}
	return nil
}

func (d *Detector) runPrepareDispatch(encoder hal.CommandEncoder) error {
	bg, err := makeBindGroup(d.device, "sift_dispatch_prepare_bg", d.pipelines.PrepareDispatch.BindLayout, []gputypes.BindGroupEntry{
		bufBinding(0, d.keypoints, uint64(KeypointHeaderSize)+uint64(MaxKeypoints)*KeypointRecordSize),
		bufBinding(1, d.dispatchArgs, IndirectDispatchSize),
	})
	if err != nil {
		return fmt.Errorf("dispatch-prepare bind group: %w", err)
	}
	pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: "sift_dispatch_prepare_pass"})
	pass.SetPipeline(d.pipelines.PrepareDispatch.Pipeline)
	pass.SetBindGroup(0, bg, nil)
	pass.Dispatch(1, 1, 1)
	pass.End()
	return nil
}

func (d *Detector) runOrientation(encoder hal.CommandEncoder) error {
	for o := 0; o < NumOctaves; o++ {
		w, h := d.pyramid.OctaveSize(o)
		params := PutOrientationParams(w, h, uint32(o))
		uniformBuf, err := d.uploadUniform("sift_orientation_params", params)
		if err != nil {
			return err
		}
		defer d.device.DestroyBuffer(uniformBuf)

		bg, err := makeBindGroup(d.device, "sift_orientation_bg", d.pipelines.Orientation.BindLayout, []gputypes.BindGroupEntry{
			bufBinding(0, uniformBuf, 12),
			bufBinding(1, d.keypoints, uint64(KeypointHeaderSize)+uint64(MaxKeypoints)*KeypointRecordSize),
			texBinding(2, d.pyramid.Gaussian(o, 1).view),
			texBinding(3, d.pyramid.Gaussian(o, 2).view),
			texBinding(4, d.pyramid.Gaussian(o, 3).view),
			bufBinding(5, d.debugHist, debugHistBindingSize(d.cfg.DebugHistograms)),
		})
		if err != nil {
			return fmt.Errorf("orientation bind group o=%d: %w", o, err)
		}
		pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: "sift_orientation_pass"})
		pass.SetPipeline(d.pipelines.Orientation.Pipeline)
		pass.SetBindGroup(0, bg, nil)
		pass.DispatchIndirect(d.dispatchArgs, 0)
		pass.End()
	}
	return nil
}

func (d *Detector) runDescriptor(encoder hal.CommandEncoder) error {
	for o := 0; o < NumOctaves; o++ {
		w, h := d.pyramid.OctaveSize(o)
		params := PutUniformU32x4(w, h, uint32(o), 0)
		uniformBuf, err := d.uploadUniform("sift_descriptor_params", params)
		if err != nil {
			return err
		}
		defer d.device.DestroyBuffer(uniformBuf)

		bg, err := makeBindGroup(d.device, "sift_descriptor_bg", d.pipelines.Descriptor.BindLayout, []gputypes.BindGroupEntry{
			bufBinding(0, uniformBuf, 16),
			bufBinding(1, d.keypoints, uint64(KeypointHeaderSize)+uint64(MaxKeypoints)*KeypointRecordSize),
			texBinding(2, d.pyramid.Gaussian(o, 1).view),
			texBinding(3, d.pyramid.Gaussian(o, 2).view),
			texBinding(4, d.pyramid.Gaussian(o, 3).view),
			bufBinding(5, d.descriptors, uint64(MaxKeypoints)*d.cfg.descriptorRecordSize()),
		})
		if err != nil {
			return fmt.Errorf("descriptor bind group o=%d: %w", o, err)
		}
		pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: "sift_descriptor_pass"})
		pass.SetPipeline(d.pipelines.Descriptor.Pipeline)
		pass.SetBindGroup(0, bg, nil)
		pass.DispatchIndirect(d.dispatchArgs, 12)
		pass.End()
	}
	return nil
}

// debugHistBindingSize returns the bind size for the debug histogram
// buffer: its full allocated size when enabled, 0 when it is the disabled
// dummy buffer (which itself has size 0).
func debugHistBindingSize(enabled bool) uint64 {
	if enabled {
		return uint64(MaxKeypoints) * DebugHistogramBinCount * 4
	}
	return 0
}

// uploadUniform creates a uniform buffer and writes data into it via the
// queue, the same create-then-WriteBuffer shape the kernel cache uses.
func (d *Detector) uploadUniform(label string, data []byte) (hal.Buffer, error) {
	buf, err := CreateBuffer(d.device, BufferDescriptor{
		Label: label,
		Size:  uint64(len(data)),
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", label, err)
	}
	d.queue.WriteBuffer(buf, 0, data)
	return buf, nil
}

// dispatchImage runs a 16x16-tiled image-space compute pass, the tiling the
// scale-space stages agree on.
func dispatchImage(encoder hal.CommandEncoder, stage *Stage, bg hal.BindGroup, width, height uint32) {
	pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: stage.Label + "_pass"})
	pass.SetPipeline(stage.Pipeline)
	pass.SetBindGroup(0, bg, nil)
	pass.Dispatch((width+15)/16, (height+15)/16, 1)
	pass.End()
}

// Keypoints returns the host-side records from the most recent Detect call.
func (d *Detector) Keypoints() []KeypointRecord {
	return d.lastRecords
}

// KeypointCount returns the saturating count from the most recent Detect
// call.
func (d *Detector) KeypointCount() uint32 {
	return d.lastCount
}

// ReadDescriptors reads back descriptors for the most recent Detect call's
// keypoint count.
func (d *Detector) ReadDescriptors(ctx context.Context) ([]float32, error) {
	return ReadDescriptors(ctx, d.device, d.queue, d.descriptors, d.lastCount, d.cfg.QuantizeDescriptors)
}

// ReadDebugHistograms reads back per-keypoint orientation histograms.
// Returns an error if the detector was not constructed with
// DetectorConfig.DebugHistograms set.
func (d *Detector) ReadDebugHistograms(ctx context.Context) ([][DebugHistogramBinCount]float32, error) {
	if !d.cfg.DebugHistograms {
		return nil, fmt.Errorf("debug histograms not enabled for this detector")
	}
	return ReadDebugHistograms(ctx, d.device, d.queue, d.debugHist, d.lastCount)
}

// ProfilingTicks reports the raw device ticks captured at each of
// TimestampCount stage boundaries during the most recent Detect call, and
// the device's timestamp period in nanoseconds. All-zero ticks with a
// zero period means timestamp queries are unsupported.
func (d *Detector) ProfilingTicks(ctx context.Context) ([TimestampCount]uint64, float32) {
	if d.querySet == nil {
		return [TimestampCount]uint64{}, 0
	}
	ticks := ReadTimestamps(ctx, d.device, d.queue, d.timestampResolve, d.timestampPeriod)
	return ticks, d.timestampPeriod
}

func sqrt32(v float32) float32 {
	if v <= 0 {
		return 0
	}
	return float32(math.Sqrt(float64(v)))
}
