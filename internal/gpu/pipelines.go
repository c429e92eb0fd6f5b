package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Stage bundles the three objects every compute pass needs: the layout
// describing its bindings, the pipeline layout wrapping that bind layout,
// and the compiled pipeline itself. Every pass in this package is a single
// bind group at index 0, so a stage owns exactly one of each.
type Stage struct {
	Label      string
	BindLayout hal.BindGroupLayout
	PipeLayout hal.PipelineLayout
	Pipeline   hal.ComputePipeline
}

// destroy releases a stage's GPU objects in dependency order.
func (s *Stage) destroy(device hal.Device) {
	if s == nil {
		return
	}
	if s.Pipeline != nil {
		device.DestroyComputePipeline(s.Pipeline)
	}
	if s.PipeLayout != nil {
		device.DestroyPipelineLayout(s.PipeLayout)
	}
	if s.BindLayout != nil {
		device.DestroyBindGroupLayout(s.BindLayout)
	}
}

// bufEntry builds a buffer binding layout entry visible to compute shaders.
func bufEntry(binding uint32, kind gputypes.BufferBindingType) gputypes.BindGroupLayoutEntry {
	return gputypes.BindGroupLayoutEntry{
		Binding:    binding,
		Visibility: gputypes.ShaderStageCompute,
		Buffer:     &gputypes.BufferBindingLayout{Type: kind},
	}
}

// texEntry builds a sampled-texture binding layout entry.
func texEntry(binding uint32, sampleType gputypes.TextureSampleType) gputypes.BindGroupLayoutEntry {
	return gputypes.BindGroupLayoutEntry{
		Binding:    binding,
		Visibility: gputypes.ShaderStageCompute,
		Texture: &gputypes.TextureBindingLayout{
			SampleType:    sampleType,
			ViewDimension: gputypes.TextureViewDimension2D,
		},
	}
}

// storageTexEntry builds a storage-texture binding layout entry, used by the
// stage that writes a pyramid level rather than just sampling it.
func storageTexEntry(binding uint32, format gputypes.TextureFormat, access gputypes.StorageTextureAccess) gputypes.BindGroupLayoutEntry {
	return gputypes.BindGroupLayoutEntry{
		Binding:    binding,
		Visibility: gputypes.ShaderStageCompute,
		StorageTexture: &gputypes.StorageTextureBindingLayout{
			Access:        access,
			Format:        format,
			ViewDimension: gputypes.TextureViewDimension2D,
		},
	}
}

// buildStage compiles wgslSource, creates a bind group layout from entries,
// wraps it in a pipeline layout, and creates the compute pipeline, returning
// a Stage ready for BeginComputePass/SetPipeline/SetBindGroup/Dispatch.
func buildStage(device hal.Device, label, wgslSource string, entries []gputypes.BindGroupLayoutEntry) (*Stage, error) {
	module, err := CreateShaderModule(device, label+"_shader", wgslSource)
	if err != nil {
		return nil, err
	}
	defer device.DestroyShaderModule(module)

	bindLayout, err := device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   label + "_bind_layout",
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("create bind group layout %s: %w", label, err)
	}

	pipeLayout, err := device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            label + "_pipeline_layout",
		BindGroupLayouts: []hal.BindGroupLayout{bindLayout},
	})
	if err != nil {
		device.DestroyBindGroupLayout(bindLayout)
		return nil, fmt.Errorf("create pipeline layout %s: %w", label, err)
	}

	pipeline, err := device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:   label + "_pipeline",
		Layout:  pipeLayout,
		Compute: hal.ComputeState{Module: module, EntryPoint: "main"},
	})
	if err != nil {
		device.DestroyPipelineLayout(pipeLayout)
		device.DestroyBindGroupLayout(bindLayout)
		return nil, fmt.Errorf("create compute pipeline %s: %w", label, err)
	}

	return &Stage{Label: label, BindLayout: bindLayout, PipeLayout: pipeLayout, Pipeline: pipeline}, nil
}

// Pipelines holds every compute stage a Detector needs, compiled once at
// construction and reused across every Detect call. Matching stages live in
// MatcherPipelines.
type Pipelines struct {
	device hal.Device

	Grayscale       *Stage
	BlurHorizontal  *Stage
	BlurVertical    *Stage
	Downsample      *Stage
	DoG             *Stage
	Extrema         *Stage
	PrepareDispatch *Stage
	Orientation     *Stage
	Descriptor      *Stage
}

// Close destroys every stage. Safe to call on a partially built Pipelines
// left behind by a failed BuildPipelines call.
func (p *Pipelines) Close() {
	if p == nil {
		return
	}
	for _, s := range []*Stage{
		p.Grayscale, p.BlurHorizontal, p.BlurVertical, p.Downsample, p.DoG,
		p.Extrema, p.PrepareDispatch, p.Orientation, p.Descriptor,
	} {
		s.destroy(p.device)
	}
}

// pyramidFormat is the working texture format for a layout, used to build
// the storage-texture binding entries every scale-space stage shares.
func pyramidFormat(layout Layout) gputypes.TextureFormat {
	if layout == LayoutPacked {
		return gputypes.TextureFormatRGBA32Float
	}
	return gputypes.TextureFormatR32Float
}

func grayscaleWGSL(layout Layout) string {
	if layout == LayoutPacked {
		return packedGrayscaleWGSL
	}
	return perPixelGrayscaleWGSL
}

func blurWGSL(layout Layout) (h, v string) {
	if layout == LayoutPacked {
		return packedBlurHWGSL, packedBlurVWGSL
	}
	return perPixelBlurHWGSL, perPixelBlurVWGSL
}

func downsampleWGSL(layout Layout) string {
	if layout == LayoutPacked {
		return packedDownsampleWGSL
	}
	return perPixelDownsampleWGSL
}

func dogWGSL(layout Layout) string {
	if layout == LayoutPacked {
		return packedDoGWGSL
	}
	return perPixelDoGWGSL
}

func extremaWGSL(layout Layout) string {
	if layout == LayoutPacked {
		return packedExtremaWGSL
	}
	return perPixelExtremaWGSL
}

func orientationWGSL(layout Layout) string {
	if layout == LayoutPacked {
		return packedOrientationWGSL
	}
	return perPixelOrientationWGSL
}

func descriptorWGSL(layout Layout, quantized bool) string {
	if layout == LayoutPacked {
		if quantized {
			return packedDescriptorQuantizedWGSL
		}
		return packedDescriptorFloatWGSL
	}
	if quantized {
		return perPixelDescriptorQuantizedWGSL
	}
	return perPixelDescriptorFloatWGSL
}

// BuildPipelines compiles and links every stage a Detector needs for
// the given layout and descriptor mode.
func BuildPipelines(device hal.Device, layout Layout, quantizeDescriptors bool) (*Pipelines, error) {
	p := &Pipelines{device: device}
	texFormat := pyramidFormat(layout)

	var err error
	p.Grayscale, err = buildStage(device, "sift_grayscale", grayscaleWGSL(layout), []gputypes.BindGroupLayoutEntry{
		texEntry(0, gputypes.TextureSampleTypeFloat),
		storageTexEntry(1, texFormat, gputypes.StorageTextureAccessReadWrite),
	})
	if err != nil {
		p.Close()
		return nil, err
	}

	blurH, blurV := blurWGSL(layout)
	blurEntries := []gputypes.BindGroupLayoutEntry{
		bufEntry(0, gputypes.BufferBindingTypeUniform),
		bufEntry(1, gputypes.BufferBindingTypeReadOnlyStorage),
		storageTexEntry(2, texFormat, gputypes.StorageTextureAccessReadWrite),
		storageTexEntry(3, texFormat, gputypes.StorageTextureAccessReadWrite),
	}
	p.BlurHorizontal, err = buildStage(device, "sift_blur_h", blurH, blurEntries)
	if err != nil {
		p.Close()
		return nil, err
	}
	p.BlurVertical, err = buildStage(device, "sift_blur_v", blurV, blurEntries)
	if err != nil {
		p.Close()
		return nil, err
	}

	p.Downsample, err = buildStage(device, "sift_downsample", downsampleWGSL(layout), []gputypes.BindGroupLayoutEntry{
		bufEntry(0, gputypes.BufferBindingTypeUniform),
		storageTexEntry(1, texFormat, gputypes.StorageTextureAccessReadWrite),
		storageTexEntry(2, texFormat, gputypes.StorageTextureAccessReadWrite),
	})
	if err != nil {
		p.Close()
		return nil, err
	}

	p.DoG, err = buildStage(device, "sift_dog", dogWGSL(layout), []gputypes.BindGroupLayoutEntry{
		bufEntry(0, gputypes.BufferBindingTypeUniform),
		storageTexEntry(1, texFormat, gputypes.StorageTextureAccessReadWrite),
		storageTexEntry(2, texFormat, gputypes.StorageTextureAccessReadWrite),
		storageTexEntry(3, texFormat, gputypes.StorageTextureAccessReadWrite),
	})
	if err != nil {
		p.Close()
		return nil, err
	}

	p.Extrema, err = buildStage(device, "sift_extrema", extremaWGSL(layout), []gputypes.BindGroupLayoutEntry{
		bufEntry(0, gputypes.BufferBindingTypeUniform),
		storageTexEntry(1, texFormat, gputypes.StorageTextureAccessReadWrite),
		storageTexEntry(2, texFormat, gputypes.StorageTextureAccessReadWrite),
		storageTexEntry(3, texFormat, gputypes.StorageTextureAccessReadWrite),
		bufEntry(4, gputypes.BufferBindingTypeStorage),
	})
	if err != nil {
		p.Close()
		return nil, err
	}

	p.PrepareDispatch, err = buildStage(device, "sift_dispatch_prepare", dispatchPrepareWGSL, []gputypes.BindGroupLayoutEntry{
		bufEntry(0, gputypes.BufferBindingTypeStorage),
		bufEntry(1, gputypes.BufferBindingTypeStorage),
	})
	if err != nil {
		p.Close()
		return nil, err
	}

	p.Orientation, err = buildStage(device, "sift_orientation", orientationWGSL(layout), []gputypes.BindGroupLayoutEntry{
		bufEntry(0, gputypes.BufferBindingTypeUniform),
		bufEntry(1, gputypes.BufferBindingTypeStorage),
		storageTexEntry(2, texFormat, gputypes.StorageTextureAccessReadWrite),
		storageTexEntry(3, texFormat, gputypes.StorageTextureAccessReadWrite),
		storageTexEntry(4, texFormat, gputypes.StorageTextureAccessReadWrite),
		bufEntry(5, gputypes.BufferBindingTypeStorage),
	})
	if err != nil {
		p.Close()
		return nil, err
	}

	p.Descriptor, err = buildStage(device, "sift_descriptor", descriptorWGSL(layout, quantizeDescriptors), []gputypes.BindGroupLayoutEntry{
		bufEntry(0, gputypes.BufferBindingTypeUniform),
		bufEntry(1, gputypes.BufferBindingTypeReadOnlyStorage),
		storageTexEntry(2, texFormat, gputypes.StorageTextureAccessReadWrite),
		storageTexEntry(3, texFormat, gputypes.StorageTextureAccessReadWrite),
		storageTexEntry(4, texFormat, gputypes.StorageTextureAccessReadWrite),
		bufEntry(5, gputypes.BufferBindingTypeStorage),
	})
	if err != nil {
		p.Close()
		return nil, err
	}

	return p, nil
}
