package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// pyramidUsage covers every way a Gaussian/DoG level is touched: sampled by
// the blur/DoG/extrema/orientation/descriptor shaders, written as a storage
// image by the level that produces it, and read back for debugging.
const pyramidUsage = gputypes.TextureUsageStorageBinding |
	gputypes.TextureUsageTextureBinding |
	gputypes.TextureUsageCopySrc |
	gputypes.TextureUsageCopyDst

// level holds one texture and the view shaders bind it through.
type level struct {
	texture hal.Texture
	view    hal.TextureView
}

// octaveLevels is one octave's Gaussian and DoG stacks. Gaussian has
// ScalesPerOctave+3 levels, DoG has ScalesPerOctave+2, matching the
// overlap the scale-space builder needs to find extrema at every scale
// within the octave.
type octaveLevels struct {
	width, height uint32
	gaussian      []level
	dog           []level
}

// PyramidCache is a lazily (re)built set of per-octave textures keyed on the
// last seen input dimensions. Rebuilding on every resize is wasteful but
// correct; SIFT callers detect on a fixed image size in practice, so the
// steady-state cost is one build per Detector.
type PyramidCache struct {
	device hal.Device
	layout Layout

	width, height uint32
	valid         bool

	base    level
	scratch level
	octaves []octaveLevels
}

// NewPyramidCache creates an empty cache. Call Ensure before first use.
func NewPyramidCache(device hal.Device, layout Layout) *PyramidCache {
	return &PyramidCache{device: device, layout: layout}
}

// Ensure rebuilds every texture in the cache if it is not already valid for
// (width, height), per the cache invariant: valid iff the stored dimensions
// equal the current input.
func (c *PyramidCache) Ensure(width, height uint32) error {
	if c.valid && c.width == width && c.height == height {
		return nil
	}
	c.destroy()

	base, err := c.createLevel("sift_base", width, height, c.sourceFormat())
	if err != nil {
		return fmt.Errorf("create base texture: %w", err)
	}
	c.base = base

	scratch, err := c.createLevel("sift_scratch", width, height, c.workingFormat())
	if err != nil {
		return fmt.Errorf("create scratch texture: %w", err)
	}
	c.scratch = scratch

	c.width, c.height = width, height
	octW, octH := c.baseOctaveDimensions()
	octaves := make([]octaveLevels, NumOctaves)
	for o := 0; o < NumOctaves; o++ {
		ow, oh := octW, octH
		if o > 0 {
			ow, oh = max32(octW/2, 1), max32(octH/2, 1)
		}
		oct := octaveLevels{width: ow, height: oh}
		oct.gaussian = make([]level, ScalesPerOctave+3)
		for s := range oct.gaussian {
			lv, err := c.createLevel(fmt.Sprintf("sift_gauss_o%d_s%d", o, s), ow, oh, c.workingFormat())
			if err != nil {
				c.destroy()
				return fmt.Errorf("create gaussian level o=%d s=%d: %w", o, s, err)
			}
			oct.gaussian[s] = lv
		}
		oct.dog = make([]level, ScalesPerOctave+2)
		for s := range oct.dog {
			lv, err := c.createLevel(fmt.Sprintf("sift_dog_o%d_s%d", o, s), ow, oh, c.workingFormat())
			if err != nil {
				c.destroy()
				return fmt.Errorf("create dog level o=%d s=%d: %w", o, s, err)
			}
			oct.dog[s] = lv
		}
		octaves[o] = oct
		octW, octH = ow, oh
	}
	c.octaves = octaves
	c.width, c.height = width, height
	c.valid = true
	return nil
}

// octaveDimensions returns the working dimensions for an octave given the
// previous octave's base dimensions: halved for LayoutPerPixel, since each
// octave starts from the prior octave's downsampled image; for LayoutPacked
// the 2x2-texel packing already halves spatial extent once going in, so
// octave-to-octave the halving still applies to texture dimensions, just at
// half the per-pixel resolution.
func (c *PyramidCache) octaveDimensions(prevW, prevH uint32) (uint32, uint32) {
	if prevW == c.width && prevH == c.height {
		w, h := c.baseOctaveDimensions()
		return w, h
	}
	return max32(prevW/2, 1), max32(prevH/2, 1)
}

// baseOctaveDimensions returns octave 0's working texture dimensions: full
// resolution for LayoutPerPixel, half resolution (ceil) for LayoutPacked
// since each packed texel already holds a 2x2 block of source pixels.
func (c *PyramidCache) baseOctaveDimensions() (uint32, uint32) {
	if c.layout == LayoutPacked {
		return ceilDiv2(c.width), ceilDiv2(c.height)
	}
	return c.width, c.height
}

func ceilDiv2(v uint32) uint32 {
	return max32((v+1)/2, 1)
}

func max32(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}

// sourceFormat is the format of the uploaded input image before grayscale
// conversion: RGBA8Unorm regardless of layout, since the layout split only
// affects the pyramid's internal working textures.
func (c *PyramidCache) sourceFormat() gputypes.TextureFormat {
	return gputypes.TextureFormatRGBA8Unorm
}

// workingFormat is the format every Gaussian/DoG/scratch texture uses:
// single-channel float for LayoutPerPixel, RGBA float packing four
// neighboring samples per texel for LayoutPacked.
func (c *PyramidCache) workingFormat() gputypes.TextureFormat {
	if c.layout == LayoutPacked {
		return gputypes.TextureFormatRGBA32Float
	}
	return gputypes.TextureFormatR32Float
}

func (c *PyramidCache) createLevel(label string, width, height uint32, format gputypes.TextureFormat) (level, error) {
	tex, err := c.device.CreateTexture(&hal.TextureDescriptor{
		Label:         label,
		Size:          hal.Extent3D{Width: width, Height: height, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        format,
		Usage:         pyramidUsage,
	})
	if err != nil {
		return level{}, err
	}
	view, err := c.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         label + "_view",
		Format:        format,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		c.device.DestroyTexture(tex)
		return level{}, err
	}
	return level{texture: tex, view: view}, nil
}

// Base returns the grayscale input texture for octave 0.
func (c *PyramidCache) Base() level { return c.base }

// Scratch returns the ping-pong texture used by the separable blur pass.
func (c *PyramidCache) Scratch() level { return c.scratch }

// Gaussian returns the Gaussian level at (octave, scale).
func (c *PyramidCache) Gaussian(octave, scale int) level {
	return c.octaves[octave].gaussian[scale]
}

// DoG returns the difference-of-Gaussians level at (octave, scale).
func (c *PyramidCache) DoG(octave, scale int) level {
	return c.octaves[octave].dog[scale]
}

// OctaveSize returns the working dimensions of an octave.
func (c *PyramidCache) OctaveSize(octave int) (uint32, uint32) {
	o := c.octaves[octave]
	return o.width, o.height
}

func (c *PyramidCache) destroy() {
	destroyLevel := func(lv level) {
		if lv.view != nil {
			c.device.DestroyTextureView(lv.view)
		}
		if lv.texture != nil {
			c.device.DestroyTexture(lv.texture)
		}
	}
	destroyLevel(c.base)
	destroyLevel(c.scratch)
	for _, oct := range c.octaves {
		for _, lv := range oct.gaussian {
			destroyLevel(lv)
		}
		for _, lv := range oct.dog {
			destroyLevel(lv)
		}
	}
	c.octaves = nil
	c.base = level{}
	c.scratch = level{}
	c.valid = false
}

// Close releases every texture the cache currently holds.
func (c *PyramidCache) Close() {
	c.destroy()
}
