package gpu

import _ "embed"

//go:embed shaders/common/dispatch_prepare.wgsl
var dispatchPrepareWGSL string

//go:embed shaders/perpixel/grayscale.wgsl
var perPixelGrayscaleWGSL string

//go:embed shaders/perpixel/blur_h.wgsl
var perPixelBlurHWGSL string

//go:embed shaders/perpixel/blur_v.wgsl
var perPixelBlurVWGSL string

//go:embed shaders/perpixel/downsample.wgsl
var perPixelDownsampleWGSL string

//go:embed shaders/perpixel/dog.wgsl
var perPixelDoGWGSL string

//go:embed shaders/perpixel/extrema.wgsl
var perPixelExtremaWGSL string

//go:embed shaders/perpixel/orientation.wgsl
var perPixelOrientationWGSL string

//go:embed shaders/perpixel/descriptor_float.wgsl
var perPixelDescriptorFloatWGSL string

//go:embed shaders/perpixel/descriptor_quantized.wgsl
var perPixelDescriptorQuantizedWGSL string

//go:embed shaders/packed/grayscale.wgsl
var packedGrayscaleWGSL string

//go:embed shaders/packed/blur_h.wgsl
var packedBlurHWGSL string

//go:embed shaders/packed/blur_v.wgsl
var packedBlurVWGSL string

//go:embed shaders/packed/downsample.wgsl
var packedDownsampleWGSL string

//go:embed shaders/packed/dog.wgsl
var packedDoGWGSL string

//go:embed shaders/packed/extrema.wgsl
var packedExtremaWGSL string

//go:embed shaders/packed/orientation.wgsl
var packedOrientationWGSL string

//go:embed shaders/packed/descriptor_float.wgsl
var packedDescriptorFloatWGSL string

//go:embed shaders/packed/descriptor_quantized.wgsl
var packedDescriptorQuantizedWGSL string

//go:embed shaders/matching/bruteforce_float.wgsl
var bruteForceFloatWGSL string

//go:embed shaders/matching/bruteforce_quantized.wgsl
var bruteForceQuantizedWGSL string

//go:embed shaders/matching/guided_float.wgsl
var guidedFloatWGSL string

//go:embed shaders/matching/guided_quantized.wgsl
var guidedQuantizedWGSL string
