// Package sift detects scale-invariant feature points in 2D images and
// computes 128-dimensional descriptors for each, entirely on the GPU via
// the gogpu/wgpu compute-shader abstraction.
//
// # Overview
//
// sift builds a Gaussian scale-space pyramid, finds Difference-of-Gaussians
// extrema across octaves, assigns one or more dominant orientations per
// keypoint, and extracts a 128-D gradient descriptor — either as 128
// float32 values or packed into 32 little-endian 32-bit words of four
// quantized bytes. A companion Matcher performs brute-force L2 nearest
// neighbor matching with Lowe's ratio test, optionally gated by a
// fundamental matrix for epipolar-guided matching.
//
// # Quick start
//
//	det, err := sift.NewDetector(device, queue, sift.Options{})
//	if err != nil {
//		// handle error
//	}
//	defer det.Close()
//
//	if err := det.Detect(ctx, rgba, width, height); err != nil {
//		// handle error
//	}
//	kps := det.Keypoints()
//	descs, err := det.ReadbackDescriptors(ctx)
//
// # Layouts
//
// Two internal storage layouts are available via Options.Layout:
// LayoutPerPixel stores one scalar sample per texel; LayoutPacked stores a
// 2x2 tile of samples per texel in an RGBA32Float texture, trading texture
// count for channel packing. Both produce algorithmically equivalent
// keypoint sets; orchestration
// is shared and only per-pass texture dimensions/formats and addressing
// differ.
package sift
