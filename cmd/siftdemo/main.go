// Command siftdemo detects SIFT keypoints in an input image and prints a
// summary of what was found. Image decoding, flag parsing, and any output
// formatting live here, outside the sift package itself.
package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"log"
	"os"
	"time"

	xdraw "golang.org/x/image/draw"

	"github.com/gogpu/sift"
	"github.com/gogpu/sift/internal/gpu"
)

func main() {
	var (
		inputPath = flag.String("input", "", "input PNG image path")
		maxDim    = flag.Int("max-dim", 1024, "longest-edge resize limit before detection")
		quantize  = flag.Bool("quantize", false, "use quantized-byte descriptors")
		packed    = flag.Bool("packed", false, "use the packed storage layout")
		contrast  = flag.Float64("contrast", float64(sift.DefaultContrastThreshold), "contrast threshold")
		edge      = flag.Float64("edge", float64(sift.DefaultEdgeThreshold), "edge threshold")
	)
	flag.Parse()

	if *inputPath == "" {
		log.Fatal("siftdemo: -input is required")
	}

	rgba, width, height, err := loadRGBA(*inputPath, *maxDim)
	if err != nil {
		log.Fatalf("siftdemo: load image: %v", err)
	}

	opened, err := gpu.OpenDevice()
	if err != nil {
		log.Fatalf("siftdemo: open device: %v", err)
	}
	defer opened.Close()
	log.Printf("siftdemo: using GPU adapter %q", opened.Name)

	layout := sift.LayoutPerPixel
	if *packed {
		layout = sift.LayoutPacked
	}

	det, err := sift.NewDetector(opened.Device, opened.Queue, sift.Options{
		QuantizeDescriptors: *quantize,
		ContrastThreshold:   float32(*contrast),
		EdgeThreshold:       float32(*edge),
		Layout:              layout,
	})
	if err != nil {
		log.Fatalf("siftdemo: new detector: %v", err)
	}
	defer det.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	start := time.Now()
	if err := det.Detect(ctx, rgba, width, height); err != nil {
		log.Fatalf("siftdemo: detect: %v", err)
	}
	elapsed := time.Since(start)

	kps := det.Keypoints()
	fmt.Printf("%s: %dx%d, %d keypoints in %s\n", *inputPath, width, height, len(kps), elapsed)

	profiling := det.Profiling(ctx)
	if profiling.TotalMs > 0 {
		fmt.Printf("  grayscale=%.2fms pyramids=%.2fms extrema=%.2fms orientation=%.2fms descriptor=%.2fms total=%.2fms\n",
			profiling.GrayscaleMs, profiling.PyramidsMs, profiling.ExtremaMs, profiling.OrientationMs, profiling.DescriptorMs, profiling.TotalMs)
	}

	for i, kp := range kps {
		if i >= 10 {
			fmt.Printf("  ... %d more\n", len(kps)-10)
			break
		}
		fmt.Printf("  (%.1f, %.1f) octave=%d scale=%d sigma=%.2f orientation=%.2f\n",
			kp.X, kp.Y, kp.Octave, kp.ScaleIndex, kp.Sigma, kp.Orientation)
	}
}

// loadRGBA decodes a PNG file and resizes it so its longest edge is at
// most maxDim, returning row-major RGBA8 bytes.
func loadRGBA(path string, maxDim int) ([]byte, int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, 0, err
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("decode png: %w", err)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if longest := max(w, h); longest > maxDim && maxDim > 0 {
		scale := float64(maxDim) / float64(longest)
		w = max(1, int(float64(w)*scale))
		h = max(1, int(float64(h)*scale))
		resized := image.NewRGBA(image.Rect(0, 0, w, h))
		xdraw.CatmullRom.Scale(resized, resized.Bounds(), img, bounds, xdraw.Over, nil)
		img = resized
	}

	rgba := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(rgba, rgba.Bounds(), img, image.Point{}, draw.Src)
	return rgba.Pix, w, h, nil
}
