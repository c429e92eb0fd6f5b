package sift

import (
	"testing"

	"github.com/gogpu/sift/internal/gpu"
)

func TestDetectRejectsInvalidDimensions(t *testing.T) {
	d := &Detector{log: Logger()}
	if err := d.Detect(nil, make([]byte, 4), 0, 1); err == nil {
		t.Error("expected error for zero width")
	}
	if err := d.Detect(nil, make([]byte, 4), 1, 0); err == nil {
		t.Error("expected error for zero height")
	}
}

func TestDetectRejectsShortBuffer(t *testing.T) {
	d := &Detector{log: Logger()}
	if err := d.Detect(nil, make([]byte, 3), 1, 1); err == nil {
		t.Error("expected error for undersized rgba buffer")
	}
}

func TestGPULayoutMapping(t *testing.T) {
	if gpuLayout(LayoutPerPixel) != gpu.LayoutPerPixel {
		t.Errorf("gpuLayout(LayoutPerPixel) = %v, want gpu.LayoutPerPixel", gpuLayout(LayoutPerPixel))
	}
	if gpuLayout(LayoutPacked) != gpu.LayoutPacked {
		t.Errorf("gpuLayout(LayoutPacked) = %v, want gpu.LayoutPacked", gpuLayout(LayoutPacked))
	}
}

func TestCloseNilDetector(t *testing.T) {
	var d *Detector
	if err := d.Close(); err != nil {
		t.Errorf("Close on nil Detector = %v, want nil", err)
	}
}

