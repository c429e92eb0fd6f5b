package gpu

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Buffer errors.
var (
	ErrNilHALDevice      = errors.New("gpu: hal.Device is nil")
	ErrInvalidBufferSize = errors.New("gpu: invalid buffer size")
)

// BufferDescriptor describes a buffer to create. A thin, typed wrapper
// around hal.BufferDescriptor kept for symmetry with CreateBuffer's
// validation and the debug label conventions used across this package.
type BufferDescriptor struct {
	Label string
	Size  uint64
	Usage gputypes.BufferUsage
}

// CreateBuffer creates a hal.Buffer with basic validation, rounding the
// requested size up to the 4-byte copy-buffer alignment WebGPU requires.
func CreateBuffer(device hal.Device, desc BufferDescriptor) (hal.Buffer, error) {
	if device == nil {
		return nil, ErrNilHALDevice
	}
	if desc.Size == 0 {
		return nil, fmt.Errorf("%w: size is 0", ErrInvalidBufferSize)
	}
	const align uint64 = 4
	alignedSize := (desc.Size + align - 1) &^ (align - 1)
	buf, err := device.CreateBuffer(&hal.BufferDescriptor{
		Label: desc.Label,
		Size:  alignedSize,
		Usage: desc.Usage,
	})
	if err != nil {
		return nil, fmt.Errorf("create buffer %q: %w", desc.Label, err)
	}
	return buf, nil
}

// CreateStagingBuffer creates a host-mappable buffer for GPU->host
// readback: MapRead | CopyDst usage, matching every readback call site in
// this package (counter, keypoint records, descriptors, profiling
// timestamps, debug histograms).
func CreateStagingBuffer(device hal.Device, size uint64, label string) (hal.Buffer, error) {
	return CreateBuffer(device, BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
}
