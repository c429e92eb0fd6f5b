package gpu

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// KernelCache memoizes separable Gaussian kernel weights by (sigma,
// radius), persisting each distinct kernel as an immutable read-only
// storage buffer. Lookup is exact; there is no interpolation or eviction,
// since the cache is bounded by the distinct sigma values the pyramid
// construction uses (at most NumOctaves*(ScalesPerOctave+3) entries).
type KernelCache struct {
	mu      sync.Mutex
	device  hal.Device
	entries map[string]hal.Buffer
}

// NewKernelCache creates an empty cache bound to device.
func NewKernelCache(device hal.Device) *KernelCache {
	return &KernelCache{device: device, entries: make(map[string]hal.Buffer)}
}

// kernelKey collapses a (sigma, radius) pair to one cache entry regardless
// of floating point representation noise beyond 4 decimal digits.
func kernelKey(sigma float32, radius int) string {
	return fmt.Sprintf("%.4f_%d", sigma, radius)
}

// KernelRadius returns radius = ceil(3*sigma), the window half-width used
// throughout the scale-space builder.
func KernelRadius(sigma float32) int {
	return int(math.Ceil(float64(sigma) * 3))
}

// BuildKernelWeights computes w_i = exp(-i^2/(2*sigma^2)) for i in
// [-radius, radius], normalized to sum to 1.
func BuildKernelWeights(sigma float32, radius int) []float32 {
	length := 2*radius + 1
	weights := make([]float32, length)
	var sum float64
	for i := -radius; i <= radius; i++ {
		w := math.Exp(-float64(i*i) / (2 * float64(sigma) * float64(sigma)))
		weights[i+radius] = float32(w)
		sum += w
	}
	for i := range weights {
		weights[i] = float32(float64(weights[i]) / sum)
	}
	return weights
}

// Get returns the storage buffer holding the normalized kernel weights for
// (sigma, radius), creating and uploading it on first use.
func (c *KernelCache) Get(queue hal.Queue, sigma float32, radius int) (hal.Buffer, error) {
	key := kernelKey(sigma, radius)

	c.mu.Lock()
	defer c.mu.Unlock()
	if buf, ok := c.entries[key]; ok {
		return buf, nil
	}

	weights := BuildKernelWeights(sigma, radius)
	bytes := make([]byte, len(weights)*4)
	for i, w := range weights {
		binary.LittleEndian.PutUint32(bytes[i*4:], math.Float32bits(w))
	}

	buf, err := CreateBuffer(c.device, BufferDescriptor{
		Label: fmt.Sprintf("sift_kernel_%s", key),
		Size:  uint64(len(bytes)),
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create kernel buffer: %w", err)
	}
	queue.WriteBuffer(buf, 0, bytes)
	c.entries[key] = buf
	return buf, nil
}

// Close destroys every buffer the cache holds.
func (c *KernelCache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, buf := range c.entries {
		c.device.DestroyBuffer(buf)
	}
	c.entries = make(map[string]hal.Buffer)
}

// Len reports the number of distinct (sigma, radius) entries cached, used
// by tests asserting the cache stays within its documented bound.
func (c *KernelCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
