package gpu

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// MatcherPipelines holds all four matching variants a standalone Matcher
// needs, compiled once at construction. Unlike the detector's Pipelines,
// the descriptor encoding is not fixed at construction time: Match's
// quantized argument selects among these per call.
type MatcherPipelines struct {
	device hal.Device

	BruteForceFloat     *Stage
	BruteForceQuantized *Stage
	GuidedFloat         *Stage
	GuidedQuantized     *Stage
}

// BuildMatcherPipelines compiles every matching shader variant.
func BuildMatcherPipelines(device hal.Device) (*MatcherPipelines, error) {
	p := &MatcherPipelines{device: device}

	bruteForceEntries := []gputypes.BindGroupLayoutEntry{
		bufEntry(0, gputypes.BufferBindingTypeUniform),
		bufEntry(1, gputypes.BufferBindingTypeReadOnlyStorage),
		bufEntry(2, gputypes.BufferBindingTypeReadOnlyStorage),
		bufEntry(3, gputypes.BufferBindingTypeStorage),
	}
	guidedEntries := []gputypes.BindGroupLayoutEntry{
		bufEntry(0, gputypes.BufferBindingTypeUniform),
		bufEntry(1, gputypes.BufferBindingTypeReadOnlyStorage),
		bufEntry(2, gputypes.BufferBindingTypeReadOnlyStorage),
		bufEntry(3, gputypes.BufferBindingTypeReadOnlyStorage),
		bufEntry(4, gputypes.BufferBindingTypeReadOnlyStorage),
		bufEntry(5, gputypes.BufferBindingTypeStorage),
	}

	var err error
	p.BruteForceFloat, err = buildStage(device, "sift_matcher_bruteforce_float", bruteForceFloatWGSL, bruteForceEntries)
	if err != nil {
		p.Close()
		return nil, err
	}
	p.BruteForceQuantized, err = buildStage(device, "sift_matcher_bruteforce_quantized", bruteForceQuantizedWGSL, bruteForceEntries)
	if err != nil {
		p.Close()
		return nil, err
	}
	p.GuidedFloat, err = buildStage(device, "sift_matcher_guided_float", guidedFloatWGSL, guidedEntries)
	if err != nil {
		p.Close()
		return nil, err
	}
	p.GuidedQuantized, err = buildStage(device, "sift_matcher_guided_quantized", guidedQuantizedWGSL, guidedEntries)
	if err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}

// Close destroys every stage.
func (p *MatcherPipelines) Close() {
	if p == nil {
		return
	}
	for _, s := range []*Stage{p.BruteForceFloat, p.BruteForceQuantized, p.GuidedFloat, p.GuidedQuantized} {
		s.destroy(p.device)
	}
}

// Matcher owns the compiled matching pipelines and runs one brute-force or
// epipolar-guided pass per call, each with its own freshly sized buffers:
// matching is not called often enough in a typical pipeline to warrant the
// detector's fixed-buffer-reuse strategy.
type Matcher struct {
	device hal.Device
	queue  hal.Queue
	pipes  *MatcherPipelines
}

// NewMatcher compiles every matching pipeline variant.
func NewMatcher(device hal.Device, queue hal.Queue) (*Matcher, error) {
	pipes, err := BuildMatcherPipelines(device)
	if err != nil {
		return nil, fmt.Errorf("build matcher pipelines: %w", err)
	}
	return &Matcher{device: device, queue: queue, pipes: pipes}, nil
}

// Close destroys every GPU resource the matcher owns.
func (m *Matcher) Close() {
	if m == nil {
		return
	}
	if m.pipes != nil {
		m.pipes.Close()
	}
}

// encodeDescriptors packs the widened (always [0,255] or [0,1]-range as
// appropriate) host-side float descriptors into the GPU wire format the
// selected variant expects: raw f32 for the float path, 32 packed u32
// words per record for the quantized path.
func encodeDescriptors(desc []float32, quantized bool) []byte {
	if !quantized {
		out := make([]byte, len(desc)*4)
		for i, v := range desc {
			putF32(out[i*4:], v)
		}
		return out
	}
	count := len(desc) / 128
	out := make([]byte, count*QuantizedDescriptorSize)
	for rec := 0; rec < count; rec++ {
		base := rec * 128
		dst := out[rec*QuantizedDescriptorSize:]
		for w := 0; w < 32; w++ {
			b0 := clampByte(desc[base+w*4+0])
			b1 := clampByte(desc[base+w*4+1])
			b2 := clampByte(desc[base+w*4+2])
			b3 := clampByte(desc[base+w*4+3])
			putU32(dst[w*4:], EncodeQuantizedWord(b0, b1, b2, b3))
		}
	}
	return out
}

func clampByte(v float32) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

func putF32(dst []byte, v float32) {
	binary.LittleEndian.PutUint32(dst, math.Float32bits(v))
}

func putU32(dst []byte, v uint32) {
	binary.LittleEndian.PutUint32(dst, v)
}

// RunBruteForce uploads descA/descB (host-widened floats, length a
// multiple of 128), dispatches the selected brute-force variant, and
// returns one MatchResult per query in A.
func (m *Matcher) RunBruteForce(ctx context.Context, descA, descB []float32, quantized bool) ([]MatchResult, error) {
	countA := uint32(len(descA) / 128)
	countB := uint32(len(descB) / 128)
	if countA == 0 || countB == 0 {
		return nil, nil
	}

	stage := m.pipes.BruteForceFloat
	if quantized {
		stage = m.pipes.BruteForceQuantized
	}

	encA := encodeDescriptors(descA, quantized)
	encB := encodeDescriptors(descB, quantized)
	bufA, err := m.uploadEncoded("sift_match_desc_a", encA)
	if err != nil {
		return nil, err
	}
	defer m.device.DestroyBuffer(bufA)
	bufB, err := m.uploadEncoded("sift_match_desc_b", encB)
	if err != nil {
		return nil, err
	}
	defer m.device.DestroyBuffer(bufB)

	params := PutMatcherParams(countA, countB)
	paramsBuf, err := m.uploadUniform("sift_match_params", params)
	if err != nil {
		return nil, err
	}
	defer m.device.DestroyBuffer(paramsBuf)

	results, err := CreateBuffer(m.device, BufferDescriptor{
		Label: "sift_match_results",
		Size:  uint64(countA) * MatchResultSize,
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopySrc,
	})
	if err != nil {
		return nil, fmt.Errorf("create match results buffer: %w", err)
	}
	defer m.device.DestroyBuffer(results)

	bg, err := makeBindGroup(m.device, "sift_match_bruteforce_bg", stage.BindLayout, []gputypes.BindGroupEntry{
		bufBinding(0, paramsBuf, 16),
		bufBinding(1, bufA, uint64(len(encA))),
		bufBinding(2, bufB, uint64(len(encB))),
		bufBinding(3, results, uint64(countA)*MatchResultSize),
	})
	if err != nil {
		return nil, fmt.Errorf("match bind group: %w", err)
	}

	if err := m.dispatchAndWait(stage, bg, countA); err != nil {
		return nil, err
	}

	data, err := CopyToHost(ctx, m.device, m.queue, results, 0, uint64(countA)*MatchResultSize, "sift_readback_match_results")
	if err != nil {
		return nil, err
	}
	return DecodeMatchResults(data, int(countA)), nil
}

// RunGuided is RunBruteForce's epipolar-gated counterpart: candidates j
// whose point-to-epipolar-line distance from query i exceeds threshold
// never enter the best/second-nearest tracking for that query.
func (m *Matcher) RunGuided(ctx context.Context, descA, descB []float32, kpsA, kpsB []Point2, f [9]float32, threshold float32, quantized bool) ([]MatchResult, error) {
	countA := uint32(len(descA) / 128)
	countB := uint32(len(descB) / 128)
	if countA == 0 || countB == 0 {
		return nil, nil
	}

	stage := m.pipes.GuidedFloat
	if quantized {
		stage = m.pipes.GuidedQuantized
	}

	encA := encodeDescriptors(descA, quantized)
	encB := encodeDescriptors(descB, quantized)
	bufA, err := m.uploadEncoded("sift_guided_desc_a", encA)
	if err != nil {
		return nil, err
	}
	defer m.device.DestroyBuffer(bufA)
	bufB, err := m.uploadEncoded("sift_guided_desc_b", encB)
	if err != nil {
		return nil, err
	}
	defer m.device.DestroyBuffer(bufB)

	kpsABuf, err := m.uploadPoints("sift_guided_kps_a", kpsA)
	if err != nil {
		return nil, err
	}
	defer m.device.DestroyBuffer(kpsABuf)
	kpsBBuf, err := m.uploadPoints("sift_guided_kps_b", kpsB)
	if err != nil {
		return nil, err
	}
	defer m.device.DestroyBuffer(kpsBBuf)

	params := PutGuidedMatcherParams(countA, countB, threshold, f)
	paramsBuf, err := m.uploadUniform("sift_guided_params", params)
	if err != nil {
		return nil, err
	}
	defer m.device.DestroyBuffer(paramsBuf)

	results, err := CreateBuffer(m.device, BufferDescriptor{
		Label: "sift_guided_results",
		Size:  uint64(countA) * MatchResultSize,
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopySrc,
	})
	if err != nil {
		return nil, fmt.Errorf("create guided results buffer: %w", err)
	}
	defer m.device.DestroyBuffer(results)

	bg, err := makeBindGroup(m.device, "sift_guided_bg", stage.BindLayout, []gputypes.BindGroupEntry{
		bufBinding(0, paramsBuf, uint64(len(params))),
		bufBinding(1, bufA, uint64(len(encA))),
		bufBinding(2, bufB, uint64(len(encB))),
		bufBinding(3, kpsABuf, uint64(len(kpsA))*8),
		bufBinding(4, kpsBBuf, uint64(len(kpsB))*8),
		bufBinding(5, results, uint64(countA)*MatchResultSize),
	})
	if err != nil {
		return nil, fmt.Errorf("guided bind group: %w", err)
	}

	if err := m.dispatchAndWait(stage, bg, countA); err != nil {
		return nil, err
	}

	data, err := CopyToHost(ctx, m.device, m.queue, results, 0, uint64(countA)*MatchResultSize, "sift_readback_guided_results")
	if err != nil {
		return nil, err
	}
	return DecodeMatchResults(data, int(countA)), nil
}

func (m *Matcher) uploadEncoded(label string, bytes []byte) (hal.Buffer, error) {
	buf, err := CreateBuffer(m.device, BufferDescriptor{
		Label: label,
		Size:  uint64(len(bytes)),
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", label, err)
	}
	m.queue.WriteBuffer(buf, 0, bytes)
	return buf, nil
}

func (m *Matcher) uploadPoints(label string, pts []Point2) (hal.Buffer, error) {
	bytes := make([]byte, len(pts)*8)
	for i, p := range pts {
		putF32(bytes[i*8:], p.X)
		putF32(bytes[i*8+4:], p.Y)
	}
	buf, err := CreateBuffer(m.device, BufferDescriptor{
		Label: label,
		Size:  uint64(len(bytes)),
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", label, err)
	}
	m.queue.WriteBuffer(buf, 0, bytes)
	return buf, nil
}

func (m *Matcher) uploadUniform(label string, data []byte) (hal.Buffer, error) {
	buf, err := CreateBuffer(m.device, BufferDescriptor{
		Label: label,
		Size:  uint64(len(data)),
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", label, err)
	}
	m.queue.WriteBuffer(buf, 0, data)
	return buf, nil
}

// dispatchAndWait runs one matching pass with one workgroup of 64 threads
// per 64 queries, then blocks on the submission fence.
func (m *Matcher) dispatchAndWait(stage *Stage, bg hal.BindGroup, countA uint32) error {
	encoder, err := m.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: stage.Label + "_encoder"})
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding(stage.Label); err != nil {
		return fmt.Errorf("begin encoding: %w", err)
	}
	pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: stage.Label + "_pass"})
	pass.SetPipeline(stage.Pipeline)
	pass.SetBindGroup(0, bg, nil)
	pass.Dispatch((countA+63)/64, 1, 1)
	pass.End()

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("end encoding: %w", err)
	}
	defer m.device.FreeCommandBuffer(cmdBuf)

	fence, err := m.device.CreateFence()
	if err != nil {
		return fmt.Errorf("create fence: %w", err)
	}
	defer m.device.DestroyFence(fence)
	if err := m.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	ok, err := m.device.Wait(fence, 1, fenceWaitTimeout)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeviceLost, err)
	}
	if !ok {
		return fmt.Errorf("%w: match pass did not complete", ErrDeviceLost)
	}
	return nil
}

// Point2 is a plain 2D point, mirroring the root package's Point2 so
// internal/gpu stays free of a dependency on its own parent.
type Point2 struct {
	X, Y float32
}
