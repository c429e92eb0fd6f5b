package gpu

import (
	"context"
	"fmt"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// fenceWaitTimeout bounds the device-side fence wait for one copy+submit.
// It is independent of the caller's context, which only bounds how long
// the Go-side call is willing to block waiting on the result channel below.
const fenceWaitTimeout = 30 * time.Second

// CopyToHost copies size bytes starting at srcOffset in src into a fresh
// staging buffer, submits and waits for the copy, then maps and returns the
// bytes. It blocks the calling goroutine until either the copy completes or
// ctx is done, matching the "suspend until signaled" readback model: the
// underlying device work is not cancellable, but the caller does not have
// to wait past its own deadline to find that out.
func CopyToHost(ctx context.Context, device hal.Device, queue hal.Queue, src hal.Buffer, srcOffset, size uint64, label string) ([]byte, error) {
	type result struct {
		data []byte
		err  error
	}
	done := make(chan result, 1)

	go func() {
		staging, err := CreateStagingBuffer(device, size, label)
		if err != nil {
			done <- result{nil, fmt.Errorf("create staging buffer: %w", err)}
			return
		}
		defer device.DestroyBuffer(staging)

		encoder, err := device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label + "_encoder"})
		if err != nil {
			done <- result{nil, fmt.Errorf("create command encoder: %w", err)}
			return
		}
		if err := encoder.BeginEncoding(label); err != nil {
			done <- result{nil, fmt.Errorf("begin encoding: %w", err)}
			return
		}
		encoder.CopyBufferToBuffer(src, staging, []hal.BufferCopy{
			{SrcOffset: srcOffset, DstOffset: 0, Size: size},
		})
		cmdBuf, err := encoder.EndEncoding()
		if err != nil {
			done <- result{nil, fmt.Errorf("end encoding: %w", err)}
			return
		}
		defer device.FreeCommandBuffer(cmdBuf)

		fence, err := device.CreateFence()
		if err != nil {
			done <- result{nil, fmt.Errorf("create fence: %w", err)}
			return
		}
		defer device.DestroyFence(fence)

		if err := queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
			done <- result{nil, fmt.Errorf("submit: %w", err)}
			return
		}
		ok, err := device.Wait(fence, 1, fenceWaitTimeout)
		if err != nil {
			done <- result{nil, fmt.Errorf("%w: %v", ErrDeviceLost, err)}
			return
		}
		if !ok {
			done <- result{nil, fmt.Errorf("%w: fence wait timed out", ErrDeviceLost)}
			return
		}

		out := make([]byte, size)
		if err := queue.ReadBuffer(staging, 0, out); err != nil {
			done <- result{nil, fmt.Errorf("map read: %w", err)}
			return
		}
		done <- result{out, nil}
	}()

	select {
	case r := <-done:
		return r.data, r.err
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrReadbackTimeout, ctx.Err())
	}
}

// ReadKeypointCount reads the saturating u32 counter at offset 0 of the
// keypoint buffer.
func ReadKeypointCount(ctx context.Context, device hal.Device, queue hal.Queue, keypoints hal.Buffer) (uint32, error) {
	data, err := CopyToHost(ctx, device, queue, keypoints, 0, 4, "sift_readback_count")
	if err != nil {
		return 0, err
	}
	return DecodeKeypointCount(data), nil
}

// ReadKeypointRecords reads count records starting at offset
// KeypointHeaderSize of the keypoint buffer.
func ReadKeypointRecords(ctx context.Context, device hal.Device, queue hal.Queue, keypoints hal.Buffer, count uint32) ([]KeypointRecord, error) {
	if count == 0 {
		return nil, nil
	}
	size := uint64(count) * KeypointRecordSize
	data, err := CopyToHost(ctx, device, queue, keypoints, KeypointHeaderSize, size, "sift_readback_keypoints")
	if err != nil {
		return nil, err
	}
	out := make([]KeypointRecord, count)
	for i := range out {
		out[i] = DecodeKeypointRecord(data[int(i)*KeypointRecordSize:])
	}
	return out, nil
}

// ReadDescriptors reads count descriptor records (float or quantized,
// widened to []float32 in [0,255] for the quantized case) starting at
// offset 0 of the descriptor buffer.
func ReadDescriptors(ctx context.Context, device hal.Device, queue hal.Queue, descriptors hal.Buffer, count uint32, quantized bool) ([]float32, error) {
	if count == 0 {
		return nil, nil
	}
	recordSize := uint64(FloatDescriptorSize)
	if quantized {
		recordSize = QuantizedDescriptorSize
	}
	size := uint64(count) * recordSize
	data, err := CopyToHost(ctx, device, queue, descriptors, 0, size, "sift_readback_descriptors")
	if err != nil {
		return nil, err
	}
	if quantized {
		return DecodeQuantizedDescriptors(data, int(count)), nil
	}
	return DecodeFloatDescriptors(data, int(count)), nil
}

// ReadDebugHistograms reads count 36-bin float32 histograms starting at
// offset 0 of the debug histogram buffer.
func ReadDebugHistograms(ctx context.Context, device hal.Device, queue hal.Queue, hist hal.Buffer, count uint32) ([][DebugHistogramBinCount]float32, error) {
	if count == 0 {
		return nil, nil
	}
	size := uint64(count) * DebugHistogramBinCount * 4
	data, err := CopyToHost(ctx, device, queue, hist, 0, size, "sift_readback_debug_hist")
	if err != nil {
		return nil, err
	}
	out := make([][DebugHistogramBinCount]float32, count)
	for i := range out {
		out[i] = DecodeDebugHistogram(data[i*DebugHistogramBinCount*4:])
	}
	return out, nil
}

// TimestampCount is the number of timestamp-query slots written across one
// Detect call: start, post-grayscale, post-pyramids, post-extrema,
// post-orientation, post-descriptor, end.
const TimestampCount = 7

// ReadTimestamps reads TimestampCount u64 device ticks from a resolved
// query-set result buffer and returns them as raw ticks; periodNanos is not
// used here, and converting deltas to milliseconds is left to the caller.
// Returns all-zero on any failure so unsupported timestamp queries degrade
// silently rather than failing a call.
func ReadTimestamps(ctx context.Context, device hal.Device, queue hal.Queue, resultBuf hal.Buffer, periodNanos float32) [TimestampCount]uint64 {
	var ticks [TimestampCount]uint64
	data, err := CopyToHost(ctx, device, queue, resultBuf, 0, TimestampCount*8, "sift_readback_timestamps")
	if err != nil {
		return ticks
	}
	for i := range ticks {
		ticks[i] = uint64(data[i*8]) | uint64(data[i*8+1])<<8 | uint64(data[i*8+2])<<16 | uint64(data[i*8+3])<<24 |
			uint64(data[i*8+4])<<32 | uint64(data[i*8+5])<<40 | uint64(data[i*8+6])<<48 | uint64(data[i*8+7])<<56
	}
	return ticks
}

// TimestampWriteMode selects whether a WriteTimestamp pass records the
// beginning or end of the surrounding compute pass, per
// gputypes.PassTimestampWrites.
type TimestampWriteMode int

const (
	TimestampAtBeginning TimestampWriteMode = iota
	TimestampAtEnd
)

// WriteTimestamp submits a trivial compute pass whose sole purpose is to
// record a timestamp query at the given query-set index.
func WriteTimestamp(device hal.Device, queue hal.Queue, querySet hal.QuerySet, index uint32) error {
	encoder, err := device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "sift_timestamp"})
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("sift_timestamp"); err != nil {
		return fmt.Errorf("begin encoding: %w", err)
	}
	pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{
		Label: "sift_timestamp_pass",
		TimestampWrites: &gputypes.PassTimestampWrites{
			QuerySet:                querySet,
			BeginningOfPassWriteIndex: index,
			EndOfPassWriteIndex:       gputypes.QuerySetIndexNone,
		},
	})
	pass.End()
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("end encoding: %w", err)
	}
	defer device.FreeCommandBuffer(cmdBuf)
	if err := queue.Submit([]hal.CommandBuffer{cmdBuf}, nil, 0); err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	return nil
}
