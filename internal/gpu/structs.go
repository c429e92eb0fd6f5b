// Package gpu implements the GPU compute pipeline behind the sift package:
// device bootstrap, buffer/texture lifecycle, the kernel cache, the two
// storage-layout variants, and the detector/matcher pass sequences.
package gpu

import (
	"encoding/binary"
	"math"
)

// Buffer-layout constants shared by every stage. Values are fixed by the
// wire format the shaders agree on; they are not configuration.
const (
	NumOctaves      = 4
	ScalesPerOctave = 3
	SigmaBase       = float32(1.6)
	MaxKeypoints    = 100_000

	// KeypointRecordSize is the byte size of one keypoint record: eight
	// little-endian f32 values (x, y, octave, scale, sigma, orientation,
	// reserved, reserved).
	KeypointRecordSize = 32

	// KeypointHeaderSize is the counter (4 bytes) plus reserved padding
	// (12 bytes) preceding the first record.
	KeypointHeaderSize = 16

	// FloatDescriptorSize is the byte size of one float-mode descriptor
	// record (128 * 4 bytes).
	FloatDescriptorSize = 128 * 4

	// QuantizedDescriptorSize is the byte size of one quantized-mode
	// descriptor record (32 packed u32 words).
	QuantizedDescriptorSize = 32 * 4

	// IndirectDispatchSize is the byte size of the indirect-dispatch
	// record: two consecutive 3-u32 workgroup-count tuples.
	IndirectDispatchSize = 24

	// DebugHistogramBinCount is the width of the per-keypoint orientation
	// histogram the orientation stage writes when debug histograms are
	// enabled.
	DebugHistogramBinCount = 36
)

// Sigma returns sigma(s) = sigmaBase * 2^(s/S) for scale index s within an
// octave.
func Sigma(s int) float32 {
	return SigmaBase * float32(math.Pow(2, float64(s)/float64(ScalesPerOctave)))
}

// KeypointRecord mirrors the 32-byte GPU keypoint record exactly.
type KeypointRecord struct {
	X, Y        float32
	Octave      float32
	ScaleIndex  float32
	Sigma       float32
	Orientation float32
	Reserved0   float32
	Reserved1   float32
}

// PutKeypointRecord writes rec into dst (len(dst) must be >= 32) using
// little-endian f32 encoding, matching the GPU buffer layout bit-exact.
func PutKeypointRecord(dst []byte, rec KeypointRecord) {
	binary.LittleEndian.PutUint32(dst[0:4], math.Float32bits(rec.X))
	binary.LittleEndian.PutUint32(dst[4:8], math.Float32bits(rec.Y))
	binary.LittleEndian.PutUint32(dst[8:12], math.Float32bits(rec.Octave))
	binary.LittleEndian.PutUint32(dst[12:16], math.Float32bits(rec.ScaleIndex))
	binary.LittleEndian.PutUint32(dst[16:20], math.Float32bits(rec.Sigma))
	binary.LittleEndian.PutUint32(dst[20:24], math.Float32bits(rec.Orientation))
	binary.LittleEndian.PutUint32(dst[24:28], math.Float32bits(rec.Reserved0))
	binary.LittleEndian.PutUint32(dst[28:32], math.Float32bits(rec.Reserved1))
}

// DecodeKeypointRecord reads a 32-byte record from src (len(src) must be
// >= 32).
func DecodeKeypointRecord(src []byte) KeypointRecord {
	f := func(off int) float32 {
		return math.Float32frombits(binary.LittleEndian.Uint32(src[off : off+4]))
	}
	return KeypointRecord{
		X:           f(0),
		Y:           f(4),
		Octave:      f(8),
		ScaleIndex:  f(12),
		Sigma:       f(16),
		Orientation: f(20),
		Reserved0:   f(24),
		Reserved1:   f(28),
	}
}

// DecodeKeypointCount reads the u32 counter at offset 0 of a keypoint
// buffer snapshot, clamped to MaxKeypoints per the saturating-counter
// invariant.
func DecodeKeypointCount(src []byte) uint32 {
	count := binary.LittleEndian.Uint32(src[0:4])
	if count > MaxKeypoints {
		count = MaxKeypoints
	}
	return count
}

// DecodeFloatDescriptors reinterprets a float-mode descriptor readback
// buffer as a flat []float32 of length count*128.
func DecodeFloatDescriptors(src []byte, count int) []float32 {
	out := make([]float32, count*128)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[i*4 : i*4+4]))
	}
	return out
}

// DecodeQuantizedDescriptors expands a quantized-mode descriptor readback
// buffer (32 packed u32 words per record) into a flat []float32 of length
// count*128, each value in [0,255] — a host-side readback convenience, not
// the on-GPU representation (see the design notes on quantized readback).
func DecodeQuantizedDescriptors(src []byte, count int) []float32 {
	out := make([]float32, count*128)
	for rec := 0; rec < count; rec++ {
		base := rec * QuantizedDescriptorSize
		for w := 0; w < 32; w++ {
			word := binary.LittleEndian.Uint32(src[base+w*4 : base+w*4+4])
			for b := 0; b < 4; b++ {
				out[rec*128+w*4+b] = float32((word >> (8 * b)) & 0xFF)
			}
		}
	}
	return out
}

// EncodeQuantizedWord packs four bytes (already clamped to [0,255]) into
// one little-endian u32: b0 | b1<<8 | b2<<16 | b3<<24. Exercised by the
// host-side test for the descriptor stage's documented packing order; the
// GPU shader performs the equivalent packing in WGSL.
func EncodeQuantizedWord(b0, b1, b2, b3 uint8) uint32 {
	return uint32(b0) | uint32(b1)<<8 | uint32(b2)<<16 | uint32(b3)<<24
}

// IndirectDispatchArgs is the 24-byte indirect-dispatch record: the
// orientation dispatch tuple followed by the descriptor dispatch tuple.
type IndirectDispatchArgs struct {
	OrientationX, OrientationY, OrientationZ uint32
	DescriptorX, DescriptorY, DescriptorZ    uint32
}

// DecodeIndirectDispatchArgs reads a 24-byte indirect-dispatch record.
func DecodeIndirectDispatchArgs(src []byte) IndirectDispatchArgs {
	u := func(off int) uint32 { return binary.LittleEndian.Uint32(src[off : off+4]) }
	return IndirectDispatchArgs{
		OrientationX: u(0), OrientationY: u(4), OrientationZ: u(8),
		DescriptorX: u(12), DescriptorY: u(16), DescriptorZ: u(20),
	}
}

// DecodeDebugHistogram reads one 36-bin float32 histogram.
func DecodeDebugHistogram(src []byte) [DebugHistogramBinCount]float32 {
	var h [DebugHistogramBinCount]float32
	for i := range h {
		h[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[i*4 : i*4+4]))
	}
	return h
}

// MatchResultSize is the byte size of one GPU match-result record.
const MatchResultSize = 16

// MatchResult mirrors the 16-byte GPU match-result record: the best
// candidate index (-1 means none), its squared distance, and the
// second-best squared distance.
type MatchResult struct {
	BestIdx       int32
	BestDistSq    float32
	SecondDistSq  float32
	Reserved      float32
}

// DecodeMatchResults reads count 16-byte match-result records.
func DecodeMatchResults(src []byte, count int) []MatchResult {
	out := make([]MatchResult, count)
	for i := range out {
		base := i * MatchResultSize
		out[i] = MatchResult{
			BestIdx:      int32(binary.LittleEndian.Uint32(src[base : base+4])),
			BestDistSq:   math.Float32frombits(binary.LittleEndian.Uint32(src[base+4 : base+8])),
			SecondDistSq: math.Float32frombits(binary.LittleEndian.Uint32(src[base+8 : base+12])),
		}
	}
	return out
}

// PutUniformU32x4 encodes four u32 values as a 16-byte little-endian block,
// the shape of the scalar uniform blocks for blur, downsample, DoG,
// descriptor and brute-force matcher params.
func PutUniformU32x4(a, b, c, d uint32) []byte {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint32(buf[0:4], a)
	binary.LittleEndian.PutUint32(buf[4:8], b)
	binary.LittleEndian.PutUint32(buf[8:12], c)
	binary.LittleEndian.PutUint32(buf[12:16], d)
	return buf
}

// PutExtremaParams encodes the 24-byte extrema uniform block: (w, h,
// octave, scale) as u32 followed by (contrast, edge) as f32.
func PutExtremaParams(w, h, octave, scale uint32, contrast, edge float32) []byte {
	buf := make([]byte, 24)
	binary.LittleEndian.PutUint32(buf[0:4], w)
	binary.LittleEndian.PutUint32(buf[4:8], h)
	binary.LittleEndian.PutUint32(buf[8:12], octave)
	binary.LittleEndian.PutUint32(buf[12:16], scale)
	binary.LittleEndian.PutUint32(buf[16:20], math.Float32bits(contrast))
	binary.LittleEndian.PutUint32(buf[20:24], math.Float32bits(edge))
	return buf
}

// PutOrientationParams encodes the 12-byte orientation uniform block: (w,
// h, octave) as u32.
func PutOrientationParams(w, h, octave uint32) []byte {
	buf := make([]byte, 12)
	binary.LittleEndian.PutUint32(buf[0:4], w)
	binary.LittleEndian.PutUint32(buf[4:8], h)
	binary.LittleEndian.PutUint32(buf[8:12], octave)
	return buf
}

// PutMatcherParams encodes the 16-byte base matcher uniform block:
// (countA, countB, pad, pad).
func PutMatcherParams(countA, countB uint32) []byte {
	return PutUniformU32x4(countA, countB, 0, 0)
}

// PutGuidedMatcherParams encodes the guided matcher uniform block: base
// matcher params, threshold (f32, padded to 16 bytes) and three float4
// columns of the fundamental matrix F, packed per the column convention
// col0={F0,F3,F6,0}, col1={F1,F4,F7,0}, col2={F2,F5,F8,0}.
func PutGuidedMatcherParams(countA, countB uint32, threshold float32, f [9]float32) []byte {
	buf := make([]byte, 16+16+16*3)
	copy(buf[0:16], PutMatcherParams(countA, countB))
	binary.LittleEndian.PutUint32(buf[16:20], math.Float32bits(threshold))
	cols := [3][4]float32{
		{f[0], f[3], f[6], 0},
		{f[1], f[4], f[7], 0},
		{f[2], f[5], f[8], 0},
	}
	off := 32
	for _, col := range cols {
		for _, v := range col {
			binary.LittleEndian.PutUint32(buf[off:off+4], math.Float32bits(v))
			off += 4
		}
	}
	return buf
}
