package gpu

import (
	"math"
	"testing"
)

func float32Close(a, b float32) bool {
	const eps = 1e-4
	return math.Abs(float64(a-b)) < eps
}

func TestSigma(t *testing.T) {
	tests := []struct {
		s    int
		want float32
	}{
		{0, 1.6},
		{3, 3.2},
		{6, 6.4},
	}
	for _, tt := range tests {
		if got := Sigma(tt.s); !float32Close(got, tt.want) {
			t.Errorf("Sigma(%d) = %v, want %v", tt.s, got, tt.want)
		}
	}
}

func TestPutDecodeKeypointRecord(t *testing.T) {
	rec := KeypointRecord{
		X: 12.5, Y: 34.25, Octave: 1, ScaleIndex: 2,
		Sigma: 2.4, Orientation: 1.57,
	}
	buf := make([]byte, KeypointRecordSize)
	PutKeypointRecord(buf, rec)
	got := DecodeKeypointRecord(buf)
	if got != rec {
		t.Errorf("round trip = %+v, want %+v", got, rec)
	}
}

func TestDecodeKeypointCountSaturates(t *testing.T) {
	buf := make([]byte, 4)
	putU32LE(buf, MaxKeypoints+500)
	if got := DecodeKeypointCount(buf); got != MaxKeypoints {
		t.Errorf("DecodeKeypointCount = %d, want %d", got, MaxKeypoints)
	}
}

func putU32LE(dst []byte, v uint32) {
	dst[0] = byte(v)
	dst[1] = byte(v >> 8)
	dst[2] = byte(v >> 16)
	dst[3] = byte(v >> 24)
}

func TestEncodeQuantizedWordAndDecode(t *testing.T) {
	word := EncodeQuantizedWord(10, 200, 255, 0)
	buf := make([]byte, QuantizedDescriptorSize)
	putU32LE(buf[0:4], word)

	got := DecodeQuantizedDescriptors(buf, 1)
	want := []float32{10, 200, 255, 0}
	for i, w := range want {
		if got[i] != w {
			t.Errorf("byte %d = %v, want %v", i, got[i], w)
		}
	}
}

func TestDecodeFloatDescriptors(t *testing.T) {
	const count = 2
	buf := make([]byte, count*FloatDescriptorSize)
	for i := 0; i < count*128; i++ {
		v := float32(i) * 0.5
		bits := math.Float32bits(v)
		putU32LE(buf[i*4:i*4+4], bits)
	}
	got := DecodeFloatDescriptors(buf, count)
	if len(got) != count*128 {
		t.Fatalf("len = %d, want %d", len(got), count*128)
	}
	for i := 0; i < count*128; i++ {
		want := float32(i) * 0.5
		if got[i] != want {
			t.Errorf("got[%d] = %v, want %v", i, got[i], want)
		}
	}
}

func TestDecodeIndirectDispatchArgs(t *testing.T) {
	buf := make([]byte, IndirectDispatchSize)
	vals := []uint32{1, 2, 3, 4, 5, 6}
	for i, v := range vals {
		putU32LE(buf[i*4:i*4+4], v)
	}
	got := DecodeIndirectDispatchArgs(buf)
	want := IndirectDispatchArgs{
		OrientationX: 1, OrientationY: 2, OrientationZ: 3,
		DescriptorX: 4, DescriptorY: 5, DescriptorZ: 6,
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestDecodeMatchResults(t *testing.T) {
	buf := make([]byte, 2*MatchResultSize)
	putU32LE(buf[0:4], uint32(int32(-1)))
	putU32LE(buf[4:8], math.Float32bits(0))
	putU32LE(buf[8:12], math.Float32bits(0))
	putU32LE(buf[16:20], uint32(int32(7)))
	putU32LE(buf[20:24], math.Float32bits(1.5))
	putU32LE(buf[24:28], math.Float32bits(3.0))

	got := DecodeMatchResults(buf, 2)
	if got[0].BestIdx != -1 {
		t.Errorf("got[0].BestIdx = %d, want -1", got[0].BestIdx)
	}
	if got[1].BestIdx != 7 || !float32Close(got[1].BestDistSq, 1.5) || !float32Close(got[1].SecondDistSq, 3.0) {
		t.Errorf("got[1] = %+v, want BestIdx=7 BestDistSq=1.5 SecondDistSq=3.0", got[1])
	}
}

func TestPutGuidedMatcherParamsLayout(t *testing.T) {
	f := [9]float32{1, 2, 3, 4, 5, 6, 7, 8, 9}
	buf := PutGuidedMatcherParams(10, 20, 0.5, f)
	if len(buf) != 16+16+16*3 {
		t.Fatalf("len = %d, want %d", len(buf), 16+16+16*3)
	}

	readU32 := func(off int) uint32 {
		return uint32(buf[off]) | uint32(buf[off+1])<<8 | uint32(buf[off+2])<<16 | uint32(buf[off+3])<<24
	}
	readF32 := func(off int) float32 {
		return math.Float32frombits(readU32(off))
	}

	if readU32(0) != 10 || readU32(4) != 20 {
		t.Errorf("countA/countB = %d/%d, want 10/20", readU32(0), readU32(4))
	}
	if !float32Close(readF32(16), 0.5) {
		t.Errorf("threshold = %v, want 0.5", readF32(16))
	}
	col0 := [4]float32{readF32(32), readF32(36), readF32(40), readF32(44)}
	want0 := [4]float32{1, 4, 7, 0}
	if col0 != want0 {
		t.Errorf("col0 = %v, want %v", col0, want0)
	}
	col2 := [4]float32{readF32(64), readF32(68), readF32(72), readF32(76)}
	want2 := [4]float32{3, 6, 9, 0}
	if col2 != want2 {
		t.Errorf("col2 = %v, want %v", col2, want2)
	}
}
