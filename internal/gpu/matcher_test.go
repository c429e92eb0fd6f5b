package gpu

import (
	"context"
	"math"
	"testing"
)

func TestRunBruteForceEmptyInputsShortCircuit(t *testing.T) {
	m := &Matcher{}
	results, err := m.RunBruteForce(context.Background(), nil, make([]float32, 128), false)
	if err != nil {
		t.Fatalf("err = %v, want nil", err)
	}
	if results != nil {
		t.Errorf("results = %v, want nil", results)
	}
}

func TestRunGuidedEmptyInputsShortCircuit(t *testing.T) {
	m := &Matcher{}
	results, err := m.RunGuided(context.Background(), make([]float32, 128), nil, nil, nil, [9]float32{}, 1.0, false)
	if err != nil {
		t.Fatalf("err = %v, want nil", err)
	}
	if results != nil {
		t.Errorf("results = %v, want nil", results)
	}
}

func TestMatcherCloseNil(t *testing.T) {
	var m *Matcher
	m.Close()
}

func TestMatcherPipelinesCloseNil(t *testing.T) {
	var p *MatcherPipelines
	p.Close()
}

func TestClampByte(t *testing.T) {
	tests := []struct {
		v    float32
		want uint8
	}{
		{-5, 0},
		{0, 0},
		{127.6, 127},
		{255, 255},
		{300, 255},
	}
	for _, tt := range tests {
		if got := clampByte(tt.v); got != tt.want {
			t.Errorf("clampByte(%v) = %d, want %d", tt.v, got, tt.want)
		}
	}
}

func TestEncodeDescriptorsFloatRoundTrip(t *testing.T) {
	desc := make([]float32, 128)
	for i := range desc {
		desc[i] = float32(i) * 0.25
	}
	encoded := encodeDescriptors(desc, false)
	if len(encoded) != FloatDescriptorSize {
		t.Fatalf("len = %d, want %d", len(encoded), FloatDescriptorSize)
	}
	got := DecodeFloatDescriptors(encoded, 1)
	for i, v := range desc {
		if got[i] != v {
			t.Errorf("got[%d] = %v, want %v", i, got[i], v)
		}
	}
}

func TestEncodeDescriptorsQuantizedRoundTrip(t *testing.T) {
	desc := make([]float32, 128)
	for i := range desc {
		desc[i] = float32((i * 7) % 256)
	}
	encoded := encodeDescriptors(desc, true)
	if len(encoded) != QuantizedDescriptorSize {
		t.Fatalf("len = %d, want %d", len(encoded), QuantizedDescriptorSize)
	}
	got := DecodeQuantizedDescriptors(encoded, 1)
	for i, v := range desc {
		if got[i] != v {
			t.Errorf("got[%d] = %v, want %v", i, got[i], v)
		}
	}
}

func TestEncodeDescriptorsQuantizedClamps(t *testing.T) {
	desc := make([]float32, 128)
	desc[0] = -10
	desc[1] = 999
	encoded := encodeDescriptors(desc, true)
	got := DecodeQuantizedDescriptors(encoded, 1)
	if got[0] != 0 {
		t.Errorf("got[0] = %v, want 0 (clamped)", got[0])
	}
	if got[1] != 255 {
		t.Errorf("got[1] = %v, want 255 (clamped)", got[1])
	}
}

func TestPutF32PutU32(t *testing.T) {
	buf := make([]byte, 4)
	putF32(buf, 3.5)
	if got := math.Float32frombits(uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16 | uint32(buf[3])<<24); got != 3.5 {
		t.Errorf("putF32 round trip = %v, want 3.5", got)
	}

	putU32(buf, 0xDEADBEEF)
	if got := uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16 | uint32(buf[3])<<24; got != 0xDEADBEEF {
		t.Errorf("putU32 round trip = %#x, want 0xDEADBEEF", got)
	}
}
