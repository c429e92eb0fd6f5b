package gpu

import (
	"math"
	"testing"
)

func TestKernelRadius(t *testing.T) {
	tests := []struct {
		sigma float32
		want  int
	}{
		{1.6, 5},
		{0.5, 2},
		{3.2, 10},
	}
	for _, tt := range tests {
		if got := KernelRadius(tt.sigma); got != tt.want {
			t.Errorf("KernelRadius(%v) = %d, want %d", tt.sigma, got, tt.want)
		}
	}
}

func TestBuildKernelWeightsNormalizedAndSymmetric(t *testing.T) {
	weights := BuildKernelWeights(1.6, 5)
	if len(weights) != 11 {
		t.Fatalf("len = %d, want 11", len(weights))
	}

	var sum float64
	for _, w := range weights {
		sum += float64(w)
	}
	if math.Abs(sum-1) > 1e-5 {
		t.Errorf("sum = %v, want ~1", sum)
	}

	for i := 0; i < len(weights)/2; i++ {
		j := len(weights) - 1 - i
		if math.Abs(float64(weights[i]-weights[j])) > 1e-6 {
			t.Errorf("weights[%d]=%v != weights[%d]=%v, kernel should be symmetric", i, weights[i], j, weights[j])
		}
	}

	mid := len(weights) / 2
	for i := 0; i < mid; i++ {
		if weights[i] > weights[i+1] {
			t.Errorf("weights not monotonically increasing toward center at index %d", i)
		}
	}
}

func TestKernelKeyCollapsesRoundingNoise(t *testing.T) {
	a := kernelKey(1.600001, 5)
	b := kernelKey(1.600002, 5)
	if a != b {
		t.Errorf("kernelKey should collapse sub-4-decimal noise: %q != %q", a, b)
	}

	c := kernelKey(1.6, 6)
	if a == c {
		t.Errorf("kernelKey should distinguish different radii: %q == %q", a, c)
	}
}
