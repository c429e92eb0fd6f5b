package sift

import (
	"errors"
	"math"
	"testing"

	"github.com/gogpu/sift/internal/gpu"
)

func TestFilterRatioTestKeepsDistinctBest(t *testing.T) {
	results := []gpu.MatchResult{
		{BestIdx: 3, BestDistSq: 1.0, SecondDistSq: 4.0},  // 1.0 < 0.64*4.0 -> kept
		{BestIdx: 5, BestDistSq: 3.9, SecondDistSq: 4.0},  // 3.9 >= 0.64*4.0 -> dropped
		{BestIdx: -1, BestDistSq: 0, SecondDistSq: 0},     // no candidate -> dropped
	}
	matches := filterRatioTest(results, 0.8)
	if len(matches) != 1 {
		t.Fatalf("len(matches) = %d, want 1", len(matches))
	}
	if matches[0].QueryIdx != 0 || matches[0].TrainIdx != 3 {
		t.Errorf("match = %+v, want QueryIdx=0 TrainIdx=3", matches[0])
	}
	wantDist := float32(math.Sqrt(1.0))
	if matches[0].Distance != wantDist {
		t.Errorf("Distance = %v, want %v", matches[0].Distance, wantDist)
	}
}

func TestFilterRatioTestEmpty(t *testing.T) {
	if got := filterRatioTest(nil, 0.8); got != nil {
		t.Errorf("filterRatioTest(nil) = %v, want nil", got)
	}
}

func TestToGPUPoints(t *testing.T) {
	pts := []Point2{{X: 1, Y: 2}, {X: 3, Y: 4}}
	got := toGPUPoints(pts)
	want := []gpu.Point2{{X: 1, Y: 2}, {X: 3, Y: 4}}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestMatchInvalidDescriptorLength(t *testing.T) {
	m := &Matcher{log: Logger()}
	_, err := m.Match(nil, make([]float32, 127), make([]float32, 128), 0.8, false)
	if !errors.Is(err, ErrInvalidDescriptorLength) {
		t.Errorf("err = %v, want ErrInvalidDescriptorLength", err)
	}
}

func TestMatchEmptyInputsReturnNil(t *testing.T) {
	m := &Matcher{log: Logger()}
	matches, err := m.Match(nil, nil, make([]float32, 128), 0.8, false)
	if err != nil {
		t.Fatalf("err = %v, want nil", err)
	}
	if matches != nil {
		t.Errorf("matches = %v, want nil", matches)
	}
}

func TestMatchGuidedKeypointCountMismatch(t *testing.T) {
	m := &Matcher{log: Logger()}
	descA := make([]float32, 128)
	descB := make([]float32, 128)
	kpsA := []Point2{{X: 0, Y: 0}, {X: 1, Y: 1}}
	kpsB := []Point2{{X: 0, Y: 0}}
	_, err := m.MatchGuided(nil, descA, kpsA, descB, kpsB, [9]float32{}, 1.0, 0.8)
	if err == nil {
		t.Error("expected error on keypoint/descriptor count mismatch")
	}
}

func TestCloseNilMatcher(t *testing.T) {
	var m *Matcher
	if err := m.Close(); err != nil {
		t.Errorf("Close on nil Matcher = %v, want nil", err)
	}
}
