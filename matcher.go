package sift

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/sift/internal/gpu"
)

// Matcher performs brute-force L2 nearest-neighbor matching between two
// descriptor sets with Lowe's ratio test, optionally gated by a fundamental
// matrix for epipolar-guided matching. A Matcher is independent of any
// Detector: it only needs a device, and the descriptor encoding (float vs.
// quantized) is chosen per call via the quantized argument rather than
// fixed at construction.
type Matcher struct {
	mu   sync.Mutex
	impl *gpu.Matcher
	log  *slog.Logger
}

// NewMatcher compiles every matching pipeline variant (brute-force and
// guided, float and quantized) on device/queue.
func NewMatcher(device hal.Device, queue hal.Queue) (*Matcher, error) {
	impl, err := gpu.NewMatcher(device, queue)
	if err != nil {
		return nil, fmt.Errorf("sift: new matcher: %w", err)
	}
	return &Matcher{impl: impl, log: Logger()}, nil
}

// Close destroys every GPU resource the matcher owns.
func (m *Matcher) Close() error {
	if m == nil {
		return nil
	}
	m.impl.Close()
	return nil
}

// Match runs brute-force nearest/second-nearest L2 search of descB for
// every query in descA (each a flat slice of 128-float records, as
// returned by Detector.ReadbackDescriptors) and applies Lowe's ratio test:
// a query's best match is kept iff bestDistSq < ratio^2 * secondDistSq.
// quantized selects the in-shader distance computation (byte-wise over the
// packed representation vs. direct float L2); it does not require the
// caller's slices to already be packed — quantized-mode descriptors are
// still passed as widened [0,255] floats, matching ReadbackDescriptors'
// convention, and are re-packed before upload.
func (m *Matcher) Match(ctx context.Context, descA, descB []float32, ratio float32, quantized bool) ([]Match, error) {
	if len(descA)%128 != 0 || len(descB)%128 != 0 {
		return nil, ErrInvalidDescriptorLength
	}
	if len(descA) == 0 || len(descB) == 0 {
		return nil, nil
	}

	if !m.mu.TryLock() {
		return nil, ErrMatchInProgress
	}
	defer m.mu.Unlock()

	results, err := m.impl.RunBruteForce(ctx, descA, descB, quantized)
	if err != nil {
		return nil, fmt.Errorf("sift: match: %w", err)
	}
	matches := filterRatioTest(results, ratio)
	m.log.Debug("sift match complete", "queries", len(descA)/128, "candidates", len(descB)/128, "matches", len(matches))
	return matches, nil
}

// MatchGuided is Match's epipolar-gated counterpart: a candidate q_j is
// only considered for query p_i if the point-to-epipolar-line distance
// |l . q_j| / ||l_xy|| is <= threshold, where l = F * p_i (both points
// homogeneous with w=1). F is row-major, 9 floats. The ratio test is
// applied identically to Match afterward.
func (m *Matcher) MatchGuided(ctx context.Context, descA []float32, kpsA []Point2, descB []float32, kpsB []Point2, f [9]float32, threshold, ratio float32) ([]Match, error) {
	if len(descA)%128 != 0 || len(descB)%128 != 0 {
		return nil, ErrInvalidDescriptorLength
	}
	if len(descA)/128 != len(kpsA) || len(descB)/128 != len(kpsB) {
		return nil, fmt.Errorf("sift: match guided: keypoint count does not match descriptor count")
	}
	if len(descA) == 0 || len(descB) == 0 {
		return nil, nil
	}

	if !m.mu.TryLock() {
		return nil, ErrMatchInProgress
	}
	defer m.mu.Unlock()

	gpuKpsA := toGPUPoints(kpsA)
	gpuKpsB := toGPUPoints(kpsB)
	// The guided contract takes no quantized argument; it always runs the
	// float-distance variant.
	results, err := m.impl.RunGuided(ctx, descA, descB, gpuKpsA, gpuKpsB, f, threshold, false)
	if err != nil {
		return nil, fmt.Errorf("sift: match guided: %w", err)
	}
	matches := filterRatioTest(results, ratio)
	m.log.Debug("sift match_guided complete", "queries", len(descA)/128, "candidates", len(descB)/128, "matches", len(matches))
	return matches, nil
}

func toGPUPoints(pts []Point2) []gpu.Point2 {
	out := make([]gpu.Point2, len(pts))
	for i, p := range pts {
		out[i] = gpu.Point2{X: p.X, Y: p.Y}
	}
	return out
}

// filterRatioTest keeps result i iff bestIdx >= 0 and
// bestDistSq < ratio^2 * secondDistSq, emitting distance = sqrt(bestDistSq).
func filterRatioTest(results []gpu.MatchResult, ratio float32) []Match {
	var out []Match
	ratioSq := ratio * ratio
	for i, r := range results {
		if r.BestIdx < 0 {
			continue
		}
		if r.BestDistSq >= ratioSq*r.SecondDistSq {
			continue
		}
		out = append(out, Match{
			QueryIdx: int32(i),
			TrainIdx: r.BestIdx,
			Distance: float32(math.Sqrt(float64(r.BestDistSq))),
		})
	}
	return out
}
