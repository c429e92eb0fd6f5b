package sift

import "testing"

func TestOptionsNormalizedFillsDefaults(t *testing.T) {
	got := Options{}.normalized()
	if got.ContrastThreshold != DefaultContrastThreshold {
		t.Errorf("ContrastThreshold = %v, want %v", got.ContrastThreshold, DefaultContrastThreshold)
	}
	if got.EdgeThreshold != DefaultEdgeThreshold {
		t.Errorf("EdgeThreshold = %v, want %v", got.EdgeThreshold, DefaultEdgeThreshold)
	}
}

func TestOptionsNormalizedPreservesExplicitValues(t *testing.T) {
	opts := Options{ContrastThreshold: 0.05, EdgeThreshold: 12}
	got := opts.normalized()
	if got.ContrastThreshold != 0.05 {
		t.Errorf("ContrastThreshold = %v, want 0.05", got.ContrastThreshold)
	}
	if got.EdgeThreshold != 12 {
		t.Errorf("EdgeThreshold = %v, want 12", got.EdgeThreshold)
	}
}

func TestLayoutString(t *testing.T) {
	tests := []struct {
		l    Layout
		want string
	}{
		{LayoutPerPixel, "per-pixel"},
		{LayoutPacked, "packed"},
		{Layout(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.l.String(); got != tt.want {
			t.Errorf("Layout(%d).String() = %q, want %q", int(tt.l), got, tt.want)
		}
	}
}
