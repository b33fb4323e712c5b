package analysis

import (
	"math"
	"testing"
)

// makeSectionFrames returns feature frames whose energy and centroid jump at
// each section change. Sections are given as (duration, energy, centroid)
// triples.
func makeSectionFrames(sections [][3]float64) []FeatureFrame {
	var frames []FeatureFrame
	t := 0.0
	for _, s := range sections {
		n := int(s[0] / testHopDur)
		for range n {
			frames = append(frames, FeatureFrame{
				Time:             t,
				Energy:           s[1],
				SpectralCentroid: s[2],
				SpectralFlux:     s[1] * 0.1,
			})
			t += testHopDur
		}
	}
	return frames
}

func TestSegmenterTwoSections(t *testing.T) {
	// 30s quiet-dark then 30s loud-bright: one boundary near 30s.
	frames := makeSectionFrames([][3]float64{
		{30, 0.05, 400},
		{30, 0.6, 3000},
	})

	seg := NewSegmenter(testConfig())
	boundaries := seg.Boundaries(frames, testHopDur, 60)

	if len(boundaries) == 0 {
		t.Fatal("expected a boundary at the section change, got none")
	}
	found := false
	for _, b := range boundaries {
		if math.Abs(b-30) <= 2*testConfig().SegmentWindowSec {
			found = true
		}
	}
	if !found {
		t.Errorf("no boundary near 30s, got %v", boundaries)
	}
}

func TestSegmenterHomogeneous(t *testing.T) {
	// Uniform material has a flat novelty curve and no boundaries.
	frames := makeSectionFrames([][3]float64{{60, 0.3, 1500}})

	seg := NewSegmenter(testConfig())
	if got := seg.Boundaries(frames, testHopDur, 60); len(got) != 0 {
		t.Errorf("homogeneous signal produced boundaries: %v", got)
	}
}

func TestSegmenterExcludesEndpoints(t *testing.T) {
	frames := makeSectionFrames([][3]float64{
		{20, 0.05, 400},
		{20, 0.6, 3000},
		{20, 0.1, 800},
	})
	duration := 60.0

	seg := NewSegmenter(testConfig())
	boundaries := seg.Boundaries(frames, testHopDur, duration)

	for _, b := range boundaries {
		if b <= 0 || b >= duration {
			t.Errorf("boundary %g outside open interval (0, %g)", b, duration)
		}
	}
}

func TestSegmenterStrictlyIncreasingAndSeparated(t *testing.T) {
	frames := makeSectionFrames([][3]float64{
		{15, 0.05, 400},
		{15, 0.6, 3000},
		{15, 0.1, 800},
		{15, 0.7, 2500},
	})

	cfg := testConfig()
	seg := NewSegmenter(cfg)
	boundaries := seg.Boundaries(frames, testHopDur, 60)

	for i := 1; i < len(boundaries); i++ {
		gap := boundaries[i] - boundaries[i-1]
		if gap <= 0 {
			t.Fatalf("boundaries not strictly increasing: %v", boundaries)
		}
		if gap < cfg.MinBoundarySeparationSec {
			t.Errorf("boundary gap %g below minimum %g", gap, cfg.MinBoundarySeparationSec)
		}
	}
}

func TestSegmenterTooShort(t *testing.T) {
	// Fewer than two aggregation windows: nothing to compare.
	frames := makeSectionFrames([][3]float64{{2, 0.3, 1500}})
	seg := NewSegmenter(testConfig())
	if got := seg.Boundaries(frames, testHopDur, 2); got != nil {
		t.Errorf("short signal produced boundaries: %v", got)
	}
}
