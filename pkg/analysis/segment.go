package analysis

import (
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Segmenter detects coarse structural boundaries (verse/chorus-like
// transitions) from the per-frame feature sequence.
//
// Features are aggregated into fixed-duration windows, each summarized by a
// {meanEnergy, meanCentroid, meanFlux} vector. The novelty curve is the
// Euclidean distance between consecutive summary vectors after per-dimension
// standardization; its thresholded local maxima become boundaries.
type Segmenter struct {
	windowSec float64
	threshold float64
	minSepSec float64
}

// NewSegmenter creates a segmenter from the engine configuration.
func NewSegmenter(cfg Config) *Segmenter {
	return &Segmenter{
		windowSec: cfg.SegmentWindowSec,
		threshold: cfg.NoveltyThreshold,
		minSepSec: cfg.MinBoundarySeparationSec,
	}
}

const noveltyEpsilon = 1e-9

// Boundaries returns structural boundary timestamps in strictly increasing
// order. A boundary marks an internal transition: 0 and the signal duration
// are never emitted. Very short or homogeneous signals yield none.
func (s *Segmenter) Boundaries(frames []FeatureFrame, hopDur, duration float64) []float64 {
	perWindow := int(s.windowSec / hopDur)
	if perWindow < 1 {
		perWindow = 1
	}
	numWindows := len(frames) / perWindow
	if numWindows < 2 {
		return nil
	}

	// One summary vector per window, standardized per dimension so no single
	// feature scale dominates the distance.
	dims := 3
	summaries := make([][]float64, numWindows)
	for w := range numWindows {
		energy := make([]float64, perWindow)
		centroid := make([]float64, perWindow)
		flux := make([]float64, perWindow)
		for j := range perWindow {
			f := frames[w*perWindow+j]
			energy[j] = f.Energy
			centroid[j] = f.SpectralCentroid
			flux[j] = f.SpectralFlux
		}
		summaries[w] = []float64{stat.Mean(energy, nil), stat.Mean(centroid, nil), stat.Mean(flux, nil)}
	}
	for d := range dims {
		col := make([]float64, numWindows)
		for w := range numWindows {
			col[w] = summaries[w][d]
		}
		mean, std := stat.MeanStdDev(col, nil)
		if std <= noveltyEpsilon {
			for w := range numWindows {
				summaries[w][d] = 0
			}
			continue
		}
		for w := range numWindows {
			summaries[w][d] = (summaries[w][d] - mean) / std
		}
	}

	novelty := make([]float64, numWindows-1)
	for w := 1; w < numWindows; w++ {
		novelty[w-1] = floats.Distance(summaries[w-1], summaries[w], 2)
	}
	max := floats.Max(novelty)
	if max <= noveltyEpsilon {
		return nil
	}
	floats.Scale(1/max, novelty)

	return s.pickBoundaries(novelty, duration)
}

// pickBoundaries selects thresholded local maxima of the novelty curve with
// the configured minimum separation, strongest first.
func (s *Segmenter) pickBoundaries(novelty []float64, duration float64) []float64 {
	type candidate struct {
		idx int
		val float64
	}
	var cands []candidate
	for j, v := range novelty {
		if v < s.threshold {
			continue
		}
		if j > 0 && novelty[j-1] >= v {
			continue
		}
		if j < len(novelty)-1 && novelty[j+1] > v {
			continue
		}
		// novelty[j] sits between window j and j+1
		t := float64(j+1) * s.windowSec
		if t <= 0 || t >= duration {
			continue
		}
		cands = append(cands, candidate{idx: j, val: v})
	}
	sort.Slice(cands, func(a, b int) bool {
		if cands[a].val != cands[b].val {
			return cands[a].val > cands[b].val
		}
		return cands[a].idx < cands[b].idx
	})

	var times []float64
	for _, c := range cands {
		t := float64(c.idx+1) * s.windowSec
		ok := true
		for _, accepted := range times {
			if diff := t - accepted; diff < s.minSepSec && diff > -s.minSepSec {
				ok = false
				break
			}
		}
		if ok {
			times = append(times, t)
		}
	}
	sort.Float64s(times)
	return times
}
