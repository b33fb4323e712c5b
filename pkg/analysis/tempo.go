package analysis

import "math"

// TempoResult holds the estimated global tempo and the placed beats.
type TempoResult struct {
	BPM   float64   // 0 when no rhythm was detected
	Beats []float64 // beat timestamps in seconds, strictly increasing
}

// TempoTracker estimates a global tempo from the onset-strength series via
// autocorrelation, then places beats at onset peaks consistent with that
// tempo.
type TempoTracker struct {
	minBPM       float64
	maxBPM       float64
	policy       OctavePolicy
	minBeatSepMs float64
}

// NewTempoTracker creates a tracker from the engine configuration.
func NewTempoTracker(cfg Config) *TempoTracker {
	return &TempoTracker{
		minBPM:       cfg.TempoMinBPM,
		maxBPM:       cfg.TempoMaxBPM,
		policy:       cfg.OctavePolicy,
		minBeatSepMs: cfg.MinBeatSeparationMs,
	}
}

// Tuning constants for periodicity scoring and beat acceptance.
const (
	// priorSigmaOctaves is the width of the log-normal tempo prior applied
	// to autocorrelation scores. The prior is centered on the geometric
	// mean of the configured tempo range and breaks the exact harmonic
	// ties a regular pulse train produces at multiples of its period.
	priorSigmaOctaves = 1.0
	// harmonicWeight is the weighted-score fraction a half/double-tempo lag
	// must reach for the octave policy to override the best lag.
	harmonicWeight = 0.95
	// harmonicSearch is the relative search width around an exact harmonic lag.
	harmonicSearch = 0.1
	// beatThresholdK scales the local stddev in the peak acceptance threshold.
	beatThresholdK = 0.5
	// beatStatsWindowSec is the neighborhood for local onset statistics.
	beatStatsWindowSec = 4.0
	// phaseTolerance is the relative deviation from the running period above
	// which the period nudges toward the observed inter-beat spacing.
	phaseTolerance = 0.1
	// phaseAlpha is the nudge rate toward the observed spacing.
	phaseAlpha = 0.25
	// minPeakSepFactor scales the running period into the minimum spacing
	// between accepted beats.
	minPeakSepFactor = 0.75
)

// Track estimates tempo and beats from feature frames. hopDur is the time
// between consecutive frames in seconds.
//
// A uniformly near-silent onset series yields BPM 0 and no beats; the
// tracker never fabricates a rhythm.
func (t *TempoTracker) Track(frames []FeatureFrame, hopDur float64) TempoResult {
	onset := make([]float64, len(frames))
	peak := 0.0
	for i := range frames {
		onset[i] = frames[i].OnsetStrength
		if onset[i] > peak {
			peak = onset[i]
		}
	}
	if peak <= onsetEpsilon {
		return TempoResult{}
	}

	minLag := int(math.Round(60 / (t.maxBPM * hopDur)))
	if minLag < 1 {
		minLag = 1
	}
	maxLag := int(math.Round(60 / (t.minBPM * hopDur)))
	if maxLag > len(onset)-1 {
		maxLag = len(onset) - 1
	}
	if maxLag <= minLag {
		// Too short to observe even one beat period.
		return TempoResult{}
	}

	scores := autocorrelate(onset, minLag, maxLag)
	t.applyTempoPrior(scores, minLag, hopDur)
	bestLag := bestPeriodLag(scores, minLag, maxLag)
	if bestLag == 0 || scores[bestLag-minLag] <= 0 {
		return TempoResult{}
	}
	bestLag = t.applyOctavePolicy(scores, bestLag, minLag, maxLag)

	bpm := 60 / (float64(bestLag) * hopDur)
	beats := t.pickBeats(onset, bestLag, minLag, maxLag, hopDur)
	return TempoResult{BPM: bpm, Beats: beats}
}

// autocorrelate returns mean-removed autocorrelation scores for lags
// minLag..maxLag inclusive, each normalized by its overlap length.
func autocorrelate(x []float64, minLag, maxLag int) []float64 {
	mean := 0.0
	for _, v := range x {
		mean += v
	}
	mean /= float64(len(x))

	scores := make([]float64, maxLag-minLag+1)
	for lag := minLag; lag <= maxLag; lag++ {
		sum := 0.0
		n := len(x) - lag
		for i := 0; i < n; i++ {
			sum += (x[i] - mean) * (x[i+lag] - mean)
		}
		scores[lag-minLag] = sum / float64(n)
	}
	return scores
}

// applyTempoPrior scales positive scores by a log-normal prior over BPM,
// centered on the geometric mean of the configured range. A regular pulse
// train correlates equally at every multiple of its period; the prior makes
// the mid-range candidate win those ties deterministically instead of
// sliding to the range edge.
func (t *TempoTracker) applyTempoPrior(scores []float64, minLag int, hopDur float64) {
	center := math.Sqrt(t.minBPM * t.maxBPM)
	for i := range scores {
		if scores[i] <= 0 {
			continue
		}
		bpm := 60 / (float64(minLag+i) * hopDur)
		octaves := math.Log2(bpm/center) / priorSigmaOctaves
		scores[i] *= math.Exp(-0.5 * octaves * octaves)
	}
}

// bestPeriodLag returns the lag with the maximum score, or 0 if the scores
// are empty. Scanning order makes ties resolve to the smaller lag, which is
// then subject to the octave policy.
func bestPeriodLag(scores []float64, minLag, maxLag int) int {
	best := 0
	bestScore := math.Inf(-1)
	for lag := minLag; lag <= maxLag; lag++ {
		if s := scores[lag-minLag]; s > bestScore {
			bestScore = s
			best = lag
		}
	}
	return best
}

// applyOctavePolicy resolves half/double tempo ambiguity deterministically.
// A harmonic candidate replaces the best lag only when its score reaches
// harmonicWeight of the best score within the harmonic-ambiguity window.
func (t *TempoTracker) applyOctavePolicy(scores []float64, bestLag, minLag, maxLag int) int {
	if t.policy == OctavePreferNone {
		return bestLag
	}
	target := bestLag * 2 // longer lag = lower BPM
	if t.policy == OctavePreferHigher {
		target = bestLag / 2
	}
	if target < minLag || target > maxLag {
		return bestLag
	}

	width := int(float64(target) * harmonicSearch)
	lo, hi := target-width, target+width
	if lo < minLag {
		lo = minLag
	}
	if hi > maxLag {
		hi = maxLag
	}
	cand := 0
	candScore := math.Inf(-1)
	for lag := lo; lag <= hi; lag++ {
		if s := scores[lag-minLag]; s > candScore {
			candScore = s
			cand = lag
		}
	}
	if cand != 0 && candScore >= harmonicWeight*scores[bestLag-minLag] {
		return cand
	}
	return bestLag
}

// pickBeats walks the onset series in time order and accepts local peaks
// that exceed a local mean+k*stddev threshold and keep a tempo-consistent
// spacing. The running period nudges toward the observed spacing when the
// deviation exceeds the phase tolerance.
func (t *TempoTracker) pickBeats(onset []float64, periodLag, minLag, maxLag int, hopDur float64) []float64 {
	stats := newRollingStats(onset, int(beatStatsWindowSec/hopDur))

	period := float64(periodLag)
	minSepFloor := t.minBeatSepMs / 1000 / hopDur

	var beats []float64
	lastIdx := -1
	for i := 1; i < len(onset)-1; i++ {
		if onset[i] <= onset[i-1] || onset[i] < onset[i+1] {
			continue
		}
		mean, std := stats.at(i)
		if onset[i] < mean+beatThresholdK*std {
			continue
		}
		if lastIdx >= 0 {
			minSep := minPeakSepFactor * period
			if minSepFloor > minSep {
				minSep = minSepFloor
			}
			spacing := float64(i - lastIdx)
			if spacing < minSep {
				continue
			}
			if math.Abs(spacing-period) > phaseTolerance*period && spacing < 2*period {
				period += phaseAlpha * (spacing - period)
				if period < float64(minLag) {
					period = float64(minLag)
				}
				if period > float64(maxLag) {
					period = float64(maxLag)
				}
			}
		}
		beats = append(beats, float64(i)*hopDur)
		lastIdx = i
	}
	return beats
}

// rollingStats serves mean and stddev of a centered window via prefix sums.
type rollingStats struct {
	x      []float64
	prefix []float64 // prefix sums of x
	sq     []float64 // prefix sums of x^2
	half   int
}

func newRollingStats(x []float64, window int) *rollingStats {
	if window < 2 {
		window = 2
	}
	prefix := make([]float64, len(x)+1)
	sq := make([]float64, len(x)+1)
	for i, v := range x {
		prefix[i+1] = prefix[i] + v
		sq[i+1] = sq[i] + v*v
	}
	return &rollingStats{x: x, prefix: prefix, sq: sq, half: window / 2}
}

func (r *rollingStats) at(i int) (mean, std float64) {
	lo := i - r.half
	if lo < 0 {
		lo = 0
	}
	hi := i + r.half
	if hi > len(r.x) {
		hi = len(r.x)
	}
	n := float64(hi - lo)
	sum := r.prefix[hi] - r.prefix[lo]
	sumSq := r.sq[hi] - r.sq[lo]
	mean = sum / n
	variance := sumSq/n - mean*mean
	if variance < 0 {
		variance = 0
	}
	return mean, math.Sqrt(variance)
}
