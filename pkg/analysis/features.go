package analysis

// FeatureFrame holds the scalar features derived from one analysis frame.
// Frames are produced in time order and are read-only for later stages.
type FeatureFrame struct {
	Time             float64 // frame start in seconds
	Energy           float64 // RMS of the raw time-domain frame
	SpectralCentroid float64 // weighted mean frequency in Hz
	SpectralFlux     float64 // half-wave rectified spectral change
	OnsetStrength    float64 // flux normalized by its short moving average
}

// spectralCentroid returns the magnitude-weighted mean frequency in Hz.
// A silent spectrum has centroid 0, not NaN.
func spectralCentroid(mags []float64, sampleRate, frameSize int) float64 {
	binHz := float64(sampleRate) / float64(frameSize)
	weighted := 0.0
	total := 0.0
	for k, m := range mags {
		weighted += float64(k) * binHz * m
		total += m
	}
	if total == 0 {
		return 0
	}
	return weighted / total
}

// spectralFlux returns the sum of positive per-bin magnitude increases from
// prev to cur. Only energy rises count, so onsets weigh more than decays.
// The first frame has no predecessor and gets flux 0 (pass prev == nil).
func spectralFlux(cur, prev []float64) float64 {
	if prev == nil {
		return 0
	}
	sum := 0.0
	for k := range cur {
		if d := cur[k] - prev[k]; d > 0 {
			sum += d
		}
	}
	return sum
}

// onsetEpsilon guards the moving-average divisor for near-silent flux.
const onsetEpsilon = 1e-9

// fillOnsetStrength computes OnsetStrength for every frame from its
// SpectralFlux: the flux over its trailing moving average, minus one,
// half-wave rectified. Dividing by the local average suppresses slow
// dynamic-range drift, so quiet and loud passages contribute onsets on an
// equal footing. window is the moving-average length in frames.
func fillOnsetStrength(frames []FeatureFrame, window int) {
	if window < 1 {
		window = 1
	}
	sum := 0.0
	for i := range frames {
		sum += frames[i].SpectralFlux
		if i >= window {
			sum -= frames[i-window].SpectralFlux
		}
		n := i + 1
		if n > window {
			n = window
		}
		avg := sum / float64(n)
		if avg <= onsetEpsilon {
			frames[i].OnsetStrength = 0
			continue
		}
		if r := frames[i].SpectralFlux/avg - 1; r > 0 {
			frames[i].OnsetStrength = r
		} else {
			frames[i].OnsetStrength = 0
		}
	}
}
