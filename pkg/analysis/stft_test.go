package analysis

import (
	"math"
	"testing"
)

func TestSpectralTransformerBins(t *testing.T) {
	for _, size := range []int{256, 1024, 2048, 4096} {
		tr := NewSpectralTransformer(size)
		if got, want := tr.NumBins(), size/2+1; got != want {
			t.Errorf("NumBins(%d) = %d, want %d", size, got, want)
		}
	}
}

func TestSpectralTransformerSinePeak(t *testing.T) {
	// A pure tone's spectral peak must land in the bin nearest its frequency.
	const frameSize = 2048
	const freq = 1000.0

	frame := make([]float64, frameSize)
	window := hannWindow(frameSize)
	for i := range frame {
		frame[i] = math.Sin(2*math.Pi*freq*float64(i)/testSampleRate) * window[i]
	}

	tr := NewSpectralTransformer(frameSize)
	mags := tr.Magnitudes(frame, make([]float64, tr.NumBins()))

	peakBin := 0
	for k := range mags {
		if mags[k] > mags[peakBin] {
			peakBin = k
		}
	}

	wantBin := int(math.Round(freq * frameSize / testSampleRate))
	if peakBin < wantBin-1 || peakBin > wantBin+1 {
		t.Errorf("peak bin = %d (%.0f Hz), want ~%d (%.0f Hz)",
			peakBin, tr.BinFrequency(peakBin, testSampleRate),
			wantBin, tr.BinFrequency(wantBin, testSampleRate))
	}
}

func TestSpectralTransformerDeterministic(t *testing.T) {
	const frameSize = 1024
	frame := makeNoise(float64(frameSize)/testSampleRate+0.001, 0.5, 3).Samples[:frameSize]

	a := NewSpectralTransformer(frameSize)
	b := NewSpectralTransformer(frameSize)
	magsA := a.Magnitudes(frame, make([]float64, a.NumBins()))
	magsB := b.Magnitudes(frame, make([]float64, b.NumBins()))

	for k := range magsA {
		if magsA[k] != magsB[k] {
			t.Fatalf("bin %d differs between identical runs: %g vs %g", k, magsA[k], magsB[k])
		}
	}
}

func TestSpectralTransformerSilence(t *testing.T) {
	tr := NewSpectralTransformer(1024)
	mags := tr.Magnitudes(make([]float64, 1024), make([]float64, tr.NumBins()))
	for k, m := range mags {
		if m != 0 {
			t.Fatalf("bin %d = %g for silent frame, want 0", k, m)
		}
	}
}

func TestBinFrequency(t *testing.T) {
	tr := NewSpectralTransformer(2048)
	if got := tr.BinFrequency(0, testSampleRate); got != 0 {
		t.Errorf("BinFrequency(0) = %g, want 0", got)
	}
	// Nyquist bin.
	if got, want := tr.BinFrequency(1024, testSampleRate), float64(testSampleRate)/2; got != want {
		t.Errorf("BinFrequency(nyquist) = %g, want %g", got, want)
	}
}
