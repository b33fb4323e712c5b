package analysis

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// SpectralTransformer maps a windowed time-domain frame to its magnitude
// spectrum. Bin count is frameSize/2 + 1; the DC and Nyquist bins are kept.
//
// Magnitudes are linear amplitude, sqrt(re^2+im^2), not power, so downstream
// feature formulas stay linear in amplitude.
//
// A transformer reuses internal FFT state and is not safe for concurrent
// use; create one per goroutine.
type SpectralTransformer struct {
	fft       *fourier.FFT
	frameSize int
	coeffs    []complex128
}

// NewSpectralTransformer creates a transformer for the given frame size.
// frameSize must be a power of two (validated by Config).
func NewSpectralTransformer(frameSize int) *SpectralTransformer {
	return &SpectralTransformer{
		fft:       fourier.NewFFT(frameSize),
		frameSize: frameSize,
		coeffs:    make([]complex128, frameSize/2+1),
	}
}

// NumBins returns the number of frequency bins per spectrum.
func (t *SpectralTransformer) NumBins() int { return t.frameSize/2 + 1 }

// BinFrequency returns the center frequency of bin k in Hz.
func (t *SpectralTransformer) BinFrequency(k, sampleRate int) float64 {
	return float64(k) * float64(sampleRate) / float64(t.frameSize)
}

// Magnitudes computes the magnitude spectrum of a windowed frame into dst,
// which must have length NumBins. The input frame is not modified.
func (t *SpectralTransformer) Magnitudes(frame, dst []float64) []float64 {
	t.coeffs = t.fft.Coefficients(t.coeffs, frame)
	for k, c := range t.coeffs {
		re := real(c)
		im := imag(c)
		dst[k] = math.Sqrt(re*re + im*im)
	}
	return dst
}
