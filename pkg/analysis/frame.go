package analysis

import (
	"errors"
	"iter"
	"math"
)

// Frame is one windowed analysis slice of the signal.
//
// Samples holds frameSize windowed values. During iteration the slice is
// reused between frames; callers that keep a frame must copy it.
type Frame struct {
	Index   int
	Start   int     // start offset in the signal, in samples
	Time    float64 // start offset in seconds
	Samples []float64
}

// Framer slices a decoded mono signal into overlapping windowed frames.
//
// The last partial frame is zero-padded rather than dropped so the full
// signal duration is covered, and a signal shorter than one hop still yields
// a single zero-padded frame. Window coefficients are precomputed once.
type Framer struct {
	signal    Signal
	frameSize int
	hopSize   int
	window    []float64
}

// NewFramer creates a Framer. The configuration must already be validated;
// only an empty signal is rejected here.
func NewFramer(sig Signal, frameSize, hopSize int) (*Framer, error) {
	if len(sig.Samples) == 0 {
		return nil, &EmptySignalError{}
	}
	if sig.SampleRate <= 0 {
		return nil, errors.New("framer: sample rate must be positive")
	}
	return &Framer{
		signal:    sig,
		frameSize: frameSize,
		hopSize:   hopSize,
		window:    hannWindow(frameSize),
	}, nil
}

// hannWindow generates a Hann window of the given size.
func hannWindow(size int) []float64 {
	w := make([]float64, size)
	if size == 1 {
		w[0] = 1
		return w
	}
	for i := range w {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(size-1)))
	}
	return w
}

// NumFrames returns the number of frames the signal divides into.
func (f *Framer) NumFrames() int {
	return (len(f.signal.Samples) + f.hopSize - 1) / f.hopSize
}

// FrameSize returns the configured frame length in samples.
func (f *Framer) FrameSize() int { return f.frameSize }

// HopSize returns the configured hop in samples.
func (f *Framer) HopSize() int { return f.hopSize }

// FrameTime returns the start time of frame i in seconds.
func (f *Framer) FrameTime(i int) float64 {
	return float64(i*f.hopSize) / float64(f.signal.SampleRate)
}

// HopDuration returns the time between consecutive frame starts in seconds.
func (f *Framer) HopDuration() float64 {
	return float64(f.hopSize) / float64(f.signal.SampleRate)
}

// FrameAt writes the windowed samples of frame i into dst, which must have
// length FrameSize, and returns the frame. The tail beyond the signal end is
// zero-padded.
func (f *Framer) FrameAt(i int, dst []float64) Frame {
	start := i * f.hopSize
	n := len(f.signal.Samples) - start
	if n > f.frameSize {
		n = f.frameSize
	}
	for j := 0; j < n; j++ {
		dst[j] = f.signal.Samples[start+j] * f.window[j]
	}
	for j := n; j < f.frameSize; j++ {
		dst[j] = 0
	}
	return Frame{Index: i, Start: start, Time: f.FrameTime(i), Samples: dst}
}

// RMSAt returns the root-mean-square of the raw (pre-window) samples of
// frame i, with the zero-padded tail counted in the divisor.
func (f *Framer) RMSAt(i int) float64 {
	start := i * f.hopSize
	n := len(f.signal.Samples) - start
	if n > f.frameSize {
		n = f.frameSize
	}
	sum := 0.0
	for j := 0; j < n; j++ {
		v := f.signal.Samples[start+j]
		sum += v * v
	}
	return math.Sqrt(sum / float64(f.frameSize))
}

// Frames returns a lazy, restartable sequence over all frames in time order.
// The frame's Samples buffer is reused between iterations.
func (f *Framer) Frames() iter.Seq[Frame] {
	return func(yield func(Frame) bool) {
		buf := make([]float64, f.frameSize)
		for i := range f.NumFrames() {
			if !yield(f.FrameAt(i, buf)) {
				return
			}
		}
	}
}
