package analysis

import (
	"fmt"
	"runtime"
	"time"
)

// OctavePolicy selects how tempo octave ambiguity is resolved. Octave errors
// (detecting double or half the true tempo) are the dominant failure mode of
// periodicity-based tempo estimation, and the right resolution is genre
// dependent, so the policy is configurable.
type OctavePolicy int

const (
	// OctavePreferLower prefers the lower BPM candidate when a harmonic of
	// the best lag scores nearly as well. Default.
	OctavePreferLower OctavePolicy = iota
	// OctavePreferHigher prefers the higher BPM candidate.
	OctavePreferHigher
	// OctavePreferNone keeps the raw best-scoring lag.
	OctavePreferNone
)

// Config holds the engine configuration.
type Config struct {
	// FrameSize is the analysis frame length in samples.
	// Must be a power of two. Default: 2048
	FrameSize int

	// HopSize is the step between consecutive frames in samples.
	// Must be positive and <= FrameSize. Default: FrameSize/4
	HopSize int

	// TempoMinBPM and TempoMaxBPM bound the tempo search range.
	// Default: 60-200
	TempoMinBPM float64
	TempoMaxBPM float64

	// OctavePolicy resolves tempo octave ambiguity.
	// Default: OctavePreferLower
	OctavePolicy OctavePolicy

	// MinBeatSeparationMs is the minimum spacing between accepted beats in
	// milliseconds, applied on top of the tempo-derived spacing. Default: 250
	MinBeatSeparationMs float64

	// NoveltyThreshold is the relative threshold (0-1, after normalization)
	// a novelty peak must exceed to become a structural boundary. Default: 0.4
	NoveltyThreshold float64

	// SegmentWindowSec is the aggregation window for the novelty curve in
	// seconds. Default: 3.0
	SegmentWindowSec float64

	// MinBoundarySeparationSec is the minimum spacing between structural
	// boundaries in seconds. Default: 8.0
	MinBoundarySeparationSec float64

	// Workers bounds the pool used for per-frame spectral analysis.
	// Default: runtime.NumCPU(), capped at 8.
	Workers int

	// DecodeTimeout bounds the file-to-PCM decoding step. Decoding is the
	// only externally blocking step of the pipeline. Default: 30s
	DecodeTimeout time.Duration
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	workers := runtime.NumCPU()
	if workers > 8 {
		workers = 8
	}
	return Config{
		FrameSize:                2048,
		HopSize:                  512,
		TempoMinBPM:              60,
		TempoMaxBPM:              200,
		OctavePolicy:             OctavePreferLower,
		MinBeatSeparationMs:      250,
		NoveltyThreshold:         0.4,
		SegmentWindowSec:         3.0,
		MinBoundarySeparationSec: 8.0,
		Workers:                  workers,
		DecodeTimeout:            30 * time.Second,
	}
}

// Validate checks the configuration. It is called by the coordinator before
// any frame is processed; an invalid combination is a ConfigurationError.
func (c Config) Validate() error {
	if c.FrameSize <= 0 {
		return &ConfigurationError{Field: "FrameSize", Reason: fmt.Sprintf("must be positive, got %d", c.FrameSize)}
	}
	if c.FrameSize&(c.FrameSize-1) != 0 {
		return &ConfigurationError{Field: "FrameSize", Reason: fmt.Sprintf("must be a power of two, got %d", c.FrameSize)}
	}
	if c.HopSize <= 0 {
		return &ConfigurationError{Field: "HopSize", Reason: fmt.Sprintf("must be positive, got %d", c.HopSize)}
	}
	if c.HopSize > c.FrameSize {
		return &ConfigurationError{Field: "HopSize", Reason: fmt.Sprintf("must be <= FrameSize (%d), got %d", c.FrameSize, c.HopSize)}
	}
	if c.TempoMinBPM <= 0 || c.TempoMaxBPM <= 0 {
		return &ConfigurationError{Field: "TempoMinBPM/TempoMaxBPM", Reason: "must be positive"}
	}
	if c.TempoMinBPM >= c.TempoMaxBPM {
		return &ConfigurationError{Field: "TempoMinBPM", Reason: fmt.Sprintf("must be < TempoMaxBPM (%g), got %g", c.TempoMaxBPM, c.TempoMinBPM)}
	}
	if c.NoveltyThreshold < 0 || c.NoveltyThreshold > 1 {
		return &ConfigurationError{Field: "NoveltyThreshold", Reason: fmt.Sprintf("must be in [0,1], got %g", c.NoveltyThreshold)}
	}
	if c.SegmentWindowSec <= 0 {
		return &ConfigurationError{Field: "SegmentWindowSec", Reason: "must be positive"}
	}
	if c.MinBoundarySeparationSec < 0 {
		return &ConfigurationError{Field: "MinBoundarySeparationSec", Reason: "must not be negative"}
	}
	if c.MinBeatSeparationMs < 0 {
		return &ConfigurationError{Field: "MinBeatSeparationMs", Reason: "must not be negative"}
	}
	if c.Workers <= 0 {
		return &ConfigurationError{Field: "Workers", Reason: fmt.Sprintf("must be positive, got %d", c.Workers)}
	}
	return nil
}
