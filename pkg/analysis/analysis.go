package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// AnalysisReport is the terminal output of the pipeline. It is constructed
// once by the coordinator and never mutated after return.
type AnalysisReport struct {
	File       string  `json:"file,omitempty"`
	Duration   float64 `json:"duration"` // seconds
	SampleRate int     `json:"sample_rate,omitempty"`
	BPM        float64 `json:"bpm"` // 0 when undetected

	// Session-level aggregates: arithmetic means over all feature frames,
	// rendered by consumers as static indicators.
	Energy           float64 `json:"energy"`
	SpectralCentroid float64 `json:"spectral_centroid"` // Hz
	SpectralFlux     float64 `json:"spectral_flux"`

	// Enhanced is absent when the extended feature analyzer is unavailable.
	// That is a supported degraded mode, not an error.
	Enhanced *EnhancedFeatures `json:"enhanced,omitempty"`

	Waveform *Waveform `json:"waveform,omitempty"`
}

// EnhancedFeatures is the extended feature set derived from the frame
// sequence: tempo, beat timeline, structural boundaries and the per-frame
// energy envelope.
type EnhancedFeatures struct {
	Tempo                float64   `json:"tempo"`
	Beats                []float64 `json:"beats"`                 // seconds, strictly increasing
	StructuralBoundaries []float64 `json:"structural_boundaries"` // seconds, strictly increasing
	Energy               []float64 `json:"energy"`                // one RMS value per frame, in time order
}

// Waveform contains downsampled waveform data for visualization.
type Waveform struct {
	PixelsPerSec int       `json:"pixels_per_sec"`
	Peaks        []float64 `json:"peaks"`
	Troughs      []float64 `json:"troughs"`
}

// Analyzer runs the analysis pipeline. The extended feature capability is
// queried once at construction; when absent, reports ship without the
// enhanced record.
type Analyzer struct {
	cfg      Config
	extended ExtendedAnalyzer
}

// New creates an Analyzer with the default configuration.
func New() (*Analyzer, error) {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig creates an Analyzer. The configuration is validated up
// front so a misconfigured analyzer fails before any audio is touched.
func NewWithConfig(cfg Config) (*Analyzer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Analyzer{cfg: cfg, extended: NewExtendedFeatureSet(cfg)}, nil
}

// WithoutExtended returns a copy of the analyzer with the extended feature
// stages disabled. Reports from it carry no enhanced record and BPM 0.
func (a *Analyzer) WithoutExtended() *Analyzer {
	return &Analyzer{cfg: a.cfg}
}

// Config returns the analyzer configuration.
func (a *Analyzer) Config() Config { return a.cfg }

// AnalyzeSignal analyzes an already-decoded mono signal. This is the
// pull-based core API: it returns synchronously with a complete report or a
// typed error; callers choose their own threading or async wrapping.
func (a *Analyzer) AnalyzeSignal(ctx context.Context, sig Signal) (*AnalysisReport, error) {
	return NewPipeline(a.cfg, a.extended).Run(ctx, sig)
}

// AnalyzeInput decodes an audio resource and analyzes it. Decoding is the
// only externally blocking step and is bounded by Config.DecodeTimeout.
func (a *Analyzer) AnalyzeInput(ctx context.Context, in Input) (*AnalysisReport, error) {
	sig, err := a.decode(ctx, in)
	if err != nil {
		return nil, err
	}

	report, err := a.AnalyzeSignal(ctx, sig)
	if err != nil {
		return nil, err
	}
	report.File = in.Name
	report.SampleRate = sig.SampleRate
	report.Waveform = GenerateWaveform(sig, 100)
	return report, nil
}

// decode runs the decoder under the configured timeout.
func (a *Analyzer) decode(ctx context.Context, in Input) (Signal, error) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.DecodeTimeout)
	defer cancel()

	type result struct {
		sig Signal
		err error
	}
	ch := make(chan result, 1)
	go func() {
		sig, err := DecodeInput(in)
		ch <- result{sig: sig, err: err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return Signal{}, &PipelineError{Stage: StageDecoding, Err: r.err}
		}
		return r.sig, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Signal{}, &PipelineError{
				Stage: StageDecoding,
				Err:   &DecodeError{Format: formatFor(in.MIME, in.Name), Err: fmt.Errorf("decode timed out: %w", ctx.Err())},
			}
		}
		return Signal{}, &PipelineError{
			Stage: StageDecoding,
			Err:   &CancelledError{Stage: StageDecoding, Err: ctx.Err()},
		}
	}
}

// AnalyzeFileWithPath analyzes a single audio file from disk.
func (a *Analyzer) AnalyzeFileWithPath(ctx context.Context, audioPath string) (*AnalysisReport, error) {
	data, err := os.ReadFile(audioPath)
	if err != nil {
		return nil, &PipelineError{Stage: StageDecoding, Err: &DecodeError{Err: err}}
	}
	return a.AnalyzeInput(ctx, Input{Name: filepath.Base(audioPath), Data: data})
}

// AnalyzeDir recursively analyzes all supported audio files in a directory.
// For each audio file it writes a corresponding .json sidecar.
// If force is true, existing JSON files are overwritten.
func (a *Analyzer) AnalyzeDir(ctx context.Context, dir string, force bool) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		if !isSupportedAudio(ext) {
			return nil
		}

		jsonPath := strings.TrimSuffix(path, ext) + ".json"
		if !force {
			if _, err := os.Stat(jsonPath); err == nil {
				fmt.Printf("Skipping %s (already analyzed)\n", filepath.Base(path))
				return nil
			}
		}

		fmt.Printf("Analyzing %s...\n", filepath.Base(path))

		report, err := a.AnalyzeFileWithPath(ctx, path)
		if err != nil {
			if IsCancelled(err) {
				return err
			}
			fmt.Printf("  Error: %v\n", err)
			return nil // continue with other files
		}

		if err := report.WriteJSON(jsonPath); err != nil {
			return fmt.Errorf("write JSON: %w", err)
		}

		fmt.Printf("  Duration: %.1fs\n", report.Duration)
		fmt.Printf("  BPM: %.1f, Energy: %.4f, Centroid: %.0f Hz\n",
			report.BPM, report.Energy, report.SpectralCentroid)
		if report.Enhanced != nil {
			fmt.Printf("  Beats: %d, Boundaries: %d\n",
				len(report.Enhanced.Beats), len(report.Enhanced.StructuralBoundaries))
		}

		return nil
	})
}

// GenerateWaveform creates downsampled waveform data for visualization.
// pixelsPerSec controls the resolution (e.g. 100 = 100 data points per
// second). Returns nil when the signal is shorter than one pixel.
func GenerateWaveform(sig Signal, pixelsPerSec int) *Waveform {
	samplesPerPixel := sig.SampleRate / pixelsPerSec
	if samplesPerPixel < 1 {
		samplesPerPixel = 1
	}

	numPixels := len(sig.Samples) / samplesPerPixel
	if numPixels == 0 {
		return nil
	}

	peaks := make([]float64, numPixels)
	troughs := make([]float64, numPixels)
	for i := range numPixels {
		start := i * samplesPerPixel
		end := start + samplesPerPixel
		if end > len(sig.Samples) {
			end = len(sig.Samples)
		}

		maxVal, minVal := -1.0, 1.0
		for j := start; j < end; j++ {
			if sig.Samples[j] > maxVal {
				maxVal = sig.Samples[j]
			}
			if sig.Samples[j] < minVal {
				minVal = sig.Samples[j]
			}
		}
		peaks[i] = maxVal
		troughs[i] = minVal
	}

	return &Waveform{PixelsPerSec: pixelsPerSec, Peaks: peaks, Troughs: troughs}
}

// WriteJSON writes the report to a JSON file.
func (r *AnalysisReport) WriteJSON(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
