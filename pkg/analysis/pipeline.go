package analysis

import (
	"context"
	"sync"

	"gonum.org/v1/gonum/stat"
)

// frameBatchSize is the number of frames processed between cancellation
// checks. Spectra are only held for one batch at a time, so memory stays
// bounded for long inputs.
const frameBatchSize = 256

// onsetWindowSec is the moving-average length for onset-strength
// normalization.
const onsetWindowSec = 1.0

// Pipeline is the analysis coordinator. It owns the stage sequence
// Idle -> Decoding -> Framing -> SpectralAnalysis -> FeatureExtraction ->
// TempoAndBeats -> Segmentation -> Complete, with Failed reachable from any
// stage. Stages run strictly in order; the pipeline is batch, not streaming,
// because tempo and the aggregate features need the whole signal.
//
// A Pipeline is single-use and not safe for concurrent use. Analyses of
// different inputs share no mutable state: run one Pipeline per input.
type Pipeline struct {
	cfg      Config
	extended ExtendedAnalyzer
	stage    Stage
}

// NewPipeline creates a coordinator. extended may be nil: the extended
// feature stages are then statically skipped and the report carries no
// enhanced record (a supported degraded mode, not an error).
func NewPipeline(cfg Config, extended ExtendedAnalyzer) *Pipeline {
	return &Pipeline{cfg: cfg, extended: extended, stage: StageIdle}
}

// Stage returns the stage the pipeline last reached.
func (p *Pipeline) Stage() Stage { return p.stage }

func (p *Pipeline) fail(stage Stage, err error) error {
	p.stage = StageFailed
	return &PipelineError{Stage: stage, Err: err}
}

// checkCancelled observes cooperative cancellation between processing steps.
func (p *Pipeline) checkCancelled(ctx context.Context, stage Stage) error {
	select {
	case <-ctx.Done():
		return p.fail(stage, &CancelledError{Stage: stage, Err: ctx.Err()})
	default:
		return nil
	}
}

// Run analyzes an already-decoded signal and returns a complete report or a
// typed error, never a partial report. Identical input and configuration
// yield an identical report.
func (p *Pipeline) Run(ctx context.Context, sig Signal) (*AnalysisReport, error) {
	if err := p.cfg.Validate(); err != nil {
		return nil, p.fail(StageIdle, err)
	}

	p.stage = StageFraming
	if err := p.checkCancelled(ctx, StageFraming); err != nil {
		return nil, err
	}
	framer, err := NewFramer(sig, p.cfg.FrameSize, p.cfg.HopSize)
	if err != nil {
		return nil, p.fail(StageFraming, err)
	}

	p.stage = StageSpectralAnalysis
	features, err := p.extractFeatures(ctx, framer, sig.SampleRate)
	if err != nil {
		return nil, err
	}

	report := &AnalysisReport{Duration: sig.Duration()}
	energy := make([]float64, len(features))
	centroid := make([]float64, len(features))
	flux := make([]float64, len(features))
	for i, f := range features {
		energy[i] = f.Energy
		centroid[i] = f.SpectralCentroid
		flux[i] = f.SpectralFlux
	}
	report.Energy = stat.Mean(energy, nil)
	report.SpectralCentroid = stat.Mean(centroid, nil)
	report.SpectralFlux = stat.Mean(flux, nil)

	if p.extended != nil {
		p.stage = StageTempoAndBeats
		if err := p.checkCancelled(ctx, StageTempoAndBeats); err != nil {
			return nil, err
		}
		enhanced, err := p.extended.Analyze(ctx, features, framer.HopDuration(), sig.Duration())
		if err != nil {
			return nil, p.fail(p.stage, err)
		}
		enhanced.Energy = energy
		report.BPM = enhanced.Tempo
		report.Enhanced = enhanced
		p.stage = StageSegmentation
	}

	p.stage = StageComplete
	return report, nil
}

// extractFeatures drives the per-frame Spectrum -> FeatureFrame map across a
// bounded worker pool, in batches. Each worker owns its transformer and
// frame buffer and writes into a pre-sized slot of the batch arena, so the
// result order is the frame order regardless of scheduling. Spectral flux
// needs the previous frame's spectrum and runs sequentially per batch.
func (p *Pipeline) extractFeatures(ctx context.Context, framer *Framer, sampleRate int) ([]FeatureFrame, error) {
	numFrames := framer.NumFrames()
	bins := p.cfg.FrameSize/2 + 1
	features := make([]FeatureFrame, numFrames)

	workers := p.cfg.Workers
	if workers > numFrames {
		workers = numFrames
	}

	arena := make([][]float64, frameBatchSize)
	for i := range arena {
		arena[i] = make([]float64, bins)
	}
	prev := make([]float64, bins)
	havePrev := false

	for batchStart := 0; batchStart < numFrames; batchStart += frameBatchSize {
		if err := p.checkCancelled(ctx, StageSpectralAnalysis); err != nil {
			return nil, err
		}
		batchEnd := batchStart + frameBatchSize
		if batchEnd > numFrames {
			batchEnd = numFrames
		}

		indices := make(chan int)
		var wg sync.WaitGroup
		for range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				transformer := NewSpectralTransformer(p.cfg.FrameSize)
				buf := make([]float64, p.cfg.FrameSize)
				for i := range indices {
					frame := framer.FrameAt(i, buf)
					mags := transformer.Magnitudes(frame.Samples, arena[i-batchStart])
					features[i] = FeatureFrame{
						Time:             frame.Time,
						Energy:           framer.RMSAt(i),
						SpectralCentroid: spectralCentroid(mags, sampleRate, p.cfg.FrameSize),
					}
				}
			}()
		}
		for i := batchStart; i < batchEnd; i++ {
			indices <- i
		}
		close(indices)
		wg.Wait()

		p.stage = StageFeatureExtraction
		for i := batchStart; i < batchEnd; i++ {
			mags := arena[i-batchStart]
			if havePrev {
				features[i].SpectralFlux = spectralFlux(mags, prev)
			}
			copy(prev, mags)
			havePrev = true
		}
		p.stage = StageSpectralAnalysis
	}

	p.stage = StageFeatureExtraction
	fillOnsetStrength(features, int(onsetWindowSec/framer.HopDuration()))
	return features, nil
}
