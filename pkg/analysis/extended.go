package analysis

import "context"

// ExtendedAnalyzer is the capability interface for the extended feature set:
// tempo, beats and structural boundaries. The coordinator acquires one at
// construction time; when unavailable it statically omits those stages and
// the report ships without the enhanced record.
type ExtendedAnalyzer interface {
	// Analyze derives enhanced features from the ordered feature frames.
	// hopDur is the frame spacing in seconds, duration the signal length.
	Analyze(ctx context.Context, frames []FeatureFrame, hopDur, duration float64) (*EnhancedFeatures, error)
}

// ExtendedFeatureSet is the built-in ExtendedAnalyzer: autocorrelation tempo
// tracking plus novelty-curve segmentation.
type ExtendedFeatureSet struct {
	tempo     *TempoTracker
	segmenter *Segmenter
}

// NewExtendedFeatureSet creates the built-in extended analyzer.
func NewExtendedFeatureSet(cfg Config) *ExtendedFeatureSet {
	return &ExtendedFeatureSet{
		tempo:     NewTempoTracker(cfg),
		segmenter: NewSegmenter(cfg),
	}
}

// Analyze implements ExtendedAnalyzer.
func (e *ExtendedFeatureSet) Analyze(ctx context.Context, frames []FeatureFrame, hopDur, duration float64) (*EnhancedFeatures, error) {
	result := e.tempo.Track(frames, hopDur)

	select {
	case <-ctx.Done():
		return nil, &CancelledError{Stage: StageSegmentation, Err: ctx.Err()}
	default:
	}

	return &EnhancedFeatures{
		Tempo:                result.BPM,
		Beats:                result.Beats,
		StructuralBoundaries: e.segmenter.Boundaries(frames, hopDur, duration),
	}, nil
}
