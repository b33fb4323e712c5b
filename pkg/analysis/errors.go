package analysis

import (
	"errors"
	"fmt"
)

// Stage identifies a step of the analysis pipeline. The coordinator moves
// through stages strictly in order and records the stage a failure occurred in.
type Stage int

const (
	StageIdle Stage = iota
	StageDecoding
	StageFraming
	StageSpectralAnalysis
	StageFeatureExtraction
	StageTempoAndBeats
	StageSegmentation
	StageComplete
	StageFailed
)

// String returns the stage name as used in error messages and logs.
func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageDecoding:
		return "decoding"
	case StageFraming:
		return "framing"
	case StageSpectralAnalysis:
		return "spectral-analysis"
	case StageFeatureExtraction:
		return "feature-extraction"
	case StageTempoAndBeats:
		return "tempo-and-beats"
	case StageSegmentation:
		return "segmentation"
	case StageComplete:
		return "complete"
	case StageFailed:
		return "failed"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// DecodeError indicates the input could not be decoded into PCM:
// unreadable, corrupt, or an unsupported format. No report is produced.
type DecodeError struct {
	Format string // declared format or extension, may be empty
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Format != "" {
		return fmt.Sprintf("decode %s: %v", e.Format, e.Err)
	}
	return fmt.Sprintf("decode: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// EmptySignalError indicates the decoded signal contained no samples.
type EmptySignalError struct{}

func (e *EmptySignalError) Error() string { return "empty signal: no samples after decoding" }

// ConfigurationError indicates an invalid configuration. It is raised by
// Config.Validate before any frame is processed.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid config %s: %s", e.Field, e.Reason)
}

// CancelledError indicates cooperative cancellation was observed. It is fatal
// for the analysis but distinct from failure so callers can tell an aborted
// run from a broken one.
type CancelledError struct {
	Stage Stage
	Err   error // the context error that triggered cancellation
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("analysis cancelled during %s: %v", e.Stage, e.Err)
}

func (e *CancelledError) Unwrap() error { return e.Err }

// PipelineError wraps a failure with the stage it occurred in. The coordinator
// returns either a complete report or a PipelineError, never both.
type PipelineError struct {
	Stage Stage
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("analysis failed during %s: %v", e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// IsCancelled reports whether err is (or wraps) a CancelledError.
func IsCancelled(err error) bool {
	var ce *CancelledError
	return errors.As(err, &ce)
}
