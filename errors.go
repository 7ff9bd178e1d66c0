package intervals

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientHalves is returned by AnalyzeDrift when repetitions do
	// not cover both halves of the session.
	ErrInsufficientHalves = errors.New("drift requires repetitions in both halves")

	// ErrInsufficientRepetitions is returned by Correlate when fewer than two
	// complete repetitions are available.
	ErrInsufficientRepetitions = errors.New("correlation requires at least 2 complete repetitions")
)

// DataFormatError reports a required field that is absent or unusable.
type DataFormatError struct {
	Field  string
	Row    int // -1 when the whole column is affected
	Reason string
}

func (e *DataFormatError) Error() string {
	if e.Row >= 0 {
		return fmt.Sprintf("data format: %s at row %d: %s", e.Field, e.Row, e.Reason)
	}
	return fmt.Sprintf("data format: %s: %s", e.Field, e.Reason)
}

// UndefinedMetricError reports a metric that could not be computed because
// its denominator was zero.
type UndefinedMetricError struct {
	Metric      string
	CycleNumber int // 0 when the metric is session-level
	Reason      string
}

func (e *UndefinedMetricError) Error() string {
	if e.CycleNumber > 0 {
		return fmt.Sprintf("undefined %s for cycle %d: %s", e.Metric, e.CycleNumber, e.Reason)
	}
	return fmt.Sprintf("undefined %s: %s", e.Metric, e.Reason)
}

// DiagnosticKind classifies a non-fatal condition recorded during analysis.
type DiagnosticKind string

const (
	DiagnosticDegenerateSegment DiagnosticKind = "degenerate_segment"
	DiagnosticUndefinedMetric   DiagnosticKind = "undefined_metric"
	DiagnosticNoSegments        DiagnosticKind = "no_segments"
	DiagnosticTruncated         DiagnosticKind = "truncated"
	DiagnosticPolicyFallback    DiagnosticKind = "policy_fallback"
	DiagnosticSkipped           DiagnosticKind = "skipped"
)

// Diagnostic is a recorded, non-fatal condition.
type Diagnostic struct {
	Kind        DiagnosticKind `json:"kind"`
	CycleNumber int            `json:"cycle_number,omitempty"`
	Phase       Phase          `json:"phase,omitempty"`
	Message     string         `json:"message"`
}

func (d Diagnostic) String() string {
	if d.CycleNumber > 0 {
		if d.Phase != "" {
			return fmt.Sprintf("%s: cycle %d %s: %s", d.Kind, d.CycleNumber, d.Phase, d.Message)
		}
		return fmt.Sprintf("%s: cycle %d: %s", d.Kind, d.CycleNumber, d.Message)
	}
	return fmt.Sprintf("%s: %s", d.Kind, d.Message)
}

func undefinedDiagnostic(err *UndefinedMetricError) Diagnostic {
	return Diagnostic{
		Kind:        DiagnosticUndefinedMetric,
		CycleNumber: err.CycleNumber,
		Message:     err.Error(),
	}
}
