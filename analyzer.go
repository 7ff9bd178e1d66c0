package intervals

import (
	"errors"
	"fmt"
	"time"
)

const reportSchemaVersion = "interval_report_v1"

// CycleSummary is a compact view of one detected cycle.
type CycleSummary struct {
	Number     int     `json:"cycle_number"`
	Half       int     `json:"half"`
	StartIndex int     `json:"start_index"`
	EndIndex   int     `json:"end_index"`
	Samples    int     `json:"samples"`
	DistanceM  float64 `json:"distance_m"`
	DurationS  float64 `json:"duration_s"`
}

// Report contains every derived table for one session.
type Report struct {
	SchemaVersion    string                `json:"schema_version"`
	Config           Config                `json:"config"`
	StartTime        time.Time             `json:"start_time,omitempty"`
	ElapsedSeconds   float64               `json:"elapsed_seconds"`
	MovingSeconds    float64               `json:"moving_seconds"`
	DistanceMeters   float64               `json:"distance_meters"`
	SampleStats      CleanStats            `json:"sample_stats"`
	RestingPolicy    RestingPolicy         `json:"resting_policy"`
	Cycles           []CycleSummary        `json:"cycles"`
	Truncated        bool                  `json:"truncated"`
	TrailingSamples  int                   `json:"trailing_samples"`
	Repetitions      []RepetitionMetrics   `json:"repetitions"`
	Recoveries       []RecoveryMetrics     `json:"recoveries"`
	PacingSummary    []PacingSummary       `json:"pacing_summary"`
	RecoverySummary  []RecoveryHalfSummary `json:"recovery_summary"`
	Drift            *DriftReport          `json:"drift,omitempty"`
	Correlations     *CorrelationReport    `json:"correlations,omitempty"`
	SessionStructure SessionStructure      `json:"session_structure"`
	Diagnostics      []Diagnostic          `json:"diagnostics,omitempty"`
	Warnings         []string              `json:"warnings,omitempty"`
	Notes            string                `json:"notes"`

	Series SampleSeries `json:"-"`
	Phases PhaseSet     `json:"-"`
}

// NoRepetitions reports whether the run succeeded without detecting any
// repetition.
func (r *Report) NoRepetitions() bool {
	return r != nil && len(r.Repetitions) == 0
}

// Rounded returns a shallow copy with every table rounded for presentation.
func (r *Report) Rounded() *Report {
	if r == nil {
		return nil
	}
	out := *r
	out.Repetitions = make([]RepetitionMetrics, len(r.Repetitions))
	for i, rep := range r.Repetitions {
		out.Repetitions[i] = rep.Rounded()
	}
	out.Recoveries = make([]RecoveryMetrics, len(r.Recoveries))
	for i, rec := range r.Recoveries {
		out.Recoveries[i] = rec.Rounded()
	}
	out.PacingSummary = make([]PacingSummary, len(r.PacingSummary))
	for i, p := range r.PacingSummary {
		out.PacingSummary[i] = p.Rounded()
	}
	out.Drift = r.Drift.Rounded()
	return &out
}

// Analyze cleans decoded records and runs the full interval analysis.
// Configuration and data format problems are returned as errors; all
// per-repetition problems end up in Diagnostics and Warnings.
func Analyze(records []Record, cfg Config) (*Report, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	series, err := Clean(records, cfg)
	if err != nil {
		return nil, err
	}
	return AnalyzeSeries(series, cfg)
}

// AnalyzeSeries runs segmentation and every analyzer over a cleaned series.
// An empty series yields an empty report.
func AnalyzeSeries(series SampleSeries, cfg Config) (*Report, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	r := &Report{
		SchemaVersion: reportSchemaVersion,
		Config:        cfg,
		SampleStats:   series.Stats,
		Series:        series,
		Cycles:        []CycleSummary{},
		Repetitions:   []RepetitionMetrics{},
		Recoveries:    []RecoveryMetrics{},
	}
	if n := len(series.Samples); n > 0 {
		first, last := series.Samples[0], series.Samples[n-1]
		r.StartTime = first.Timestamp
		r.ElapsedSeconds = last.ElapsedS - first.ElapsedS
		r.MovingSeconds = last.MovingElapsedS
		r.DistanceMeters = last.DistanceM - first.DistanceM
	}
	if series.Stats.DroppedMissing > 0 {
		r.Warnings = append(r.Warnings, fmt.Sprintf("dropped %d rows missing speed, heart rate or distance", series.Stats.DroppedMissing))
	}
	if series.Stats.DroppedDuplicate > 0 {
		r.Warnings = append(r.Warnings, fmt.Sprintf("dropped %d rows with duplicate timestamps", series.Stats.DroppedDuplicate))
	}

	seg := SegmentCycles(series, cfg)
	r.RestingPolicy = seg.Policy
	r.Truncated = seg.Truncated
	r.TrailingSamples = seg.TrailingSamples
	r.addDiagnostics(seg.Diagnostics...)
	for _, c := range seg.Cycles {
		r.Cycles = append(r.Cycles, CycleSummary{
			Number:     c.Number,
			Half:       c.Half,
			StartIndex: c.StartIndex,
			EndIndex:   c.EndIndex,
			Samples:    c.Len(),
			DistanceM:  c.DistanceM(),
			DurationS:  segmentDuration(c.Samples),
		})
	}

	r.Phases = SplitCycles(seg.Cycles, cfg)
	r.addDiagnostics(r.Phases.Diagnostics...)

	r.Repetitions = AggregateRepetitions(r.Phases.Efforts)
	for _, e := range AnalyzePacing(r.Repetitions) {
		r.addDiagnostics(undefinedDiagnostic(e))
	}
	r.PacingSummary = SummarizePacing(r.Repetitions)

	var recoveryDiags []Diagnostic
	r.Recoveries, recoveryDiags = AnalyzeRecovery(r.Phases.Recoveries)
	r.addDiagnostics(recoveryDiags...)
	r.RecoverySummary = SummarizeRecovery(r.Recoveries)

	if len(r.Repetitions) > 0 {
		drift, undefined, err := AnalyzeDrift(r.Repetitions)
		switch {
		case errors.Is(err, ErrInsufficientHalves):
			r.Warnings = append(r.Warnings, "drift unavailable: "+err.Error())
		case err != nil:
			return nil, fmt.Errorf("analyze drift: %w", err)
		default:
			r.Drift = drift
			for _, e := range undefined {
				r.addDiagnostics(undefinedDiagnostic(e))
			}
		}

		corr, err := Correlate(r.Repetitions, cfg.TopNCorrelations)
		switch {
		case errors.Is(err, ErrInsufficientRepetitions):
			r.Warnings = append(r.Warnings, "correlations unavailable: "+err.Error())
		case err != nil:
			return nil, fmt.Errorf("correlate repetitions: %w", err)
		default:
			r.Correlations = corr
		}
	}

	r.SessionStructure = InferSessionStructure(r)
	r.Notes = BuildTrainingNotes(r)
	return r, nil
}

func (r *Report) addDiagnostics(diags ...Diagnostic) {
	for _, d := range diags {
		r.Diagnostics = append(r.Diagnostics, d)
		r.Warnings = append(r.Warnings, d.String())
	}
}
