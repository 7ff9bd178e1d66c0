package intervals

import (
	"fmt"
	"math"
	"strings"
)

const sessionStructureSchemaVersion = "session_structure_v1"

// SessionStructure is a block-level view of the session built from the
// detected cycles.
type SessionStructure struct {
	SchemaVersion  string          `json:"schema_version"`
	Confidence     float64         `json:"confidence"`
	CanonicalLabel string          `json:"canonical_label"`
	Blocks         []SessionBlock  `json:"blocks,omitempty"`
	MainSet        *MainSetSummary `json:"main_set,omitempty"`
}

// SessionBlock represents one contiguous run of samples.
type SessionBlock struct {
	BlockType          string  `json:"block_type"`
	StartCycle         int     `json:"start_cycle,omitempty"`
	EndCycle           int     `json:"end_cycle,omitempty"`
	StartOffsetSeconds float64 `json:"start_offset_seconds"`
	EndOffsetSeconds   float64 `json:"end_offset_seconds"`
	DurationSeconds    float64 `json:"duration_seconds"`
	DistanceMeters     float64 `json:"distance_meters"`
	AvgSpeedKmh        float64 `json:"avg_speed_kmh"`
	AvgHeartRate       float64 `json:"avg_heart_rate_bpm"`
	Description        string  `json:"description"`
}

// MainSetSummary captures the repeated effort/recovery set.
type MainSetSummary struct {
	Reps                    int          `json:"reps"`
	EffortDistanceMeters    float64      `json:"effort_distance_meters"`
	RecoveryDistanceMeters  float64      `json:"recovery_distance_meters"`
	EffortDurationSeconds   float64      `json:"effort_duration_seconds"`
	RecoveryDurationSeconds float64      `json:"recovery_duration_seconds"`
	EffortSpeedKmh          float64      `json:"effort_speed_kmh"`
	SpeedDriftPct           float64      `json:"speed_drift_pct"`
	HeartRateDriftBPM       float64      `json:"heart_rate_drift_bpm"`
	Prescription            string       `json:"prescription"`
	RepsDetail              []MainSetRep `json:"reps_detail,omitempty"`
}

// MainSetRep stores rep-level execution metrics.
type MainSetRep struct {
	Rep                     int         `json:"rep"`
	Half                    int         `json:"half"`
	EffortDurationSeconds   float64     `json:"effort_duration_seconds"`
	RecoveryDurationSeconds float64     `json:"recovery_duration_seconds,omitempty"`
	EffortSpeedKmh          float64     `json:"effort_speed_kmh"`
	MaxHeartRate            int         `json:"max_heart_rate_bpm"`
	RecoveryRateBPMPS       float64     `json:"recovery_rate_bpm_per_s,omitempty"`
	PacingStyle             PacingStyle `json:"pacing_style,omitempty"`
}

// InferSessionStructure converts the detected cycles into session blocks and
// a prescription label.
func InferSessionStructure(r *Report) SessionStructure {
	ss := SessionStructure{
		SchemaVersion: sessionStructureSchemaVersion,
		Confidence:    0.25,
	}
	samples := r.Series.Samples
	if len(samples) == 0 {
		ss.CanonicalLabel = "unable to infer session structure (no samples)"
		return ss
	}
	if len(r.Cycles) == 0 {
		ss.Blocks = append(ss.Blocks, buildBlock(samples, "steady", 0, len(samples), "No repeated effort/recovery cycles detected"))
		ss.CanonicalLabel = "unclassified session structure"
		return ss
	}

	first, last := r.Cycles[0], r.Cycles[len(r.Cycles)-1]
	main := buildMainSetSummary(r)
	ss.MainSet = &main
	block := buildBlock(samples, "main_set", first.StartIndex, last.EndIndex, main.Prescription)
	block.StartCycle = first.Number
	block.EndCycle = last.Number
	ss.Blocks = append(ss.Blocks, block)
	ss.Confidence += 0.36
	if main.Reps >= 4 {
		ss.Confidence += 0.08
	}
	if withinPct(main.EffortDistanceMeters, r.Config.EffortDistanceM, 10) {
		ss.Confidence += 0.10
	}
	if !hasDiagnostic(r.Diagnostics, DiagnosticDegenerateSegment) {
		ss.Confidence += 0.08
	}

	if last.EndIndex < len(samples) {
		blockType, desc := "cooldown", "Easy running after the last detected cycle"
		if r.Truncated {
			blockType = "discarded"
			desc = fmt.Sprintf("Samples after max_cycles=%d; not analysed", r.Config.MaxCycles)
		}
		ss.Blocks = append(ss.Blocks, buildBlock(samples, blockType, last.EndIndex, len(samples), desc))
		ss.Confidence += 0.05
	}

	if ss.Confidence > 0.99 {
		ss.Confidence = 0.99
	}
	ss.CanonicalLabel = buildCanonicalStructureLabel(ss)
	return ss
}

func buildMainSetSummary(r *Report) MainSetSummary {
	recoveryByCycle := make(map[int]RecoveryMetrics, len(r.Recoveries))
	for _, rec := range r.Recoveries {
		recoveryByCycle[rec.CycleNumber] = rec
	}
	recoveryDistance := make(map[int]float64, len(r.Phases.Recoveries))
	for _, seg := range r.Phases.Recoveries {
		recoveryDistance[seg.CycleNumber] = seg.Samples[len(seg.Samples)-1].DistanceM - seg.Samples[0].DistanceM
	}

	n := len(r.Repetitions)
	effortDur := make([]float64, 0, n)
	effortDist := make([]float64, 0, n)
	effortSpeed := make([]float64, 0, n)
	recoveryDur := make([]float64, 0, n)
	recoveryDist := make([]float64, 0, n)
	reps := make([]MainSetRep, 0, n)
	for _, rep := range r.Repetitions {
		effortDur = append(effortDur, rep.DurationS)
		effortDist = append(effortDist, rep.DistanceM)
		effortSpeed = append(effortSpeed, rep.AvgSpeedKmh)
		detail := MainSetRep{
			Rep:                   rep.CycleNumber,
			Half:                  rep.Half,
			EffortDurationSeconds: rep.DurationS,
			EffortSpeedKmh:        rep.AvgSpeedKmh,
			MaxHeartRate:          rep.MaxHeartRate,
			PacingStyle:           rep.PacingStyle,
		}
		if rec, ok := recoveryByCycle[rep.CycleNumber]; ok {
			detail.RecoveryDurationSeconds = rec.DurationS
			detail.RecoveryRateBPMPS = rec.RecoveryRateBPMPS
			recoveryDur = append(recoveryDur, rec.DurationS)
		}
		if d, ok := recoveryDistance[rep.CycleNumber]; ok {
			recoveryDist = append(recoveryDist, d)
		}
		reps = append(reps, detail)
	}

	summary := MainSetSummary{
		Reps:                    n,
		EffortDistanceMeters:    zeroIfNaN(average(effortDist)),
		RecoveryDistanceMeters:  zeroIfNaN(average(recoveryDist)),
		EffortDurationSeconds:   zeroIfNaN(average(effortDur)),
		RecoveryDurationSeconds: zeroIfNaN(average(recoveryDur)),
		EffortSpeedKmh:          zeroIfNaN(average(effortSpeed)),
		RepsDetail:              reps,
	}
	if n >= 2 {
		firstRep, lastRep := r.Repetitions[0], r.Repetitions[n-1]
		summary.SpeedDriftPct = pctChange(firstRep.AvgSpeedKmh, lastRep.AvgSpeedKmh)
		summary.HeartRateDriftBPM = float64(lastRep.MaxHeartRate - firstRep.MaxHeartRate)
	}
	summary.Prescription = fmt.Sprintf(
		"%dx%s @%.1f km/h with %s recoveries",
		summary.Reps,
		shortDistance(roundToNearest(summary.EffortDistanceMeters, 10)),
		summary.EffortSpeedKmh,
		shortDistance(roundToNearest(summary.RecoveryDistanceMeters, 10)),
	)
	return summary
}

func buildCanonicalStructureLabel(ss SessionStructure) string {
	parts := make([]string, 0, len(ss.Blocks))
	for _, b := range ss.Blocks {
		switch b.BlockType {
		case "main_set":
			if ss.MainSet != nil {
				parts = append(parts, ss.MainSet.Prescription)
			}
		case "cooldown":
			parts = append(parts, fmt.Sprintf("cooldown %s", shortDuration(b.DurationSeconds)))
		case "discarded":
			parts = append(parts, fmt.Sprintf("%s unanalysed", shortDuration(b.DurationSeconds)))
		}
	}
	if len(parts) == 0 {
		return "unclassified session structure"
	}
	return strings.Join(parts, " + ")
}

// buildBlock summarises samples[start:end].
func buildBlock(samples []Sample, blockType string, start, end int, description string) SessionBlock {
	seg := samples[start:end]
	speed := make([]float64, len(seg))
	hr := make([]float64, len(seg))
	for i, s := range seg {
		speed[i] = s.SpeedKmh
		hr[i] = float64(s.HeartRate)
	}
	origin := samples[0].ElapsedS
	first, last := seg[0], seg[len(seg)-1]
	return SessionBlock{
		BlockType:          blockType,
		StartOffsetSeconds: first.ElapsedS - origin,
		EndOffsetSeconds:   last.ElapsedS - origin,
		DurationSeconds:    last.ElapsedS - first.ElapsedS,
		DistanceMeters:     last.DistanceM - first.DistanceM,
		AvgSpeedKmh:        zeroIfNaN(average(speed)),
		AvgHeartRate:       zeroIfNaN(average(hr)),
		Description:        description,
	}
}

func hasDiagnostic(diags []Diagnostic, kind DiagnosticKind) bool {
	for _, d := range diags {
		if d.Kind == kind {
			return true
		}
	}
	return false
}

func withinPct(measured, nominal, pct float64) bool {
	if nominal == 0 || !isFinite(measured) {
		return false
	}
	return math.Abs(measured-nominal)/nominal*100 <= pct
}

func pctChange(start, end float64) float64 {
	if start == 0 || !isFinite(start) || !isFinite(end) {
		return 0
	}
	return ((end / start) - 1.0) * 100.0
}

func zeroIfNaN(v float64) float64 {
	if !isFinite(v) {
		return 0
	}
	return v
}

func shortDistance(meters float64) string {
	m := int(math.Round(meters))
	if m >= 1000 && m%100 == 0 {
		return fmt.Sprintf("%gkm", float64(m)/1000)
	}
	return fmt.Sprintf("%dm", m)
}

func shortDuration(seconds float64) string {
	s := int(math.Round(seconds))
	if s <= 0 {
		return "0s"
	}
	if s%60 == 0 {
		return fmt.Sprintf("%dm", s/60)
	}
	if s < 60 {
		return fmt.Sprintf("%ds", s)
	}
	return fmt.Sprintf("%dm%02ds", s/60, s%60)
}

func roundToNearest(v, step float64) float64 {
	if v == 0 || step <= 0 {
		return v
	}
	return math.Round(v/step) * step
}
