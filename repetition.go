package intervals

import (
	"encoding/json"
	"math"
)

// Metric names a numeric repetition-level column.
type Metric string

const (
	MetricDuration         Metric = "duration_s"
	MetricAvgSpeed         Metric = "avg_speed_kmh"
	MetricMaxSpeed         Metric = "max_speed_kmh"
	MetricMaxHeartRate     Metric = "max_heart_rate_bpm"
	MetricAvgCadence       Metric = "avg_cadence"
	MetricAvgVerticalRatio Metric = "avg_vertical_ratio"
	MetricAvgStanceTime    Metric = "avg_stance_time_percent"
	MetricPacingDrift      Metric = "pacing_drift_percent"
)

// RepetitionMetricSet lists the numeric repetition columns in table order.
var RepetitionMetricSet = []Metric{
	MetricDuration,
	MetricAvgSpeed,
	MetricMaxSpeed,
	MetricMaxHeartRate,
	MetricAvgCadence,
	MetricAvgVerticalRatio,
	MetricAvgStanceTime,
	MetricPacingDrift,
}

// RepetitionMetrics is one row per effort segment. PacingDriftPercent and
// PacingStyle are filled by AnalyzePacing; a nil drift is undefined.
type RepetitionMetrics struct {
	CycleNumber          int         `json:"cycle_number"`
	Half                 int         `json:"half"`
	DurationS            float64     `json:"duration_s"`
	DistanceM            float64     `json:"distance_m"`
	AvgSpeedKmh          float64     `json:"avg_speed_kmh"`
	MaxSpeedKmh          float64     `json:"max_speed_kmh"`
	MaxHeartRate         int         `json:"max_heart_rate_bpm"`
	AvgCadence           float64     `json:"avg_cadence"`
	AvgVerticalRatio     float64     `json:"avg_vertical_ratio"`
	AvgStanceTimePercent float64     `json:"avg_stance_time_percent"`
	PacingDriftPercent   *float64    `json:"pacing_drift_percent"`
	PacingStyle          PacingStyle `json:"pacing_style,omitempty"`
}

// Value returns the named metric, NaN when it is undefined.
func (r RepetitionMetrics) Value(m Metric) float64 {
	switch m {
	case MetricDuration:
		return r.DurationS
	case MetricAvgSpeed:
		return r.AvgSpeedKmh
	case MetricMaxSpeed:
		return r.MaxSpeedKmh
	case MetricMaxHeartRate:
		return float64(r.MaxHeartRate)
	case MetricAvgCadence:
		return r.AvgCadence
	case MetricAvgVerticalRatio:
		return r.AvgVerticalRatio
	case MetricAvgStanceTime:
		return r.AvgStanceTimePercent
	case MetricPacingDrift:
		if r.PacingDriftPercent == nil {
			return math.NaN()
		}
		return *r.PacingDriftPercent
	}
	return math.NaN()
}

// MarshalJSON encodes means that had no samples as null.
func (r RepetitionMetrics) MarshalJSON() ([]byte, error) {
	type plain RepetitionMetrics
	return json.Marshal(struct {
		plain
		AvgSpeedKmh          *float64 `json:"avg_speed_kmh"`
		MaxSpeedKmh          *float64 `json:"max_speed_kmh"`
		AvgCadence           *float64 `json:"avg_cadence"`
		AvgVerticalRatio     *float64 `json:"avg_vertical_ratio"`
		AvgStanceTimePercent *float64 `json:"avg_stance_time_percent"`
	}{
		plain:                plain(r),
		AvgSpeedKmh:          finitePtr(r.AvgSpeedKmh),
		MaxSpeedKmh:          finitePtr(r.MaxSpeedKmh),
		AvgCadence:           finitePtr(r.AvgCadence),
		AvgVerticalRatio:     finitePtr(r.AvgVerticalRatio),
		AvgStanceTimePercent: finitePtr(r.AvgStanceTimePercent),
	})
}

// Rounded returns the presentation copy of the row. Computations must use
// the unrounded values.
func (r RepetitionMetrics) Rounded() RepetitionMetrics {
	out := r
	out.DurationS = roundTo(r.DurationS, 1)
	out.DistanceM = roundTo(r.DistanceM, 1)
	out.AvgSpeedKmh = roundTo(r.AvgSpeedKmh, 1)
	out.MaxSpeedKmh = roundTo(r.MaxSpeedKmh, 1)
	out.AvgCadence = roundTo(r.AvgCadence, 0)
	out.AvgVerticalRatio = roundTo(r.AvgVerticalRatio, 2)
	out.AvgStanceTimePercent = roundTo(r.AvgStanceTimePercent, 1)
	out.PacingDriftPercent = roundPtr(r.PacingDriftPercent, 2)
	return out
}

// AggregateRepetitions builds one metrics row per effort segment.
func AggregateRepetitions(efforts []PhaseSegment) []RepetitionMetrics {
	out := make([]RepetitionMetrics, 0, len(efforts))
	for _, seg := range efforts {
		if seg.Empty() {
			continue
		}
		n := len(seg.Samples)
		speed := make([]float64, n)
		cadence := make([]float64, n)
		vr := make([]float64, n)
		stp := make([]float64, n)
		maxHR := 0
		for i, s := range seg.Samples {
			speed[i] = s.SpeedKmh
			cadence[i] = s.Cadence
			vr[i] = s.VerticalRatio
			stp[i] = s.StanceTimePercent
			if s.HeartRate > maxHR {
				maxHR = s.HeartRate
			}
		}
		out = append(out, RepetitionMetrics{
			CycleNumber:          seg.CycleNumber,
			Half:                 seg.Half,
			DurationS:            seg.DurationS,
			DistanceM:            seg.Samples[n-1].DistanceM - seg.Samples[0].DistanceM,
			AvgSpeedKmh:          average(speed),
			MaxSpeedKmh:          maxValue(speed),
			MaxHeartRate:         maxHR,
			AvgCadence:           average(cadence),
			AvgVerticalRatio:     average(vr),
			AvgStanceTimePercent: average(stp),
		})
	}
	return out
}
