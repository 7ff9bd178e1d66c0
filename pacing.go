package intervals

import "encoding/json"

// PacingStyle classifies how a repetition was paced relative to the session.
type PacingStyle string

const (
	PacingRapidStart       PacingStyle = "rapid_start"
	PacingProgressiveStart PacingStyle = "progressive_start"
)

// PacingSummary aggregates repetitions sharing a pacing style.
type PacingSummary struct {
	Style             PacingStyle `json:"pacing_style"`
	Count             int         `json:"count"`
	MeanDurationS     float64     `json:"mean_duration_s"`
	MeanMaxHeartRate  float64     `json:"mean_max_heart_rate_bpm"`
	MeanVerticalRatio float64     `json:"mean_vertical_ratio"`
}

// PacingDrift is the gap between peak and average speed as a percentage
// of the average. It is undefined when the average speed is zero.
func PacingDrift(avgSpeedKmh, maxSpeedKmh float64) (float64, bool) {
	if !isFinite(avgSpeedKmh) || !isFinite(maxSpeedKmh) || avgSpeedKmh == 0 {
		return 0, false
	}
	return (maxSpeedKmh - avgSpeedKmh) / avgSpeedKmh * 100, true
}

// AnalyzePacing sets PacingDriftPercent and PacingStyle on every row. Rows
// with a drift above the session median are rapid starts; the rest,
// including ties, are progressive. Rows with undefined drift keep a nil
// drift and no style, and are reported in the returned errors.
func AnalyzePacing(reps []RepetitionMetrics) []*UndefinedMetricError {
	var errs []*UndefinedMetricError
	defined := make([]float64, 0, len(reps))
	for i := range reps {
		drift, ok := PacingDrift(reps[i].AvgSpeedKmh, reps[i].MaxSpeedKmh)
		if !ok {
			reps[i].PacingDriftPercent = nil
			reps[i].PacingStyle = ""
			errs = append(errs, &UndefinedMetricError{
				Metric:      string(MetricPacingDrift),
				CycleNumber: reps[i].CycleNumber,
				Reason:      "average speed is zero",
			})
			continue
		}
		reps[i].PacingDriftPercent = floatPtr(drift)
		defined = append(defined, drift)
	}
	if len(defined) == 0 {
		return errs
	}

	mid := median(defined)
	for i := range reps {
		if reps[i].PacingDriftPercent == nil {
			continue
		}
		if *reps[i].PacingDriftPercent > mid {
			reps[i].PacingStyle = PacingRapidStart
		} else {
			reps[i].PacingStyle = PacingProgressiveStart
		}
	}
	return errs
}

// SummarizePacing groups classified repetitions by style. Styles without
// repetitions are omitted.
func SummarizePacing(reps []RepetitionMetrics) []PacingSummary {
	groups := map[PacingStyle][]RepetitionMetrics{}
	for _, r := range reps {
		if r.PacingStyle == "" {
			continue
		}
		groups[r.PacingStyle] = append(groups[r.PacingStyle], r)
	}

	out := make([]PacingSummary, 0, 2)
	for _, style := range []PacingStyle{PacingProgressiveStart, PacingRapidStart} {
		rows := groups[style]
		if len(rows) == 0 {
			continue
		}
		durations := make([]float64, len(rows))
		hr := make([]float64, len(rows))
		vr := make([]float64, len(rows))
		for i, r := range rows {
			durations[i] = r.DurationS
			hr[i] = float64(r.MaxHeartRate)
			vr[i] = r.AvgVerticalRatio
		}
		out = append(out, PacingSummary{
			Style:             style,
			Count:             len(rows),
			MeanDurationS:     average(durations),
			MeanMaxHeartRate:  average(hr),
			MeanVerticalRatio: average(vr),
		})
	}
	return out
}

// MarshalJSON encodes undefined means as null.
func (p PacingSummary) MarshalJSON() ([]byte, error) {
	type plain PacingSummary
	return json.Marshal(struct {
		plain
		MeanVerticalRatio *float64 `json:"mean_vertical_ratio"`
	}{plain(p), finitePtr(p.MeanVerticalRatio)})
}

// Rounded returns the presentation copy of the summary.
func (p PacingSummary) Rounded() PacingSummary {
	p.MeanDurationS = roundTo(p.MeanDurationS, 2)
	p.MeanMaxHeartRate = roundTo(p.MeanMaxHeartRate, 2)
	p.MeanVerticalRatio = roundTo(p.MeanVerticalRatio, 2)
	return p
}
