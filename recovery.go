package intervals

// RecoveryMetrics describes heart-rate decay over one recovery segment.
// HeartRateDrop is negative when heart rate was still rising.
type RecoveryMetrics struct {
	CycleNumber       int     `json:"cycle_number"`
	Half              int     `json:"half"`
	HeartRateStart    int     `json:"heart_rate_at_recovery_start"`
	HeartRateEnd      int     `json:"heart_rate_at_recovery_end"`
	HeartRateDrop     int     `json:"heart_rate_drop"`
	DurationS         float64 `json:"recovery_duration_s"`
	RecoveryRateBPMPS float64 `json:"recovery_rate_bpm_per_s"`
}

// RecoveryHalfSummary averages recovery rows of one half.
type RecoveryHalfSummary struct {
	Half               int     `json:"half"`
	Count              int     `json:"count"`
	MeanHeartRateStart float64 `json:"mean_heart_rate_at_recovery_start"`
	MeanHeartRateEnd   float64 `json:"mean_heart_rate_at_recovery_end"`
	MeanRecoveryRate   float64 `json:"mean_recovery_rate_bpm_per_s"`
}

// AnalyzeRecovery builds one row per recovery segment with at least two
// samples. The skipped segments are returned as diagnostics.
func AnalyzeRecovery(recoveries []PhaseSegment) ([]RecoveryMetrics, []Diagnostic) {
	out := make([]RecoveryMetrics, 0, len(recoveries))
	var diags []Diagnostic
	for _, seg := range recoveries {
		if len(seg.Samples) < 2 {
			diags = append(diags, Diagnostic{
				Kind:        DiagnosticSkipped,
				CycleNumber: seg.CycleNumber,
				Phase:       PhaseRecovery,
				Message:     "recovery segment has fewer than 2 samples",
			})
			continue
		}
		first := seg.Samples[0].HeartRate
		last := seg.Samples[len(seg.Samples)-1].HeartRate
		drop := first - last
		rate := 0.0
		if seg.DurationS > 0 {
			rate = float64(drop) / seg.DurationS
		}
		out = append(out, RecoveryMetrics{
			CycleNumber:       seg.CycleNumber,
			Half:              seg.Half,
			HeartRateStart:    first,
			HeartRateEnd:      last,
			HeartRateDrop:     drop,
			DurationS:         seg.DurationS,
			RecoveryRateBPMPS: rate,
		})
	}
	return out, diags
}

// SummarizeRecovery groups recovery rows by half, in half order.
func SummarizeRecovery(rows []RecoveryMetrics) []RecoveryHalfSummary {
	byHalf := map[int][]RecoveryMetrics{}
	for _, r := range rows {
		byHalf[r.Half] = append(byHalf[r.Half], r)
	}
	out := make([]RecoveryHalfSummary, 0, 2)
	for _, half := range []int{1, 2} {
		group := byHalf[half]
		if len(group) == 0 {
			continue
		}
		start := make([]float64, len(group))
		end := make([]float64, len(group))
		rate := make([]float64, len(group))
		for i, r := range group {
			start[i] = float64(r.HeartRateStart)
			end[i] = float64(r.HeartRateEnd)
			rate[i] = r.RecoveryRateBPMPS
		}
		out = append(out, RecoveryHalfSummary{
			Half:               half,
			Count:              len(group),
			MeanHeartRateStart: average(start),
			MeanHeartRateEnd:   average(end),
			MeanRecoveryRate:   average(rate),
		})
	}
	return out
}

// Rounded returns the presentation copy of the row.
func (r RecoveryMetrics) Rounded() RecoveryMetrics {
	r.DurationS = roundTo(r.DurationS, 1)
	r.RecoveryRateBPMPS = roundTo(r.RecoveryRateBPMPS, 3)
	return r
}
