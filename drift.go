package intervals

import "fmt"

// HalfMeans holds the per-metric means of one half. A nil value means no
// repetition of that half had the metric defined.
type HalfMeans struct {
	Half        int                 `json:"half"`
	Repetitions int                 `json:"repetitions"`
	Values      map[Metric]*float64 `json:"values"`
}

// MetricDrift compares one metric between the two halves.
type MetricDrift struct {
	Metric    Metric   `json:"metric"`
	Half1Mean *float64 `json:"s1_avg"`
	Half2Mean *float64 `json:"s2_avg"`
	Change    *float64 `json:"drift_change"`
	Percent   *float64 `json:"drift_percent"`
}

// DriftReport is the first-half versus second-half comparison.
type DriftReport struct {
	HalfMeans []HalfMeans   `json:"half_means"`
	Metrics   []MetricDrift `json:"metrics"`
}

// Metric returns the drift row for m.
func (d *DriftReport) Metric(m Metric) (MetricDrift, bool) {
	if d == nil {
		return MetricDrift{}, false
	}
	for _, row := range d.Metrics {
		if row.Metric == m {
			return row, true
		}
	}
	return MetricDrift{}, false
}

// AnalyzeDrift compares the mean of every repetition metric between half 1
// and half 2: change = mean2 - mean1 and percent = change / mean1 * 100.
// It returns ErrInsufficientHalves unless both halves have repetitions.
// Metrics whose percent (or change) cannot be computed are left nil and
// reported in the returned slice; the remaining metrics are unaffected.
func AnalyzeDrift(reps []RepetitionMetrics) (*DriftReport, []*UndefinedMetricError, error) {
	byHalf := map[int][]RepetitionMetrics{}
	for _, r := range reps {
		byHalf[r.Half] = append(byHalf[r.Half], r)
	}
	if len(byHalf[1]) == 0 || len(byHalf[2]) == 0 {
		return nil, nil, fmt.Errorf("%w (half 1: %d, half 2: %d)", ErrInsufficientHalves, len(byHalf[1]), len(byHalf[2]))
	}

	report := &DriftReport{
		HalfMeans: []HalfMeans{
			halfMeans(1, byHalf[1]),
			halfMeans(2, byHalf[2]),
		},
		Metrics: make([]MetricDrift, 0, len(RepetitionMetricSet)),
	}

	var errs []*UndefinedMetricError
	for _, m := range RepetitionMetricSet {
		row := MetricDrift{
			Metric:    m,
			Half1Mean: report.HalfMeans[0].Values[m],
			Half2Mean: report.HalfMeans[1].Values[m],
		}
		switch {
		case row.Half1Mean == nil || row.Half2Mean == nil:
			errs = append(errs, &UndefinedMetricError{Metric: "drift of " + string(m), Reason: "metric undefined for every repetition of a half"})
		default:
			change := *row.Half2Mean - *row.Half1Mean
			row.Change = floatPtr(change)
			if *row.Half1Mean == 0 {
				errs = append(errs, &UndefinedMetricError{Metric: "drift_percent of " + string(m), Reason: "half 1 mean is zero"})
			} else {
				row.Percent = floatPtr(change / *row.Half1Mean * 100)
			}
		}
		report.Metrics = append(report.Metrics, row)
	}
	return report, errs, nil
}

func halfMeans(half int, reps []RepetitionMetrics) HalfMeans {
	hm := HalfMeans{
		Half:        half,
		Repetitions: len(reps),
		Values:      make(map[Metric]*float64, len(RepetitionMetricSet)),
	}
	values := make([]float64, len(reps))
	for _, m := range RepetitionMetricSet {
		for i, r := range reps {
			values[i] = r.Value(m)
		}
		if mean := average(values); isFinite(mean) {
			hm.Values[m] = floatPtr(mean)
		} else {
			hm.Values[m] = nil
		}
	}
	return hm
}

// Rounded returns the presentation copy of the report.
func (d *DriftReport) Rounded() *DriftReport {
	if d == nil {
		return nil
	}
	out := &DriftReport{
		HalfMeans: make([]HalfMeans, len(d.HalfMeans)),
		Metrics:   make([]MetricDrift, len(d.Metrics)),
	}
	for i, hm := range d.HalfMeans {
		values := make(map[Metric]*float64, len(hm.Values))
		for m, v := range hm.Values {
			values[m] = roundPtr(v, 2)
		}
		out.HalfMeans[i] = HalfMeans{Half: hm.Half, Repetitions: hm.Repetitions, Values: values}
	}
	for i, row := range d.Metrics {
		out.Metrics[i] = MetricDrift{
			Metric:    row.Metric,
			Half1Mean: roundPtr(row.Half1Mean, 2),
			Half2Mean: roundPtr(row.Half2Mean, 2),
			Change:    roundPtr(row.Change, 2),
			Percent:   roundPtr(row.Percent, 2),
		}
	}
	return out
}
