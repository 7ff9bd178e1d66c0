package intervals

import (
	"math"
	"testing"
)

func segmentOf(phase Phase, cycle, half int, samples ...Sample) PhaseSegment {
	return PhaseSegment{
		Phase:       phase,
		CycleNumber: cycle,
		Half:        half,
		Samples:     samples,
		DurationS:   segmentDuration(samples),
	}
}

func TestAggregateRepetitions(t *testing.T) {
	seg := segmentOf(PhaseEffort, 2, 1,
		Sample{ElapsedS: 10, DistanceM: 300, SpeedKmh: 16, HeartRate: 150, Cadence: 176, VerticalRatio: 8.0, StanceTimePercent: 35.0},
		Sample{ElapsedS: 11, DistanceM: 305, SpeedKmh: 18, HeartRate: 158, Cadence: 180, VerticalRatio: 8.4, StanceTimePercent: 34.0},
		Sample{ElapsedS: 12, DistanceM: 310, SpeedKmh: 20, HeartRate: 163, Cadence: math.NaN(), VerticalRatio: 8.2, StanceTimePercent: 33.0},
	)

	reps := AggregateRepetitions([]PhaseSegment{seg})
	if len(reps) != 1 {
		t.Fatalf("expected 1 repetition, got %d", len(reps))
	}
	r := reps[0]
	const delta = 1e-9
	checks := []struct {
		name string
		got  float64
		want float64
	}{
		{"duration", r.DurationS, 2},
		{"distance", r.DistanceM, 10},
		{"avg speed", r.AvgSpeedKmh, 18},
		{"max speed", r.MaxSpeedKmh, 20},
		{"max hr", float64(r.MaxHeartRate), 163},
		{"avg cadence skips missing", r.AvgCadence, 178},
		{"avg vertical ratio", r.AvgVerticalRatio, 8.2},
		{"avg stance time", r.AvgStanceTimePercent, 34},
	}
	for _, c := range checks {
		if math.Abs(c.got-c.want) > delta {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
	if r.CycleNumber != 2 || r.Half != 1 {
		t.Fatalf("unexpected identity: cycle %d half %d", r.CycleNumber, r.Half)
	}
	if r.PacingDriftPercent != nil {
		t.Fatal("pacing drift must be unset before AnalyzePacing")
	}
}

func TestRepetitionRoundedIsPresentationOnly(t *testing.T) {
	r := RepetitionMetrics{
		DurationS:            41.26,
		AvgSpeedKmh:          17.564,
		MaxSpeedKmh:          18.04,
		AvgCadence:           179.6,
		AvgVerticalRatio:     8.2049,
		AvgStanceTimePercent: 34.46,
		PacingDriftPercent:   floatPtr(2.4999),
	}
	got := r.Rounded()
	if got.DurationS != 41.3 || got.AvgSpeedKmh != 17.6 || got.MaxSpeedKmh != 18 {
		t.Fatalf("unexpected rounding of duration/speeds: %+v", got)
	}
	if got.AvgCadence != 180 || got.AvgVerticalRatio != 8.2 || got.AvgStanceTimePercent != 34.5 {
		t.Fatalf("unexpected rounding of form metrics: %+v", got)
	}
	if *got.PacingDriftPercent != 2.5 {
		t.Fatalf("drift rounded to %v", *got.PacingDriftPercent)
	}
	if r.AvgSpeedKmh != 17.564 || *r.PacingDriftPercent != 2.4999 {
		t.Fatal("Rounded must not modify the source row")
	}
}

func TestAnalyzePacing(t *testing.T) {
	reps := []RepetitionMetrics{
		{CycleNumber: 1, Half: 1, AvgSpeedKmh: 16, MaxSpeedKmh: 20, DurationS: 44, MaxHeartRate: 170, AvgVerticalRatio: 8},
		{CycleNumber: 2, Half: 1, AvgSpeedKmh: 18, MaxSpeedKmh: 18.9, DurationS: 40, MaxHeartRate: 172, AvgVerticalRatio: 8.2},
		{CycleNumber: 3, Half: 2, AvgSpeedKmh: 0, MaxSpeedKmh: 0, DurationS: 60, MaxHeartRate: 150, AvgVerticalRatio: 9},
		{CycleNumber: 4, Half: 2, AvgSpeedKmh: 17, MaxSpeedKmh: 18.7, DurationS: 42, MaxHeartRate: 174, AvgVerticalRatio: 8.4},
		{CycleNumber: 5, Half: 2, AvgSpeedKmh: 18, MaxSpeedKmh: 18, DurationS: 40, MaxHeartRate: 175, AvgVerticalRatio: 8.6},
	}

	errs := AnalyzePacing(reps)
	if len(errs) != 1 || errs[0].CycleNumber != 3 {
		t.Fatalf("expected one undefined drift for cycle 3, got %v", errs)
	}
	if reps[2].PacingDriftPercent != nil || reps[2].PacingStyle != "" {
		t.Fatal("undefined drift must stay nil and unclassified")
	}

	// Defined drifts: 25, 5, 10, 0 -> median 7.5.
	wantDrift := map[int]float64{1: 25, 2: 5, 4: 10, 5: 0}
	wantStyle := map[int]PacingStyle{1: PacingRapidStart, 2: PacingProgressiveStart, 4: PacingRapidStart, 5: PacingProgressiveStart}
	for _, r := range reps {
		want, ok := wantDrift[r.CycleNumber]
		if !ok {
			continue
		}
		if r.PacingDriftPercent == nil || math.Abs(*r.PacingDriftPercent-want) > 1e-9 {
			t.Fatalf("cycle %d drift = %v, want %v", r.CycleNumber, r.PacingDriftPercent, want)
		}
		if *r.PacingDriftPercent < 0 {
			t.Fatalf("cycle %d drift is negative", r.CycleNumber)
		}
		if r.PacingStyle != wantStyle[r.CycleNumber] {
			t.Fatalf("cycle %d style = %s, want %s", r.CycleNumber, r.PacingStyle, wantStyle[r.CycleNumber])
		}
	}

	summary := SummarizePacing(reps)
	if len(summary) != 2 {
		t.Fatalf("expected two styles, got %d", len(summary))
	}
	if summary[0].Style != PacingProgressiveStart || summary[0].Count != 2 {
		t.Fatalf("unexpected progressive summary: %+v", summary[0])
	}
	if math.Abs(summary[0].MeanDurationS-40) > 1e-9 || math.Abs(summary[0].MeanMaxHeartRate-173.5) > 1e-9 {
		t.Fatalf("unexpected progressive means: %+v", summary[0])
	}
	if summary[1].Style != PacingRapidStart || summary[1].Count != 2 || math.Abs(summary[1].MeanVerticalRatio-8.2) > 1e-9 {
		t.Fatalf("unexpected rapid summary: %+v", summary[1])
	}
}

func TestAnalyzePacingTiesAreProgressive(t *testing.T) {
	reps := []RepetitionMetrics{
		{CycleNumber: 1, AvgSpeedKmh: 10, MaxSpeedKmh: 11},
		{CycleNumber: 2, AvgSpeedKmh: 10, MaxSpeedKmh: 11},
		{CycleNumber: 3, AvgSpeedKmh: 10, MaxSpeedKmh: 11},
	}
	AnalyzePacing(reps)
	for _, r := range reps {
		if r.PacingStyle != PacingProgressiveStart {
			t.Fatalf("cycle %d: tie with median must be progressive, got %s", r.CycleNumber, r.PacingStyle)
		}
	}
}

func TestAnalyzeRecovery(t *testing.T) {
	segs := []PhaseSegment{
		segmentOf(PhaseRecovery, 1, 1,
			Sample{ElapsedS: 40, HeartRate: 172},
			Sample{ElapsedS: 60, HeartRate: 160},
			Sample{ElapsedS: 80, HeartRate: 152},
		),
		segmentOf(PhaseRecovery, 2, 1, Sample{ElapsedS: 200, HeartRate: 170}),
		segmentOf(PhaseRecovery, 9, 2,
			Sample{ElapsedS: 900, HeartRate: 165},
			Sample{ElapsedS: 930, HeartRate: 168},
		),
		segmentOf(PhaseRecovery, 10, 2,
			Sample{ElapsedS: 1000, HeartRate: 170},
			Sample{ElapsedS: 1000, HeartRate: 166},
		),
	}

	rows, diags := AnalyzeRecovery(segs)
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if len(diags) != 1 || diags[0].CycleNumber != 2 {
		t.Fatalf("expected cycle 2 to be skipped, got %v", diags)
	}

	first := rows[0]
	if first.HeartRateStart != 172 || first.HeartRateEnd != 152 || first.HeartRateDrop != 20 {
		t.Fatalf("unexpected heart rates: %+v", first)
	}
	if math.Abs(first.RecoveryRateBPMPS-0.5) > 1e-9 || first.DurationS != 40 {
		t.Fatalf("unexpected rate/duration: %+v", first)
	}

	rising := rows[1]
	if rising.HeartRateDrop != -3 || rising.RecoveryRateBPMPS >= 0 {
		t.Fatalf("rising heart rate must give a negative drop and rate: %+v", rising)
	}

	if rows[2].DurationS != 0 || rows[2].RecoveryRateBPMPS != 0 {
		t.Fatalf("zero duration must give a zero rate: %+v", rows[2])
	}

	summary := SummarizeRecovery(rows)
	if len(summary) != 2 {
		t.Fatalf("expected two halves, got %d", len(summary))
	}
	if summary[0].Half != 1 || summary[0].Count != 1 || summary[0].MeanHeartRateStart != 172 {
		t.Fatalf("unexpected half 1 summary: %+v", summary[0])
	}
	if summary[1].Half != 2 || summary[1].Count != 2 || summary[1].MeanHeartRateStart != 167.5 || summary[1].MeanHeartRateEnd != 167 {
		t.Fatalf("unexpected half 2 summary: %+v", summary[1])
	}
	if math.Abs(summary[1].MeanRecoveryRate-(-0.05)) > 1e-9 {
		t.Fatalf("half 2 mean rate = %v, want -0.05", summary[1].MeanRecoveryRate)
	}
}
