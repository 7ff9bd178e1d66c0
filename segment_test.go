package intervals

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestSegmentCyclesIdealSession(t *testing.T) {
	cfg := testConfig()
	cfg.HalfSplitCycleCount = 5
	series := mustClean(t, buildSession(t, sessionOptions{cycles: 10}), cfg)

	res := SegmentCycles(series, cfg)
	if got := len(res.Cycles); got != 10 {
		t.Fatalf("expected 10 cycles, got %d", got)
	}
	for i, c := range res.Cycles {
		if c.Number != i+1 {
			t.Fatalf("cycle %d: number = %d", i, c.Number)
		}
		wantHalf := 1
		if c.Number > 5 {
			wantHalf = 2
		}
		if c.Half != wantHalf {
			t.Fatalf("cycle %d: half = %d, want %d", c.Number, c.Half, wantHalf)
		}
		if c.Len() != samplesPerCycle {
			t.Fatalf("cycle %d: %d samples, want %d", c.Number, c.Len(), samplesPerCycle)
		}
		if c.StartIndex != i*samplesPerCycle {
			t.Fatalf("cycle %d: start index %d, want %d", c.Number, c.StartIndex, i*samplesPerCycle)
		}
		if !almostEqual(c.DistanceM(), 300, 1e-9) {
			t.Fatalf("cycle %d: distance %.3f, want 300", c.Number, c.DistanceM())
		}
	}
	if res.Truncated {
		t.Fatal("did not expect truncation")
	}
	if res.TrailingSamples != 1 {
		t.Fatalf("expected the closing standstill as trailing sample, got %d", res.TrailingSamples)
	}
}

func TestSegmentCyclesNonOverlapping(t *testing.T) {
	cfg := testConfig()
	series := mustClean(t, buildSession(t, sessionOptions{cycles: 6, wobble: true}), cfg)

	res := SegmentCycles(series, cfg)
	prevEnd := 0
	for _, c := range res.Cycles {
		if c.StartIndex != prevEnd {
			t.Fatalf("cycle %d starts at %d, previous ended at %d", c.Number, c.StartIndex, prevEnd)
		}
		if c.EndIndex <= c.StartIndex {
			t.Fatalf("cycle %d is empty", c.Number)
		}
		prevEnd = c.EndIndex
	}
	if prevEnd+res.TrailingSamples != series.Len() {
		t.Fatalf("cycles plus trailing samples cover %d of %d samples", prevEnd+res.TrailingSamples, series.Len())
	}
}

func TestSegmentCyclesMaxCyclesTruncates(t *testing.T) {
	cfg := testConfig()
	cfg.MaxCycles = 4
	series := mustClean(t, buildSession(t, sessionOptions{cycles: 6}), cfg)

	res := SegmentCycles(series, cfg)
	if len(res.Cycles) != 4 {
		t.Fatalf("expected 4 cycles, got %d", len(res.Cycles))
	}
	if !res.Truncated {
		t.Fatal("expected truncation flag")
	}
	want := series.Len() - 4*samplesPerCycle
	if res.TrailingSamples != want {
		t.Fatalf("trailing samples = %d, want %d", res.TrailingSamples, want)
	}
	if !hasDiagnostic(res.Diagnostics, DiagnosticTruncated) {
		t.Fatalf("expected truncated diagnostic, got %v", res.Diagnostics)
	}
}

func TestSegmentCyclesEmptyAndRestless(t *testing.T) {
	cfg := testConfig()

	res := SegmentCycles(SampleSeries{}, cfg)
	if len(res.Cycles) != 0 {
		t.Fatalf("expected no cycles for empty series, got %d", len(res.Cycles))
	}
	if !hasDiagnostic(res.Diagnostics, DiagnosticNoSegments) {
		t.Fatal("expected no_segments diagnostic")
	}

	// A continuous run never drops below the resting threshold.
	records := make([]Record, 0, 600)
	for i := 0; i < 600; i++ {
		records = append(records, Record{
			Timestamp:         sessionStart.Add(time.Duration(i) * time.Second),
			ElapsedS:          float64(i),
			DistanceM:         floatPtr(3 * float64(i)),
			SpeedKmh:          floatPtr(10.8),
			HeartRate:         intPtr(150),
			Cadence:           floatPtr(170),
			VerticalRatio:     floatPtr(8),
			StanceTimePercent: floatPtr(35),
		})
	}
	series := mustClean(t, records, cfg)
	res = SegmentCycles(series, cfg)
	if len(res.Cycles) != 0 {
		t.Fatalf("expected no cycles without rests, got %d", len(res.Cycles))
	}
	if res.TrailingSamples != series.Len() {
		t.Fatalf("expected every sample to be trailing, got %d", res.TrailingSamples)
	}
}

func TestSegmentCyclesIgnoresEarlyRest(t *testing.T) {
	cfg := testConfig()
	records := buildSession(t, sessionOptions{cycles: 3})
	// A stop 100 m into the first effort is before the search trigger.
	*records[20].SpeedKmh = 0

	series := mustClean(t, records, cfg)
	res := SegmentCycles(series, cfg)
	if len(res.Cycles) != 3 {
		t.Fatalf("expected 3 cycles, got %d", len(res.Cycles))
	}
	if res.Cycles[0].Len() != samplesPerCycle {
		t.Fatalf("first cycle was split early: %d samples", res.Cycles[0].Len())
	}
}

func TestSegmentCyclesRestingPolicies(t *testing.T) {
	dipStride := 700.0
	runStride := 1300.0
	opts := sessionOptions{cycles: 4, dipSpeed: 7, dipStride: &dipStride, runStride: &runStride}

	tests := []struct {
		name       string
		stride     *float64
		omitStride bool
		wantCycles int
		wantPolicy RestingPolicy
		wantDiag   bool
	}{
		{name: "speed only misses slow-walk rests", wantCycles: 0, wantPolicy: RestingPolicySpeed},
		{name: "speed or stride", stride: floatPtr(1000), wantCycles: 4, wantPolicy: RestingPolicySpeedOrStride},
		{name: "stride requested without data", stride: floatPtr(1000), omitStride: true, wantCycles: 0, wantPolicy: RestingPolicySpeed, wantDiag: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.RestingStrideThresholdMM = tt.stride
			o := opts
			o.omitStride = tt.omitStride
			series := mustClean(t, buildSession(t, o), cfg)

			res := SegmentCycles(series, cfg)
			if len(res.Cycles) != tt.wantCycles {
				t.Fatalf("cycles = %d, want %d", len(res.Cycles), tt.wantCycles)
			}
			if res.Policy != tt.wantPolicy {
				t.Fatalf("policy = %s, want %s", res.Policy, tt.wantPolicy)
			}
			if got := hasDiagnostic(res.Diagnostics, DiagnosticPolicyFallback); got != tt.wantDiag {
				t.Fatalf("policy fallback diagnostic = %v, want %v", got, tt.wantDiag)
			}
		})
	}
}

func TestRestingClassifier(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RestingStrideThresholdMM = floatPtr(1000)
	c, diag := NewRestingClassifier(cfg, true)
	if diag != nil {
		t.Fatalf("unexpected diagnostic: %v", diag)
	}

	tests := []struct {
		name   string
		sample Sample
		want   bool
	}{
		{"slow", Sample{SpeedKmh: 14.9, StrideLengthMM: floatPtr(1400)}, true},
		{"at threshold", Sample{SpeedKmh: 15, StrideLengthMM: floatPtr(1400)}, false},
		{"short stride", Sample{SpeedKmh: 16, StrideLengthMM: floatPtr(950)}, true},
		{"no stride reading", Sample{SpeedKmh: 16}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.IsResting(tt.sample); got != tt.want {
				t.Fatalf("IsResting() = %v, want %v", got, tt.want)
			}
		})
	}

	speedOnly, _ := NewRestingClassifier(DefaultConfig(), true)
	if speedOnly.IsResting(Sample{SpeedKmh: 16, StrideLengthMM: floatPtr(500)}) {
		t.Fatal("speed-only policy must ignore stride length")
	}
}

func TestHalfAssignment(t *testing.T) {
	got := make([]int, 0, 16)
	for n := 1; n <= 16; n++ {
		got = append(got, halfFor(n, 8))
	}
	want := []int{1, 1, 1, 1, 1, 1, 1, 1, 2, 2, 2, 2, 2, 2, 2, 2}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("half assignment mismatch (-want +got):\n%s", diff)
	}
}
