package intervals

import (
	"math"
	"testing"
	"time"
)

var sessionStart = time.Date(2026, 3, 14, 7, 30, 0, 0, time.UTC)

const (
	effortSamples   = 40 // 200 m at 18 km/h, 1 Hz
	recoverySamples = 45 // 100 m at 8 km/h, 1 Hz
	samplesPerCycle = 1 + effortSamples + recoverySamples
)

// sessionOptions shapes a synthetic 200 m / 100 m interval session.
type sessionOptions struct {
	cycles int
	// wobble varies the standstill speed and peak heart rate with the
	// position of the rep inside its half, identically in both halves.
	wobble     bool
	halfSplit  int
	dipSpeed   float64 // km/h of the standstill sample opening each cycle
	dipStride  *float64
	runStride  *float64
	omitStride bool
}

// testConfig classifies 8 km/h recoveries as moving so that only the
// standstill sample between cycles counts as resting.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.RestingSpeedThresholdKmh = 6
	return cfg
}

// buildSession returns records at 1 Hz. Each cycle is a standstill sample,
// 40 effort samples at 18 km/h with heart rate ramping 150 to 170 bpm and
// 45 recovery samples at 8 km/h decaying to 155 bpm. A final standstill
// sample closes the last cycle.
func buildSession(t *testing.T, opts sessionOptions) []Record {
	t.Helper()
	if opts.halfSplit == 0 {
		opts.halfSplit = 8
	}
	out := make([]Record, 0, opts.cycles*samplesPerCycle+1)
	idx := 0
	add := func(dist, speed float64, hr int, stride *float64) {
		rec := Record{
			Timestamp:         sessionStart.Add(time.Duration(idx) * time.Second),
			ElapsedS:          float64(idx),
			DistanceM:         floatPtr(dist),
			SpeedKmh:          floatPtr(speed),
			HeartRate:         intPtr(hr),
			Cadence:           floatPtr(180),
			VerticalRatio:     floatPtr(8.2),
			StanceTimePercent: floatPtr(34.5),
		}
		if !opts.omitStride && stride != nil {
			rec.StrideLengthMM = floatPtr(*stride)
		}
		out = append(out, rec)
		idx++
	}

	for c := 0; c < opts.cycles; c++ {
		base := 300 * float64(c)
		w := 0
		if opts.wobble {
			w = c % opts.halfSplit
		}
		add(base, opts.dipSpeed+0.5*float64(w), 155, opts.dipStride)
		for j := 1; j <= effortSamples; j++ {
			hr := 150 + int(math.Round(float64(20+w)*float64(j)/effortSamples))
			add(base+5*float64(j), 18, hr, opts.runStride)
		}
		for j := 1; j <= recoverySamples; j++ {
			hr := 170 + w - int(math.Round(float64(15+w)*float64(j)/recoverySamples))
			add(base+200+float64(j)*100/recoverySamples, 8, hr, opts.runStride)
		}
	}
	add(300*float64(opts.cycles), opts.dipSpeed, 155, opts.dipStride)
	return out
}

func mustClean(t *testing.T, records []Record, cfg Config) SampleSeries {
	t.Helper()
	series, err := Clean(records, cfg)
	if err != nil {
		t.Fatalf("Clean() error: %v", err)
	}
	return series
}

func intPtr(v int) *int {
	return &v
}

func almostEqual(a, b, delta float64) bool {
	return math.Abs(a-b) <= delta
}
