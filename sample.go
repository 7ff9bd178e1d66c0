package intervals

import (
	"math"
	"time"
)

// Column names used in data format errors and tabular collaborators.
const (
	ColumnTimestamp         = "timestamp"
	ColumnElapsedTime       = "elapsed_time_s"
	ColumnDistance          = "distance_m"
	ColumnSpeed             = "speed_kmh"
	ColumnHeartRate         = "heart_rate_bpm"
	ColumnCadence           = "cadence_step_per_min"
	ColumnStrideLength      = "stride_length_mm"
	ColumnVerticalRatio     = "vertical_ratio"
	ColumnStanceTimePercent = "stance_time_percent"
)

// Record is one decoded telemetry row before cleaning. Nil fields were
// absent or invalid in the source.
type Record struct {
	Timestamp         time.Time
	ElapsedS          float64
	DistanceM         *float64
	SpeedKmh          *float64
	HeartRate         *int
	Cadence           *float64
	StrideLengthMM    *float64
	VerticalRatio     *float64
	StanceTimePercent *float64
}

// Sample is one cleaned sensor reading. Cadence, VerticalRatio and
// StanceTimePercent are NaN when the row did not carry them.
type Sample struct {
	Timestamp         time.Time `json:"timestamp"`
	ElapsedS          float64   `json:"elapsed_time_s"`
	MovingElapsedS    float64   `json:"moving_elapsed_time_s"`
	DistanceM         float64   `json:"distance_m"`
	SpeedKmh          float64   `json:"speed_kmh"`
	HeartRate         int       `json:"heart_rate_bpm"`
	Cadence           float64   `json:"cadence_step_per_min"`
	StrideLengthMM    *float64  `json:"stride_length_mm,omitempty"`
	VerticalRatio     float64   `json:"vertical_ratio"`
	StanceTimePercent float64   `json:"stance_time_percent"`
}

// CleanStats counts what Clean kept and dropped.
type CleanStats struct {
	Input            int `json:"input"`
	DroppedMissing   int `json:"dropped_missing"`
	DroppedDuplicate int `json:"dropped_duplicate"`
	Kept             int `json:"kept"`
}

// SampleSeries is the ordered, cleaned input to segmentation.
type SampleSeries struct {
	Samples         []Sample
	HasStrideLength bool
	Stats           CleanStats
}

// Len returns the number of samples.
func (s SampleSeries) Len() int { return len(s.Samples) }

// Clean validates decoded records and builds the sample series. Rows
// missing speed, heart rate or distance are dropped; later rows sharing a
// timestamp with an earlier row are dropped. A required column absent from
// every record, a negative or non-finite value, or an out-of-order row is a
// DataFormatError.
func Clean(records []Record, cfg Config) (SampleSeries, error) {
	series := SampleSeries{Stats: CleanStats{Input: len(records)}}
	if len(records) == 0 {
		return series, nil
	}
	if err := checkColumns(records); err != nil {
		return series, err
	}

	out := make([]Sample, 0, len(records))
	var (
		prevTS       time.Time
		prevDistance = math.Inf(-1)
	)
	for i, rec := range records {
		if rec.SpeedKmh == nil || rec.HeartRate == nil || rec.DistanceM == nil {
			series.Stats.DroppedMissing++
			continue
		}
		speed, dist, hr := *rec.SpeedKmh, *rec.DistanceM, *rec.HeartRate
		if !isFinite(speed) || speed < 0 {
			return series, &DataFormatError{Field: ColumnSpeed, Row: i, Reason: "must be a finite value >= 0"}
		}
		if !isFinite(dist) {
			return series, &DataFormatError{Field: ColumnDistance, Row: i, Reason: "must be finite"}
		}
		if hr <= 0 {
			series.Stats.DroppedMissing++
			continue
		}
		if !isFinite(rec.ElapsedS) {
			return series, &DataFormatError{Field: ColumnElapsedTime, Row: i, Reason: "must be finite"}
		}
		if len(out) > 0 {
			if rec.Timestamp.Before(prevTS) {
				return series, &DataFormatError{Field: ColumnTimestamp, Row: i, Reason: "timestamps must be non-decreasing"}
			}
			if rec.Timestamp.Equal(prevTS) {
				series.Stats.DroppedDuplicate++
				continue
			}
			if dist < prevDistance {
				return series, &DataFormatError{Field: ColumnDistance, Row: i, Reason: "cumulative distance decreased"}
			}
		}

		s := Sample{
			Timestamp:         rec.Timestamp,
			ElapsedS:          rec.ElapsedS,
			DistanceM:         dist,
			SpeedKmh:          speed,
			HeartRate:         hr,
			Cadence:           valueOrNaN(rec.Cadence),
			VerticalRatio:     valueOrNaN(rec.VerticalRatio),
			StanceTimePercent: valueOrNaN(rec.StanceTimePercent),
		}
		if rec.StrideLengthMM != nil && isFinite(*rec.StrideLengthMM) {
			v := *rec.StrideLengthMM
			s.StrideLengthMM = &v
			series.HasStrideLength = true
		}
		out = append(out, s)
		prevTS = rec.Timestamp
		prevDistance = dist
	}

	applyMovingTime(out, cfg.PauseMinGapS, cfg.PauseMaxDistanceM)
	series.Samples = out
	series.Stats.Kept = len(out)
	return series, nil
}

func checkColumns(records []Record) error {
	var distance, speed, hr, cadence, vr, stp bool
	for _, r := range records {
		distance = distance || r.DistanceM != nil
		speed = speed || r.SpeedKmh != nil
		hr = hr || r.HeartRate != nil
		cadence = cadence || r.Cadence != nil
		vr = vr || r.VerticalRatio != nil
		stp = stp || r.StanceTimePercent != nil
	}
	required := []struct {
		name    string
		present bool
	}{
		{ColumnDistance, distance},
		{ColumnSpeed, speed},
		{ColumnHeartRate, hr},
		{ColumnCadence, cadence},
		{ColumnVerticalRatio, vr},
		{ColumnStanceTimePercent, stp},
	}
	for _, c := range required {
		if !c.present {
			return &DataFormatError{Field: c.name, Row: -1, Reason: "required column missing"}
		}
	}
	return nil
}

// applyMovingTime fills MovingElapsedS, excluding gaps where the recording
// kept running while the athlete stood still. A pause still counts as one
// nominal sample interval.
func applyMovingTime(samples []Sample, minGapS, maxDistanceM float64) {
	if len(samples) == 0 {
		return
	}
	moving := 0.0
	samples[0].MovingElapsedS = 0
	for i := 1; i < len(samples); i++ {
		dt := samples[i].ElapsedS - samples[i-1].ElapsedS
		dd := samples[i].DistanceM - samples[i-1].DistanceM
		switch {
		case dt <= 0:
		case minGapS > 0 && dt >= minGapS && dd <= maxDistanceM:
			moving += pauseIntervalS
		default:
			moving += dt
		}
		samples[i].MovingElapsedS = moving
	}
}

const pauseIntervalS = 1.0

func valueOrNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}
