//go:build !js

package pipeline

import (
	"math"
	"time"

	intervals "github.com/lucasjlepore/fit-intervals"
	parquetbuffer "github.com/xitongsys/parquet-go-source/buffer"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"
)

type sampleParquetRow struct {
	TSUTCISO          string  `parquet:"name=timestamp, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	ElapsedS          float64 `parquet:"name=elapsed_time_s, type=DOUBLE"`
	MovingElapsedS    float64 `parquet:"name=moving_elapsed_time_s, type=DOUBLE"`
	DistanceM         float64 `parquet:"name=distance_m, type=DOUBLE"`
	SpeedKmh          float64 `parquet:"name=speed_kmh, type=DOUBLE"`
	HeartRate         int32   `parquet:"name=heart_rate_bpm, type=INT32"`
	Cadence           float64 `parquet:"name=cadence_step_per_min, type=DOUBLE"`
	StrideLengthMM    float64 `parquet:"name=stride_length_mm, type=DOUBLE"`
	VerticalRatio     float64 `parquet:"name=vertical_ratio, type=DOUBLE"`
	StanceTimePercent float64 `parquet:"name=stance_time_percent, type=DOUBLE"`
	Phase             string  `parquet:"name=phase, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	CycleNumber       int32   `parquet:"name=cycle_number, type=INT32"`
}

type repetitionParquetRow struct {
	CycleNumber          int32   `parquet:"name=cycle_number, type=INT32"`
	Half                 int32   `parquet:"name=half, type=INT32"`
	DurationS            float64 `parquet:"name=duration_s, type=DOUBLE"`
	DistanceM            float64 `parquet:"name=distance_m, type=DOUBLE"`
	AvgSpeedKmh          float64 `parquet:"name=avg_speed_kmh, type=DOUBLE"`
	MaxSpeedKmh          float64 `parquet:"name=max_speed_kmh, type=DOUBLE"`
	MaxHeartRate         int32   `parquet:"name=max_heart_rate_bpm, type=INT32"`
	AvgCadence           float64 `parquet:"name=avg_cadence, type=DOUBLE"`
	AvgVerticalRatio     float64 `parquet:"name=avg_vertical_ratio, type=DOUBLE"`
	AvgStanceTimePercent float64 `parquet:"name=avg_stance_time_percent, type=DOUBLE"`
	PacingDriftPercent   float64 `parquet:"name=pacing_drift_percent, type=DOUBLE"`
	PacingStyle          string  `parquet:"name=pacing_style, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
}

func marshalSamplesParquet(series intervals.SampleSeries, labels []sampleLabel) ([]byte, error) {
	rows := make([]any, 0, series.Len())
	for i, s := range series.Samples {
		rows = append(rows, sampleParquetRow{
			TSUTCISO:          s.Timestamp.UTC().Format(time.RFC3339Nano),
			ElapsedS:          s.ElapsedS,
			MovingElapsedS:    s.MovingElapsedS,
			DistanceM:         s.DistanceM,
			SpeedKmh:          s.SpeedKmh,
			HeartRate:         int32(s.HeartRate),
			Cadence:           s.Cadence,
			StrideLengthMM:    ptrOrNaN(s.StrideLengthMM),
			VerticalRatio:     s.VerticalRatio,
			StanceTimePercent: s.StanceTimePercent,
			Phase:             labels[i].Phase,
			CycleNumber:       int32(labels[i].Cycle),
		})
	}
	return marshalParquet(new(sampleParquetRow), rows)
}

func marshalRepetitionsParquet(reps []intervals.RepetitionMetrics) ([]byte, error) {
	rows := make([]any, 0, len(reps))
	for _, r := range reps {
		rows = append(rows, repetitionParquetRow{
			CycleNumber:          int32(r.CycleNumber),
			Half:                 int32(r.Half),
			DurationS:            r.DurationS,
			DistanceM:            r.DistanceM,
			AvgSpeedKmh:          r.AvgSpeedKmh,
			MaxSpeedKmh:          r.MaxSpeedKmh,
			MaxHeartRate:         int32(r.MaxHeartRate),
			AvgCadence:           r.AvgCadence,
			AvgVerticalRatio:     r.AvgVerticalRatio,
			AvgStanceTimePercent: r.AvgStanceTimePercent,
			PacingDriftPercent:   ptrOrNaN(r.PacingDriftPercent),
			PacingStyle:          string(r.PacingStyle),
		})
	}
	return marshalParquet(new(repetitionParquetRow), rows)
}

func marshalParquet(schema any, rows []any) ([]byte, error) {
	fw := parquetbuffer.NewBufferFile()
	if err := writeParquet(fw, schema, rows); err != nil {
		return nil, err
	}
	if err := fw.Close(); err != nil {
		return nil, err
	}
	return append([]byte(nil), fw.Bytes()...), nil
}

func writeParquet(fw source.ParquetFile, schema any, rows []any) error {
	pw, err := writer.NewParquetWriter(fw, schema, 4)
	if err != nil {
		return err
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY
	for _, row := range rows {
		if err := pw.Write(row); err != nil {
			_ = pw.WriteStop()
			return err
		}
	}
	return pw.WriteStop()
}

func ptrOrNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}
