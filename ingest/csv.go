package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	intervals "github.com/lucasjlepore/fit-intervals"
)

// ReadCSVFile loads a tabular sample export from disk.
func ReadCSVFile(path string) ([]intervals.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()
	return ReadCSV(f)
}

// ReadCSV parses a header-first CSV whose columns use the names of the
// intervals.Column* constants. Timestamps are RFC3339; when the elapsed
// time column is absent it is derived from the first timestamp. Empty cells
// are treated as missing values and unknown columns are ignored.
func ReadCSV(r io.Reader) ([]intervals.Record, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	if _, ok := cols[intervals.ColumnTimestamp]; !ok {
		return nil, &intervals.DataFormatError{Field: intervals.ColumnTimestamp, Row: -1, Reason: "required column missing"}
	}
	_, hasElapsed := cols[intervals.ColumnElapsedTime]

	var (
		out   []intervals.Record
		start time.Time
	)
	for row := 0; ; row++ {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row %d: %w", row, err)
		}
		cell := func(name string) string {
			i, ok := cols[name]
			if !ok || i >= len(fields) {
				return ""
			}
			return strings.TrimSpace(fields[i])
		}

		ts, err := time.Parse(time.RFC3339, cell(intervals.ColumnTimestamp))
		if err != nil {
			return nil, &intervals.DataFormatError{Field: intervals.ColumnTimestamp, Row: row, Reason: err.Error()}
		}
		if row == 0 {
			start = ts
		}
		rec := intervals.Record{Timestamp: ts.UTC(), ElapsedS: ts.Sub(start).Seconds()}
		if hasElapsed {
			v, err := parseOptional(cell(intervals.ColumnElapsedTime))
			if err != nil || v == nil {
				return nil, &intervals.DataFormatError{Field: intervals.ColumnElapsedTime, Row: row, Reason: "must be a number"}
			}
			rec.ElapsedS = *v
		}

		floats := []struct {
			name string
			dst  **float64
		}{
			{intervals.ColumnDistance, &rec.DistanceM},
			{intervals.ColumnSpeed, &rec.SpeedKmh},
			{intervals.ColumnCadence, &rec.Cadence},
			{intervals.ColumnStrideLength, &rec.StrideLengthMM},
			{intervals.ColumnVerticalRatio, &rec.VerticalRatio},
			{intervals.ColumnStanceTimePercent, &rec.StanceTimePercent},
		}
		for _, f := range floats {
			v, err := parseOptional(cell(f.name))
			if err != nil {
				return nil, &intervals.DataFormatError{Field: f.name, Row: row, Reason: "must be a number"}
			}
			*f.dst = v
		}
		hr, err := parseOptional(cell(intervals.ColumnHeartRate))
		if err != nil {
			return nil, &intervals.DataFormatError{Field: intervals.ColumnHeartRate, Row: row, Reason: "must be a number"}
		}
		if hr != nil {
			v := int(*hr + 0.5)
			rec.HeartRate = &v
		}
		out = append(out, rec)
	}
	return out, nil
}

func parseOptional(s string) (*float64, error) {
	if s == "" || strings.EqualFold(s, "nan") {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
