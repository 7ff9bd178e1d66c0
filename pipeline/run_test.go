package pipeline

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	intervals "github.com/lucasjlepore/fit-intervals"
	"github.com/lucasjlepore/fit-intervals/ingest"
	"github.com/muktihari/fit/encoder"
	"github.com/muktihari/fit/profile/mesgdef"
	"github.com/muktihari/fit/profile/typedef"
	"github.com/muktihari/fit/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testStart = time.Date(2026, 3, 14, 7, 30, 0, 0, time.UTC)

type point struct {
	sec   int
	distM float64
	kmh   float64
	hr    int
}

// intervalPoints is a 1 Hz session of 200 m at 18 km/h and 100 m at 8 km/h,
// each cycle opened by a standstill sample and the last one closed by one.
func intervalPoints(cycles int) []point {
	var out []point
	sec := 0
	add := func(d, v float64, hr int) {
		out = append(out, point{sec: sec, distM: d, kmh: v, hr: hr})
		sec++
	}
	for c := 0; c < cycles; c++ {
		base := 300 * float64(c)
		add(base, 0, 150)
		for j := 1; j <= 40; j++ {
			add(base+5*float64(j), 18, 150+j/2)
		}
		for j := 1; j <= 45; j++ {
			add(base+200+float64(j)*100/45, 8, 170-j/3)
		}
	}
	add(300*float64(cycles), 0, 150)
	return out
}

func pointsCSV(points []point) []byte {
	var b strings.Builder
	b.WriteString("timestamp,distance_m,speed_kmh,heart_rate_bpm,cadence_step_per_min,vertical_ratio,stance_time_percent\n")
	for _, p := range points {
		fmt.Fprintf(&b, "%s,%g,%g,%d,180,8.2,34.5\n",
			testStart.Add(time.Duration(p.sec)*time.Second).Format(time.RFC3339), p.distM, p.kmh, p.hr)
	}
	return []byte(b.String())
}

func pointsFIT(t *testing.T, points []point) []byte {
	t.Helper()
	fileID := mesgdef.FileId{
		Type:         typedef.FileActivity,
		Manufacturer: typedef.ManufacturerDevelopment,
		TimeCreated:  testStart,
	}
	activity := proto.FIT{}
	activity.Messages = append(activity.Messages, fileID.ToMesg(nil))
	for _, p := range points {
		speed := uint32(p.kmh/3.6*1000 + 0.5)
		rec := mesgdef.Record{
			Timestamp:         testStart.Add(time.Duration(p.sec) * time.Second),
			Distance:          uint32(p.distM*100 + 0.5),
			Speed:             uint16(speed),
			EnhancedSpeed:     speed,
			HeartRate:         uint8(p.hr),
			Cadence:           90,
			VerticalRatio:     820,
			StanceTimePercent: 3450,
			StepLength:        math.MaxUint16,
		}
		activity.Messages = append(activity.Messages, rec.ToMesg(nil))
	}

	path := filepath.Join(t.TempDir(), "track.fit")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, encoder.New(f).Encode(&activity))
	require.NoError(t, f.Close())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}

func pipelineConfig() intervals.Config {
	cfg := intervals.DefaultConfig()
	cfg.RestingSpeedThresholdKmh = 6
	cfg.HalfSplitCycleCount = 2
	return cfg
}

type fakeStore struct {
	source string
	report *intervals.Report
}

func (f *fakeStore) SaveSession(_ context.Context, sourceName string, r *intervals.Report) (string, error) {
	f.source = sourceName
	f.report = r
	return "session-1", nil
}

func readCSV(t *testing.T, data []byte) [][]string {
	t.Helper()
	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestRunBytesCSV(t *testing.T) {
	points := intervalPoints(4)
	res, err := RunBytes(BytesOptions{
		SourceFileName: "track.csv",
		Data:           pointsCSV(points),
		Format:         FormatCSV,
		Config:         pipelineConfig(),
	})
	require.NoError(t, err)

	for _, name := range []string{"report.json", "notes.md", "samples.csv", "repetitions.csv", "recoveries.csv"} {
		assert.Contains(t, res.Files, name)
	}
	assert.NotContains(t, res.Files, "repetitions.png", "charts are opt-in")
	assert.Empty(t, res.OutputDir)

	reps := readCSV(t, res.Files["repetitions.csv"])
	require.Len(t, reps, 5)
	assert.Equal(t, "cycle_number", reps[0][0])
	assert.Equal(t, []string{"1", "2", "3", "4"}, []string{reps[1][0], reps[2][0], reps[3][0], reps[4][0]})

	recs := readCSV(t, res.Files["recoveries.csv"])
	assert.Len(t, recs, 5)

	var report map[string]any
	require.NoError(t, json.Unmarshal(res.Files["report.json"], &report))
	assert.Equal(t, "interval_report_v1", report["schema_version"])
	assert.Len(t, report["repetitions"], 4)

	assert.True(t, strings.Contains(string(res.Files["notes.md"]), "Detected 4 repetitions"))
}

func TestSamplesCSVReadsBack(t *testing.T) {
	points := intervalPoints(2)
	res, err := RunBytes(BytesOptions{
		SourceFileName: "track.csv",
		Data:           pointsCSV(points),
		Format:         FormatCSV,
		Config:         pipelineConfig(),
	})
	require.NoError(t, err)

	rows := readCSV(t, res.Files["samples.csv"])
	require.Len(t, rows, len(points)+1)
	assert.Equal(t, samplesHeader, rows[0])
	assert.Equal(t, "effort", rows[2][10])
	assert.Equal(t, "1", rows[2][11])

	records, err := ingest.ReadCSV(bytes.NewReader(res.Files["samples.csv"]))
	require.NoError(t, err)
	assert.Len(t, records, len(points))
}

func TestRunBytesFIT(t *testing.T) {
	res, err := RunBytes(BytesOptions{
		SourceFileName: "track.fit",
		Data:           pointsFIT(t, intervalPoints(4)),
		Format:         FormatCSV,
		Config:         pipelineConfig(),
	})
	require.NoError(t, err)
	require.NotNil(t, res.Report)
	assert.Len(t, res.Report.Repetitions, 4)
	assert.Len(t, res.Report.Recoveries, 4)
	assert.InDelta(t, 200, res.Report.Repetitions[0].DistanceM, 10)
	assert.InDelta(t, 8.2, res.Report.Repetitions[0].AvgVerticalRatio, 1e-9)
	assert.Contains(t, res.Files, "samples.csv")
}

func TestRunWritesArtifacts(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "track.csv")
	require.NoError(t, os.WriteFile(input, pointsCSV(intervalPoints(4)), 0o644))

	st := &fakeStore{}
	outDir := filepath.Join(dir, "out")
	res, err := Run(context.Background(), Options{
		InputPath: input,
		OutDir:    outDir,
		Format:    FormatParquet,
		Config:    pipelineConfig(),
		Charts:    true,
		Store:     st,
	})
	require.NoError(t, err)

	assert.Equal(t, outDir, res.OutputDir)
	assert.Equal(t, "session-1", res.SessionID)
	assert.Equal(t, "track.csv", st.source)
	assert.Same(t, res.Report, st.report)

	for _, path := range []string{
		res.ReportPath, res.NotesPath, res.SamplesPath, res.RepetitionsPath,
		res.RecoveriesPath, res.RepetitionsChartPath, res.SpeedChartPath,
	} {
		require.NotEmpty(t, path)
		info, err := os.Stat(path)
		require.NoError(t, err, path)
		assert.Positive(t, info.Size(), path)
	}
	assert.Equal(t, ".parquet", filepath.Ext(res.SamplesPath))

	samples, err := os.ReadFile(res.SamplesPath)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(samples, []byte("PAR1")))
}

func TestRunRefusesNonEmptyOutDir(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "track.csv")
	require.NoError(t, os.WriteFile(input, pointsCSV(intervalPoints(2)), 0o644))

	_, err := Run(context.Background(), Options{InputPath: input, OutDir: dir, Config: pipelineConfig()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not empty")

	_, err = Run(context.Background(), Options{InputPath: input, OutDir: dir, Config: pipelineConfig(), Overwrite: true})
	assert.NoError(t, err)
}

func TestRunValidation(t *testing.T) {
	_, err := Run(context.Background(), Options{OutDir: t.TempDir()})
	assert.Error(t, err)

	_, err = RunBytes(BytesOptions{})
	assert.Error(t, err)

	_, err = RunBytes(BytesOptions{SourceFileName: "a.csv", Data: []byte("timestamp\n"), Format: "xlsx"})
	assert.ErrorContains(t, err, "unsupported format")

	_, err = RunBytes(BytesOptions{SourceFileName: "a.csv", Data: []byte("distance_m\n1\n"), Format: FormatCSV})
	var dfe *intervals.DataFormatError
	assert.ErrorAs(t, err, &dfe)
}

func TestNormalizeFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"", FormatParquet, false},
		{"CSV", FormatCSV, false},
		{" parquet ", FormatParquet, false},
		{"json", "", true},
	}
	for _, tc := range tests {
		got, err := normalizeFormat(tc.in)
		if tc.wantErr {
			assert.Error(t, err, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got)
	}
}
