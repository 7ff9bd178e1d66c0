// Package pipeline runs the interval analysis end to end: decode an activity,
// analyse it, and render the report, tables, notes and charts as artifacts.
package pipeline

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	intervals "github.com/lucasjlepore/fit-intervals"
	"github.com/lucasjlepore/fit-intervals/chart"
	"github.com/lucasjlepore/fit-intervals/ingest"
	"go.uber.org/zap"
)

const phaseOther = "other"

// Run analyses the activity at opts.InputPath and writes every artifact into
// opts.OutDir. When opts.Store is set the report is also persisted.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if strings.TrimSpace(opts.InputPath) == "" {
		return nil, errors.New("input path is required")
	}
	if strings.TrimSpace(opts.OutDir) == "" {
		return nil, errors.New("output directory is required")
	}
	format, err := normalizeFormat(opts.Format)
	if err != nil {
		return nil, err
	}
	log := loggerOrNop(opts.Logger)

	records, warnings, err := loadFile(opts.InputPath)
	if err != nil {
		return nil, err
	}
	log.Infow("decoded activity", "input", opts.InputPath, "records", len(records))

	if err := ensureOutputDir(opts.OutDir, opts.Overwrite); err != nil {
		return nil, err
	}

	res, err := analyze(records, warnings, configOrDefault(opts.Config), format, opts.Charts, log)
	if err != nil {
		return nil, err
	}
	res.OutputDir = opts.OutDir

	names := make([]string, 0, len(res.Files))
	for name := range res.Files {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		data := res.Files[name]
		path := filepath.Join(opts.OutDir, name)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return nil, fmt.Errorf("write %s: %w", name, err)
		}
		log.Debugw("wrote artifact", "path", path, "size", humanize.Bytes(uint64(len(data))))
	}
	res.assignPaths(opts.OutDir, format)

	if opts.Store != nil {
		id, err := opts.Store.SaveSession(ctx, filepath.Base(opts.InputPath), res.Report)
		if err != nil {
			return nil, fmt.Errorf("save session: %w", err)
		}
		res.SessionID = id
		log.Infow("saved session", "id", id)
	}
	return res, nil
}

// RunBytes analyses an in-memory activity and returns the artifacts in
// Result.Files without touching the filesystem. A .csv SourceFileName selects
// the CSV reader; anything else is decoded as FIT.
func RunBytes(opts BytesOptions) (*Result, error) {
	if len(opts.Data) == 0 {
		return nil, errors.New("input data is empty")
	}
	format, err := normalizeFormat(opts.Format)
	if err != nil {
		return nil, err
	}
	log := loggerOrNop(opts.Logger)

	records, warnings, err := loadBytes(opts.SourceFileName, opts.Data)
	if err != nil {
		return nil, err
	}
	return analyze(records, warnings, configOrDefault(opts.Config), format, opts.Charts, log)
}

func analyze(records []intervals.Record, warnings []string, cfg intervals.Config, format string, charts bool, log *zap.SugaredLogger) (*Result, error) {
	report, err := intervals.Analyze(records, cfg)
	if err != nil {
		return nil, fmt.Errorf("analyse session: %w", err)
	}
	log.Infow("analysed session",
		"samples", report.Series.Len(),
		"cycles", len(report.Cycles),
		"repetitions", len(report.Repetitions),
		"truncated", report.Truncated,
	)
	for _, d := range report.Diagnostics {
		log.Debugw("diagnostic", "kind", d.Kind, "cycle", d.CycleNumber, "message", d.Message)
	}

	rounded := report.Rounded()
	res := &Result{
		Report:   report,
		Files:    make(map[string][]byte),
		Warnings: append(append([]string(nil), warnings...), report.Warnings...),
	}

	reportJSON, err := marshalJSON(rounded)
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	res.Files[reportFile] = reportJSON
	res.Files[notesFile] = []byte(report.Notes)

	labels := labelSamples(report.Series.Len(), report.Phases)
	switch format {
	case FormatCSV:
		res.Files[samplesFile(format)], err = marshalSamplesCSV(report.Series, labels)
		if err != nil {
			return nil, fmt.Errorf("encode samples: %w", err)
		}
		res.Files[repetitionsFile(format)], err = marshalRepetitionsCSV(rounded.Repetitions)
		if err != nil {
			return nil, fmt.Errorf("encode repetitions: %w", err)
		}
	case FormatParquet:
		res.Files[samplesFile(format)], err = marshalSamplesParquet(report.Series, labels)
		if err != nil {
			return nil, fmt.Errorf("encode samples parquet: %w", err)
		}
		res.Files[repetitionsFile(format)], err = marshalRepetitionsParquet(report.Repetitions)
		if err != nil {
			return nil, fmt.Errorf("encode repetitions parquet: %w", err)
		}
	}
	res.Files[recoveriesFile], err = marshalRecoveriesCSV(rounded.Recoveries)
	if err != nil {
		return nil, fmt.Errorf("encode recoveries: %w", err)
	}

	if charts {
		if len(report.Repetitions) > 0 {
			png, err := chart.RepetitionsPNG(report.Repetitions)
			if err != nil {
				res.Warnings = append(res.Warnings, fmt.Sprintf("repetition chart skipped: %v", err))
			} else {
				res.Files[repetitionsChartFile] = png
			}
		}
		if report.Series.Len() > 0 {
			html, err := chart.SpeedPhasesHTML(report.Series, report.Phases)
			if err != nil {
				res.Warnings = append(res.Warnings, fmt.Sprintf("speed chart skipped: %v", err))
			} else {
				res.Files[speedChartFile] = html
			}
		}
	}
	return res, nil
}

func (r *Result) assignPaths(dir, format string) {
	path := func(name string) string {
		if _, ok := r.Files[name]; !ok {
			return ""
		}
		return filepath.Join(dir, name)
	}
	r.ReportPath = path(reportFile)
	r.NotesPath = path(notesFile)
	r.SamplesPath = path(samplesFile(format))
	r.RepetitionsPath = path(repetitionsFile(format))
	r.RecoveriesPath = path(recoveriesFile)
	r.RepetitionsChartPath = path(repetitionsChartFile)
	r.SpeedChartPath = path(speedChartFile)
}

func loadFile(path string) ([]intervals.Record, []string, error) {
	if isCSV(path) {
		records, err := ingest.ReadCSVFile(path)
		if err != nil {
			return nil, nil, err
		}
		return records, nil, nil
	}
	activity, err := ingest.DecodeFile(path)
	if err != nil {
		return nil, nil, err
	}
	return activity.Records, activityWarnings(activity), nil
}

func loadBytes(name string, data []byte) ([]intervals.Record, []string, error) {
	if isCSV(name) {
		records, err := ingest.ReadCSV(bytes.NewReader(data))
		if err != nil {
			return nil, nil, err
		}
		return records, nil, nil
	}
	activity, err := ingest.DecodeBytes(data)
	if err != nil {
		return nil, nil, err
	}
	return activity.Records, activityWarnings(activity), nil
}

func isCSV(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".csv")
}

func activityWarnings(a *ingest.Activity) []string {
	var out []string
	if a.Sport != "" && !strings.Contains(strings.ToLower(a.Sport), "running") {
		out = append(out, fmt.Sprintf("activity sport is %q; thresholds assume running", a.Sport))
	}
	if a.Skipped > 0 {
		out = append(out, fmt.Sprintf("skipped %d record messages without a timestamp", a.Skipped))
	}
	return out
}

func normalizeFormat(format string) (string, error) {
	f := strings.ToLower(strings.TrimSpace(format))
	if f == "" {
		return FormatParquet, nil
	}
	if f != FormatParquet && f != FormatCSV {
		return "", fmt.Errorf("unsupported format %q (expected parquet or csv)", format)
	}
	return f, nil
}

func configOrDefault(cfg intervals.Config) intervals.Config {
	if cfg == (intervals.Config{}) {
		return intervals.DefaultConfig()
	}
	return cfg
}

func loggerOrNop(l *zap.SugaredLogger) *zap.SugaredLogger {
	if l == nil {
		return zap.NewNop().Sugar()
	}
	return l
}

func ensureOutputDir(path string, overwrite bool) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return fmt.Errorf("read output directory: %w", err)
	}
	if len(entries) > 0 && !overwrite {
		return fmt.Errorf("output directory is not empty: %s (set overwrite=true to allow)", path)
	}
	return nil
}

func marshalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// sampleLabel tags a sample with the phase and cycle it belongs to.
type sampleLabel struct {
	Phase string
	Cycle int
}

func labelSamples(n int, phases intervals.PhaseSet) []sampleLabel {
	labels := make([]sampleLabel, n)
	for i := range labels {
		labels[i].Phase = phaseOther
	}
	mark := func(segs []intervals.PhaseSegment) {
		for _, seg := range segs {
			for i := seg.StartIndex; i < seg.EndIndex && i < n; i++ {
				labels[i] = sampleLabel{Phase: string(seg.Phase), Cycle: seg.CycleNumber}
			}
		}
	}
	mark(phases.Efforts)
	mark(phases.Recoveries)
	return labels
}

var samplesHeader = []string{
	intervals.ColumnTimestamp,
	intervals.ColumnElapsedTime,
	"moving_elapsed_time_s",
	intervals.ColumnDistance,
	intervals.ColumnSpeed,
	intervals.ColumnHeartRate,
	intervals.ColumnCadence,
	intervals.ColumnStrideLength,
	intervals.ColumnVerticalRatio,
	intervals.ColumnStanceTimePercent,
	"phase",
	"cycle_number",
}

// marshalSamplesCSV writes the cleaned series with the column names the CSV
// reader accepts, so the output can be fed back in.
func marshalSamplesCSV(series intervals.SampleSeries, labels []sampleLabel) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(samplesHeader); err != nil {
		return nil, err
	}
	for i, s := range series.Samples {
		row := []string{
			s.Timestamp.UTC().Format(time.RFC3339Nano),
			formatFloat(s.ElapsedS),
			formatFloat(s.MovingElapsedS),
			formatFloat(s.DistanceM),
			formatFloat(s.SpeedKmh),
			strconv.Itoa(s.HeartRate),
			formatFloat(s.Cadence),
			formatFloatPtr(s.StrideLengthMM),
			formatFloat(s.VerticalRatio),
			formatFloat(s.StanceTimePercent),
			labels[i].Phase,
			formatCycle(labels[i].Cycle),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func marshalRepetitionsCSV(reps []intervals.RepetitionMetrics) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	header := []string{
		"cycle_number", "half", "duration_s", "distance_m", "avg_speed_kmh", "max_speed_kmh",
		"max_heart_rate_bpm", "avg_cadence", "avg_vertical_ratio", "avg_stance_time_percent",
		"pacing_drift_percent", "pacing_style",
	}
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for _, r := range reps {
		row := []string{
			strconv.Itoa(r.CycleNumber),
			strconv.Itoa(r.Half),
			formatFloat(r.DurationS),
			formatFloat(r.DistanceM),
			formatFloat(r.AvgSpeedKmh),
			formatFloat(r.MaxSpeedKmh),
			strconv.Itoa(r.MaxHeartRate),
			formatFloat(r.AvgCadence),
			formatFloat(r.AvgVerticalRatio),
			formatFloat(r.AvgStanceTimePercent),
			formatFloatPtr(r.PacingDriftPercent),
			string(r.PacingStyle),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func marshalRecoveriesCSV(recs []intervals.RecoveryMetrics) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	header := []string{
		"cycle_number", "half", "heart_rate_at_recovery_start", "heart_rate_at_recovery_end",
		"heart_rate_drop", "recovery_duration_s", "recovery_rate_bpm_per_s",
	}
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for _, r := range recs {
		row := []string{
			strconv.Itoa(r.CycleNumber),
			strconv.Itoa(r.Half),
			strconv.Itoa(r.HeartRateStart),
			strconv.Itoa(r.HeartRateEnd),
			strconv.Itoa(r.HeartRateDrop),
			formatFloat(r.DurationS),
			formatFloat(r.RecoveryRateBPMPS),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func formatCycle(n int) string {
	if n == 0 {
		return ""
	}
	return strconv.Itoa(n)
}

// formatFloat leaves NaN cells empty so they read back as missing.
func formatFloat(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatFloatPtr(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}
