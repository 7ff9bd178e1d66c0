package pipeline

import (
	"context"

	intervals "github.com/lucasjlepore/fit-intervals"
	"go.uber.org/zap"
)

// Output formats for the per-sample and per-repetition tables.
const (
	FormatParquet = "parquet"
	FormatCSV     = "csv"
)

// SessionStore persists an analysed session. *store.Store satisfies it.
type SessionStore interface {
	SaveSession(ctx context.Context, sourceName string, r *intervals.Report) (string, error)
}

// Options controls a file-to-directory run.
type Options struct {
	// InputPath is a .fit activity or a .csv telemetry export.
	InputPath string
	OutDir    string
	Format    string
	Overwrite bool
	// Config zero value means intervals.DefaultConfig.
	Config intervals.Config
	Charts bool
	// Store, when set, receives the report after the artifacts are written.
	Store  SessionStore
	Logger *zap.SugaredLogger
}

// BytesOptions controls an in-memory run, used by the wasm build.
type BytesOptions struct {
	SourceFileName string
	Data           []byte
	Format         string
	Config         intervals.Config
	Charts         bool
	Logger         *zap.SugaredLogger
}

// Result lists the artifacts a run produced.
type Result struct {
	OutputDir            string            `json:"output_dir,omitempty"`
	ReportPath           string            `json:"report_path,omitempty"`
	NotesPath            string            `json:"notes_path,omitempty"`
	SamplesPath          string            `json:"samples_path,omitempty"`
	RepetitionsPath      string            `json:"repetitions_path,omitempty"`
	RecoveriesPath       string            `json:"recoveries_path,omitempty"`
	RepetitionsChartPath string            `json:"repetitions_chart_path,omitempty"`
	SpeedChartPath       string            `json:"speed_chart_path,omitempty"`
	SessionID            string            `json:"session_id,omitempty"`
	Warnings             []string          `json:"warnings,omitempty"`
	Files                map[string][]byte `json:"-"`
	Report               *intervals.Report `json:"-"`
}

// Artifact file names.
const (
	reportFile           = "report.json"
	notesFile            = "notes.md"
	recoveriesFile       = "recoveries.csv"
	repetitionsChartFile = "repetitions.png"
	speedChartFile       = "speed_phases.html"
)

func samplesFile(format string) string     { return "samples." + format }
func repetitionsFile(format string) string { return "repetitions." + format }
