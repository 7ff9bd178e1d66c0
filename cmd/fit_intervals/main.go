package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/guptarohit/asciigraph"
	intervals "github.com/lucasjlepore/fit-intervals"
	"github.com/lucasjlepore/fit-intervals/config"
	"github.com/lucasjlepore/fit-intervals/pipeline"
	"github.com/lucasjlepore/fit-intervals/store"
	"go.uber.org/zap"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run parses args and executes one command, returning the process exit
// code: 0 on success, 1 on failure and 2 on usage errors.
func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("fit_intervals", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		inputPath  = fs.String("input", "", "Path to input .fit or .csv file")
		outDir     = fs.String("out", "", "Output directory")
		format     = fs.String("format", "parquet", "Sample and repetition table format: parquet|csv")
		configPath = fs.String("config", "", "Optional config file (yaml, json or toml)")
		overwrite  = fs.Bool("overwrite", true, "Allow writing into non-empty output directories")
		charts     = fs.Bool("charts", false, "Render repetitions.png and speed_phases.html")
		dbPath     = fs.String("db", "", "Optional SQLite database to record the session in")
		list       = fs.Bool("list", false, "List sessions stored in -db and exit")
		verbose    = fs.Bool("verbose", false, "Enable debug logging")
	)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: %s --input session.fit --out outdir [--format parquet|csv] [--config intervals.yaml] [--db sessions.db]\n", filepath.Base(os.Args[0]))
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	log, err := newLogger(*verbose)
	if err != nil {
		fmt.Fprintf(stderr, "logger: %v\n", err)
		return 1
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if *list {
		if strings.TrimSpace(*dbPath) == "" {
			fs.Usage()
			return 2
		}
		if err := listSessions(ctx, stdout, *dbPath, log); err != nil {
			fmt.Fprintf(stderr, "fit_intervals failed: %v\n", err)
			return 1
		}
		return 0
	}

	if strings.TrimSpace(*inputPath) == "" || strings.TrimSpace(*outDir) == "" {
		fs.Usage()
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "fit_intervals failed: %v\n", err)
		return 2
	}

	opts := pipeline.Options{
		InputPath: *inputPath,
		OutDir:    *outDir,
		Format:    *format,
		Overwrite: *overwrite,
		Config:    cfg,
		Charts:    *charts,
		Logger:    log,
	}
	if strings.TrimSpace(*dbPath) != "" {
		st, err := store.Open(*dbPath, log)
		if err != nil {
			fmt.Fprintf(stderr, "fit_intervals failed: %v\n", err)
			return 1
		}
		defer st.Close()
		opts.Store = st
	}

	result, err := pipeline.Run(ctx, opts)
	if err != nil {
		fmt.Fprintf(stderr, "fit_intervals failed: %v\n", err)
		return 1
	}
	printResult(stdout, result)
	return 0
}

func printResult(w io.Writer, result *pipeline.Result) {
	fmt.Fprintf(w, "fit_intervals complete\n")
	fmt.Fprintf(w, "Session:             %s\n", result.Report.SessionStructure.CanonicalLabel)
	fmt.Fprintf(w, "Output dir:          %s\n", result.OutputDir)
	fmt.Fprintf(w, "report.json:         %s\n", result.ReportPath)
	fmt.Fprintf(w, "notes.md:            %s\n", result.NotesPath)
	fmt.Fprintf(w, "samples:             %s (%s)\n", result.SamplesPath, fileSize(result.SamplesPath))
	fmt.Fprintf(w, "repetitions:         %s\n", result.RepetitionsPath)
	fmt.Fprintf(w, "recoveries:          %s\n", result.RecoveriesPath)
	if result.RepetitionsChartPath != "" {
		fmt.Fprintf(w, "repetitions chart:   %s\n", result.RepetitionsChartPath)
	}
	if result.SpeedChartPath != "" {
		fmt.Fprintf(w, "speed chart:         %s\n", result.SpeedChartPath)
	}
	if result.SessionID != "" {
		fmt.Fprintf(w, "stored session:      %s\n", result.SessionID)
	}
	for _, warn := range result.Warnings {
		fmt.Fprintf(w, "warning:             %s\n", warn)
	}
	if plot := repetitionPlot(result.Report.Repetitions); plot != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, plot)
	}
}

func newLogger(verbose bool) (*zap.SugaredLogger, error) {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.OutputPaths = []string{"stderr"}
	l, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return l.Sugar(), nil
}

func listSessions(ctx context.Context, w io.Writer, dbPath string, log *zap.SugaredLogger) error {
	st, err := store.Open(dbPath, log)
	if err != nil {
		return err
	}
	defer st.Close()

	sessions, err := st.ListSessions(ctx)
	if err != nil {
		return err
	}
	for _, s := range sessions {
		fmt.Fprintf(w, "%s  %-14s  %-20s  %2d cycles  %s\n",
			s.ID,
			humanize.Time(s.StartTime),
			s.SourceName,
			s.CycleCount,
			s.CanonicalLabel,
		)
	}
	return nil
}

// repetitionPlot charts average speed per repetition in the terminal.
func repetitionPlot(reps []intervals.RepetitionMetrics) string {
	if len(reps) < 2 {
		return ""
	}
	speeds := make([]float64, len(reps))
	for i, r := range reps {
		speeds[i] = r.AvgSpeedKmh
	}
	return asciigraph.Plot(speeds,
		asciigraph.Height(8),
		asciigraph.Precision(1),
		asciigraph.Caption("avg speed (km/h) by repetition"),
	)
}

func fileSize(path string) string {
	info, err := os.Stat(path)
	if err != nil {
		return "?"
	}
	return humanize.Bytes(uint64(info.Size()))
}
