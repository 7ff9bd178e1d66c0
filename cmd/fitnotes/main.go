package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	intervals "github.com/lucasjlepore/fit-intervals"
	"github.com/lucasjlepore/fit-intervals/config"
	"github.com/lucasjlepore/fit-intervals/ingest"
)

func main() {
	var (
		configPath = flag.String("config", "", "Optional config file (yaml, json or toml)")
		jsonOut    = flag.Bool("json", false, "Emit full analysis as JSON")
		showReps   = flag.Bool("reps", false, "Include the repetition table in text output")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] <path-to-fit-or-csv-file>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	filePath := flag.Arg(0)
	records, err := readRecords(filePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read failed: %v\n", err)
		os.Exit(1)
	}
	report, err := intervals.Analyze(records, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "analysis failed: %v\n", err)
		os.Exit(1)
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report.Rounded()); err != nil {
			fmt.Fprintf(os.Stderr, "json encode failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	fmt.Println(report.Notes)
	if *showReps && len(report.Repetitions) > 0 {
		fmt.Println()
		fmt.Println("Repetitions")
		for _, r := range report.Rounded().Repetitions {
			fmt.Printf(
				"- Rep %02d (half %d) | %6.1fs | %5.0f m | %5.2f km/h | %3d bpm | %s\n",
				r.CycleNumber,
				r.Half,
				r.DurationS,
				r.DistanceM,
				r.AvgSpeedKmh,
				r.MaxHeartRate,
				r.PacingStyle,
			)
		}
	}
}

func readRecords(path string) ([]intervals.Record, error) {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return ingest.ReadCSVFile(path)
	}
	activity, err := ingest.DecodeFile(path)
	if err != nil {
		return nil, err
	}
	return activity.Records, nil
}
