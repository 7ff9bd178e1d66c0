//go:build js && wasm

package main

import (
	"archive/zip"
	"bytes"
	"fmt"
	"sort"
	"syscall/js"
	"time"

	intervals "github.com/lucasjlepore/fit-intervals"
	"github.com/lucasjlepore/fit-intervals/pipeline"
)

func main() {
	js.Global().Set("analyzeFit", js.FuncOf(analyzeFit))
	select {}
}

func analyzeFit(_ js.Value, args []js.Value) any {
	if len(args) < 2 {
		return map[string]any{
			"ok":    false,
			"error": "expected arguments: fileBytes(Uint8Array), options(object)",
		}
	}
	fileArg := args[0]
	optsArg := args[1]
	if fileArg.IsUndefined() || fileArg.IsNull() || fileArg.Get("length").Int() == 0 {
		return map[string]any{
			"ok":    false,
			"error": "activity file bytes are required",
		}
	}

	fileBytes := make([]byte, fileArg.Get("length").Int())
	if n := js.CopyBytesToGo(fileBytes, fileArg); n == 0 {
		return map[string]any{
			"ok":    false,
			"error": "failed to read activity bytes from JS input",
		}
	}

	cfg := configFromJS(optsArg)
	if err := cfg.Validate(); err != nil {
		return map[string]any{
			"ok":    false,
			"error": err.Error(),
		}
	}

	opts := pipeline.BytesOptions{
		SourceFileName: getString(optsArg, "source_file_name", "input.fit"),
		Data:           fileBytes,
		Format:         getString(optsArg, "format", pipeline.FormatCSV),
		Config:         cfg,
		Charts:         getBool(optsArg, "charts"),
	}
	result, err := pipeline.RunBytes(opts)
	if err != nil {
		return map[string]any{
			"ok":    false,
			"error": err.Error(),
		}
	}

	zipBytes, err := zipArtifacts(result.Files)
	if err != nil {
		return map[string]any{
			"ok":    false,
			"error": fmt.Sprintf("create zip: %v", err),
		}
	}
	payload := js.Global().Get("Uint8Array").New(len(zipBytes))
	js.CopyBytesToJS(payload, zipBytes)

	fileNames := make([]string, 0, len(result.Files))
	for name := range result.Files {
		fileNames = append(fileNames, name)
	}
	sort.Strings(fileNames)

	return map[string]any{
		"ok":       true,
		"zip":      payload,
		"warnings": stringsToAny(result.Warnings),
		"files":    stringsToAny(fileNames),
		"session":  result.Report.SessionStructure.CanonicalLabel,
		"notes":    result.Report.Notes,
	}
}

// configFromJS overlays the numeric options present on the JS object onto
// the default configuration.
func configFromJS(v js.Value) intervals.Config {
	cfg := intervals.DefaultConfig()
	if f := getFloat(v, "effort_distance_m"); f > 0 {
		cfg.EffortDistanceM = f
	}
	if f := getFloat(v, "recovery_distance_m"); f > 0 {
		cfg.RecoveryDistanceM = f
	}
	if f := getFloat(v, "resting_speed_threshold_kmh"); f > 0 {
		cfg.RestingSpeedThresholdKmh = f
	}
	if f := getFloat(v, "resting_stride_threshold_mm"); f > 0 {
		cfg.RestingStrideThresholdMM = &f
	}
	if f := getFloat(v, "max_cycles"); f > 0 {
		cfg.MaxCycles = int(f)
	}
	if f := getFloat(v, "half_split_cycle_count"); f > 0 {
		cfg.HalfSplitCycleCount = int(f)
	}
	if f := getFloat(v, "top_n_correlations"); f > 0 {
		cfg.TopNCorrelations = int(f)
	}
	// Zero is a meaningful margin or pause setting, so these apply whenever
	// the key holds a number and are left to Validate.
	if f, ok := lookupFloat(v, "search_trigger_margin_m"); ok {
		cfg.SearchTriggerMarginM = f
	}
	if f, ok := lookupFloat(v, "confirmation_margin_m"); ok {
		cfg.ConfirmationMarginM = f
	}
	if f, ok := lookupFloat(v, "pause_min_gap_s"); ok {
		cfg.PauseMinGapS = f
	}
	if f, ok := lookupFloat(v, "pause_max_distance_m"); ok {
		cfg.PauseMaxDistanceM = f
	}
	return cfg
}

func zipArtifacts(files map[string][]byte) ([]byte, error) {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	fixedTime := time.Unix(0, 0).UTC()

	for _, name := range names {
		h := &zip.FileHeader{
			Name:   name,
			Method: zip.Deflate,
		}
		h.SetModTime(fixedTime)
		w, err := zw.CreateHeader(h)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(files[name]); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func getString(v js.Value, key, fallback string) string {
	if v.IsUndefined() || v.IsNull() {
		return fallback
	}
	out := v.Get(key)
	if out.IsUndefined() || out.IsNull() {
		return fallback
	}
	s := out.String()
	if s == "" || s == "undefined" || s == "null" {
		return fallback
	}
	return s
}

func getFloat(v js.Value, key string) float64 {
	f, _ := lookupFloat(v, key)
	return f
}

func lookupFloat(v js.Value, key string) (float64, bool) {
	if v.IsUndefined() || v.IsNull() {
		return 0, false
	}
	out := v.Get(key)
	if out.Type() != js.TypeNumber {
		return 0, false
	}
	return out.Float(), true
}

func getBool(v js.Value, key string) bool {
	if v.IsUndefined() || v.IsNull() {
		return false
	}
	out := v.Get(key)
	return out.Type() == js.TypeBoolean && out.Bool()
}

func stringsToAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
