package intervals

import "fmt"

// Cycle is one effort+recovery repetition carved from the series.
type Cycle struct {
	Number     int      `json:"cycle_number"`
	Half       int      `json:"half"`
	StartIndex int      `json:"start_index"`
	EndIndex   int      `json:"end_index"` // exclusive
	Samples    []Sample `json:"-"`
}

// Len returns the number of samples in the cycle.
func (c Cycle) Len() int { return len(c.Samples) }

// DistanceM is the distance covered between the first and last sample.
func (c Cycle) DistanceM() float64 {
	if len(c.Samples) == 0 {
		return 0
	}
	return c.Samples[len(c.Samples)-1].DistanceM - c.Samples[0].DistanceM
}

// SegmentResult holds the cycles found in a series. An empty Cycles slice
// means the run succeeded but no repetitions were detected.
type SegmentResult struct {
	Cycles []Cycle       `json:"cycles"`
	Policy RestingPolicy `json:"resting_policy"`
	// Truncated is set when MaxCycles was reached with samples left over;
	// those samples are discarded.
	Truncated bool `json:"truncated"`
	// TrailingSamples counts samples after the last boundary that were not
	// assigned to any cycle.
	TrailingSamples int          `json:"trailing_samples"`
	Diagnostics     []Diagnostic `json:"diagnostics,omitempty"`
}

// SegmentCycles partitions the series into cycles. A cycle is closed at the
// first resting sample lying at least the confirmation distance from the
// cycle start, searched once the distance since the start has reached the
// trigger distance. The boundary sample opens the next cycle.
//
// The scan is linear: the confirmation pointer only moves forward while the
// cycle start is unchanged, so no sample is examined twice per cycle.
func SegmentCycles(series SampleSeries, cfg Config) SegmentResult {
	classifier, diag := NewRestingClassifier(cfg, series.HasStrideLength)
	res := SegmentResult{Policy: classifier.Policy()}
	if diag != nil {
		res.Diagnostics = append(res.Diagnostics, *diag)
	}

	samples := series.Samples
	n := len(samples)
	if n == 0 {
		res.Diagnostics = append(res.Diagnostics, Diagnostic{Kind: DiagnosticNoSegments, Message: "series is empty"})
		return res
	}

	resting := classifier.Classify(series)
	trigger := cfg.TriggerDistanceM()
	confirm := cfg.ConfirmationDistanceM()

	start := 0
	scan := 1
	number := 1
	for i := 1; i < n && number <= cfg.MaxCycles; i++ {
		base := samples[start].DistanceM
		if samples[i].DistanceM-base < trigger {
			continue
		}

		boundary := -1
		for ; scan <= i; scan++ {
			if resting[scan] && samples[scan].DistanceM-base >= confirm {
				boundary = scan
				break
			}
		}
		if boundary < 0 {
			continue
		}

		res.Cycles = append(res.Cycles, Cycle{
			Number:     number,
			Half:       halfFor(number, cfg.HalfSplitCycleCount),
			StartIndex: start,
			EndIndex:   boundary,
			Samples:    samples[start:boundary:boundary],
		})
		number++
		start = boundary
		scan = boundary + 1
	}

	remaining := n - start
	if number > cfg.MaxCycles && remaining > 0 {
		res.Truncated = true
		res.Diagnostics = append(res.Diagnostics, Diagnostic{
			Kind:    DiagnosticTruncated,
			Message: fmt.Sprintf("max_cycles=%d reached; %d trailing samples discarded", cfg.MaxCycles, remaining),
		})
	}
	res.TrailingSamples = remaining
	if len(res.Cycles) == 0 {
		res.Diagnostics = append(res.Diagnostics, Diagnostic{
			Kind:    DiagnosticNoSegments,
			Message: fmt.Sprintf("no cycle boundaries found in %d samples (trigger %.0f m, confirmation %.0f m)", n, trigger, confirm),
		})
	}
	return res
}

func halfFor(cycleNumber, splitCount int) int {
	if cycleNumber <= splitCount {
		return 1
	}
	return 2
}
