package intervals

import (
	"fmt"
	"math"
)

// Phase tags a sub-segment of a cycle.
type Phase string

const (
	PhaseEffort   Phase = "effort"
	PhaseRecovery Phase = "recovery"
)

// PhaseSegment is the effort or recovery part of one cycle.
type PhaseSegment struct {
	Phase       Phase    `json:"phase"`
	CycleNumber int      `json:"cycle_number"`
	Half        int      `json:"half"`
	StartIndex  int      `json:"start_index"`
	EndIndex    int      `json:"end_index"` // exclusive
	DurationS   float64  `json:"duration_s"`
	Samples     []Sample `json:"-"`
}

// Empty reports whether the segment has no samples.
func (p PhaseSegment) Empty() bool { return len(p.Samples) == 0 }

// PhaseSet is the result of splitting every cycle of a session.
type PhaseSet struct {
	Efforts     []PhaseSegment `json:"efforts"`
	Recoveries  []PhaseSegment `json:"recoveries"`
	Diagnostics []Diagnostic   `json:"diagnostics,omitempty"`
}

// SplitIndex returns the offset within the cycle whose distance is closest
// to the cycle start distance plus effortDistanceM. Ties go to the earliest
// offset. It returns -1 for an empty cycle.
func SplitIndex(c Cycle, effortDistanceM float64) int {
	if len(c.Samples) == 0 {
		return -1
	}
	target := c.Samples[0].DistanceM + effortDistanceM
	best := 0
	bestDiff := math.Abs(c.Samples[0].DistanceM - target)
	for i := 1; i < len(c.Samples); i++ {
		if d := math.Abs(c.Samples[i].DistanceM - target); d < bestDiff {
			best, bestDiff = i, d
		}
	}
	return best
}

// SplitCycle divides a cycle at SplitIndex: effort covers the cycle start
// through the split sample inclusive, recovery covers the rest.
func SplitCycle(c Cycle, effortDistanceM float64) (effort, recovery PhaseSegment) {
	effort = PhaseSegment{Phase: PhaseEffort, CycleNumber: c.Number, Half: c.Half, StartIndex: c.StartIndex, EndIndex: c.StartIndex}
	recovery = PhaseSegment{Phase: PhaseRecovery, CycleNumber: c.Number, Half: c.Half, StartIndex: c.EndIndex, EndIndex: c.EndIndex}

	k := SplitIndex(c, effortDistanceM)
	if k < 0 {
		return effort, recovery
	}
	split := k + 1
	effort.Samples = c.Samples[:split:split]
	effort.EndIndex = c.StartIndex + split
	effort.DurationS = segmentDuration(effort.Samples)

	if split < len(c.Samples) {
		recovery.Samples = c.Samples[split:]
		recovery.StartIndex = c.StartIndex + split
		recovery.DurationS = segmentDuration(recovery.Samples)
	}
	return effort, recovery
}

// SplitCycles splits every cycle. Cycles with fewer than two samples and
// empty phases are left out of the result and recorded as degenerate
// segments.
func SplitCycles(cycles []Cycle, cfg Config) PhaseSet {
	set := PhaseSet{
		Efforts:    make([]PhaseSegment, 0, len(cycles)),
		Recoveries: make([]PhaseSegment, 0, len(cycles)),
	}
	for _, c := range cycles {
		if c.Len() < 2 {
			set.Diagnostics = append(set.Diagnostics, Diagnostic{
				Kind:        DiagnosticDegenerateSegment,
				CycleNumber: c.Number,
				Message:     fmt.Sprintf("cycle has %d sample(s); need at least 2", c.Len()),
			})
			continue
		}
		effort, recovery := SplitCycle(c, cfg.EffortDistanceM)
		for _, seg := range []PhaseSegment{effort, recovery} {
			if seg.Empty() {
				set.Diagnostics = append(set.Diagnostics, Diagnostic{
					Kind:        DiagnosticDegenerateSegment,
					CycleNumber: c.Number,
					Phase:       seg.Phase,
					Message:     "empty phase excluded",
				})
				continue
			}
			if seg.Phase == PhaseEffort {
				set.Efforts = append(set.Efforts, seg)
			} else {
				set.Recoveries = append(set.Recoveries, seg)
			}
		}
	}
	return set
}

func segmentDuration(samples []Sample) float64 {
	if len(samples) == 0 {
		return 0
	}
	return samples[len(samples)-1].ElapsedS - samples[0].ElapsedS
}
