package intervals

import (
	"fmt"
	"math"
	"strings"
)

// BuildTrainingNotes turns a report into a plain-text training summary.
func BuildTrainingNotes(r *Report) string {
	if r == nil {
		return ""
	}

	var b strings.Builder

	b.WriteString("Session: interval run\n")
	if !r.StartTime.IsZero() {
		fmt.Fprintf(&b, "Start: %s\n", r.StartTime.Format("2006-01-02 15:04:05"))
	}
	fmt.Fprintf(
		&b,
		"Duration %s (moving %s) | Distance %.2f km | %d samples (%d dropped)\n",
		formatDuration(r.ElapsedSeconds),
		formatDuration(r.MovingSeconds),
		r.DistanceMeters/1000.0,
		r.SampleStats.Kept,
		r.SampleStats.DroppedMissing+r.SampleStats.DroppedDuplicate,
	)
	fmt.Fprintf(
		&b,
		"Detection: %.0f m effort + %.0f m recovery, resting < %.1f km/h (%s)\n",
		r.Config.EffortDistanceM,
		r.Config.RecoveryDistanceM,
		r.Config.RestingSpeedThresholdKmh,
		r.RestingPolicy,
	)

	b.WriteString("\nInterval Execution\n")
	if len(r.Repetitions) == 0 {
		b.WriteString("- No repeating effort/recovery structure was detected.\n")
	} else {
		durations := make([]float64, len(r.Repetitions))
		speeds := make([]float64, len(r.Repetitions))
		for i, rep := range r.Repetitions {
			durations[i] = rep.DurationS
			speeds[i] = rep.AvgSpeedKmh
		}
		fmt.Fprintf(
			&b,
			"- Detected %d repetitions averaging %s at %.1f km/h.\n",
			len(r.Repetitions),
			formatDuration(average(durations)),
			zeroIfNaN(average(speeds)),
		)
		if r.Truncated {
			fmt.Fprintf(&b, "- Stopped at max_cycles=%d; %d trailing samples were not analysed.\n", r.Config.MaxCycles, r.TrailingSamples)
		}
		if r.SessionStructure.CanonicalLabel != "" {
			fmt.Fprintf(&b, "- Structure: %s (confidence %.0f%%)\n", r.SessionStructure.CanonicalLabel, r.SessionStructure.Confidence*100.0)
		}
	}

	if len(r.PacingSummary) > 0 {
		b.WriteString("\nPacing\n")
		for _, p := range r.PacingSummary {
			fmt.Fprintf(
				&b,
				"- %s: %d reps, %s avg, %.0f bpm max HR, VR %s\n",
				pacingLabel(p.Style),
				p.Count,
				formatDuration(p.MeanDurationS),
				p.MeanMaxHeartRate,
				formatOptional(p.MeanVerticalRatio, 2),
			)
		}
	}

	if len(r.RecoverySummary) > 0 {
		b.WriteString("\nRecovery\n")
		for _, s := range r.RecoverySummary {
			fmt.Fprintf(
				&b,
				"- Half %d: %.0f -> %.0f bpm, %.2f bpm/s over %d recoveries\n",
				s.Half,
				s.MeanHeartRateStart,
				s.MeanHeartRateEnd,
				s.MeanRecoveryRate,
				s.Count,
			)
		}
	}

	if r.Drift != nil {
		b.WriteString("\nSecond Half vs First Half\n")
		for _, row := range r.Drift.Metrics {
			if row.Change == nil {
				continue
			}
			pct := "n/a"
			if row.Percent != nil {
				pct = fmt.Sprintf("%+.1f%%", *row.Percent)
			}
			fmt.Fprintf(&b, "- %s: %+.2f (%s)\n", row.Metric, *row.Change, pct)
		}
	}

	if r.Correlations != nil {
		b.WriteString("\nStrongest Correlations\n")
		for _, ranking := range r.Correlations.Rankings {
			if len(ranking.Pairs) == 0 {
				continue
			}
			top := ranking.Pairs[0]
			fmt.Fprintf(&b, "- %s ~ %s: r=%+.2f\n", top.Anchor, top.Metric, top.Coefficient)
		}
	}

	b.WriteString("\nCoaching Notes\n")
	b.WriteString("- ")
	b.WriteString(coachingAssessment(r))
	b.WriteString("\n- ")
	b.WriteString(nextSessionSuggestion(r))
	b.WriteByte('\n')

	return strings.TrimSpace(b.String())
}

func coachingAssessment(r *Report) string {
	if r == nil || len(r.Repetitions) < 3 {
		return "Not enough repetitions to assess execution."
	}
	speed, ok := r.Drift.Metric(MetricAvgSpeed)
	if !ok || speed.Percent == nil {
		return "Repetitions were detected but the two halves could not be compared."
	}
	switch {
	case math.Abs(*speed.Percent) <= 2:
		return "Speed held within 2% between halves; pacing and repeatability were strong."
	case *speed.Percent < -5:
		return "Second-half speed fell more than 5%; the session sat near your current limit."
	default:
		return "Moderate change in speed between halves; aim for steadier opening repetitions."
	}
}

func nextSessionSuggestion(r *Report) string {
	if r == nil || len(r.Repetitions) < 4 {
		return "Repeat the session with clear standing recoveries so repetitions can be detected."
	}
	speed, _ := r.Drift.Metric(MetricAvgSpeed)
	recovering := true
	if len(r.RecoverySummary) == 2 && r.RecoverySummary[1].MeanRecoveryRate < r.RecoverySummary[0].MeanRecoveryRate*0.8 {
		recovering = false
	}
	switch {
	case speed.Percent != nil && math.Abs(*speed.Percent) <= 2 && recovering:
		return "If recovery is good, progress by adding two repetitions or shortening the recovery by 10-20 m."
	case !recovering:
		return "Heart rate recovered noticeably slower late in the set; keep the volume and lengthen recoveries next time."
	default:
		return "Repeat this structure before progressing, with a more conservative first repetition."
	}
}

func pacingLabel(style PacingStyle) string {
	switch style {
	case PacingRapidStart:
		return "Rapid start"
	case PacingProgressiveStart:
		return "Progressive start"
	}
	return string(style)
}

func formatOptional(v float64, decimals int) string {
	if !isFinite(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.*f", decimals, v)
}

func formatDuration(seconds float64) string {
	if !isFinite(seconds) || seconds <= 0 {
		return "0s"
	}
	s := int(math.Round(seconds))
	h := s / 3600
	m := (s % 3600) / 60
	sec := s % 60
	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, sec)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%02ds", m, sec)
	}
	return fmt.Sprintf("%ds", sec)
}
