// Package chart renders interval reports as images and HTML pages.
package chart

import (
	"bytes"
	"fmt"
	"image/color"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	intervals "github.com/lucasjlepore/fit-intervals"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

const maxSpeedPoints = 4000

// RepetitionsPNG plots per-repetition average speed and peak heart rate.
func RepetitionsPNG(reps []intervals.RepetitionMetrics) ([]byte, error) {
	if len(reps) == 0 {
		return nil, fmt.Errorf("no repetitions to plot")
	}

	speedPts := make(plotter.XYs, 0, len(reps))
	hrPts := make(plotter.XYs, 0, len(reps))
	for _, r := range reps {
		x := float64(r.CycleNumber)
		if v := r.AvgSpeedKmh; !math.IsNaN(v) {
			speedPts = append(speedPts, plotter.XY{X: x, Y: v})
		}
		hrPts = append(hrPts, plotter.XY{X: x, Y: float64(r.MaxHeartRate) / 10})
	}

	p := plot.New()
	p.Title.Text = "Repetitions"
	p.X.Label.Text = "Repetition"
	p.Y.Label.Text = "km/h | bpm/10"

	speedLine, err := plotter.NewLine(speedPts)
	if err != nil {
		return nil, fmt.Errorf("speed line: %w", err)
	}
	speedLine.Width = vg.Points(1.5)
	speedLine.Color = color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff}
	p.Add(speedLine)
	p.Legend.Add("avg speed (km/h)", speedLine)

	hrLine, err := plotter.NewLine(hrPts)
	if err != nil {
		return nil, fmt.Errorf("heart rate line: %w", err)
	}
	hrLine.Width = vg.Points(1.5)
	hrLine.Color = color.RGBA{R: 0xa5, G: 0x38, B: 0x62, A: 0xff}
	p.Add(hrLine)
	p.Legend.Add("max HR (bpm/10)", hrLine)

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	wt, err := p.WriterTo(10*vg.Inch, 5*vg.Inch, "png")
	if err != nil {
		return nil, fmt.Errorf("png writer: %w", err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("render png: %w", err)
	}
	return buf.Bytes(), nil
}

// SpeedPhasesHTML renders speed over distance with effort and recovery
// samples as separate series.
func SpeedPhasesHTML(series intervals.SampleSeries, phases intervals.PhaseSet) ([]byte, error) {
	if series.Len() == 0 {
		return nil, fmt.Errorf("no samples to plot")
	}

	phaseOf := make([]intervals.Phase, series.Len())
	for _, seg := range phases.Efforts {
		for i := seg.StartIndex; i < seg.EndIndex && i < len(phaseOf); i++ {
			phaseOf[i] = intervals.PhaseEffort
		}
	}
	for _, seg := range phases.Recoveries {
		for i := seg.StartIndex; i < seg.EndIndex && i < len(phaseOf); i++ {
			phaseOf[i] = intervals.PhaseRecovery
		}
	}

	stride := 1
	if n := series.Len(); n > maxSpeedPoints {
		stride = (n + maxSpeedPoints - 1) / maxSpeedPoints
	}
	x := make([]string, 0, series.Len()/stride+1)
	effort := make([]opts.LineData, 0, cap(x))
	recovery := make([]opts.LineData, 0, cap(x))
	other := make([]opts.LineData, 0, cap(x))
	for i := 0; i < series.Len(); i += stride {
		s := series.Samples[i]
		x = append(x, fmt.Sprintf("%.0f", s.DistanceM))
		var e, r, o opts.LineData
		switch phaseOf[i] {
		case intervals.PhaseEffort:
			e.Value = s.SpeedKmh
		case intervals.PhaseRecovery:
			r.Value = s.SpeedKmh
		default:
			o.Value = s.SpeedKmh
		}
		effort = append(effort, e)
		recovery = append(recovery, r)
		other = append(other, o)
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Interval speed", Width: "1200px", Height: "520px"}),
		charts.WithTitleOpts(opts.Title{Title: "Speed by phase", Subtitle: fmt.Sprintf("samples=%d efforts=%d", series.Len(), len(phases.Efforts))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Distance (m)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Speed (km/h)", NameLocation: "middle", NameGap: 30}),
	)
	line.SetXAxis(x).
		AddSeries("effort", effort).
		AddSeries("recovery", recovery).
		AddSeries("other", other)

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		return nil, fmt.Errorf("render speed chart: %w", err)
	}
	return buf.Bytes(), nil
}
