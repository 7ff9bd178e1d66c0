package intervals

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// RankOrder is the sort direction of an anchor's ranked correlations.
type RankOrder string

const (
	RankAscending  RankOrder = "ascending"
	RankDescending RankOrder = "descending"
)

// Anchor is a metric whose strongest correlations are reported.
type Anchor struct {
	Metric Metric
	Order  RankOrder
}

// DefaultAnchors ranks duration most-negative first (faster reps are
// shorter) and speed and heart rate most-positive first.
var DefaultAnchors = []Anchor{
	{Metric: MetricDuration, Order: RankAscending},
	{Metric: MetricAvgSpeed, Order: RankDescending},
	{Metric: MetricMaxHeartRate, Order: RankDescending},
}

// CorrelationMatrix is a symmetric Pearson matrix over Metrics. Undefined
// coefficients (a metric with zero variance) are NaN.
type CorrelationMatrix struct {
	Metrics []Metric
	Values  [][]float64
}

// At returns the coefficient for a pair of metrics.
func (m CorrelationMatrix) At(a, b Metric) float64 {
	i, j := m.index(a), m.index(b)
	if i < 0 || j < 0 {
		return math.NaN()
	}
	return m.Values[i][j]
}

func (m CorrelationMatrix) index(metric Metric) int {
	for i, x := range m.Metrics {
		if x == metric {
			return i
		}
	}
	return -1
}

// MarshalJSON encodes undefined coefficients as null.
func (m CorrelationMatrix) MarshalJSON() ([]byte, error) {
	values := make([][]*float64, len(m.Values))
	for i, row := range m.Values {
		values[i] = make([]*float64, len(row))
		for j, v := range row {
			if isFinite(v) {
				values[i][j] = floatPtr(v)
			}
		}
	}
	return json.Marshal(struct {
		Metrics []Metric     `json:"metrics"`
		Values  [][]*float64 `json:"values"`
	}{m.Metrics, values})
}

// CorrelationPair is one ranked entry of an anchor list.
type CorrelationPair struct {
	Anchor      Metric  `json:"anchor"`
	Metric      Metric  `json:"metric"`
	Coefficient float64 `json:"coefficient"`
}

// AnchorRanking is the top-N list of one anchor metric.
type AnchorRanking struct {
	Anchor Metric            `json:"anchor"`
	Order  RankOrder         `json:"order"`
	Pairs  []CorrelationPair `json:"pairs"`
}

// CorrelationReport holds the full matrix and the ranked anchor lists.
type CorrelationReport struct {
	Repetitions int               `json:"repetitions"`
	Matrix      CorrelationMatrix `json:"matrix"`
	Rankings    []AnchorRanking   `json:"rankings"`
}

// Correlate computes Pearson coefficients between the repetition metrics
// over the rows where every metric is defined, then ranks the topN partners
// of each default anchor. Each unordered pair is listed at most once across
// all rankings: a pair joining two anchors belongs to the earlier anchor.
func Correlate(reps []RepetitionMetrics, topN int) (*CorrelationReport, error) {
	return CorrelateWith(reps, RepetitionMetricSet, DefaultAnchors, topN)
}

// CorrelateWith is Correlate over an explicit metric set and anchor list.
func CorrelateWith(reps []RepetitionMetrics, metrics []Metric, anchors []Anchor, topN int) (*CorrelationReport, error) {
	columns := make([][]float64, len(metrics))
	rows := 0
	for _, r := range reps {
		complete := true
		for _, m := range metrics {
			if !isFinite(r.Value(m)) {
				complete = false
				break
			}
		}
		if !complete {
			continue
		}
		for k, m := range metrics {
			columns[k] = append(columns[k], r.Value(m))
		}
		rows++
	}
	if rows < 2 {
		return nil, fmt.Errorf("%w (got %d of %d)", ErrInsufficientRepetitions, rows, len(reps))
	}

	variable := make([]bool, len(metrics))
	for k := range metrics {
		variable[k] = stat.Variance(columns[k], nil) > 0
	}

	values := make([][]float64, len(metrics))
	for i := range values {
		values[i] = make([]float64, len(metrics))
	}
	for i := range metrics {
		for j := i; j < len(metrics); j++ {
			v := math.NaN()
			switch {
			case !variable[i] || !variable[j]:
			case i == j:
				v = 1
			default:
				v = clampUnit(stat.Correlation(columns[i], columns[j], nil))
			}
			values[i][j] = v
			values[j][i] = v
		}
	}

	report := &CorrelationReport{
		Repetitions: rows,
		Matrix:      CorrelationMatrix{Metrics: append([]Metric(nil), metrics...), Values: values},
	}
	report.Rankings = rankAnchors(report.Matrix, anchors, topN)
	return report, nil
}

func rankAnchors(matrix CorrelationMatrix, anchors []Anchor, topN int) []AnchorRanking {
	isAnchor := map[Metric]int{}
	for i, a := range anchors {
		if _, dup := isAnchor[a.Metric]; !dup {
			isAnchor[a.Metric] = i
		}
	}

	out := make([]AnchorRanking, 0, len(anchors))
	for i, a := range anchors {
		ranking := AnchorRanking{Anchor: a.Metric, Order: a.Order, Pairs: []CorrelationPair{}}
		if matrix.index(a.Metric) < 0 {
			out = append(out, ranking)
			continue
		}
		for _, m := range matrix.Metrics {
			if m == a.Metric {
				continue
			}
			if owner, ok := isAnchor[m]; ok && owner < i {
				continue
			}
			coef := matrix.At(a.Metric, m)
			if !isFinite(coef) {
				continue
			}
			ranking.Pairs = append(ranking.Pairs, CorrelationPair{Anchor: a.Metric, Metric: m, Coefficient: coef})
		}
		sort.SliceStable(ranking.Pairs, func(x, y int) bool {
			if a.Order == RankAscending {
				return ranking.Pairs[x].Coefficient < ranking.Pairs[y].Coefficient
			}
			return ranking.Pairs[x].Coefficient > ranking.Pairs[y].Coefficient
		})
		if topN >= 0 && len(ranking.Pairs) > topN {
			ranking.Pairs = ranking.Pairs[:topN]
		}
		out = append(out, ranking)
	}
	return out
}

// clampUnit absorbs floating point overshoot past +/-1.
func clampUnit(v float64) float64 {
	if math.IsNaN(v) {
		return v
	}
	return math.Max(-1, math.Min(1, v))
}
