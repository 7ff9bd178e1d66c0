//go:build js

package pipeline

import (
	"errors"

	intervals "github.com/lucasjlepore/fit-intervals"
)

var errParquetUnsupported = errors.New("parquet output is not available in this build; use format=csv")

func marshalSamplesParquet(intervals.SampleSeries, []sampleLabel) ([]byte, error) {
	return nil, errParquetUnsupported
}

func marshalRepetitionsParquet([]intervals.RepetitionMetrics) ([]byte, error) {
	return nil, errParquetUnsupported
}
