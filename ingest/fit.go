// Package ingest decodes activity recordings into telemetry records for the
// interval analysis.
package ingest

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"time"

	intervals "github.com/lucasjlepore/fit-intervals"
	"github.com/muktihari/fit/decoder"
	"github.com/muktihari/fit/profile/mesgdef"
	"github.com/muktihari/fit/profile/typedef"
	"github.com/tormoder/fit"
)

const msToKmh = 3.6

// fitEpoch is the zero of FIT timestamps; anything at or before it is unset.
var fitEpoch = time.Date(1989, 12, 31, 0, 0, 0, 0, time.UTC)

// Activity is the decoded record stream of one FIT activity file.
type Activity struct {
	Sport        string
	Manufacturer string
	Start        time.Time
	Records      []intervals.Record
	// Skipped counts record messages without a usable timestamp.
	Skipped int
}

// DecodeFile opens and decodes a FIT activity file.
func DecodeFile(path string) (*Activity, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open FIT file: %w", err)
	}
	defer f.Close()
	return DecodeFIT(f)
}

// DecodeBytes decodes an in-memory FIT activity file.
func DecodeBytes(data []byte) (*Activity, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("fit data is required")
	}
	return DecodeFIT(bytes.NewReader(data))
}

// DecodeFIT decodes a FIT activity stream into records sorted by timestamp.
// The file id is checked first; record messages, including the running
// dynamics fields, are then read from every FIT file in the stream.
// Speeds are converted to km/h and running cadence to steps per minute.
func DecodeFIT(r io.Reader) (*Activity, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read FIT data: %w", err)
	}

	_, fileID, err := fit.DecodeHeaderAndFileID(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode FIT header: %w", err)
	}
	if fileID.Type != fit.FileTypeActivity {
		return nil, fmt.Errorf("activity FIT expected, got file type %v", fileID.Type)
	}

	out := &Activity{Manufacturer: fileID.Manufacturer.String()}
	var recs []*mesgdef.Record

	dec := decoder.New(bytes.NewReader(data))
	for dec.Next() {
		decoded, err := dec.Decode()
		if err != nil {
			return nil, fmt.Errorf("decode FIT file: %w", err)
		}
		for i := range decoded.Messages {
			mesg := &decoded.Messages[i]
			switch mesg.Num {
			case typedef.MesgNumRecord:
				rec := mesgdef.NewRecord(mesg)
				if !validTime(rec.Timestamp) {
					out.Skipped++
					continue
				}
				recs = append(recs, rec)
			case typedef.MesgNumSession:
				if out.Sport == "" {
					out.Sport = mesgdef.NewSession(mesg).Sport.String()
				}
			}
		}
	}

	if len(recs) == 0 {
		return nil, &intervals.DataFormatError{Field: intervals.ColumnTimestamp, Row: -1, Reason: "no timestamped record messages"}
	}
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].Timestamp.Before(recs[j].Timestamp)
	})

	out.Start = recs[0].Timestamp.UTC()
	out.Records = make([]intervals.Record, 0, len(recs))
	for _, rec := range recs {
		out.Records = append(out.Records, convertRecord(rec, out.Start))
	}
	return out, nil
}

func convertRecord(rec *mesgdef.Record, start time.Time) intervals.Record {
	r := intervals.Record{
		Timestamp: rec.Timestamp.UTC(),
		ElapsedS:  rec.Timestamp.Sub(start).Seconds(),
	}
	if speed, ok := extractSpeed(rec); ok {
		r.SpeedKmh = floatPtr(speed * msToKmh)
	}
	if rec.Distance != math.MaxUint32 {
		r.DistanceM = floatPtr(float64(rec.Distance) / 100)
	}
	if rec.HeartRate != math.MaxUint8 {
		hr := int(rec.HeartRate)
		r.HeartRate = &hr
	}
	if cad, ok := extractCadence(rec); ok {
		r.Cadence = floatPtr(cad)
	}
	// step_length is in mm with scale 10.
	if rec.StepLength != math.MaxUint16 && rec.StepLength > 0 {
		r.StrideLengthMM = floatPtr(float64(rec.StepLength) / 10)
	}
	if rec.VerticalRatio != math.MaxUint16 {
		r.VerticalRatio = floatPtr(float64(rec.VerticalRatio) / 100)
	}
	if rec.StanceTimePercent != math.MaxUint16 {
		r.StanceTimePercent = floatPtr(float64(rec.StanceTimePercent) / 100)
	}
	return r
}

// extractCadence returns steps per minute. FIT stores running cadence as
// strides per minute with an optional 1/128 fractional part.
func extractCadence(rec *mesgdef.Record) (float64, bool) {
	if rec.Cadence == math.MaxUint8 {
		return 0, false
	}
	spm := float64(rec.Cadence)
	if rec.FractionalCadence != math.MaxUint8 {
		spm += float64(rec.FractionalCadence) / 128
	}
	return spm * 2, true
}

// extractSpeed returns m/s, preferring enhanced_speed.
func extractSpeed(rec *mesgdef.Record) (float64, bool) {
	if rec.EnhancedSpeed != math.MaxUint32 {
		return float64(rec.EnhancedSpeed) / 1000, true
	}
	if rec.Speed != math.MaxUint16 {
		return float64(rec.Speed) / 1000, true
	}
	return 0, false
}

func validTime(t time.Time) bool {
	return !t.IsZero() && t.After(fitEpoch)
}

func floatPtr(v float64) *float64 {
	out := v
	return &out
}
