// Package report summarises the speeds measured over a run and renders them
// as a PNG histogram and an HTML chart
package report

import (
	"errors"
	"math"
	"sort"

	vtrack "github.com/Mahdijamebozorg/vehicles-track-count-and-speed-estimation"
	"gonum.org/v1/gonum/stat"
)

// ErrNoData is returned when a report is requested before any speed was
// measured
var ErrNoData = errors.New("no speed samples")

// TrackSummary aggregates the speed estimates of one track
type TrackSummary struct {
	TrackID    int
	Class      int
	Samples    int
	FirstFrame int
	LastFrame  int
	Max        float64
	Mean       float64
	StdDev     float64
}

// Summary aggregates a whole run.  Speed statistics are taken over the per
// track mean speeds so slow vehicles with long histories do not dominate.
type Summary struct {
	Frames   int
	Tracks   int
	InCount  int
	OutCount int
	Mean     float64
	Median   float64
	// P85 is the 85th percentile speed used for road speed limits
	P85 float64
	Max float64
}

type trackSamples struct {
	class  int
	first  int
	last   int
	speeds []float64
}

// Collector accumulates frame results
type Collector struct {
	tracks   map[int]*trackSamples
	frames   int
	inCount  int
	outCount int
}

// NewCollector returns an empty collector
func NewCollector() *Collector {
	return &Collector{
		tracks: make(map[int]*trackSamples),
	}
}

// Add records the speed estimates and line totals of one frame
func (c *Collector) Add(res vtrack.FrameResult) {

	c.frames = res.Frame
	c.inCount = res.InCount
	c.outCount = res.OutCount

	for _, obj := range res.Objects {

		if !obj.HasSpeed || math.IsNaN(obj.Speed) || math.IsInf(obj.Speed, 0) {
			continue
		}

		ts, ok := c.tracks[obj.TrackID]

		if !ok {
			ts = &trackSamples{class: obj.Class, first: res.Frame}
			c.tracks[obj.TrackID] = ts
		}

		ts.last = res.Frame
		ts.speeds = append(ts.speeds, obj.Speed)
	}
}

// Tracks returns a summary per track with speed samples ordered by id
func (c *Collector) Tracks() []TrackSummary {

	out := make([]TrackSummary, 0, len(c.tracks))

	for id, ts := range c.tracks {

		mean, std := stat.MeanStdDev(ts.speeds, nil)

		if len(ts.speeds) < 2 {
			std = 0
		}

		maxSpeed := ts.speeds[0]

		for _, v := range ts.speeds[1:] {
			maxSpeed = math.Max(maxSpeed, v)
		}

		out = append(out, TrackSummary{
			TrackID:    id,
			Class:      ts.class,
			Samples:    len(ts.speeds),
			FirstFrame: ts.first,
			LastFrame:  ts.last,
			Max:        maxSpeed,
			Mean:       mean,
			StdDev:     std,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].TrackID < out[j].TrackID
	})

	return out
}

// MeanSpeeds returns the mean speed of each track ordered by id
func (c *Collector) MeanSpeeds() []float64 {

	tracks := c.Tracks()
	speeds := make([]float64, len(tracks))

	for i, t := range tracks {
		speeds[i] = t.Mean
	}

	return speeds
}

// Summary returns the run totals.  Speed fields are zero and ErrNoData is
// returned when no track had a speed estimate.
func (c *Collector) Summary() (Summary, error) {

	sum := Summary{
		Frames:   c.frames,
		Tracks:   len(c.tracks),
		InCount:  c.inCount,
		OutCount: c.outCount,
	}

	speeds := c.MeanSpeeds()

	if len(speeds) == 0 {
		return sum, ErrNoData
	}

	sort.Float64s(speeds)

	sum.Mean = stat.Mean(speeds, nil)
	sum.Median = stat.Quantile(0.5, stat.Empirical, speeds, nil)
	sum.P85 = stat.Quantile(0.85, stat.Empirical, speeds, nil)
	sum.Max = speeds[len(speeds)-1]

	return sum, nil
}
