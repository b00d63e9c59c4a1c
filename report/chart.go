package report

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// WriteChart renders an HTML page with the mean and max speed of every
// track and the run totals in the subtitle
func WriteChart(w io.Writer, tracks []TrackSummary, sum Summary, unit string) error {

	if len(tracks) == 0 {
		return ErrNoData
	}

	x := make([]string, len(tracks))
	means := make([]opts.BarData, len(tracks))
	maxes := make([]opts.BarData, len(tracks))

	for i, t := range tracks {
		x[i] = fmt.Sprintf("#%d", t.TrackID)
		means[i] = opts.BarData{Value: round1(t.Mean)}
		maxes[i] = opts.BarData{Value: round1(t.Max)}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Vehicle speeds", Width: "100%", Height: "640px"}),
		charts.WithTitleOpts(opts.Title{
			Title: "Vehicle speeds",
			Subtitle: fmt.Sprintf("frames=%d tracks=%d in=%d out=%d p85=%.1f %s",
				sum.Frames, sum.Tracks, sum.InCount, sum.OutCount, sum.P85, unit),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: unit}),
	)
	bar.SetXAxis(x).
		AddSeries("mean", means).
		AddSeries("max", maxes)

	page := components.NewPage()
	page.AddCharts(bar)

	if err := page.Render(w); err != nil {
		return fmt.Errorf("error rendering chart: %w", err)
	}

	return nil
}

func round1(v float64) float64 {
	return float64(int64(v*10+0.5)) / 10
}
