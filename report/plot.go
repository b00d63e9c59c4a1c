package report

import (
	"fmt"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// histogramBins returns a bin count of roughly 5 units per bin, at least 1
func histogramBins(speeds []float64) int {

	lo, hi := speeds[0], speeds[0]

	for _, v := range speeds {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	bins := int(math.Ceil((hi - lo) / 5))

	if bins < 1 {
		return 1
	}

	return bins
}

// SaveHistogram writes a histogram of per track mean speeds to path.  The
// image format follows the file extension.
func SaveHistogram(path string, speeds []float64, unit string) error {

	if len(speeds) == 0 {
		return ErrNoData
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Vehicle speeds (%d tracks)", len(speeds))
	p.X.Label.Text = fmt.Sprintf("Mean speed (%s)", unit)
	p.Y.Label.Text = "Vehicles"

	hist, err := plotter.NewHist(plotter.Values(speeds), histogramBins(speeds))

	if err != nil {
		return fmt.Errorf("error building histogram: %w", err)
	}

	hist.LineStyle.Width = vg.Points(1)
	p.Add(hist)

	if err := p.Save(10*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("error saving histogram %s: %w", path, err)
	}

	return nil
}
