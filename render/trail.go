package render

import (
	"image"
	"image/color"

	vtrack "github.com/Mahdijamebozorg/vehicles-track-count-and-speed-estimation"
	"github.com/Mahdijamebozorg/vehicles-track-count-and-speed-estimation/tracker"
	"gocv.io/x/gocv"
)

// TrailStyle defines the parameters used for rendering the trail style
type TrailStyle struct {
	// LineSame defines if the color of the trail line should be the
	// same color as that of the bounding box.  If set to false then use
	// the color specified at LineColor
	LineSame      bool
	LineColor     color.RGBA
	LineThickness int
	// CircleSame defines if the color of the anchor circle should be the
	// same color as that of the bounding box.  If set to false then use
	// the color specified at CircleColor
	CircleSame   bool
	CircleColor  color.RGBA
	CircleRadius int
}

// DefaultTrailStyle returns default trail style settings
func DefaultTrailStyle() TrailStyle {
	return TrailStyle{
		LineSame:      true,
		LineColor:     Yellow,
		LineThickness: 2,
		CircleSame:    true,
		CircleColor:   Pink,
		CircleRadius:  4,
	}
}

// Trail draws the anchor history of each tracked object on the source image
func Trail(img *gocv.Mat, objects []vtrack.TrackedObject,
	trail *tracker.Trail, style TrailStyle) {

	for _, obj := range objects {

		objClr := TrackColor(obj.TrackID)

		// determine style colors to use
		lineClr := objClr
		circleClr := objClr

		if !style.LineSame {
			lineClr = style.LineColor
		}

		if !style.CircleSame {
			circleClr = style.CircleColor
		}

		points := trail.GetPoints(obj.TrackID)

		for i := 1; i < len(points); i++ {
			gocv.Line(img,
				image.Pt(int(points[i-1].X), int(points[i-1].Y)),
				image.Pt(int(points[i].X), int(points[i].Y)),
				lineClr, style.LineThickness,
			)
		}

		// mark the anchor on the current box
		gocv.Circle(img, image.Pt(int(obj.Anchor.X), int(obj.Anchor.Y)),
			style.CircleRadius, circleClr, -1)
	}
}
