package render

import (
	"fmt"
	"image"
	"image/color"

	"github.com/Mahdijamebozorg/vehicles-track-count-and-speed-estimation/geometry"
	"github.com/Mahdijamebozorg/vehicles-track-count-and-speed-estimation/zone"
	"gocv.io/x/gocv"
)

// ZoneStyle defines the parameters used for rendering zones
type ZoneStyle struct {
	PolygonColor     color.RGBA
	PolygonThickness int
	// FillOpacity is the blend weight of the filled polygon, zero disables
	// filling
	FillOpacity   float64
	LineColor     color.RGBA
	LineThickness int
	InColor       color.RGBA
	OutColor      color.RGBA
}

// DefaultZoneStyle returns default zone style settings
func DefaultZoneStyle() ZoneStyle {
	return ZoneStyle{
		PolygonColor:     Yellow,
		PolygonThickness: 2,
		FillOpacity:      0.15,
		LineColor:        White,
		LineThickness:    2,
		InColor:          Green,
		OutColor:         Red,
	}
}

// toImagePoints rounds ring vertices to pixel positions
func toImagePoints(ring []geometry.Point) []image.Point {

	pts := make([]image.Point, len(ring))

	for i, p := range ring {
		pts[i] = image.Pt(int(p.X+0.5), int(p.Y+0.5))
	}

	return pts
}

// PolygonZone outlines the in frame regions of the zone, optionally blending
// a translucent fill
func PolygonZone(img *gocv.Mat, z *zone.PolygonZone, style ZoneStyle) {

	rings := make([][]image.Point, 0, len(z.Regions()))

	for _, ring := range z.Regions() {
		rings = append(rings, toImagePoints(ring))
	}

	if len(rings) == 0 {
		return
	}

	pv := gocv.NewPointsVectorFromPoints(rings)
	defer pv.Close()

	if style.FillOpacity > 0 {
		overlay := img.Clone()
		gocv.FillPoly(&overlay, pv, style.PolygonColor)
		gocv.AddWeighted(overlay, style.FillOpacity, *img, 1-style.FillOpacity, 0, img)
		overlay.Close()
	}

	gocv.Polylines(img, pv, true, style.PolygonColor, style.PolygonThickness)
}

// LineZone draws the counting segment with its running in and out totals
func LineZone(img *gocv.Mat, l *zone.LineZone, font Font, style ZoneStyle) {

	start := image.Pt(int(l.Start().X), int(l.Start().Y))
	end := image.Pt(int(l.End().X), int(l.End().Y))

	gocv.Line(img, start, end, style.LineColor, style.LineThickness)
	gocv.Circle(img, start, style.LineThickness*3, style.LineColor, -1)
	gocv.Circle(img, end, style.LineThickness*3, style.LineColor, -1)

	mid := image.Pt((start.X+end.X)/2, (start.Y+end.Y)/2)

	inText := fmt.Sprintf("in: %d", l.InCount())
	outText := fmt.Sprintf("out: %d", l.OutCount())

	// in side is above a left to right line, totals are drawn on their side
	inSize := labelAt(img, inText, image.Pt(mid.X, mid.Y-style.LineThickness),
		style.InColor, font, true)
	labelAt(img, outText, image.Pt(mid.X, mid.Y+style.LineThickness+inSize.Y/2),
		style.OutColor, font, false)
}

// labelAt draws text on a filled background centered horizontally on pt.
// The label sits above pt when above is set, otherwise below.
func labelAt(img *gocv.Mat, text string, pt image.Point, bg color.RGBA,
	font Font, above bool) image.Point {

	size := gocv.GetTextSize(text, font.Face, font.Scale, font.Thickness)
	height := size.Y + font.TopPad + font.BottomPad

	top := pt.Y

	if above {
		top = pt.Y - height
	}

	rect := image.Rect(pt.X-size.X/2-font.LeftPad, top,
		pt.X+size.X/2+font.RightPad, top+height)

	gocv.Rectangle(img, rect, bg, -1)
	gocv.PutTextWithParams(img, text, image.Pt(pt.X-size.X/2, top+font.TopPad+size.Y),
		font.Face, font.Scale, font.Color, font.Thickness, font.LineType, false)

	return image.Pt(size.X, height)
}

// FrameInfo writes the frame number and zone occupancy in the top left
// corner
func FrameInfo(img *gocv.Mat, frame, zoneCount int, font Font) {
	font.Color = White
	labelAt(img, fmt.Sprintf("frame %d  in zone %d", frame, zoneCount),
		image.Pt(80, 10), Black, font, false)
}
