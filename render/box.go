package render

import (
	"image"
	"image/color"

	vtrack "github.com/Mahdijamebozorg/vehicles-track-count-and-speed-estimation"
	"gocv.io/x/gocv"
)

// boxLabel defines where the object label should be rendered on the source
// image
type boxLabel struct {
	rect    image.Rectangle
	clr     color.RGBA
	text    string
	textPos image.Point
}

// TrackedBoxes renders the bounding box and "#id speed" label of each
// tracked object, colored by track id
func TrackedBoxes(img *gocv.Mat, objects []vtrack.TrackedObject, font Font,
	lineThickness int) {

	// keep a record of all box labels for later rendering
	boxLabels := make([]boxLabel, 0, len(objects))

	for _, obj := range objects {

		boxLeft := int(obj.Box.Left)
		boxTop := int(obj.Box.Top)
		boxRight := int(obj.Box.Right)
		boxBottom := int(obj.Box.Bottom)

		useClr := TrackColor(obj.TrackID)

		// draw rectangle around tracked object
		rect := image.Rect(boxLeft, boxTop, boxRight, boxBottom)
		gocv.Rectangle(img, rect, useClr, lineThickness)

		if obj.Label == "" {
			continue
		}

		textSize := gocv.GetTextSize(obj.Label, font.Face, font.Scale, font.Thickness)

		// Calculate the alignment of text label
		var centerX int

		switch font.Alignment {
		case Center:
			centerX = (boxLeft + boxRight) / 2

		case Right:
			centerX = boxRight - (textSize.X / 2) - font.RightPad + (lineThickness / 2)

		case Left:
			fallthrough
		default:
			centerX = boxLeft + (textSize.X / 2) + font.LeftPad - (lineThickness / 2)
		}

		// label sits under the box so it does not cover the vehicle ahead
		labelTop := boxBottom
		labelPosition := image.Pt(centerX-textSize.X/2,
			labelTop+font.TopPad+textSize.Y)

		bRect := image.Rect(centerX-textSize.X/2-font.LeftPad, labelTop,
			centerX+textSize.X/2+font.RightPad,
			labelTop+textSize.Y+font.TopPad+font.BottomPad)

		boxLabels = append(boxLabels, boxLabel{
			rect:    bRect,
			clr:     useClr,
			text:    obj.Label,
			textPos: labelPosition,
		})
	}

	// draw all precalculated box labels so they are the top most layer on the
	// image and don't get overlapped by neighbouring boxes
	for _, box := range boxLabels {
		// draw box text gets written on
		gocv.Rectangle(img, box.rect, box.clr, -1)

		gocv.PutTextWithParams(img, box.text, box.textPos,
			font.Face, font.Scale, font.Color, font.Thickness,
			font.LineType, false)
	}
}
