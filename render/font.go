package render

import (
	"image/color"

	"gocv.io/x/gocv"
)

// Alignment of a label relative to its box
type Alignment int

const (
	Left   Alignment = 1
	Center Alignment = 2
	Right  Alignment = 3
)

// Font defines the parameters for rendering text on an image using GoCV
type Font struct {
	Face      gocv.HersheyFont
	Scale     float64
	Color     color.RGBA
	Thickness int
	LineType  gocv.LineType
	// Padding to place around text
	LeftPad   int
	RightPad  int
	TopPad    int
	BottomPad int
	// Alignment of the text label to the bounding box
	Alignment Alignment
}

// DefaultFont returns default font settings
func DefaultFont() Font {
	return Font{
		Face:      gocv.FontHersheySimplex,
		Scale:     0.5,
		Color:     White,
		Thickness: 1,
		LineType:  gocv.LineAA,
		LeftPad:   4,
		RightPad:  4,
		TopPad:    4,
		BottomPad: 6,
		Alignment: Left,
	}
}

// LargeFont returns settings suited to labels on 4K footage where the
// default is unreadable
func LargeFont() Font {
	f := DefaultFont()
	f.Scale = 1.2
	f.Thickness = 2
	f.LeftPad = 8
	f.RightPad = 8
	f.TopPad = 8
	f.BottomPad = 10
	f.Color = Black
	return f
}

// FontForHeight picks the font for a frame of the given height
func FontForHeight(height int) Font {

	if height >= 1440 {
		return LargeFont()
	}

	return DefaultFont()
}
