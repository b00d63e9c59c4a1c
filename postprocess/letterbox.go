package postprocess

// Letterbox holds the scaling and padding applied when fitting a source
// frame into a square model input whilst keeping its aspect
type Letterbox struct {
	// SrcWidth and SrcHeight are the source frame dimensions
	SrcWidth  int
	SrcHeight int
	// Scale is the factor applied to the source to fit the input
	Scale float32
	// XPad and YPad are the border added on each side
	XPad int
	YPad int
	// ResizeWidth and ResizeHeight are the scaled source dimensions
	ResizeWidth  int
	ResizeHeight int
}

// NewLetterbox calculates the letterbox parameters for scaling a source of
// srcWidth x srcHeight into destWidth x destHeight
func NewLetterbox(srcWidth, srcHeight, destWidth, destHeight int) Letterbox {

	lb := Letterbox{
		SrcWidth:     srcWidth,
		SrcHeight:    srcHeight,
		ResizeWidth:  destWidth,
		ResizeHeight: destHeight,
	}

	scaleW := float32(destWidth) / float32(srcWidth)
	scaleH := float32(destHeight) / float32(srcHeight)
	lb.Scale = scaleH

	if scaleW < scaleH {
		lb.Scale = scaleW
		lb.ResizeHeight = int(float32(srcHeight) * lb.Scale)
	} else {
		lb.ResizeWidth = int(float32(srcWidth) * lb.Scale)
	}

	lb.YPad = (destHeight - lb.ResizeHeight) / 2
	lb.XPad = (destWidth - lb.ResizeWidth) / 2

	return lb
}

// ToSource maps a box in model input coordinates back onto the source frame,
// clipped to its bounds
func (l Letterbox) ToSource(b BoxRect) BoxRect {

	if l.Scale <= 0 {
		return b
	}

	xPad := float32(l.XPad)
	yPad := float32(l.YPad)

	return BoxRect{
		Left:   (b.Left - xPad) / l.Scale,
		Top:    (b.Top - yPad) / l.Scale,
		Right:  (b.Right - xPad) / l.Scale,
		Bottom: (b.Bottom - yPad) / l.Scale,
	}.Clip(l.SrcWidth, l.SrcHeight)
}
