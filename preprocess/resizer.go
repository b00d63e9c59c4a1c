package preprocess

import (
	"image"
	"image/color"

	"github.com/Mahdijamebozorg/vehicles-track-count-and-speed-estimation/postprocess"
	"gocv.io/x/gocv"
)

// LetterboxColor is the gray padding used by YOLO models during training
var LetterboxColor = color.RGBA{R: 114, G: 114, B: 114, A: 255}

// Resizer defines the struct used for handling image resizing
type Resizer struct {
	// destWidth is the width to scale to
	destWidth int
	// destHeight is the height to scale to
	destHeight int
	// tempMat is a Mat used during the resize process
	tempMat gocv.Mat
	// lb are the letterbox parameters used in scaling
	lb postprocess.Letterbox
}

// NewResizer returns a resizer used for scaling an image to the needed
// dimensions for input tensor size
func NewResizer(srcWidth, srcHeight, destWidth, destHeight int) *Resizer {
	return &Resizer{
		destWidth:  destWidth,
		destHeight: destHeight,
		tempMat:    gocv.NewMat(),
		lb:         postprocess.NewLetterbox(srcWidth, srcHeight, destWidth, destHeight),
	}
}

// Close frees memory allocated during resize process
func (r *Resizer) Close() error {
	return r.tempMat.Close()
}

// Fits reports whether the resizer was built for a source of this size
func (r *Resizer) Fits(srcWidth, srcHeight int) bool {
	return r.lb.SrcWidth == srcWidth && r.lb.SrcHeight == srcHeight
}

// LetterBoxResize resizes the input image to the dimensions needed for the input
// tensor size whilst maintaining image aspect.  Color is that used for letter
// box padding.
func (r *Resizer) LetterBoxResize(src gocv.Mat, dest *gocv.Mat, color color.RGBA) {

	gocv.Resize(src, &r.tempMat, image.Pt(r.lb.ResizeWidth, r.lb.ResizeHeight),
		0, 0, gocv.InterpolationArea)

	gocv.CopyMakeBorder(r.tempMat, dest, r.lb.YPad, r.destHeight-r.lb.ResizeHeight-r.lb.YPad,
		r.lb.XPad, r.destWidth-r.lb.ResizeWidth-r.lb.XPad, gocv.BorderConstant, color)
}

// Letterbox returns the scaling applied by LetterBoxResize, used to map
// model output back onto the source frame
func (r *Resizer) Letterbox() postprocess.Letterbox {
	return r.lb
}
