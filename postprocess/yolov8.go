package postprocess

import (
	"errors"
	"fmt"
)

// ErrOutputShape is returned when a model output does not match the expected
// YOLOv8 layout
var ErrOutputShape = errors.New("unexpected model output shape")

// YOLOv8Params defines the struct containing the YOLOv8 parameters to use
// for post processing operations
type YOLOv8Params struct {
	// BoxThreshold is the minimum class score required for an anchor to be
	// returned as a detection
	BoxThreshold float32
	// ObjectClassNum is the number of different object classes the Model has
	// been trained with
	ObjectClassNum int
	// InputSize is the square model input resolution
	InputSize int
}

// YOLOv8COCOParams returns an instance of YOLOv8Params configured with
// default values for a Model trained on the COCO dataset featuring:
// - Object Classes: 80
// - Box Threshold: 0.25
// - Input Size: 640
func YOLOv8COCOParams() YOLOv8Params {
	return YOLOv8Params{
		BoxThreshold:   0.25,
		ObjectClassNum: 80,
		InputSize:      640,
	}
}

// YOLOv8 decodes the raw output of an exported YOLOv8 detection model.  The
// output is a single tensor of shape [1, 4+classes, anchors] holding the box
// center, width and height followed by a score per class for every anchor.
type YOLOv8 struct {
	// Params are the Model configuration parameters
	Params YOLOv8Params
}

// NewYOLOv8 returns an instance of the YOLOv8 post processor
func NewYOLOv8(p YOLOv8Params) *YOLOv8 {
	return &YOLOv8{Params: p}
}

// Anchors returns the number of anchors held in an output of the given
// length, or an error when the length does not fit the class count
func (y *YOLOv8) Anchors(outputLen int) (int, error) {

	rows := 4 + y.Params.ObjectClassNum

	if y.Params.ObjectClassNum <= 0 || outputLen == 0 || outputLen%rows != 0 {
		return 0, fmt.Errorf("%w: %d values for %d classes", ErrOutputShape,
			outputLen, y.Params.ObjectClassNum)
	}

	return outputLen / rows, nil
}

// DetectObjects decodes the model output into detections in source frame
// pixel coordinates.  Every anchor whose best class score is above
// BoxThreshold is returned in anchor order, no NMS is applied.
func (y *YOLOv8) DetectObjects(output []float32, lb Letterbox) ([]DetectResult, error) {

	anchors, err := y.Anchors(len(output))

	if err != nil {
		return nil, err
	}

	dets := make([]DetectResult, 0)

	for a := 0; a < anchors; a++ {

		bestClass := -1
		bestScore := float32(0)

		for c := 0; c < y.Params.ObjectClassNum; c++ {
			score := output[(4+c)*anchors+a]

			if score > bestScore {
				bestScore = score
				bestClass = c
			}
		}

		if bestClass < 0 || bestScore <= y.Params.BoxThreshold {
			continue
		}

		cx := output[a]
		cy := output[anchors+a]
		w := output[2*anchors+a]
		h := output[3*anchors+a]

		box := lb.ToSource(BoxRect{
			Left:   cx - w/2,
			Top:    cy - h/2,
			Right:  cx + w/2,
			Bottom: cy + h/2,
		})

		if box.Width() <= 0 || box.Height() <= 0 {
			continue
		}

		dets = append(dets, DetectResult{
			Class:       bestClass,
			Box:         box,
			Probability: bestScore,
		})
	}

	return dets, nil
}
