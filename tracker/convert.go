package tracker

import "github.com/Mahdijamebozorg/vehicles-track-count-and-speed-estimation/postprocess"

// DetectionsToObjects takes a postprocess object detection results and
// converts it into a tracker object
func DetectionsToObjects(dets []postprocess.DetectResult) []Object {

	objs := make([]Object, 0, len(dets))

	for _, det := range dets {
		objs = append(objs, NewObject(RectFromBox(det.Box), det.Class, det.Probability, det.ID))
	}

	return objs
}
