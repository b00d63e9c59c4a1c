package postprocess

// Mask returns the detections where keep is true, preserving order.  The
// mask must be the same length as dets.
func Mask(dets []DetectResult, keep []bool) []DetectResult {

	out := make([]DetectResult, 0, len(dets))

	for i, det := range dets {
		if keep[i] {
			out = append(out, det)
		}
	}

	return out
}

// FilterDegenerate drops detections whose box has no positive width and
// height or non finite coordinates
func FilterDegenerate(dets []DetectResult) []DetectResult {

	out := make([]DetectResult, 0, len(dets))

	for _, det := range dets {
		if det.Box.IsValid() {
			out = append(out, det)
		}
	}

	return out
}

// FilterConfidence keeps detections whose probability is strictly greater
// than the threshold
func FilterConfidence(dets []DetectResult, threshold float32) []DetectResult {

	out := make([]DetectResult, 0, len(dets))

	for _, det := range dets {
		if det.Probability > threshold {
			out = append(out, det)
		}
	}

	return out
}

// ExcludeClasses drops detections of any of the given classes
func ExcludeClasses(dets []DetectResult, classes []int) []DetectResult {

	if len(classes) == 0 {
		return dets
	}

	skip := make(map[int]bool, len(classes))

	for _, c := range classes {
		skip[c] = true
	}

	out := make([]DetectResult, 0, len(dets))

	for _, det := range dets {
		if !skip[det.Class] {
			out = append(out, det)
		}
	}

	return out
}
