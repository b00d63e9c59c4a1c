package postprocess

import (
	"math"
	"sort"
)

// NMS implements a class aware Non-Maximum Suppression (NMS) algorithm.
// Detections are visited in order of descending probability and any later
// detection of the same class overlapping a kept one by more than the
// threshold is dropped.  The kept detections are returned in their original
// input order.
func NMS(dets []DetectResult, threshold float32) []DetectResult {
	return nms(dets, threshold, false)
}

// NMSAgnostic is NMS ignoring the class of each detection
func NMSAgnostic(dets []DetectResult, threshold float32) []DetectResult {
	return nms(dets, threshold, true)
}

func nms(dets []DetectResult, threshold float32, agnostic bool) []DetectResult {

	if len(dets) == 0 {
		return []DetectResult{}
	}

	// order holds indices into dets sorted by probability, with -1 marking a
	// suppressed detection
	order := make([]int, len(dets))

	for i := range order {
		order[i] = i
	}

	sort.SliceStable(order, func(a, b int) bool {
		return dets[order[a]].Probability > dets[order[b]].Probability
	})

	for i := 0; i < len(order); i++ {

		if order[i] == -1 {
			continue
		}

		n := order[i]

		for j := i + 1; j < len(order); j++ {
			m := order[j]

			if m == -1 || (!agnostic && dets[n].Class != dets[m].Class) {
				continue
			}

			if CalculateOverlap(dets[n].Box, dets[m].Box) > threshold {
				order[j] = -1
			}
		}
	}

	keep := make([]bool, len(dets))

	for _, idx := range order {
		if idx >= 0 {
			keep[idx] = true
		}
	}

	return Mask(dets, keep)
}

// CalculateOverlap works out the Intersection of Union (IoU) value of two
// boxes
func CalculateOverlap(a, b BoxRect) float32 {

	w := math.Max(0.0, math.Min(float64(a.Right), float64(b.Right))-math.Max(float64(a.Left), float64(b.Left)))
	h := math.Max(0.0, math.Min(float64(a.Bottom), float64(b.Bottom))-math.Max(float64(a.Top), float64(b.Top)))
	intersection := w * h

	area0 := float64(a.Width()) * float64(a.Height())
	area1 := float64(b.Width()) * float64(b.Height())

	union := area0 + area1 - intersection

	if union <= 0 {
		return 0.0
	}

	return float32(intersection / union)
}
