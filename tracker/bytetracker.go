package tracker

import (
	"errors"
	"fmt"
	"sort"

	"github.com/Mahdijamebozorg/vehicles-track-count-and-speed-estimation/postprocess"
)

// ErrInvalidConfig is returned when tracker parameters are out of range
var ErrInvalidConfig = errors.New("invalid tracker config")

const (
	// lowScoreMatchThresh is the IoU distance limit for the second
	// association against low score detections
	lowScoreMatchThresh = 0.5
	// tentativeMatchThresh is the IoU distance limit when matching
	// tentative tracks
	tentativeMatchThresh = 0.7
	// duplicateThresh is the IoU distance below which a tracked and a lost
	// track are considered the same object
	duplicateThresh = 0.15
)

// Params are the BYTE tracker settings
type Params struct {
	// FrameRate of the source video, scales TrackBuffer
	FrameRate float64
	// TrackBuffer is the number of frames, at 30 FPS, a lost track is kept
	// before removal
	TrackBuffer int
	// TrackThresh splits detections into high and low score sets
	TrackThresh float32
	// LowThresh is the score at or below which a detection is ignored
	LowThresh float32
	// HighThresh is the minimum score for a detection to start a new track
	HighThresh float32
	// MatchThresh is the IoU distance limit for the first association
	MatchThresh float32
	// MinConsecutiveFrames is the matched frame streak to confirm a track
	MinConsecutiveFrames int
	// MaxMisses is the number of consecutive unmatched frames a confirmed
	// track survives before it is marked lost
	MaxMisses int
	// ReportTentative includes matched tentative tracks in the output
	ReportTentative bool
}

// DefaultParams returns tracker settings for the given frame rate where
// detections scoring above activation start tracks
func DefaultParams(frameRate float64, activation float32) Params {
	return Params{
		FrameRate:            frameRate,
		TrackBuffer:          30,
		TrackThresh:          activation,
		LowThresh:            0.1,
		HighThresh:           activation + 0.1,
		MatchThresh:          0.8,
		MinConsecutiveFrames: 1,
		MaxMisses:            0,
	}
}

// Validate checks every parameter is in range
func (p Params) Validate() error {

	inUnit := func(name string, v float32) error {
		if v < 0 || v > 1 {
			return fmt.Errorf("%w: %s must be within [0, 1], got %v", ErrInvalidConfig, name, v)
		}
		return nil
	}

	if p.FrameRate <= 0 {
		return fmt.Errorf("%w: frame rate must be positive, got %v", ErrInvalidConfig, p.FrameRate)
	}

	if p.TrackBuffer < 0 {
		return fmt.Errorf("%w: track buffer must not be negative, got %d", ErrInvalidConfig, p.TrackBuffer)
	}

	for _, c := range []struct {
		name string
		v    float32
	}{
		{"track threshold", p.TrackThresh},
		{"low threshold", p.LowThresh},
		{"high threshold", p.HighThresh},
		{"match threshold", p.MatchThresh},
	} {
		if err := inUnit(c.name, c.v); err != nil {
			return err
		}
	}

	if p.LowThresh > p.TrackThresh {
		return fmt.Errorf("%w: low threshold %v above track threshold %v",
			ErrInvalidConfig, p.LowThresh, p.TrackThresh)
	}

	if p.MatchThresh == 0 {
		return fmt.Errorf("%w: match threshold must be above 0", ErrInvalidConfig)
	}

	if p.MinConsecutiveFrames < 1 {
		return fmt.Errorf("%w: minimum consecutive frames must be at least 1, got %d",
			ErrInvalidConfig, p.MinConsecutiveFrames)
	}

	if p.MaxMisses < 0 {
		return fmt.Errorf("%w: max misses must not be negative, got %d", ErrInvalidConfig, p.MaxMisses)
	}

	return nil
}

// BYTETracker represents the BYTE Tracker
type BYTETracker struct {
	params Params
	// Maximum frames a track can be lost before being removed
	maxTimeLost int
	// kf is shared by every track
	kf *KalmanFilter
	// Current frame ID
	frameID int
	// Counter for assigning unique track IDs, never reset
	trackIDCount int
	// tentative and confirmed tracks, ordered by id
	trackedStracks []*STrack
	// lost tracks, ordered by id
	lostStracks []*STrack
	// ids of tracks removed during the last update
	removedIDs []int
}

// NewBYTETracker validates the params and returns a new BYTETracker
func NewBYTETracker(params Params) (*BYTETracker, error) {

	if err := params.Validate(); err != nil {
		return nil, err
	}

	return &BYTETracker{
		params:      params,
		maxTimeLost: int(params.FrameRate / 30.0 * float64(params.TrackBuffer)),
		kf:          NewKalmanFilter(1.0/20, 1.0/160),
	}, nil
}

// Params returns the settings the tracker was created with
func (bt *BYTETracker) Params() Params {
	return bt.params
}

// Reset clears all tracks.  Track ids keep counting from where they were so
// an id is never handed out twice.
func (bt *BYTETracker) Reset() {
	bt.frameID = 0
	bt.trackedStracks = nil
	bt.lostStracks = nil
	bt.removedIDs = nil
}

// RemovedTrackIDs returns the ids of tracks removed during the last Update
func (bt *BYTETracker) RemovedTrackIDs() []int {
	out := make([]int, len(bt.removedIDs))
	copy(out, bt.removedIDs)
	return out
}

// Tracks returns all tentative, confirmed and lost tracks ordered by id
func (bt *BYTETracker) Tracks() []*STrack {
	return joinStracks(bt.trackedStracks, bt.lostStracks)
}

// UpdateWithDetections runs Update on the detections and returns those
// matched to a confirmed track with TrackID set, in input order.  Detections
// not associated with a confirmed track are dropped.
func (bt *BYTETracker) UpdateWithDetections(dets []postprocess.DetectResult) ([]postprocess.DetectResult, error) {

	// detection index is used as the association key so caller ids need
	// not be unique
	objects := DetectionsToObjects(dets)

	for i := range objects {
		objects[i].ID = int64(i)
	}

	tracks, err := bt.Update(objects)

	if err != nil {
		return nil, err
	}

	trackOf := make(map[int64]int, len(tracks))

	for _, track := range tracks {
		trackOf[track.GetDetectionID()] = track.GetTrackID()
	}

	out := make([]postprocess.DetectResult, 0, len(tracks))

	for i, det := range dets {
		if id, ok := trackOf[int64(i)]; ok {
			det.TrackID = id
			out = append(out, det)
		}
	}

	return out, nil
}

// Update updates the tracker with new detections and returns the confirmed
// tracks matched on this frame ordered by track id.  Tentative tracks are
// included when ReportTentative is set.
func (bt *BYTETracker) Update(objects []Object) ([]*STrack, error) {

	// Step 1: Get detections
	bt.frameID++
	bt.removedIDs = nil

	var detStracks, detLowStracks []*STrack

	for _, object := range objects {

		// boxes without area have no aspect ratio to track
		if !object.Rect.IsValid() {
			continue
		}

		strack := NewSTrack(bt.kf, object.Rect, object.Prob, object.ID, object.Label)

		switch {
		case object.Prob >= bt.params.TrackThresh:
			detStracks = append(detStracks, strack)
		case object.Prob > bt.params.LowThresh:
			detLowStracks = append(detLowStracks, strack)
		}
	}

	var confirmedStracks, tentativeStracks []*STrack

	for _, track := range bt.trackedStracks {
		if track.GetSTrackState() == Tentative {
			tentativeStracks = append(tentativeStracks, track)
		} else {
			confirmedStracks = append(confirmedStracks, track)
		}
	}

	strackPool := joinStracks(confirmedStracks, bt.lostStracks)

	// predict current pose by KF
	for _, strack := range strackPool {
		strack.predict()
	}

	// Step 2: First association, high score detections
	var activatedStracks, refoundStracks, currentLostStracks, currentRemovedStracks []*STrack

	first, err := LinearAssignment(iouDistance(strackPool, detStracks),
		len(strackPool), len(detStracks), float64(bt.params.MatchThresh))

	if err != nil {
		return nil, fmt.Errorf("fatal error in linear assignment, step 2: %w", err)
	}

	for _, m := range first.Matches {
		track, det := strackPool[m[0]], detStracks[m[1]]

		if err := bt.matchTrack(track, det, &activatedStracks, &refoundStracks); err != nil {
			return nil, fmt.Errorf("step 2: %w", err)
		}
	}

	remainDetStracks := pick(detStracks, first.UnmatchedCols)

	var remainTrackedStracks []*STrack

	for _, idx := range first.UnmatchedRows {
		if strackPool[idx].GetSTrackState() == Confirmed {
			remainTrackedStracks = append(remainTrackedStracks, strackPool[idx])
		}
	}

	// Step 3: Second association, low score detections
	second, err := LinearAssignment(iouDistance(remainTrackedStracks, detLowStracks),
		len(remainTrackedStracks), len(detLowStracks), lowScoreMatchThresh)

	if err != nil {
		return nil, fmt.Errorf("fatal error in linear assignment, step 3: %w", err)
	}

	for _, m := range second.Matches {
		track, det := remainTrackedStracks[m[0]], detLowStracks[m[1]]

		if err := bt.matchTrack(track, det, &activatedStracks, &refoundStracks); err != nil {
			return nil, fmt.Errorf("step 3: %w", err)
		}
	}

	for _, idx := range second.UnmatchedRows {
		track := remainTrackedStracks[idx]

		if track.markMissed(bt.params.MaxMisses) {
			track.markLost()
			currentLostStracks = append(currentLostStracks, track)
		} else {
			// coasting on the motion model until MaxMisses is exceeded
			activatedStracks = append(activatedStracks, track)
		}
	}

	// Step 4: tentative tracks against the remaining high score detections
	third, err := LinearAssignment(iouDistance(tentativeStracks, remainDetStracks),
		len(tentativeStracks), len(remainDetStracks), tentativeMatchThresh)

	if err != nil {
		return nil, fmt.Errorf("fatal error in linear assignment, step 4: %w", err)
	}

	for _, m := range third.Matches {
		track := tentativeStracks[m[0]]

		if err := track.update(remainDetStracks[m[1]], bt.frameID, bt.params.MinConsecutiveFrames); err != nil {
			return nil, fmt.Errorf("step 4: %w", err)
		}

		activatedStracks = append(activatedStracks, track)
	}

	for _, idx := range third.UnmatchedRows {
		track := tentativeStracks[idx]
		track.markRemoved()
		currentRemovedStracks = append(currentRemovedStracks, track)
	}

	// init new stracks
	for _, idx := range third.UnmatchedCols {
		track := remainDetStracks[idx]

		if track.GetScore() < bt.params.HighThresh {
			continue
		}

		bt.trackIDCount++
		track.activate(bt.frameID, bt.trackIDCount, bt.params.MinConsecutiveFrames)
		activatedStracks = append(activatedStracks, track)
	}

	// Step 5: Update state
	for _, lostStrack := range bt.lostStracks {
		if lostStrack.GetSTrackState() == Lost && bt.frameID-lostStrack.GetFrameID() > bt.maxTimeLost {
			lostStrack.markRemoved()
			currentRemovedStracks = append(currentRemovedStracks, lostStrack)
		}
	}

	bt.trackedStracks = joinStracks(activatedStracks, refoundStracks)
	bt.lostStracks = keepState(joinStracks(subStracks(bt.lostStracks, bt.trackedStracks),
		currentLostStracks), Lost)

	bt.trackedStracks, bt.lostStracks = bt.removeDuplicateStracks(bt.trackedStracks,
		bt.lostStracks, &currentRemovedStracks)

	for _, track := range currentRemovedStracks {
		bt.removedIDs = append(bt.removedIDs, track.GetTrackID())
	}

	sort.Ints(bt.removedIDs)

	var outputStracks []*STrack

	for _, track := range bt.trackedStracks {
		reportable := track.IsConfirmed() ||
			(bt.params.ReportTentative && track.GetSTrackState() == Tentative)

		if reportable && track.GetFrameID() == bt.frameID {
			outputStracks = append(outputStracks, track)
		}
	}

	return outputStracks, nil
}

// matchTrack applies a first or second stage match, sorting the track into
// activated or refound
func (bt *BYTETracker) matchTrack(track, det *STrack, activated, refound *[]*STrack) error {

	if track.GetSTrackState() == Confirmed {
		if err := track.update(det, bt.frameID, bt.params.MinConsecutiveFrames); err != nil {
			return err
		}
		*activated = append(*activated, track)
		return nil
	}

	if err := track.reActivate(det, bt.frameID); err != nil {
		return err
	}

	*refound = append(*refound, track)
	return nil
}

// removeDuplicateStracks drops whichever of an overlapping tracked and lost
// pair has been alive for less time.  Dropped tracks are marked removed.
func (bt *BYTETracker) removeDuplicateStracks(aStracks, bStracks []*STrack,
	removed *[]*STrack) ([]*STrack, []*STrack) {

	dist := iouDistance(aStracks, bStracks)
	aDup := make([]bool, len(aStracks))
	bDup := make([]bool, len(bStracks))

	for i := range dist {
		for j := range dist[i] {
			if dist[i][j] >= duplicateThresh {
				continue
			}

			timep := aStracks[i].GetFrameID() - aStracks[i].GetStartFrameID()
			timeq := bStracks[j].GetFrameID() - bStracks[j].GetStartFrameID()

			if timep > timeq {
				bDup[j] = true
			} else {
				aDup[i] = true
			}
		}
	}

	filter := func(tracks []*STrack, dup []bool) []*STrack {
		var res []*STrack
		for i, track := range tracks {
			if dup[i] {
				track.markRemoved()
				*removed = append(*removed, track)
				continue
			}
			res = append(res, track)
		}
		return res
	}

	return filter(aStracks, aDup), filter(bStracks, bDup)
}

// joinStracks combines lists of tracks, avoiding duplicates, ordered by
// track id
func joinStracks(lists ...[]*STrack) []*STrack {

	exists := make(map[int]bool)
	var res []*STrack

	for _, list := range lists {
		for _, track := range list {
			if tid := track.GetTrackID(); !exists[tid] {
				exists[tid] = true
				res = append(res, track)
			}
		}
	}

	sort.SliceStable(res, func(i, j int) bool {
		return res[i].GetTrackID() < res[j].GetTrackID()
	})

	return res
}

// subStracks returns the tracks of aTlist not present in bTlist
func subStracks(aTlist, bTlist []*STrack) []*STrack {

	drop := make(map[int]bool, len(bTlist))

	for _, track := range bTlist {
		drop[track.GetTrackID()] = true
	}

	var res []*STrack

	for _, track := range aTlist {
		if !drop[track.GetTrackID()] {
			res = append(res, track)
		}
	}

	return res
}

// keepState returns the tracks in the given state
func keepState(tracks []*STrack, state STrackState) []*STrack {

	var res []*STrack

	for _, track := range tracks {
		if track.GetSTrackState() == state {
			res = append(res, track)
		}
	}

	return res
}

// pick returns the tracks at the given indices
func pick(tracks []*STrack, idx []int) []*STrack {

	res := make([]*STrack, 0, len(idx))

	for _, i := range idx {
		res = append(res, tracks[i])
	}

	return res
}

// iouDistance returns the 1 - IoU cost matrix between two sets of tracks
func iouDistance(aTracks, bTracks []*STrack) [][]float64 {

	if len(aTracks) == 0 || len(bTracks) == 0 {
		return nil
	}

	cost := make([][]float64, len(aTracks))

	for i, a := range aTracks {
		cost[i] = make([]float64, len(bTracks))

		for j, b := range bTracks {
			cost[i][j] = 1 - float64(a.GetRect().IoU(b.GetRect()))
		}
	}

	return cost
}
