package tracker

import "fmt"

// STrackState represents the lifecycle state of a tracked object
type STrackState int

const (
	// Tentative is a newly created track not yet reported
	Tentative STrackState = iota
	// Confirmed is a track matched on enough consecutive frames
	Confirmed
	// Lost is a track that has gone unmatched for too many frames
	Lost
	// Removed is a track that will never be matched again
	Removed
)

// String returns the state name
func (s STrackState) String() string {
	switch s {
	case Tentative:
		return "tentative"
	case Confirmed:
		return "confirmed"
	case Lost:
		return "lost"
	case Removed:
		return "removed"
	}

	return fmt.Sprintf("STrackState(%d)", int(s))
}

// STrack represents a single track of an object
type STrack struct {
	// Kalman filter shared by all tracks of a tracker
	kalmanFilter *KalmanFilter
	// motion estimate, nil until the track is activated
	kstate *KalmanState
	// Bounding box of the tracked object
	rect Rect
	// Current state of the track
	state STrackState
	// Detection score
	score float32
	// Unique ID for the track
	trackID int
	// frame the track was last matched on
	frameID int
	// Frame ID when the track started
	startFrameID int
	// streak is the number of consecutive frames matched
	streak int
	// misses is the number of consecutive frames without a match
	misses int
	// Unique ID for the detection last matched
	detectionID int64
	// label is the object class of the last matched detection
	label int
}

// NewSTrack creates a new unactivated STrack from a detection
func NewSTrack(kf *KalmanFilter, rect Rect, score float32, detectionID int64, label int) *STrack {
	return &STrack{
		kalmanFilter: kf,
		rect:         rect,
		state:        Tentative,
		score:        score,
		detectionID:  detectionID,
		label:        label,
	}
}

// GetRect returns the bounding box of the tracked object
func (s *STrack) GetRect() Rect {
	return s.rect
}

// GetSTrackState returns the current state of the track
func (s *STrack) GetSTrackState() STrackState {
	return s.state
}

// IsConfirmed returns whether the track has been confirmed
func (s *STrack) IsConfirmed() bool {
	return s.state == Confirmed
}

// GetScore returns the detection score
func (s *STrack) GetScore() float32 {
	return s.score
}

// GetTrackID returns the unique ID for the track
func (s *STrack) GetTrackID() int {
	return s.trackID
}

// GetFrameID returns the frame the track was last matched on
func (s *STrack) GetFrameID() int {
	return s.frameID
}

// GetDetectionID returns the unique ID of the last matched detection
func (s *STrack) GetDetectionID() int64 {
	return s.detectionID
}

// GetLabel returns the object class of the last matched detection
func (s *STrack) GetLabel() int {
	return s.label
}

// GetStartFrameID returns the frame ID when the track started
func (s *STrack) GetStartFrameID() int {
	return s.startFrameID
}

// GetStreak returns the number of consecutive frames matched
func (s *STrack) GetStreak() int {
	return s.streak
}

// GetMisses returns the number of consecutive frames without a match
func (s *STrack) GetMisses() int {
	return s.misses
}

// String implements fmt.Stringer for test and log output
func (s *STrack) String() string {
	return fmt.Sprintf("STrack{id=%d %s rect=[%.2f %.2f %.2f %.2f] score=%.2f det=%d}",
		s.trackID, s.state, s.rect.TLX(), s.rect.TLY(), s.rect.BRX(), s.rect.BRY(),
		s.score, s.detectionID)
}

// activate starts tracking with the given id.  Tracks created on the first
// frame, or when a single frame is enough, are confirmed immediately.
func (s *STrack) activate(frameID, trackID, minConsecutive int) {

	st := s.kalmanFilter.Initiate(s.rect.Xyah())
	s.kstate = &st

	s.updateRect()

	s.state = Tentative
	s.streak = 1

	if frameID == 1 || s.streak >= minConsecutive {
		s.state = Confirmed
	}

	s.trackID = trackID
	s.frameID = frameID
	s.startFrameID = frameID
	s.misses = 0
}

// reActivate resumes a lost track with a new detection
func (s *STrack) reActivate(det *STrack, frameID int) error {

	if err := s.kalmanFilter.Update(s.kstate, det.rect.Xyah()); err != nil {
		return fmt.Errorf("error re-activating track %d: %w", s.trackID, err)
	}

	s.updateRect()

	s.state = Confirmed
	s.score = det.score
	s.detectionID = det.detectionID
	s.label = det.label
	s.frameID = frameID
	s.streak = 1
	s.misses = 0

	return nil
}

// predict advances the motion estimate one frame.  Height velocity is held
// at zero for tracks that are not currently matched.
func (s *STrack) predict() {

	if s.state != Confirmed {
		s.kstate.Mean.SetVec(7, 0)
	}

	s.kalmanFilter.Predict(s.kstate)
}

// update corrects the track with a matched detection
func (s *STrack) update(det *STrack, frameID, minConsecutive int) error {

	if err := s.kalmanFilter.Update(s.kstate, det.rect.Xyah()); err != nil {
		return fmt.Errorf("error updating track %d: %w", s.trackID, err)
	}

	s.updateRect()

	s.score = det.score
	s.detectionID = det.detectionID
	s.label = det.label
	s.frameID = frameID
	s.streak++
	s.misses = 0

	if s.state == Tentative && s.streak >= minConsecutive {
		s.state = Confirmed
	}

	return nil
}

// markMissed records a frame without a match and reports whether the
// track has now exceeded maxMisses
func (s *STrack) markMissed(maxMisses int) bool {
	s.misses++
	s.streak = 0
	return s.misses > maxMisses
}

// markLost marks the track as lost
func (s *STrack) markLost() {
	s.state = Lost
}

// markRemoved marks the track as removed
func (s *STrack) markRemoved() {
	s.state = Removed
}

// updateRect updates the bounding box of the tracked object based on the
// state mean
func (s *STrack) updateRect() {
	s.rect = RectFromXyah(s.kstate.Xyah())
}
