package vtrack

import (
	"errors"
	"fmt"
	"math"

	"github.com/Mahdijamebozorg/vehicles-track-count-and-speed-estimation/geometry"
	"github.com/Mahdijamebozorg/vehicles-track-count-and-speed-estimation/postprocess"
	"github.com/Mahdijamebozorg/vehicles-track-count-and-speed-estimation/speed"
	"github.com/Mahdijamebozorg/vehicles-track-count-and-speed-estimation/tracker"
	"github.com/Mahdijamebozorg/vehicles-track-count-and-speed-estimation/zone"
)

// TrackedObject is a detection that survived filtering and was associated
// with a track on the current frame
type TrackedObject struct {
	postprocess.DetectResult
	// Anchor is the pixel position used for zone, line and speed
	Anchor geometry.Point
	// Ground is the anchor mapped onto the ground plane
	Ground geometry.Point
	// Speed is valid when HasSpeed is set
	Speed    float64
	HasSpeed bool
	// Label is the annotation text, "#id" or "#id N km/h"
	Label string
	// CrossedIn and CrossedOut are set on the frame the object crossed the
	// counting line
	CrossedIn  bool
	CrossedOut bool
}

// FrameResult is the outcome of processing one frame
type FrameResult struct {
	// Frame is the 1 based frame number
	Frame int
	// Objects are the tracked objects in detector output order
	Objects []TrackedObject
	// InCount and OutCount are the running line crossing totals
	InCount  int
	OutCount int
	// InDelta and OutDelta are the crossings on this frame
	InDelta  int
	OutDelta int
	// ZoneCount is the number of detections inside the zone before NMS
	ZoneCount int
	// Removed are the track ids dropped by the tracker on this frame
	Removed []int
}

// Pipeline turns per frame detections into tracked, counted and speed
// annotated objects.  It is not safe for concurrent use, frames must be
// processed in order.
type Pipeline struct {
	cfg         Config
	width       int
	height      int
	fps         float64
	anchor      geometry.Position
	transformer *geometry.ViewTransformer
	polygon     *zone.PolygonZone
	line        *zone.LineZone
	tracker     *tracker.BYTETracker
	speeds      *speed.Estimator
	trail       *tracker.Trail
	frame       int
	// nextDetID numbers detections across the run
	nextDetID int64
}

// NewPipeline validates the config and builds the pipeline components for a
// video of the given resolution and frame rate
func NewPipeline(cfg Config, width, height int, fps float64) (*Pipeline, error) {

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: frame size %dx%d", ErrInvalidConfig, width, height)
	}

	if fps <= 0 || math.IsNaN(fps) || math.IsInf(fps, 0) {
		return nil, fmt.Errorf("%w: frame rate %v", ErrInvalidConfig, fps)
	}

	transformer, err := geometry.NewViewTransformer(cfg.SourceQuad(),
		geometry.RectangleTarget(cfg.TargetWidth, cfg.TargetHeight))

	if err != nil {
		return nil, fmt.Errorf("error creating view transformer: %w", err)
	}

	anchor := cfg.AnchorPosition()

	polygon, err := zone.NewPolygonZone(cfg.ZonePolygon(), width, height, anchor)

	if err != nil {
		return nil, fmt.Errorf("error creating polygon zone: %w", err)
	}

	start, end := cfg.LineEndpoints(width, height)
	opts := []zone.LineOption{zone.WithAnchors(anchor)}

	if cfg.LineSegmentOnly {
		opts = append(opts, zone.WithSegmentLimits())
	}

	line, err := zone.NewLineZone(start, end, opts...)

	if err != nil {
		return nil, fmt.Errorf("error creating line zone: %w", err)
	}

	bt, err := tracker.NewBYTETracker(cfg.Tracker.Params(fps))

	if err != nil {
		return nil, fmt.Errorf("error creating tracker: %w", err)
	}

	speeds, err := speed.NewEstimatorWithFactor(fps, cfg.SpeedFactor)

	if err != nil {
		return nil, fmt.Errorf("error creating speed estimator: %w", err)
	}

	return &Pipeline{
		cfg:         cfg,
		width:       width,
		height:      height,
		fps:         fps,
		anchor:      anchor,
		transformer: transformer,
		polygon:     polygon,
		line:        line,
		tracker:     bt,
		speeds:      speeds,
		trail:       tracker.NewTrail(int(math.Round(cfg.TrailSeconds * fps))),
	}, nil
}

// Config returns the pipeline configuration
func (p *Pipeline) Config() Config {
	return p.cfg
}

// FrameRate returns the video frame rate the pipeline was built for
func (p *Pipeline) FrameRate() float64 {
	return p.fps
}

// Transformer returns the pixel to ground plane mapping
func (p *Pipeline) Transformer() *geometry.ViewTransformer {
	return p.transformer
}

// PolygonZone returns the region of interest
func (p *Pipeline) PolygonZone() *zone.PolygonZone {
	return p.polygon
}

// LineZone returns the crossing counter
func (p *Pipeline) LineZone() *zone.LineZone {
	return p.line
}

// Tracker returns the multi object tracker
func (p *Pipeline) Tracker() *tracker.BYTETracker {
	return p.tracker
}

// Trail returns the anchor history used for drawing traces
func (p *Pipeline) Trail() *tracker.Trail {
	return p.trail
}

// Speeds returns the speed estimator
func (p *Pipeline) Speeds() *speed.Estimator {
	return p.speeds
}

// Frame returns the number of frames processed
func (p *Pipeline) Frame() int {
	return p.frame
}

// Reset clears tracking, counting and speed state for a new run
func (p *Pipeline) Reset() {
	p.tracker.Reset()
	p.line.Reset()
	p.speeds.Reset()
	p.trail.Reset()
	p.frame = 0
}

// Filter applies the box validity, confidence, class, zone and NMS stages to raw
// detections returning the survivors in input order and the number of
// detections inside the zone
func (p *Pipeline) Filter(dets []postprocess.DetectResult) ([]postprocess.DetectResult, int) {

	dets = postprocess.FilterDegenerate(dets)
	dets = postprocess.FilterConfidence(dets, p.cfg.ConfidenceThreshold)
	dets = postprocess.ExcludeClasses(dets, p.cfg.ExcludeClasses)

	mask := p.polygon.Trigger(dets)
	dets = postprocess.Mask(dets, mask)
	inZone := len(dets)

	if p.cfg.ClassAgnosticNMS {
		dets = postprocess.NMSAgnostic(dets, p.cfg.NMSThreshold)
	} else {
		dets = postprocess.NMS(dets, p.cfg.NMSThreshold)
	}

	return dets, inZone
}

// Process runs one frame of raw detections through filtering, tracking,
// line counting and speed estimation.  It must be called exactly once per
// frame in order, including frames without detections.
func (p *Pipeline) Process(dets []postprocess.DetectResult) (FrameResult, error) {

	p.frame++

	// detection ids are unique across the run
	numbered := make([]postprocess.DetectResult, len(dets))

	for i, det := range dets {
		p.nextDetID++
		det.ID = p.nextDetID
		det.TrackID = 0
		numbered[i] = det
	}

	filtered, inZone := p.Filter(numbered)

	tracked, err := p.tracker.UpdateWithDetections(filtered)

	if err != nil {
		return FrameResult{}, fmt.Errorf("error updating tracker on frame %d: %w", p.frame, err)
	}

	crossings := p.line.Trigger(tracked)

	anchors := postprocess.Anchors(tracked, p.anchor)
	ground := p.transformer.Transform(anchors)

	res := FrameResult{
		Frame:     p.frame,
		Objects:   make([]TrackedObject, len(tracked)),
		InDelta:   crossings.InDelta,
		OutDelta:  crossings.OutDelta,
		ZoneCount: inZone,
	}

	for i, det := range tracked {
		p.speeds.Update(det.TrackID, ground[i])
		p.trail.Add(det.TrackID, anchors[i])
	}

	for i, det := range tracked {

		v, err := p.speeds.Estimate(det.TrackID)

		switch {
		case err == nil:
		case errors.Is(err, speed.ErrInsufficientHistory):
			v = 0
		default:
			return FrameResult{}, fmt.Errorf("error estimating speed of track %d: %w", det.TrackID, err)
		}

		hasSpeed := err == nil

		res.Objects[i] = TrackedObject{
			DetectResult: det,
			Anchor:       anchors[i],
			Ground:       ground[i],
			Speed:        v,
			HasSpeed:     hasSpeed,
			Label:        FormatLabel(det.TrackID, v, hasSpeed, p.cfg.SpeedUnit),
			CrossedIn:    crossings.CrossedIn[i],
			CrossedOut:   crossings.CrossedOut[i],
		}

		if p.cfg.Verbose && (crossings.CrossedIn[i] || crossings.CrossedOut[i]) {
			Logf("frame %d: track %d crossed %s", p.frame, det.TrackID,
				direction(crossings.CrossedIn[i]))
		}
	}

	res.Removed = p.tracker.RemovedTrackIDs()

	for _, id := range res.Removed {
		p.speeds.Remove(id)
		p.line.Remove(id)
		p.trail.Remove(id)

		if p.cfg.Verbose {
			Logf("frame %d: track %d removed", p.frame, id)
		}
	}

	res.InCount = p.line.InCount()
	res.OutCount = p.line.OutCount()

	return res, nil
}

func direction(in bool) string {
	if in {
		return "in"
	}
	return "out"
}
