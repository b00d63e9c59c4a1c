package vtrack

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/Mahdijamebozorg/vehicles-track-count-and-speed-estimation/geometry"
	"github.com/Mahdijamebozorg/vehicles-track-count-and-speed-estimation/tracker"
)

// ErrInvalidConfig is returned when pipeline configuration is out of range
var ErrInvalidConfig = errors.New("invalid pipeline config")

// maxConfigSize is the largest config file LoadConfig will read
const maxConfigSize = 1 * 1024 * 1024 // 1MB

// Config holds the calibration and runtime parameters of the pipeline
type Config struct {
	// Source is the road quadrilateral in pixel coordinates, ordered to
	// match the corners of the target rectangle: top-left, top-right,
	// bottom-right, bottom-left
	Source [][2]float64 `json:"source"`
	// TargetWidth and TargetHeight are the real world size of the road
	// quadrilateral in metres
	TargetWidth  float64 `json:"target_width"`
	TargetHeight float64 `json:"target_height"`

	// Zone is the region of interest polygon, the source quadrilateral when
	// empty
	Zone [][2]float64 `json:"zone,omitempty"`
	// Line is the counting segment, the horizontal midline of the frame when
	// empty
	Line [][2]float64 `json:"line,omitempty"`
	// Anchor is the box position used for zone, line and speed, one of
	// center, bottom_center, top_left and the like
	Anchor string `json:"anchor"`
	// LineSegmentOnly only counts crossings within the segment ends
	LineSegmentOnly bool `json:"line_segment_only"`

	// ConfidenceThreshold drops detections scoring at or below it
	ConfidenceThreshold float32 `json:"confidence_threshold"`
	// NMSThreshold is the IoU above which overlapping detections are
	// suppressed
	NMSThreshold float32 `json:"nms_threshold"`
	// ClassAgnosticNMS suppresses across classes instead of per class
	ClassAgnosticNMS bool `json:"class_agnostic_nms"`
	// ExcludeClasses are detector class ids dropped before tracking
	ExcludeClasses []int `json:"exclude_classes"`

	// SpeedFactor converts ground units per second to SpeedUnit
	SpeedFactor float64 `json:"speed_factor"`
	SpeedUnit   string  `json:"speed_unit"`

	Tracker TrackerConfig `json:"tracker"`

	// TrailSeconds is the length of drawn traces
	TrailSeconds float64 `json:"trail_seconds"`

	// Verbose logs track removal and line crossings
	Verbose bool `json:"verbose"`
}

// TrackerConfig are the ByteTrack settings not derived from the video
type TrackerConfig struct {
	// ActivationThreshold splits high and low score detections, new tracks
	// need 0.1 above it
	ActivationThreshold float32 `json:"track_activation_threshold"`
	// LostTrackBuffer is the number of frames at 30 FPS a lost track is
	// kept
	LostTrackBuffer int `json:"lost_track_buffer"`
	// MatchThreshold is the IoU distance limit of the first association
	MatchThreshold float32 `json:"minimum_matching_threshold"`
	// MinConsecutiveFrames is the matched streak that confirms a track
	MinConsecutiveFrames int `json:"minimum_consecutive_frames"`
	// MaxMisses is the number of missed frames before a track is lost
	MaxMisses int `json:"max_misses"`
	// ReportTentative also reports unconfirmed tracks
	ReportTentative bool `json:"report_tentative"`
}

// DefaultConfig returns the highway camera calibration and thresholds
func DefaultConfig() Config {
	return Config{
		Source: [][2]float64{
			{1252, 787},
			{2298, 803},
			{5039, 2159},
			{-550, 2159},
		},
		TargetWidth:         25,
		TargetHeight:        250,
		Anchor:              geometry.BottomCenter.String(),
		ConfidenceThreshold: 0.3,
		NMSThreshold:        0.5,
		ExcludeClasses:      []int{0},
		SpeedFactor:         3.6,
		SpeedUnit:           "km/h",
		Tracker: TrackerConfig{
			ActivationThreshold:  0.3,
			LostTrackBuffer:      30,
			MatchThreshold:       0.8,
			MinConsecutiveFrames: 1,
			MaxMisses:            0,
		},
		TrailSeconds: 2,
	}
}

// LoadConfig reads a JSON config file over DefaultConfig, so fields omitted
// from the file keep their defaults, and validates the result.  The file
// must have a .json extension and be under 1MB.
func LoadConfig(path string) (Config, error) {

	cfg := DefaultConfig()

	cleanPath := filepath.Clean(path)

	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return cfg, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)

	if err != nil {
		return cfg, fmt.Errorf("failed to stat config file: %w", err)
	}

	if fileInfo.Size() > maxConfigSize {
		return cfg, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxConfigSize)
	}

	data, err := os.ReadFile(cleanPath)

	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration values are usable
func (c Config) Validate() error {

	if len(c.Source) != 4 {
		return fmt.Errorf("%w: source must have 4 points, got %d", ErrInvalidConfig, len(c.Source))
	}

	if !finitePositive(c.TargetWidth) || !finitePositive(c.TargetHeight) {
		return fmt.Errorf("%w: target size must be positive, got %vx%v",
			ErrInvalidConfig, c.TargetWidth, c.TargetHeight)
	}

	if len(c.Zone) > 0 && len(c.Zone) < 3 {
		return fmt.Errorf("%w: zone must have at least 3 points, got %d", ErrInvalidConfig, len(c.Zone))
	}

	if len(c.Line) > 0 && len(c.Line) != 2 {
		return fmt.Errorf("%w: line must have 2 points, got %d", ErrInvalidConfig, len(c.Line))
	}

	if _, err := geometry.ParsePosition(c.Anchor); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("%w: confidence_threshold must be between 0 and 1, got %v",
			ErrInvalidConfig, c.ConfidenceThreshold)
	}

	if c.NMSThreshold <= 0 || c.NMSThreshold > 1 {
		return fmt.Errorf("%w: nms_threshold must be above 0 and at most 1, got %v",
			ErrInvalidConfig, c.NMSThreshold)
	}

	if !finitePositive(c.SpeedFactor) {
		return fmt.Errorf("%w: speed_factor must be positive, got %v", ErrInvalidConfig, c.SpeedFactor)
	}

	if c.TrailSeconds < 0 || math.IsNaN(c.TrailSeconds) {
		return fmt.Errorf("%w: trail_seconds must not be negative, got %v", ErrInvalidConfig, c.TrailSeconds)
	}

	// frame rate is only known once the video is open, any positive value
	// checks the remaining tracker settings
	if err := c.Tracker.Params(30).Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	return nil
}

// Params returns the tracker settings for a video of the given frame rate
func (t TrackerConfig) Params(frameRate float64) tracker.Params {

	params := tracker.DefaultParams(frameRate, t.ActivationThreshold)
	params.TrackBuffer = t.LostTrackBuffer
	params.MatchThresh = t.MatchThreshold
	params.MinConsecutiveFrames = t.MinConsecutiveFrames
	params.MaxMisses = t.MaxMisses
	params.ReportTentative = t.ReportTentative

	if params.HighThresh > 1 {
		params.HighThresh = 1
	}

	return params
}

// SourceQuad returns the source points as a quadrilateral
func (c Config) SourceQuad() [4]geometry.Point {

	var quad [4]geometry.Point

	for i := 0; i < 4 && i < len(c.Source); i++ {
		quad[i] = geometry.Pt(c.Source[i][0], c.Source[i][1])
	}

	return quad
}

// ZonePolygon returns the region of interest, the source quadrilateral when
// no zone is configured
func (c Config) ZonePolygon() []geometry.Point {

	if len(c.Zone) == 0 {
		quad := c.SourceQuad()
		return quad[:]
	}

	return toPoints(c.Zone)
}

// LineEndpoints returns the counting segment for a frame of the given size,
// the horizontal midline when no line is configured
func (c Config) LineEndpoints(width, height int) (geometry.Point, geometry.Point) {

	if len(c.Line) != 2 {
		mid := float64(height) / 2
		return geometry.Pt(0, mid), geometry.Pt(float64(width), mid)
	}

	return geometry.Pt(c.Line[0][0], c.Line[0][1]), geometry.Pt(c.Line[1][0], c.Line[1][1])
}

// AnchorPosition returns the parsed anchor, bottom center when invalid
func (c Config) AnchorPosition() geometry.Position {

	pos, err := geometry.ParsePosition(c.Anchor)

	if err != nil {
		return geometry.BottomCenter
	}

	return pos
}

func toPoints(pts [][2]float64) []geometry.Point {

	out := make([]geometry.Point, len(pts))

	for i, p := range pts {
		out[i] = geometry.Pt(p[0], p[1])
	}

	return out
}

func finitePositive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
