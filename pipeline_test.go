package vtrack

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Mahdijamebozorg/vehicles-track-count-and-speed-estimation/geometry"
	"github.com/Mahdijamebozorg/vehicles-track-count-and-speed-estimation/postprocess"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testWidth  = 640
	testHeight = 480
	testFPS    = 10
)

// testConfig calibrates the whole 640x480 frame as a 10 x 100 metre road
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Source = [][2]float64{{0, 0}, {639, 0}, {639, 479}, {0, 479}}
	cfg.TargetWidth = 10
	cfg.TargetHeight = 100
	return cfg
}

func newTestPipeline(t *testing.T, cfg Config) *Pipeline {
	t.Helper()

	p, err := NewPipeline(cfg, testWidth, testHeight, testFPS)
	require.NoError(t, err)

	return p
}

// vehicle returns a car detection with its bottom center at (x, y)
func vehicle(x, y float32) postprocess.DetectResult {
	return postprocess.DetectResult{
		Class:       2,
		Box:         postprocess.BoxRect{Left: x - 20, Top: y - 30, Right: x + 20, Bottom: y},
		Probability: 0.9,
	}
}

func TestPipelineSpeedAndCrossing(t *testing.T) {

	p := newTestPipeline(t, testConfig())

	const step = 12.0
	// pixels to ground metres along the road
	const scale = 99.0 / 479.0

	var res FrameResult
	var err error

	for frame := 1; frame <= 20; frame++ {

		y := float32(100 + step*float64(frame-1))

		res, err = p.Process([]postprocess.DetectResult{vehicle(320, y)})
		require.NoError(t, err)
		require.Len(t, res.Objects, 1, "frame %d", frame)

		obj := res.Objects[0]
		assert.Equal(t, 1, obj.TrackID)
		assert.Equal(t, frame, res.Frame)

		samples := frame
		if samples > testFPS {
			samples = testFPS
		}

		if samples < testFPS/2 {
			assert.False(t, obj.HasSpeed, "frame %d", frame)
			assert.Equal(t, "#1", obj.Label)
			continue
		}

		want := step * scale * testFPS * 3.6 * float64(samples-1) / float64(samples)

		require.True(t, obj.HasSpeed, "frame %d", frame)
		assert.InDelta(t, want, obj.Speed, 1e-6, "frame %d", frame)
		assert.Equal(t, fmt.Sprintf("#1 %d km/h", int(obj.Speed)), obj.Label)
	}

	// driving down the image crosses the midline once onto the out side
	assert.Equal(t, 0, res.InCount)
	assert.Equal(t, 1, res.OutCount)
	assert.Len(t, p.Trail().GetPoints(1), 20)
}

func TestPipelineCrossingFlags(t *testing.T) {

	p := newTestPipeline(t, testConfig())

	var flagged []int

	for frame := 1; frame <= 6; frame++ {
		res, err := p.Process([]postprocess.DetectResult{vehicle(320, float32(200+10*frame))})
		require.NoError(t, err)
		require.Len(t, res.Objects, 1)

		if res.Objects[0].CrossedOut {
			flagged = append(flagged, frame)
			assert.Equal(t, 1, res.OutDelta)
		}

		assert.False(t, res.Objects[0].CrossedIn)
	}

	// bottom moves 240 -> 250 between frames 4 and 5, 240 is on the line
	assert.Equal(t, []int{5}, flagged)
}

func TestPipelineFilter(t *testing.T) {

	cfg := testConfig()
	cfg.Zone = [][2]float64{{0, 200}, {639, 200}, {639, 479}, {0, 479}}
	p := newTestPipeline(t, cfg)

	atThreshold := vehicle(100, 300)
	atThreshold.Probability = 0.3

	aboveThreshold := vehicle(200, 300)
	aboveThreshold.Probability = 0.3 + 1e-6

	person := vehicle(300, 300)
	person.Class = 0

	outsideZone := vehicle(400, 100)

	kept, inZone := p.Filter([]postprocess.DetectResult{
		atThreshold, aboveThreshold, person, outsideZone, vehicle(500, 300),
	})

	got := make([]float32, len(kept))
	for i, det := range kept {
		got[i] = float32(det.Box.Anchor(geometry.BottomCenter).X)
	}

	if diff := cmp.Diff([]float32{200, 500}, got); diff != "" {
		t.Errorf("kept detections mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, 2, inZone)
}

func TestPipelineZoneMask(t *testing.T) {

	cfg := testConfig()
	cfg.Zone = [][2]float64{{0, 240}, {639, 240}, {639, 479}, {0, 479}}
	p := newTestPipeline(t, cfg)

	mask := p.PolygonZone().Trigger([]postprocess.DetectResult{
		vehicle(320, 400),
		vehicle(320, 100),
	})

	assert.Equal(t, []bool{true, false}, mask)
}

func TestPipelineNMSKeepsBest(t *testing.T) {

	p := newTestPipeline(t, testConfig())

	best := vehicle(320, 300)
	best.Probability = 0.95

	duplicate := vehicle(322, 301)
	duplicate.Probability = 0.7

	res, err := p.Process([]postprocess.DetectResult{duplicate, best})
	require.NoError(t, err)
	require.Len(t, res.Objects, 1)
	assert.Equal(t, float32(0.95), res.Objects[0].Probability)
}

func TestPipelineRemovesState(t *testing.T) {

	cfg := testConfig()
	cfg.Tracker.LostTrackBuffer = 3
	p := newTestPipeline(t, cfg)

	for frame := 0; frame < 8; frame++ {
		_, err := p.Process([]postprocess.DetectResult{vehicle(320, float32(100+10*frame))})
		require.NoError(t, err)
	}

	require.Equal(t, 1, p.Speeds().Tracks())
	require.Equal(t, 1, p.LineZone().Len())

	var removed []int

	// lost buffer is 3 frames at 30 FPS, a single frame at 10 FPS
	for frame := 0; frame < 5; frame++ {
		res, err := p.Process(nil)
		require.NoError(t, err)
		assert.Empty(t, res.Objects)
		removed = append(removed, res.Removed...)
	}

	assert.Equal(t, []int{1}, removed)
	assert.Equal(t, 0, p.Speeds().Tracks())
	assert.Equal(t, 0, p.LineZone().Len())
	assert.Equal(t, 0, p.Trail().Len())

	// the next vehicle gets a new id
	res, err := p.Process([]postprocess.DetectResult{vehicle(320, 100)})
	require.NoError(t, err)
	require.Len(t, res.Objects, 1)
	assert.Equal(t, 2, res.Objects[0].TrackID)
}

func TestPipelineEmptyFrames(t *testing.T) {

	p := newTestPipeline(t, testConfig())

	for i := 0; i < 3; i++ {
		res, err := p.Process(nil)
		require.NoError(t, err)
		assert.Empty(t, res.Objects)
		assert.Equal(t, i+1, res.Frame)
	}
}

func TestPipelineReset(t *testing.T) {

	p := newTestPipeline(t, testConfig())

	for frame := 0; frame < 4; frame++ {
		_, err := p.Process([]postprocess.DetectResult{vehicle(320, float32(215+10*frame))})
		require.NoError(t, err)
	}

	require.Equal(t, 1, p.LineZone().OutCount())

	p.Reset()

	assert.Equal(t, 0, p.Frame())
	assert.Equal(t, 0, p.LineZone().OutCount())
	assert.Equal(t, 0, p.Speeds().Tracks())
}

func TestPipelineVerboseLogging(t *testing.T) {

	var lines []string

	SetLogger(func(format string, v ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, v...))
	})
	defer SetLogger(nil)

	cfg := testConfig()
	cfg.Verbose = true
	p := newTestPipeline(t, cfg)

	for frame := 0; frame < 4; frame++ {
		_, err := p.Process([]postprocess.DetectResult{vehicle(320, float32(215+10*frame))})
		require.NoError(t, err)
	}

	require.NotEmpty(t, lines)
	assert.Contains(t, strings.Join(lines, "\n"), "track 1 crossed out")
}

func TestNewPipelineErrors(t *testing.T) {

	degenerate := testConfig()
	degenerate.Source = [][2]float64{{0, 0}, {100, 0}, {200, 0}, {0, 100}}

	_, err := NewPipeline(degenerate, testWidth, testHeight, testFPS)
	assert.True(t, errors.Is(err, geometry.ErrInvalidCalibration), "got %v", err)

	_, err = NewPipeline(testConfig(), testWidth, testHeight, 0)
	assert.True(t, errors.Is(err, ErrInvalidConfig), "got %v", err)

	_, err = NewPipeline(testConfig(), 0, testHeight, testFPS)
	assert.True(t, errors.Is(err, ErrInvalidConfig), "got %v", err)

	bad := testConfig()
	bad.Tracker.MatchThreshold = 2
	_, err = NewPipeline(bad, testWidth, testHeight, testFPS)
	assert.True(t, errors.Is(err, ErrInvalidConfig), "got %v", err)
}

func TestDefaultConfigValid(t *testing.T) {

	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, geometry.BottomCenter, cfg.AnchorPosition())
	assert.Len(t, cfg.ZonePolygon(), 4)

	start, end := cfg.LineEndpoints(3840, 2160)
	assert.Equal(t, geometry.Pt(0, 1080), start)
	assert.Equal(t, geometry.Pt(3840, 1080), end)

	params := cfg.Tracker.Params(25)
	assert.InDelta(t, 0.4, params.HighThresh, 1e-6)
	assert.Equal(t, 25.0, params.FrameRate)
}

func TestConfigValidate(t *testing.T) {

	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"three source points", func(c *Config) { c.Source = c.Source[:3] }},
		{"zero target width", func(c *Config) { c.TargetWidth = 0 }},
		{"two zone points", func(c *Config) { c.Zone = [][2]float64{{0, 0}, {1, 1}} }},
		{"three line points", func(c *Config) { c.Line = [][2]float64{{0, 0}, {1, 1}, {2, 2}} }},
		{"unknown anchor", func(c *Config) { c.Anchor = "middle" }},
		{"confidence above one", func(c *Config) { c.ConfidenceThreshold = 1.2 }},
		{"zero nms", func(c *Config) { c.NMSThreshold = 0 }},
		{"negative speed factor", func(c *Config) { c.SpeedFactor = -1 }},
		{"negative lost buffer", func(c *Config) { c.Tracker.LostTrackBuffer = -1 }},
		{"zero consecutive frames", func(c *Config) { c.Tracker.MinConsecutiveFrames = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			assert.True(t, errors.Is(cfg.Validate(), ErrInvalidConfig))
		})
	}
}

func TestLoadConfig(t *testing.T) {

	dir := t.TempDir()

	path := filepath.Join(dir, "camera.json")
	data := `{
		"confidence_threshold": 0.45,
		"exclude_classes": [0, 1],
		"line": [[0, 500], [1920, 600]],
		"tracker": {"lost_track_buffer": 60}
	}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, float32(0.45), cfg.ConfidenceThreshold)
	assert.Equal(t, []int{0, 1}, cfg.ExcludeClasses)
	assert.Equal(t, 60, cfg.Tracker.LostTrackBuffer)

	// omitted fields keep their defaults
	assert.Equal(t, DefaultConfig().Source, cfg.Source)
	assert.Equal(t, float32(0.8), cfg.Tracker.MatchThreshold)

	start, end := cfg.LineEndpoints(1920, 1080)
	assert.Equal(t, geometry.Pt(0, 500), start)
	assert.Equal(t, geometry.Pt(1920, 600), end)
}

func TestLoadConfigErrors(t *testing.T) {

	dir := t.TempDir()

	_, err := LoadConfig(filepath.Join(dir, "camera.yaml"))
	assert.ErrorContains(t, err, ".json extension")

	_, err = LoadConfig(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	broken := filepath.Join(dir, "broken.json")
	require.NoError(t, os.WriteFile(broken, []byte("{"), 0o644))
	_, err = LoadConfig(broken)
	assert.ErrorContains(t, err, "parse")

	invalid := filepath.Join(dir, "invalid.json")
	require.NoError(t, os.WriteFile(invalid, []byte(`{"nms_threshold": 3}`), 0o644))
	_, err = LoadConfig(invalid)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}

func TestFormatLabel(t *testing.T) {
	assert.Equal(t, "#7", FormatLabel(7, 0, false, "km/h"))
	assert.Equal(t, "#7 88 km/h", FormatLabel(7, 88.9, true, "km/h"))
	assert.Equal(t, "#12 0 mph", FormatLabel(12, 0.2, true, "mph"))
}

func TestLoadLabels(t *testing.T) {

	path := filepath.Join(t.TempDir(), "coco.txt")
	require.NoError(t, os.WriteFile(path, []byte("person\n bicycle \ncar\n\n"), 0o644))

	labels, err := LoadLabels(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"person", "bicycle", "car"}, labels)
}

func TestPipelineDropsDegenerateBoxes(t *testing.T) {

	p := newTestPipeline(t, testConfig())

	flat := vehicle(100, 300)
	flat.Box.Top = flat.Box.Bottom

	thin := vehicle(300, 300)
	thin.Box.Right = thin.Box.Left

	for i := 0; i < 3; i++ {
		res, err := p.Process([]postprocess.DetectResult{flat, thin})
		require.NoError(t, err)
		assert.Empty(t, res.Objects)
	}

	res, err := p.Process([]postprocess.DetectResult{vehicle(500, 300)})
	require.NoError(t, err)
	require.Len(t, res.Objects, 1)
	assert.Equal(t, 1, res.Objects[0].TrackID)
}
