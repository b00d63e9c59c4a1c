// Package detector runs vehicle detection models over video frames using the
// OpenCV DNN module
package detector

import (
	"errors"
	"fmt"
	"image"
	"strings"
	"sync"

	"github.com/Mahdijamebozorg/vehicles-track-count-and-speed-estimation/postprocess"
	"github.com/Mahdijamebozorg/vehicles-track-count-and-speed-estimation/preprocess"
	"gocv.io/x/gocv"
)

var (
	// ErrModelLoad is returned when the network file cannot be read
	ErrModelLoad = errors.New("failed to load detection model")
	// ErrEmptyFrame is returned when Detect is given an empty Mat
	ErrEmptyFrame = errors.New("empty frame")
)

// Detector produces raw detections for a frame.  Boxes are in the frame's
// pixel coordinates and are not suppressed or filtered.
type Detector interface {
	Detect(frame gocv.Mat) ([]postprocess.DetectResult, error)
	Close() error
}

// Backend selects where inference runs
type Backend string

const (
	BackendCPU  Backend = "cpu"
	BackendCUDA Backend = "cuda"
)

// ParseBackend returns the backend named by s
func ParseBackend(s string) (Backend, error) {

	switch b := Backend(strings.ToLower(strings.TrimSpace(s))); b {
	case BackendCPU, BackendCUDA:
		return b, nil
	}

	return "", fmt.Errorf("unknown inference backend %q", s)
}

// YOLOv8 runs an ONNX export of a YOLOv8 detection model
type YOLOv8 struct {
	net     gocv.Net
	decoder *postprocess.YOLOv8
	resizer *preprocess.Resizer
	// padded holds the letterboxed input frame
	padded gocv.Mat
	mu     sync.Mutex
}

// NewYOLOv8 loads the ONNX model file and prepares it for inference on the
// given backend
func NewYOLOv8(modelFile string, params postprocess.YOLOv8Params, backend Backend) (*YOLOv8, error) {

	if params.InputSize <= 0 {
		return nil, fmt.Errorf("%w: input size %d", ErrModelLoad, params.InputSize)
	}

	net := gocv.ReadNet(modelFile, "")

	if net.Empty() {
		return nil, fmt.Errorf("%w: %s", ErrModelLoad, modelFile)
	}

	switch backend {
	case BackendCUDA:
		net.SetPreferableBackend(gocv.NetBackendCUDA)
		net.SetPreferableTarget(gocv.NetTargetCUDA)
	default:
		net.SetPreferableBackend(gocv.NetBackendDefault)
		net.SetPreferableTarget(gocv.NetTargetCPU)
	}

	return &YOLOv8{
		net:     net,
		decoder: postprocess.NewYOLOv8(params),
		padded:  gocv.NewMat(),
	}, nil
}

// Detect runs the model over a BGR frame
func (y *YOLOv8) Detect(frame gocv.Mat) ([]postprocess.DetectResult, error) {

	if frame.Empty() {
		return nil, ErrEmptyFrame
	}

	y.mu.Lock()
	defer y.mu.Unlock()

	size := y.decoder.Params.InputSize

	// the resizer is rebuilt should the stream resolution change
	if y.resizer == nil || !y.resizer.Fits(frame.Cols(), frame.Rows()) {

		if y.resizer != nil {
			y.resizer.Close()
		}

		y.resizer = preprocess.NewResizer(frame.Cols(), frame.Rows(), size, size)
	}

	y.resizer.LetterBoxResize(frame, &y.padded, preprocess.LetterboxColor)

	blob := gocv.BlobFromImage(y.padded, 1.0/255.0, image.Pt(size, size),
		gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	y.net.SetInput(blob, "")

	output := y.net.Forward("")
	defer output.Close()

	data, err := output.DataPtrFloat32()

	if err != nil {
		return nil, fmt.Errorf("error reading model output: %w", err)
	}

	return y.decoder.DetectObjects(data, y.resizer.Letterbox())
}

// Close frees the network and working buffers
func (y *YOLOv8) Close() error {

	y.mu.Lock()
	defer y.mu.Unlock()

	var errs []error

	if y.resizer != nil {
		errs = append(errs, y.resizer.Close())
	}

	errs = append(errs, y.padded.Close(), y.net.Close())

	return errors.Join(errs...)
}
