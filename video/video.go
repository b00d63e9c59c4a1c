// Package video reads frames from and writes annotated frames to video files
package video

import (
	"errors"
	"fmt"
	"io"
	"math"

	"gocv.io/x/gocv"
)

var (
	// ErrOpen is returned when a video file cannot be opened
	ErrOpen = errors.New("failed to open video")
	// ErrFrameRead is returned when decoding stops before the reported
	// frame count is reached
	ErrFrameRead = errors.New("failed to read video frame")
)

// maxEmptyFrames is the number of consecutive empty frames skipped before
// the stream is considered broken
const maxEmptyFrames = 30

// Info describes a video stream
type Info struct {
	Width  int
	Height int
	FPS    float64
	// TotalFrames is the frame count reported by the container, zero when
	// unknown
	TotalFrames int
}

// Validate checks the stream can be processed
func (i Info) Validate() error {

	if i.Width <= 0 || i.Height <= 0 {
		return fmt.Errorf("%w: frame size %dx%d", ErrOpen, i.Width, i.Height)
	}

	if i.FPS <= 0 || math.IsNaN(i.FPS) || math.IsInf(i.FPS, 0) {
		return fmt.Errorf("%w: frame rate %v", ErrOpen, i.FPS)
	}

	return nil
}

// Reader decodes frames from a video file
type Reader struct {
	capture *gocv.VideoCapture
	info    Info
	frames  int
}

// Open opens the video file and reads its stream properties
func Open(path string) (*Reader, error) {

	capture, err := gocv.VideoCaptureFile(path)

	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrOpen, path, err)
	}

	info := Info{
		Width:       int(capture.Get(gocv.VideoCaptureFrameWidth)),
		Height:      int(capture.Get(gocv.VideoCaptureFrameHeight)),
		FPS:         capture.Get(gocv.VideoCaptureFPS),
		TotalFrames: int(capture.Get(gocv.VideoCaptureFrameCount)),
	}

	if info.TotalFrames < 0 {
		info.TotalFrames = 0
	}

	if err := info.Validate(); err != nil {
		capture.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return &Reader{
		capture: capture,
		info:    info,
	}, nil
}

// Info returns the stream properties
func (r *Reader) Info() Info {
	return r.info
}

// Frames returns the number of frames read so far
func (r *Reader) Frames() int {
	return r.frames
}

// Read decodes the next frame into dst.  It returns io.EOF at the end of the
// stream and ErrFrameRead if decoding fails early.
func (r *Reader) Read(dst *gocv.Mat) error {

	for empty := 0; empty < maxEmptyFrames; {

		if ok := r.capture.Read(dst); !ok {

			if r.info.TotalFrames > 0 && r.frames < r.info.TotalFrames-1 {
				return fmt.Errorf("%w: stopped at frame %d of %d", ErrFrameRead,
					r.frames, r.info.TotalFrames)
			}

			return io.EOF
		}

		if dst.Empty() {
			empty++
			continue
		}

		r.frames++
		return nil
	}

	return fmt.Errorf("%w: %d empty frames after frame %d", ErrFrameRead,
		maxEmptyFrames, r.frames)
}

// Close releases the capture device
func (r *Reader) Close() error {
	return r.capture.Close()
}

// Writer encodes frames to a video file
type Writer struct {
	writer *gocv.VideoWriter
}

// Create opens a video file for writing frames of the given stream
// properties with the mp4v codec
func Create(path string, info Info) (*Writer, error) {

	if err := info.Validate(); err != nil {
		return nil, err
	}

	writer, err := gocv.VideoWriterFile(path, "mp4v", info.FPS, info.Width, info.Height, true)

	if err != nil {
		return nil, fmt.Errorf("error creating video writer %s: %w", path, err)
	}

	if !writer.IsOpened() {
		writer.Close()
		return nil, fmt.Errorf("video writer %s did not open", path)
	}

	return &Writer{writer: writer}, nil
}

// Write appends a frame
func (w *Writer) Write(frame gocv.Mat) error {
	return w.writer.Write(frame)
}

// Close flushes and closes the file
func (w *Writer) Close() error {
	return w.writer.Close()
}
