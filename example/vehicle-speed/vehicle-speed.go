/*
Example code showing how to count vehicles crossing a line and estimate their
speed from a calibrated highway camera video
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	vtrack "github.com/Mahdijamebozorg/vehicles-track-count-and-speed-estimation"
	"github.com/Mahdijamebozorg/vehicles-track-count-and-speed-estimation/detector"
	"github.com/Mahdijamebozorg/vehicles-track-count-and-speed-estimation/postprocess"
	"github.com/Mahdijamebozorg/vehicles-track-count-and-speed-estimation/render"
	"github.com/Mahdijamebozorg/vehicles-track-count-and-speed-estimation/report"
	"github.com/Mahdijamebozorg/vehicles-track-count-and-speed-estimation/store"
	"github.com/Mahdijamebozorg/vehicles-track-count-and-speed-estimation/video"
	"gocv.io/x/gocv"
	"golang.org/x/sync/errgroup"
)

// frameQueue is the number of decoded and detected frames buffered ahead
// of tracking
const frameQueue = 8

// detectedFrame is a decoded frame and its raw detections
type detectedFrame struct {
	img  gocv.Mat
	dets []postprocess.DetectResult
}

// outputs are the optional sinks of a run
type outputs struct {
	writer    *video.Writer
	events    *store.Store
	runID     string
	collector *report.Collector
}

func main() {
	// disable logging timestamps
	log.SetFlags(0)

	// read in cli flags
	configFile := flag.String("c", "", "JSON config file with calibration and thresholds, defaults are used when empty")
	modelFile := flag.String("m", "../data/yolov8x.onnx", "ONNX exported YOLOv8 detection model")
	vidFile := flag.String("v", "../data/vehicles.mp4", "Video file to count vehicles in")
	outFile := flag.String("o", "", "Annotated output video file, skipped when empty")
	labelFile := flag.String("l", "../data/coco_80_labels_list.txt", "Text file containing model labels")
	backendName := flag.String("b", "cpu", "Inference backend [cpu|cuda]")
	numClasses := flag.Int("n", 80, "Number of classes the model was trained on")
	confThresh := flag.Float64("conf", -1, "Detection confidence threshold, overrides the config when set")
	iouThresh := flag.Float64("iou", -1, "NMS IoU threshold, overrides the config when set")
	dbFile := flag.String("db", "", "sqlite event log file, skipped when empty")
	histFile := flag.String("hist", "", "Speed histogram PNG written at the end of the run")
	chartFile := flag.String("chart", "", "Speed chart HTML written at the end of the run")
	verbose := flag.Bool("verbose", false, "Log track removal and line crossings")

	flag.Parse()

	cfg := vtrack.DefaultConfig()

	if *configFile != "" {
		var err error
		cfg, err = vtrack.LoadConfig(*configFile)

		if err != nil {
			log.Fatalf("Error loading config: %v", err)
		}
	}

	if *confThresh >= 0 {
		cfg.ConfidenceThreshold = float32(*confThresh)
	}

	if *iouThresh >= 0 {
		cfg.NMSThreshold = float32(*iouThresh)
	}

	cfg.Verbose = cfg.Verbose || *verbose

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Error in config: %v", err)
	}

	if cfg.Verbose {
		vtrack.SetLogger(log.Printf)
	}

	backend, err := detector.ParseBackend(*backendName)

	if err != nil {
		log.Fatal(err)
	}

	classes, err := vtrack.LoadLabels(*labelFile)

	if err != nil {
		log.Printf("Labels not loaded, using class ids: %v", err)
	}

	excluded := make([]string, 0, len(cfg.ExcludeClasses))

	for _, c := range cfg.ExcludeClasses {
		if c >= 0 && c < len(classes) {
			excluded = append(excluded, classes[c])
		} else {
			excluded = append(excluded, fmt.Sprint(c))
		}
	}

	log.Printf("Excluding classes: %s", strings.Join(excluded, ", "))

	reader, err := video.Open(*vidFile)

	if err != nil {
		log.Fatalf("Error opening video: %v", err)
	}

	defer reader.Close()

	info := reader.Info()
	log.Printf("Video %dx%d at %.2f FPS, %d frames", info.Width, info.Height, info.FPS, info.TotalFrames)

	params := postprocess.YOLOv8COCOParams()
	params.ObjectClassNum = *numClasses
	// keep low scoring candidates for the second tracker association
	params.BoxThreshold = 0.1

	if cfg.ConfidenceThreshold < params.BoxThreshold {
		params.BoxThreshold = cfg.ConfidenceThreshold
	}

	det, err := detector.NewYOLOv8(*modelFile, params, backend)

	if err != nil {
		log.Fatalf("Error loading model: %v", err)
	}

	defer det.Close()

	pipeline, err := vtrack.NewPipeline(cfg, info.Width, info.Height, info.FPS)

	if err != nil {
		log.Fatalf("Error creating pipeline: %v", err)
	}

	out := outputs{collector: report.NewCollector()}

	if *outFile != "" {
		out.writer, err = video.Create(*outFile, info)

		if err != nil {
			log.Fatalf("Error creating output video: %v", err)
		}

		defer out.writer.Close()
	}

	if *dbFile != "" {
		out.events, err = store.Open(*dbFile)

		if err != nil {
			log.Fatalf("Error opening event log: %v", err)
		}

		defer out.events.Close()

		rec, err := out.events.StartRun(*vidFile, info.Width, info.Height, info.FPS)

		if err != nil {
			log.Fatalf("Error starting run: %v", err)
		}

		out.runID = rec.RunID
		log.Printf("Recording events for run %s", rec.RunID)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()

	if err := run(ctx, reader, det, pipeline, out); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("Run stopped: %v", err)
	}

	elapsed := time.Since(start)
	frames := pipeline.Frame()

	log.Printf("Processed %d frames in %s (%.2f FPS)", frames, elapsed.Round(time.Millisecond),
		float64(frames)/elapsed.Seconds())
	log.Printf("Vehicles in: %d, out: %d", pipeline.LineZone().InCount(), pipeline.LineZone().OutCount())

	if out.events != nil {
		if err := out.events.FinishRun(out.runID, frames, pipeline.LineZone().InCount(),
			pipeline.LineZone().OutCount()); err != nil {
			log.Printf("Error finishing run: %v", err)
		}
	}

	writeReports(out.collector, cfg.SpeedUnit, *histFile, *chartFile)
}

// run decodes and detects frames in one goroutine and tracks, annotates and
// writes them in order in another
func run(ctx context.Context, reader *video.Reader, det detector.Detector,
	pipeline *vtrack.Pipeline, out outputs) error {

	g, ctx := errgroup.WithContext(ctx)
	frames := make(chan detectedFrame, frameQueue)

	g.Go(func() error {
		defer close(frames)

		for {
			img := gocv.NewMat()

			if err := reader.Read(&img); err != nil {
				img.Close()

				if errors.Is(err, io.EOF) {
					return nil
				}

				if errors.Is(err, video.ErrFrameRead) {
					log.Printf("Ending early: %v", err)
					return nil
				}

				return err
			}

			dets, err := det.Detect(img)

			if err != nil {
				img.Close()
				return fmt.Errorf("error detecting frame %d: %w", reader.Frames(), err)
			}

			select {
			case frames <- detectedFrame{img: img, dets: dets}:
			case <-ctx.Done():
				img.Close()
				return ctx.Err()
			}
		}
	})

	g.Go(func() error {
		// drain so the producer never blocks after an error here
		defer func() {
			for f := range frames {
				f.img.Close()
			}
		}()

		font := render.FontForHeight(reader.Info().Height)
		trailStyle := render.DefaultTrailStyle()
		zoneStyle := render.DefaultZoneStyle()
		thickness := 2

		if reader.Info().Height >= 1440 {
			thickness = 4
		}

		for f := range frames {

			err := processFrame(f, pipeline, out, font, trailStyle, zoneStyle, thickness)
			f.img.Close()

			if err != nil {
				return err
			}

			if ctx.Err() != nil {
				return ctx.Err()
			}
		}

		return nil
	})

	return g.Wait()
}

// processFrame tracks one frame and sends it to the configured outputs
func processFrame(f detectedFrame, pipeline *vtrack.Pipeline, out outputs,
	font render.Font, trailStyle render.TrailStyle, zoneStyle render.ZoneStyle,
	thickness int) error {

	res, err := pipeline.Process(f.dets)

	if err != nil {
		return err
	}

	out.collector.Add(res)

	if out.events != nil {
		if err := out.events.RecordFrame(out.runID, res); err != nil {
			return fmt.Errorf("error recording frame %d: %w", res.Frame, err)
		}
	}

	if out.writer == nil {
		return nil
	}

	img := f.img

	render.PolygonZone(&img, pipeline.PolygonZone(), zoneStyle)
	render.Trail(&img, res.Objects, pipeline.Trail(), trailStyle)
	render.TrackedBoxes(&img, res.Objects, font, thickness)
	render.LineZone(&img, pipeline.LineZone(), font, zoneStyle)
	render.FrameInfo(&img, res.Frame, res.ZoneCount, font)

	if err := out.writer.Write(img); err != nil {
		return fmt.Errorf("error writing frame %d: %w", res.Frame, err)
	}

	return nil
}

// writeReports saves the end of run speed histogram and chart when asked for
func writeReports(c *report.Collector, unit, histFile, chartFile string) {

	sum, err := c.Summary()

	if err != nil {
		log.Printf("No speed report: %v", err)
		return
	}

	log.Printf("Speeds over %d tracks: mean %.1f, median %.1f, 85th percentile %.1f, max %.1f %s",
		sum.Tracks, sum.Mean, sum.Median, sum.P85, sum.Max, unit)

	if histFile != "" {
		if err := report.SaveHistogram(histFile, c.MeanSpeeds(), unit); err != nil {
			log.Printf("Error saving histogram: %v", err)
		}
	}

	if chartFile != "" {

		fh, err := os.Create(chartFile)

		if err != nil {
			log.Printf("Error creating chart: %v", err)
			return
		}

		defer fh.Close()

		if err := report.WriteChart(fh, c.Tracks(), sum, unit); err != nil {
			log.Printf("Error writing chart: %v", err)
		}
	}
}
