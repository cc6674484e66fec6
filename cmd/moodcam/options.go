package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-moodcam/internal/config"
	"github.com/teslashibe/go-moodcam/internal/log"
	"github.com/teslashibe/go-moodcam/pkg/capture"
	"github.com/teslashibe/go-moodcam/pkg/detection"
	"github.com/teslashibe/go-moodcam/pkg/display"
	"github.com/teslashibe/go-moodcam/pkg/emotion"
	"github.com/teslashibe/go-moodcam/pkg/pipeline"
)

// Classifier backend names accepted by --classifier.
const (
	classifierDeepFace = "deepface"
	classifierWorker   = "worker"
	classifierGemini   = "gemini"
	classifierOpenAI   = "openai"
	classifierMock     = "mock"
)

// options holds the flags shared by the live loop and the one-shot
// subcommands.
type options struct {
	Mode     string
	Interval time.Duration

	Source string
	Device int
	Input  string

	Detector     string
	Cascade      string
	YuNetModel   string
	ScaleFactor  float64
	MinNeighbors int
	MinSize      int
	Equalize     bool

	Classifier   string
	DeepFaceURL  string
	WorkerScript string
	Model        string
	Timeout      time.Duration

	NoWindow bool
	Trail    bool
	Web      string
	Verbose  bool
}

func defaultOptions() options {
	det := detection.Continuous()
	return options{
		Mode:         string(pipeline.ModeContinuous),
		Interval:     pipeline.DefaultInterval,
		Source:       capture.KindWebcam,
		Device:       config.CameraDevice(),
		Detector:     detection.BackendCascade,
		Cascade:      config.CascadePath(),
		YuNetModel:   det.ModelPath,
		ScaleFactor:  det.ScaleFactor,
		MinNeighbors: det.MinNeighbors,
		MinSize:      det.MinSize,
		Classifier:   classifierDeepFace,
		DeepFaceURL:  config.DeepFaceURL(),
		WorkerScript: config.DefaultWorkerScript,
		Timeout:      30 * time.Second,
	}
}

func addDetectorFlags(cmd *cobra.Command, o *options) {
	f := cmd.Flags()
	f.StringVar(&o.Detector, "detector", o.Detector, "Face detector backend (cascade, yunet)")
	f.StringVar(&o.Cascade, "cascade", o.Cascade, "Haar cascade XML (default: $MOODCAM_CASCADE or the OpenCV install)")
	f.StringVar(&o.YuNetModel, "yunet-model", o.YuNetModel, "YuNet ONNX model path")
	f.Float64Var(&o.ScaleFactor, "scale-factor", o.ScaleFactor, "Cascade pyramid step, > 1.0 (mode preset when unset)")
	f.IntVar(&o.MinNeighbors, "min-neighbors", o.MinNeighbors, "Cascade neighbor votes, >= 0 (mode preset when unset)")
	f.IntVar(&o.MinSize, "min-size", o.MinSize, "Smallest face edge in pixels (mode preset when unset)")
	f.BoolVar(&o.Equalize, "equalize", o.Equalize, "Gray and histogram-equalize before detecting (mode preset when unset)")
}

func addClassifierFlags(cmd *cobra.Command, o *options) {
	f := cmd.Flags()
	f.StringVar(&o.Classifier, "classifier", o.Classifier, "Emotion backends, comma separated for fallback (deepface, worker, gemini, openai, mock)")
	f.StringVar(&o.DeepFaceURL, "deepface-url", o.DeepFaceURL, "DeepFace REST API base URL")
	f.StringVar(&o.WorkerScript, "worker-script", o.WorkerScript, "Python worker script for the worker backend")
	f.StringVar(&o.Model, "model", o.Model, "Model name for the gemini and openai backends")
	f.DurationVar(&o.Timeout, "timeout", o.Timeout, "Per-request classification timeout")
}

func addRunFlags(cmd *cobra.Command, o *options) {
	f := cmd.Flags()
	f.StringVarP(&o.Mode, "mode", "m", o.Mode, "Analysis cadence (continuous, interval)")
	f.DurationVar(&o.Interval, "interval", o.Interval, "Minimum time between analyses in interval mode")
	f.StringVar(&o.Source, "source", o.Source, "Frame source (webcam, file, screen)")
	f.IntVarP(&o.Device, "device", "d", o.Device, "Camera index (default: $MOODCAM_CAMERA or 0)")
	f.StringVarP(&o.Input, "input", "i", o.Input, "Video file to analyze instead of the camera")
	f.BoolVar(&o.NoWindow, "no-window", o.NoWindow, "Do not open the video window")
	f.BoolVar(&o.Trail, "trail", o.Trail, "Open a second window tracing the primary face")
	f.StringVar(&o.Web, "web", o.Web, "Serve the live dashboard on this address, e.g. "+config.DefaultWebAddr)
	f.BoolVarP(&o.Verbose, "verbose", "v", o.Verbose, "Print every face with its score")

	addDetectorFlags(cmd, o)
	addClassifierFlags(cmd, o)
}

// applyModePreset fills the detector tuning from the mode preset for every
// tuning flag the user did not set.
func (o *options) applyModePreset(changed func(name string) bool) {
	preset := detection.Continuous()
	if o.interval() {
		preset = detection.Interval()
	}
	if !changed("scale-factor") {
		o.ScaleFactor = preset.ScaleFactor
	}
	if !changed("min-neighbors") {
		o.MinNeighbors = preset.MinNeighbors
	}
	if !changed("min-size") {
		o.MinSize = preset.MinSize
	}
	if !changed("equalize") {
		o.Equalize = preset.Equalize
	}
}

func (o *options) interval() bool {
	mode, err := pipeline.ParseMode(o.Mode)
	return err == nil && mode == pipeline.ModeInterval
}

// validate checks flag combinations that the packages cannot see.
func (o *options) validate() error {
	var errs []error
	if _, err := pipeline.ParseMode(o.Mode); err != nil {
		errs = append(errs, err)
	}
	if o.Trail && o.NoWindow {
		errs = append(errs, errors.New("--trail needs the video window; drop --no-window"))
	}
	if o.Input != "" && o.Source != capture.KindWebcam && o.Source != capture.KindFile {
		errs = append(errs, fmt.Errorf("--input conflicts with --source %s", o.Source))
	}
	return errors.Join(errs...)
}

func (o *options) sourceConfig() capture.Config {
	cfg := capture.DefaultConfig()
	cfg.Kind = o.Source
	cfg.Device = o.Device
	if o.Input != "" {
		cfg.Kind = capture.KindFile
		cfg.Path = o.Input
	}
	return cfg
}

func (o *options) detectorConfig() detection.Config {
	cfg := detection.Continuous()
	cfg.Backend = o.Detector
	cfg.CascadePath = o.Cascade
	cfg.ModelPath = o.YuNetModel
	cfg.ScaleFactor = o.ScaleFactor
	cfg.MinNeighbors = o.MinNeighbors
	cfg.MinSize = o.MinSize
	cfg.Grayscale = o.Equalize
	cfg.Equalize = o.Equalize
	return cfg
}

func (o *options) pipelineConfig() (pipeline.Config, error) {
	mode, err := pipeline.ParseMode(o.Mode)
	if err != nil {
		return pipeline.Config{}, err
	}
	cfg := pipeline.DefaultConfig()
	cfg.Mode = mode
	cfg.Interval = o.Interval
	return cfg, cfg.Validate()
}

// classifierNames splits --classifier into trimmed, non-empty names.
func classifierNames(list string) []string {
	var names []string
	for _, n := range strings.Split(list, ",") {
		if n = strings.ToLower(strings.TrimSpace(n)); n != "" {
			names = append(names, n)
		}
	}
	return names
}

// newClassifier builds the backends named by --classifier. Several names
// are tried in order through a Chain.
func (o *options) newClassifier() (emotion.Classifier, error) {
	names := classifierNames(o.Classifier)
	if len(names) == 0 {
		return nil, fmt.Errorf("no classifier selected")
	}

	var built []emotion.Classifier
	closeAll := func() {
		for _, c := range built {
			c.Close()
		}
	}
	for _, name := range names {
		c, err := o.newBackend(name)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("classifier %s: %w", name, err)
		}
		built = append(built, c)
	}

	if len(built) == 1 {
		return built[0], nil
	}
	chain, err := emotion.NewChainWithLogger(log.Component("emotion.chain"), built...)
	if err != nil {
		closeAll()
		return nil, err
	}
	return chain, nil
}

func (o *options) newBackend(name string) (emotion.Classifier, error) {
	common := []emotion.Option{
		emotion.WithTimeout(o.Timeout),
		emotion.WithLogger(log.L()),
	}
	if o.Model != "" {
		common = append(common, emotion.WithModel(o.Model))
	}

	switch name {
	case classifierDeepFace:
		return emotion.NewDeepFace(append(common, emotion.WithBaseURL(o.DeepFaceURL))...), nil
	case classifierWorker:
		return emotion.NewWorker(append(common, emotion.WithCommand("python3", "-u", o.WorkerScript))...)
	case classifierGemini:
		return emotion.NewGemini(append(common, emotion.WithAPIKey(config.GeminiAPIKey()))...)
	case classifierOpenAI:
		return emotion.NewOpenAI(append(common, emotion.WithAPIKey(config.OpenAIAPIKey()))...)
	case classifierMock:
		return emotion.NewMock(), nil
	default:
		return nil, fmt.Errorf("unknown classifier %q", name)
	}
}

// newSinks builds the outputs for a live run. The console always reports;
// the window, trail, progress bar and dashboard are optional.
func (o *options) newSinks(stdout io.Writer, src capture.Source) []pipeline.Sink {
	sinks := []pipeline.Sink{display.NewConsole(stdout, o.Verbose)}

	if !o.NoWindow {
		w := display.NewWindow(display.DefaultTitle)
		w.Hold = o.interval()
		sinks = append(sinks, w)
	}
	if o.Trail {
		sinks = append(sinks, display.NewTrail())
	}
	if f, ok := src.(*capture.File); ok {
		sinks = append(sinks, display.NewProgress(os.Stderr, int64(f.FrameCount())))
	}
	return sinks
}
