// Package pipeline runs the capture, detect, classify and report loop.
//
// One Pipeline drives one Source. Each iteration reads a frame, and when
// the Gate allows it, detects faces, classifies every crop and builds a
// Report. Every frame is handed to the sinks, together with the report when
// one was produced. The loop is single-threaded and stops on a sink Quit,
// context cancellation, or the end of the source.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"gocv.io/x/gocv"

	"github.com/teslashibe/go-moodcam/internal/log"
	"github.com/teslashibe/go-moodcam/pkg/capture"
	"github.com/teslashibe/go-moodcam/pkg/debug"
	"github.com/teslashibe/go-moodcam/pkg/detection"
	"github.com/teslashibe/go-moodcam/pkg/emotion"
)

// ErrAlreadyRun is returned when Run is called on a pipeline that is not idle.
var ErrAlreadyRun = errors.New("pipeline: already run")

// State is the lifecycle position of a Pipeline.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Action is a sink's verdict after showing a frame.
type Action int

const (
	Continue Action = iota
	Quit
)

// Sink receives every frame. report is nil when the frame was not analyzed.
// Sinks must not retain frame after Show returns.
type Sink interface {
	Show(frame *capture.Frame, report *Report) (Action, error)
	Close() error
}

// StopReason says why Run returned.
type StopReason string

const (
	StopQuit        StopReason = "quit"
	StopEndOfStream StopReason = "end of stream"
	StopReadFailed  StopReason = "read failed"
	StopCancelled   StopReason = "cancelled"
)

// Stats counts what a run did.
type Stats struct {
	Frames   int        `json:"frames"`
	Analyses int        `json:"analyses"`
	Faces    int        `json:"faces"`
	Failures int        `json:"failures"`
	Skipped  int        `json:"skipped"`
	Reason   StopReason `json:"reason,omitempty"`
	Error    string     `json:"error,omitempty"` // capture failure behind StopReadFailed
	Started  time.Time  `json:"started"`
	Stopped  time.Time  `json:"stopped"`
}

// Config holds pipeline configuration.
type Config struct {
	Mode     Mode
	Interval time.Duration

	// JPEGQuality of the crops sent to the classifier (1-100).
	JPEGQuality int

	// Now is the clock used by the gate. Defaults to time.Now.
	Now func() time.Time

	// Session tags reports and logs. A uuid is generated when empty.
	Session string

	Logger *slog.Logger
}

// DefaultConfig returns the continuous preset.
func DefaultConfig() Config {
	return Config{
		Mode:        ModeContinuous,
		Interval:    DefaultInterval,
		JPEGQuality: 90,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	var errs []error
	if c.Mode != ModeContinuous && c.Mode != ModeInterval {
		errs = append(errs, fmt.Errorf("pipeline: unknown mode %q", c.Mode))
	}
	if c.Mode == ModeInterval && c.Interval <= 0 {
		errs = append(errs, fmt.Errorf("pipeline: interval must be positive, got %v", c.Interval))
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		errs = append(errs, fmt.Errorf("pipeline: jpeg quality must be 1-100, got %d", c.JPEGQuality))
	}
	return errors.Join(errs...)
}

// Pipeline wires a source, a detector, a classifier and sinks together.
type Pipeline struct {
	cfg        Config
	source     capture.Source
	detector   detection.Detector
	classifier emotion.Classifier
	sinks      []Sink
	gate       *Gate
	session    string
	logger     *slog.Logger

	state atomic.Int32

	mu    sync.Mutex
	stats Stats
}

// New creates an idle pipeline. Run closes the source and the sinks;
// the detector and classifier stay owned by the caller.
func New(cfg Config, src capture.Source, det detection.Detector, cls emotion.Classifier, sinks ...Sink) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if src == nil || det == nil || cls == nil {
		return nil, fmt.Errorf("pipeline: source, detector and classifier are required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	session := cfg.Session
	if session == "" {
		session = uuid.New().String()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Component("pipeline")
	}

	return &Pipeline{
		cfg:        cfg,
		source:     src,
		detector:   det,
		classifier: cls,
		sinks:      sinks,
		gate:       NewGate(cfg.Mode, cfg.Interval),
		session:    session,
		logger:     logger.With("session", session),
	}, nil
}

// Session returns the run's unique ID.
func (p *Pipeline) Session() string {
	return p.session
}

// State returns the current lifecycle state.
func (p *Pipeline) State() State {
	return State(p.state.Load())
}

// Stats returns a snapshot of the run counters.
func (p *Pipeline) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// Run loops until a sink quits, ctx is cancelled or the source ends or
// fails. A failed read ends the loop like exhaustion does; its cause is kept
// in Stats.Error. The source and all sinks are closed on return.
func (p *Pipeline) Run(ctx context.Context) (Stats, error) {
	if !p.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return p.Stats(), ErrAlreadyRun
	}

	p.mu.Lock()
	p.stats.Started = time.Now()
	p.mu.Unlock()

	p.logger.Info("pipeline started",
		"mode", p.cfg.Mode,
		"interval", p.cfg.Interval,
		"classifier", p.classifier.Name(),
		"sinks", len(p.sinks),
	)

	reason, err := p.loop(ctx)
	p.shutdown()

	p.mu.Lock()
	p.stats.Reason = reason
	if err != nil {
		p.stats.Error = err.Error()
	}
	p.stats.Stopped = time.Now()
	stats := p.stats
	p.mu.Unlock()
	p.state.Store(int32(StateStopped))

	p.logger.Info("pipeline stopped",
		"reason", reason,
		"frames", stats.Frames,
		"analyses", stats.Analyses,
		"faces", stats.Faces,
		"failures", stats.Failures,
	)
	return stats, nil
}

func (p *Pipeline) loop(ctx context.Context) (StopReason, error) {
	for {
		if ctx.Err() != nil {
			return StopCancelled, nil
		}

		frame, err := p.source.Next()
		if err != nil {
			if errors.Is(err, capture.ErrEndOfStream) {
				return StopEndOfStream, nil
			}
			p.logger.Error("capture failed", "error", err)
			return StopReadFailed, fmt.Errorf("pipeline: %w", err)
		}

		action := p.step(ctx, frame)
		frame.Close()

		if action == Quit {
			return StopQuit, nil
		}
	}
}

// step analyzes the frame if the gate allows it and shows it on every sink.
func (p *Pipeline) step(ctx context.Context, frame *capture.Frame) Action {
	p.mu.Lock()
	p.stats.Frames++
	p.mu.Unlock()

	var report *Report
	if p.gate.Allow(p.cfg.Now()) {
		r, err := p.Analyze(ctx, frame)
		if err != nil {
			p.logger.Warn("analysis failed", "seq", frame.Seq, "error", err)
		} else {
			report = r
		}
	}

	action := Continue
	for _, s := range p.sinks {
		a, err := s.Show(frame, report)
		if err != nil {
			p.logger.Warn("sink failed", "sink", fmt.Sprintf("%T", s), "error", err)
		}
		if a == Quit {
			action = Quit
		}
	}
	return action
}

// Analyze detects faces in frame and classifies each crop. A classifier
// failure yields a Placeholder entry; an empty crop is skipped. Only a
// detector failure returns an error.
func (p *Pipeline) Analyze(ctx context.Context, frame *capture.Frame) (*Report, error) {
	start := time.Now()

	dets, err := p.detector.Detect(frame.Mat)
	if err != nil {
		return nil, fmt.Errorf("detect: %w", err)
	}

	report := &Report{
		Session: p.session,
		Seq:     frame.Seq,
		Time:    frame.Time,
		Faces:   len(dets),
		Entries: make([]Entry, 0, len(dets)),
	}

	for i, d := range dets {
		jpeg, err := p.encodeCrop(frame.Mat, d.Box)
		if err == nil && len(jpeg) == 0 {
			err = emotion.ErrEmptyImage
		}
		if err != nil {
			p.skip(i, d.Box, err)
			continue
		}

		a, err := p.classifier.Classify(ctx, jpeg)
		if errors.Is(err, emotion.ErrEmptyImage) {
			p.skip(i, d.Box, err)
			continue
		}

		entry := Entry{Box: d.Box}
		if err != nil {
			p.logger.Warn("emotion analysis failed", "seq", frame.Seq, "face", i, "error", err)
			entry.Label = Placeholder
			entry.Err = err
			entry.Error = err.Error()
		} else if label, score, ok := a.Dominant(); ok {
			entry.Label = label
			entry.Score = score
			entry.Scores = a.Scores
			entry.Provider = a.Provider
		} else {
			entry.Label = Placeholder
			entry.Err = emotion.ErrNoScores
			entry.Error = emotion.ErrNoScores.Error()
		}
		debug.DetectLog("🎭 face %d %v -> %s\n", i, d.Box, entry.Label)
		report.Entries = append(report.Entries, entry)
	}
	report.LatencyMs = time.Since(start).Milliseconds()

	p.mu.Lock()
	p.stats.Analyses++
	p.stats.Faces += report.Faces
	p.stats.Failures += report.Failures()
	p.mu.Unlock()

	return report, nil
}

func (p *Pipeline) skip(i int, box detection.Rect, err error) {
	p.logger.Warn("skipping face", "face", i, "box", box.String(), "error", err)
	p.mu.Lock()
	p.stats.Skipped++
	p.mu.Unlock()
}

// encodeCrop cuts box out of img and encodes it as JPEG.
func (p *Pipeline) encodeCrop(img gocv.Mat, box detection.Rect) ([]byte, error) {
	if box.Empty() || !box.Within(img.Cols(), img.Rows()) {
		return nil, nil
	}

	crop := img.Region(box.Rectangle())
	defer crop.Close()
	if crop.Empty() {
		return nil, nil
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, crop, []int{int(gocv.IMWriteJpegQuality), p.cfg.JPEGQuality})
	if err != nil {
		return nil, fmt.Errorf("encode crop: %w", err)
	}
	defer buf.Close()
	return bytes.Clone(buf.GetBytes()), nil
}

// shutdown closes the source and every sink, logging failures.
func (p *Pipeline) shutdown() {
	if err := p.source.Close(); err != nil {
		p.logger.Warn("close source", "error", err)
	}
	for _, s := range p.sinks {
		if err := s.Close(); err != nil {
			p.logger.Warn("close sink", "sink", fmt.Sprintf("%T", s), "error", err)
		}
	}
}
