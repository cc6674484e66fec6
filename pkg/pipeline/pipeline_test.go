package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-moodcam/internal/testfixture"
	"github.com/teslashibe/go-moodcam/pkg/capture"
	"github.com/teslashibe/go-moodcam/pkg/detection"
	"github.com/teslashibe/go-moodcam/pkg/emotion"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// recordingSink keeps every report it is shown.
type recordingSink struct {
	mu      sync.Mutex
	shown   int
	reports []*Report
	quitAt  int
	err     error
	closed  bool
}

func (s *recordingSink) Show(frame *capture.Frame, report *Report) (Action, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shown++
	if report != nil {
		s.reports = append(s.reports, report)
	}
	if s.quitAt > 0 && s.shown >= s.quitAt {
		return Quit, s.err
	}
	return Continue, s.err
}

func (s *recordingSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// fakeClock advances by step on every call.
type fakeClock struct {
	t    time.Time
	step time.Duration
}

func (c *fakeClock) Now() time.Time {
	c.t = c.t.Add(c.step)
	return c.t
}

// failingSource always fails to read.
type failingSource struct{ closed bool }

func (f *failingSource) Next() (*capture.Frame, error) { return nil, capture.ErrReadFailed }
func (f *failingSource) Close() error                  { f.closed = true; return nil }

func blackFrames(n int) *capture.Static {
	mats := make([]gocv.Mat, n)
	for i := range mats {
		mats[i] = gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 480, 640, gocv.MatTypeCV8UC3)
	}
	return capture.NewStatic(mats...)
}

func fixedFaces(boxes ...detection.Rect) detection.Detector {
	return detection.Func(func(img gocv.Mat) ([]detection.Detection, error) {
		dets := make([]detection.Detection, len(boxes))
		for i, b := range boxes {
			dets[i] = detection.Detection{Box: b, Confidence: 1}
		}
		return dets, nil
	})
}

func newTestPipeline(t *testing.T, cfg Config, src capture.Source, det detection.Detector, cls emotion.Classifier, sinks ...Sink) *Pipeline {
	t.Helper()
	cfg.Logger = quietLogger
	p, err := New(cfg, src, det, cls, sinks...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func TestPipeline_HappyFace(t *testing.T) {
	src := blackFrames(1)
	sink := &recordingSink{}
	cls := emotion.WithScores(emotion.Scores{"happy": 0.9, "sad": 0.1})

	p := newTestPipeline(t, DefaultConfig(), src, fixedFaces(detection.Rect{X: 100, Y: 100, W: 80, H: 80}), cls, sink)
	if p.State() != StateIdle {
		t.Fatalf("initial state: got %v", p.State())
	}

	stats, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(sink.reports) != 1 {
		t.Fatalf("expected 1 report, got %d", len(sink.reports))
	}
	r := sink.reports[0]
	if r.Summary() != "happy" {
		t.Errorf("Summary: got %q, want %q", r.Summary(), "happy")
	}
	if r.Entries[0].Score != 0.9 {
		t.Errorf("Score: got %v", r.Entries[0].Score)
	}
	if r.Session != p.Session() || r.Seq != 1 {
		t.Errorf("report identity: session %q seq %d", r.Session, r.Seq)
	}

	if calls := cls.Calls(); len(calls) != 1 || calls[0].Bytes == 0 {
		t.Errorf("classifier should receive one non-empty JPEG, got %+v", calls)
	}

	if stats.Reason != StopEndOfStream || stats.Frames != 1 || stats.Analyses != 1 || stats.Faces != 1 {
		t.Errorf("stats: %+v", stats)
	}
	if p.State() != StateStopped {
		t.Errorf("final state: got %v", p.State())
	}
	if !src.Closed() || !sink.closed {
		t.Error("source and sink should be closed")
	}
}

func TestPipeline_NoFaces(t *testing.T) {
	for _, mode := range []Mode{ModeContinuous, ModeInterval} {
		t.Run(string(mode), func(t *testing.T) {
			sink := &recordingSink{}
			cfg := DefaultConfig()
			cfg.Mode = mode

			p := newTestPipeline(t, cfg, blackFrames(1), fixedFaces(), emotion.NewMock(), sink)
			if _, err := p.Run(context.Background()); err != nil {
				t.Fatalf("Run: %v", err)
			}
			if len(sink.reports) != 1 {
				t.Fatalf("expected 1 report, got %d", len(sink.reports))
			}
			if got := sink.reports[0].Summary(); got != NoFaceDetected {
				t.Errorf("Summary: got %q, want %q", got, NoFaceDetected)
			}
		})
	}
}

func TestPipeline_BlackFrameCascade(t *testing.T) {
	path := testfixture.CascadePath()
	if path == "" {
		t.Skip("frontal face cascade not installed, skipping test")
	}

	presets := map[Mode]detection.Config{
		ModeContinuous: detection.Continuous(),
		ModeInterval:   detection.Interval(),
	}
	for mode, dcfg := range presets {
		t.Run(string(mode), func(t *testing.T) {
			dcfg.CascadePath = path
			det, err := detection.NewCascade(dcfg)
			if err != nil {
				t.Fatalf("NewCascade: %v", err)
			}
			defer det.Close()

			cls := emotion.NewMock()
			sink := &recordingSink{}
			cfg := DefaultConfig()
			cfg.Mode = mode

			p := newTestPipeline(t, cfg, blackFrames(1), det, cls, sink)
			if _, err := p.Run(context.Background()); err != nil {
				t.Fatalf("Run: %v", err)
			}
			if len(sink.reports) != 1 || sink.reports[0].Summary() != NoFaceDetected {
				t.Errorf("expected %q, got %+v", NoFaceDetected, sink.reports)
			}
			if cls.CallCount("Classify") != 0 {
				t.Error("classifier should not be called without faces")
			}
		})
	}
}

func TestPipeline_SampleFaceCascade(t *testing.T) {
	path := testfixture.CascadePath()
	if path == "" {
		t.Skip("frontal face cascade not installed, skipping test")
	}
	img, area, err := testfixture.FaceFrame()
	if err != nil {
		t.Skipf("sample face unavailable: %v", err)
	}

	dcfg := detection.Interval()
	dcfg.CascadePath = path
	det, err := detection.NewCascade(dcfg)
	if err != nil {
		t.Fatalf("NewCascade: %v", err)
	}
	defer det.Close()

	cls := emotion.WithScores(emotion.Scores{"happy": 0.9, "sad": 0.1})
	sink := &recordingSink{}
	cfg := DefaultConfig()
	cfg.Mode = ModeInterval

	p := newTestPipeline(t, cfg, capture.NewStatic(img), det, cls, sink)
	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(sink.reports) != 1 {
		t.Fatalf("expected 1 report, got %d", len(sink.reports))
	}
	r := sink.reports[0]
	if r.Summary() != "happy" {
		t.Errorf("Summary: got %q, want %q", r.Summary(), "happy")
	}
	if len(r.Entries) != 1 || !r.Entries[0].Box.Rectangle().Overlaps(area) {
		t.Errorf("expected one face overlapping %v, got %+v", area, r.Entries)
	}
}

func TestPipeline_PlaceholderKeepsOrder(t *testing.T) {
	calls := 0
	cls := &emotion.Mock{ClassifyFunc: func(ctx context.Context, jpeg []byte) (*emotion.Analysis, error) {
		calls++
		switch calls {
		case 2:
			return nil, errors.New("backend unavailable")
		case 3:
			return &emotion.Analysis{Scores: emotion.Scores{"sad": 80, "neutral": 20}}, nil
		}
		return &emotion.Analysis{Scores: emotion.Scores{"happy": 0.9, "sad": 0.1}}, nil
	}}

	boxes := []detection.Rect{
		{X: 10, Y: 10, W: 50, H: 50},
		{X: 200, Y: 10, W: 50, H: 50},
		{X: 400, Y: 10, W: 50, H: 50},
	}
	sink := &recordingSink{}
	p := newTestPipeline(t, DefaultConfig(), blackFrames(1), fixedFaces(boxes...), cls, sink)

	stats, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	r := sink.reports[0]
	if got, want := r.Summary(), "happy, error, sad"; got != want {
		t.Errorf("Summary: got %q, want %q", got, want)
	}
	if len(r.Entries) != len(boxes) {
		t.Fatalf("entries: got %d, want %d", len(r.Entries), len(boxes))
	}
	for i, e := range r.Entries {
		if e.Box != boxes[i] {
			t.Errorf("entry %d box: got %v, want %v", i, e.Box, boxes[i])
		}
	}
	if !r.Entries[1].Failed() || !strings.Contains(r.Entries[1].Error, "backend unavailable") {
		t.Errorf("entry 1 should carry the classifier error, got %+v", r.Entries[1])
	}
	if stats.Failures != 1 {
		t.Errorf("Failures: got %d, want 1", stats.Failures)
	}
}

func TestPipeline_EmptyCropSkipped(t *testing.T) {
	cls := emotion.NewMock()
	sink := &recordingSink{}
	det := fixedFaces(
		detection.Rect{X: 900, Y: 900, W: 20, H: 20},
		detection.Rect{X: 10, Y: 10, W: 40, H: 40},
	)

	p := newTestPipeline(t, DefaultConfig(), blackFrames(1), det, cls, sink)
	stats, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	r := sink.reports[0]
	if r.Faces != 2 || len(r.Entries) != 1 {
		t.Errorf("faces %d entries %d, want 2 and 1", r.Faces, len(r.Entries))
	}
	if stats.Skipped != 1 {
		t.Errorf("Skipped: got %d, want 1", stats.Skipped)
	}
	if cls.CallCount("Classify") != 1 {
		t.Errorf("classifier calls: got %d, want 1", cls.CallCount("Classify"))
	}
}

func TestPipeline_IntervalGate(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0), step: time.Second}
	cfg := DefaultConfig()
	cfg.Mode = ModeInterval
	cfg.Interval = 5 * time.Second
	cfg.Now = clock.Now

	sink := &recordingSink{}
	cls := emotion.NewMock()
	p := newTestPipeline(t, cfg, blackFrames(12), fixedFaces(detection.Rect{X: 0, Y: 0, W: 64, H: 64}), cls, sink)

	stats, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// Frames at t=1..12s: analyzed at 1, 6 and 11.
	if stats.Frames != 12 || sink.shown != 12 {
		t.Errorf("frames: stats %d shown %d, want 12", stats.Frames, sink.shown)
	}
	if stats.Analyses != 3 || len(sink.reports) != 3 {
		t.Fatalf("analyses: stats %d reports %d, want 3", stats.Analyses, len(sink.reports))
	}
	want := []int{1, 6, 11}
	for i, r := range sink.reports {
		if r.Seq != want[i] {
			t.Errorf("report %d: seq %d, want %d", i, r.Seq, want[i])
		}
	}
	if cls.CallCount("Classify") != 3 {
		t.Errorf("classifier calls: got %d, want 3", cls.CallCount("Classify"))
	}
}

func TestPipeline_Quit(t *testing.T) {
	src := blackFrames(5)
	sink := &recordingSink{quitAt: 2}
	other := &recordingSink{}

	p := newTestPipeline(t, DefaultConfig(), src, fixedFaces(), emotion.NewMock(), sink, other)
	stats, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Reason != StopQuit || stats.Frames != 2 {
		t.Errorf("stats: %+v", stats)
	}
	if other.shown != 2 {
		t.Errorf("every sink should see the quitting frame, got %d", other.shown)
	}
	if !src.Closed() || !sink.closed || !other.closed {
		t.Error("source and sinks should be closed after quit")
	}
}

func TestPipeline_SinkErrorDoesNotStop(t *testing.T) {
	sink := &recordingSink{err: errors.New("window gone")}
	p := newTestPipeline(t, DefaultConfig(), blackFrames(3), fixedFaces(), emotion.NewMock(), sink)
	stats, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Frames != 3 {
		t.Errorf("Frames: got %d, want 3", stats.Frames)
	}
}

func TestPipeline_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := blackFrames(3)
	p := newTestPipeline(t, DefaultConfig(), src, fixedFaces(), emotion.NewMock())
	stats, err := p.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Reason != StopCancelled || stats.Frames != 0 {
		t.Errorf("stats: %+v", stats)
	}
	if !src.Closed() {
		t.Error("source should be closed")
	}
}

func TestPipeline_ReadFailed(t *testing.T) {
	src := &failingSource{}
	p := newTestPipeline(t, DefaultConfig(), src, fixedFaces(), emotion.NewMock())
	stats, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("a failed read should end the loop cleanly, got %v", err)
	}
	if stats.Reason != StopReadFailed || !src.closed {
		t.Errorf("stats %+v closed %v", stats, src.closed)
	}
	if !strings.Contains(stats.Error, capture.ErrReadFailed.Error()) {
		t.Errorf("Stats.Error should keep the cause, got %q", stats.Error)
	}
}

func TestPipeline_RunTwice(t *testing.T) {
	p := newTestPipeline(t, DefaultConfig(), blackFrames(1), fixedFaces(), emotion.NewMock())
	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, err := p.Run(context.Background()); !errors.Is(err, ErrAlreadyRun) {
		t.Errorf("expected ErrAlreadyRun, got %v", err)
	}
}

func TestPipeline_DetectorError(t *testing.T) {
	det := detection.Func(func(img gocv.Mat) ([]detection.Detection, error) {
		return nil, errors.New("model crashed")
	})
	sink := &recordingSink{}
	p := newTestPipeline(t, DefaultConfig(), blackFrames(2), det, emotion.NewMock(), sink)
	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sink.shown != 2 || len(sink.reports) != 0 {
		t.Errorf("frames should still be shown without reports: shown %d reports %d", sink.shown, len(sink.reports))
	}
}

func TestNew_Validation(t *testing.T) {
	src := blackFrames(0)
	defer src.Close()

	if _, err := New(Config{Mode: "sometimes", JPEGQuality: 90}, src, fixedFaces(), emotion.NewMock()); err == nil {
		t.Error("expected error for unknown mode")
	}
	if _, err := New(DefaultConfig(), src, nil, emotion.NewMock()); err == nil {
		t.Error("expected error for missing detector")
	}
}
