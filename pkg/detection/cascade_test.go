package detection

import (
	"errors"
	"testing"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-moodcam/internal/testfixture"
)

func newTestCascade(t *testing.T, cfg Config) *Cascade {
	t.Helper()
	path := testfixture.CascadePath()
	if path == "" {
		t.Skip("frontal face cascade not installed, skipping test")
	}
	cfg.CascadePath = path
	c, err := NewCascade(cfg)
	if err != nil {
		t.Fatalf("NewCascade failed: %v", err)
	}
	return c
}

func TestNewCascade_InvalidPath(t *testing.T) {
	cfg := Continuous()
	cfg.CascadePath = "/nonexistent/haarcascade.xml"
	if _, err := NewCascade(cfg); err == nil {
		t.Error("expected error for missing cascade file")
	}

	cfg.CascadePath = ""
	if _, err := NewCascade(cfg); err == nil {
		t.Error("expected error for empty cascade path")
	}
}

func TestCascade_BlackFrame(t *testing.T) {
	for name, cfg := range map[string]Config{"continuous": Continuous(), "interval": Interval()} {
		t.Run(name, func(t *testing.T) {
			c := newTestCascade(t, cfg)
			defer c.Close()

			black := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 480, 640, gocv.MatTypeCV8UC3)
			defer black.Close()

			dets, err := c.Detect(black)
			if err != nil {
				t.Fatalf("Detect failed: %v", err)
			}
			if len(dets) != 0 {
				t.Errorf("expected no faces in a black frame, got %d", len(dets))
			}
		})
	}
}

func TestCascade_SampleFace(t *testing.T) {
	c := newTestCascade(t, Interval())
	defer c.Close()

	frame, area, err := testfixture.FaceFrame()
	if err != nil {
		t.Skipf("sample face unavailable: %v", err)
	}
	defer frame.Close()

	dets, err := c.Detect(frame)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(dets) != 1 {
		t.Fatalf("expected exactly one face, got %d: %v", len(dets), dets)
	}
	if box := dets[0].Box.Rectangle(); !box.Overlaps(area) {
		t.Errorf("face %v does not overlap the pasted region %v", box, area)
	}
}

func TestCascade_BoxesWithinFrame(t *testing.T) {
	c := newTestCascade(t, Config{Backend: BackendCascade, ScaleFactor: 1.05, MinNeighbors: 0})
	defer c.Close()

	noise := gocv.NewMatWithSize(240, 320, gocv.MatTypeCV8UC3)
	defer noise.Close()
	gocv.RandU(&noise, gocv.NewScalar(0, 0, 0, 0), gocv.NewScalar(255, 255, 255, 0))

	dets, err := c.Detect(noise)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	for _, d := range dets {
		if d.Box.Empty() || !d.Box.Within(noise.Cols(), noise.Rows()) {
			t.Errorf("box %v outside %dx%d frame", d.Box, noise.Cols(), noise.Rows())
		}
	}
}

func TestCascade_EmptyImage(t *testing.T) {
	c := newTestCascade(t, Continuous())
	defer c.Close()

	empty := gocv.NewMat()
	defer empty.Close()

	if _, err := c.Detect(empty); err == nil {
		t.Error("expected error for empty image")
	}
}

func TestCascade_Closed(t *testing.T) {
	c := newTestCascade(t, Continuous())
	if err := c.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}

	img := gocv.NewMatWithSize(10, 10, gocv.MatTypeCV8UC3)
	defer img.Close()
	if _, err := c.Detect(img); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestNewYuNet_InvalidPath(t *testing.T) {
	cfg := Continuous()
	cfg.Backend = BackendYuNet
	cfg.ModelPath = "/nonexistent/path/model.onnx"

	if _, err := NewYuNet(cfg); err == nil {
		t.Error("expected error for invalid model path")
	}
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := Continuous()
	cfg.ScaleFactor = 0.9
	if _, err := New(cfg); err == nil {
		t.Error("expected error for scale factor below 1")
	}
}
