package display

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-moodcam/pkg/capture"
	"github.com/teslashibe/go-moodcam/pkg/detection"
	"github.com/teslashibe/go-moodcam/pkg/pipeline"
)

// TrailTitle is the name of the trail window.
const TrailTitle = "Trail"

var trailColor = color.RGBA{A: 0}

// Trail traces the path of the primary face on a white canvas the size of
// the video, one segment per analyzed frame. It does not poll the keyboard;
// pair it with a Window.
type Trail struct {
	screen screen
	canvas gocv.Mat
	ready  bool
	last   *image.Point
	points int
}

// NewTrail opens the trail window.
func NewTrail() *Trail {
	return &Trail{screen: gocv.NewWindow(TrailTitle)}
}

// Show extends the trail to the primary face center of report.
func (t *Trail) Show(frame *capture.Frame, report *pipeline.Report) (pipeline.Action, error) {
	if !t.ready || t.canvas.Rows() != frame.Height() || t.canvas.Cols() != frame.Width() {
		t.reset(frame.Height(), frame.Width())
	}

	if report != nil {
		if p, ok := primaryCenter(report); ok {
			t.add(p)
		}
	}

	t.screen.IMShow(t.canvas)
	return pipeline.Continue, nil
}

// Points returns how many face centers were recorded.
func (t *Trail) Points() int {
	return t.points
}

// Close destroys the window and the canvas.
func (t *Trail) Close() error {
	if t.ready {
		t.canvas.Close()
		t.ready = false
	}
	return t.screen.Close()
}

func (t *Trail) reset(rows, cols int) {
	if t.ready {
		t.canvas.Close()
	}
	t.canvas = gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 255, 255, 0), rows, cols, gocv.MatTypeCV8UC3)
	t.ready = true
	t.last = nil
}

func (t *Trail) add(p image.Point) {
	if t.last != nil {
		gocv.Line(&t.canvas, *t.last, p, trailColor, 2)
	} else {
		gocv.Circle(&t.canvas, p, 2, trailColor, -1)
	}
	t.last = &p
	t.points++
}

// primaryCenter returns the center of the best face in report.
func primaryCenter(report *pipeline.Report) (image.Point, bool) {
	dets := make([]detection.Detection, len(report.Entries))
	for i, e := range report.Entries {
		dets[i] = detection.Detection{Box: e.Box, Confidence: 1}
	}
	best := detection.SelectBest(dets)
	if best == nil {
		return image.Point{}, false
	}
	x, y := best.Center()
	return image.Pt(int(x), int(y)), true
}

var _ pipeline.Sink = (*Trail)(nil)
