package display

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-moodcam/pkg/capture"
	"github.com/teslashibe/go-moodcam/pkg/pipeline"
)

// DefaultTitle is the name of the main video window.
const DefaultTitle = "Video"

// QuitKey ends the loop when pressed in the window.
const QuitKey = 'q'

var (
	boxColor   = color.RGBA{G: 255, A: 0}
	errorColor = color.RGBA{R: 255, A: 0}
)

// screen is the part of gocv.Window the sinks use.
type screen interface {
	IMShow(img gocv.Mat)
	WaitKey(delay int) int
	Close() error
}

// Window shows each frame with face boxes and labels, and polls the
// keyboard once per frame.
type Window struct {
	screen screen

	// Hold keeps drawing the last report's boxes on frames that were not
	// analyzed, as in interval mode.
	Hold bool

	last *pipeline.Report
}

// NewWindow opens a gocv window with the given title.
func NewWindow(title string) *Window {
	if title == "" {
		title = DefaultTitle
	}
	return &Window{screen: gocv.NewWindow(title)}
}

// Show annotates a copy of the frame, displays it and returns Quit when
// QuitKey was pressed.
func (w *Window) Show(frame *capture.Frame, report *pipeline.Report) (pipeline.Action, error) {
	if report != nil {
		w.last = report
	}
	overlay := report
	if overlay == nil && w.Hold {
		overlay = w.last
	}

	img := frame.Mat.Clone()
	defer img.Close()
	Annotate(&img, overlay)

	w.screen.IMShow(img)
	if w.screen.WaitKey(1) == QuitKey {
		return pipeline.Quit, nil
	}
	return pipeline.Continue, nil
}

// Close destroys the window.
func (w *Window) Close() error {
	return w.screen.Close()
}

// Annotate draws a rectangle and label for every entry of report onto img.
// A nil report draws nothing.
func Annotate(img *gocv.Mat, report *pipeline.Report) {
	if report == nil {
		return
	}
	for _, e := range report.Entries {
		c := boxColor
		if e.Failed() {
			c = errorColor
		}
		r := e.Box.Rectangle()
		gocv.Rectangle(img, r, c, 2)

		org := image.Pt(r.Min.X, r.Min.Y-8)
		if org.Y < 12 {
			org.Y = r.Max.Y + 18
		}
		gocv.PutText(img, e.Label, org, gocv.FontHersheySimplex, 0.6, c, 2)
	}
}

var _ pipeline.Sink = (*Window)(nil)
