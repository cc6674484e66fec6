package display

import (
	"io"
	"os"

	"github.com/schollz/progressbar/v3"

	"github.com/teslashibe/go-moodcam/pkg/capture"
	"github.com/teslashibe/go-moodcam/pkg/pipeline"
)

// Progress shows a progress bar over the frames of a recorded video.
// A non-positive total renders a spinner instead.
type Progress struct {
	bar *progressbar.ProgressBar
}

// NewProgress writes the bar to w, or stderr when w is nil.
func NewProgress(w io.Writer, total int64) *Progress {
	if w == nil {
		w = os.Stderr
	}
	if total <= 0 {
		total = -1
	}
	bar := progressbar.NewOptions64(total,
		progressbar.OptionSetDescription("🎭 analyzing"),
		progressbar.OptionSetWriter(w),
		progressbar.OptionShowCount(),
		progressbar.OptionSetItsString("frames"),
		progressbar.OptionShowIts(),
		progressbar.OptionOnCompletion(func() { io.WriteString(w, "\n") }),
	)
	return &Progress{bar: bar}
}

// Show advances the bar and puts the latest summary in its description.
func (p *Progress) Show(_ *capture.Frame, report *pipeline.Report) (pipeline.Action, error) {
	if report != nil {
		p.bar.Describe("🎭 " + report.Summary())
	}
	return pipeline.Continue, p.bar.Add(1)
}

// Close finishes the bar.
func (p *Progress) Close() error {
	return p.bar.Finish()
}

var _ pipeline.Sink = (*Progress)(nil)
