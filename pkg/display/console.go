// Package display provides the report sinks that show pipeline output:
// console lines, an annotated OpenCV window, a face-trail canvas and a
// progress bar for recorded input.
package display

import (
	"fmt"
	"io"
	"os"

	"github.com/teslashibe/go-moodcam/pkg/capture"
	"github.com/teslashibe/go-moodcam/pkg/pipeline"
)

// Console prints one summary line per analyzed frame.
type Console struct {
	w       io.Writer
	verbose bool
}

// NewConsole writes to w, or stdout when w is nil. Verbose adds a line per
// face with its box, score and backend.
func NewConsole(w io.Writer, verbose bool) *Console {
	if w == nil {
		w = os.Stdout
	}
	return &Console{w: w, verbose: verbose}
}

// Show prints the report summary. Frames without a report print nothing.
func (c *Console) Show(_ *capture.Frame, report *pipeline.Report) (pipeline.Action, error) {
	if report == nil {
		return pipeline.Continue, nil
	}

	if _, err := fmt.Fprintln(c.w, report.Summary()); err != nil {
		return pipeline.Continue, err
	}
	if !c.verbose {
		return pipeline.Continue, nil
	}

	for i, e := range report.Entries {
		var err error
		if e.Failed() {
			_, err = fmt.Fprintf(c.w, "  face %d %s %s: %s\n", i+1, e.Box, e.Label, e.Error)
		} else {
			_, err = fmt.Fprintf(c.w, "  face %d %s %s %.2f (%s)\n", i+1, e.Box, e.Label, e.Score, e.Provider)
		}
		if err != nil {
			return pipeline.Continue, err
		}
	}
	return pipeline.Continue, nil
}

// Close is a no-op.
func (c *Console) Close() error {
	return nil
}

var _ pipeline.Sink = (*Console)(nil)
