package pipeline

import (
	"strings"
	"time"

	"github.com/teslashibe/go-moodcam/pkg/detection"
	"github.com/teslashibe/go-moodcam/pkg/emotion"
)

const (
	// NoFaceDetected is the summary of a frame without faces.
	NoFaceDetected = "No face detected"

	// Placeholder stands in for the label of a face whose analysis failed.
	Placeholder = "error"
)

// Entry is the result for one detected face.
type Entry struct {
	Box      detection.Rect `json:"box"`
	Label    string         `json:"label"`
	Score    float64        `json:"score"`
	Scores   emotion.Scores `json:"scores,omitempty"`
	Provider string         `json:"provider,omitempty"`
	Error    string         `json:"error,omitempty"`

	// Err is the classifier error behind a placeholder entry.
	Err error `json:"-"`
}

// Failed reports whether the entry carries the placeholder.
func (e Entry) Failed() bool {
	return e.Err != nil
}

// Report is the outcome of analyzing one frame.
type Report struct {
	Session   string    `json:"session"`
	Seq       int       `json:"seq"`
	Time      time.Time `json:"time"`
	Faces     int       `json:"faces"`
	Entries   []Entry   `json:"entries"`
	LatencyMs int64     `json:"latency_ms"`
}

// Summary renders the report the way it is printed to the console:
// NoFaceDetected, or the entry labels joined with ", " in detection order.
func (r *Report) Summary() string {
	if len(r.Entries) == 0 {
		return NoFaceDetected
	}
	labels := make([]string, len(r.Entries))
	for i, e := range r.Entries {
		labels[i] = e.Label
	}
	return strings.Join(labels, ", ")
}

// Failures counts placeholder entries.
func (r *Report) Failures() int {
	n := 0
	for _, e := range r.Entries {
		if e.Failed() {
			n++
		}
	}
	return n
}
