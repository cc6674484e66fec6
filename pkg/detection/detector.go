// Package detection locates faces in frames using OpenCV classifiers.
package detection

import (
	"errors"
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// Backends accepted by Config.Backend.
const (
	BackendCascade = "cascade"
	BackendYuNet   = "yunet"
)

// ErrClosed is returned when detecting with a closed detector.
var ErrClosed = errors.New("detection: detector closed")

// Rect is a face bounding box in frame pixels.
type Rect struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// RectFrom converts an image.Rectangle.
func RectFrom(r image.Rectangle) Rect {
	return Rect{X: r.Min.X, Y: r.Min.Y, W: r.Dx(), H: r.Dy()}
}

// Rectangle returns r as an image.Rectangle for gocv calls.
func (r Rect) Rectangle() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.W, r.Y+r.H)
}

// Empty reports whether r has no area.
func (r Rect) Empty() bool {
	return r.W <= 0 || r.H <= 0
}

// Within reports whether r lies inside a width x height frame.
func (r Rect) Within(width, height int) bool {
	return r.X >= 0 && r.Y >= 0 && r.X+r.W <= width && r.Y+r.H <= height
}

func (r Rect) String() string {
	return fmt.Sprintf("(%d,%d %dx%d)", r.X, r.Y, r.W, r.H)
}

// ClampRect intersects r with a width x height frame.
// The result is empty if r lies entirely outside.
func ClampRect(r Rect, width, height int) Rect {
	c := r.Rectangle().Intersect(image.Rect(0, 0, width, height))
	if c.Empty() {
		return Rect{}
	}
	return RectFrom(c)
}

// Detection represents a detected face
type Detection struct {
	Box        Rect    `json:"box"`
	Confidence float64 `json:"confidence"` // 1.0 for classifiers without a score
}

// Center returns the center point of the detection in pixels
func (d Detection) Center() (x, y float64) {
	return float64(d.Box.X) + float64(d.Box.W)/2, float64(d.Box.Y) + float64(d.Box.H)/2
}

// Area returns the area of the bounding box in square pixels
func (d Detection) Area() float64 {
	return float64(d.Box.W) * float64(d.Box.H)
}

// Detector is the interface for face detection backends
type Detector interface {
	// Detect finds faces in img. An empty result is not an error.
	Detect(img gocv.Mat) ([]Detection, error)

	// Close releases resources
	Close() error
}

// Func adapts a plain function to the Detector interface.
type Func func(img gocv.Mat) ([]Detection, error)

// Detect calls f.
func (f Func) Detect(img gocv.Mat) ([]Detection, error) { return f(img) }

// Close is a no-op.
func (f Func) Close() error { return nil }

// New builds the detector selected by cfg.Backend.
func New(cfg Config) (Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Backend {
	case BackendYuNet:
		return NewYuNet(cfg)
	default:
		return NewCascade(cfg)
	}
}

// clampAll clamps detections to the frame and drops empty boxes.
func clampAll(dets []Detection, width, height int) []Detection {
	out := dets[:0]
	for _, d := range dets {
		d.Box = ClampRect(d.Box, width, height)
		if d.Box.Empty() {
			continue
		}
		out = append(out, d)
	}
	return out
}

// SelectBest picks the primary face from multiple detections
// Priority: confidence * 0.7 + relative area * 0.3
func SelectBest(dets []Detection) *Detection {
	if len(dets) == 0 {
		return nil
	}

	if len(dets) == 1 {
		return &dets[0]
	}

	// Find max area for normalization
	maxArea := 0.0
	for _, d := range dets {
		if d.Area() > maxArea {
			maxArea = d.Area()
		}
	}
	if maxArea == 0 {
		return &dets[0]
	}

	// Score each detection
	bestScore := -1.0
	var best *Detection

	for i := range dets {
		score := dets[i].Confidence*0.7 + (dets[i].Area()/maxArea)*0.3
		if score > bestScore {
			bestScore = score
			best = &dets[i]
		}
	}

	return best
}
