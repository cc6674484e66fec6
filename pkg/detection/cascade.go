package detection

import (
	"fmt"
	"image"
	"os"
	"sync"

	"github.com/teslashibe/go-moodcam/pkg/debug"
	"gocv.io/x/gocv"
)

// Cascade uses an OpenCV Haar cascade for face detection
type Cascade struct {
	classifier gocv.CascadeClassifier
	config     Config
	mu         sync.Mutex // Protects classifier and closed
	closed     bool
}

// NewCascade loads the cascade file named by cfg.CascadePath.
func NewCascade(cfg Config) (*Cascade, error) {
	if cfg.CascadePath == "" {
		return nil, fmt.Errorf("detection: no cascade file configured")
	}
	if _, err := os.Stat(cfg.CascadePath); err != nil {
		return nil, fmt.Errorf("detection: cascade file not found: %s", cfg.CascadePath)
	}

	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(cfg.CascadePath) {
		classifier.Close()
		return nil, fmt.Errorf("detection: error reading cascade file: %s", cfg.CascadePath)
	}

	return &Cascade{classifier: classifier, config: cfg}, nil
}

// Detect runs the cascade over img. Boxes are clamped to the frame.
func (c *Cascade) Detect(img gocv.Mat) ([]Detection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}
	if img.Empty() {
		return nil, fmt.Errorf("detection: empty image")
	}

	input := img
	if c.config.Grayscale || c.config.Equalize {
		gray := gocv.NewMat()
		defer gray.Close()

		if img.Channels() == 1 {
			img.CopyTo(&gray)
		} else {
			gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)
		}
		if c.config.Equalize {
			gocv.EqualizeHist(gray, &gray)
		}
		input = gray
	}

	minSize := image.Pt(c.config.MinSize, c.config.MinSize)
	rects := c.classifier.DetectMultiScaleWithParams(
		input,
		c.config.ScaleFactor,
		c.config.MinNeighbors,
		0,             // flags
		minSize,       // min size
		image.Point{}, // no max size
	)

	dets := make([]Detection, 0, len(rects))
	for _, r := range rects {
		dets = append(dets, Detection{Box: RectFrom(r), Confidence: 1.0})
	}
	dets = clampAll(dets, img.Cols(), img.Rows())

	if len(dets) > 0 {
		debug.DetectLog("👁️  Cascade found %d face(s)\n", len(dets))
	}

	return dets, nil
}

// Close releases the classifier.
func (c *Cascade) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.classifier.Close()
}
