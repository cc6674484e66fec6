package detection

import (
	"errors"
	"fmt"
)

// Config holds detector configuration
type Config struct {
	Backend string `json:"backend"` // cascade or yunet

	// Cascade
	CascadePath  string  `json:"cascade_path"`  // Haar cascade XML
	ScaleFactor  float64 `json:"scale_factor"`  // Pyramid step, must be > 1.0
	MinNeighbors int     `json:"min_neighbors"` // Neighbor votes per face, >= 0
	MinSize      int     `json:"min_size"`      // Smallest face edge in pixels, 0 = any
	Grayscale    bool    `json:"grayscale"`     // Convert to gray before detecting
	Equalize     bool    `json:"equalize"`      // Histogram-equalize the gray image

	// YuNet
	ModelPath        string  `json:"model_path"`        // Path to ONNX model
	ConfidenceThresh float64 `json:"confidence_thresh"` // Minimum confidence (0-1)
	InputWidth       int     `json:"input_width"`       // Initial model input width
	InputHeight      int     `json:"input_height"`      // Initial model input height
}

// DefaultConfig returns the continuous preset.
func DefaultConfig() Config {
	return Continuous()
}

// Continuous is tuned for analyzing every frame: coarse pyramid steps and
// few neighbor votes keep per-frame cost low at the price of more false
// positives.
func Continuous() Config {
	return Config{
		Backend:          BackendCascade,
		ScaleFactor:      1.7,
		MinNeighbors:     2,
		ModelPath:        "models/face_detection_yunet.onnx",
		ConfidenceThresh: 0.5,
		InputWidth:       320,
		InputHeight:      320,
	}
}

// Interval is tuned for occasional analysis: fine pyramid steps, stricter
// voting and an equalized gray image.
func Interval() Config {
	cfg := Continuous()
	cfg.ScaleFactor = 1.1
	cfg.MinNeighbors = 5
	cfg.MinSize = 30
	cfg.Grayscale = true
	cfg.Equalize = true
	return cfg
}

// Validate checks that tuning parameters are usable.
func (c *Config) Validate() error {
	var errs []error

	switch c.Backend {
	case BackendCascade, "":
		if c.ScaleFactor <= 1.0 {
			errs = append(errs, fmt.Errorf("detection: scale factor must be > 1.0, got %g", c.ScaleFactor))
		}
		if c.MinNeighbors < 0 {
			errs = append(errs, fmt.Errorf("detection: min neighbors must be >= 0, got %d", c.MinNeighbors))
		}
		if c.MinSize < 0 {
			errs = append(errs, fmt.Errorf("detection: min size must be >= 0, got %d", c.MinSize))
		}
	case BackendYuNet:
		if c.ModelPath == "" {
			errs = append(errs, errors.New("detection: yunet model path required"))
		}
		if c.ConfidenceThresh <= 0 || c.ConfidenceThresh > 1 {
			errs = append(errs, fmt.Errorf("detection: confidence threshold must be in (0,1], got %g", c.ConfidenceThresh))
		}
	default:
		errs = append(errs, fmt.Errorf("detection: unknown backend %q", c.Backend))
	}

	return errors.Join(errs...)
}
