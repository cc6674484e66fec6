// Package capture provides frame sources for the emotion pipeline: a webcam,
// a recorded video file, the primary screen, and a static list for tests.
package capture

// Source kinds accepted by Config.Kind.
const (
	KindWebcam = "webcam"
	KindFile   = "file"
	KindScreen = "screen"
)

// Config holds frame source parameters.
type Config struct {
	Kind   string `json:"kind"`   // webcam, file or screen
	Device int    `json:"device"` // Camera index for webcam
	Path   string `json:"path"`   // Video path for file

	// Requested capture format. Zero leaves the device default.
	Width     int `json:"width"`
	Height    int `json:"height"`
	Framerate int `json:"framerate"`
}

// Limits for requested capture formats.
const (
	MaxWidth     = 4096
	MaxHeight    = 2160
	MaxFramerate = 120
)

// DefaultConfig opens the default camera with its native format.
func DefaultConfig() Config {
	return Config{
		Kind:   KindWebcam,
		Device: 0,
	}
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	switch c.Kind {
	case KindWebcam:
		if c.Device < 0 {
			errors = append(errors, "device must be >= 0")
		}
	case KindFile:
		if c.Path == "" {
			errors = append(errors, "path is required for file sources")
		}
	case KindScreen:
	default:
		errors = append(errors, "kind must be webcam, file, or screen")
	}

	if c.Width != 0 && (c.Width < 160 || c.Width > MaxWidth) {
		errors = append(errors, "width must be 0 (native) or between 160 and 4096")
	}
	if c.Height != 0 && (c.Height < 120 || c.Height > MaxHeight) {
		errors = append(errors, "height must be 0 (native) or between 120 and 2160")
	}
	if c.Framerate != 0 && (c.Framerate < 1 || c.Framerate > MaxFramerate) {
		errors = append(errors, "framerate must be 0 (native) or between 1 and 120")
	}

	return errors
}
