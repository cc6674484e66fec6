package capture

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gocv.io/x/gocv"
)

// Sentinel errors returned by Source.Next.
var (
	// ErrEndOfStream is returned when the source has no more frames.
	ErrEndOfStream = errors.New("capture: end of stream")

	// ErrReadFailed is returned when the device fails or disconnects.
	ErrReadFailed = errors.New("capture: read failed")

	// ErrClosed is returned when reading from a closed source.
	ErrClosed = errors.New("capture: source closed")
)

// Frame is a single still image owned by one loop iteration.
// The reader must call Close when done with it.
type Frame struct {
	Mat  gocv.Mat
	Seq  int       // 1-based position in the stream
	Time time.Time // When the frame was read
}

// Width returns the frame width in pixels.
func (f *Frame) Width() int { return f.Mat.Cols() }

// Height returns the frame height in pixels.
func (f *Frame) Height() int { return f.Mat.Rows() }

// Channels returns the number of color channels.
func (f *Frame) Channels() int { return f.Mat.Channels() }

// Close releases the underlying Mat.
func (f *Frame) Close() error {
	return f.Mat.Close()
}

// Source produces frames on demand.
type Source interface {
	// Next blocks until the next frame is available.
	// Returns ErrEndOfStream or ErrReadFailed when the stream is over.
	Next() (*Frame, error)

	// Close releases the device.
	Close() error
}

// Open creates the source described by cfg.
func Open(cfg Config) (Source, error) {
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("capture: invalid config: %s", strings.Join(errs, "; "))
	}

	switch cfg.Kind {
	case KindFile:
		return OpenFile(cfg.Path)
	case KindScreen:
		return NewScreen(), nil
	default:
		return OpenWebcam(cfg)
	}
}
