package capture

import (
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/vova616/screenshot"
	"gocv.io/x/gocv"
)

// Screen grabs the primary display, e.g. to read faces from a video call.
type Screen struct {
	region image.Rectangle // Empty means the whole screen
	seq    int
	mu     sync.Mutex
	closed bool
}

// NewScreen captures the whole primary display.
func NewScreen() *Screen {
	return &Screen{}
}

// NewScreenRegion captures only r, in screen coordinates.
func NewScreenRegion(r image.Rectangle) *Screen {
	return &Screen{region: r}
}

// Next grabs the screen and converts it to a BGR frame.
func (s *Screen) Next() (*Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}

	var (
		img *image.RGBA
		err error
	)
	if s.region.Empty() {
		img, err = screenshot.CaptureScreen()
	} else {
		img, err = screenshot.CaptureRect(s.region)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReadFailed, err)
	}

	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("%w: convert screen: %v", ErrReadFailed, err)
	}

	s.seq++
	return &Frame{Mat: mat, Seq: s.seq, Time: time.Now()}, nil
}

// Close stops further captures.
func (s *Screen) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
