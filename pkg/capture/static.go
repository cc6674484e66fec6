package capture

import (
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// Static yields a fixed list of images, then ErrEndOfStream.
// Each Next returns a clone, so the caller may close it freely.
type Static struct {
	images []gocv.Mat
	next   int
	mu     sync.Mutex
	closed bool

	// Now stamps frames. Defaults to time.Now.
	Now func() time.Time
}

// NewStatic takes ownership of images; Close releases them.
func NewStatic(images ...gocv.Mat) *Static {
	return &Static{images: images, Now: time.Now}
}

// Next returns a copy of the next image.
func (s *Static) Next() (*Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	if s.next >= len(s.images) {
		return nil, ErrEndOfStream
	}

	img := s.images[s.next].Clone()
	s.next++
	return &Frame{Mat: img, Seq: s.next, Time: s.Now()}, nil
}

// Closed reports whether Close was called.
func (s *Static) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close releases the images.
func (s *Static) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	for i := range s.images {
		s.images[i].Close()
	}
	return nil
}
