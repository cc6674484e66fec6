package capture

import (
	"fmt"
	"os"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// File reads frames from a recorded video.
type File struct {
	cap    *gocv.VideoCapture
	path   string
	seq    int
	mu     sync.Mutex
	closed bool
}

// OpenFile opens the video at path.
func OpenFile(path string) (*File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("capture: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("capture: %s is a directory, expected a video file", path)
	}

	vc, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("capture: open %s: %w", path, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("capture: %s could not be decoded", path)
	}

	return &File{cap: vc, path: path}, nil
}

// Next reads the next frame, returning ErrEndOfStream at the end of the file.
func (f *File) Next() (*Frame, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil, ErrClosed
	}

	img := gocv.NewMat()
	if ok := f.cap.Read(&img); !ok || img.Empty() {
		img.Close()
		return nil, ErrEndOfStream
	}

	f.seq++
	return &Frame{Mat: img, Seq: f.seq, Time: time.Now()}, nil
}

// FrameCount returns the container's frame count, or 0 if unknown.
func (f *File) FrameCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := int(f.cap.Get(gocv.VideoCaptureFrameCount))
	if n < 0 {
		return 0
	}
	return n
}

// FPS returns the container frame rate, or 0 if unknown.
func (f *File) FPS() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cap.Get(gocv.VideoCaptureFPS)
}

// Close releases the decoder. Safe to call more than once.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	return f.cap.Close()
}
