package capture

import (
	"fmt"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// Webcam reads frames from a camera device.
type Webcam struct {
	cap    *gocv.VideoCapture
	device int
	seq    int
	mu     sync.Mutex
	closed bool
}

// OpenWebcam opens the camera at cfg.Device and applies any requested format.
func OpenWebcam(cfg Config) (*Webcam, error) {
	vc, err := gocv.OpenVideoCapture(cfg.Device)
	if err != nil {
		return nil, fmt.Errorf("capture: open device %d: %w", cfg.Device, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("capture: device %d not opened", cfg.Device)
	}

	if cfg.Width > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	}
	if cfg.Height > 0 {
		vc.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	}
	if cfg.Framerate > 0 {
		vc.Set(gocv.VideoCaptureFPS, float64(cfg.Framerate))
	}

	return &Webcam{cap: vc, device: cfg.Device}, nil
}

// Next reads the next frame. There is no reconnection: a failed read ends
// the stream.
func (w *Webcam) Next() (*Frame, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil, ErrClosed
	}

	img := gocv.NewMat()
	if ok := w.cap.Read(&img); !ok {
		img.Close()
		return nil, ErrReadFailed
	}
	if img.Empty() {
		img.Close()
		return nil, ErrEndOfStream
	}

	w.seq++
	return &Frame{Mat: img, Seq: w.seq, Time: time.Now()}, nil
}

// Size returns the negotiated frame size.
func (w *Webcam) Size() (width, height int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return int(w.cap.Get(gocv.VideoCaptureFrameWidth)), int(w.cap.Get(gocv.VideoCaptureFrameHeight))
}

// Close releases the camera. Safe to call more than once.
func (w *Webcam) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	return w.cap.Close()
}
