package capture

import (
	"errors"
	"testing"
	"time"

	"gocv.io/x/gocv"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "default", cfg: DefaultConfig()},
		{name: "file with path", cfg: Config{Kind: KindFile, Path: "clip.mp4"}},
		{name: "screen", cfg: Config{Kind: KindScreen}},
		{name: "file without path", cfg: Config{Kind: KindFile}, wantErr: true},
		{name: "negative device", cfg: Config{Kind: KindWebcam, Device: -1}, wantErr: true},
		{name: "unknown kind", cfg: Config{Kind: "rtsp"}, wantErr: true},
		{name: "tiny width", cfg: Config{Kind: KindWebcam, Width: 10}, wantErr: true},
		{name: "framerate too high", cfg: Config{Kind: KindWebcam, Framerate: 500}, wantErr: true},
		{name: "explicit format", cfg: Config{Kind: KindWebcam, Width: 640, Height: 480, Framerate: 30}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			errs := tc.cfg.Validate()
			if tc.wantErr && len(errs) == 0 {
				t.Error("expected validation errors, got none")
			}
			if !tc.wantErr && len(errs) > 0 {
				t.Errorf("unexpected validation errors: %v", errs)
			}
		})
	}
}

func TestOpen_InvalidConfig(t *testing.T) {
	_, err := Open(Config{Kind: KindFile})
	if err == nil {
		t.Fatal("expected error for file source without path")
	}
}

func TestOpenFile_Missing(t *testing.T) {
	_, err := OpenFile("/nonexistent/clip.mp4")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestStatic_YieldsThenEnds(t *testing.T) {
	a := gocv.NewMatWithSize(48, 64, gocv.MatTypeCV8UC3)
	b := gocv.NewMatWithSize(24, 32, gocv.MatTypeCV8UC3)
	stamp := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	src := NewStatic(a, b)
	src.Now = func() time.Time { return stamp }

	f1, err := src.Next()
	if err != nil {
		t.Fatalf("first frame: %v", err)
	}
	if f1.Seq != 1 || f1.Width() != 64 || f1.Height() != 48 || f1.Channels() != 3 {
		t.Errorf("first frame: seq=%d size=%dx%dx%d", f1.Seq, f1.Width(), f1.Height(), f1.Channels())
	}
	if !f1.Time.Equal(stamp) {
		t.Errorf("first frame time: got %v", f1.Time)
	}
	f1.Close()

	f2, err := src.Next()
	if err != nil {
		t.Fatalf("second frame: %v", err)
	}
	if f2.Seq != 2 || f2.Width() != 32 {
		t.Errorf("second frame: seq=%d width=%d", f2.Seq, f2.Width())
	}
	f2.Close()

	if _, err := src.Next(); !errors.Is(err, ErrEndOfStream) {
		t.Errorf("expected ErrEndOfStream, got %v", err)
	}

	src.Close()
	if !src.Closed() {
		t.Error("Closed() should report true after Close")
	}
	if _, err := src.Next(); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed after Close, got %v", err)
	}
}
