// Package testfixture finds the sample face image and Haar cascade that ship
// with the gocv module, so detector tests can run against a real face.
package testfixture

import (
	"errors"
	"go/build"
	"image"
	"os"
	"path/filepath"
	"runtime/debug"
	"sort"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-moodcam/internal/config"
)

const gocvModule = "gocv.io/x/gocv"

// ErrNotFound is returned when the gocv sources are not in the module cache.
var ErrNotFound = errors.New("testfixture: gocv module sources not found")

// FaceOffset is where FaceFrame pastes the sample face.
var FaceOffset = image.Pt(120, 90)

// GocvDir returns the gocv module directory in the module cache, or "".
func GocvDir() string {
	cache := os.Getenv("GOMODCACHE")
	if cache == "" {
		cache = filepath.Join(build.Default.GOPATH, "pkg", "mod")
	}

	if info, ok := debug.ReadBuildInfo(); ok {
		for _, dep := range info.Deps {
			if dep.Path != gocvModule {
				continue
			}
			if dep.Replace != nil && filepath.IsAbs(dep.Replace.Path) {
				return existing(dep.Replace.Path)
			}
			if dir := existing(filepath.Join(cache, gocvModule+"@"+dep.Version)); dir != "" {
				return dir
			}
		}
	}

	matches, _ := filepath.Glob(filepath.Join(cache, gocvModule+"@v*"))
	if len(matches) == 0 {
		return ""
	}
	sort.Strings(matches)
	return matches[len(matches)-1]
}

func existing(dir string) string {
	if _, err := os.Stat(dir); err != nil {
		return ""
	}
	return dir
}

// CascadePath returns the installed frontal face cascade, falling back to
// the copy in the gocv module. Returns "" when neither exists.
func CascadePath() string {
	if p := config.CascadePath(); p != "" {
		return p
	}
	if dir := GocvDir(); dir != "" {
		return existing(filepath.Join(dir, "data", "haarcascade_frontalface_default.xml"))
	}
	return ""
}

// FaceFrame returns a black BGR frame with gocv's sample face pasted at
// FaceOffset, and the rectangle the face occupies.
func FaceFrame() (gocv.Mat, image.Rectangle, error) {
	dir := GocvDir()
	if dir == "" {
		return gocv.Mat{}, image.Rectangle{}, ErrNotFound
	}
	face := gocv.IMRead(filepath.Join(dir, "images", "face.jpg"), gocv.IMReadColor)
	if face.Empty() {
		face.Close()
		return gocv.Mat{}, image.Rectangle{}, ErrNotFound
	}
	defer face.Close()

	area := image.Rect(0, 0, face.Cols(), face.Rows()).Add(FaceOffset)
	frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0),
		area.Max.Y+FaceOffset.Y, area.Max.X+FaceOffset.X, gocv.MatTypeCV8UC3)

	roi := frame.Region(area)
	face.CopyTo(&roi)
	roi.Close()

	return frame, area, nil
}
