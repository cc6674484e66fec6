// Package config provides environment helpers for go-moodcam commands.
package config

import (
	"os"
	"strconv"
)

// Defaults used when the environment does not override them.
const (
	DefaultCameraDevice = 0
	DefaultDeepFaceURL  = "http://localhost:5005"
	DefaultWorkerScript = "python/emotion_worker.py"
	DefaultWebAddr      = ":8090"
)

// CascadeSearchPaths lists where OpenCV installs the frontal face cascade.
var CascadeSearchPaths = []string{
	"/usr/share/opencv4/haarcascades/haarcascade_frontalface_default.xml",
	"/usr/local/share/opencv4/haarcascades/haarcascade_frontalface_default.xml",
	"/opt/homebrew/share/opencv4/haarcascades/haarcascade_frontalface_default.xml",
	"/usr/share/opencv/haarcascades/haarcascade_frontalface_default.xml",
	"data/haarcascade_frontalface_default.xml",
}

// CameraDevice returns the device index from MOODCAM_CAMERA.
// Falls back to DefaultCameraDevice if unset or not a number.
func CameraDevice() int {
	if v := os.Getenv("MOODCAM_CAMERA"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return DefaultCameraDevice
}

// CascadePath returns MOODCAM_CASCADE if set, otherwise the first existing
// entry of CascadeSearchPaths. Returns "" when nothing is found.
func CascadePath() string {
	if p := os.Getenv("MOODCAM_CASCADE"); p != "" {
		return p
	}
	for _, p := range CascadeSearchPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// DeepFaceURL returns the DeepFace API base URL from DEEPFACE_URL.
func DeepFaceURL() string {
	if u := os.Getenv("DEEPFACE_URL"); u != "" {
		return u
	}
	return DefaultDeepFaceURL
}

// GeminiAPIKey returns GEMINI_API_KEY, or GOOGLE_API_KEY as a fallback.
func GeminiAPIKey() string {
	if k := os.Getenv("GEMINI_API_KEY"); k != "" {
		return k
	}
	return os.Getenv("GOOGLE_API_KEY")
}

// OpenAIAPIKey returns OPENAI_API_KEY.
func OpenAIAPIKey() string {
	return os.Getenv("OPENAI_API_KEY")
}

// LogLevel returns LOG_LEVEL, defaulting to "info".
func LogLevel() string {
	if l := os.Getenv("LOG_LEVEL"); l != "" {
		return l
	}
	return "info"
}
