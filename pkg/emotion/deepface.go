package emotion

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/teslashibe/go-moodcam/internal/httpc"
)

const providerDeepFace = "deepface"

// DeepFace calls the /analyze endpoint of a DeepFace REST server.
type DeepFace struct {
	config *Config
	http   *http.Client
	logger *slog.Logger
}

type analyzeRequest struct {
	Img              string   `json:"img"`
	Actions          []string `json:"actions"`
	EnforceDetection bool     `json:"enforce_detection"`
	DetectorBackend  string   `json:"detector_backend,omitempty"`
}

// faceResult is one entry of DeepFace.analyze output. The worker process
// emits the same shape.
type faceResult struct {
	Emotion         Scores  `json:"emotion"`
	DominantEmotion string  `json:"dominant_emotion"`
	Region          Region  `json:"region"`
	FaceConfidence  float64 `json:"face_confidence"`
}

type analyzeResponse struct {
	Results []faceResult `json:"results"`
	Error   string       `json:"error"`
}

// NewDeepFace creates a DeepFace REST classifier.
func NewDeepFace(opts ...Option) *DeepFace {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	return &DeepFace{
		config: cfg,
		http:   httpc.NewClient(cfg.Timeout),
		logger: cfg.Logger.With("component", "emotion.deepface"),
	}
}

// Name returns "deepface".
func (d *DeepFace) Name() string {
	return providerDeepFace
}

// Classify posts the crop as a base64 data URI with enforce_detection off.
func (d *DeepFace) Classify(ctx context.Context, jpeg []byte) (*Analysis, error) {
	if len(jpeg) == 0 {
		return nil, WrapError(providerDeepFace, ErrEmptyImage)
	}
	start := time.Now()

	req := analyzeRequest{
		Img:              "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(jpeg),
		Actions:          []string{"emotion"},
		EnforceDetection: false,
		DetectorBackend:  d.config.DetectorBackend,
	}

	url := strings.TrimRight(d.config.BaseURL, "/") + "/analyze"

	var resp analyzeResponse
	if err := httpc.PostJSON(ctx, d.http, url, req, &resp); err != nil {
		var se *httpc.StatusError
		if errors.As(err, &se) {
			return nil, &APIError{
				StatusCode: se.StatusCode,
				Message:    strings.TrimSpace(string(se.Body)),
				Provider:   providerDeepFace,
			}
		}
		return nil, WrapError(providerDeepFace, err)
	}
	if resp.Error != "" {
		return nil, &APIError{StatusCode: http.StatusOK, Message: resp.Error, Provider: providerDeepFace}
	}

	a, err := analysisFrom(resp.Results)
	if err != nil {
		return nil, WrapError(providerDeepFace, err)
	}
	a.Provider = providerDeepFace
	a.LatencyMs = time.Since(start).Milliseconds()

	d.logger.Debug("analysis complete", "faces", len(resp.Results), "latency_ms", a.LatencyMs)
	return a, nil
}

// Close is a no-op.
func (d *DeepFace) Close() error {
	return nil
}

// analysisFrom picks the most prominent face of a DeepFace result list.
func analysisFrom(results []faceResult) (*Analysis, error) {
	if len(results) == 0 {
		return nil, ErrNoFace
	}

	regions := make([]Region, len(results))
	for i, r := range results {
		regions[i] = r.Region
	}
	best := results[mostProminent(regions)]

	if len(best.Emotion) == 0 {
		return nil, ErrNoScores
	}

	scores := make(Scores, len(best.Emotion))
	for l, s := range best.Emotion {
		scores[canonical(l)] = s
	}
	return &Analysis{Scores: scores, Region: best.Region}, nil
}
