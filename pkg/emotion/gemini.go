package emotion

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/teslashibe/go-moodcam/internal/httpc"
	"github.com/tidwall/gjson"
)

const providerGemini = "gemini"

// Gemini asks a Gemini vision model for emotion scores.
type Gemini struct {
	apiKey string
	config *Config
	http   *http.Client
	logger *slog.Logger
}

// NewGemini creates a Gemini classifier.
func NewGemini(opts ...Option) (*Gemini, error) {
	cfg := DefaultConfig()
	cfg.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	cfg.Model = "gemini-2.0-flash"
	cfg.Apply(opts...)

	if cfg.APIKey == "" {
		return nil, WrapError(providerGemini, ErrNoAPIKey)
	}

	return &Gemini{
		apiKey: cfg.APIKey,
		config: cfg,
		http:   httpc.NewClient(cfg.Timeout),
		logger: cfg.Logger.With("component", "emotion.gemini"),
	}, nil
}

// Name returns "gemini".
func (g *Gemini) Name() string {
	return providerGemini
}

// Classify sends the crop inline with a JSON-only prompt.
func (g *Gemini) Classify(ctx context.Context, jpeg []byte) (*Analysis, error) {
	if len(jpeg) == 0 {
		return nil, WrapError(providerGemini, ErrEmptyImage)
	}
	start := time.Now()

	payload := map[string]interface{}{
		"contents": []map[string]interface{}{
			{"parts": []map[string]interface{}{
				{"text": g.config.Prompt},
				{"inline_data": map[string]string{
					"mime_type": "image/jpeg",
					"data":      base64.StdEncoding.EncodeToString(jpeg),
				}},
			}},
		},
		"generationConfig": map[string]interface{}{
			"temperature":      0,
			"maxOutputTokens":  200,
			"responseMimeType": "application/json",
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, WrapError(providerGemini, err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent",
		strings.TrimRight(g.config.BaseURL, "/"), g.config.Model)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return nil, WrapError(providerGemini, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.http.Do(req)
	if err != nil {
		return nil, WrapError(providerGemini, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, WrapError(providerGemini, err)
	}

	if msg := gjson.GetBytes(respBody, "error.message"); msg.Exists() || resp.StatusCode != http.StatusOK {
		message := msg.String()
		if message == "" {
			message = strings.TrimSpace(string(respBody))
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Message: message, Provider: providerGemini}
	}

	text := gjson.GetBytes(respBody, "candidates.0.content.parts.0.text")
	if !text.Exists() {
		return nil, WrapError(providerGemini, fmt.Errorf("no response content"))
	}

	scores, err := ParseScores(text.String())
	if err != nil {
		return nil, WrapError(providerGemini, err)
	}

	a := &Analysis{
		Scores:    scores,
		Provider:  providerGemini,
		LatencyMs: time.Since(start).Milliseconds(),
	}
	g.logger.Debug("analysis complete", "model", g.config.Model, "latency_ms", a.LatencyMs)
	return a, nil
}

// Close releases idle connections.
func (g *Gemini) Close() error {
	g.http.CloseIdleConnections()
	return nil
}
