package emotion

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/teslashibe/go-moodcam/internal/httpc"
)

const providerOpenAI = "openai"

// OpenAI asks an OpenAI-compatible vision model for emotion scores.
type OpenAI struct {
	client *openai.Client
	config *Config
	logger *slog.Logger
}

// NewOpenAI creates an OpenAI classifier. A BaseURL other than the default
// targets any OpenAI-compatible server.
func NewOpenAI(opts ...Option) (*OpenAI, error) {
	cfg := DefaultConfig()
	cfg.BaseURL = ""
	cfg.Model = openai.GPT4oMini
	cfg.Apply(opts...)

	if cfg.APIKey == "" {
		return nil, WrapError(providerOpenAI, ErrNoAPIKey)
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	clientCfg.HTTPClient = httpc.NewClient(cfg.Timeout)

	return &OpenAI{
		client: openai.NewClientWithConfig(clientCfg),
		config: cfg,
		logger: cfg.Logger.With("component", "emotion.openai"),
	}, nil
}

// Name returns "openai".
func (o *OpenAI) Name() string {
	return providerOpenAI
}

// Classify sends the crop as an image_url part and requests a JSON object.
func (o *OpenAI) Classify(ctx context.Context, jpeg []byte) (*Analysis, error) {
	if len(jpeg) == 0 {
		return nil, WrapError(providerOpenAI, ErrEmptyImage)
	}
	start := time.Now()

	req := openai.ChatCompletionRequest{
		Model: o.config.Model,
		Messages: []openai.ChatCompletionMessage{{
			Role: openai.ChatMessageRoleUser,
			MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: o.config.Prompt},
				{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{
					URL:    "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(jpeg),
					Detail: openai.ImageURLDetailLow,
				}},
			},
		}},
		MaxTokens:   200,
		Temperature: 0,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return nil, &APIError{StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message, Provider: providerOpenAI}
		}
		return nil, WrapError(providerOpenAI, err)
	}
	if len(resp.Choices) == 0 {
		return nil, WrapError(providerOpenAI, fmt.Errorf("no response content"))
	}

	scores, err := ParseScores(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, WrapError(providerOpenAI, err)
	}

	a := &Analysis{
		Scores:    scores,
		Provider:  providerOpenAI,
		LatencyMs: time.Since(start).Milliseconds(),
	}
	o.logger.Debug("analysis complete",
		"model", resp.Model,
		"tokens", resp.Usage.TotalTokens,
		"latency_ms", a.LatencyMs,
	)
	return a, nil
}

// Close is a no-op.
func (o *OpenAI) Close() error {
	return nil
}
