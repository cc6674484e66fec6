package emotion

import (
	"log/slog"
	"time"
)

// DefaultPrompt asks a vision model for a DeepFace-style score object.
const DefaultPrompt = `You are a facial expression classifier. The image is a cropped face.
Reply with only a JSON object mapping each of these emotions to a probability
between 0 and 1, summing to 1: angry, disgust, fear, happy, sad, surprise, neutral.`

// Config holds classifier configuration.
type Config struct {
	// Connection
	BaseURL string // API base URL
	APIKey  string // API key (LLM backends)
	Model   string // Model name (LLM backends)

	// DeepFace
	DetectorBackend string // detector_backend; "skip" because crops are faces already

	// Worker
	Command []string // Worker argv, e.g. python3 -u python/emotion_worker.py

	// Prompt for LLM backends.
	Prompt string

	// Timeout bounds one classification request.
	Timeout time.Duration

	// Observability
	Logger *slog.Logger
}

// Option is a functional option for configuring classifiers.
type Option func(*Config)

// WithBaseURL sets the API base URL.
// Examples: "http://localhost:5005", "https://generativelanguage.googleapis.com/v1beta"
func WithBaseURL(url string) Option {
	return func(c *Config) { c.BaseURL = url }
}

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option {
	return func(c *Config) { c.APIKey = key }
}

// WithModel sets the model name.
func WithModel(model string) Option {
	return func(c *Config) { c.Model = model }
}

// WithDetectorBackend sets DeepFace's detector_backend.
func WithDetectorBackend(name string) Option {
	return func(c *Config) { c.DetectorBackend = name }
}

// WithCommand sets the worker command line.
func WithCommand(argv ...string) Option {
	return func(c *Config) { c.Command = argv }
}

// WithPrompt overrides the LLM prompt.
func WithPrompt(p string) Option {
	return func(c *Config) { c.Prompt = p }
}

// WithTimeout sets the request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) { c.Timeout = d }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// DefaultConfig returns defaults for a local DeepFace server.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:         "http://localhost:5005",
		DetectorBackend: "skip",
		Command:         []string{"python3", "-u", "python/emotion_worker.py"},
		Prompt:          DefaultPrompt,
		Timeout:         30 * time.Second,
		Logger:          slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}
