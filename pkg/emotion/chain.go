package emotion

import (
	"context"
	"errors"
	"log/slog"
	"strings"
)

// Chain tries multiple classifiers in order until one succeeds.
type Chain struct {
	classifiers []Classifier
	logger      *slog.Logger
}

// NewChain creates a classifier chain.
// At least one classifier is required.
func NewChain(classifiers ...Classifier) (*Chain, error) {
	if len(classifiers) == 0 {
		return nil, ErrClassifierUnavailable
	}
	return &Chain{
		classifiers: classifiers,
		logger:      slog.Default().With("component", "emotion.chain"),
	}, nil
}

// NewChainWithLogger creates a classifier chain with a custom logger.
func NewChainWithLogger(logger *slog.Logger, classifiers ...Classifier) (*Chain, error) {
	chain, err := NewChain(classifiers...)
	if err != nil {
		return nil, err
	}
	chain.logger = logger.With("component", "emotion.chain")
	return chain, nil
}

// Name joins the member names with "+".
func (c *Chain) Name() string {
	names := make([]string, len(c.classifiers))
	for i, cl := range c.classifiers {
		names[i] = cl.Name()
	}
	return strings.Join(names, "+")
}

// Classify tries each classifier until one succeeds. An empty image is
// rejected without consulting any member.
func (c *Chain) Classify(ctx context.Context, jpeg []byte) (*Analysis, error) {
	if len(jpeg) == 0 {
		return nil, ErrEmptyImage
	}

	var errs []error
	for i, cl := range c.classifiers {
		a, err := cl.Classify(ctx, jpeg)
		if err == nil {
			if i > 0 {
				c.logger.Info("fallback classifier succeeded",
					"classifier", cl.Name(),
					"classifier_index", i,
				)
			}
			return a, nil
		}

		errs = append(errs, err)
		c.logger.Warn("classifier failed, trying next",
			"classifier", cl.Name(),
			"classifier_index", i,
			"error", err,
		)

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, &ChainError{Errors: errs}
}

// Close closes every member and joins their errors.
func (c *Chain) Close() error {
	var errs []error
	for _, cl := range c.classifiers {
		if err := cl.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ Classifier = (*Chain)(nil)
