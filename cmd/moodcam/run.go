package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-moodcam/internal/log"
	"github.com/teslashibe/go-moodcam/pkg/capture"
	"github.com/teslashibe/go-moodcam/pkg/detection"
	"github.com/teslashibe/go-moodcam/pkg/pipeline"
	"github.com/teslashibe/go-moodcam/pkg/web"
)

// runLive opens the source, the detector and the classifier, then loops
// until q, Ctrl+C or the end of the input.
func runLive(ctx context.Context, o options) error {
	if err := o.validate(); err != nil {
		return err
	}
	pcfg, err := o.pipelineConfig()
	if err != nil {
		return err
	}
	pcfg.Session = uuid.New().String()
	logger := log.Component("moodcam").With("session", pcfg.Session)

	det, err := detection.New(o.detectorConfig())
	if err != nil {
		return fmt.Errorf("face detector: %w", err)
	}
	defer det.Close()

	cls, err := o.newClassifier()
	if err != nil {
		return err
	}
	defer cls.Close()

	srcCfg := o.sourceConfig()
	src, err := capture.Open(srcCfg)
	if err != nil {
		return err
	}

	sinks := o.newSinks(os.Stdout, src)
	if o.Web != "" {
		srv := web.NewServer(o.Web, web.Info{
			Session:    pcfg.Session,
			Mode:       o.Mode,
			Source:     describeSource(srcCfg),
			Classifier: cls.Name(),
		})
		srv.StartAsync()
		sinks = append(sinks, srv)
	}

	p, err := pipeline.New(pcfg, src, det, cls, sinks...)
	if err != nil {
		src.Close()
		for _, s := range sinks {
			s.Close()
		}
		return err
	}

	logger.Info("starting",
		"mode", o.Mode,
		"source", describeSource(srcCfg),
		"detector", o.Detector,
		"classifier", cls.Name(),
	)
	stats, err := p.Run(ctx)
	logger.Info("stopped",
		"reason", stats.Reason,
		"frames", stats.Frames,
		"analyses", stats.Analyses,
		"faces", stats.Faces,
		"failures", stats.Failures,
		"error", stats.Error,
		"elapsed", stats.Stopped.Sub(stats.Started).Round(time.Millisecond),
	)
	return err
}

func describeSource(cfg capture.Config) string {
	switch cfg.Kind {
	case capture.KindFile:
		return "file:" + cfg.Path
	case capture.KindScreen:
		return "screen"
	default:
		return fmt.Sprintf("webcam:%d", cfg.Device)
	}
}
