package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gocv.io/x/gocv"

	"github.com/teslashibe/go-moodcam/pkg/capture"
	"github.com/teslashibe/go-moodcam/pkg/detection"
	"github.com/teslashibe/go-moodcam/pkg/display"
	"github.com/teslashibe/go-moodcam/pkg/pipeline"
)

var (
	detectOpts  = defaultOptions()
	analyzeOpts = defaultOptions()
	analyzeJSON bool
)

var detectCmd = &cobra.Command{
	Use:   "detect IMAGE",
	Short: "Print the face rectangles found in an image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		detectOpts.applyModePreset(cmd.Flags().Changed)
		return runDetect(cmd, detectOpts, args[0])
	},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze IMAGE",
	Short: "Report the dominant emotion of every face in an image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		analyzeOpts.applyModePreset(cmd.Flags().Changed)
		return runAnalyze(cmd, analyzeOpts, args[0])
	},
}

func init() {
	detectCmd.Flags().StringVarP(&detectOpts.Mode, "mode", "m", detectOpts.Mode, "Detector preset (continuous, interval)")
	addDetectorFlags(detectCmd, &detectOpts)

	analyzeCmd.Flags().StringVarP(&analyzeOpts.Mode, "mode", "m", analyzeOpts.Mode, "Detector preset (continuous, interval)")
	analyzeCmd.Flags().BoolVarP(&analyzeOpts.Verbose, "verbose", "v", false, "Print every face with its score")
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "Print the report as JSON")
	addDetectorFlags(analyzeCmd, &analyzeOpts)
	addClassifierFlags(analyzeCmd, &analyzeOpts)

	rootCmd.AddCommand(detectCmd, analyzeCmd)
}

func readImage(path string) (gocv.Mat, error) {
	img := gocv.IMRead(path, gocv.IMReadColor)
	if img.Empty() {
		img.Close()
		return gocv.Mat{}, fmt.Errorf("cannot read image %s", path)
	}
	return img, nil
}

func runDetect(cmd *cobra.Command, o options, path string) error {
	img, err := readImage(path)
	if err != nil {
		return err
	}
	defer img.Close()

	det, err := detection.New(o.detectorConfig())
	if err != nil {
		return fmt.Errorf("face detector: %w", err)
	}
	defer det.Close()

	dets, err := det.Detect(img)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(dets) == 0 {
		fmt.Fprintln(out, pipeline.NoFaceDetected)
		return nil
	}
	for i, d := range dets {
		fmt.Fprintf(out, "face %d %s %.2f\n", i+1, d.Box, d.Confidence)
	}
	return nil
}

func runAnalyze(cmd *cobra.Command, o options, path string) error {
	img, err := readImage(path)
	if err != nil {
		return err
	}
	src := capture.NewStatic(img)
	defer src.Close()

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

	pcfg, err := o.pipelineConfig()
	if err != nil {
		return err
	}
	p, err := pipeline.New(pcfg, src, det, cls)
	if err != nil {
		return err
	}

	frame, err := src.Next()
	if err != nil {
		return err
	}
	defer frame.Close()

	report, err := p.Analyze(cmd.Context(), frame)
	if err != nil {
		return err
	}

	if analyzeJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	_, err = display.NewConsole(cmd.OutOrStdout(), o.Verbose).Show(frame, report)
	return err
}

