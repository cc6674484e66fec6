package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-moodcam/internal/config"
	"github.com/teslashibe/go-moodcam/internal/log"
	"github.com/teslashibe/go-moodcam/pkg/debug"
)

// Version is the application version.
const Version = "0.1.0"

var (
	logLevel  string
	debugMode bool
	runOpts   = defaultOptions()
)

var rootCmd = &cobra.Command{
	Use:     "moodcam",
	Short:   "Live facial emotion recognition",
	Version: Version,
	Args:    cobra.NoArgs,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		log.Init(logLevel)
		if debugMode {
			debug.Enabled = true
			debug.Detect = true
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		runOpts.applyModePreset(cmd.Flags().Changed)
		return runLive(cmd.Context(), runOpts)
	},
	SilenceUsage: true,
}

// Execute runs the root command with a context cancelled on SIGINT/SIGTERM.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", config.LogLevel(), "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Print per-frame detection traces")

	addRunFlags(rootCmd, &runOpts)
}
