package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
	"gocv.io/x/gocv"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "moodcam %s\n", Version)
		fmt.Fprintf(out, "go      %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
		fmt.Fprintf(out, "gocv    %s\n", gocv.Version())
		fmt.Fprintf(out, "opencv  %s\n", gocv.OpenCVVersion())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
