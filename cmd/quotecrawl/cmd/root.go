package cmd

import (
	"fmt"
	"os"

	"quotecrawl/lib/telemetry"
	"quotecrawl/lib/util/serviceutil"

	"github.com/spf13/cobra"
)

var verbose bool
var logDir string

var rootCmd = &cobra.Command{
	Use:   "quotecrawl",
	Short: "quotecrawl walks paginated quote sites and exports quotes and author biographies.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		err := telemetry.InitSlog(verbose, logDir)
		if err != nil {
			serviceutil.Fatal("failed to initialize logging", err)
		}
		err = telemetry.SetupFromEnv(cmd.Context(), "quotecrawl")
		if err != nil && !os.IsNotExist(err) {
			serviceutil.Fatal("failed to initialize telemetry", err)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(
		&verbose, "verbose", "v", false,
		"enable debug logging and http transcripts",
	)
	rootCmd.PersistentFlags().StringVar(
		&logDir, "log-dir", "logs",
		"directory the log file is written to",
	)
}

func Execute() {
	ctx := serviceutil.SignalContext()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
