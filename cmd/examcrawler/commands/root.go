package commands

import (
	"context"
	"fmt"
	"os"

	"examcrawler/internal/components/telemetry"

	"github.com/spf13/cobra"
)

var verbose *bool
var configPath *string

func init() {
	verbose = rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log debug output, including every http request.")
	configPath = rootCmd.PersistentFlags().String("config", "config.json5", "The config file to read site settings from.")
}

var rootCmd = &cobra.Command{
	Use:   "examcrawler",
	Short: "examcrawler collects driving theory exam questions by repeatedly taking practice exams.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		telemetry.InitSlog(os.Stderr, *verbose)
	},
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
