package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/modelsite/modelsite-go/pkg/logging"
)

var (
	logLevel  string
	logFormat string
)

func main() {
	root := &cobra.Command{
		Use:           "modelsite",
		Short:         "Train and evaluate models on uploaded tabular datasets",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&logLevel, "log-level", "", "", "logging level: debug, info, warn or error (overrides LOG_LEVEL)")
	root.PersistentFlags().StringVarP(&logFormat, "log-format", "", "", "logging format: console or json (overrides LOG_FORMAT)")

	root.AddCommand(ServeCommand())
	root.AddCommand(TrainCommand())
	root.AddCommand(FamiliesCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// newLogger builds the process logger, letting the command line flags win
// over the configured level and format
func newLogger(level, format string) (*zap.Logger, error) {
	if logLevel != "" {
		level = logLevel
	}
	if logFormat != "" {
		format = logFormat
	}
	return logging.New(os.Stderr, level, format)
}
