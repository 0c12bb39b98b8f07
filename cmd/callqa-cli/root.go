// callqa-cli scores call transcripts offline.
//
// Usage:
//
//	callqa-cli analyze <transcript>... [--format json|yaml] [--parallel N]
//	callqa-cli analyze call.txt --audio call.wav
//	callqa-cli sample [--analyze]
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"callqa-server/pkg/version"
)

func newRootCmd() *cobra.Command {
	var logLevel string
	logger := logrus.New()

	rootCmd := &cobra.Command{
		Use:   "callqa-cli",
		Short: "Score voice-bot call transcripts",
		Long: "callqa-cli runs the call QA analysis on transcript files without the HTTP server\n" +
			"and prints the results as JSON or YAML.",
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := logrus.ParseLevel(logLevel)
			if err != nil {
				return fmt.Errorf("invalid --log-level %q: %w", logLevel, err)
			}
			logger.SetLevel(level)
			logger.SetOutput(cmd.ErrOrStderr())
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	rootCmd.AddCommand(newAnalyzeCmd(logger))
	rootCmd.AddCommand(newSampleCmd(logger))
	return rootCmd
}

func execute(args []string, stdout, stderr io.Writer) error {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	return cmd.Execute()
}

func main() {
	if err := execute(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
