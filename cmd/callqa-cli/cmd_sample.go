package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"callqa-server/pkg/analyzer"
	"callqa-server/pkg/transcript"
)

func newSampleCmd(logger *logrus.Logger) *cobra.Command {
	var (
		analyze bool
		format  string
	)

	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Print the canonical sample transcript",
		Long: `Print the sample property-search call used by the server's test endpoint.
With --analyze the sample is scored with the default settings and the
result is printed instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !analyze {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), transcript.Sample)
				return err
			}

			a, err := analyzer.New(logger)
			if err != nil {
				return err
			}
			result := a.Analyze(transcript.Sample, nil, analyzer.DefaultConfig())
			return write(cmd.OutOrStdout(), format, result)
		},
	}
	cmd.Flags().BoolVar(&analyze, "analyze", false, "Analyze the sample and print the result")
	cmd.Flags().StringVar(&format, "format", "json", "Output format with --analyze: json or yaml")
	return cmd
}
