package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"callqa-server/pkg/analyzer"
	"callqa-server/pkg/audio"
	"callqa-server/pkg/errors"
	"callqa-server/pkg/latency"
	"callqa-server/pkg/media"
	"callqa-server/pkg/repetition"
)

type analyzeFlags struct {
	format    string
	output    string
	audioPath string
	parallel  int
	summary   bool

	silenceThreshold float64
	durationMin      float64
	durationMax      float64
	similarity       float64
	responseTime     float64
	repetitionMode   string
	latencyMode      string
	seed             int64
}

// fileResult is one entry of a multi-file run
type fileResult struct {
	File   string      `json:"file"`
	Result interface{} `json:"result"`
}

func newAnalyzeCmd(logger *logrus.Logger) *cobra.Command {
	flags := &analyzeFlags{}

	cmd := &cobra.Command{
		Use:   "analyze <transcript>...",
		Short: "Analyze one or more transcript files",
		Long: `Analyze transcript files and print the QA results.

Each file holds one call in "Chat Bot:" / "Human:" line format. Use "-" to
read a transcript from standard input. With a single file the result is
printed on its own; with several, a list of {file, result} entries is
printed in argument order.

Usage:
  callqa-cli analyze call.txt
  callqa-cli analyze calls/*.txt --parallel 4 --format yaml
  callqa-cli analyze call.txt --audio call.wav --summary`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, logger, flags, args)
		},
	}

	defaults := analyzer.DefaultConfig()
	f := cmd.Flags()
	f.StringVar(&flags.format, "format", "json", "Output format: json or yaml")
	f.StringVarP(&flags.output, "output", "o", "", "Write output to this file instead of stdout")
	f.StringVar(&flags.audioPath, "audio", "", "Recording of the call (single transcript only)")
	f.IntVar(&flags.parallel, "parallel", 1, "Number of transcripts analyzed concurrently")
	f.BoolVar(&flags.summary, "summary", false, "Print the compact summary instead of the full result")
	f.Float64Var(&flags.silenceThreshold, "silence-threshold", defaults.SilenceThreshold, "Silence length in seconds that counts as a violation")
	f.Float64Var(&flags.durationMin, "duration-min", defaults.IdealCallDurationMin, "Ideal call duration lower bound in minutes")
	f.Float64Var(&flags.durationMax, "duration-max", defaults.IdealCallDurationMax, "Ideal call duration upper bound in minutes")
	f.Float64Var(&flags.similarity, "similarity", defaults.RepetitionSimilarityThreshold, "Similarity threshold for fuzzy repetition")
	f.Float64Var(&flags.responseTime, "response-time", defaults.ResponseTimeThreshold, "Response time threshold in seconds")
	f.StringVar(&flags.repetitionMode, "repetition-mode", string(defaults.RepetitionMode), "Repetition matching: exact or fuzzy")
	f.StringVar(&flags.latencyMode, "latency-mode", string(defaults.LatencyMode), "Latency analysis: baseline or contextual")
	f.Int64Var(&flags.seed, "seed", 0, "Seed for synthetic audio estimates (0 uses deterministic heuristics)")
	return cmd
}

func (f *analyzeFlags) config() (analyzer.Config, error) {
	cfg := analyzer.Config{
		SilenceThreshold:              f.silenceThreshold,
		IdealCallDurationMin:          f.durationMin,
		IdealCallDurationMax:          f.durationMax,
		RepetitionSimilarityThreshold: f.similarity,
		ResponseTimeThreshold:         f.responseTime,
		RepetitionMode:                repetition.Mode(f.repetitionMode),
		LatencyMode:                   latency.Mode(f.latencyMode),
		AudioSeed:                     f.seed,
	}
	return cfg, cfg.Validate()
}

func runAnalyze(cmd *cobra.Command, logger *logrus.Logger, flags *analyzeFlags, args []string) error {
	if flags.format != "json" && flags.format != "yaml" {
		return fmt.Errorf("unknown --format %q (want json or yaml)", flags.format)
	}
	if flags.audioPath != "" && len(args) > 1 {
		return fmt.Errorf("--audio can only be used with a single transcript")
	}
	if flags.parallel < 1 {
		flags.parallel = 1
	}

	cfg, err := flags.config()
	if err != nil {
		return err
	}

	a, err := analyzer.New(logger)
	if err != nil {
		return err
	}

	var data *audio.Data
	if flags.audioPath != "" {
		data, err = loadAudio(cmd.Context(), logger, flags.audioPath, flags.seed)
		if err != nil {
			return err
		}
	}

	results := make([]analyzer.Result, len(args))
	g, gCtx := errgroup.WithContext(cmd.Context())
	g.SetLimit(flags.parallel)
	for i, path := range args {
		i, path := i, path
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			raw, err := readTranscript(cmd.InOrStdin(), path)
			if err != nil {
				return err
			}
			results[i] = a.Analyze(raw, data, cfg)
			logger.WithFields(logrus.Fields{
				"file":          path,
				"overall_score": results[i].OverallScore,
			}).Debug("Transcript analyzed")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	var out interface{}
	if len(args) == 1 {
		out = present(results[0], flags.summary)
	} else {
		entries := make([]fileResult, len(args))
		for i, path := range args {
			entries[i] = fileResult{File: path, Result: present(results[i], flags.summary)}
		}
		out = entries
	}

	w := cmd.OutOrStdout()
	if flags.output != "" {
		file, err := os.Create(flags.output)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer file.Close()
		w = file
	}
	return write(w, flags.format, out)
}

func present(r analyzer.Result, summary bool) interface{} {
	if summary {
		return r.Summary()
	}
	return r
}

func readTranscript(stdin io.Reader, path string) (string, error) {
	if path == "-" {
		raw, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(raw), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read transcript: %w", err)
	}
	if len(raw) == 0 {
		return "", errors.NewInvalidTranscript(fmt.Sprintf("%s is empty", path), map[string]interface{}{
			"path": path,
		})
	}
	return string(raw), nil
}

// loadAudio probes a local recording in place; nothing is staged.
func loadAudio(ctx context.Context, logger *logrus.Logger, path string, seed int64) (*audio.Data, error) {
	cfg := media.DefaultConfig()
	cfg.UploadDir = filepath.Dir(path)
	cfg.Seed = seed
	return media.NewProcessor(logger, cfg).Process(ctx, path, filepath.Base(path))
}

// write encodes v in the requested format. YAML goes through the JSON
// encoding first so both formats share the same field names.
func write(w io.Writer, format string, v interface{}) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(generic); err != nil {
		return err
	}
	return enc.Close()
}
