package analyzer

import (
	"fmt"

	"callqa-server/pkg/audio"
	"callqa-server/pkg/errors"
	"callqa-server/pkg/latency"
	"callqa-server/pkg/repetition"
)

// Config tunes one analysis. Zero values take the defaults.
type Config struct {
	SilenceThreshold              float64         `json:"silenceThreshold" yaml:"silenceThreshold"`
	IdealCallDurationMin          float64         `json:"idealCallDurationMin" yaml:"idealCallDurationMin"`
	IdealCallDurationMax          float64         `json:"idealCallDurationMax" yaml:"idealCallDurationMax"`
	RepetitionSimilarityThreshold float64         `json:"repetitionSimilarityThreshold" yaml:"repetitionSimilarityThreshold"`
	ResponseTimeThreshold         float64         `json:"responseTimeThreshold,omitempty" yaml:"responseTimeThreshold,omitempty"`
	RepetitionMode                repetition.Mode `json:"repetitionMode,omitempty" yaml:"repetitionMode,omitempty"`
	LatencyMode                   latency.Mode    `json:"latencyMode,omitempty" yaml:"latencyMode,omitempty"`

	// AudioSeed switches the silence gates and quality estimates from the
	// deterministic heuristics to seeded draws when non-zero.
	AudioSeed int64 `json:"audioSeed,omitempty" yaml:"audioSeed,omitempty"`
}

// DefaultConfig returns the stock analysis settings.
func DefaultConfig() Config {
	return Config{
		SilenceThreshold:              audio.DefaultSilenceThreshold,
		IdealCallDurationMin:          1.0,
		IdealCallDurationMax:          3.5,
		RepetitionSimilarityThreshold: 0.8,
		ResponseTimeThreshold:         latency.DefaultThreshold,
		RepetitionMode:                repetition.ModeExact,
		LatencyMode:                   latency.ModeBaseline,
	}
}

// WithDefaults fills every unset field from DefaultConfig.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.SilenceThreshold <= 0 {
		c.SilenceThreshold = d.SilenceThreshold
	}
	if c.IdealCallDurationMin <= 0 {
		c.IdealCallDurationMin = d.IdealCallDurationMin
	}
	if c.IdealCallDurationMax <= 0 {
		c.IdealCallDurationMax = d.IdealCallDurationMax
	}
	if c.RepetitionSimilarityThreshold <= 0 {
		c.RepetitionSimilarityThreshold = d.RepetitionSimilarityThreshold
	}
	if c.ResponseTimeThreshold <= 0 {
		c.ResponseTimeThreshold = d.ResponseTimeThreshold
	}
	if c.RepetitionMode == "" {
		c.RepetitionMode = d.RepetitionMode
	}
	if c.LatencyMode == "" {
		c.LatencyMode = d.LatencyMode
	}
	return c
}

// Validate rejects settings that cannot describe a call.
func (c Config) Validate() error {
	if c.IdealCallDurationMin > c.IdealCallDurationMax {
		return errors.NewInvalidInput(fmt.Sprintf("idealCallDurationMin %.2f exceeds idealCallDurationMax %.2f",
			c.IdealCallDurationMin, c.IdealCallDurationMax))
	}
	if c.RepetitionSimilarityThreshold > 1 {
		return errors.NewInvalidInput(fmt.Sprintf("repetitionSimilarityThreshold %.2f is above 1", c.RepetitionSimilarityThreshold))
	}
	switch c.RepetitionMode {
	case "", repetition.ModeExact, repetition.ModeFuzzy:
	default:
		return errors.NewInvalidInput(fmt.Sprintf("unknown repetition mode %q", c.RepetitionMode))
	}
	switch c.LatencyMode {
	case "", latency.ModeBaseline, latency.ModeContextual:
	default:
		return errors.NewInvalidInput(fmt.Sprintf("unknown latency mode %q", c.LatencyMode))
	}
	return nil
}

func (c Config) silenceValidator() audio.SilenceValidator {
	if c.AudioSeed != 0 {
		return audio.NewSeededValidator(c.AudioSeed)
	}
	return audio.HeuristicValidator{}
}

func (c Config) qualityEstimator() audio.QualityEstimator {
	if c.AudioSeed != 0 {
		return audio.NewSeededEstimator(c.AudioSeed)
	}
	return audio.ReferenceEstimator{}
}
