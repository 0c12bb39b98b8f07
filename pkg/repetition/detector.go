package repetition

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"callqa-server/pkg/textutil"
	"callqa-server/pkg/transcript"
)

// Mode selects which passes the detector runs.
type Mode string

const (
	// ModeExact reports only back-to-back identical bot lines and blocks.
	ModeExact Mode = "exact"
	// ModeFuzzy additionally reports near-identical bot lines.
	ModeFuzzy Mode = "fuzzy"
)

const (
	TypeSingleLine = "single_line_repetition"
	TypeBlock      = "block_pattern_repetition"
	TypeFuzzy      = "fuzzy_repetition"
)

const (
	minBotTextRunes = 5
	minBlockSize    = 2
	maxBlockSize    = 4
	exactSeverity   = 10
)

// Repetition is one flagged pair of bot lines or bot blocks.
type Repetition struct {
	Type                    string   `json:"type"`
	Text1                   string   `json:"text1"`
	Text2                   string   `json:"text2"`
	Turn1                   int      `json:"turn1"`
	Turn2                   int      `json:"turn2"`
	BlockSize               int      `json:"blockSize,omitempty"`
	FirstBlock              []string `json:"firstBlock,omitempty"`
	SecondBlock             []string `json:"secondBlock,omitempty"`
	SimilarityScore         float64  `json:"similarityScore"`
	Severity                float64  `json:"severity"`
	IsProblematicRepetition bool     `json:"isProblematicRepetition"`
	Recommendation          string   `json:"recommendation"`

	// Set by the fuzzy pass only.
	RepetitionType string      `json:"repetitionType,omitempty"`
	Similarity     *Similarity `json:"similarity,omitempty"`
	Justification  []string    `json:"justification,omitempty"`
	Priority       string      `json:"priority,omitempty"`
	ActionRequired bool        `json:"actionRequired,omitempty"`
	BusinessImpact string      `json:"businessImpact,omitempty"`
}

// Detector finds repeated bot utterances in a parsed transcript.
type Detector struct {
	logger    *logrus.Logger
	mode      Mode
	threshold float64
}

// NewDetector creates a detector. An unknown mode falls back to exact
// matching; threshold applies to the fuzzy pass only.
func NewDetector(logger *logrus.Logger, mode Mode, threshold float64) *Detector {
	if mode != ModeFuzzy {
		mode = ModeExact
	}
	return &Detector{logger: logger, mode: mode, threshold: threshold}
}

// Mode returns the active detection mode.
func (d *Detector) Mode() Mode {
	return d.mode
}

type botLine struct {
	pos        int // position in the turn slice
	turn       transcript.Turn
	normalized string
}

// Detect returns the repetitions found in turns, exact passes first.
func (d *Detector) Detect(turns []transcript.Turn) []Repetition {
	bots := botLines(turns)
	repetitions := []Repetition{}
	if len(bots) < 2 {
		return repetitions
	}

	repetitions = append(repetitions, d.singleLine(turns, bots)...)
	repetitions = append(repetitions, d.blocks(turns, bots)...)
	exactCount := len(repetitions)

	if d.mode == ModeFuzzy {
		repetitions = append(repetitions, d.fuzzy(turns, bots)...)
	}

	d.logger.WithFields(logrus.Fields{
		"bot_turns": len(bots),
		"exact":     exactCount,
		"fuzzy":     len(repetitions) - exactCount,
		"mode":      d.mode,
	}).Debug("Repetition detection complete")

	return repetitions
}

func botLines(turns []transcript.Turn) []botLine {
	var out []botLine
	for i, t := range turns {
		if !t.IsAgent() || len([]rune(t.Text)) < minBotTextRunes {
			continue
		}
		out = append(out, botLine{pos: i, turn: t, normalized: textutil.Normalize(t.Text)})
	}
	return out
}

func identical(a, b botLine) bool {
	return a.normalized != "" && a.normalized == b.normalized
}

// noCustomerBetween reports whether turns strictly between from and to are
// all agent turns.
func noCustomerBetween(turns []transcript.Turn, from, to int) bool {
	for i := from + 1; i < to && i < len(turns); i++ {
		if turns[i].IsCustomer() {
			return false
		}
	}
	return true
}

func (d *Detector) singleLine(turns []transcript.Turn, bots []botLine) []Repetition {
	var out []Repetition
	for i := 0; i+1 < len(bots); i++ {
		cur, next := bots[i], bots[i+1]
		if !identical(cur, next) || !noCustomerBetween(turns, cur.pos, next.pos) {
			continue
		}
		out = append(out, Repetition{
			Type:                    TypeSingleLine,
			Text1:                   cur.turn.Text,
			Text2:                   next.turn.Text,
			Turn1:                   cur.turn.Index + 1,
			Turn2:                   next.turn.Index + 1,
			SimilarityScore:         1.0,
			Severity:                exactSeverity,
			IsProblematicRepetition: true,
			Recommendation:          "Remove consecutive identical bot responses",
		})
	}
	return out
}

// blocks scans each block size independently and reports the first pair of
// adjacent identical blocks found at that size.
func (d *Detector) blocks(turns []transcript.Turn, bots []botLine) []Repetition {
	var out []Repetition
	for size := minBlockSize; size <= maxBlockSize; size++ {
		for i := 0; i+2*size <= len(bots); i++ {
			first := bots[i : i+size]
			second := bots[i+size : i+2*size]
			if !blocksMatch(first, second) || !noCustomerBetween(turns, first[size-1].pos, second[0].pos) {
				continue
			}

			firstTexts, secondTexts := blockTexts(first), blockTexts(second)
			out = append(out, Repetition{
				Type:                    TypeBlock,
				Text1:                   strings.Join(firstTexts, " | "),
				Text2:                   strings.Join(secondTexts, " | "),
				Turn1:                   first[0].turn.Index + 1,
				Turn2:                   second[0].turn.Index + 1,
				BlockSize:               size,
				FirstBlock:              firstTexts,
				SecondBlock:             secondTexts,
				SimilarityScore:         1.0,
				Severity:                exactSeverity,
				IsProblematicRepetition: true,
				Recommendation:          fmt.Sprintf("Remove %d-line block repetition - bot is repeating entire conversation blocks", size),
			})
			break
		}
	}
	return out
}

func blocksMatch(a, b []botLine) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !identical(a[i], b[i]) {
			return false
		}
	}
	return true
}

func blockTexts(block []botLine) []string {
	out := make([]string, len(block))
	for i, b := range block {
		out[i] = b.turn.Text
	}
	return out
}
