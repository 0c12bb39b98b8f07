// Package dialogue holds the turn-level heuristics shared by the relevance
// and turn-taking analyses.
package dialogue

import (
	"strings"

	"callqa-server/pkg/textutil"
)

var topicStopWords = map[string]bool{
	"this": true, "that": true, "with": true, "have": true, "will": true, "from": true, "they": true,
	"know": true, "want": true, "been": true, "good": true, "much": true, "some": true, "time": true,
	"very": true, "when": true, "come": true, "here": true, "just": true, "like": true, "long": true,
	"make": true, "many": true, "over": true, "such": true, "take": true, "than": true, "them": true,
	"well": true, "were": true,
}

// Topics returns the distinct words of text longer than three runes that
// are not common English filler.
func Topics(text string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, w := range textutil.Words(text) {
		if len([]rune(w)) <= 3 || topicStopWords[w] || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}

// TopicRelevance is the share of topics the two lines have in common,
// treating near-spellings as the same topic.
func TopicRelevance(humanInput, botResponse string) float64 {
	human, bot := Topics(humanInput), Topics(botResponse)
	switch {
	case len(human) == 0 && len(bot) == 0:
		return 1
	case len(human) == 0 || len(bot) == 0:
		return 0.3
	}
	return float64(SharedTopics(human, bot, 0.7)) / float64(max(len(human), len(bot)))
}

// SharedTopics counts topics of a with a near-spelling in b.
func SharedTopics(a, b []string, threshold float64) int {
	n := 0
	for _, x := range a {
		for _, y := range b {
			if textutil.EditSimilarity(x, y) > threshold {
				n++
				break
			}
		}
	}
	return n
}

// ClassifyQuery buckets a customer line by what it asks for.
func ClassifyQuery(text string) string {
	lower := strings.ToLower(text)
	switch {
	case textutil.ContainsAny(lower, "?", "what", "how", "why"):
		return "question"
	case textutil.ContainsAny(lower, "please", "can you", "could you"):
		return "request"
	case strings.Contains(lower, "thank"):
		return "gratitude"
	case textutil.ContainsAny(lower, "yes", "no", "okay"):
		return "confirmation"
	case textutil.ContainsAny(lower, "hello", "hi", "नमस्ते"):
		return "greeting"
	}
	return "statement"
}

// ClassifyResponse buckets a bot line by what it does.
func ClassifyResponse(text string) string {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "?"):
		return "question"
	case textutil.ContainsAny(lower, "please", "can you"):
		return "request"
	case textutil.ContainsAny(lower, "thank", "welcome"):
		return "acknowledgment"
	case textutil.ContainsAny(lower, "sorry", "apologize"):
		return "apology"
	case textutil.ContainsAny(lower, "help", "assist"):
		return "offer_help"
	}
	return "information"
}

var alignment = map[string][]string{
	"question":     {"information", "question", "acknowledgment"},
	"request":      {"acknowledgment", "information", "offer_help"},
	"gratitude":    {"acknowledgment", "offer_help"},
	"confirmation": {"acknowledgment", "information"},
	"greeting":     {"acknowledgment", "offer_help"},
	"statement":    {"acknowledgment", "question", "information"},
}

// ResponseAlignment is 1 when the bot's response type suits the customer's
// query type and .3 otherwise.
func ResponseAlignment(humanInput, botResponse string) float64 {
	want, ok := alignment[ClassifyQuery(humanInput)]
	if !ok {
		want = []string{"information"}
	}
	got := ClassifyResponse(botResponse)
	for _, w := range want {
		if w == got {
			return 1
		}
	}
	return 0.3
}
