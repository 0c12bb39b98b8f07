package hallucination

import (
	"math"

	"callqa-server/pkg/textutil"
)

// mandatoryFromTurn is the turn index from which scripted phrases earn a bonus.
const mandatoryFromTurn = 6

var (
	mandatoryPhrases = textutil.MustWordPatterns(
		`आपने\s+recently\s+हमारे\s+platform\s+पर\s+कुछ\s+properties\s+में\s+interest\s+दिखाया\s+था`,
		`हमने\s+आपके\s+preferred\s+area\s+में\s+3\s+top\s+agents\s+shortlist\s+किए\s+हैं`,
		`क्या\s+मैं\s+आपको\s+कल\s+सुबह\s+दस\s+बजे\s+कॉल\s+कर\s+सकती\s+हूँ`,
		`Bee-etch-kay`,
	)
	prohibitedPhrases = textutil.MustWordPatterns(
		`क्या\s+मैं\s+आपकी\s+क्या\s+सहायता\s+कर\s+सकती\s+हूँ`,
		`How\s+can\s+I\s+help\s+you`,
		`What\s+can\s+I\s+do\s+for\s+you`,
		`How\s+may\s+I\s+assist\s+you`,
		`BHK`,
		`\d+\s+BHK`,
		`\d+\s+(lakh|crore|rupees)`,
	)
	objectionResponses = textutil.MustWordPatterns(
		`मैं\s+पूरी\s+तरह\s+समझ\s+सकती\s+हूँ.*?unnecessary\s+calls\s+नहीं\s+आएंगे`,
		`Quality\s+की\s+बात\s+है.*?quantity\s+की\s+नहीं`,
		`मैं\s+personally\s+Agent\s+को\s+आपकी\s+requirements\s+brief\s+कर\s+दूँगी`,
	)
	acknowledgements = textutil.MustWordPatterns(
		`मैं\s+पूरी\s+तरह\s+समझ\s+सकती\s+हूँ`,
		`I\s+understand`,
		`मैं\s+समझ\s+गई`,
	)
	objectionPatterns = textutil.MustWordPatterns(
		`Agents\s+से\s+बार-बार\s+calls\s+नहीं\s+चाहिए`,
		`बहुत\s+सारे\s+agents\s+call\s+कर\s+रहे\s+हैं`,
		`बस\s+agent\s+का\s+number\s+दे\s+दो`,
		`मैं\s+अभी\s+बस\s+browse\s+कर\s+रहा\s+हूँ`,
		`research\s+phase\s+में\s+हूँ`,
		`क्या\s+यह\s+service\s+free\s+है`,
		`मैंने\s+search\s+ही\s+नहीं\s+किया`,
		`property\s+search\s+नहीं\s+कर\s+रही`,
		`not\s+interested`,
		`नहीं\s+चाहिए`,
	)

	bhkWord       = textutil.MustWordPattern(`BHK`)
	bhkSpelled    = textutil.MustWordPattern(`Bee-etch-kay`)
	numericMoney  = textutil.MustWordPattern(`\d+\s+(lakh|crore|rupees)`)
	numericPropID = textutil.MustWordPattern(`\d+\s+(BHK|Sector)`)
)

// ScriptAdherence scores a bot line against the call script: prohibited
// phrases, "BHK" instead of "Bee-etch-kay", and digits in money amounts or
// property identifiers cost points; scripted phrases late in the call earn
// them back. The result is clamped to [0,1].
func ScriptAdherence(botResponse string, turnIndex int) float64 {
	score := 1.0
	score -= 0.3 * float64(textutil.CountMatches(prohibitedPhrases, botResponse))

	if bhkWord.MatchString(botResponse) && !bhkSpelled.MatchString(botResponse) {
		score -= 0.2
	}
	if numericMoney.MatchString(botResponse) {
		score -= 0.25
	}
	if numericPropID.MatchString(botResponse) {
		score -= 0.2
	}

	if turnIndex >= mandatoryFromTurn {
		score += 0.1 * float64(textutil.CountMatches(mandatoryPhrases, botResponse))
	}
	return textutil.Clamp(score, 0, 1)
}

// IsObjection reports whether the customer pushed back on the call.
func IsObjection(humanInput string) bool {
	return textutil.AnyMatch(objectionPatterns, humanInput)
}

// ObjectionHandling scores the bot's answer to an objection; 1 when there
// was nothing to handle.
func ObjectionHandling(humanInput, botResponse string) float64 {
	if !IsObjection(humanInput) {
		return 1
	}
	score := 0.5 + 0.3*float64(textutil.CountMatches(objectionResponses, botResponse))
	if textutil.AnyMatch(acknowledgements, botResponse) {
		score += 0.2
	}
	return math.Min(1, score)
}
