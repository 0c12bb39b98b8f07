package intent

import "strings"

// ResolveContext picks the call-outcome scenario from the set of observed
// intents. The first matching rule wins.
func (c *Catalog) ResolveContext(mappings []Mapping) Context {
	seen := make(map[string]bool)
	for _, m := range mappings {
		seen[m.ConversationStep] = true
	}

	interest := seen[KeyInterestCheck]

	switch {
	case seen[KeyWrongNumber]:
		return c.contexts[ContextWrongNumber]
	case seen[KeyVoicemail]:
		return c.contexts[ContextVoicemail]
	case (seen[KeyBusy] || seen[KeyCallback]) && !interest:
		return c.contexts[ContextCallback]
	case interest && seen[KeyAgentOffer] && seen[KeyCallTransfer]:
		if seen[KeyThirdParty] {
			return c.contexts[ContextAlternative]
		}
		return c.contexts[ContextSuccessful]
	case interest && seen[KeyAgentDecline]:
		return c.contexts[ContextFailed]
	case interest && seen[KeyAgentOffer]:
		// offer made but transfer not observed: partial success
		return c.contexts[ContextSuccessful]
	default:
		return c.contexts[ContextFailed]
	}
}

// conditionMet evaluates a conditional-step trigger against the lower-cased
// conversation text and the observed intents.
func conditionMet(condition, content string, mappings []Mapping) bool {
	has := func(key string) bool {
		for _, m := range mappings {
			if m.ConversationStep == key {
				return true
			}
		}
		return false
	}
	contains := func(subs ...string) bool {
		for _, s := range subs {
			if strings.Contains(content, s) {
				return true
			}
		}
		return false
	}

	switch condition {
	case CondThirdPartyAnswers:
		return has(KeyThirdParty)
	case CondCustomerBusy:
		return contains("busy", "व्यस्त") || has(KeyBusy)
	case CondConnectionIssues:
		return contains("connection", "network") || has(KeyConnectionFailure)
	case CondNeedsCallback:
		return contains("callback", "call back", "बाद में") || has(KeyCallback)
	case CondAgentAccepted:
		return contains("yes", "हाँ", "okay", "ठीक है") || has(KeyCallTransfer)
	case CondAgentDeclined:
		return contains("no", "नहीं", "not interested") || has(KeyAgentDecline)
	case CondCallCompletion:
		return has(KeyCallEnding) || has(KeyGoodbye)
	case CondVoicemailDetected:
		return contains("voicemail", "message", "after the tone") || has(KeyVoicemail)
	case CondWrongNumber:
		return contains("wrong number", "गलत number") || has(KeyWrongNumber)
	default:
		return false
	}
}
