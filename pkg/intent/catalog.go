package intent

// Intent keys. They double as the conversationStep value of an IntentMapping.
const (
	KeyGreeting          = "initial_greeting"
	KeyThirdParty        = "third_party_interaction"
	KeyBusy              = "busy_response"
	KeyConnectionFailure = "connection_failure"
	KeyCallback          = "callback_scheduling"
	KeyInterestCheck     = "interest_check"
	KeyAgentOffer        = "agent_connection_offer"
	KeyAgentDecline      = "agent_decline_handling"
	KeyCallTransfer      = "call_transfer"
	KeyCallEnding        = "call_ending"
	KeyVoicemail         = "voicemail_response"
	KeyWrongNumber       = "wrong_number_handling"
	KeyGoodbye           = "goodbye"
	KeyObjection         = "objection_handling"
	KeyFetchData         = "fetch_data_trigger"

	// KeyUnknown marks a turn that matched nothing above the floor.
	KeyUnknown = "unknown"
)

// Context keys.
const (
	ContextSuccessful  = "successful_property_inquiry"
	ContextAlternative = "alternative_successful_flow"
	ContextCallback    = "callback_scenario"
	ContextVoicemail   = "voicemail_scenario"
	ContextWrongNumber = "wrong_number"
	ContextFailed      = "failed_inquiry"
)

// Condition names used in a context's conditional steps.
const (
	CondThirdPartyAnswers = "third_party_answers"
	CondCustomerBusy      = "customer_busy"
	CondConnectionIssues  = "connection_issues"
	CondNeedsCallback     = "needs_callback"
	CondAgentAccepted     = "agent_accepted"
	CondAgentDeclined     = "agent_declined"
	CondCallCompletion    = "call_completion"
	CondVoicemailDetected = "voicemail_detected"
	CondWrongNumber       = "wrong_number"
)

// CriticalSteps are the steps whose completion means the agent hand-off happened.
var CriticalSteps = []int{1, 6, 7, 9}

// AlternativeCriticalSteps add the third-party step for calls answered by someone else.
var AlternativeCriticalSteps = []int{1, 2, 6, 7, 9}

// Entry is one intent definition. Patterns are regular expressions matched
// case-insensitively on word boundaries.
type Entry struct {
	Key         string   `json:"key" yaml:"key"`
	Patterns    []string `json:"patterns" yaml:"patterns"`
	Score       int      `json:"score" yaml:"score"`
	Required    bool     `json:"required" yaml:"required"`
	StepNumber  int      `json:"stepNumber" yaml:"step_number"`
	Description string   `json:"description" yaml:"description"`
}

// Step describes one numbered conversation step.
type Step struct {
	Number            int    `json:"number" yaml:"number"`
	Name              string `json:"name" yaml:"name"`
	Intent            string `json:"intent" yaml:"intent"`
	Critical          bool   `json:"critical" yaml:"critical"`
	Conditional       string `json:"conditional,omitempty" yaml:"conditional,omitempty"`
	Priority          string `json:"priority" yaml:"priority"`
	ObjectiveCritical bool   `json:"objectiveCritical" yaml:"objective_critical"`
}

// Context is a call-outcome scenario with its own expected steps.
type Context struct {
	Key              string           `json:"key" yaml:"key"`
	Name             string           `json:"name" yaml:"name"`
	RequiredSteps    []int            `json:"required_steps" yaml:"required_steps"`
	CriticalSteps    []int            `json:"critical_steps" yaml:"critical_steps"`
	ConditionalSteps map[string][]int `json:"conditional_steps" yaml:"conditional_steps"`
}

// DefaultEntries returns the property-search intent catalog in evaluation order.
func DefaultEntries() []Entry {
	return []Entry{
		{
			Key: KeyGreeting,
			Patterns: []string{
				`(नमस्ते|hello|hi|good\s+(morning|afternoon|evening))`,
				`मैं.*?(बोल\s+रही\s+हूँ|speaking|calling)`,
				`Magicbricks\s+से`,
				`property\s+search`,
				`properties\s+में\s+interest`,
				`platform\s+पर.*?interest`,
			},
			Score: 15, Required: true, StepNumber: 1,
			Description: "Initial greeting and MagicBricks introduction",
		},
		{
			Key: KeyThirdParty,
			Patterns: []string{
				`क्या\s+आप.*?हैं`,
				`मैं.*?(हूँ|am)`,
				`नाम\s+बता\s+सकते\s+हैं`,
				`वो\s+यहाँ\s+नहीं\s+हैं`,
				`गलत\s+number`,
				`wrong\s+number`,
			},
			Score: 12, StepNumber: 2,
			Description: "Third-party interaction and name collection",
		},
		{
			Key: KeyBusy,
			Patterns: []string{
				`मैं\s+अभी\s+व्यस्त\s+हूँ`,
				`busy\s+right\s+now`,
				`call\s+me\s+later`,
				`बाद\s+में\s+call\s+करो`,
				`brief\s+रहूँगी`,
				`एक\s+मिनट\s+है`,
			},
			Score: 10, StepNumber: 3,
			Description: "Customer busy response handling",
		},
		{
			Key: KeyConnectionFailure,
			Patterns: []string{
				`क्या\s+आप\s+मेरी\s+बात\s+सुन\s+पा\s+रहे\s+हैं`,
				`connection\s+में\s+समस्या`,
				`दस\s+मिनट\s+में\s+दोबारा\s+कॉल`,
				`network\s+issue`,
			},
			Score: 8, StepNumber: 4,
			Description: "Connection failure handling",
		},
		{
			Key: KeyCallback,
			Patterns: []string{
				`कल\s+सुबह\s+दस\s+बजे`,
				`कौन\s+सा\s+time\s+convenient`,
				`call\s+back\s+के\s+लिए`,
				`थोड़ी\s+देर\s+बाद`,
				`दोबारा\s+try\s+करूँगी`,
				`specified\s+time`,
				`8\s+AM\s+to\s+10\s+PM`,
			},
			Score: 8, StepNumber: 5,
			Description: "Callback time scheduling",
		},
		{
			Key: KeyInterestCheck,
			Patterns: []string{
				`आपने\s+recently.*?platform\s+पर`,
				`properties\s+में\s+interest\s+दिखाया`,
				`search\s+कर\s+रहे\s+हैं`,
				`क्या\s+यह\s+सही\s+है`,
				`Bee-etch-kay`,
				`Two\s+बी\s+एच\s+के`,
				`Flat|Villa`,
				`budget.*?है`,
				`बजट.*?है`,
				`आप.*?में.*?search\s+कर\s+रहे\s+हैं`,
			},
			Score: 15, Required: true, StepNumber: 6,
			Description: "Property interest verification and requirement confirmation",
		},
		{
			Key: KeyAgentOffer,
			Patterns: []string{
				`Three\s+top\s+agents\s+shortlist`,
				`3\s+top\s+agents\s+shortlist`,
				`properties\s+दिखाएंगे`,
				`site\s+visits.*?negotiations`,
				`एक\s+agent\s+से\s+connect`,
				`क्या\s+हम\s+आगे\s+बढ़ें`,
				`follow\s+up\s+करेंगे`,
				`हमने\s+आपके\s+preferred\s+area\s+में.*?agents\s+shortlist`,
				`agents\s+आपसे\s+जल्दी\s+follow\s+up`,
			},
			Score: 12, Required: true, StepNumber: 7,
			Description: "Agent connection offer and consent",
		},
		{
			Key: KeyAgentDecline,
			Patterns: []string{
				`बिल्कुल\s+ठीक\s+है`,
				`Magicbricks\s+dot\s+com`,
				`verified\s+listings\s+देख\s+सकते\s+हैं`,
				`आपका\s+समय\s+देने\s+के\s+लिए\s+धन्यवाद`,
				`Have\s+a\s+great\s+day`,
			},
			Score: 8, StepNumber: 8,
			Description: "Handling agent connection decline",
		},
		{
			Key: KeyCallTransfer,
			Patterns: []string{
				`transfer_call`,
				`property_type.*?normalized`,
				`agent\s+से\s+connect\s+कर\s+रही\s+हूँ`,
				`connecting\s+to\s+agent`,
				`मैं\s+अभी\s+आपको\s+agent\s+से\s+connect\s+करती\s+हूँ`,
				`Please\s+लाइन\s+पर\s+बने\s+रहिए`,
				`आपको\s+agent\s+से\s+connect`,
			},
			Score: 15, Required: true, StepNumber: 9,
			Description: "Call transfer to agent execution",
		},
		{
			Key: KeyCallEnding,
			Patterns: []string{
				`आपका\s+समय\s+के\s+लिए\s+धन्यवाद`,
				`आपका\s+दिन\s+अच्छा\s+रहे`,
				`Have\s+a\s+great\s+day`,
				`thank\s+you\s+for\s+your\s+time`,
			},
			Score: 8, StepNumber: 10,
			Description: "Polite call ending",
		},
		{
			Key: KeyVoicemail,
			Patterns: []string{
				`मैं.*?बोल\s+रही\s+हूँ\s+Magicbricks\s+से`,
				`property\s+search\s+के\s+बारे\s+में`,
				`जल्द\s+ही\s+दोबारा\s+call`,
				`voicemail.*?message`,
				`after\s+the\s+tone`,
			},
			Score: 8, StepNumber: 11,
			Description: "Voicemail message handling",
		},
		{
			Key: KeyWrongNumber,
			Patterns: []string{
				`Sorry.*?गलत\s+number`,
				`wrong\s+number\s+पर\s+call`,
				`गलत\s+number\s+लग\s+गया`,
			},
			Score: 8, StepNumber: 12,
			Description: "Wrong number acknowledgment",
		},
		{
			Key: KeyGoodbye,
			Patterns: []string{
				`Goodbye`,
				`धन्यवाद`,
				`bye`,
				`take\s+care`,
				`Have\s+a\s+great\s+day`,
			},
			Score: 5, Required: true, StepNumber: 13,
			Description: "Final goodbye",
		},
		{
			Key: KeyObjection,
			Patterns: []string{
				`Agents\s+से\s+बार-बार\s+calls\s+नहीं\s+चाहिए`,
				`बहुत\s+सारे\s+agents\s+call\s+कर\s+रहे\s+हैं`,
				`बस\s+agent\s+का\s+number\s+दे\s+दो`,
				`मैं\s+अभी\s+बस\s+browse\s+कर\s+रहा\s+हूँ`,
				`research\s+phase\s+में\s+हूँ`,
				`क्या\s+यह\s+service\s+free\s+है`,
				`मैंने\s+search\s+ही\s+नहीं\s+किया`,
				`property\s+search\s+नहीं\s+कर\s+रही`,
			},
			Score:       10,
			Description: "Customer objection handling responses",
		},
		{
			Key: KeyFetchData,
			Patterns: []string{
				`FETCH_DATA`,
				`FETCH_NUMBERS`,
				`city.*?area.*?updated`,
				`locality.*?changed`,
			},
			Score:       5,
			Description: "Data fetching action triggers",
		},
	}
}

// DefaultSteps returns the thirteen numbered conversation steps.
func DefaultSteps() []Step {
	return []Step{
		{Number: 1, Name: "Initial Greeting", Intent: KeyGreeting, Critical: true, Priority: "mandatory", ObjectiveCritical: true},
		{Number: 2, Name: "Third Party Interaction", Intent: KeyThirdParty, Conditional: CondThirdPartyAnswers, Priority: "low"},
		{Number: 3, Name: "Busy Response", Intent: KeyBusy, Conditional: CondCustomerBusy, Priority: "low"},
		{Number: 4, Name: "Connection Failure", Intent: KeyConnectionFailure, Conditional: CondConnectionIssues, Priority: "low"},
		{Number: 5, Name: "Callback Scheduling", Intent: KeyCallback, Conditional: CondNeedsCallback, Priority: "low"},
		{Number: 6, Name: "Interest Check & Property Confirmation", Intent: KeyInterestCheck, Critical: true, Priority: "mandatory", ObjectiveCritical: true},
		{Number: 7, Name: "Agent Connection Offer", Intent: KeyAgentOffer, Critical: true, Priority: "mandatory", ObjectiveCritical: true},
		{Number: 8, Name: "Agent Decline Handling", Intent: KeyAgentDecline, Conditional: CondAgentDeclined, Priority: "low"},
		{Number: 9, Name: "Call Transfer to Agent", Intent: KeyCallTransfer, Critical: true, Conditional: CondAgentAccepted, Priority: "mandatory", ObjectiveCritical: true},
		{Number: 10, Name: "Call Ending", Intent: KeyCallEnding, Critical: true, Conditional: CondCallCompletion, Priority: "mandatory", ObjectiveCritical: true},
		{Number: 11, Name: "Voicemail Response", Intent: KeyVoicemail, Conditional: CondVoicemailDetected, Priority: "low"},
		{Number: 12, Name: "Wrong Number Handling", Intent: KeyWrongNumber, Conditional: CondWrongNumber, Priority: "low"},
		{Number: 13, Name: "Goodbye", Intent: KeyGoodbye, Critical: true, Priority: "high"},
	}
}

// DefaultContexts returns the call-outcome scenarios.
func DefaultContexts() []Context {
	return []Context{
		{
			Key:           ContextSuccessful,
			Name:          "Successful Property Inquiry (Call Objective Achieved)",
			RequiredSteps: []int{1, 6, 7, 9},
			CriticalSteps: []int{1, 6, 7, 9},
			ConditionalSteps: map[string][]int{
				CondAgentAccepted: {9},
			},
		},
		{
			Key:           ContextAlternative,
			Name:          "Alternative Successful Flow (via Third Party)",
			RequiredSteps: []int{1, 2, 6, 7, 9},
			CriticalSteps: []int{1, 2, 6, 7, 9},
			ConditionalSteps: map[string][]int{
				CondThirdPartyAnswers: {2},
				CondAgentAccepted:     {9},
			},
		},
		{
			Key:           ContextCallback,
			Name:          "Callback Scheduled (Future Objective Completion)",
			RequiredSteps: []int{1, 3, 5, 13},
			CriticalSteps: []int{1, 5},
			ConditionalSteps: map[string][]int{
				CondCustomerBusy:  {3},
				CondNeedsCallback: {5},
			},
		},
		{
			Key:           ContextVoicemail,
			Name:          "Voicemail Left (Future Objective Completion)",
			RequiredSteps: []int{1, 11, 13},
			CriticalSteps: []int{1, 11},
			ConditionalSteps: map[string][]int{
				CondVoicemailDetected: {11},
			},
		},
		{
			Key:           ContextWrongNumber,
			Name:          "Wrong Number (No Objective Possible)",
			RequiredSteps: []int{1, 12, 13},
			CriticalSteps: []int{1, 12},
			ConditionalSteps: map[string][]int{
				CondWrongNumber: {12},
			},
		},
		{
			Key:           ContextFailed,
			Name:          "Failed Property Inquiry (Objective Not Achieved)",
			RequiredSteps: []int{1, 6, 8, 13},
			CriticalSteps: []int{1, 6},
			ConditionalSteps: map[string][]int{
				CondAgentDeclined: {8},
			},
		},
	}
}
