package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"callqa-server/pkg/errors"
	"callqa-server/pkg/transcript"
)

func mustCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := DefaultCatalog()
	require.NoError(t, err)
	return c
}

func TestDefaultCatalogShape(t *testing.T) {
	c := mustCatalog(t)

	assert.Len(t, c.Entries(), 15)
	assert.Len(t, c.Steps(), 13)
	assert.Len(t, c.Contexts(), 6)

	for _, e := range c.Entries() {
		if e.StepNumber == 0 {
			continue
		}
		step, ok := c.Step(e.StepNumber)
		require.True(t, ok, e.Key)
		assert.Equal(t, e.Key, step.Intent)
	}
}

func TestNewCatalogRejectsCorruptTables(t *testing.T) {
	badPattern := DefaultEntries()
	badPattern[0].Patterns = append(badPattern[0].Patterns, `(unclosed`)
	_, err := NewCatalog(badPattern, DefaultSteps(), DefaultContexts())
	require.Error(t, err)
	assert.True(t, errors.IsErrorType(err, errors.ErrCatalogCorrupt))

	badStep := DefaultEntries()
	badStep[1].StepNumber = 99
	_, err = NewCatalog(badStep, DefaultSteps(), DefaultContexts())
	assert.True(t, errors.IsErrorType(err, errors.ErrCatalogCorrupt))

	contexts := DefaultContexts()[:5]
	_, err = NewCatalog(DefaultEntries(), DefaultSteps(), contexts)
	assert.True(t, errors.IsErrorType(err, errors.ErrCatalogCorrupt))
}

func TestClassifyDefaultsToUnknown(t *testing.T) {
	c := mustCatalog(t)
	m := c.Classify(transcript.Turn{Index: 4, Speaker: transcript.SpeakerCustomer, Text: "The weather is nice"})

	assert.Equal(t, KeyUnknown, m.Step)
	assert.Equal(t, "General conversation", m.Intent)
	assert.Equal(t, 0.2, m.Confidence)
	assert.Equal(t, 0, m.StepNumber)
}

func TestClassifyAppliesFloorAndBoosts(t *testing.T) {
	c := mustCatalog(t)

	transfer := c.Classify(transcript.Turn{Index: 11, Speaker: transcript.SpeakerAgent, Text: "Please लाइन पर बने रहिए. मैं अभी आपको agent से connect करता हूँ."})
	assert.Equal(t, KeyCallTransfer, transfer.Step)
	assert.Equal(t, 9, transfer.StepNumber)
	assert.InDelta(t, 0.95, transfer.Confidence, 1e-9)

	goodbye := c.Classify(transcript.Turn{Index: 3, Speaker: transcript.SpeakerAgent, Text: "Goodbye"})
	assert.Equal(t, KeyGoodbye, goodbye.Step)
	assert.GreaterOrEqual(t, goodbye.Confidence, 0.5)
}

func TestFirstMatchStepFollowsCatalogOrder(t *testing.T) {
	c := mustCatalog(t)

	// the greeting entry is checked before the transfer entry
	assert.Equal(t, 1, c.FirstMatchStep("Hi! मैं अभी आपको agent से connect करती हूँ. Please लाइन पर बने रहिए."))
	assert.Equal(t, 9, c.FirstMatchStep("Please लाइन पर बने रहिए."))
	assert.Equal(t, 0, c.FirstMatchStep("The weather is nice"))
}

func TestWordBoundariesUnderstandDevanagari(t *testing.T) {
	c := mustCatalog(t)

	assert.True(t, c.Matches(KeyGoodbye, "ठीक है, धन्यवाद!"))
	// "bye" inside another word is not a goodbye
	assert.False(t, c.Matches(KeyGoodbye, "standbyeffect"))
	assert.True(t, c.Matches(KeyInterestCheck, "आपका बजट चालीस लाख है"))
}

func TestDetectCanonicalSample(t *testing.T) {
	c := mustCatalog(t)
	flow := c.Detect(transcript.Parse(transcript.Sample))

	require.Len(t, flow.IntentMappings, 12)

	steps := map[int]bool{}
	for _, p := range flow.StepProgression {
		steps[p.Step] = true
	}
	for _, s := range CriticalSteps {
		assert.True(t, steps[s], "step %d missing", s)
	}

	assert.True(t, flow.ObjectiveAchieved)
	assert.Empty(t, flow.MissingCriticalSteps)
	assert.Equal(t, ContextSuccessful, flow.ConversationContext.Key)
	assert.Equal(t, []int{1, 6, 7, 9}, flow.CriticalStepsAnalysis.Completed)
	assert.Equal(t, 1.0, flow.CallObjective.CompletionRate)
	assert.Equal(t, 4, flow.TotalRequiredSteps)
	assert.GreaterOrEqual(t, flow.FlowScore, 90.0)
	assert.LessOrEqual(t, flow.FlowScore, 100.0)

	first := flow.IntentMappings[0]
	assert.Equal(t, 1, first.TurnNumber)
	assert.Equal(t, KeyGreeting, first.ConversationStep)
	assert.Equal(t, 0.77, first.Confidence)

	last := flow.IntentMappings[11]
	assert.Equal(t, KeyCallTransfer, last.ConversationStep)
	assert.Equal(t, 0.95, last.Confidence)
}

func TestDetectIsDeterministic(t *testing.T) {
	c := mustCatalog(t)
	turns := transcript.Parse(transcript.Sample)
	assert.Equal(t, c.Detect(turns), c.Detect(turns))
}

func TestDetectEmptyReturnsDefault(t *testing.T) {
	c := mustCatalog(t)
	flow := c.Detect(nil)

	assert.Equal(t, DefaultFlow(), flow)
	assert.Equal(t, 50.0, flow.FlowScore)
	assert.Equal(t, []int{1, 6, 7, 9}, flow.MissingCriticalSteps)
	assert.False(t, flow.ObjectiveAchieved)
	assert.Equal(t, "default_fallback", flow.AnalysisSource)
}

func TestResolveWrongNumberContext(t *testing.T) {
	c := mustCatalog(t)
	raw := "Chat Bot: नमस्ते, मैं Priya बोल रही हूँ Magicbricks से.\n" +
		"Human: Sorry, यह गलत number लग गया है.\n" +
		"Chat Bot: Sorry for the trouble. Goodbye"

	flow := c.Detect(transcript.Parse(raw))

	steps := []int{}
	for _, p := range flow.StepProgression {
		steps = append(steps, p.Step)
	}
	assert.Equal(t, []int{1, 12, 13}, steps)
	assert.Equal(t, ContextWrongNumber, flow.ConversationContext.Key)
	assert.False(t, flow.ObjectiveAchieved)
}

func TestResolveContextDecisionOrder(t *testing.T) {
	c := mustCatalog(t)
	ms := func(keys ...string) []Mapping {
		out := make([]Mapping, len(keys))
		for i, k := range keys {
			out[i] = Mapping{ConversationStep: k}
		}
		return out
	}

	cases := []struct {
		name string
		in   []Mapping
		want string
	}{
		{"voicemail beats callback", ms(KeyVoicemail, KeyBusy), ContextVoicemail},
		{"busy without interest", ms(KeyGreeting, KeyBusy), ContextCallback},
		{"busy with interest is not callback", ms(KeyBusy, KeyInterestCheck), ContextFailed},
		{"full flow", ms(KeyInterestCheck, KeyAgentOffer, KeyCallTransfer), ContextSuccessful},
		{"full flow via third party", ms(KeyThirdParty, KeyInterestCheck, KeyAgentOffer, KeyCallTransfer), ContextAlternative},
		{"declined", ms(KeyInterestCheck, KeyAgentDecline), ContextFailed},
		{"offer without transfer", ms(KeyInterestCheck, KeyAgentOffer), ContextSuccessful},
		{"nothing", ms(KeyUnknown), ContextFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, c.ResolveContext(tc.in).Key)
		})
	}
}

func TestScoreFlowComponents(t *testing.T) {
	c := mustCatalog(t)
	ctx := c.Context(ContextFailed)

	progression := []Progress{
		{Step: 6, Confidence: 0.9},
		{Step: 1, Confidence: 0.6},
	}
	mappings := []Mapping{{Text: "hello"}, {Text: "interested"}}

	flow := c.ScoreFlow(ctx, progression, mappings)

	// 2 of 4 required steps, no decline trigger, 1 of 2 confident, 0 of 1 ordered
	assert.Equal(t, 2, flow.CompletedRequiredSteps)
	assert.InDelta(t, 20.0, flow.RequiredStepsScore, 1e-9)
	assert.InDelta(t, 20.0, flow.ConditionalScore, 1e-9)
	assert.InDelta(t, 5.0, flow.ConfidenceBonus, 1e-9)
	assert.InDelta(t, 0.0, flow.SequentialBonus, 1e-9)
	assert.InDelta(t, 65.0, flow.FlowScore, 1e-9)
	assert.Equal(t, []string{KeyGoodbye}, flow.MissingCriticalSteps)
}

func TestObjectiveAffirmativeAfterTransfer(t *testing.T) {
	mappings := []Mapping{
		{StepNumber: 1, ConversationStep: KeyGreeting, Confidence: 0.9, Speaker: transcript.SpeakerAgent},
		{StepNumber: 6, ConversationStep: KeyInterestCheck, Confidence: 0.9, Speaker: transcript.SpeakerAgent},
		{StepNumber: 9, ConversationStep: KeyCallTransfer, Confidence: 0.9, Speaker: transcript.SpeakerAgent},
		{ConversationStep: KeyUnknown, Confidence: 0.2, Speaker: transcript.SpeakerCustomer, Text: "हाँ ठीक है"},
	}

	obj := AnalyzeObjective(mappings)
	assert.True(t, obj.ObjectiveAchieved)
	assert.False(t, obj.PrimaryObjectiveComplete)
	assert.True(t, obj.HasCallTransferWithAffirmation)
	assert.Equal(t, "Call transfer with affirmative response", obj.ObjectiveAchievementReason)
	assert.Empty(t, obj.MissingCriticalSteps)

	// an agent saying yes does not count
	mappings[3].Speaker = transcript.SpeakerAgent
	obj = AnalyzeObjective(mappings)
	assert.False(t, obj.ObjectiveAchieved)
	assert.Equal(t, []int{7}, obj.MissingCriticalSteps)
	assert.InDelta(t, 0.75, obj.CompletionRate, 1e-9)
}

func TestObjectiveIgnoresLowConfidenceSteps(t *testing.T) {
	mappings := []Mapping{
		{StepNumber: 1, Confidence: 0.9},
		{StepNumber: 6, Confidence: 0.9},
		{StepNumber: 7, Confidence: 0.4},
		{StepNumber: 9, Confidence: 0.9},
	}
	obj := AnalyzeObjective(mappings)
	assert.False(t, obj.ObjectiveAchieved)
	assert.Equal(t, []int{7}, obj.MissingCriticalSteps)
}

func TestIsVague(t *testing.T) {
	assert.True(t, IsVague("ok", transcript.SpeakerCustomer))
	assert.True(t, IsVague("हाँ ठीक है okay", transcript.SpeakerCustomer))
	assert.False(t, IsVague("मुझे दो बेडरूम का flat चाहिए Andheri में", transcript.SpeakerCustomer))
}

func TestAssessQualityRating(t *testing.T) {
	q := AssessQuality(FlowAnalysis{
		CompletedRequiredSteps: 4,
		TotalRequiredSteps:     4,
		MissingCriticalSteps:   []string{},
		SequentialBonus:        10,
	}, 0.9)

	assert.Equal(t, "Excellent", q.Rating)
	assert.Equal(t, 97, q.Score)
	assert.True(t, q.Factors.NoCriticalMissing)
	assert.Equal(t, 27, q.Breakdown.ConfidenceScore)
}
