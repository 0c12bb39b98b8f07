package analytics

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"callqa-server/pkg/analyzer"
	"callqa-server/pkg/audio"
	"callqa-server/pkg/intent"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func event(source string, score float64, objective bool) *AnalysisEvent {
	return &AnalysisEvent{
		Source: source,
		Result: &analyzer.Result{
			AnalysisID:   "analysis",
			OverallScore: score,
			IntentFlow:   intent.Flow{ObjectiveAchieved: objective, MissingCriticalSteps: []int{}},
		},
	}
}

func alertTypes(s *Snapshot) []string {
	var types []string
	for _, a := range s.Alerts {
		types = append(types, a.Type)
	}
	return types
}

func TestPipelineAggregatesPerSource(t *testing.T) {
	p := DefaultPipeline(testLogger())
	ctx := context.Background()

	_, err := p.Process(ctx, event("api", 90, true))
	require.NoError(t, err)
	snap, err := p.Process(ctx, event("api", 70, false))
	require.NoError(t, err)
	_, err = p.Process(ctx, event("cli", 50, false))
	require.NoError(t, err)

	assert.Equal(t, 2, snap.Stats.TotalAnalyses)
	assert.Equal(t, 80.0, snap.Stats.AverageScore)
	assert.Equal(t, 0.5, snap.Stats.ObjectiveRate)

	cli, err := p.Stats("cli")
	require.NoError(t, err)
	assert.Equal(t, 1, cli.TotalAnalyses)
	assert.Equal(t, 50.0, cli.AverageScore)

	require.NoError(t, p.Reset("cli"))
	cli, err = p.Stats("cli")
	require.NoError(t, err)
	assert.Zero(t, cli.TotalAnalyses)
}

func TestPipelineHandlesNilEvent(t *testing.T) {
	p := DefaultPipeline(testLogger())

	snap, err := p.Process(context.Background(), nil)
	assert.NoError(t, err)
	assert.Nil(t, snap)

	snap, err = p.Process(context.Background(), &AnalysisEvent{Source: "api"})
	assert.NoError(t, err)
	assert.Nil(t, snap)
}

func TestAlertRules(t *testing.T) {
	p := DefaultPipeline(testLogger())
	ctx := context.Background()

	snap, err := p.Process(ctx, event("api", 95, true))
	require.NoError(t, err)
	assert.Empty(t, snap.Alerts)

	e := event("api", 35, false)
	e.Result.FailedStages = []string{"latency"}
	e.Result.SilenceViolations = make([]audio.SilenceSegment, 3)
	snap, err = p.Process(ctx, e)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"low_score", "objective_missed", "long_silences", "degraded_analysis"}, alertTypes(snap))
	assert.Equal(t, "critical", snap.Alerts[0].Severity)
	assert.Equal(t, 4, snap.Stats.AlertCount)
	assert.Equal(t, 1, snap.Stats.DegradedAnalyses)
}

func TestTrendProcessorFlagsScoreDrop(t *testing.T) {
	p := NewPipeline(testLogger(), nil, NewTrendProcessor(15), NewStatsProcessor())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		snap, err := p.Process(ctx, event("api", 90, true))
		require.NoError(t, err)
		assert.Empty(t, snap.Alerts)
	}

	snap, err := p.Process(ctx, event("api", 80, true))
	require.NoError(t, err)
	assert.Empty(t, snap.Alerts)

	snap, err = p.Process(ctx, event("api", 60, true))
	require.NoError(t, err)
	require.Len(t, snap.Alerts, 1)
	assert.Equal(t, "score_drop", snap.Alerts[0].Type)
}

type failingProcessor struct{}

func (failingProcessor) Process(context.Context, *AnalysisEvent, *State) error {
	return errors.New("processor error")
}

func TestPipelineContinuesOnProcessorError(t *testing.T) {
	p := NewPipeline(testLogger(), nil, failingProcessor{}, NewStatsProcessor())

	snap, err := p.Process(context.Background(), event("api", 75, true))
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Stats.TotalAnalyses)
}

type recordingSubscriber struct {
	mu        sync.Mutex
	snapshots []*Snapshot
}

func (r *recordingSubscriber) OnAnalysis(s *Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = append(r.snapshots, s)
}

type recordingWriter struct {
	saved []*Snapshot
	err   error
}

func (w *recordingWriter) Save(_ context.Context, s *Snapshot) error {
	w.saved = append(w.saved, s)
	return w.err
}

func TestDispatcherFansOut(t *testing.T) {
	d := NewDispatcher(testLogger(), nil)
	first, second := &recordingSubscriber{}, &recordingSubscriber{}
	writer := &recordingWriter{err: errors.New("broker down")}
	d.AddSubscriber(first)
	d.AddSubscriber(second)
	d.SetSnapshotWriter(writer)

	snap := d.HandleAnalysis(context.Background(), event("api", 88, true))
	require.NotNil(t, snap)
	assert.Len(t, first.snapshots, 1)
	assert.Len(t, second.snapshots, 1)
	assert.Len(t, writer.saved, 1)

	d.RemoveSubscriber(first)
	d.HandleAnalysis(context.Background(), event("api", 88, true))
	assert.Len(t, first.snapshots, 1)
	assert.Len(t, second.snapshots, 2)
	assert.Equal(t, 2, second.snapshots[1].Stats.TotalAnalyses)
}

type panickingSubscriber struct{}

func (panickingSubscriber) OnAnalysis(*Snapshot) { panic("subscriber bug") }

func TestDispatcherSurvivesPanickingSubscriber(t *testing.T) {
	d := NewDispatcher(testLogger(), nil)
	after := &recordingSubscriber{}
	d.AddSubscriber(panickingSubscriber{})
	d.AddSubscriber(after)

	require.NotPanics(t, func() {
		d.HandleAnalysis(context.Background(), event("api", 70, false))
	})
	assert.Len(t, after.snapshots, 1)
}

type fakeBroadcaster struct {
	analyses []*Snapshot
	events   []string
}

func (f *fakeBroadcaster) BroadcastAnalysis(s *Snapshot) {
	f.analyses = append(f.analyses, s)
}

func (f *fakeBroadcaster) BroadcastEvent(_ string, eventType string, _ interface{}) {
	f.events = append(f.events, eventType)
}

func TestWebSocketSubscriberBroadcastsAlerts(t *testing.T) {
	b := &fakeBroadcaster{}
	sub := NewWebSocketSubscriber(testLogger(), b)

	sub.OnAnalysis(&Snapshot{
		AnalysisID: "a1",
		Alerts: []Alert{
			{Type: "low_score", Severity: "high"},
			{Type: "objective_missed", Severity: "medium"},
		},
	})
	sub.OnAnalysis(nil)

	assert.Len(t, b.analyses, 1)
	assert.Equal(t, []string{"low_score", "objective_missed"}, b.events)
}

type fakePublisher struct {
	connected  bool
	publishErr error
	published  []analyzer.Summary
	deadLetter []string
}

func (f *fakePublisher) PublishAnalysis(_ context.Context, s analyzer.Summary, _ map[string]interface{}) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, s)
	return nil
}

func (f *fakePublisher) PublishToDeadLetterQueue(_ context.Context, s analyzer.Summary, reason string) error {
	f.deadLetter = append(f.deadLetter, reason)
	return nil
}

func (f *fakePublisher) IsConnected() bool { return f.connected }
func (f *fakePublisher) Connect() error    { return nil }
func (f *fakePublisher) Disconnect()       {}

func TestPublisherWriter(t *testing.T) {
	pub := &fakePublisher{connected: true}
	w := NewPublisherWriter(testLogger(), pub)
	snap := &Snapshot{AnalysisID: "a1", Summary: analyzer.Summary{AnalysisID: "a1"}}

	require.NoError(t, w.Save(context.Background(), snap))
	assert.Len(t, pub.published, 1)

	pub.publishErr = errors.New("timeout")
	assert.Error(t, w.Save(context.Background(), snap))
	assert.Equal(t, []string{"timeout"}, pub.deadLetter)

	pub.connected = false
	assert.Error(t, w.Save(context.Background(), snap))
	assert.Len(t, pub.deadLetter, 1)
}
