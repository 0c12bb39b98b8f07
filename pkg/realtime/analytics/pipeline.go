package analytics

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"callqa-server/pkg/textutil"
)

// recentWindow is how many scores the recent average covers.
const recentWindow = 50

// Processor defines a stage in the analytics pipeline.
type Processor interface {
	Process(ctx context.Context, event *AnalysisEvent, state *State) error
}

// State holds the rolling aggregates for one source. Alerts only holds the
// alerts raised for the event currently being processed.
type State struct {
	Source string

	TotalAnalyses     int
	ScoreSum          float64
	RecentScores      []float64
	ObjectiveAchieved int
	DegradedAnalyses  int
	AlertCount        int

	Alerts      []Alert
	LastUpdated time.Time
}

// RecentAverage is the mean of the scores in the recent window.
func (s *State) RecentAverage() float64 {
	if len(s.RecentScores) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range s.RecentScores {
		sum += v
	}
	return sum / float64(len(s.RecentScores))
}

// Stats returns the aggregates in their published form.
func (s *State) Stats() Stats {
	stats := Stats{
		TotalAnalyses:      s.TotalAnalyses,
		RecentAverageScore: textutil.Round(s.RecentAverage(), 1),
		DegradedAnalyses:   s.DegradedAnalyses,
		AlertCount:         s.AlertCount,
	}
	if s.TotalAnalyses > 0 {
		stats.AverageScore = textutil.Round(s.ScoreSum/float64(s.TotalAnalyses), 1)
		stats.ObjectiveRate = textutil.Round(float64(s.ObjectiveAchieved)/float64(s.TotalAnalyses), 3)
	}
	return stats
}

func (s *State) clone() *State {
	c := *s
	c.RecentScores = append([]float64(nil), s.RecentScores...)
	c.Alerts = append([]Alert(nil), s.Alerts...)
	return &c
}

// StateStore abstracts per-source state persistence.
type StateStore interface {
	Get(source string) (*State, error)
	Set(source string, state *State) error
	Delete(source string) error
}

// InMemoryStateStore keeps state in a map.
type InMemoryStateStore struct {
	mu    sync.RWMutex
	items map[string]*State
}

// NewInMemoryStateStore creates a new in-memory store.
func NewInMemoryStateStore() *InMemoryStateStore {
	return &InMemoryStateStore{items: make(map[string]*State)}
}

func (s *InMemoryStateStore) Get(source string) (*State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.items[source]
	if !ok {
		return nil, nil
	}
	return state.clone(), nil
}

func (s *InMemoryStateStore) Set(source string, state *State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[source] = state.clone()
	return nil
}

func (s *InMemoryStateStore) Delete(source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, source)
	return nil
}

// Pipeline runs processors over each event in order and keeps the state.
type Pipeline struct {
	logger     *logrus.Logger
	processors []Processor
	store      StateStore

	// serialises read-modify-write of a source's state
	mu sync.Mutex
}

// NewPipeline constructs a pipeline with processors and state store.
func NewPipeline(logger *logrus.Logger, store StateStore, processors ...Processor) *Pipeline {
	if store == nil {
		store = NewInMemoryStateStore()
	}
	return &Pipeline{
		logger:     logger,
		processors: processors,
		store:      store,
	}
}

// DefaultPipeline has the trend, stats and alert processors.
func DefaultPipeline(logger *logrus.Logger) *Pipeline {
	return NewPipeline(logger, nil,
		NewTrendProcessor(15),
		NewStatsProcessor(),
		NewAlertProcessor(DefaultAlertRules()),
	)
}

// Process executes the pipeline for one analysis.
func (p *Pipeline) Process(ctx context.Context, event *AnalysisEvent) (*Snapshot, error) {
	if event == nil || event.Result == nil {
		return nil, nil
	}
	source := event.Source
	if source == "" {
		source = "unknown"
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	state, err := p.store.Get(source)
	if err != nil {
		return nil, err
	}
	if state == nil {
		state = &State{
			Source:       source,
			RecentScores: make([]float64, 0, recentWindow),
		}
	}
	state.Alerts = state.Alerts[:0]

	for _, processor := range p.processors {
		if err := processor.Process(ctx, event, state); err != nil {
			p.logger.WithError(err).WithField("analysis_id", event.Result.AnalysisID).Warn("Analytics processor failed")
		}
	}

	state.AlertCount += len(state.Alerts)
	state.LastUpdated = time.Now()

	if err := p.store.Set(source, state); err != nil {
		return nil, err
	}

	alerts := append([]Alert{}, state.Alerts...)
	return &Snapshot{
		AnalysisID: event.Result.AnalysisID,
		Source:     source,
		Filename:   event.Filename,
		Summary:    event.Result.Summary(),
		Alerts:     alerts,
		Stats:      state.Stats(),
		UpdatedAt:  state.LastUpdated,
	}, nil
}

// Stats returns the current aggregates for a source.
func (p *Pipeline) Stats(source string) (Stats, error) {
	state, err := p.store.Get(source)
	if err != nil || state == nil {
		return Stats{}, err
	}
	return state.Stats(), nil
}

// Reset drops the aggregates for a source.
func (p *Pipeline) Reset(source string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.store.Delete(source)
}
