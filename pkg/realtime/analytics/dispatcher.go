package analytics

import (
	"context"
	"slices"
	"sync"

	"github.com/sirupsen/logrus"

	"callqa-server/pkg/util"
)

// Subscriber is told about every finished analysis after aggregation.
type Subscriber interface {
	OnAnalysis(snapshot *Snapshot)
}

// SnapshotWriter hands snapshots to durable delivery, e.g. a broker.
type SnapshotWriter interface {
	Save(ctx context.Context, snapshot *Snapshot) error
}

// Dispatcher aggregates finished analyses and fans the snapshots out. A
// subscriber that panics is logged and skipped; the others still run.
type Dispatcher struct {
	logger   *logrus.Logger
	pipeline *Pipeline
	panics   *util.PanicHandler

	mu          sync.RWMutex
	subscribers []Subscriber
	writer      SnapshotWriter
}

// NewDispatcher creates a dispatcher. A nil pipeline uses DefaultPipeline.
func NewDispatcher(logger *logrus.Logger, pipeline *Pipeline) *Dispatcher {
	if pipeline == nil {
		pipeline = DefaultPipeline(logger)
	}
	return &Dispatcher{
		logger:   logger,
		pipeline: pipeline,
		panics:   util.NewPanicHandler(logger),
	}
}

// SetSnapshotWriter sets where snapshots are written before subscribers see
// them. Nil disables writing.
func (d *Dispatcher) SetSnapshotWriter(writer SnapshotWriter) {
	d.mu.Lock()
	d.writer = writer
	d.mu.Unlock()
}

// AddSubscriber appends a subscriber; subscribers run in the order added.
func (d *Dispatcher) AddSubscriber(sub Subscriber) {
	d.mu.Lock()
	d.subscribers = append(d.subscribers, sub)
	d.mu.Unlock()
}

// RemoveSubscriber drops sub, keeping the order of the rest.
func (d *Dispatcher) RemoveSubscriber(sub Subscriber) {
	d.mu.Lock()
	d.subscribers = slices.DeleteFunc(d.subscribers, func(s Subscriber) bool { return s == sub })
	d.mu.Unlock()
}

// HandleAnalysis folds one finished analysis into its source's aggregates,
// writes the snapshot and notifies subscribers. It returns nil when the
// event could not be processed.
func (d *Dispatcher) HandleAnalysis(ctx context.Context, event *AnalysisEvent) *Snapshot {
	snapshot, err := d.pipeline.Process(ctx, event)
	if err != nil {
		d.logger.WithError(err).Error("Failed to aggregate analysis")
		return nil
	}
	if snapshot == nil {
		return nil
	}

	d.mu.RLock()
	writer := d.writer
	subscribers := slices.Clone(d.subscribers)
	d.mu.RUnlock()

	log := d.logger.WithFields(logrus.Fields{
		"analysis_id": snapshot.AnalysisID,
		"source":      snapshot.Source,
	})
	if writer != nil {
		if err := writer.Save(ctx, snapshot); err != nil {
			log.WithError(err).Warn("Failed to deliver analysis snapshot")
		}
	}

	for _, sub := range subscribers {
		d.panics.Guard("analytics_subscriber", func() { sub.OnAnalysis(snapshot) })
	}
	log.WithField("subscribers", len(subscribers)).Debug("Analysis snapshot dispatched")
	return snapshot
}
