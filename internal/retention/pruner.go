// Package retention deletes heatmap rows older than the configured window
// on a cron schedule.
package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/jonesrussell/north-cloud/spectre/internal/platform/logger"
	"github.com/robfig/cron/v3"
)

const pruneTimeout = 5 * time.Minute

// Store deletes heatmap rows created before cutoff.
type Store interface {
	PruneHeatmap(ctx context.Context, cutoff time.Time) (int64, error)
}

// Observer is told how many rows each run deleted. May be nil.
type Observer interface {
	ObservePrune(rows int64)
}

// Pruner runs PruneHeatmap on a cron schedule.
type Pruner struct {
	store    Store
	observer Observer
	log      logger.Logger
	keep     time.Duration
	schedule string
	now      func() time.Time
	cron     *cron.Cron
}

// NewPruner creates a Pruner keeping keepDays of heatmap data.
func NewPruner(store Store, observer Observer, log logger.Logger, keepDays int, schedule string) *Pruner {
	return &Pruner{
		store:    store,
		observer: observer,
		log:      log,
		keep:     time.Duration(keepDays) * 24 * time.Hour,
		schedule: schedule,
		now:      time.Now,
		cron:     cron.New(cron.WithLocation(time.UTC)),
	}
}

// Start registers the job and starts the scheduler.
func (p *Pruner) Start() error {
	if _, err := p.cron.AddFunc(p.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), pruneTimeout)
		defer cancel()
		_, _ = p.RunOnce(ctx)
	}); err != nil {
		return fmt.Errorf("schedule heatmap retention %q: %w", p.schedule, err)
	}

	p.cron.Start()
	p.log.Info("Heatmap retention scheduled",
		logger.String("schedule", p.schedule),
		logger.Duration("keep", p.keep),
	)
	return nil
}

// Stop stops the scheduler and waits for a running job to finish.
func (p *Pruner) Stop() {
	<-p.cron.Stop().Done()
}

// RunOnce deletes rows older than the retention window.
func (p *Pruner) RunOnce(ctx context.Context) (int64, error) {
	cutoff := p.now().UTC().Add(-p.keep)

	n, err := p.store.PruneHeatmap(ctx, cutoff)
	if err != nil {
		p.log.Error("Heatmap retention failed", logger.Error(err))
		return 0, err
	}

	if p.observer != nil {
		p.observer.ObservePrune(n)
	}
	p.log.Info("Heatmap retention completed",
		logger.Int64("deleted", n),
		logger.String("cutoff", cutoff.Format(time.RFC3339)),
	)
	return n, nil
}
