// Package janitor deletes expired conversations on a schedule.
package janitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.io/infrasutra/threadparse/internal/metrics"
)

type Purger interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type Janitor struct {
	purger  Purger
	metrics *metrics.Metrics
	logger  *slog.Logger
	cron    *cron.Cron
	now     func() time.Time

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

// New validates schedule, a standard cron expression or a descriptor such
// as "@every 10m".
func New(purger Purger, schedule string, m *metrics.Metrics, logger *slog.Logger) (*Janitor, error) {
	j := &Janitor{
		purger:  purger,
		metrics: m,
		logger:  logger,
		now:     time.Now,
		ctx:     context.Background(),
	}
	j.cron = cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := j.cron.AddFunc(schedule, j.tick); err != nil {
		return nil, fmt.Errorf("schedule purge %q: %w", schedule, err)
	}
	return j, nil
}

func (j *Janitor) Start(ctx context.Context) {
	j.mu.Lock()
	j.ctx, j.cancel = context.WithCancel(ctx)
	j.mu.Unlock()
	j.cron.Start()
	j.logger.Info("expiry janitor started")
}

// Stop halts the schedule and waits for a running purge to finish.
func (j *Janitor) Stop() {
	j.mu.Lock()
	cancel := j.cancel
	j.mu.Unlock()
	<-j.cron.Stop().Done()
	if cancel != nil {
		cancel()
	}
}

// RunOnce deletes every conversation that has expired by now.
func (j *Janitor) RunOnce(ctx context.Context) (int64, error) {
	deleted, err := j.purger.DeleteExpired(ctx, j.now())
	if err != nil {
		return 0, fmt.Errorf("purge expired conversations: %w", err)
	}
	j.metrics.ConversationsPurged.Add(float64(deleted))
	if deleted > 0 {
		j.logger.Info("expired conversations purged", "count", deleted)
	}
	return deleted, nil
}

func (j *Janitor) tick() {
	j.mu.Lock()
	ctx := j.ctx
	j.mu.Unlock()
	if _, err := j.RunOnce(ctx); err != nil {
		j.logger.Error("purge expired conversations", "error", err)
	}
}
