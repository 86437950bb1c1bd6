// Package historian drains the arena action queue into Postgres and prunes
// old history on a cron schedule.
package historian

import (
	"context"
	"time"

	"github.com/jason-s-yu/arena/internal/models"
	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Source yields queued action records. Pop returns (nil, nil) when nothing
// arrived within timeout.
type Source interface {
	Pop(ctx context.Context, timeout time.Duration) (*models.ActionRecord, error)
}

// Writer persists batches and prunes history.
type Writer interface {
	InsertActions(ctx context.Context, recs []models.ActionRecord) error
	PurgeActions(ctx context.Context, cutoff time.Time) (int64, error)
}

type Config struct {
	BatchSize  int
	FlushDelay time.Duration
	Retention  time.Duration
	// PurgeSpec is a robfig/cron schedule, e.g. "@daily" or "0 4 * * *".
	PurgeSpec string
	Clock     clockwork.Clock
	Logger    *logrus.Logger
}

// Historian batches records from a Source into a Writer.
type Historian struct {
	source Source
	writer Writer
	cfg    Config

	// pending caps how many unflushed records are kept while the writer fails.
	pending int
}

func New(source Source, writer Writer, cfg Config) *Historian {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	if cfg.FlushDelay <= 0 {
		cfg.FlushDelay = 500 * time.Millisecond
	}
	if cfg.PurgeSpec == "" {
		cfg.PurgeSpec = "@daily"
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	return &Historian{source: source, writer: writer, cfg: cfg, pending: cfg.BatchSize * 50}
}

// Run drains the queue until ctx is cancelled, flushing what it holds on the
// way out. When Retention is set, old rows are purged on PurgeSpec.
func (h *Historian) Run(ctx context.Context) error {
	if h.cfg.Retention > 0 {
		c := cron.New(cron.WithLocation(time.UTC))
		if _, err := c.AddFunc(h.cfg.PurgeSpec, func() { h.Purge(ctx) }); err != nil {
			return err
		}
		c.Start()
		defer func() { <-c.Stop().Done() }()
	}

	h.cfg.Logger.WithField("batchSize", h.cfg.BatchSize).Info("arena historian started")
	h.drain(ctx)
	h.cfg.Logger.Info("arena historian shutting down")
	return nil
}

func (h *Historian) drain(ctx context.Context) {
	batch := make([]models.ActionRecord, 0, h.cfg.BatchSize)
	lastFlush := h.cfg.Clock.Now()

	for {
		if ctx.Err() != nil {
			h.flush(context.WithoutCancel(ctx), batch)
			return
		}

		rec, err := h.source.Pop(ctx, h.cfg.FlushDelay)
		if err != nil && ctx.Err() == nil {
			h.cfg.Logger.WithError(err).Error("failed to pop arena action")
			select {
			case <-ctx.Done():
			case <-h.cfg.Clock.After(h.cfg.FlushDelay):
			}
		}
		if rec != nil {
			batch = append(batch, *rec)
		}

		due := len(batch) > 0 && h.cfg.Clock.Since(lastFlush) >= h.cfg.FlushDelay
		if len(batch) >= h.cfg.BatchSize || due {
			batch = h.flush(ctx, batch)
			lastFlush = h.cfg.Clock.Now()
		}
	}
}

// flush writes batch and returns what is left to retry: nothing on success,
// the batch (trimmed to the pending cap) on failure.
func (h *Historian) flush(ctx context.Context, batch []models.ActionRecord) []models.ActionRecord {
	if len(batch) == 0 {
		return batch
	}
	if err := h.writer.InsertActions(ctx, batch); err != nil {
		h.cfg.Logger.WithError(err).WithField("count", len(batch)).Error("failed to flush arena actions")
		if over := len(batch) - h.pending; over > 0 {
			h.cfg.Logger.WithField("dropped", over).Warn("historian backlog full, dropping oldest actions")
			batch = append(batch[:0], batch[over:]...)
		}
		return batch
	}
	h.cfg.Logger.WithField("count", len(batch)).Debug("flushed arena actions")
	return batch[:0]
}

// Purge removes history older than the retention window.
func (h *Historian) Purge(ctx context.Context) {
	cutoff := h.cfg.Clock.Now().Add(-h.cfg.Retention)
	n, err := h.writer.PurgeActions(ctx, cutoff)
	if err != nil {
		h.cfg.Logger.WithError(err).Error("failed to purge arena actions")
		return
	}
	h.cfg.Logger.WithFields(logrus.Fields{"deleted": n, "cutoff": cutoff}).Info("purged arena actions")
}
