package tasks

import (
	"context"
	"log/slog"
	"time"

	"cotracker/internal/backup"
)

// Collector runs one backup collection
type Collector interface {
	Collect(ctx context.Context) (*backup.Result, error)
}

// BackupTask runs the backup pipeline on a fixed interval
type BackupTask struct {
	collector Collector
	interval  time.Duration
	logger    *slog.Logger
}

func NewBackupTask(collector Collector, interval time.Duration, logger *slog.Logger) *BackupTask {
	return &BackupTask{
		collector: collector,
		interval:  interval,
		logger:    logger,
	}
}

func (t *BackupTask) Name() string {
	return "backup"
}

func (t *BackupTask) Interval() time.Duration {
	return t.interval
}

// Run collects one backup. An unchanged database is not an error.
func (t *BackupTask) Run(ctx context.Context) error {
	result, err := t.collector.Collect(ctx)
	if err != nil {
		return err
	}

	if !result.Necessary {
		t.logger.Debug("Scheduled backup skipped, nothing changed")
		return nil
	}
	t.logger.Info("Scheduled backup uploaded", "key", result.Key, "bytes", result.Size)
	return nil
}
