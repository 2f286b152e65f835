package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"cotracker/internal/scheduler"
	"cotracker/internal/tasks"
)

// Runner is a long lived component that stops when its context is cancelled
type Runner interface {
	Run(ctx context.Context) error
}

// Daemon runs the HTTP server and, when configured, the scheduled backups
type Daemon struct {
	server      Runner
	backup      tasks.Collector
	backupEvery time.Duration
	logger      *slog.Logger
}

// Config holds daemon configuration
type Config struct {
	Server         Runner
	Backup         tasks.Collector // nil disables scheduled backups
	BackupInterval time.Duration
	Logger         *slog.Logger
}

// New creates a new daemon instance
func New(cfg Config) (*Daemon, error) {
	if cfg.Server == nil {
		return nil, fmt.Errorf("server is required")
	}
	if cfg.Backup != nil && cfg.BackupInterval <= 0 {
		return nil, fmt.Errorf("backup interval must be positive, got %s", cfg.BackupInterval)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Daemon{
		server:      cfg.Server,
		backup:      cfg.Backup,
		backupEvery: cfg.BackupInterval,
		logger:      logger,
	}, nil
}

// Run blocks until ctx is cancelled or the server fails
func (d *Daemon) Run(ctx context.Context) error {
	d.logger.Info("Starting daemon")

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return d.server.Run(ctx)
	})

	if d.backup != nil {
		sched := scheduler.New(ctx, d.logger.With("component", "scheduler"))
		sched.AddTask(tasks.NewBackupTask(d.backup, d.backupEvery, d.logger.With("task", "backup")))
		sched.Start()

		g.Go(func() error {
			<-ctx.Done()
			sched.Stop()
			return nil
		})
	} else {
		d.logger.Info("Scheduled backups disabled")
	}

	err := g.Wait()
	d.logger.Info("Daemon stopped")
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
