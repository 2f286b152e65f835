package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Task interface for scheduled tasks
type Task interface {
	Run(ctx context.Context) error
	Interval() time.Duration
	Name() string
}

// Scheduler runs each task immediately and then on its interval until
// stopped. A failed run is logged and retried on the next tick; a task is
// never run concurrently with itself.
type Scheduler struct {
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger
	tasks  []Task
	wg     sync.WaitGroup
}

// New creates a new task scheduler
func New(ctx context.Context, logger *slog.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(ctx)
	return &Scheduler{
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
		tasks:  make([]Task, 0),
	}
}

// AddTask adds a task to the scheduler
func (s *Scheduler) AddTask(task Task) {
	s.tasks = append(s.tasks, task)
}

// Start begins running all scheduled tasks
func (s *Scheduler) Start() {
	s.logger.Info("Starting task scheduler")
	for _, task := range s.tasks {
		s.wg.Add(1)
		go s.runTask(task)
	}
	s.logger.Info("Task scheduler started", "task_count", len(s.tasks))
}

// Stop cancels all tasks and waits for running ones to return
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping task scheduler")
	s.cancel()
	s.wg.Wait()
	s.logger.Info("Task scheduler stopped")
}

// runTask runs a single task on its schedule
func (s *Scheduler) runTask(task Task) {
	defer s.wg.Done()

	ticker := time.NewTicker(task.Interval())
	defer ticker.Stop()

	// Run immediately on start
	failures := s.run(task, 0)

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			failures = s.run(task, failures)
		}
	}
}

// run executes task once and returns the updated count of consecutive
// failures. Errors after the scheduler was stopped are not failures.
func (s *Scheduler) run(task Task, failures int) int {
	logger := s.logger.With("task", task.Name())
	start := time.Now()
	err := task.Run(s.ctx)
	elapsed := time.Since(start).Milliseconds()

	if s.ctx.Err() != nil {
		return failures
	}
	if err != nil {
		failures++
		logger.Error("Error running task", "error", err, "consecutive_failures", failures, "elapsed_ms", elapsed)
		return failures
	}
	if failures > 0 {
		logger.Info("Task recovered", "previous_failures", failures, "elapsed_ms", elapsed)
		return 0
	}
	logger.Debug("Task finished", "elapsed_ms", elapsed)
	return 0
}
