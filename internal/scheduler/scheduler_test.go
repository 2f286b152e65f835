package scheduler

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type countingTask struct {
	runs     atomic.Int32
	interval time.Duration
	err      error
	// failFirst makes only the first n runs fail with err
	failFirst int32
}

func (t *countingTask) Run(ctx context.Context) error {
	n := t.runs.Add(1)
	if t.failFirst > 0 && n > t.failFirst {
		return nil
	}
	return t.err
}

func (t *countingTask) Interval() time.Duration { return t.interval }
func (t *countingTask) Name() string            { return "counting" }

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestScheduler_RunsImmediatelyAndOnInterval(t *testing.T) {
	logs := &syncBuffer{}
	s := New(context.Background(), slog.New(slog.NewTextHandler(logs, nil)))
	task := &countingTask{interval: 10 * time.Millisecond}
	s.AddTask(task)

	s.Start()
	assert.Eventually(t, func() bool { return task.runs.Load() >= 3 }, time.Second, 5*time.Millisecond)
	s.Stop()

	stopped := task.runs.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, stopped, task.runs.Load(), "no runs after Stop")
	assert.Contains(t, logs.String(), "task_count=1")
}

func TestScheduler_LogsTaskErrors(t *testing.T) {
	logs := &syncBuffer{}
	s := New(context.Background(), slog.New(slog.NewTextHandler(logs, nil)))
	task := &countingTask{interval: time.Hour, err: errors.New("upload failed")}
	s.AddTask(task)

	s.Start()
	assert.Eventually(t, func() bool { return strings.Contains(logs.String(), "Error running task") }, time.Second, 5*time.Millisecond)
	s.Stop()

	assert.EqualValues(t, 1, task.runs.Load())
	assert.Contains(t, logs.String(), "upload failed")
}

func TestScheduler_CountsFailuresUntilRecovery(t *testing.T) {
	logs := &syncBuffer{}
	s := New(context.Background(), slog.New(slog.NewTextHandler(logs, nil)))
	task := &countingTask{interval: 10 * time.Millisecond, err: errors.New("bucket unreachable"), failFirst: 2}
	s.AddTask(task)

	s.Start()
	assert.Eventually(t, func() bool { return strings.Contains(logs.String(), "Task recovered") }, time.Second, 5*time.Millisecond)
	s.Stop()

	out := logs.String()
	assert.Contains(t, out, "consecutive_failures=1")
	assert.Contains(t, out, "consecutive_failures=2")
	assert.NotContains(t, out, "consecutive_failures=3")
	assert.Contains(t, out, "previous_failures=2")
	assert.Contains(t, out, "task=counting")
}

func TestScheduler_StopsWithParentContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := New(ctx, slog.New(slog.NewTextHandler(&syncBuffer{}, nil)))
	task := &countingTask{interval: time.Hour}
	s.AddTask(task)

	s.Start()
	cancel()

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}
