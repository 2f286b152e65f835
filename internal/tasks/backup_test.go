package tasks

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cotracker/internal/backup"
)

// mockCollector returns queued results in order
type mockCollector struct {
	results []*backup.Result
	errors  []error
	calls   int
}

func (m *mockCollector) Collect(ctx context.Context) (*backup.Result, error) {
	i := m.calls
	m.calls++
	if i < len(m.errors) && m.errors[i] != nil {
		return nil, m.errors[i]
	}
	return m.results[i], nil
}

func TestNewBackupTask(t *testing.T) {
	task := NewBackupTask(&mockCollector{}, 6*time.Hour, slog.Default())

	require.NotNil(t, task)
	assert.Equal(t, "backup", task.Name())
	assert.Equal(t, 6*time.Hour, task.Interval())
}

func TestBackupTask_Run(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	collector := &mockCollector{
		results: []*backup.Result{
			{Necessary: true, Key: "db/2026-03-14T15:09:26.tar.gz.age", Size: 2048},
			{Necessary: false},
			nil,
		},
		errors: []error{nil, nil, errors.New("bucket unavailable")},
	}
	task := NewBackupTask(collector, time.Hour, logger)

	require.NoError(t, task.Run(context.Background()))
	assert.Contains(t, logs.String(), "key=db/2026-03-14T15:09:26.tar.gz.age")

	require.NoError(t, task.Run(context.Background()))
	assert.Contains(t, logs.String(), "nothing changed")

	err := task.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket unavailable")
	assert.Equal(t, 3, collector.calls)
}
