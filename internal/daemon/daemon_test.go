package daemon

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cotracker/internal/backup"
)

type blockingServer struct {
	started atomic.Bool
	err     error
}

func (s *blockingServer) Run(ctx context.Context) error {
	s.started.Store(true)
	if s.err != nil {
		return s.err
	}
	<-ctx.Done()
	return nil
}

type countingCollector struct {
	calls atomic.Int32
}

func (c *countingCollector) Collect(ctx context.Context) (*backup.Result, error) {
	c.calls.Add(1)
	return &backup.Result{}, nil
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)

	_, err = New(Config{Server: &blockingServer{}, Backup: &countingCollector{}})
	assert.Error(t, err, "backup without interval")

	d, err := New(Config{Server: &blockingServer{}})
	require.NoError(t, err)
	assert.Nil(t, d.backup)
}

func TestDaemon_RunsServerAndBackups(t *testing.T) {
	server := &blockingServer{}
	collector := &countingCollector{}
	d, err := New(Config{
		Server:         server,
		Backup:         collector,
		BackupInterval: 10 * time.Millisecond,
		Logger:         slog.New(slog.DiscardHandler),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	assert.Eventually(t, func() bool { return collector.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	assert.True(t, server.started.Load())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("daemon did not stop")
	}
}

func TestDaemon_ServerFailureStopsRun(t *testing.T) {
	d, err := New(Config{
		Server:         &blockingServer{err: errors.New("address in use")},
		Backup:         &countingCollector{},
		BackupInterval: time.Hour,
		Logger:         slog.New(slog.DiscardHandler),
	})
	require.NoError(t, err)

	err = d.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "address in use")
}
