package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/modelsite/modelsite-go/pkg/metadatastore"
)

func TestAddValidatesSchedule(t *testing.T) {
	s := NewService(zaptest.NewLogger(t))
	noop := func(context.Context) error { return nil }

	_, err := s.Add("bad", "not a cron", noop)
	assert.Error(t, err)

	_, err = s.Add("", "@daily", noop)
	assert.Error(t, err)

	job, err := s.Add("nightly", "@daily", noop)
	require.NoError(t, err)
	assert.Equal(t, "nightly", job.Name)
	assert.NotEmpty(t, job.ID)
	require.NotNil(t, job.NextRun)
	assert.True(t, job.NextRun.After(time.Now()))

	_, err = s.Add("nightly", "0 3 * * *", noop)
	assert.Error(t, err, "duplicate names are rejected")
}

func TestExecuteRecordsOutcome(t *testing.T) {
	s := NewService(zaptest.NewLogger(t))
	ctx := context.Background()

	calls := 0
	_, err := s.Add("ok", "@hourly", func(context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	_, err = s.Add("broken", "@hourly", func(context.Context) error {
		return errors.New("disk full")
	})
	require.NoError(t, err)

	require.NoError(t, s.Execute(ctx, "ok"))
	assert.Equal(t, 1, calls)
	assert.EqualError(t, s.Execute(ctx, "broken"), "disk full")
	assert.Error(t, s.Execute(ctx, "missing"))

	jobs := s.List()
	require.Len(t, jobs, 2)
	assert.Equal(t, "broken", jobs[0].Name)
	assert.Equal(t, "disk full", jobs[0].LastError)
	assert.NotNil(t, jobs[0].LastRun)
	assert.Equal(t, "ok", jobs[1].Name)
	assert.Empty(t, jobs[1].LastError)
	assert.NotNil(t, jobs[1].LastRun)
}

func TestRemove(t *testing.T) {
	s := NewService(zaptest.NewLogger(t))
	_, err := s.Add("job", "@daily", func(context.Context) error { return nil })
	require.NoError(t, err)

	require.NoError(t, s.Remove("job"))
	assert.Empty(t, s.List())
	assert.Error(t, s.Remove("job"))
}

func TestMaintenanceOptimizesStore(t *testing.T) {
	ctx := context.Background()
	store, err := metadatastore.NewSQLiteStore(ctx, filepath.Join(t.TempDir(), "test.db"), zaptest.NewLogger(t))
	require.NoError(t, err)
	defer store.Close()

	s := NewService(zaptest.NewLogger(t))
	_, err = s.AddMaintenance(store, "@daily")
	require.NoError(t, err)

	s.Start()
	require.NoError(t, s.Execute(ctx, MaintenanceJobName))

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, s.Stop(stopCtx))
}
