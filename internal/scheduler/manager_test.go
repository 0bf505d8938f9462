package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	tick := time.NewTicker(10 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case <-deadline:
			t.Fatal("condition not reached in time")
		case <-tick.C:
			if cond() {
				return
			}
		}
	}
}

func TestEveryRunsImmediatelyAndRepeats(t *testing.T) {
	m, err := NewManager(context.Background(), zap.NewNop())
	require.NoError(t, err)
	defer m.Stop() //nolint:errcheck

	var runs atomic.Int64
	require.NoError(t, m.Every("tick", 20*time.Millisecond, func(context.Context) error {
		runs.Add(1)
		return nil
	}))
	m.Start()

	waitFor(t, func() bool { return runs.Load() >= 2 })
}

func TestAfterFiresOnce(t *testing.T) {
	m, err := NewManager(context.Background(), zap.NewNop())
	require.NoError(t, err)
	defer m.Stop() //nolint:errcheck

	var runs atomic.Int64
	require.NoError(t, m.After("once", 10*time.Millisecond, func(context.Context) error {
		runs.Add(1)
		return nil
	}))
	m.Start()

	waitFor(t, func() bool { return runs.Load() == 1 })
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int64(1), runs.Load())
}

func TestTaskErrorDoesNotStopSchedule(t *testing.T) {
	m, err := NewManager(context.Background(), zap.NewNop())
	require.NoError(t, err)
	defer m.Stop() //nolint:errcheck

	var runs atomic.Int64
	require.NoError(t, m.Every("flaky", 15*time.Millisecond, func(context.Context) error {
		runs.Add(1)
		return errors.New("boom")
	}))
	m.Start()

	waitFor(t, func() bool { return runs.Load() >= 2 })
}

func TestTaskPanicIsContained(t *testing.T) {
	m, err := NewManager(context.Background(), zap.NewNop())
	require.NoError(t, err)
	defer m.Stop() //nolint:errcheck

	var runs atomic.Int64
	require.NoError(t, m.Every("panicky", 15*time.Millisecond, func(context.Context) error {
		runs.Add(1)
		panic("boom")
	}))
	m.Start()

	waitFor(t, func() bool { return runs.Load() >= 2 })
}

func TestCancelledBaseContextSkipsTasks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m, err := NewManager(ctx, zap.NewNop())
	require.NoError(t, err)
	defer m.Stop() //nolint:errcheck

	cancel()

	var runs atomic.Int64
	require.NoError(t, m.Every("dead", 10*time.Millisecond, func(context.Context) error {
		runs.Add(1)
		return nil
	}))
	m.Start()

	time.Sleep(60 * time.Millisecond)
	assert.Zero(t, runs.Load())
}

func TestStopIsIdempotent(t *testing.T) {
	m, err := NewManager(context.Background(), zap.NewNop())
	require.NoError(t, err)

	m.Start()
	require.NoError(t, m.Stop())
	require.NoError(t, m.Stop())
}
