// Package scheduler provides unified background-task management using gocron
// v2. Both the periodic sweeps and the per-assignment one-shot follow-ups run
// through the same manager, so they share one lifecycle and one panic
// discipline.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// Task is a unit of background work. Errors are logged, never fatal: one
// tick's failure must not prevent the next tick from running.
type Task func(ctx context.Context) error

// Manager owns the gocron scheduler and the base context handed to tasks.
type Manager struct {
	scheduler gocron.Scheduler
	logger    *zap.Logger
	baseCtx   context.Context

	started   bool
	startedMu sync.Mutex
}

// NewManager creates a Manager whose tasks observe baseCtx for shutdown.
func NewManager(baseCtx context.Context, logger *zap.Logger) (*Manager, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	return &Manager{scheduler: s, logger: logger, baseCtx: baseCtx}, nil
}

// Every registers a fixed-period task. The first run happens immediately.
func (m *Manager) Every(name string, interval time.Duration, task Task) error {
	_, err := m.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(m.wrap(name, task)),
		gocron.WithName(name),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return err
	}
	m.logger.Info("scheduled periodic task",
		zap.String("task", name),
		zap.Duration("interval", interval))
	return nil
}

// After registers a one-shot task that fires once after delay.
func (m *Manager) After(name string, delay time.Duration, task Task) error {
	_, err := m.scheduler.NewJob(
		gocron.OneTimeJob(gocron.OneTimeJobStartDateTime(time.Now().Add(delay))),
		gocron.NewTask(m.wrap(name, task)),
		gocron.WithName(name),
	)
	if err != nil {
		return err
	}
	m.logger.Debug("scheduled one-shot task",
		zap.String("task", name),
		zap.Duration("delay", delay))
	return nil
}

// Start begins executing registered and future jobs.
func (m *Manager) Start() {
	m.startedMu.Lock()
	defer m.startedMu.Unlock()
	if m.started {
		return
	}
	m.scheduler.Start()
	m.started = true
}

// Stop shuts the scheduler down, waiting for in-flight jobs to finish. No new
// job starts after Stop returns.
func (m *Manager) Stop() error {
	m.startedMu.Lock()
	defer m.startedMu.Unlock()
	if !m.started {
		return nil
	}
	m.started = false
	return m.scheduler.Shutdown()
}

func (m *Manager) wrap(name string, task Task) func() {
	return func() {
		defer func() {
			if r := recover(); r != nil {
				m.logger.Error("task panicked",
					zap.String("task", name),
					zap.Any("panic", r))
			}
		}()
		if err := m.baseCtx.Err(); err != nil {
			return
		}
		if err := task(m.baseCtx); err != nil {
			m.logger.Error("task failed",
				zap.String("task", name),
				zap.Error(err))
		}
	}
}
