// Package monitor periodically checks remote store reachability and reports changes.
// It never switches the data adapter mode.
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/mistrzwujo098/quiz-sub001/core"
)

const defaultInterval = time.Minute

// Pinger is satisfied by *adapter.Adapter.
type Pinger interface {
	Ping(ctx context.Context) error
	Mode() core.Mode
}

type Status struct {
	Healthy   bool
	CheckedAt time.Time
	Err       error
}

type Monitor struct {
	scheduler *gocron.Scheduler
	pinger    Pinger
	logger    core.Logger
	interval  time.Duration

	mu     sync.RWMutex
	status Status
	checks int
}

func New(pinger Pinger, logger core.Logger, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = defaultInterval
	}
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	return &Monitor{
		scheduler: s,
		pinger:    pinger,
		logger:    logger,
		interval:  interval,
		status:    Status{Healthy: true},
	}
}

// Start schedules the check, first run immediately, without blocking.
func (m *Monitor) Start() error {
	if _, err := m.scheduler.Every(m.interval).Do(m.check); err != nil {
		return err
	}
	m.scheduler.StartAsync()
	return nil
}

func (m *Monitor) Stop() {
	m.scheduler.Stop()
}

func (m *Monitor) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// Checks returns how many checks ran.
func (m *Monitor) Checks() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.checks
}

func (m *Monitor) check() {
	m.Check(context.Background())
}

// Check pings the remote store once and logs health transitions.
func (m *Monitor) Check(ctx context.Context) Status {
	err := m.pinger.Ping(ctx)
	st := Status{Healthy: err == nil, CheckedAt: time.Now().UTC(), Err: err}

	m.mu.Lock()
	prev := m.status
	m.status = st
	m.checks++
	m.mu.Unlock()

	mode := m.pinger.Mode().String()
	switch {
	case !st.Healthy:
		m.logger.Warn("remote store health check failed (mode: "+mode+")", err)
	case !prev.Healthy:
		m.logger.Info("remote store reachable again (mode: " + mode + ")")
	}
	return st
}
