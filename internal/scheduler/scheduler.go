package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/NAKAZUKA/fin-report-bot/internal/config"
	"github.com/NAKAZUKA/fin-report-bot/internal/metrics"
)

// CycleRunner executes one full acquisition cycle
type CycleRunner interface {
	ProcessAll(ctx context.Context)
}

// Scheduler runs the acquisition pipeline once at startup and then on a
// fixed interval. No jitter, no backoff: failure tolerance comes from
// idempotent markers and same-day filtering, not from adaptive retries.
type Scheduler struct {
	cron       *cron.Cron
	entryID    cron.EntryID
	config     *config.SchedulerConfig
	dispatcher CycleRunner
	metrics    *metrics.Metrics
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	isRunning  bool
	mu         sync.RWMutex
}

// NewScheduler creates a new scheduler
func NewScheduler(cfg *config.SchedulerConfig, d CycleRunner, m *metrics.Metrics) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron:       cron.New(cron.WithSeconds()),
		config:     cfg,
		dispatcher: d,
		metrics:    m,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start starts the scheduler and kicks off the initial cycle
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("scheduler is already running")
	}

	if s.ctx.Err() != nil {
		s.ctx, s.cancel = context.WithCancel(context.Background())
	}

	schedule := fmt.Sprintf("0 */%d * * * *", s.config.IntervalMinutes)

	entryID, err := s.cron.AddFunc(schedule, s.runCycle)
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	s.entryID = entryID
	s.cron.Start()
	s.isRunning = true

	// First check happens immediately, not at the first tick.
	go s.runCycle()

	logrus.Infof("Scheduler started with interval: %d minutes", s.config.IntervalMinutes)
	return nil
}

// Stop stops the scheduler and waits for the running cycle to finish
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return nil
	}

	// Cancel context to stop any running cycle
	s.cancel()

	ctx := s.cron.Stop()
	s.cron.Remove(s.entryID)

	select {
	case <-ctx.Done():
		logrus.Info("Scheduler stopped gracefully")
	case <-time.After(30 * time.Second):
		logrus.Warn("Scheduler stop timeout, forcing shutdown")
	}

	s.isRunning = false
	return nil
}

// IsRunning returns whether the scheduler is running
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// runCycle executes one polling cycle
func (s *Scheduler) runCycle() {
	s.wg.Add(1)
	defer s.wg.Done()

	s.mu.RLock()
	if !s.isRunning {
		s.mu.RUnlock()
		logrus.Info("Scheduler not running, skipping cycle")
		return
	}
	ctx := s.ctx
	s.mu.RUnlock()

	startTime := time.Now()
	s.metrics.PollCycles.Inc()

	s.dispatcher.ProcessAll(ctx)

	duration := time.Since(startTime)
	s.metrics.CycleDuration.Observe(duration.Seconds())
	logrus.Infof("Polling cycle completed in %v", duration)
}

// RunOnce runs the acquisition cycle once (for manual triggering)
func (s *Scheduler) RunOnce() error {
	logrus.Info("Running acquisition cycle once")
	s.runCycle()
	return nil
}

// GetNextRun returns the time of the next scheduled run
func (s *Scheduler) GetNextRun() time.Time {
	if !s.IsRunning() {
		return time.Time{}
	}

	entry := s.cron.Entry(s.entryID)
	return entry.Next
}

// GetLastRun returns the time of the last run
func (s *Scheduler) GetLastRun() time.Time {
	if !s.IsRunning() {
		return time.Time{}
	}

	entry := s.cron.Entry(s.entryID)
	return entry.Prev
}

// Wait waits for in-flight cycles to finish
func (s *Scheduler) Wait() {
	s.wg.Wait()
}
