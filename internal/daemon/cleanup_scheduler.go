package daemon

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/geto-app/geto/internal/domain"
	"github.com/geto-app/geto/internal/usecase"
)

// cleanupRunTimeout bounds one scheduled sweep.
const cleanupRunTimeout = 2 * time.Minute

// CleanupRunner runs one orphan sweep.
type CleanupRunner interface {
	Run(ctx context.Context) (usecase.CleanupReport, error)
}

// CleanupScheduler runs the orphan sweep on the schedule stored in the user
// preferences. An empty schedule disables it.
type CleanupScheduler struct {
	runner CleanupRunner
	prefs  domain.PreferencesRepository

	mu       sync.Mutex
	cron     *cron.Cron
	schedule string
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewCleanupScheduler constructs a stopped scheduler.
func NewCleanupScheduler(runner CleanupRunner, prefs domain.PreferencesRepository) *CleanupScheduler {
	return &CleanupScheduler{runner: runner, prefs: prefs}
}

// Start reads the schedule and begins firing sweeps.
func (s *CleanupScheduler) Start(ctx context.Context) error {
	prefs, err := s.prefs.Preferences(ctx)
	if err != nil {
		return fmt.Errorf("daemon: load cleanup schedule: %w", err)
	}
	schedule := strings.TrimSpace(prefs.CleanupSchedule)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.schedule = schedule
	if schedule == "" {
		log.Printf("[Cleanup] scheduled sweep disabled")
		return nil
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(log.Default()))))
	if _, err := c.AddFunc(schedule, s.runOnce); err != nil {
		return fmt.Errorf("daemon: invalid cleanup schedule %q: %w", schedule, err)
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.cron = c
	c.Start()
	log.Printf("[Cleanup] sweep scheduled %s", schedule)
	return nil
}

// Shutdown stops the cron and waits for a running sweep or ctx expiry.
func (s *CleanupScheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	c := s.cron
	cancel := s.cancel
	s.cron = nil
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if c == nil {
		return nil
	}

	select {
	case <-c.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Schedule returns the schedule the scheduler was started with.
func (s *CleanupScheduler) Schedule() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.schedule
}

func (s *CleanupScheduler) runOnce() {
	s.mu.Lock()
	parent := s.ctx
	s.mu.Unlock()
	if parent == nil {
		parent = context.Background()
	}

	ctx, cancel := context.WithTimeout(parent, cleanupRunTimeout)
	defer cancel()

	report, err := s.runner.Run(ctx)
	switch {
	case errors.Is(err, usecase.ErrNoInstalledPackages):
		log.Printf("[Cleanup] skipped: device reported no installed packages")
	case err != nil:
		log.Printf("[Cleanup] sweep failed: %v", err)
	case len(report.RemovedPackages) > 0:
		log.Printf("[Cleanup] removed %d entries of %d uninstalled packages", report.RemovedEntries, len(report.RemovedPackages))
	}
}
