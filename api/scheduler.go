/*
scheduler.go - Automated contribution housekeeping

PURPOSE:
  Periodically opens the current month's contribution records and flags
  pending records from ended months as overdue.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - SetupMonth is idempotent: members that already have a record are skipped
  - SweepOverdue re-reads each record under the member lock, so a payment
    recorded concurrently is never overwritten

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewScheduler(contributions)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: SetupMonth and SweepOverdue endpoints (manual trigger)
  - contribution/service.go: the operations being scheduled
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/warp/accrual-engine/contribution"
	"github.com/warp/accrual-engine/generic"
)

// Scheduler runs contribution housekeeping on a ticker.
type Scheduler struct {
	Contributions *contribution.Service
	CheckInterval time.Duration
	Enabled       bool
	Clock         func() time.Time

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// RunResult summarises one housekeeping pass.
type RunResult struct {
	Month         generic.Month
	Created       int
	MarkedOverdue int
}

// NewScheduler creates a new scheduler.
func NewScheduler(contributions *contribution.Service) *Scheduler {
	return &Scheduler{
		Contributions: contributions,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		Clock:         time.Now,
	}
}

// Start begins the scheduler.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}
	if s.ticker != nil {
		return
	}

	s.ticker = time.NewTicker(s.CheckInterval)
	s.stop = make(chan struct{})
	s.wg.Add(1)

	go s.run()

	log.Printf("[Scheduler] Started with check interval: %v", s.CheckInterval)
}

// Stop stops the scheduler and waits for an in-flight pass to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		s.ticker.Stop()
		close(s.stop)
		s.wg.Wait()
		s.ticker = nil
		log.Println("[Scheduler] Stopped")
	}
}

func (s *Scheduler) run() {
	defer s.wg.Done()

	// Run immediately on start
	s.checkAndProcess()

	for {
		select {
		case <-s.ticker.C:
			s.checkAndProcess()
		case <-s.stop:
			return
		}
	}
}

func (s *Scheduler) checkAndProcess() {
	if _, err := s.RunNow(context.Background()); err != nil {
		log.Printf("[Scheduler] Error: %v", err)
	}
}

// RunNow performs one pass immediately (for testing/admin).
func (s *Scheduler) RunNow(ctx context.Context) (RunResult, error) {
	now := s.now()
	res := RunResult{Month: generic.MonthOf(now)}

	created, err := s.Contributions.SetupMonth(ctx, res.Month, now)
	res.Created = len(created)
	if err != nil {
		return res, err
	}

	res.MarkedOverdue, err = s.Contributions.SweepOverdue(ctx, now)
	if err != nil {
		return res, err
	}

	if res.Created > 0 || res.MarkedOverdue > 0 {
		log.Printf("[Scheduler] %s: %d created, %d marked overdue", res.Month, res.Created, res.MarkedOverdue)
	}
	return res, nil
}

func (s *Scheduler) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now()
}
