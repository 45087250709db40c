// Package scheduler runs named maintenance jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/is57/scorebot/internal/logging"
)

// Job is a unit of scheduled work. The context is the one passed to Start
// and is cancelled when the bot shuts down.
type Job func(ctx context.Context)

type entry struct {
	id  cron.EntryID
	job Job
}

// Scheduler manages named cron jobs.
type Scheduler struct {
	cron    *cron.Cron
	mu      sync.Mutex
	running bool
	ctx     context.Context
	jobs    map[string]*entry
	logger  *slog.Logger
}

// New creates a scheduler evaluating specs in the given timezone. An empty or
// unknown timezone falls back to the local zone.
func New(timezone string) *Scheduler {
	logger := logging.WithComponent("scheduler")

	loc := time.Local
	if timezone != "" {
		l, err := time.LoadLocation(timezone)
		if err != nil {
			logger.Warn("Invalid timezone, using local time",
				slog.String("timezone", timezone), slog.Any("error", err))
		} else {
			loc = l
		}
	}

	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		ctx:    context.Background(),
		jobs:   make(map[string]*entry),
		logger: logger,
	}
}

// AddJob registers job under name. Jobs may be added before or after Start.
func (s *Scheduler) AddJob(name, spec string, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %q already registered", name)
	}

	e := &entry{job: job}
	id, err := s.cron.AddFunc(spec, func() { s.run(name, e) })
	if err != nil {
		return fmt.Errorf("invalid schedule %q for job %q: %w", spec, name, err)
	}
	e.id = id
	s.jobs[name] = e
	return nil
}

// Start begins running jobs. Calling Start twice is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.ctx = ctx
	s.cron.Start()
	s.running = true

	s.logger.Info("Scheduler started", slog.Int("jobs", len(s.jobs)))
}

// Stop halts the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.logger.Info("Scheduler stopped")
}

// NextRun returns the next run time of the named job, or the zero time when
// the scheduler is not running or the job is unknown.
func (s *Scheduler) NextRun(name string) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.jobs[name]
	if !ok || !s.running {
		return time.Time{}
	}
	return s.cron.Entry(e.id).Next
}

// RunNow runs the named job synchronously.
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	e, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown job %q", name)
	}
	s.run(name, e)
	return nil
}

// Jobs returns the registered job names in sorted order.
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.names()
}

func (s *Scheduler) names() []string {
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Scheduler) run(name string, e *entry) {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Scheduled job panicked",
				slog.String("job", name), slog.Any("panic", r))
		}
	}()

	start := time.Now()
	e.job(ctx)
	s.logger.Debug("Scheduled job finished",
		slog.String("job", name), slog.Duration("duration", time.Since(start)))
}
