package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is one periodic task.
type Job struct {
	// Name identifies the job in logs and NextRun.
	Name string

	// Schedule is a standard cron expression or descriptor,
	// e.g. "*/5 * * * *" or "@every 30s".
	Schedule string

	Run func(ctx context.Context)
}

// Scheduler runs jobs on their schedules. A job still running when its
// next tick fires is skipped for that tick.
type Scheduler struct {
	cron    *cron.Cron
	entries map[string]cron.EntryID
	mu      sync.Mutex
	logger  *slog.Logger
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewScheduler creates an idle scheduler.
func NewScheduler() *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.Recover(cron.DiscardLogger),
			cron.SkipIfStillRunning(cron.DiscardLogger),
		)),
		entries: make(map[string]cron.EntryID),
		logger:  slog.Default().With("component", "maintenance.scheduler"),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Add registers a job. Jobs with an empty schedule are ignored.
func (s *Scheduler) Add(job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if job.Schedule == "" {
		s.logger.Debug("job has no schedule, skipping", "job", job.Name)
		return nil
	}
	if _, ok := s.entries[job.Name]; ok {
		return fmt.Errorf("job %q already registered", job.Name)
	}
	if _, err := cron.ParseStandard(job.Schedule); err != nil {
		return fmt.Errorf("invalid schedule %q for job %s: %w", job.Schedule, job.Name, err)
	}

	id, err := s.cron.AddFunc(job.Schedule, func() { s.run(job) })
	if err != nil {
		return fmt.Errorf("failed to schedule %s: %w", job.Name, err)
	}
	s.entries[job.Name] = id
	return nil
}

// Start begins running jobs. They stop when ctx is canceled or Stop is
// called.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running || len(s.entries) == 0 {
		return
	}
	s.cron.Start()
	s.running = true

	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	s.logger.Info("maintenance scheduler started", "jobs", names)

	go func() {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-s.ctx.Done():
		}
	}()
}

func (s *Scheduler) run(job Job) {
	start := time.Now()
	job.Run(s.ctx)
	s.logger.Debug("job completed",
		"job", job.Name,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// Stop stops the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancel()
	if s.running {
		<-s.cron.Stop().Done()
		s.running = false
		s.logger.Info("maintenance scheduler stopped")
	}
}

// IsRunning returns true if the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.running
}

// NextRun returns the next scheduled run of the named job, or nil when the
// job is unknown or the scheduler is not running.
func (s *Scheduler) NextRun(name string) *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.entries[name]
	if !ok || !s.running {
		return nil
	}
	next := s.cron.Entry(id).Next
	return &next
}
