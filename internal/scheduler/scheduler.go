// Package scheduler provides named-job scheduling for the journal bot.
//
// Recurring jobs (daily check-ins, weekly reflection prompts) run on a cron
// scheduler; one-shot jobs run on standard timers. Jobs are keyed by name and
// scheduling a name that already exists replaces the previous job, so there
// are never two concurrent jobs for the same name.
package scheduler

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// JobInfo describes one active job for introspection endpoints.
type JobInfo struct {
	Name        string    `json:"name"`
	Kind        string    `json:"kind"` // "cron" or "once"
	Spec        string    `json:"spec,omitempty"`
	ScheduledAt time.Time `json:"scheduled_at"`
	FiresAt     time.Time `json:"fires_at,omitempty"`
}

type cronEntry struct {
	id          cron.EntryID
	spec        string
	scheduledAt time.Time
}

type timerEntry struct {
	timer       *time.Timer
	scheduledAt time.Time
	firesAt     time.Time
}

// Scheduler provides cron-based recurring jobs and one-shot timers, both
// keyed by job name. The replace-cancel sequence on reschedule is guarded by
// a single lock since it is check-then-act.
type Scheduler struct {
	cron   *cron.Cron
	mu     sync.Mutex
	crons  map[string]cronEntry
	timers map[string]*timerEntry
}

// New creates and starts a scheduler. The cron parser accepts standard
// 5-field expressions with an optional CRON_TZ= prefix for per-entry
// timezones, and panics inside jobs are recovered.
func New() *Scheduler {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	c := cron.New(cron.WithParser(parser), cron.WithChain(cron.Recover(cron.DefaultLogger)))
	c.Start()
	return &Scheduler{
		cron:   c,
		crons:  make(map[string]cronEntry),
		timers: make(map[string]*timerEntry),
	}
}

// ScheduleCron registers a recurring job under the given name, replacing any
// existing job with that name. It returns an error if the expression is invalid.
func (s *Scheduler) ScheduleCron(name, expr string, task func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.removeLocked(name)

	id, err := s.cron.AddFunc(expr, task)
	if err != nil {
		slog.Error("Scheduler ScheduleCron failed", "error", err, "name", name, "expr", expr)
		return fmt.Errorf("failed to schedule cron job %s: %w", name, err)
	}
	s.crons[name] = cronEntry{id: id, spec: expr, scheduledAt: time.Now()}
	slog.Debug("Scheduler cron job registered", "name", name, "expr", expr)
	return nil
}

// ScheduleDaily registers a job that fires every day at hour:minute in the
// given timezone, replacing any existing job with that name. An empty
// timezone uses the scheduler's local time.
func (s *Scheduler) ScheduleDaily(name string, hour, minute int, timezone string, task func()) error {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return fmt.Errorf("invalid daily time %02d:%02d for job %s", hour, minute, name)
	}
	expr := fmt.Sprintf("%d %d * * *", minute, hour)
	if timezone != "" {
		expr = fmt.Sprintf("CRON_TZ=%s %s", timezone, expr)
	}
	return s.ScheduleCron(name, expr, task)
}

// ScheduleOnce registers a one-shot job that fires after delay, replacing any
// existing job with that name. The entry is removed once it fires.
func (s *Scheduler) ScheduleOnce(name string, delay time.Duration, task func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.removeLocked(name)

	now := time.Now()
	entry := &timerEntry{scheduledAt: now, firesAt: now.Add(delay)}
	entry.timer = time.AfterFunc(delay, func() {
		slog.Debug("Scheduler one-shot job firing", "name", name)
		task()
		s.mu.Lock()
		// The task may have rescheduled this name; only clean up our own entry.
		if s.timers[name] == entry {
			delete(s.timers, name)
		}
		s.mu.Unlock()
	})
	s.timers[name] = entry
	slog.Debug("Scheduler one-shot job registered", "name", name, "delay", delay)
	return nil
}

// Cancel removes the job with the given name. Returns whether a job existed.
func (s *Scheduler) Cancel(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := s.removeLocked(name)
	if removed {
		slog.Debug("Scheduler job cancelled", "name", name)
	}
	return removed
}

// removeLocked removes any cron or timer entry under name. Caller holds the lock.
func (s *Scheduler) removeLocked(name string) bool {
	removed := false
	if entry, ok := s.crons[name]; ok {
		s.cron.Remove(entry.id)
		delete(s.crons, name)
		removed = true
	}
	if entry, ok := s.timers[name]; ok {
		entry.timer.Stop()
		delete(s.timers, name)
		removed = true
	}
	return removed
}

// Has reports whether a job with the given name is registered.
func (s *Scheduler) Has(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, cronOK := s.crons[name]
	_, timerOK := s.timers[name]
	return cronOK || timerOK
}

// CountJobs returns the number of registered jobs.
func (s *Scheduler) CountJobs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.crons) + len(s.timers)
}

// ListJobs returns information about all registered jobs.
func (s *Scheduler) ListJobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobs := make([]JobInfo, 0, len(s.crons)+len(s.timers))
	for name, entry := range s.crons {
		jobs = append(jobs, JobInfo{
			Name:        name,
			Kind:        "cron",
			Spec:        entry.spec,
			ScheduledAt: entry.scheduledAt,
			FiresAt:     s.cron.Entry(entry.id).Next,
		})
	}
	for name, entry := range s.timers {
		jobs = append(jobs, JobInfo{
			Name:        name,
			Kind:        "once",
			ScheduledAt: entry.scheduledAt,
			FiresAt:     entry.firesAt,
		})
	}
	return jobs
}

// Spec returns the cron expression registered under name, or empty.
func (s *Scheduler) Spec(name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.crons[name]; ok {
		return entry.spec
	}
	return ""
}

// Stop stops the cron scheduler, waits for running jobs to finish, and
// cancels all one-shot timers.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()

	s.mu.Lock()
	defer s.mu.Unlock()
	for name, entry := range s.timers {
		entry.timer.Stop()
		delete(s.timers, name)
	}
	slog.Info("Scheduler stopped")
}
