// Package reminder manages the scheduled sides of the bot: daily check-in
// reminders per session, the weekly reflection question and the heartbeat.
// Preferences persist in the store so reminders survive restarts.
package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mosesmc52/journal-bot/internal/journal"
	"github.com/mosesmc52/journal-bot/internal/messaging"
	"github.com/mosesmc52/journal-bot/internal/models"
	"github.com/mosesmc52/journal-bot/internal/scheduler"
	"github.com/mosesmc52/journal-bot/internal/store"
)

// Cron expressions for the built-in jobs.
const (
	// heartbeatSpec fires every 15 minutes as a liveness signal.
	heartbeatSpec = "*/15 * * * *"
	// heartbeatJobName names the heartbeat job.
	heartbeatJobName = "heartbeat"
	// weeklyReflectionJobName names the weekly reflection job.
	weeklyReflectionJobName = "weekly-reflection"
)

// Weekly reflection defaults, Sunday at 13:00.
const (
	weeklyReflectionHour   = 13
	weeklyReflectionMinute = 0
)

// Service schedules and fires journaling reminders.
type Service struct {
	sched    *scheduler.Scheduler
	store    store.Store
	engine   *journal.Engine
	msg      messaging.Service
	timezone string
}

// Option configures a reminder Service.
type Option func(*Service)

// WithTimezone sets the default timezone for built-in jobs.
func WithTimezone(tz string) Option {
	return func(s *Service) { s.timezone = tz }
}

// NewService creates a reminder service.
func NewService(sched *scheduler.Scheduler, st store.Store, engine *journal.Engine, msg messaging.Service, opts ...Option) *Service {
	s := &Service{
		sched:    sched,
		store:    st,
		engine:   engine,
		msg:      msg,
		timezone: "UTC",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// dailyJobName returns the scheduler job name for a session's daily reminder.
func dailyJobName(sessionID string) string {
	return "daily-" + sessionID
}

// onceJobName returns the scheduler job name for a session's one-shot reminder.
func onceJobName(sessionID string) string {
	return "once-" + sessionID
}

// ScheduleDaily persists and registers a daily check-in reminder for a
// session. Scheduling again for the same session replaces the previous
// reminder.
func (s *Service) ScheduleDaily(ctx context.Context, sessionID string, hour, minute int, timezone string) error {
	if timezone == "" {
		timezone = s.timezone
	}
	pref := models.ReminderPref{
		SessionID: sessionID,
		Hour:      hour,
		Minute:    minute,
		Timezone:  timezone,
	}
	if err := pref.Validate(); err != nil {
		return err
	}

	if err := s.sched.ScheduleDaily(dailyJobName(sessionID), hour, minute, timezone, func() {
		s.fireCheckIn(sessionID)
	}); err != nil {
		return fmt.Errorf("failed to register daily reminder: %w", err)
	}

	if err := s.store.SaveReminderPref(pref); err != nil {
		// Roll back the job so the registered and persisted states agree.
		s.sched.Cancel(dailyJobName(sessionID))
		return fmt.Errorf("failed to persist reminder: %w", err)
	}

	slog.Info("Reminder scheduled", "sessionID", sessionID, "hour", hour, "minute", minute, "timezone", timezone)
	return nil
}

// ScheduleOnce registers a one-shot reminder after the given delay. It is not
// persisted; a restart drops it.
func (s *Service) ScheduleOnce(ctx context.Context, sessionID string, delay time.Duration) error {
	if sessionID == "" {
		return models.ErrEmptySessionID
	}
	if delay <= 0 {
		return fmt.Errorf("delay must be positive")
	}
	if err := s.sched.ScheduleOnce(onceJobName(sessionID), delay, func() {
		s.fireCheckIn(sessionID)
	}); err != nil {
		return fmt.Errorf("failed to register one-shot reminder: %w", err)
	}
	slog.Info("One-shot reminder scheduled", "sessionID", sessionID, "delay", delay)
	return nil
}

// Cancel removes a session's daily reminder from both the scheduler and the
// store. It reports whether a persisted reminder existed.
func (s *Service) Cancel(ctx context.Context, sessionID string) (bool, error) {
	s.sched.Cancel(dailyJobName(sessionID))
	s.sched.Cancel(onceJobName(sessionID))

	existed, err := s.store.DeleteReminderPref(sessionID)
	if err != nil {
		return false, fmt.Errorf("failed to delete reminder: %w", err)
	}
	if existed {
		slog.Info("Reminder cancelled", "sessionID", sessionID)
	}
	return existed, nil
}

// Restore re-registers all persisted daily reminders, called on startup.
func (s *Service) Restore(ctx context.Context) error {
	prefs, err := s.store.ListReminderPrefs()
	if err != nil {
		return fmt.Errorf("failed to list reminders: %w", err)
	}
	for _, pref := range prefs {
		sessionID := pref.SessionID
		if err := s.sched.ScheduleDaily(dailyJobName(sessionID), pref.Hour, pref.Minute, pref.Timezone, func() {
			s.fireCheckIn(sessionID)
		}); err != nil {
			slog.Error("Failed to restore reminder", "error", err, "sessionID", sessionID)
			continue
		}
		slog.Debug("Reminder restored", "sessionID", sessionID, "hour", pref.Hour, "minute", pref.Minute)
	}
	slog.Info("Reminders restored", "count", len(prefs))
	return nil
}

// StartBuiltinJobs registers the heartbeat and the weekly reflection job for
// the given session.
func (s *Service) StartBuiltinJobs(sessionID string) error {
	if err := s.sched.ScheduleCron(heartbeatJobName, heartbeatSpec, func() {
		slog.Debug("Heartbeat")
	}); err != nil {
		return fmt.Errorf("failed to schedule heartbeat: %w", err)
	}

	spec := fmt.Sprintf("CRON_TZ=%s %d %d * * 0", s.timezone, weeklyReflectionMinute, weeklyReflectionHour)
	if err := s.sched.ScheduleCron(weeklyReflectionJobName, spec, func() {
		s.fireReflection(sessionID)
	}); err != nil {
		return fmt.Errorf("failed to schedule weekly reflection: %w", err)
	}
	return nil
}

// fireCheckIn runs when a reminder triggers. It is suppressed when the user
// already journaled today.
func (s *Service) fireCheckIn(sessionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	journaled, err := s.engine.HasJournaledToday(ctx)
	if err != nil {
		slog.Error("Reminder activity check failed", "error", err, "sessionID", sessionID)
		return
	}
	if journaled {
		slog.Debug("Reminder suppressed, already journaled today", "sessionID", sessionID)
		return
	}

	actions, err := s.engine.StartCheckIn(ctx, sessionID)
	if err != nil {
		slog.Error("Reminder check-in failed", "error", err, "sessionID", sessionID)
		return
	}
	s.deliver(ctx, sessionID, actions)
}

// fireReflection runs the weekly reflection job.
func (s *Service) fireReflection(sessionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	actions, err := s.engine.StartReflection(ctx, sessionID)
	if err != nil {
		slog.Error("Weekly reflection failed", "error", err, "sessionID", sessionID)
		return
	}
	if len(actions) == 0 {
		slog.Debug("Weekly reflection skipped", "sessionID", sessionID)
		return
	}
	s.deliver(ctx, sessionID, actions)
}

func (s *Service) deliver(ctx context.Context, sessionID string, actions []models.Action) {
	for _, action := range actions {
		var err error
		switch action.Type {
		case models.ActionSay:
			err = s.msg.SendMessage(ctx, sessionID, action.Body)
		case models.ActionShowMedia:
			err = s.msg.SendMedia(ctx, sessionID, action.Body, action.URL)
		}
		if err != nil {
			slog.Error("Reminder delivery failed", "error", err, "sessionID", sessionID)
		}
	}
}
