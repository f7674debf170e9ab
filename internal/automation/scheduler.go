package automation

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// FireFunc is called when a scheduled trigger fires. The trigger string
// is a human-readable description for logging and auditing.
type FireFunc func(automationID, trigger string)

// secondsParser parses the 6-field specs the scheduler builds for daily
// time triggers. User-supplied cron expressions use the standard 5-field
// parser instead.
var secondsParser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
)

// Scheduler owns every timer-based trigger as a live cron job.
//
// On any store change it performs a full teardown and rebuild: the
// running cron is stopped, a fresh one is built from every enabled
// automation's triggers, and started. Tracking per-trigger identity
// across edits is deliberately avoided; at tens of automations the
// rebuild cost is negligible and an edit can never leave a stale job
// behind.
type Scheduler struct {
	store  *Store
	fire   FireFunc
	logger Logger

	mu   sync.Mutex
	cron *cron.Cron
}

// NewScheduler creates a scheduler. Call Rebuild to start it; it also
// subscribes itself to store changes.
func NewScheduler(store *Store, fire FireFunc, logger Logger) *Scheduler {
	if logger == nil {
		logger = noopLogger{}
	}
	s := &Scheduler{store: store, fire: fire, logger: logger}
	store.Subscribe(s.Rebuild)
	return s
}

// Rebuild tears down all scheduled jobs and recreates them from the
// store's current enabled automations.
func (s *Scheduler) Rebuild() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		s.cron.Stop()
	}
	s.cron = cron.New()

	jobs := 0
	for _, a := range s.store.All() {
		if !a.Enabled {
			continue
		}
		for i, t := range a.Triggers {
			if s.schedule(a, t) {
				jobs++
			} else if isTimerTrigger(t.Type) {
				s.logger.Warn("skipping invalid trigger",
					"automation", a.ID, "index", i, "type", t.Type)
			}
		}
	}

	s.cron.Start()
	s.logger.Debug("scheduler rebuilt", "jobs", jobs)
}

// Stop cancels all scheduled jobs. In-flight firings are unaffected.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		s.cron.Stop()
		s.cron = nil
	}
}

func isTimerTrigger(typ string) bool {
	switch typ {
	case TriggerCron, TriggerTime, TriggerDateTime, TriggerInterval:
		return true
	}
	return false
}

// schedule adds one trigger's job to the current cron. Returns false
// when the trigger is not timer-based or could not be scheduled.
// Caller must hold s.mu.
func (s *Scheduler) schedule(a Automation, t Trigger) bool {
	id := a.ID

	switch t.Type {
	case TriggerCron:
		desc := "cron:" + t.Expression
		_, err := s.cron.AddFunc(t.Expression, func() { s.fire(id, desc) })
		if err != nil {
			s.logger.Warn("invalid cron expression",
				"automation", id, "expression", t.Expression, "error", err)
			return false
		}
		return true

	case TriggerTime:
		spec, err := dailySpec(t.At)
		if err != nil {
			s.logger.Warn("invalid time trigger",
				"automation", id, "at", t.At, "error", err)
			return false
		}
		sched, err := secondsParser.Parse(spec)
		if err != nil {
			s.logger.Warn("invalid time trigger",
				"automation", id, "at", t.At, "error", err)
			return false
		}
		desc := "time:" + t.At
		s.cron.Schedule(sched, cron.FuncJob(func() { s.fire(id, desc) }))
		return true

	case TriggerDateTime:
		at, err := parseLocalDateTime(t.At)
		if err != nil {
			s.logger.Warn("invalid datetime trigger",
				"automation", id, "at", t.At, "error", err)
			return false
		}
		if !at.After(time.Now()) {
			// A one-shot in the past never fires late.
			s.logger.Warn("datetime trigger already past, skipping",
				"automation", id, "at", t.At)
			return false
		}
		desc := "datetime:" + t.At
		s.cron.Schedule(oneShotSchedule{at: at}, cron.FuncJob(func() { s.fire(id, desc) }))
		return true

	case TriggerInterval:
		if t.Every <= 0 {
			s.logger.Warn("invalid interval trigger", "automation", id, "every", t.Every)
			return false
		}
		desc := fmt.Sprintf("interval:%ds", t.Every)
		s.cron.Schedule(
			cron.Every(time.Duration(t.Every)*time.Second),
			cron.FuncJob(func() { s.fire(id, desc) }),
		)
		return true
	}

	return false
}

// dailySpec normalises HH:MM[:SS] into a 6-field daily cron spec.
// Seconds default to zero.
func dailySpec(at string) (string, error) {
	seconds, err := parseTimeOfDay(at)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d %d %d * * *", seconds%60, (seconds/60)%60, seconds/3600), nil
}

// datetime layouts, tried in order. All are interpreted in server-local
// time; the format carries no offset.
var dateTimeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

func parseLocalDateTime(s string) (time.Time, error) {
	for _, layout := range dateTimeLayouts {
		if at, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return at, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable datetime %q", s)
}

// oneShotSchedule fires exactly once at a fixed instant. After that
// instant Next returns the zero time, which the cron runner treats as
// "never again".
type oneShotSchedule struct {
	at time.Time
}

func (s oneShotSchedule) Next(t time.Time) time.Time {
	if t.Before(s.at) {
		return s.at
	}
	return time.Time{}
}
