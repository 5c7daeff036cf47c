package cron

import (
	"strings"

	logx "cronwork/pkg/logx"
)

// Add registers job and returns its id. A zero trigger means every 60 seconds
// and an empty name means "cron". Add never fails: a trigger that cannot be
// evaluated is stored without a next run and logged.
func (s *Service) Add(job Job, trigger Trigger, name string, opts ...Option) string {
	if trigger.IsZero() {
		trigger = Every(DefaultTrigger)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultName
	}
	o := taskOptions{enabled: true}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	cfg, loc := s.current()
	t := &task{
		id:          s.newID(),
		job:         job,
		trigger:     trigger,
		name:        name,
		tz:          strings.TrimSpace(o.timezone),
		loc:         loc,
		enabled:     o.enabled,
		maxRuntime:  o.maxRuntime,
		maxAttempts: o.maxAttempts,
	}
	if t.tz != "" {
		t.loc, t.locErr = LoadLocation(t.tz)
	}
	s.reg.add(t, s.now(), s.evaluator(cfg.ExpressionMode))
	s.publishCounts()

	s.log.Debug("task registered", logx.String("task", name), logx.String("id", t.id), logx.String("trigger", trigger.String()), logx.Bool("enabled", t.enabled))
	return t.id
}

// Remove deletes the task. In-flight executions finish and keep their history.
func (s *Service) Remove(id string) bool {
	ok := s.reg.remove(id)
	if ok {
		s.publishCounts()
	}
	return ok
}

// Enable turns the task on and recomputes its next run from now.
func (s *Service) Enable(id string) bool {
	cfg, _ := s.current()
	ok := s.reg.enable(id, s.now(), s.evaluator(cfg.ExpressionMode))
	if ok {
		s.publishCounts()
	}
	return ok
}

func (s *Service) Disable(id string) bool {
	ok := s.reg.disable(id)
	if ok {
		s.publishCounts()
	}
	return ok
}

func (s *Service) Get(id string) (TaskInfo, bool) { return s.reg.get(id) }

// ListTasks returns copies of all tasks in registration order.
func (s *Service) ListTasks() []TaskInfo { return s.reg.list() }

// GetHistory returns up to limit entries, newest first. limit <= 0 means 20.
func (s *Service) GetHistory(limit int) []HistoryEntry {
	if limit <= 0 {
		limit = DefaultHistoryQuery
	}
	return s.history.list(limit)
}

// SetTimezone changes the default location for tasks without their own.
// Existing tasks pick it up on the next Reload.
func (s *Service) SetTimezone(tz string) error {
	loc, err := LoadLocation(tz)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.cfg.Timezone = loc.String()
	s.loc = loc
	s.mu.Unlock()
	return nil
}

// SetHistoryLimit changes the history capacity; the log is trimmed on the next tick.
func (s *Service) SetHistoryLimit(n int) {
	if n < 0 {
		n = 0
	}
	s.mu.Lock()
	s.cfg.HistoryLimit = n
	s.mu.Unlock()
	s.history.setLimit(n)
}
