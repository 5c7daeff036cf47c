package cron

import (
	"sync"
	"time"
)

type task struct {
	id      string
	job     Job
	trigger Trigger
	name    string

	// tz is empty when the task inherits the scheduler default.
	tz     string
	loc    *time.Location
	locErr error

	enabled     bool
	maxRuntime  time.Duration
	maxAttempts int
	attempts    int
	lastRun     time.Time
	nextRun     time.Time // zero = none
}

func (t *task) exhausted() bool { return t.maxAttempts > 0 && t.attempts >= t.maxAttempts }

func (t *task) info() TaskInfo {
	ti := TaskInfo{
		ID:          t.id,
		Name:        t.name,
		Trigger:     t.trigger.String(),
		Timezone:    t.tz,
		Enabled:     t.enabled,
		MaxRuntime:  t.maxRuntime,
		MaxAttempts: t.maxAttempts,
		Attempts:    t.attempts,
	}
	if ti.Timezone == "" && t.loc != nil {
		ti.Timezone = t.loc.String()
	}
	if !t.lastRun.IsZero() {
		lr := t.lastRun
		ti.LastRun = &lr
	}
	if !t.nextRun.IsZero() {
		nr := t.nextRun
		ti.NextRun = &nr
	}
	return ti
}

// dueTask is what the executor needs from a task, copied out under the registry lock.
type dueTask struct {
	id         string
	name       string
	job        Job
	maxRuntime time.Duration
	attempt    int
}

// evalFunc computes a task's next run; the zero time means none.
type evalFunc func(t *task, now time.Time) time.Time

// registry keeps tasks in registration order.
type registry struct {
	mu    sync.Mutex
	tasks map[string]*task
	order []string
}

func newRegistry() *registry {
	return &registry{tasks: map[string]*task{}}
}

func (r *registry) add(t *task, now time.Time, eval evalFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t.nextRun = eval(t, now)
	r.tasks[t.id] = t
	r.order = append(r.order, t.id)
}

func (r *registry) remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tasks[id]; !ok {
		return false
	}
	delete(r.tasks, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// enable sets the flag and recomputes the next run from now.
func (r *registry) enable(id string, now time.Time, eval evalFunc) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return false
	}
	t.enabled = true
	t.nextRun = eval(t, now)
	return true
}

// disable leaves the next run untouched; it is recomputed on enable.
func (r *registry) disable(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return false
	}
	t.enabled = false
	return true
}

func (r *registry) get(id string) (TaskInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return TaskInfo{}, false
	}
	return t.info(), true
}

func (r *registry) list() []TaskInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]TaskInfo, 0, len(r.order))
	for _, id := range r.order {
		if t := r.tasks[id]; t != nil {
			out = append(out, t.info())
		}
	}
	return out
}

func (r *registry) counts() (total, enabled int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tasks {
		if t.enabled {
			enabled++
		}
	}
	return len(r.tasks), enabled
}

// due selects tasks whose next run is at or before now, in registration order.
// Attempts, last run and next run are updated before the lock is released.
func (r *registry) due(now time.Time, eval evalFunc) []dueTask {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []dueTask
	for _, id := range r.order {
		t := r.tasks[id]
		if t == nil || !t.enabled || t.exhausted() {
			continue
		}
		if t.nextRun.IsZero() || now.Before(t.nextRun) {
			continue
		}
		t.attempts++
		t.lastRun = now
		out = append(out, dueTask{id: t.id, name: t.name, job: t.job, maxRuntime: t.maxRuntime, attempt: t.attempts})
		t.nextRun = eval(t, now)
	}
	return out
}

// recompute refreshes every task's next run. Tasks without their own timezone
// pick up defaultLoc.
func (r *registry) recompute(now time.Time, defaultLoc *time.Location, eval evalFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range r.order {
		t := r.tasks[id]
		if t == nil {
			continue
		}
		if t.tz == "" {
			t.loc, t.locErr = defaultLoc, nil
		}
		t.nextRun = eval(t, now)
	}
}
