package cron

import (
	"context"
	"time"
)

// Job is a unit of work run by the scheduler.
//
// The context is cancelled when the scheduler gives up on the run (shutdown,
// or max runtime when enforcement is on). Jobs that ignore it keep running
// but their result is discarded.
type Job interface {
	Run(ctx context.Context) error
}

// JobFunc adapts a function to Job.
type JobFunc func(ctx context.Context) error

func (f JobFunc) Run(ctx context.Context) error { return f(ctx) }

// Func adapts a zero-argument callback to Job. Failure is signalled by panicking.
func Func(fn func()) Job {
	return JobFunc(func(context.Context) error {
		fn()
		return nil
	})
}

type Status string

const (
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Mode selects how five-field expressions are evaluated.
type Mode string

const (
	// ModeCompat approximates every five-field expression as "one minute from now".
	ModeCompat Mode = "compat"
	// ModeStandard parses expressions with a real cron parser.
	ModeStandard Mode = "standard"
)

const (
	DefaultTrigger      = 60 * time.Second
	DefaultName         = "cron"
	DefaultTimezone     = "UTC"
	DefaultHistoryLimit = 100
	DefaultHistoryQuery = 20
	DefaultTick         = time.Second
)

type Config struct {
	Tick     time.Duration
	Timezone string
	// HistoryLimit is the history capacity. Zero means DefaultHistoryLimit,
	// negative keeps no history.
	HistoryLimit      int
	ExpressionMode    Mode
	EnforceMaxRuntime bool
}

func (c Config) withDefaults() Config {
	if c.Tick <= 0 {
		c.Tick = DefaultTick
	}
	if c.Timezone == "" {
		c.Timezone = DefaultTimezone
	}
	switch {
	case c.HistoryLimit == 0:
		c.HistoryLimit = DefaultHistoryLimit
	case c.HistoryLimit < 0:
		c.HistoryLimit = 0
	}
	if c.ExpressionMode == "" {
		c.ExpressionMode = ModeCompat
	}
	return c
}

// TaskInfo is a read-only copy of a registered task.
type TaskInfo struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Trigger     string        `json:"trigger"`
	Timezone    string        `json:"timezone"`
	Enabled     bool          `json:"enabled"`
	MaxRuntime  time.Duration `json:"max_runtime"`
	MaxAttempts int           `json:"max_attempts"`
	Attempts    int           `json:"attempts"`
	LastRun     *time.Time    `json:"last_run,omitempty"`
	NextRun     *time.Time    `json:"next_run,omitempty"`
}

// Exhausted reports whether the task reached its attempt ceiling.
func (t TaskInfo) Exhausted() bool { return t.MaxAttempts > 0 && t.Attempts >= t.MaxAttempts }

// HistoryEntry is a copy of one execution record.
type HistoryEntry struct {
	RunID     string        `json:"run_id"`
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	StartTime time.Time     `json:"start_time"`
	EndTime   *time.Time    `json:"end_time,omitempty"`
	Status    Status        `json:"status"`
	Message   string        `json:"message,omitempty"`
	Runtime   time.Duration `json:"runtime"`
}

// RunEvent is the payload of task.* bus events.
type RunEvent struct {
	RunID    string        `json:"run_id"`
	TaskID   string        `json:"task_id"`
	Name     string        `json:"name"`
	Started  time.Time     `json:"started"`
	Finished time.Time     `json:"finished,omitempty"`
	Duration time.Duration `json:"duration"`
	Status   Status        `json:"status"`
	Error    string        `json:"error,omitempty"`
}

// Recorder receives execution measurements. internal/metrics implements it.
type Recorder interface {
	RunStarted(task string)
	RunFinished(task string, status Status, dur time.Duration)
	Tasks(total, enabled int)
	History(size int)
}

type nopRecorder struct{}

func (nopRecorder) RunStarted(string)                         {}
func (nopRecorder) RunFinished(string, Status, time.Duration) {}
func (nopRecorder) Tasks(int, int)                            {}
func (nopRecorder) History(int)                               {}

// Option overrides a per-task default at registration.
type Option func(*taskOptions)

type taskOptions struct {
	timezone    string
	enabled     bool
	maxRuntime  time.Duration
	maxAttempts int
}

// WithTimezone pins the task to an IANA location instead of the scheduler default.
func WithTimezone(tz string) Option { return func(o *taskOptions) { o.timezone = tz } }

// WithEnabled sets the initial enabled flag (default true).
func WithEnabled(enabled bool) Option { return func(o *taskOptions) { o.enabled = enabled } }

// Disabled registers the task without scheduling it until Enable is called.
func Disabled() Option { return WithEnabled(false) }

// WithMaxAttempts caps the number of dispatches; 0 means unlimited.
func WithMaxAttempts(n int) Option {
	return func(o *taskOptions) {
		if n < 0 {
			n = 0
		}
		o.maxAttempts = n
	}
}

// WithMaxRuntime records a runtime ceiling. It is only enforced when the
// scheduler runs with EnforceMaxRuntime.
func WithMaxRuntime(d time.Duration) Option {
	return func(o *taskOptions) {
		if d < 0 {
			d = 0
		}
		o.maxRuntime = d
	}
}

// Snapshot is a point-in-time view of the scheduler for status output.
type Snapshot struct {
	Booted         bool          `json:"booted"`
	Timezone       string        `json:"timezone"`
	Mode           Mode          `json:"expression_mode"`
	Tick           time.Duration `json:"tick"`
	HistoryLimit   int           `json:"history_limit"`
	HistorySize    int           `json:"history_size"`
	Tasks          int           `json:"tasks"`
	EnabledTasks   int           `json:"enabled_tasks"`
	InFlight       int64         `json:"in_flight"`
	EnforceRuntime bool          `json:"enforce_max_runtime"`
}
