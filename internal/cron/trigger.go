package cron

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	rcron "github.com/robfig/cron/v3"
)

// Trigger is either a fixed interval or an expression string.
type Trigger struct {
	Interval time.Duration
	Expr     string
}

// Every returns an interval trigger.
func Every(d time.Duration) Trigger { return Trigger{Interval: d} }

// Seconds returns an interval trigger from (possibly fractional) seconds.
func Seconds(s float64) Trigger { return Trigger{Interval: time.Duration(s * float64(time.Second))} }

// Expr returns an expression trigger: a shortcut such as "@daily", "@every 5m"
// or a five-field cron expression. A numeric string ("90") is evaluated as an
// interval in seconds.
func Expr(s string) Trigger { return Trigger{Expr: strings.TrimSpace(s)} }

func (t Trigger) IsZero() bool { return t.Interval == 0 && t.Expr == "" }

func (t Trigger) String() string {
	if t.Expr != "" {
		return t.Expr
	}
	return t.Interval.String()
}

// ParseTrigger reads a trigger from text: a bare number is seconds,
// a Go duration ("90s", "1m30s") is an interval, anything else is an expression.
func ParseTrigger(s string) (Trigger, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Trigger{}, fmt.Errorf("%w: empty", ErrUnsupportedTrigger)
	}
	if f, ok := parseSeconds(s); ok {
		if f <= 0 {
			return Trigger{}, fmt.Errorf("%w: interval must be positive: %q", ErrUnsupportedTrigger, s)
		}
		return Seconds(f), nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		if d <= 0 {
			return Trigger{}, fmt.Errorf("%w: interval must be positive: %q", ErrUnsupportedTrigger, s)
		}
		return Every(d), nil
	}
	return Expr(s), nil
}

// parseSeconds accepts finite decimal numbers only ("NaN" and "Inf" are not).
func parseSeconds(s string) (float64, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// ParseMode validates an expression mode name. Empty means compat.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeCompat:
		return ModeCompat, nil
	case ModeStandard:
		return ModeStandard, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
}

// LoadLocation resolves an IANA name. Empty means UTC.
func LoadLocation(tz string) (*time.Location, error) {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidTimezone, tz, err)
	}
	return loc, nil
}

// SecondOptional allows both 5-field and 6-field (with seconds) specs.
var exprParser = rcron.NewParser(rcron.SecondOptional | rcron.Minute | rcron.Hour | rcron.Dom | rcron.Month | rcron.Dow | rcron.Descriptor)

// NextRun computes the next activation strictly after now, evaluated in loc.
// A non-nil error means the trigger has no next run.
//
// An expression that is a plain number is an interval in seconds. In compat
// mode every other expression except the calendar shortcuts and "@every"
// fires one minute after now; standard mode rejects what it cannot parse.
func NextRun(t Trigger, loc *time.Location, now time.Time, mode Mode) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)

	expr := strings.TrimSpace(t.Expr)
	interval := t.Interval
	if expr != "" {
		f, ok := parseSeconds(expr)
		if !ok {
			return nextFromExpr(expr, local, mode)
		}
		interval = time.Duration(f * float64(time.Second))
	}
	if interval <= 0 {
		return time.Time{}, fmt.Errorf("%w: interval must be positive, got %s", ErrUnsupportedTrigger, interval)
	}
	return local.Add(interval), nil
}

func nextFromExpr(expr string, local time.Time, mode Mode) (time.Time, error) {
	if mode != "" && mode != ModeCompat && mode != ModeStandard {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
	lower := strings.ToLower(expr)
	if next, ok := calendarShortcut(lower, local); ok {
		return next, nil
	}
	if mode == ModeStandard {
		return parsedNext(expr, local)
	}
	if strings.HasPrefix(lower, "@every ") {
		if next, err := parsedNext(expr, local); err == nil {
			return next, nil
		}
	}
	// Fields are not interpreted in compat mode.
	return local.Add(time.Minute), nil
}

func parsedNext(expr string, local time.Time) (time.Time, error) {
	sched, err := exprParser.Parse(expr)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrUnsupportedTrigger, err)
	}
	next := sched.Next(local)
	if next.IsZero() {
		return time.Time{}, fmt.Errorf("%w: %q never fires", ErrUnsupportedTrigger, expr)
	}
	return next, nil
}

// calendarShortcut returns the next boundary for the named shortcuts.
// Weekly means next Monday 00:00; a Monday "now" moves to the following week.
func calendarShortcut(name string, local time.Time) (time.Time, bool) {
	y, m, d := local.Date()
	loc := local.Location()
	switch name {
	case "@yearly", "@annually":
		return time.Date(y+1, time.January, 1, 0, 0, 0, 0, loc), true
	case "@monthly":
		return time.Date(y, m+1, 1, 0, 0, 0, 0, loc), true
	case "@weekly":
		days := (8 - int(local.Weekday())) % 7
		if days == 0 {
			days = 7
		}
		return time.Date(y, m, d+days, 0, 0, 0, 0, loc), true
	case "@daily", "@midnight":
		return time.Date(y, m, d+1, 0, 0, 0, 0, loc), true
	case "@hourly":
		return time.Date(y, m, d, local.Hour()+1, 0, 0, 0, loc), true
	default:
		return time.Time{}, false
	}
}
