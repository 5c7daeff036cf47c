// Package cron is an in-process recurring task scheduler.
//
// Tasks are registered with a trigger (an interval or an expression), fire
// from a single polling loop and leave a bounded run history addressed by
// stable handles. Typical use: New, Register, Add tasks, then Boot. Reload
// recomputes next runs in place after a timezone or mode change.
package cron
