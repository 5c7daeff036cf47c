package cron

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedTrigger = errors.New("unsupported trigger")
	ErrInvalidTimezone    = errors.New("invalid timezone")
	ErrInvalidMode        = errors.New("invalid expression mode")
	ErrMaxRuntime         = errors.New("max runtime exceeded")
)

// ExecutionError wraps a failed run: the job's own error or a recovered panic.
type ExecutionError struct {
	TaskID string
	Task   string
	Err    error
	// Panic holds the recovered value when the job panicked.
	Panic any
	Stack string
}

func (e *ExecutionError) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("task %q panicked: %v", e.Task, e.Panic)
	}
	return fmt.Sprintf("task %q: %v", e.Task, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// Message is the text stored in history: the underlying cause without the task prefix.
func (e *ExecutionError) Message() string {
	if e.Panic != nil {
		return fmt.Sprint(e.Panic)
	}
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}
