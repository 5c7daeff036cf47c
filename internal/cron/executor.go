package cron

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"cronwork/internal/eventbus"
	logx "cronwork/pkg/logx"
)

// dispatch records the run as running and hands the job to its own goroutine.
// It never blocks on the job.
func (s *Service) dispatch(d dueTask, enforce bool) {
	start := s.now()
	runID := s.newID()
	rec := s.history.insert(HistoryEntry{RunID: runID, ID: d.id, Name: d.name, StartTime: start, Status: StatusRunning})

	s.inflight.Add(1)
	s.running.Add(1)
	s.metrics.RunStarted(d.name)

	s.log.Debug("task.started", logx.String("task", d.name), logx.String("id", d.id), logx.Int("attempt", d.attempt))
	s.publish(eventbus.TopicTaskStarted, start, RunEvent{RunID: runID, TaskID: d.id, Name: d.name, Started: start, Status: StatusRunning})

	go s.execute(d, rec, runID, start, enforce)
}

func (s *Service) execute(d dueTask, rec *historyRecord, runID string, start time.Time, enforce bool) {
	defer s.inflight.Done()
	defer s.running.Add(-1)

	if !enforce || d.maxRuntime <= 0 {
		s.complete(d, rec, runID, start, s.invoke(s.runCtx, d))
		return
	}

	ctx, cancel := context.WithTimeout(s.runCtx, d.maxRuntime)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- s.invoke(ctx, d) }()

	select {
	case err := <-done:
		s.complete(d, rec, runID, start, err)
	case <-ctx.Done():
		if !errors.Is(ctx.Err(), context.DeadlineExceeded) {
			// Shutdown: the job saw cancellation, report whatever it returns.
			s.complete(d, rec, runID, start, <-done)
			return
		}
		s.complete(d, rec, runID, start, &ExecutionError{TaskID: d.id, Task: d.name, Err: ErrMaxRuntime})
		go func() {
			err := <-done
			s.log.Warn("task.late_completion", logx.String("task", d.name), logx.String("id", d.id), logx.Err(err), logx.Duration("after", time.Since(start)))
		}()
	}
}

// invoke runs the job, converting a panic into an *ExecutionError.
func (s *Service) invoke(ctx context.Context, d dueTask) (err error) {
	defer func() {
		if r := recover(); r != nil {
			stack := string(debug.Stack())
			s.log.Error("task.panic", logx.String("task", d.name), logx.String("id", d.id), logx.Any("panic", r), logx.Stack(stack))
			err = &ExecutionError{TaskID: d.id, Task: d.name, Err: fmt.Errorf("panic: %v", r), Panic: r, Stack: stack}
		}
	}()
	if d.job == nil {
		return &ExecutionError{TaskID: d.id, Task: d.name, Err: errors.New("nil job")}
	}
	if jerr := d.job.Run(ctx); jerr != nil {
		return &ExecutionError{TaskID: d.id, Task: d.name, Err: jerr}
	}
	return nil
}

// complete finalizes the history record through its handle and emits one log
// line. A record finalized earlier (max runtime) is left alone.
func (s *Service) complete(d dueTask, rec *historyRecord, runID string, start time.Time, err error) {
	end := s.now()
	status, msg := StatusSuccess, ""
	if err != nil {
		status, msg = StatusError, errorMessage(err)
	}
	entry, ok := s.history.finish(rec, end, status, msg)
	if !ok {
		return
	}
	s.metrics.RunFinished(d.name, status, entry.Runtime)

	ev := RunEvent{RunID: runID, TaskID: d.id, Name: d.name, Started: start, Finished: end, Duration: entry.Runtime, Status: status, Error: msg}
	if err != nil {
		s.log.Error("task.failed", logx.String("task", d.name), logx.String("id", d.id), logx.String("status", string(status)), logx.Err(err), logx.Duration("dur", entry.Runtime), logx.Time("at", end))
		s.publish(eventbus.TopicTaskFailed, end, ev)
		return
	}
	s.log.Info("task.completed", logx.String("task", d.name), logx.String("id", d.id), logx.String("status", string(status)), logx.Duration("dur", entry.Runtime), logx.Time("at", end))
	s.publish(eventbus.TopicTaskFinished, end, ev)
}

func (s *Service) publish(topic string, at time.Time, ev RunEvent) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventbus.Event{Type: topic, Time: at, Data: ev})
}

func errorMessage(err error) string {
	var ee *ExecutionError
	if errors.As(err, &ee) {
		return ee.Message()
	}
	return err.Error()
}
