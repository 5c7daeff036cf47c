package cron

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"cronwork/internal/eventbus"
	logx "cronwork/pkg/logx"
)

// Service owns the task registry and the execution history.
// All exported methods are safe for concurrent use.
type Service struct {
	mu  sync.Mutex
	cfg Config
	loc *time.Location

	log     logx.Logger
	bus     eventbus.Bus
	metrics Recorder
	now     func() time.Time
	newID   func() string

	reg     *registry
	history *historyLog

	booted   atomic.Bool
	cancel   context.CancelFunc
	loopDone chan struct{}

	// runCtx is the parent of every job context; it is cancelled when Stop gives up waiting.
	runCtx    context.Context
	runCancel context.CancelFunc
	inflight  sync.WaitGroup
	running   atomic.Int64
}

type ServiceOption func(*Service)

// WithClock replaces time.Now. Tests use it to drive ticks deterministically.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func WithRecorder(r Recorder) ServiceOption {
	return func(s *Service) {
		if r != nil {
			s.metrics = r
		}
	}
}

func WithIDGenerator(fn func() string) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.newID = fn
		}
	}
}

func New(cfg Config, log logx.Logger, bus eventbus.Bus, opts ...ServiceOption) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	cfg = cfg.withDefaults()

	loc, err := LoadLocation(cfg.Timezone)
	if err != nil {
		log.Warn("invalid timezone, using UTC", logx.String("tz", cfg.Timezone), logx.Err(err))
		cfg.Timezone = DefaultTimezone
		loc = time.UTC
	}
	if mode, err := ParseMode(string(cfg.ExpressionMode)); err != nil {
		log.Warn("invalid expression mode, using compat", logx.Err(err))
		cfg.ExpressionMode = ModeCompat
	} else {
		cfg.ExpressionMode = mode
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	s := &Service{
		cfg:       cfg,
		loc:       loc,
		log:       log,
		bus:       bus,
		metrics:   nopRecorder{},
		now:       time.Now,
		newID:     uuid.NewString,
		reg:       newRegistry(),
		history:   newHistoryLog(cfg.HistoryLimit),
		runCtx:    runCtx,
		runCancel: runCancel,
	}
	for _, o := range opts {
		if o != nil {
			o(s)
		}
	}
	return s
}

func (s *Service) current() (Config, *time.Location) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg, s.loc
}

// Register announces the scheduler to the host. It has no other side effect.
func (s *Service) Register() {
	cfg, _ := s.current()
	s.log.Info("cron system registered", logx.String("tz", cfg.Timezone), logx.String("mode", string(cfg.ExpressionMode)))
}

// Boot starts the polling loop. Only the first call has an effect; it reports
// whether the loop was started. The loop stops when ctx is done or on Stop.
func (s *Service) Boot(ctx context.Context) bool {
	if !s.booted.CompareAndSwap(false, true) {
		return false
	}
	s.mu.Lock()
	tick := s.cfg.Tick
	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.loopDone = done
	s.mu.Unlock()

	go s.loop(loopCtx, tick, done)

	total, _ := s.reg.counts()
	s.log.Info("scheduler booted", logx.Duration("tick", tick), logx.Int("tasks", total))
	return true
}

// Reload recomputes every task's next run from now without restarting the loop.
// Tasks without their own timezone pick up the current default.
func (s *Service) Reload() {
	cfg, loc := s.current()
	s.reg.recompute(s.now(), loc, s.evaluator(cfg.ExpressionMode))
	total, _ := s.reg.counts()
	s.log.Info("cron system reloaded", logx.Int("tasks", total), logx.String("tz", cfg.Timezone))
}

// Stop cancels the loop and waits for in-flight executions until ctx is done.
// Executions still running after that get their context cancelled.
func (s *Service) Stop(ctx context.Context) {
	start := time.Now()
	s.log.Info("stop requested")

	s.mu.Lock()
	cancel := s.cancel
	done := s.loopDone
	s.cancel = nil
	s.mu.Unlock()

	// done closes promptly since the loop only blocks on the ticker. No tick
	// may dispatch once inflight.Wait has started.
	if cancel != nil {
		cancel()
		<-done
	}

	waitCh := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(waitCh)
	}()
	select {
	case <-waitCh:
	case <-ctx.Done():
		s.log.Warn("stop timed out, cancelling in-flight runs", logx.Int64("in_flight", s.running.Load()))
	}
	s.runCancel()

	s.log.Info("service stopped", logx.Duration("took", time.Since(start)))
}

// Apply updates runtime settings. Timezone or expression mode changes trigger
// a Reload. The tick period is fixed once booted.
func (s *Service) Apply(cfg Config) {
	cfg = cfg.withDefaults()

	var warns []string
	s.mu.Lock()
	old := s.cfg
	loc := s.loc
	if strings.TrimSpace(cfg.Timezone) != old.Timezone {
		if l, err := LoadLocation(cfg.Timezone); err != nil {
			warns = append(warns, err.Error())
			cfg.Timezone = old.Timezone
		} else {
			cfg.Timezone = strings.TrimSpace(cfg.Timezone)
			loc = l
		}
	}
	if mode, err := ParseMode(string(cfg.ExpressionMode)); err != nil {
		warns = append(warns, err.Error())
		cfg.ExpressionMode = old.ExpressionMode
	} else {
		cfg.ExpressionMode = mode
	}
	tickChanged := cfg.Tick != old.Tick && s.booted.Load()
	if tickChanged {
		cfg.Tick = old.Tick
	}
	s.cfg = cfg
	s.loc = loc
	s.mu.Unlock()

	for _, w := range warns {
		s.log.Warn("config value rejected", logx.String("reason", w))
	}
	if tickChanged {
		s.log.Warn("tick change requires restart", logx.Duration("tick", old.Tick))
	}

	s.history.setLimit(cfg.HistoryLimit)

	if cfg.Timezone != old.Timezone || cfg.ExpressionMode != old.ExpressionMode {
		s.Reload()
	}
}

func (s *Service) Snapshot() Snapshot {
	cfg, _ := s.current()
	total, enabled := s.reg.counts()
	return Snapshot{
		Booted:         s.booted.Load(),
		Timezone:       cfg.Timezone,
		Mode:           cfg.ExpressionMode,
		Tick:           cfg.Tick,
		HistoryLimit:   s.history.capacity(),
		HistorySize:    s.history.size(),
		Tasks:          total,
		EnabledTasks:   enabled,
		InFlight:       s.running.Load(),
		EnforceRuntime: cfg.EnforceMaxRuntime,
	}
}

func (s *Service) loop(ctx context.Context, tick time.Duration, done chan struct{}) {
	defer close(done)

	s.tick(s.now())

	t := time.NewTicker(tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.tick(s.now())
		}
	}
}

// tick dispatches every due task against a single "now" and trims history.
func (s *Service) tick(now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("tick panic", logx.Any("panic", r), logx.Stack(logx.StackTrace(3, 16)))
		}
	}()

	cfg, _ := s.current()
	for _, d := range s.reg.due(now, s.evaluator(cfg.ExpressionMode)) {
		s.dispatch(d, cfg.EnforceMaxRuntime)
	}
	s.metrics.History(s.history.trim())
}

// evaluator returns the next-run function for mode. Failures are logged and
// leave the task without a next run.
func (s *Service) evaluator(mode Mode) evalFunc {
	return func(t *task, now time.Time) time.Time {
		if t.locErr != nil {
			s.log.Warn("next run unavailable", logx.String("task", t.name), logx.String("id", t.id), logx.Err(t.locErr))
			return time.Time{}
		}
		next, err := NextRun(t.trigger, t.loc, now, mode)
		if err != nil {
			s.log.Warn("next run unavailable", logx.String("task", t.name), logx.String("id", t.id), logx.String("trigger", t.trigger.String()), logx.Err(err))
			return time.Time{}
		}
		return next
	}
}

func (s *Service) publishCounts() {
	total, enabled := s.reg.counts()
	s.metrics.Tasks(total, enabled)
}
