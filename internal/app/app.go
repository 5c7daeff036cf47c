package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"cronwork/internal/admin"
	"cronwork/internal/config"
	"cronwork/internal/cron"
	"cronwork/internal/eventbus"
	"cronwork/internal/metrics"
	rtsup "cronwork/internal/runtime/supervisor"
	"cronwork/internal/storage"
	logx "cronwork/pkg/logx"
)

type App struct {
	cfgm *ConfigManager
	sup  *Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store
	prom  *metrics.Metrics

	sched *cron.Service
	admin *admin.Service

	jobsMu sync.Mutex
	jobIDs map[string]string // config job name -> task id
}

// NewApp loads and validates the config and wires every component. Nothing
// runs until Start.
func NewApp(cfgPath string) (*App, error) {
	cfgm := NewConfigManager(cfgPath)
	cfgm.SetValidator(func(_ context.Context, cfg *Config) error { return validateConfig(cfg) })
	cfg, err := cfgm.Load(context.Background())
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLoggingConfig(cfg))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))
	log = log.With(logx.String("comp", "app"))

	bus := eventbus.New()

	var store storage.Store
	if sc, enabled, err := mapStorageConfig(cfg); err != nil {
		return nil, err
	} else if enabled {
		st, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
		if err != nil {
			return nil, err
		}
		store = st
		log.Info("storage enabled", logx.String("driver", sc.Driver))
	}

	cronCfg, err := mapCronConfig(cfg)
	if err != nil {
		return nil, err
	}
	var (
		prom      *metrics.Metrics
		schedOpts []cron.ServiceOption
	)
	if cfg.Metrics.Enabled {
		prom = metrics.New()
		schedOpts = append(schedOpts, cron.WithRecorder(prom))
	}
	sched := cron.New(cronCfg, log.With(logx.String("comp", "cron")), bus, schedOpts...)

	a := &App{
		cfgm:   cfgm,
		log:    log,
		logs:   logSvc,
		bus:    bus,
		store:  store,
		prom:   prom,
		sched:  sched,
		jobIDs: map[string]string{},
	}

	adminCfg, err := mapAdminConfig(cfg)
	if err != nil {
		return nil, err
	}
	adminOpts := []admin.Option{admin.WithReloader(a.Reload)}
	if prom != nil {
		adminOpts = append(adminOpts, admin.WithMetrics(prom.Handler()))
	}
	if store != nil {
		adminOpts = append(adminOpts, admin.WithRunLog(store))
	}
	a.admin = admin.New(adminCfg, sched, log.With(logx.String("comp", "admin")), adminOpts...)

	return a, nil
}

// Scheduler exposes the scheduler so embedders can register their own jobs.
func (a *App) Scheduler() *cron.Service { return a.sched }

// Done is closed when the app supervisor context is cancelled (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// Supervisor returns a snapshot of the app goroutines.
func (a *App) Supervisor() rtsup.Snapshot { return a.sup.Snapshot() }

func (a *App) Start(ctx context.Context) error {
	cfg := a.cfgm.Get()
	a.sup = NewSupervisor(ctx, WithLogger(a.log), WithCancelOnError(true))

	a.sched.Register()
	if err := a.syncJobs(cfg, nil); err != nil {
		return err
	}

	if a.store != nil {
		a.startRunLog()
	}

	if cfg.Cron.CronEnabled() {
		a.sched.Boot(a.sup.Context())
	} else {
		a.log.Warn("cron disabled via config; tasks are registered but never dispatched")
	}

	a.admin.Start(a.sup.Context())

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := cfg
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest config.
			drain:
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						break drain
					}
				}
				a.applyConfig(c, lastApplied, newCfg)
				lastApplied = newCfg
			}
		}
	})

	a.sup.GoRestart("config.watch", a.cfgm.Watch,
		rtsup.WithPublishFirstError(true),
		rtsup.WithRestartBackoff(time.Second, 30*time.Second),
	)

	a.log.Info("app started", logx.String("config", a.cfgm.Path()))
	return nil
}

// Reload re-reads the config file. Unchanged content is not an error.
func (a *App) Reload(ctx context.Context) error {
	_, err := a.cfgm.Reload(ctx)
	if errors.Is(err, config.ErrUnchanged) {
		a.log.Info("config reload requested (no changes)")
		return nil
	}
	return err
}

// applyConfig fans a committed config out to every live component.
func (a *App) applyConfig(c context.Context, oldCfg, newCfg *Config) {
	sections, attrs, changedJobs := SummarizeConfigChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Debug("config change summary", fields...)

	for _, s := range sections {
		switch s {
		case "storage":
			a.log.Warn("storage config changed; restart required for changes to take effect")
		case "metrics":
			a.log.Warn("metrics config changed; restart required for changes to take effect")
		}
	}
	if oldCfg.Cron.CronEnabled() != newCfg.Cron.CronEnabled() {
		a.log.Warn("cron.enabled changed; restart required for changes to take effect")
	}

	a.logs.Apply(mapLoggingConfig(newCfg))

	if cc, err := mapCronConfig(newCfg); err != nil {
		a.log.Warn("invalid cron config; keeping previous", logx.Err(err))
	} else {
		a.sched.Apply(cc)
	}

	if len(changedJobs) > 0 {
		if err := a.syncJobs(newCfg, changedJobs); err != nil {
			a.log.Warn("invalid jobs config; keeping previous", logx.Err(err))
		} else {
			a.log.Info("jobs re-synced", logx.Any("jobs", changedJobs))
		}
	}

	if ac, err := mapAdminConfig(newCfg); err != nil {
		a.log.Warn("invalid admin config; keeping previous", logx.Err(err))
	} else {
		a.admin.Reconfigure(c, ac)
	}

	a.bus.Publish(eventbus.Event{Type: eventbus.TopicConfigReload, Time: time.Now(), Data: sections})
	a.log.Info("config reloaded", fields...)
}

// syncJobs registers config-declared jobs. names limits the sync to those
// job names; nil means all. A changed job is removed and re-added, so its
// attempts and next run start over.
func (a *App) syncJobs(cfg *Config, names []string) error {
	specs, err := mapJobs(cfg, a.log.With(logx.String("comp", "jobs")))
	if err != nil {
		return err
	}
	byName := make(map[string]jobSpec, len(specs))
	for _, sp := range specs {
		byName[sp.name] = sp
	}
	if names == nil {
		for _, sp := range specs {
			names = append(names, sp.name)
		}
	}

	a.jobsMu.Lock()
	defer a.jobsMu.Unlock()
	for _, name := range names {
		if id, ok := a.jobIDs[name]; ok {
			a.sched.Remove(id)
			delete(a.jobIDs, name)
		}
		sp, ok := byName[name]
		if !ok {
			continue
		}
		a.jobIDs[name] = a.sched.Add(sp.job, sp.trigger, sp.name, sp.opts...)
	}
	return nil
}

// startRunLog persists finished runs from the bus into the store.
func (a *App) startRunLog() {
	events, unsub := a.bus.Subscribe(256, eventbus.TopicTaskFinished, eventbus.TopicTaskFailed)
	write := func(e eventbus.Event) {
		ev, ok := e.Data.(cron.RunEvent)
		if !ok {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		err := a.store.AppendRun(ctx, storage.RunRecord{
			RunID:     ev.RunID,
			TaskID:    ev.TaskID,
			Name:      ev.Name,
			Start:     ev.Started,
			End:       ev.Finished,
			Status:    string(ev.Status),
			Message:   ev.Error,
			RuntimeMS: ev.Duration.Milliseconds(),
		})
		if err != nil {
			a.log.Warn("run log append failed", logx.String("run_id", ev.RunID), logx.Err(err))
		}
	}
	a.sup.Go0("runlog.writer", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				// Flush what is already buffered.
				for {
					select {
					case e := <-events:
						write(e)
					default:
						return
					}
				}
			case e, ok := <-events:
				if !ok {
					return
				}
				write(e)
			}
		}
	})
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))

	// Bounded shutdown step; never extends the caller's deadline.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		stepCtx, cancel := context.WithTimeout(ctx, max)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.Duration("elapsed", time.Since(start)),
			)
		}
	}

	step("admin", time.Second, func(c context.Context) error { a.admin.Stop(c); return nil })
	// Scheduler before the supervisor so the run-log writer sees the final runs.
	step("scheduler", 5*time.Second, func(c context.Context) error { a.sched.Stop(c); return nil })
	a.sup.Cancel()
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })
	step("storage", time.Second, func(c context.Context) error {
		if a.store != nil {
			return a.store.Close()
		}
		return nil
	})

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}
