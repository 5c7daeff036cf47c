package app

import (
	"fmt"
	"strings"

	"cronwork/internal/config"
	"cronwork/internal/cron"
	"cronwork/internal/jobs"
	logx "cronwork/pkg/logx"
)

// mapCronConfig validates the cron section and converts it into the
// scheduler config. An explicit history_limit of 0 keeps no history.
func mapCronConfig(cfg *Config) (cron.Config, error) {
	var out cron.Config
	if cfg == nil {
		return out, nil
	}
	cc := cfg.Cron

	tick, err := parseDurationOrDefault("cron.tick", cc.Tick, cron.DefaultTick)
	if err != nil {
		return out, err
	}
	out.Tick = tick

	if _, err := cron.LoadLocation(cc.Timezone); err != nil {
		return out, fmt.Errorf("cron.timezone: %w", err)
	}
	out.Timezone = strings.TrimSpace(cc.Timezone)

	mode, err := cron.ParseMode(cc.ExpressionMode)
	if err != nil {
		return out, fmt.Errorf("cron.expression_mode: %w", err)
	}
	out.ExpressionMode = mode

	if cc.HistoryLimit != nil {
		switch n := *cc.HistoryLimit; {
		case n < 0:
			return out, fmt.Errorf("cron.history_limit must be >= 0")
		case n == 0:
			out.HistoryLimit = -1
		default:
			out.HistoryLimit = n
		}
	}
	out.EnforceMaxRuntime = cc.EnforceMaxRuntime
	return out, nil
}

// jobSpec is a config-declared job ready for cron.Service.Add.
type jobSpec struct {
	name    string
	job     cron.Job
	trigger cron.Trigger
	opts    []cron.Option
}

// mapJobs validates every declared job and builds it. Names must be unique
// since reloads match jobs by name.
func mapJobs(cfg *Config, log logx.Logger) ([]jobSpec, error) {
	if cfg == nil {
		return nil, nil
	}
	seen := make(map[string]struct{}, len(cfg.Cron.Jobs))
	out := make([]jobSpec, 0, len(cfg.Cron.Jobs))
	for i, jc := range cfg.Cron.Jobs {
		spec, err := mapJob(jc, log)
		if err != nil {
			return nil, fmt.Errorf("cron.jobs[%d]: %w", i, err)
		}
		if _, dup := seen[spec.name]; dup {
			return nil, fmt.Errorf("cron.jobs[%d]: duplicate name %q", i, spec.name)
		}
		seen[spec.name] = struct{}{}
		out = append(out, spec)
	}
	return out, nil
}

func mapJob(jc config.JobConfig, log logx.Logger) (jobSpec, error) {
	name := strings.TrimSpace(jc.Name)
	if name == "" {
		return jobSpec{}, fmt.Errorf("name is required")
	}
	trigger, err := cron.ParseTrigger(string(jc.Trigger))
	if err != nil {
		return jobSpec{}, fmt.Errorf("%s.trigger: %w", name, err)
	}
	if tz := strings.TrimSpace(jc.Timezone); tz != "" {
		if _, err := cron.LoadLocation(tz); err != nil {
			return jobSpec{}, fmt.Errorf("%s.timezone: %w", name, err)
		}
	}
	if jc.MaxAttempts < 0 {
		return jobSpec{}, fmt.Errorf("%s.max_attempts must be >= 0", name)
	}
	maxRuntime, err := parseDurationField(name+".max_runtime", jc.MaxRuntime)
	if err != nil {
		return jobSpec{}, err
	}

	job, err := jobs.Build(jc, log)
	if err != nil {
		return jobSpec{}, err
	}

	opts := []cron.Option{
		cron.WithEnabled(jc.JobEnabled()),
		cron.WithMaxAttempts(jc.MaxAttempts),
		cron.WithMaxRuntime(maxRuntime),
	}
	if tz := strings.TrimSpace(jc.Timezone); tz != "" {
		opts = append(opts, cron.WithTimezone(tz))
	}
	return jobSpec{name: name, job: job, trigger: trigger, opts: opts}, nil
}

// validateConfig runs every mapper so a bad file or hot reload is rejected
// before it is committed.
func validateConfig(cfg *Config) error {
	if _, err := mapCronConfig(cfg); err != nil {
		return err
	}
	if _, err := mapJobs(cfg, logx.Nop()); err != nil {
		return err
	}
	if _, _, err := mapStorageConfig(cfg); err != nil {
		return err
	}
	if _, err := mapAdminConfig(cfg); err != nil {
		return err
	}
	return nil
}
