package config

import (
	"sort"
	"strings"

	logx "cronwork/pkg/logx"
)

// SummarizeConfigChange returns (1) a sorted list of changed sections,
// (2) safe structured attrs for logging (never includes the admin token),
// and (3) the names of declared jobs that were added, removed or changed.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field, []string) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 5)
	attrs := make([]logx.Field, 0, 16)

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logx.level", newCfg.Logging.Level),
			logx.Bool("logx.console", newCfg.Logging.Console),
			logx.Bool("logx.json", newCfg.Logging.JSON),
			logx.Bool("logx.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	oc, nc := oldCfg.Cron, newCfg.Cron
	cronChanged := oc.CronEnabled() != nc.CronEnabled() ||
		strings.TrimSpace(oc.Tick) != strings.TrimSpace(nc.Tick) ||
		strings.TrimSpace(oc.Timezone) != strings.TrimSpace(nc.Timezone) ||
		derefInt(oc.HistoryLimit, -1) != derefInt(nc.HistoryLimit, -1) ||
		!strings.EqualFold(strings.TrimSpace(oc.ExpressionMode), strings.TrimSpace(nc.ExpressionMode)) ||
		oc.EnforceMaxRuntime != nc.EnforceMaxRuntime
	jobsChanged := diffJobs(oc.Jobs, nc.Jobs)
	if cronChanged || len(jobsChanged) > 0 {
		changed = append(changed, "cron")
		attrs = append(attrs,
			logx.Bool("cron.enabled", nc.CronEnabled()),
			logx.String("cron.tick", strings.TrimSpace(nc.Tick)),
			logx.String("cron.timezone", strings.TrimSpace(nc.Timezone)),
			logx.Int("cron.history_limit", derefInt(nc.HistoryLimit, -1)),
			logx.String("cron.expression_mode", strings.TrimSpace(nc.ExpressionMode)),
			logx.Bool("cron.enforce_max_runtime", nc.EnforceMaxRuntime),
			logx.Int("cron.jobs", len(nc.Jobs)),
			logx.Int("cron.jobs_changed", len(jobsChanged)),
		)
	}

	// Nil means no store.
	var oDriver, nDriver, oBusy, nBusy, oPath, nPath string
	var oRetain, nRetain int
	if s := oldCfg.Storage; s != nil {
		oDriver, oBusy, oPath = strings.TrimSpace(s.Driver), strings.TrimSpace(s.BusyTimeout), strings.TrimSpace(s.Path)
		oRetain = s.Retain
	}
	if s := newCfg.Storage; s != nil {
		nDriver, nBusy, nPath = strings.TrimSpace(s.Driver), strings.TrimSpace(s.BusyTimeout), strings.TrimSpace(s.Path)
		nRetain = s.Retain
	}
	if oDriver != nDriver || oBusy != nBusy || oPath != nPath || oRetain != nRetain {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", nDriver),
			logx.Bool("storage.path_set", nPath != ""),
			logx.String("storage.busy_timeout", nBusy),
			logx.Int("storage.retain", nRetain),
		)
	}

	oa, na := oldCfg.Admin, newCfg.Admin
	oTok, nTok := strings.TrimSpace(oa.Token), strings.TrimSpace(na.Token)
	oa.Token, na.Token = "", ""
	if oa != na || oTok != nTok {
		changed = append(changed, "admin")
		attrs = append(attrs,
			logx.Bool("admin.enabled", na.Enabled),
			logx.String("admin.addr", strings.TrimSpace(na.Addr)),
			logx.Bool("admin.token_set", nTok != ""),
			logx.Bool("admin.token_changed", oTok != nTok),
			logx.Float64("admin.rate_per_sec", na.RatePerSec),
		)
	}

	if oldCfg.Metrics != newCfg.Metrics {
		changed = append(changed, "metrics")
		attrs = append(attrs, logx.Bool("metrics.enabled", newCfg.Metrics.Enabled))
	}

	sort.Strings(changed)
	return changed, attrs, jobsChanged
}

func derefInt(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

func diffJobs(oldJobs, newJobs []JobConfig) []string {
	oldM := make(map[string]uint64, len(oldJobs))
	for _, j := range oldJobs {
		oldM[j.Name] = hashJSON(j)
	}
	newM := make(map[string]uint64, len(newJobs))
	for _, j := range newJobs {
		newM[j.Name] = hashJSON(j)
	}

	set := map[string]struct{}{}
	for k := range oldM {
		set[k] = struct{}{}
	}
	for k := range newM {
		set[k] = struct{}{}
	}

	out := make([]string, 0, len(set))
	for name := range set {
		o, inOld := oldM[name]
		n, inNew := newM[name]
		if inOld != inNew || o != n {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
