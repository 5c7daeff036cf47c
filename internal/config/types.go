package config

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type Config struct {
	Logging LoggingConfig  `json:"logging"`
	Cron    CronConfig     `json:"cron"`
	Storage *StorageConfig `json:"storage,omitempty"`
	Admin   AdminConfig    `json:"admin,omitempty"`
	Metrics MetricsConfig  `json:"metrics,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	JSON    bool        `json:"json,omitempty"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// CronConfig controls the scheduler.
//
// Enabled and HistoryLimit are pointers so "omitted" (defaults: true, 100)
// can be told apart from an explicit false / 0.
type CronConfig struct {
	Enabled *bool `json:"enabled,omitempty"`
	// Tick is the polling period as a Go duration string. Default "1s".
	// Changing it requires a restart.
	Tick         string `json:"tick,omitempty"`
	Timezone     string `json:"timezone,omitempty"`
	HistoryLimit *int   `json:"history_limit,omitempty"`
	// ExpressionMode is "compat" (default) or "standard".
	ExpressionMode    string      `json:"expression_mode,omitempty"`
	EnforceMaxRuntime bool        `json:"enforce_max_runtime,omitempty"`
	Jobs              []JobConfig `json:"jobs,omitempty"`
}

// JobConfig declares a built-in job registered at boot.
//
// Example:
//
//	{ "name": "backup", "type": "command", "trigger": "@daily", "command": ["/usr/local/bin/backup"] }
type JobConfig struct {
	Name string `json:"name"`
	// Type is one of "command", "http", "log".
	Type string `json:"type"`
	// Trigger is seconds ("90"), a Go duration ("5m"), a shortcut ("@hourly")
	// or a five-field expression.
	Trigger     TriggerSpec `json:"trigger"`
	Timezone    string      `json:"timezone,omitempty"`
	Enabled     *bool       `json:"enabled,omitempty"`
	MaxAttempts int         `json:"max_attempts,omitempty"`
	MaxRuntime  string      `json:"max_runtime,omitempty"`

	// command
	Command []string `json:"command,omitempty"`
	Dir     string   `json:"dir,omitempty"`
	Env     []string `json:"env,omitempty"`

	// http
	URL     string            `json:"url,omitempty"`
	Method  string            `json:"method,omitempty"`
	Body    string            `json:"body,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	Timeout string            `json:"timeout,omitempty"`

	// log
	Message string `json:"message,omitempty"`
}

// StorageConfig controls the run-log store. Nil means no store.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./cronwork.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
	Retain      int    `json:"retain,omitempty"`       // runs kept; default 1000
}

// AdminConfig controls the optional management HTTP server.
//
// Security note:
//   - Prefer binding to localhost (e.g. "127.0.0.1:8089").
//   - Binding to a non-loopback address requires a token unless allow_insecure is set.
type AdminConfig struct {
	Enabled       bool    `json:"enabled"`
	Addr          string  `json:"addr,omitempty"`  // default: "127.0.0.1:8089"
	Token         string  `json:"token,omitempty"` // bearer token (do not log)
	AllowInsecure bool    `json:"allow_insecure,omitempty"`
	RatePerSec    float64 `json:"rate_per_sec,omitempty"` // default 10
	Burst         int     `json:"burst,omitempty"`        // default 20

	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
	IdleTimeout  string `json:"idle_timeout,omitempty"`
}

type MetricsConfig struct {
	Enabled bool `json:"enabled"`
}

// CronEnabled reports the effective enabled flag (default true).
func (c CronConfig) CronEnabled() bool { return c.Enabled == nil || *c.Enabled }

// JobEnabled reports the effective enabled flag (default true).
func (j JobConfig) JobEnabled() bool { return j.Enabled == nil || *j.Enabled }

// TriggerSpec is a trigger as written in the config. It accepts a JSON string
// or a bare number of seconds (YAML "trigger: 90" arrives as a number).
type TriggerSpec string

func (t *TriggerSpec) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = TriggerSpec(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("trigger must be a string or a number of seconds: %w", err)
	}
	*t = TriggerSpec(n.String())
	return nil
}
