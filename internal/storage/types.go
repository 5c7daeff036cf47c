package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// DefaultRetain is the number of runs kept when Config.Retain is zero.
const DefaultRetain = 1000

// Config configures storage.
//
// Driver values:
//   - "file": JSON Lines run log
//   - "sqlite": SQLite database file
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
	Retain      int           // runs kept; 0 means DefaultRetain
}

func (c Config) retain() int {
	if c.Retain <= 0 {
		return DefaultRetain
	}
	return c.Retain
}

// RunRecord is one finished run. Keep it compact and schema-stable.
type RunRecord struct {
	RunID     string    `json:"run_id"`
	TaskID    string    `json:"task_id"`
	Name      string    `json:"name"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	RuntimeMS int64     `json:"runtime_ms"`
}
