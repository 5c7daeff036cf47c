// Package jobs builds the job kinds that can be declared in the config file.
package jobs

import (
	"errors"
	"fmt"
	"strings"

	"cronwork/internal/config"
	"cronwork/internal/cron"
	logx "cronwork/pkg/logx"
)

var ErrUnknownType = errors.New("unknown job type")

// Build returns the cron.Job described by jc. The log is used by the log job
// and for command/http diagnostics.
func Build(jc config.JobConfig, log logx.Logger) (cron.Job, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	log = log.With(logx.String("job", jc.Name))

	switch strings.ToLower(strings.TrimSpace(jc.Type)) {
	case "command", "cmd":
		return newCommand(jc, log)
	case "http":
		return newHTTP(jc, log)
	case "log", "heartbeat":
		return newLog(jc, log), nil
	case "":
		return nil, fmt.Errorf("job %q: type is required", jc.Name)
	default:
		return nil, fmt.Errorf("job %q: %w: %s", jc.Name, ErrUnknownType, jc.Type)
	}
}
