package jobs

import (
	"context"

	"cronwork/internal/config"
	"cronwork/internal/cron"
	logx "cronwork/pkg/logx"
)

type logJob struct {
	msg string
	log logx.Logger
}

func newLog(jc config.JobConfig, log logx.Logger) cron.Job {
	msg := jc.Message
	if msg == "" {
		msg = "heartbeat"
	}
	return &logJob{msg: msg, log: log}
}

func (j *logJob) Run(context.Context) error {
	j.log.Info(j.msg)
	return nil
}
