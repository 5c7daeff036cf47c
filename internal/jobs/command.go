package jobs

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"cronwork/internal/config"
	"cronwork/internal/cron"
	logx "cronwork/pkg/logx"
)

// maxOutput bounds how much combined output is kept for error messages.
const maxOutput = 4 << 10

// waitDelay bounds the wait for output pipes held open by orphaned children
// after the process is killed.
const waitDelay = 2 * time.Second

type commandJob struct {
	argv []string
	dir  string
	env  []string
	log  logx.Logger
}

func newCommand(jc config.JobConfig, log logx.Logger) (cron.Job, error) {
	if len(jc.Command) == 0 || strings.TrimSpace(jc.Command[0]) == "" {
		return nil, fmt.Errorf("job %q: command is required", jc.Name)
	}
	return &commandJob{
		argv: append([]string(nil), jc.Command...),
		dir:  jc.Dir,
		env:  append([]string(nil), jc.Env...),
		log:  log,
	}, nil
}

// Run executes the command. It is killed when ctx ends. A non-zero exit is
// an error carrying the tail of the output.
func (j *commandJob) Run(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, j.argv[0], j.argv[1:]...)
	cmd.Dir = j.dir
	cmd.WaitDelay = waitDelay
	if len(j.env) > 0 {
		cmd.Env = append(os.Environ(), j.env...)
	}
	var out tailBuffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%s: %w", j.argv[0], ctx.Err())
		}
		if tail := strings.TrimSpace(out.String()); tail != "" {
			return fmt.Errorf("%s: %w: %s", j.argv[0], err, tail)
		}
		return fmt.Errorf("%s: %w", j.argv[0], err)
	}
	j.log.Debug("command finished", logx.String("cmd", j.argv[0]), logx.Int("output_bytes", out.n))
	return nil
}

// tailBuffer keeps the last maxOutput bytes written to it.
type tailBuffer struct {
	buf bytes.Buffer
	n   int
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.n += len(p)
	b.buf.Write(p)
	if over := b.buf.Len() - maxOutput; over > 0 {
		b.buf.Next(over)
	}
	return len(p), nil
}

func (b *tailBuffer) String() string { return b.buf.String() }
