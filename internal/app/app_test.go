package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func appConfig(dir, trigger string) string {
	return `
logging:
  level: warn
  file:
    enabled: true
    path: ` + filepath.Join(dir, "cronwork.log") + `
cron:
  tick: 50ms
  jobs:
    - name: heartbeat
      type: log
      trigger: "` + trigger + `"
storage:
  driver: file
  path: ` + filepath.Join(dir, "runs") + `
metrics:
  enabled: true
`
}

func TestNewAppRejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	p := filepath.Join(dir, "cronwork.yaml")
	writeConfig(t, p, "cron:\n  timezone: Mars/Base\n")

	_, err := NewApp(p)
	require.ErrorContains(t, err, "cron.timezone")
}

func TestAppRunsJobsAndPersistsRuns(t *testing.T) {
	if testing.Short() {
		t.Skip("runs the scheduler in real time")
	}
	t.Parallel()

	dir := t.TempDir()
	p := filepath.Join(dir, "cronwork.yaml")
	writeConfig(t, p, appConfig(dir, "0.1"))

	a, err := NewApp(p)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, a.Start(ctx))

	tasks := a.Scheduler().ListTasks()
	require.Len(t, tasks, 1)
	require.Equal(t, "heartbeat", tasks[0].Name)
	firstID := tasks[0].ID

	require.Eventually(t, func() bool {
		runs, err := a.store.RecentRuns(context.Background(), 10)
		return err == nil && len(runs) > 0
	}, 5*time.Second, 20*time.Millisecond)

	// A changed job definition is re-registered under a new id.
	writeConfig(t, p, appConfig(dir, "5m"))
	require.NoError(t, a.Reload(context.Background()))
	require.Eventually(t, func() bool {
		tasks := a.Scheduler().ListTasks()
		return len(tasks) == 1 && tasks[0].ID != firstID && tasks[0].Trigger == "5m0s"
	}, 3*time.Second, 20*time.Millisecond)

	// Reloading identical content is not an error.
	require.NoError(t, a.Reload(context.Background()))

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	require.NoError(t, a.Stop(stopCtx, StopAppStop))

	select {
	case <-a.Done():
	default:
		t.Fatal("app context not cancelled after Stop")
	}
}
