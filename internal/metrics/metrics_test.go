package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"cronwork/internal/cron"
)

func TestRecorder(t *testing.T) {
	t.Parallel()

	m := New()
	m.RunStarted("backup")
	m.RunStarted("backup")
	require.Equal(t, 2.0, testutil.ToFloat64(m.runsInFlight))

	m.RunFinished("backup", cron.StatusSuccess, 250*time.Millisecond)
	m.RunFinished("backup", cron.StatusError, time.Second)
	require.Equal(t, 0.0, testutil.ToFloat64(m.runsInFlight))
	require.Equal(t, 1.0, testutil.ToFloat64(m.runsTotal.WithLabelValues("backup", "success")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.runsTotal.WithLabelValues("backup", "error")))

	m.Tasks(5, 3)
	require.Equal(t, 3.0, testutil.ToFloat64(m.tasks.WithLabelValues("enabled")))
	require.Equal(t, 2.0, testutil.ToFloat64(m.tasks.WithLabelValues("disabled")))

	m.History(42)
	require.Equal(t, 42.0, testutil.ToFloat64(m.historySize))
}

func TestHandlerExposesCollectors(t *testing.T) {
	t.Parallel()

	m := New()
	m.RunFinished("heartbeat", cron.StatusSuccess, 10*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	out := string(body)
	require.True(t, strings.Contains(out, `cronwork_runs_total{status="success",task="heartbeat"} 1`), out)
	require.Contains(t, out, "cronwork_run_duration_seconds_bucket")
	require.Contains(t, out, "go_goroutines")
}
