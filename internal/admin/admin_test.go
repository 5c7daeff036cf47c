package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"cronwork/internal/cron"
	"cronwork/internal/metrics"
	"cronwork/internal/storage"
	logx "cronwork/pkg/logx"
)

type response struct {
	Status    string          `json:"status"`
	RequestID string          `json:"request_id"`
	Data      json.RawMessage `json:"data"`
	Error     string          `json:"error"`
}

func newScheduler(t *testing.T) (*cron.Service, string) {
	t.Helper()
	sched := cron.New(cron.Config{}, logx.Nop(), nil)
	id := sched.Add(cron.Func(func() {}), cron.Every(time.Minute), "nightly")
	return sched, id
}

func do(t *testing.T, h http.Handler, method, path string, hdr ...string) (*httptest.ResponseRecorder, response) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var env response
	if rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func TestTaskEndpoints(t *testing.T) {
	t.Parallel()

	sched, id := newScheduler(t)
	h := New(Config{}, sched, logx.Nop()).Handler(Config{})

	rec, env := do(t, h, http.MethodGet, "/api/tasks")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", env.Status)
	require.NotEmpty(t, env.RequestID)
	var tasks []cron.TaskInfo
	require.NoError(t, json.Unmarshal(env.Data, &tasks))
	require.Len(t, tasks, 1)
	require.Equal(t, "nightly", tasks[0].Name)
	require.True(t, tasks[0].Enabled)

	rec, env = do(t, h, http.MethodPost, "/api/tasks/"+id+"/disable")
	require.Equal(t, http.StatusOK, rec.Code)
	var info cron.TaskInfo
	require.NoError(t, json.Unmarshal(env.Data, &info))
	require.False(t, info.Enabled)

	rec, _ = do(t, h, http.MethodPost, "/api/tasks/"+id+"/enable")
	require.Equal(t, http.StatusOK, rec.Code)
	got, ok := sched.Get(id)
	require.True(t, ok)
	require.True(t, got.Enabled)

	rec, env = do(t, h, http.MethodGet, "/api/tasks/missing")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "task not found", env.Error)

	rec, _ = do(t, h, http.MethodDelete, "/api/tasks/"+id)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, sched.ListTasks())

	rec, _ = do(t, h, http.MethodDelete, "/api/tasks/"+id)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHistoryAndStatus(t *testing.T) {
	t.Parallel()

	sched, _ := newScheduler(t)
	h := New(Config{}, sched, logx.Nop()).Handler(Config{})

	rec, env := do(t, h, http.MethodGet, "/api/history?limit=5")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "[]", string(env.Data))

	rec, env = do(t, h, http.MethodGet, "/api/history?limit=abc")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "error", env.Status)

	rec, env = do(t, h, http.MethodGet, "/api/status")
	require.Equal(t, http.StatusOK, rec.Code)
	var snap cron.Snapshot
	require.NoError(t, json.Unmarshal(env.Data, &snap))
	require.Equal(t, 1, snap.Tasks)
	require.Equal(t, "UTC", snap.Timezone)
}

func TestAuth(t *testing.T) {
	t.Parallel()

	sched, _ := newScheduler(t)
	cfg := Config{Token: "s3cret"}
	h := New(cfg, sched, logx.Nop()).Handler(cfg)

	rec, _ := do(t, h, http.MethodGet, "/healthz")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))

	rec, _ = do(t, h, http.MethodGet, "/healthz", "Authorization", "Bearer wrong")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = do(t, h, http.MethodGet, "/healthz", "Authorization", "Bearer s3cret")
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = do(t, h, http.MethodGet, "/api/tasks?token=s3cret")
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = do(t, h, http.MethodGet, "/api/tasks?token=nope", "Authorization", "Bearer s3cret")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRateLimit(t *testing.T) {
	t.Parallel()

	sched, _ := newScheduler(t)
	cfg := Config{RatePerSec: 0.001, Burst: 2}
	h := New(cfg, sched, logx.Nop()).Handler(cfg)

	for i := 0; i < 2; i++ {
		rec, _ := do(t, h, http.MethodGet, "/healthz")
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec, _ := do(t, h, http.MethodGet, "/healthz")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "1", rec.Header().Get("Retry-After"))
}

func TestReloadRunsAndMetrics(t *testing.T) {
	t.Parallel()

	sched, _ := newScheduler(t)
	st, err := storage.Open(storage.Config{Driver: "file", Path: filepath.Join(t.TempDir(), "runs")}, logx.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.AppendRun(context.Background(), storage.RunRecord{RunID: "r1", TaskID: "t1", Name: "nightly", Status: "success"}))

	calls := 0
	fail := false
	svc := New(Config{}, sched, logx.Nop(),
		WithMetrics(metrics.New().Handler()),
		WithRunLog(st),
		WithReloader(func(context.Context) error {
			calls++
			if fail {
				return errors.New("config rejected: bad tick")
			}
			return nil
		}),
	)
	h := svc.Handler(Config{})

	rec, _ := do(t, h, http.MethodPost, "/api/reload")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, calls)

	fail = true
	rec, env := do(t, h, http.MethodPost, "/api/reload")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Contains(t, env.Error, "bad tick")

	rec, env = do(t, h, http.MethodGet, "/api/runs")
	require.Equal(t, http.StatusOK, rec.Code)
	var runs []storage.RunRecord
	require.NoError(t, json.Unmarshal(env.Data, &runs))
	require.Len(t, runs, 1)
	require.Equal(t, "r1", runs[0].RunID)

	rec, _ = do(t, h, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "cronwork_runs_in_flight")
}

func TestOptionalEndpointsDisabled(t *testing.T) {
	t.Parallel()

	sched, _ := newScheduler(t)
	h := New(Config{}, sched, logx.Nop()).Handler(Config{})

	rec, _ := do(t, h, http.MethodPost, "/api/reload")
	require.Equal(t, http.StatusNotImplemented, rec.Code)
	rec, _ = do(t, h, http.MethodGet, "/api/runs")
	require.Equal(t, http.StatusNotFound, rec.Code)
	rec, _ = do(t, h, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServerLifecycle(t *testing.T) {
	t.Parallel()

	sched, _ := newScheduler(t)
	svc := New(Config{}, sched, logx.Nop())
	ctx := context.Background()

	svc.Reconfigure(ctx, Config{Enabled: true, Addr: "127.0.0.1:0"})
	require.Eventually(t, func() bool { return svc.Addr() != "" }, 3*time.Second, 10*time.Millisecond)

	resp, err := http.Get("http://" + svc.Addr() + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	stopCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	svc.Reconfigure(stopCtx, Config{Enabled: false})
	require.Equal(t, "", svc.Addr())

	// Stopping twice is a no-op.
	svc.Stop(stopCtx)
}

func TestRefusesInsecureBind(t *testing.T) {
	t.Parallel()

	svc := New(Config{Enabled: true, Addr: "0.0.0.0:0"}, nil, logx.Nop())
	err := svc.serveOnce(context.Background())
	require.ErrorContains(t, err, "insecure bind")
}

func TestIsLoopbackAddr(t *testing.T) {
	t.Parallel()

	require.True(t, IsLoopbackAddr("127.0.0.1:8089"))
	require.True(t, IsLoopbackAddr("localhost:1"))
	require.True(t, IsLoopbackAddr("[::1]:1"))
	require.False(t, IsLoopbackAddr(":8089"))
	require.False(t, IsLoopbackAddr("0.0.0.0:8089"))
	require.False(t, IsLoopbackAddr("example.com:80"))
	require.False(t, IsLoopbackAddr("garbage"))
}
