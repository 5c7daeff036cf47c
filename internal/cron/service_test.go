package cron

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"cronwork/internal/eventbus"
	logx "cronwork/pkg/logx"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, time.March, 13, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

func newTestService(t *testing.T, cfg Config, opts ...ServiceOption) (*Service, *fakeClock) {
	t.Helper()
	clk := newFakeClock()
	opts = append([]ServiceOption{WithClock(clk.Now)}, opts...)
	s := New(cfg, logx.Nop(), nil, opts...)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		s.Stop(ctx)
	})
	return s, clk
}

func noop() Job { return JobFunc(func(context.Context) error { return nil }) }

func counting(n *atomic.Int32) Job {
	return JobFunc(func(context.Context) error {
		n.Add(1)
		return nil
	})
}

func TestAddDefaultsAndIntervalNextRun(t *testing.T) {
	t.Parallel()
	s, clk := newTestService(t, Config{})

	id := s.Add(noop(), Every(10*time.Second), "report")
	require.NotEmpty(t, id)

	info, ok := s.Get(id)
	require.True(t, ok)
	require.Equal(t, "report", info.Name)
	require.True(t, info.Enabled)
	require.Equal(t, "UTC", info.Timezone)
	require.Zero(t, info.Attempts)
	require.Nil(t, info.LastRun)
	require.NotNil(t, info.NextRun)
	require.Equal(t, clk.Now().Add(10*time.Second), *info.NextRun)

	id2 := s.Add(noop(), Trigger{}, "  ")
	info2, ok := s.Get(id2)
	require.True(t, ok)
	require.Equal(t, DefaultName, info2.Name)
	require.Equal(t, "1m0s", info2.Trigger)
	require.Equal(t, clk.Now().Add(DefaultTrigger), *info2.NextRun)

	require.NotEqual(t, id, id2)
}

func TestAddUnsupportedTriggerHasNoNextRun(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	clk := newFakeClock()
	s := New(Config{ExpressionMode: ModeStandard}, logx.NewJSON(&buf, "debug"), nil, WithClock(clk.Now))

	var n atomic.Int32
	id := s.Add(counting(&n), Expr("whenever"), "bad")
	info, ok := s.Get(id)
	require.True(t, ok)
	require.Nil(t, info.NextRun)
	require.Contains(t, buf.String(), "next run unavailable")

	s.tick(clk.Advance(time.Hour))
	s.inflight.Wait()
	require.Zero(t, n.Load())
	require.Empty(t, s.GetHistory(0))
}

func TestCompatModeRunsUnparsedExpressionsEveryMinute(t *testing.T) {
	t.Parallel()
	s, clk := newTestService(t, Config{})

	var n atomic.Int32
	for _, expr := range []string{"* * *", "@foo", "whenever"} {
		id := s.Add(counting(&n), Expr(expr), expr)
		info, ok := s.Get(id)
		require.True(t, ok)
		require.NotNil(t, info.NextRun, expr)
		require.Equal(t, clk.Now().Add(time.Minute), *info.NextRun, expr)
	}

	s.tick(clk.Advance(time.Minute))
	s.inflight.Wait()
	require.EqualValues(t, 3, n.Load())
	for _, info := range s.ListTasks() {
		require.Equal(t, clk.Now().Add(time.Minute), *info.NextRun, info.Name)
	}
}

func TestDeterministicIDs(t *testing.T) {
	t.Parallel()
	var seq atomic.Int32
	gen := func() string { return fmt.Sprintf("id-%d", seq.Add(1)) }
	s, clk := newTestService(t, Config{}, WithIDGenerator(gen))

	require.Equal(t, "id-1", s.Add(noop(), Every(time.Second), "a"))
	require.Equal(t, "id-2", s.Add(noop(), Every(time.Second), "b"))

	s.tick(clk.Advance(time.Second))
	s.inflight.Wait()

	hist := s.GetHistory(0)
	require.Len(t, hist, 2)
	runIDs := map[string]string{}
	for _, e := range hist {
		runIDs[e.ID] = e.RunID
	}
	// Run ids come from the same generator, in dispatch (registration) order.
	require.Equal(t, map[string]string{"id-1": "id-3", "id-2": "id-4"}, runIDs)
}

func TestInvalidTaskTimezoneHasNoNextRun(t *testing.T) {
	t.Parallel()
	s, _ := newTestService(t, Config{})

	id := s.Add(noop(), Every(time.Second), "tz", WithTimezone("Nowhere/Land"))
	info, ok := s.Get(id)
	require.True(t, ok)
	require.Equal(t, "Nowhere/Land", info.Timezone)
	require.Nil(t, info.NextRun)
}

func TestTickDispatchesDueTasksOnly(t *testing.T) {
	t.Parallel()
	s, clk := newTestService(t, Config{})

	var fast, slow atomic.Int32
	fastID := s.Add(counting(&fast), Every(time.Second), "fast")
	s.Add(counting(&slow), Every(time.Hour), "slow")

	// Not due yet.
	s.tick(clk.Advance(500 * time.Millisecond))
	s.inflight.Wait()
	require.Zero(t, fast.Load())

	now := clk.Advance(500 * time.Millisecond)
	s.tick(now)
	s.inflight.Wait()
	require.EqualValues(t, 1, fast.Load())
	require.Zero(t, slow.Load())

	info, _ := s.Get(fastID)
	require.Equal(t, 1, info.Attempts)
	require.Equal(t, now, *info.LastRun)
	require.Equal(t, now.Add(time.Second), *info.NextRun)

	h := s.GetHistory(0)
	require.Len(t, h, 1)
	require.Equal(t, fastID, h[0].ID)
	require.Equal(t, "fast", h[0].Name)
	require.Equal(t, StatusSuccess, h[0].Status)
	require.NotNil(t, h[0].EndTime)
	require.Empty(t, h[0].Message)
}

func TestDisabledTaskNeverDispatched(t *testing.T) {
	t.Parallel()
	s, clk := newTestService(t, Config{})

	var n atomic.Int32
	id := s.Add(counting(&n), Every(time.Second), "off", Disabled())

	for i := 0; i < 5; i++ {
		s.tick(clk.Advance(time.Second))
	}
	s.inflight.Wait()
	require.Zero(t, n.Load())

	info, _ := s.Get(id)
	require.False(t, info.Enabled)
	require.Zero(t, info.Attempts)

	require.True(t, s.Disable(id))
	require.False(t, s.Disable("missing"))
	require.False(t, s.Enable("missing"))
}

func TestEnableRecomputesFromNow(t *testing.T) {
	t.Parallel()
	s, clk := newTestService(t, Config{})

	var n atomic.Int32
	id := s.Add(counting(&n), Every(10*time.Second), "later")
	require.True(t, s.Disable(id))

	now := clk.Advance(time.Hour)
	s.tick(now)
	s.inflight.Wait()
	require.Zero(t, n.Load())

	require.True(t, s.Enable(id))
	info, _ := s.Get(id)
	require.Equal(t, now.Add(10*time.Second), *info.NextRun)

	// The stale next run from before the pause does not fire.
	s.tick(clk.Advance(time.Second))
	s.inflight.Wait()
	require.Zero(t, n.Load())

	s.tick(clk.Advance(9 * time.Second))
	s.inflight.Wait()
	require.EqualValues(t, 1, n.Load())
}

func TestMaxAttemptsIsTerminal(t *testing.T) {
	t.Parallel()
	s, clk := newTestService(t, Config{})

	var n atomic.Int32
	id := s.Add(counting(&n), Every(time.Second), "twice", WithMaxAttempts(2))

	for i := 0; i < 5; i++ {
		s.tick(clk.Advance(time.Second))
	}
	s.inflight.Wait()

	require.EqualValues(t, 2, n.Load())
	info, _ := s.Get(id)
	require.Equal(t, 2, info.Attempts)
	require.True(t, info.Exhausted())
	require.Len(t, s.GetHistory(0), 2)

	// Re-enabling does not reset attempts.
	require.True(t, s.Enable(id))
	s.tick(clk.Advance(time.Second))
	s.inflight.Wait()
	require.EqualValues(t, 2, n.Load())
}

func TestHistoryBoundedNewestFirst(t *testing.T) {
	t.Parallel()
	s, clk := newTestService(t, Config{HistoryLimit: 3})

	ids := make([]string, 5)
	for i := range ids {
		ids[i] = s.Add(noop(), Every(time.Second), fmt.Sprintf("t%d", i))
	}

	s.tick(clk.Advance(time.Second))
	s.inflight.Wait()

	h := s.GetHistory(50)
	require.Len(t, h, 3)
	// Later registrations are dispatched later, so they are newer.
	require.Equal(t, ids[4], h[0].ID)
	require.Equal(t, ids[3], h[1].ID)
	require.Equal(t, ids[2], h[2].ID)

	require.Len(t, s.GetHistory(2), 2)

	s.SetHistoryLimit(1)
	// Capacity clamps reads immediately; the trim happens on the next tick.
	require.Len(t, s.GetHistory(50), 1)
	s.tick(clk.Advance(500 * time.Millisecond))
	require.Equal(t, 1, s.Snapshot().HistorySize)
}

func TestGetHistoryDefaultLimit(t *testing.T) {
	t.Parallel()
	s, clk := newTestService(t, Config{})

	s.Add(noop(), Every(time.Second), "busy")
	for i := 0; i < 30; i++ {
		s.tick(clk.Advance(time.Second))
	}
	s.inflight.Wait()

	require.Len(t, s.GetHistory(0), DefaultHistoryQuery)
	require.Len(t, s.GetHistory(-1), DefaultHistoryQuery)
	require.Len(t, s.GetHistory(25), 25)
	require.Len(t, s.GetHistory(500), 30)

	// Reads return copies.
	h := s.GetHistory(1)
	h[0].Status = StatusError
	require.Equal(t, StatusSuccess, s.GetHistory(1)[0].Status)
}

func TestConcurrentCompletionsAttributedToOwnEntry(t *testing.T) {
	t.Parallel()
	s, clk := newTestService(t, Config{})

	release := make(chan struct{})
	slowID := s.Add(JobFunc(func(context.Context) error {
		<-release
		return errors.New("slow failed")
	}), Every(time.Second), "slow")
	fastID := s.Add(noop(), Every(time.Second), "fast")

	s.tick(clk.Advance(time.Second))

	// fast finishes while slow is still running; its entry is newer.
	require.Eventually(t, func() bool {
		h := s.GetHistory(0)
		return len(h) == 2 && h[0].Status == StatusSuccess
	}, time.Second, 5*time.Millisecond)

	// More inserts before slow completes.
	s.Add(noop(), Every(time.Second), "extra")
	s.tick(clk.Advance(time.Second))

	close(release)
	s.inflight.Wait()

	byRun := map[string]HistoryEntry{}
	for _, e := range s.GetHistory(0) {
		byRun[e.RunID] = e
	}
	var slowFailures, fastSuccesses int
	for _, e := range byRun {
		switch e.ID {
		case slowID:
			require.Equal(t, StatusError, e.Status)
			require.Equal(t, "slow failed", e.Message)
			slowFailures++
		case fastID:
			require.Equal(t, StatusSuccess, e.Status)
			fastSuccesses++
		}
	}
	require.Equal(t, 2, slowFailures)
	require.Equal(t, 2, fastSuccesses)
}

func TestFailingJobRecordedAndRescheduled(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	clk := newFakeClock()
	s := New(Config{}, logx.NewJSON(&buf, "info"), nil, WithClock(clk.Now))

	id := s.Add(JobFunc(func(context.Context) error { return errors.New("boom") }), Every(time.Second), "flaky")

	now := clk.Advance(time.Second)
	s.tick(now)
	s.inflight.Wait()

	h := s.GetHistory(0)
	require.Len(t, h, 1)
	require.Equal(t, StatusError, h[0].Status)
	require.Equal(t, "boom", h[0].Message)

	info, _ := s.Get(id)
	require.Equal(t, now.Add(time.Second), *info.NextRun)

	out := buf.String()
	require.Contains(t, out, `"message":"task.failed"`)
	require.Contains(t, out, `"task":"flaky"`)
	require.Contains(t, out, `"status":"error"`)

	s.tick(clk.Advance(time.Second))
	s.inflight.Wait()
	require.Len(t, s.GetHistory(0), 2)
}

func TestPanickingJobIsIsolated(t *testing.T) {
	t.Parallel()
	s, clk := newTestService(t, Config{})

	s.Add(Func(func() { panic("kaboom") }), Every(time.Second), "panics")
	var n atomic.Int32
	s.Add(counting(&n), Every(time.Second), "ok")

	s.tick(clk.Advance(time.Second))
	s.inflight.Wait()

	require.EqualValues(t, 1, n.Load())
	h := s.GetHistory(0)
	require.Len(t, h, 2)
	require.Equal(t, "ok", h[0].Name)
	require.Equal(t, StatusSuccess, h[0].Status)
	require.Equal(t, "panics", h[1].Name)
	require.Equal(t, StatusError, h[1].Status)
	require.Equal(t, "kaboom", h[1].Message)
}

func TestSuccessLogLine(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	clk := newFakeClock()
	s := New(Config{}, logx.NewJSON(&buf, "info"), nil, WithClock(clk.Now))

	s.Add(JobFunc(func(context.Context) error {
		clk.Advance(250 * time.Millisecond)
		return nil
	}), Every(time.Second), "nightly")

	s.tick(clk.Advance(time.Second))
	s.inflight.Wait()

	h := s.GetHistory(1)
	require.Len(t, h, 1)
	require.Equal(t, 250*time.Millisecond, h[0].Runtime)

	var line string
	for _, l := range strings.Split(buf.String(), "\n") {
		if strings.Contains(l, "task.completed") {
			line = l
		}
	}
	require.NotEmpty(t, line)
	require.Contains(t, line, `"task":"nightly"`)
	require.Contains(t, line, `"status":"success"`)
	require.Contains(t, line, `"dur":250`)
	require.Contains(t, line, `"at":`)
}

func TestRemoveThenTick(t *testing.T) {
	t.Parallel()
	s, clk := newTestService(t, Config{})

	var n atomic.Int32
	id := s.Add(counting(&n), Every(time.Second), "gone")
	keep := s.Add(noop(), Every(time.Second), "kept")

	require.True(t, s.Remove(id))
	require.False(t, s.Remove(id))

	s.tick(clk.Advance(time.Second))
	s.inflight.Wait()

	require.Zero(t, n.Load())
	tasks := s.ListTasks()
	require.Len(t, tasks, 1)
	require.Equal(t, keep, tasks[0].ID)
	_, ok := s.Get(id)
	require.False(t, ok)
}

func TestListTasksRegistrationOrderAndCopies(t *testing.T) {
	t.Parallel()
	s, _ := newTestService(t, Config{})

	names := []string{"c", "a", "b"}
	for _, n := range names {
		s.Add(noop(), Every(time.Minute), n)
	}
	tasks := s.ListTasks()
	require.Len(t, tasks, 3)
	for i, n := range names {
		require.Equal(t, n, tasks[i].Name)
	}

	tasks[0].Name = "mutated"
	*tasks[0].NextRun = time.Time{}
	again := s.ListTasks()
	require.Equal(t, "c", again[0].Name)
	require.False(t, again[0].NextRun.IsZero())
}

func TestReloadRecomputesWithNewDefaultTimezone(t *testing.T) {
	t.Parallel()
	s, clk := newTestService(t, Config{})

	inherited := s.Add(noop(), Expr("@daily"), "inherits")
	pinned := s.Add(noop(), Expr("@daily"), "pinned", WithTimezone("UTC"))

	require.Error(t, s.SetTimezone("Not/AZone"))
	require.NoError(t, s.SetTimezone("Asia/Tokyo"))
	s.Reload()

	tokyo, _ := LoadLocation("Asia/Tokyo")
	local := clk.Now().In(tokyo)
	want := time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, tokyo)

	info, _ := s.Get(inherited)
	require.Equal(t, "Asia/Tokyo", info.Timezone)
	require.True(t, want.Equal(*info.NextRun))

	info, _ = s.Get(pinned)
	require.Equal(t, "UTC", info.Timezone)
	require.True(t, time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC).Equal(*info.NextRun))

	// Tasks added after the change use the new default immediately.
	later := s.Add(noop(), Expr("@daily"), "later")
	info, _ = s.Get(later)
	require.Equal(t, "Asia/Tokyo", info.Timezone)
}

func TestApplySwitchesModeAndReloads(t *testing.T) {
	t.Parallel()
	s, clk := newTestService(t, Config{})

	id := s.Add(noop(), Expr("0 12 * * *"), "noon")
	info, _ := s.Get(id)
	require.Equal(t, clk.Now().Add(time.Minute), *info.NextRun)

	s.Apply(Config{ExpressionMode: ModeStandard, HistoryLimit: 7})
	info, _ = s.Get(id)
	require.Equal(t, time.Date(2024, 3, 13, 12, 0, 0, 0, time.UTC), *info.NextRun)

	snap := s.Snapshot()
	require.Equal(t, ModeStandard, snap.Mode)
	require.Equal(t, 7, snap.HistoryLimit)
	require.Equal(t, 1, snap.Tasks)

	// Invalid values are rejected and the previous ones kept.
	s.Apply(Config{ExpressionMode: "quartz", Timezone: "Not/AZone", HistoryLimit: 7})
	snap = s.Snapshot()
	require.Equal(t, ModeStandard, snap.Mode)
	require.Equal(t, "UTC", snap.Timezone)
}

func TestMaxRuntimeEnforced(t *testing.T) {
	t.Parallel()
	s, clk := newTestService(t, Config{EnforceMaxRuntime: true})

	release := make(chan struct{})
	s.Add(JobFunc(func(ctx context.Context) error {
		<-release
		return nil
	}), Every(time.Second), "stuck", WithMaxRuntime(20*time.Millisecond))

	s.tick(clk.Advance(time.Second))
	s.inflight.Wait()

	h := s.GetHistory(0)
	require.Len(t, h, 1)
	require.Equal(t, StatusError, h[0].Status)
	require.Equal(t, ErrMaxRuntime.Error(), h[0].Message)

	// The late completion does not overwrite the entry.
	close(release)
	time.Sleep(20 * time.Millisecond)
	h = s.GetHistory(0)
	require.Equal(t, StatusError, h[0].Status)
}

func TestMaxRuntimeNotEnforcedByDefault(t *testing.T) {
	t.Parallel()
	s, clk := newTestService(t, Config{})

	s.Add(JobFunc(func(ctx context.Context) error {
		time.Sleep(30 * time.Millisecond)
		return ctx.Err()
	}), Every(time.Second), "slowpoke", WithMaxRuntime(time.Millisecond))

	s.tick(clk.Advance(time.Second))
	s.inflight.Wait()

	h := s.GetHistory(0)
	require.Len(t, h, 1)
	require.Equal(t, StatusSuccess, h[0].Status)
}

func TestEventsPublished(t *testing.T) {
	t.Parallel()
	bus := eventbus.New()
	ch, unsub := bus.Subscribe(8)
	defer unsub()

	clk := newFakeClock()
	s := New(Config{}, logx.Nop(), bus, WithClock(clk.Now))
	s.Add(noop(), Every(time.Second), "ok")
	s.Add(JobFunc(func(context.Context) error { return errors.New("nope") }), Every(time.Second), "bad")

	s.tick(clk.Advance(time.Second))
	s.inflight.Wait()

	counts := map[string]int{}
	for len(ch) > 0 {
		e := <-ch
		counts[e.Type]++
		ev, ok := e.Data.(RunEvent)
		require.True(t, ok)
		if e.Type == eventbus.TopicTaskFailed {
			require.Equal(t, "bad", ev.Name)
			require.Equal(t, "nope", ev.Error)
		}
	}
	require.Equal(t, 2, counts[eventbus.TopicTaskStarted])
	require.Equal(t, 1, counts[eventbus.TopicTaskFinished])
	require.Equal(t, 1, counts[eventbus.TopicTaskFailed])
}

type recordingRecorder struct {
	mu       sync.Mutex
	started  int
	finished map[Status]int
	total    int
	history  int
}

func (r *recordingRecorder) RunStarted(string) {
	r.mu.Lock()
	r.started++
	r.mu.Unlock()
}

func (r *recordingRecorder) RunFinished(_ string, st Status, _ time.Duration) {
	r.mu.Lock()
	r.finished[st]++
	r.mu.Unlock()
}

func (r *recordingRecorder) Tasks(total, _ int) {
	r.mu.Lock()
	r.total = total
	r.mu.Unlock()
}

func (r *recordingRecorder) History(n int) {
	r.mu.Lock()
	r.history = n
	r.mu.Unlock()
}

func TestRecorderReceivesMeasurements(t *testing.T) {
	t.Parallel()
	rec := &recordingRecorder{finished: map[Status]int{}}
	s, clk := newTestService(t, Config{}, WithRecorder(rec))

	s.Add(noop(), Every(time.Second), "a")
	id := s.Add(JobFunc(func(context.Context) error { return errors.New("x") }), Every(time.Second), "b")

	s.tick(clk.Advance(time.Second))
	s.inflight.Wait()
	s.Remove(id)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Equal(t, 2, rec.started)
	require.Equal(t, 1, rec.finished[StatusSuccess])
	require.Equal(t, 1, rec.finished[StatusError])
	require.Equal(t, 1, rec.total)
	require.Equal(t, 2, rec.history)
}

func TestBootRunsOnceAndStopWaitsForInFlight(t *testing.T) {
	t.Parallel()
	s := New(Config{Tick: 10 * time.Millisecond}, logx.Nop(), nil)

	var finished atomic.Bool
	s.Add(JobFunc(func(context.Context) error {
		time.Sleep(50 * time.Millisecond)
		finished.Store(true)
		return nil
	}), Every(20*time.Millisecond), "worker", WithMaxAttempts(1))

	require.True(t, s.Boot(context.Background()))
	require.False(t, s.Boot(context.Background()))
	require.True(t, s.Snapshot().Booted)

	require.Eventually(t, func() bool { return s.Snapshot().InFlight == 1 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s.Stop(ctx)

	require.True(t, finished.Load())
	require.Equal(t, StatusSuccess, s.GetHistory(1)[0].Status)
}

func TestStopCancelsRunsAfterDeadline(t *testing.T) {
	t.Parallel()
	s, clk := newTestService(t, Config{})

	s.Add(JobFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}), Every(time.Second), "blocked")

	s.tick(clk.Advance(time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	s.Stop(ctx)
	s.inflight.Wait()

	h := s.GetHistory(1)
	require.Equal(t, StatusError, h[0].Status)
	require.Equal(t, context.Canceled.Error(), h[0].Message)
}

func TestStopWithExpiredContextWaitsForLoop(t *testing.T) {
	t.Parallel()
	s, _ := newTestService(t, Config{Tick: time.Millisecond})
	s.Add(noop(), Every(time.Millisecond), "busy")
	require.True(t, s.Boot(context.Background()))
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.Stop(ctx)

	s.mu.Lock()
	done := s.loopDone
	s.mu.Unlock()
	select {
	case <-done:
	default:
		t.Fatal("loop still running after Stop returned")
	}
}

func TestEndToEndOneSecondInterval(t *testing.T) {
	if testing.Short() {
		t.Skip("real clock")
	}
	t.Parallel()

	s := New(Config{Tick: 100 * time.Millisecond}, logx.Nop(), nil)
	var n atomic.Int32
	s.Add(counting(&n), Every(time.Second), "heartbeat")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.True(t, s.Boot(ctx))

	require.Eventually(t, func() bool { return n.Load() >= 1 }, 3*time.Second, 20*time.Millisecond)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	s.Stop(stopCtx)

	h := s.GetHistory(0)
	require.NotEmpty(t, h)
	require.Equal(t, "heartbeat", h[0].Name)
	require.Equal(t, StatusSuccess, h[0].Status)
}
