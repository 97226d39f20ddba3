package enforce

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/abhisek/leetbuddy/internal/redirect"
	"github.com/abhisek/leetbuddy/internal/store"
)

// memTimers implements store.TimerRepo in memory.
type memTimers struct {
	mu     sync.Mutex
	daily  store.DailySolve
	bypass store.Bypass
	clears int
}

func (m *memTimers) DailySolve(context.Context) (store.DailySolve, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.daily, nil
}

func (m *memTimers) SaveDailySolve(_ context.Context, d store.DailySolve) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.daily = d
	return nil
}

func (m *memTimers) ClearDailySolve(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.daily = store.DailySolve{}
	m.clears++
	return nil
}

func (m *memTimers) Bypass(context.Context) (store.Bypass, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bypass, nil
}

func (m *memTimers) SaveBypass(_ context.Context, b store.Bypass) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bypass = b
	return nil
}

// fakePrimitive records the last call and can be told to fail.
type fakePrimitive struct {
	installed *redirect.Rule
	installs  int
	removes   int
	fail      error
}

func (f *fakePrimitive) Install(_ context.Context, r redirect.Rule) error {
	f.installs++
	if f.fail != nil {
		return f.fail
	}
	f.installed = &r
	return nil
}

func (f *fakePrimitive) Remove(context.Context) error {
	f.removes++
	if f.fail != nil {
		return f.fail
	}
	f.installed = nil
	return nil
}

const targetURL = "https://leetcode.com/problems/two-sum/"

func newTestMachine(timers *memTimers, prim *fakePrimitive) *Machine {
	target := func(context.Context) (redirect.Rule, bool, error) {
		return redirect.NewRule(targetURL, redirect.SystemDomains()), true, nil
	}
	cfg := DefaultConfig()
	cfg.Location = time.UTC
	return New(cfg, timers, prim, target, zerolog.Nop())
}

func TestReconcileBlocksByDefault(t *testing.T) {
	timers := &memTimers{}
	prim := &fakePrimitive{}
	m := newTestMachine(timers, prim)

	st, err := m.Reconcile(context.Background(), time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if st != StateBlocked {
		t.Errorf("state = %s, want blocked", st)
	}
	if prim.installed == nil || prim.installed.Action.Redirect.URL != targetURL {
		t.Errorf("rule not installed: %+v", prim.installed)
	}
}

func TestDayRolloverClearsAndReblocks(t *testing.T) {
	timers := &memTimers{daily: store.DailySolve{
		Date:      "2024-01-01",
		Timestamp: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC),
		Slug:      "two-sum",
	}}
	prim := &fakePrimitive{}
	m := newTestMachine(timers, prim)
	now := time.Date(2024, 1, 2, 0, 5, 0, 0, time.UTC)

	st, err := m.Reconcile(context.Background(), now)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if timers.daily.Date != "" {
		t.Errorf("daily solve not cleared: %+v", timers.daily)
	}
	if st != StateBlocked || prim.installed == nil {
		t.Errorf("state = %s installed = %v, want blocked with rule", st, prim.installed)
	}

	// Second reconcile with no intervening solve is a no-op on timer state.
	before := timers.daily
	if _, err := m.Reconcile(context.Background(), now.Add(time.Minute)); err != nil {
		t.Fatalf("second reconcile: %v", err)
	}
	if timers.daily != before || timers.clears != 1 {
		t.Errorf("second reconcile changed state: %+v clears=%d", timers.daily, timers.clears)
	}
}

func TestSolvedTodayKeepsBlockRemoved(t *testing.T) {
	now := time.Date(2024, 1, 1, 18, 0, 0, 0, time.UTC)
	timers := &memTimers{daily: store.DailySolve{Date: "2024-01-01", Slug: "two-sum"}}
	prim := &fakePrimitive{}
	m := newTestMachine(timers, prim)

	st, err := m.Reconcile(context.Background(), now)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if st != StateUnblockedBySolve || prim.removes != 1 || prim.installs != 0 {
		t.Errorf("state=%s removes=%d installs=%d", st, prim.removes, prim.installs)
	}
}

func TestConfirmSolve(t *testing.T) {
	timers := &memTimers{}
	prim := &fakePrimitive{}
	m := newTestMachine(timers, prim)
	now := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

	if err := m.ConfirmSolve(context.Background(), "two-sum", now); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if timers.daily.Date != "2024-05-06" || timers.daily.Slug != "two-sum" || !timers.daily.Timestamp.Equal(now) {
		t.Errorf("daily = %+v", timers.daily)
	}
	if prim.removes != 1 {
		t.Errorf("removes = %d, want 1", prim.removes)
	}

	st, _ := m.Status(context.Background(), now.Add(time.Hour))
	if !st.DailySolvedToday || st.State != StateUnblockedBySolve {
		t.Errorf("status = %+v", st)
	}
}

func TestBypassCooldownScenario(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	timers := &memTimers{bypass: store.Bypass{
		ActiveUntil:   now.Add(-25 * time.Minute),
		NextAllowedAt: now.Add(5 * time.Minute),
	}}
	prim := &fakePrimitive{}
	m := newTestMachine(timers, prim)

	res, err := m.RequestBypass(context.Background(), now)
	if err != nil {
		t.Fatalf("bypass: %v", err)
	}
	if res.Granted || res.Reason != ReasonCooldown {
		t.Errorf("result = %+v, want cooldown refusal", res)
	}
	if res.Remaining.Milliseconds() != 300000 {
		t.Errorf("remaining = %dms, want 300000", res.Remaining.Milliseconds())
	}
	if prim.removes != 0 || !timers.bypass.NextAllowedAt.Equal(now.Add(5*time.Minute)) {
		t.Error("refused bypass changed state")
	}
}

func TestBypassGrantAndCooldownBoundary(t *testing.T) {
	timers := &memTimers{}
	prim := &fakePrimitive{}
	m := newTestMachine(timers, prim)
	ctx := context.Background()
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	res, err := m.RequestBypass(ctx, start)
	if err != nil || !res.Granted {
		t.Fatalf("first bypass = %+v, %v", res, err)
	}
	if !res.ActiveUntil.Equal(start.Add(10*time.Minute)) || !res.NextAllowedAt.Equal(start.Add(40*time.Minute)) {
		t.Errorf("window = %v .. %v", res.ActiveUntil, res.NextAllowedAt)
	}
	if prim.removes != 1 {
		t.Errorf("block not removed on grant")
	}

	st, _ := m.Reconcile(ctx, start.Add(5*time.Minute))
	if st != StateUnblockedByBypass {
		t.Errorf("state during bypass = %s", st)
	}
	st, _ = m.Reconcile(ctx, start.Add(10*time.Minute))
	if st != StateBlocked || prim.installed == nil {
		t.Errorf("state after bypass = %s", st)
	}

	for _, offset := range []time.Duration{11 * time.Minute, 39*time.Minute + 59*time.Second} {
		res, _ := m.RequestBypass(ctx, start.Add(offset))
		if res.Granted || res.Reason != ReasonCooldown {
			t.Errorf("bypass at +%v = %+v, want cooldown", offset, res)
		}
	}

	res, _ = m.RequestBypass(ctx, start.Add(40*time.Minute))
	if !res.Granted {
		t.Errorf("bypass at nextAllowedAt refused: %+v", res)
	}
}

func TestSolveWinsOverBypass(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	timers := &memTimers{
		daily:  store.DailySolve{Date: "2024-01-01"},
		bypass: store.Bypass{ActiveUntil: now.Add(time.Minute), NextAllowedAt: now.Add(31 * time.Minute)},
	}
	m := newTestMachine(timers, &fakePrimitive{})
	st, _ := m.Status(context.Background(), now)
	if st.State != StateUnblockedBySolve {
		t.Errorf("state = %s, want solve to win", st.State)
	}
	if !st.Bypass.IsActive || st.Bypass.RemainingMs != 60000 || st.Bypass.CanBypass {
		t.Errorf("bypass status = %+v", st.Bypass)
	}
}

func TestPrimitiveFailureIsSwallowed(t *testing.T) {
	prim := &fakePrimitive{fail: errors.New("platform rejected rule")}
	m := newTestMachine(&memTimers{}, prim)

	st, err := m.Reconcile(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("reconcile returned primitive error: %v", err)
	}
	if st != StateBlocked || prim.installs != 1 {
		t.Errorf("state=%s installs=%d", st, prim.installs)
	}
	if err := m.ConfirmSolve(context.Background(), "x", time.Now()); err != nil {
		t.Errorf("confirm returned primitive error: %v", err)
	}
}

func TestNoTargetLeavesPrimitiveAlone(t *testing.T) {
	prim := &fakePrimitive{}
	target := func(context.Context) (redirect.Rule, bool, error) {
		return redirect.Rule{}, false, nil
	}
	m := New(Config{Location: time.UTC}, &memTimers{}, prim, target, zerolog.Nop())
	if _, err := m.Reconcile(context.Background(), time.Now()); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if prim.installs != 0 || prim.removes != 0 {
		t.Errorf("primitive touched: installs=%d removes=%d", prim.installs, prim.removes)
	}
}
