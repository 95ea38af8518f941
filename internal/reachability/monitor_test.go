package reachability

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
)

type stubProber struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (p *stubProber) Probe(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return p.err
}

func (p *stubProber) setErr(err error) {
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
}

func (p *stubProber) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type stubDrainer struct {
	syncing  atomic.Bool
	triggers atomic.Int32
	fired    chan struct{}
}

func newStubDrainer() *stubDrainer {
	return &stubDrainer{fired: make(chan struct{}, 4)}
}

func (d *stubDrainer) TriggerSync(context.Context) bool {
	d.triggers.Add(1)
	d.fired <- struct{}{}
	return true
}

func (d *stubDrainer) IsSyncing() bool { return d.syncing.Load() }

func newTestMonitor(t *testing.T, sig Signal, prober Prober, settle time.Duration) *Monitor {
	t.Helper()
	m, err := NewMonitor(MonitorParams{
		Signal:       sig,
		Prober:       prober,
		PollInterval: time.Hour,
		SettleDelay:  settle,
	})
	if err != nil {
		t.Fatalf("new monitor: %v", err)
	}
	return m
}

func TestNewMonitorRequiresCollaborators(t *testing.T) {
	if _, err := NewMonitor(MonitorParams{Prober: &stubProber{}}); err == nil {
		t.Fatalf("expected error without signal")
	}
	if _, err := NewMonitor(MonitorParams{Signal: NewManualSignal(true)}); err == nil {
		t.Fatalf("expected error without prober")
	}
}

func TestCheckTrustsNativeOffline(t *testing.T) {
	prober := &stubProber{}
	m := newTestMonitor(t, NewManualSignal(false), prober, time.Hour)

	if m.Check(context.Background()) {
		t.Fatalf("expected offline")
	}
	if prober.count() != 0 {
		t.Fatalf("probe should not run when native signal is offline, ran %d", prober.count())
	}
}

func TestCheckProbeFailureMeansOffline(t *testing.T) {
	prober := &stubProber{err: errors.New("timeout")}
	m := newTestMonitor(t, NewManualSignal(true), prober, time.Hour)

	if m.Check(context.Background()) {
		t.Fatalf("expected offline on probe failure")
	}
	if m.IsOnline() {
		t.Fatalf("published state should be offline")
	}
}

func TestPublishesOnlyOnChange(t *testing.T) {
	sig := NewManualSignal(true)
	prober := &stubProber{}
	m := newTestMonitor(t, sig, prober, time.Hour)

	var states []State
	m.Subscribe(func(s State) { states = append(states, s) })

	ctx := context.Background()
	m.Check(ctx)
	m.Check(ctx)
	m.Check(ctx)
	if len(states) != 1 || !states[0].Online {
		t.Fatalf("expected one online publication, got %+v", states)
	}

	prober.setErr(errors.New("down"))
	m.Check(ctx)
	m.Check(ctx)
	if len(states) != 2 || states[1].Online {
		t.Fatalf("expected one offline publication, got %+v", states)
	}
}

func TestUnsubscribe(t *testing.T) {
	m := newTestMonitor(t, NewManualSignal(true), &stubProber{}, time.Hour)
	calls := 0
	cancel := m.Subscribe(func(State) { calls++ })
	cancel()
	m.Check(context.Background())
	if calls != 0 {
		t.Fatalf("unsubscribed callback invoked %d times", calls)
	}
}

func TestTransitionOnlineTriggersDrainAfterSettle(t *testing.T) {
	m := newTestMonitor(t, NewManualSignal(true), &stubProber{}, 10*time.Millisecond)
	d := newStubDrainer()
	m.SetDrainer(d)

	m.Check(context.Background())
	select {
	case <-d.fired:
	case <-time.After(time.Second):
		t.Fatalf("drain was not triggered")
	}

	m.Check(context.Background())
	time.Sleep(30 * time.Millisecond)
	if got := d.triggers.Load(); got != 1 {
		t.Fatalf("expected exactly one trigger, got %d", got)
	}
}

type pendingStubDrainer struct {
	*stubDrainer
	pending atomic.Bool
}

func (d *pendingStubDrainer) HasPending(context.Context) bool { return d.pending.Load() }

func TestSteadyOnlineCheckDrainsLeftovers(t *testing.T) {
	m := newTestMonitor(t, NewManualSignal(true), &stubProber{}, time.Millisecond)
	d := &pendingStubDrainer{stubDrainer: newStubDrainer()}
	m.SetDrainer(d)
	ctx := context.Background()

	m.Check(ctx)
	select {
	case <-d.fired:
	case <-time.After(time.Second):
		t.Fatalf("settle drain was not triggered")
	}
	time.Sleep(10 * time.Millisecond)

	m.Check(ctx)
	if got := d.triggers.Load(); got != 1 {
		t.Fatalf("empty queue should not be drained again, got %d triggers", got)
	}

	d.pending.Store(true)
	d.syncing.Store(true)
	m.Check(ctx)
	if got := d.triggers.Load(); got != 1 {
		t.Fatalf("running drain should not be retriggered, got %d triggers", got)
	}

	d.syncing.Store(false)
	m.Check(ctx)
	if got := d.triggers.Load(); got != 2 {
		t.Fatalf("expected leftovers to be drained, got %d triggers", got)
	}
}

func TestSettleSkipsWhenAlreadySyncing(t *testing.T) {
	m := newTestMonitor(t, NewManualSignal(true), &stubProber{}, 5*time.Millisecond)
	d := newStubDrainer()
	d.syncing.Store(true)
	m.SetDrainer(d)

	m.Check(context.Background())
	time.Sleep(30 * time.Millisecond)
	if got := d.triggers.Load(); got != 0 {
		t.Fatalf("expected no trigger while syncing, got %d", got)
	}
}

func TestGoingOfflineCancelsPendingDrain(t *testing.T) {
	prober := &stubProber{}
	m := newTestMonitor(t, NewManualSignal(true), prober, 40*time.Millisecond)
	d := newStubDrainer()
	m.SetDrainer(d)

	ctx := context.Background()
	m.Check(ctx)
	prober.setErr(errors.New("gone"))
	m.Check(ctx)

	time.Sleep(80 * time.Millisecond)
	if got := d.triggers.Load(); got != 0 {
		t.Fatalf("expected pending drain to be cancelled, got %d triggers", got)
	}
}

func TestRunReactsToSignalChanges(t *testing.T) {
	defer goleak.VerifyNone(t)

	sig := NewManualSignal(false)
	m := newTestMonitor(t, sig, &stubProber{}, time.Hour)

	changed := make(chan State, 4)
	m.Subscribe(func(s State) { changed <- s })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	sig.Set(true)
	select {
	case s := <-changed:
		if !s.Online {
			t.Fatalf("expected online state, got %+v", s)
		}
	case <-time.After(time.Second):
		t.Fatalf("signal change was not observed")
	}

	sig.Set(false)
	select {
	case s := <-changed:
		if s.Online {
			t.Fatalf("expected offline state, got %+v", s)
		}
	case <-time.After(time.Second):
		t.Fatalf("signal change was not observed")
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run returned %v", err)
	}
}

func TestStateReportsSyncing(t *testing.T) {
	m := newTestMonitor(t, NewManualSignal(true), &stubProber{}, time.Hour)
	d := newStubDrainer()
	d.syncing.Store(true)
	m.SetDrainer(d)
	m.Check(context.Background())

	st := m.State()
	if !st.Online || !st.Syncing {
		t.Fatalf("unexpected state %+v", st)
	}
}
