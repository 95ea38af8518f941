package reachability

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/angelmondragon/possync/pkg/logger"
	"github.com/angelmondragon/possync/pkg/metrics"
)

const (
	DefaultPollInterval = 10 * time.Second
	DefaultSettleDelay  = 1500 * time.Millisecond
)

// State is the derived connectivity view handed to subscribers.
type State struct {
	Online  bool `json:"online"`
	Syncing bool `json:"syncing"`
}

// Drainer is started after the connection has settled following a transition
// into online.
type Drainer interface {
	TriggerSync(ctx context.Context) bool
	IsSyncing() bool
}

// PendingDrainer is a Drainer that can report queued work. While the state
// stays online, each check drains leftovers of such a drainer: actions queued
// after a failed direct call, or entries with retries left after a pass.
type PendingDrainer interface {
	Drainer
	HasPending(ctx context.Context) bool
}

type MonitorParams struct {
	Signal       Signal
	Prober       Prober
	Logger       *logger.Logger
	Metrics      *metrics.SyncMetrics
	PollInterval time.Duration
	SettleDelay  time.Duration
}

// Monitor combines the native signal with an active probe and publishes
// transitions only.
type Monitor struct {
	signal       Signal
	prober       Prober
	logg         *logger.Logger
	metrics      *metrics.SyncMetrics
	pollInterval time.Duration
	settleDelay  time.Duration

	online  atomic.Bool
	checkMu sync.Mutex

	mu      sync.Mutex
	subs    map[int]func(State)
	nextSub int
	drainer Drainer
	settle  *time.Timer
}

func NewMonitor(params MonitorParams) (*Monitor, error) {
	if params.Signal == nil {
		return nil, errors.New("signal is required")
	}
	if params.Prober == nil {
		return nil, errors.New("prober is required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	poll := params.PollInterval
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	settle := params.SettleDelay
	if settle < 0 {
		settle = DefaultSettleDelay
	}
	return &Monitor{
		signal:       params.Signal,
		prober:       params.Prober,
		logg:         logg,
		metrics:      params.Metrics,
		pollInterval: poll,
		settleDelay:  settle,
		subs:         make(map[int]func(State)),
	}, nil
}

// SetDrainer wires the component drained on reconnection.
func (m *Monitor) SetDrainer(d Drainer) {
	m.mu.Lock()
	m.drainer = d
	m.mu.Unlock()
}

// IsOnline returns the last published reading.
func (m *Monitor) IsOnline() bool {
	return m.online.Load()
}

// State returns the current derived state.
func (m *Monitor) State() State {
	m.mu.Lock()
	d := m.drainer
	m.mu.Unlock()
	st := State{Online: m.IsOnline()}
	if d != nil {
		st.Syncing = d.IsSyncing()
	}
	return st
}

// Subscribe registers fn for every published transition. The returned func
// removes it.
func (m *Monitor) Subscribe(fn func(State)) func() {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

// Check evaluates connectivity now and publishes the result if it changed.
func (m *Monitor) Check(ctx context.Context) bool {
	m.checkMu.Lock()
	defer m.checkMu.Unlock()

	online := false
	if m.signal.Online() {
		if err := m.prober.Probe(ctx); err != nil {
			m.logg.Debug(m.logg.WithField(ctx, "error", err.Error()), "reachability probe failed")
		} else {
			online = true
		}
	}
	if !m.publish(ctx, online) && online {
		m.drainLeftovers(ctx)
	}
	return online
}

// publish records online and notifies subscribers. It reports whether the
// state changed.
func (m *Monitor) publish(ctx context.Context, online bool) bool {
	if m.online.Swap(online) == online {
		return false
	}
	m.metrics.SetOnline(online)
	m.logg.Info(m.logg.WithField(ctx, "online", online), "reachability changed")

	m.mu.Lock()
	subs := make([]func(State), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	d := m.drainer
	if m.settle != nil {
		m.settle.Stop()
		m.settle = nil
	}
	if online && d != nil {
		m.settle = time.AfterFunc(m.settleDelay, func() { m.drainAfterSettle(d) })
	}
	m.mu.Unlock()

	st := State{Online: online}
	if d != nil {
		st.Syncing = d.IsSyncing()
	}
	for _, fn := range subs {
		fn(st)
	}
	return true
}

func (m *Monitor) drainLeftovers(ctx context.Context) {
	m.mu.Lock()
	d := m.drainer
	settling := m.settle != nil
	m.mu.Unlock()
	if settling {
		return
	}

	pd, ok := d.(PendingDrainer)
	if !ok || pd.IsSyncing() || !pd.HasPending(ctx) {
		return
	}
	if pd.TriggerSync(ctx) {
		m.logg.Info(ctx, "draining actions left pending while online")
	}
}

func (m *Monitor) drainAfterSettle(d Drainer) {
	m.mu.Lock()
	m.settle = nil
	m.mu.Unlock()
	if !m.IsOnline() || d.IsSyncing() {
		return
	}
	d.TriggerSync(context.Background())
}

// Run polls on the configured interval and reacts to native signal changes
// until ctx is done.
func (m *Monitor) Run(ctx context.Context) error {
	m.Check(ctx)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(m.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.Check(ctx)
			}
		}
	}()
	go func() {
		defer wg.Done()
		changes := m.signal.Changes()
		for {
			select {
			case <-ctx.Done():
				return
			case <-changes:
				m.Check(ctx)
			}
		}
	}()
	wg.Wait()

	m.mu.Lock()
	if m.settle != nil {
		m.settle.Stop()
		m.settle = nil
	}
	m.mu.Unlock()
	return nil
}
