package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/angelmondragon/possync/internal/queue"
	"github.com/angelmondragon/possync/internal/remote"
	"github.com/angelmondragon/possync/pkg/enums"
	"github.com/angelmondragon/possync/pkg/logger"
	"github.com/angelmondragon/possync/pkg/metrics"
)

const DefaultMaxRetries = 3

// Reasons a drain pass did not run.
const (
	SkipAlreadySyncing = "already_syncing"
	SkipOffline        = "offline"
	SkipEmpty          = "empty"
	SkipLocked         = "locked"
)

type pendingQueue interface {
	ListPending(ctx context.Context) ([]queue.Entry, error)
	RemoveByID(ctx context.Context, id string) error
	IncrementRetry(ctx context.Context, id string) (int, error)
	Len(ctx context.Context) (int, error)
}

type saleMarker interface {
	MarkSaleSynced(ctx context.Context, id string) (bool, error)
}

// Reachability reports whether the backend is currently confirmed reachable.
type Reachability interface {
	IsOnline() bool
}

// Invalidator drops cached read views after a pass changed remote state.
type Invalidator interface {
	Invalidate()
}

// InvalidatorFunc adapts a function to Invalidator.
type InvalidatorFunc func()

func (f InvalidatorFunc) Invalidate() { f() }

// EvictionEvent reports an action dropped without its remote effect.
type EvictionEvent struct {
	ActionID string               `json:"action_id"`
	Kind     enums.ActionKind     `json:"kind"`
	Reason   enums.EvictionReason `json:"reason"`
	Attempts int                  `json:"attempts"`
	Error    string               `json:"error"`
	At       time.Time            `json:"at"`
}

// Result summarises one drain pass.
type Result struct {
	Skipped   string        `json:"skipped,omitempty"`
	Processed int           `json:"processed"`
	Applied   int           `json:"applied"`
	Retried   int           `json:"retried"`
	Evicted   int           `json:"evicted"`
	Duration  time.Duration `json:"duration"`
}

type EngineParams struct {
	Queue        pendingQueue
	Backend      remote.Backend
	Reachability Reachability
	Sales        saleMarker
	Lock         Lock
	Logger       *logger.Logger
	Metrics      *metrics.SyncMetrics
	MaxRetries   int
}

// Engine replays the offline queue against the remote backend.
type Engine struct {
	queue      pendingQueue
	backend    remote.Backend
	reach      Reachability
	sales      saleMarker
	lock       Lock
	logg       *logger.Logger
	metrics    *metrics.SyncMetrics
	maxRetries int
	now        func() time.Time

	syncing atomic.Bool

	mu           sync.Mutex
	nextID       int
	evictionSubs map[int]func(EvictionEvent)
	syncingSubs  map[int]func(bool)
	invalidators []Invalidator
}

func NewEngine(params EngineParams) (*Engine, error) {
	if params.Queue == nil {
		return nil, errors.New("queue is required")
	}
	if params.Backend == nil {
		return nil, errors.New("remote backend is required")
	}
	if params.Reachability == nil {
		return nil, errors.New("reachability is required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	maxRetries := params.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &Engine{
		queue:        params.Queue,
		backend:      params.Backend,
		reach:        params.Reachability,
		sales:        params.Sales,
		lock:         params.Lock,
		logg:         logg,
		metrics:      params.Metrics,
		maxRetries:   maxRetries,
		now:          time.Now,
		evictionSubs: make(map[int]func(EvictionEvent)),
		syncingSubs:  make(map[int]func(bool)),
	}, nil
}

func (e *Engine) IsSyncing() bool {
	return e.syncing.Load()
}

// SubscribeEvictions registers fn for every evicted action.
func (e *Engine) SubscribeEvictions(fn func(EvictionEvent)) func() {
	e.mu.Lock()
	id := e.nextID
	e.nextID++
	e.evictionSubs[id] = fn
	e.mu.Unlock()
	return func() {
		e.mu.Lock()
		delete(e.evictionSubs, id)
		e.mu.Unlock()
	}
}

// SubscribeSyncing registers fn for every start and end of a drain pass.
func (e *Engine) SubscribeSyncing(fn func(bool)) func() {
	e.mu.Lock()
	id := e.nextID
	e.nextID++
	e.syncingSubs[id] = fn
	e.mu.Unlock()
	return func() {
		e.mu.Lock()
		delete(e.syncingSubs, id)
		e.mu.Unlock()
	}
}

func (e *Engine) AddInvalidator(inv Invalidator) {
	if inv == nil {
		return
	}
	e.mu.Lock()
	e.invalidators = append(e.invalidators, inv)
	e.mu.Unlock()
}

// HasPending reports whether the queue holds at least one action.
func (e *Engine) HasPending(ctx context.Context) bool {
	n, err := e.queue.Len(ctx)
	if err != nil {
		e.logg.Warn(e.logg.WithField(ctx, "error", err.Error()), "failed to count pending actions")
		return false
	}
	return n > 0
}

// TriggerSync starts a drain in the background. It reports false when a
// drain is already running.
func (e *Engine) TriggerSync(ctx context.Context) bool {
	if !e.begin() {
		return false
	}
	ctx = context.WithoutCancel(ctx)
	go func() {
		defer e.end()
		if _, err := e.drain(ctx); err != nil {
			e.logg.Error(ctx, "sync drain failed", err)
		}
	}()
	return true
}

// Drain replays a snapshot of the queue in FIFO order. A failing action never
// aborts the pass.
func (e *Engine) Drain(ctx context.Context) (Result, error) {
	if !e.begin() {
		return Result{Skipped: SkipAlreadySyncing}, nil
	}
	defer e.end()
	return e.drain(ctx)
}

func (e *Engine) begin() bool {
	if !e.syncing.CompareAndSwap(false, true) {
		return false
	}
	e.notifySyncing(true)
	return true
}

func (e *Engine) end() {
	e.syncing.Store(false)
	e.notifySyncing(false)
}

func (e *Engine) drain(ctx context.Context) (Result, error) {
	if !e.reach.IsOnline() {
		return Result{Skipped: SkipOffline}, nil
	}

	entries, err := e.queue.ListPending(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("list pending actions: %w", err)
	}
	if len(entries) == 0 {
		e.metrics.SetQueueDepth(0)
		return Result{Skipped: SkipEmpty}, nil
	}

	if e.lock != nil {
		acquired, err := e.lock.Acquire(ctx)
		if err != nil {
			return Result{}, fmt.Errorf("acquire drain lock: %w", err)
		}
		if !acquired {
			e.logg.Info(ctx, "sync drain skipped; another terminal holds the lock")
			return Result{Skipped: SkipLocked}, nil
		}
		defer func() {
			if err := e.lock.Release(ctx); err != nil {
				e.logg.Warn(e.logg.WithField(ctx, "error", err.Error()), "failed to release drain lock")
			}
		}()
	}

	start := e.now()
	var res Result
	for _, entry := range entries {
		e.process(ctx, entry, &res)
	}
	res.Duration = e.now().Sub(start)

	if res.Processed > 0 {
		e.invalidate()
	}

	outcome := "ok"
	if res.Retried > 0 || res.Evicted > 0 {
		outcome = "partial"
	}
	e.metrics.ObserveDrain(outcome, res.Duration)
	if depth, err := e.queue.Len(ctx); err == nil {
		e.metrics.SetQueueDepth(depth)
	}

	e.logg.Info(e.logg.WithFields(ctx, map[string]any{
		"processed": res.Processed,
		"applied":   res.Applied,
		"retried":   res.Retried,
		"evicted":   res.Evicted,
	}), "sync drain finished")
	return res, nil
}

func (e *Engine) process(ctx context.Context, entry queue.Entry, res *Result) {
	ctx = e.logg.WithActionID(ctx, entry.ID)
	ctx = e.logg.WithField(ctx, "action_kind", string(entry.Kind))
	res.Processed++

	if entry.Err != nil {
		e.evict(ctx, entry, enums.EvictionReasonNonRetryable, entry.RetryCount, entry.Err, res)
		return
	}
	if entry.RetryCount >= e.maxRetries {
		e.evict(ctx, entry, enums.EvictionReasonMaxAttempts, entry.RetryCount, errors.New("retry budget already spent"), res)
		return
	}

	applyErr := e.Apply(ctx, entry.ID, entry.Action)
	if applyErr == nil {
		if err := e.queue.RemoveByID(ctx, entry.ID); err != nil {
			e.logg.Error(ctx, "failed to remove applied action; it will be replayed", err)
		}
		res.Applied++
		e.metrics.IncAction(string(entry.Kind), metrics.OutcomeApplied)
		return
	}

	attempts, err := e.queue.IncrementRetry(ctx, entry.ID)
	if errors.Is(err, queue.ErrGone) {
		e.logg.Warn(ctx, "action disappeared during replay")
		return
	}
	if err != nil {
		e.logg.Error(ctx, "failed to record retry", err)
		return
	}
	if attempts >= e.maxRetries {
		e.evict(ctx, entry, enums.EvictionReasonMaxAttempts, attempts, applyErr, res)
		return
	}

	res.Retried++
	e.metrics.IncAction(string(entry.Kind), metrics.OutcomeRetry)
	e.logg.Warn(e.logg.WithFields(ctx, map[string]any{
		"attempts": attempts,
		"error":    applyErr.Error(),
	}), "action replay failed; will retry")
}

func (e *Engine) evict(ctx context.Context, entry queue.Entry, reason enums.EvictionReason, attempts int, cause error, res *Result) {
	if err := e.queue.RemoveByID(ctx, entry.ID); err != nil {
		e.logg.Error(ctx, "failed to evict action", err)
		return
	}
	res.Evicted++
	e.metrics.IncAction(string(entry.Kind), metrics.OutcomeEvicted)
	e.metrics.IncEviction(string(entry.Kind), string(reason))

	event := EvictionEvent{
		ActionID: entry.ID,
		Kind:     entry.Kind,
		Reason:   reason,
		Attempts: attempts,
		At:       e.now().UTC(),
	}
	if cause != nil {
		event.Error = cause.Error()
	}
	e.logg.Warn(e.logg.WithFields(ctx, map[string]any{
		"reason":   string(reason),
		"attempts": attempts,
		"error":    event.Error,
	}), "action evicted from offline queue; it will not be retried")

	e.mu.Lock()
	subs := make([]func(EvictionEvent), 0, len(e.evictionSubs))
	for _, fn := range e.evictionSubs {
		subs = append(subs, fn)
	}
	e.mu.Unlock()
	for _, fn := range subs {
		fn(event)
	}
}

func (e *Engine) notifySyncing(syncing bool) {
	e.mu.Lock()
	subs := make([]func(bool), 0, len(e.syncingSubs))
	for _, fn := range e.syncingSubs {
		subs = append(subs, fn)
	}
	e.mu.Unlock()
	for _, fn := range subs {
		fn(syncing)
	}
}

func (e *Engine) invalidate() {
	e.mu.Lock()
	invs := append([]Invalidator(nil), e.invalidators...)
	e.mu.Unlock()
	for _, inv := range invs {
		inv.Invalidate()
	}
}
