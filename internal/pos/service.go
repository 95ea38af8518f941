package pos

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/angelmondragon/possync/internal/catalog"
	"github.com/angelmondragon/possync/internal/localstore"
	"github.com/angelmondragon/possync/internal/queue"
	"github.com/angelmondragon/possync/internal/reachability"
	"github.com/angelmondragon/possync/internal/syncer"
	"github.com/angelmondragon/possync/pkg/auth"
	pkgerrors "github.com/angelmondragon/possync/pkg/errors"
	"github.com/angelmondragon/possync/pkg/logger"
	"github.com/angelmondragon/possync/pkg/metrics"
	"github.com/google/uuid"
	"go.uber.org/multierr"
)

type monitor interface {
	IsOnline() bool
	Subscribe(fn func(reachability.State)) func()
}

type engine interface {
	Apply(ctx context.Context, actionID string, a queue.Action) error
	TriggerSync(ctx context.Context) bool
	IsSyncing() bool
	SubscribeEvictions(fn func(syncer.EvictionEvent)) func()
	SubscribeSyncing(fn func(bool)) func()
}

type productCache interface {
	GetProducts(ctx context.Context) catalog.View
	GetByBarcode(ctx context.Context, code string) (*localstore.Product, string)
	Invalidate()
	Generation() uint64
}

type ServiceParams struct {
	// Store and Queue are nil when the local store could not be opened; the
	// service then runs remote-only.
	Store    *localstore.Store
	Queue    *queue.Queue
	Monitor  monitor
	Engine   engine
	Catalog  productCache
	Identity auth.TerminalIdentity
	Logger   *logger.Logger
	Metrics  *metrics.SyncMetrics
}

// Service is the surface the till UI talks to.
type Service struct {
	store    *localstore.Store
	queue    *queue.Queue
	monitor  monitor
	engine   engine
	catalog  productCache
	identity auth.TerminalIdentity
	logg     *logger.Logger
	metrics  *metrics.SyncMetrics
	now      func() time.Time

	mu      sync.Mutex
	nextSub int
	subs    map[int]func(Event)
	unsubs  []func()
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Monitor == nil {
		return nil, errors.New("reachability monitor is required")
	}
	if params.Engine == nil {
		return nil, errors.New("sync engine is required")
	}
	if params.Catalog == nil {
		return nil, errors.New("catalog is required")
	}
	if (params.Store == nil) != (params.Queue == nil) {
		return nil, errors.New("store and queue must be provided together")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}

	s := &Service{
		store:    params.Store,
		queue:    params.Queue,
		monitor:  params.Monitor,
		engine:   params.Engine,
		catalog:  params.Catalog,
		identity: params.Identity,
		logg:     logg,
		metrics:  params.Metrics,
		now:      time.Now,
		subs:     make(map[int]func(Event)),
	}
	s.unsubs = append(s.unsubs,
		s.monitor.Subscribe(func(st reachability.State) {
			s.publish(Event{Type: EventState, State: &st})
		}),
		s.engine.SubscribeSyncing(s.onSyncing),
		s.engine.SubscribeEvictions(func(ev syncer.EvictionEvent) {
			s.publish(Event{Type: EventEviction, Eviction: &ev})
		}),
	)
	return s, nil
}

// OfflineCapable reports whether mutations can be queued locally.
func (s *Service) OfflineCapable() bool {
	return s.store != nil
}

func (s *Service) IsOnline() bool { return s.monitor.IsOnline() }

func (s *Service) IsSyncing() bool { return s.engine.IsSyncing() }

// State is the derived reachability view.
func (s *Service) State() reachability.State {
	return reachability.State{Online: s.IsOnline(), Syncing: s.IsSyncing()}
}

// PendingCount is the number of queued actions; zero in remote-only mode.
func (s *Service) PendingCount(ctx context.Context) (int, error) {
	if s.queue == nil {
		return 0, nil
	}
	return s.queue.Len(ctx)
}

// TriggerSync starts a drain unless one is already running.
func (s *Service) TriggerSync(ctx context.Context) bool {
	return s.engine.TriggerSync(ctx)
}

func (s *Service) GetCachedProducts(ctx context.Context) catalog.View {
	return s.catalog.GetProducts(ctx)
}

func (s *Service) GetCachedProductByBarcode(ctx context.Context, code string) (*localstore.Product, string) {
	return s.catalog.GetByBarcode(ctx, code)
}

// ViewsGeneration changes whenever cached read views were invalidated.
func (s *Service) ViewsGeneration() uint64 {
	return s.catalog.Generation()
}

// Sales returns the local sale journal, newest first.
func (s *Service) Sales(ctx context.Context) ([]localstore.OfflineSale, error) {
	if s.store == nil {
		return []localstore.OfflineSale{}, nil
	}
	return s.store.ListSales(ctx)
}

// Subscribe registers fn for state changes, evictions and queue depth
// updates. The returned func removes it.
func (s *Service) Subscribe(fn func(Event)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Close detaches from the monitor and engine and closes the local store.
func (s *Service) Close() error {
	s.mu.Lock()
	unsubs := s.unsubs
	s.unsubs = nil
	s.mu.Unlock()
	for _, fn := range unsubs {
		fn()
	}

	var err error
	if s.store != nil {
		err = multierr.Append(err, s.store.Close())
	}
	return err
}

// Outcome reports how EnqueueOrSend handled a mutation.
type Outcome struct {
	ActionID string           `json:"action_id"`
	Kind     string           `json:"kind"`
	Queued   bool             `json:"queued"`
	Sale     *queue.RecordSale `json:"sale,omitempty"`
}

// EnqueueOrSend applies a remotely when reachable. When unreachable, or when
// the direct call fails, it queues a durably and applies its optimistic
// effect to the local cache.
func (s *Service) EnqueueOrSend(ctx context.Context, a queue.Action) (Outcome, error) {
	a = s.prepare(a)
	if err := s.validate(a); err != nil {
		return Outcome{}, err
	}

	id := queue.NewActionID(a.Kind(), s.now().UTC())
	ctx = s.logg.WithActionID(ctx, id)
	out := Outcome{ActionID: id, Kind: string(a.Kind())}
	if sale, ok := a.(queue.RecordSale); ok {
		out.Sale = &sale
	}

	if s.monitor.IsOnline() {
		err := s.engine.Apply(ctx, id, a)
		if err == nil {
			s.applyLocal(ctx, a)
			s.catalog.Invalidate()
			return out, nil
		}
		if pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
			return Outcome{}, err
		}
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "direct remote call failed; queueing action")
	}

	if s.queue == nil {
		return Outcome{}, pkgerrors.New(pkgerrors.CodeOfflineUnavailable, "remote unreachable and offline storage is disabled")
	}
	if err := s.queue.EnqueueWithID(ctx, id, a); err != nil {
		return Outcome{}, err
	}
	out.Queued = true

	s.applyLocal(ctx, a)
	if sale, ok := a.(queue.RecordSale); ok {
		s.journalSale(ctx, id, sale)
	}
	s.catalog.Invalidate()
	s.publishPending(ctx)
	return out, nil
}

func (s *Service) validate(a queue.Action) error {
	if s.queue != nil {
		return s.queue.Validate(a)
	}
	return validateDetached(a)
}

// prepare fills the fields of a sale the UI does not own.
func (s *Service) prepare(a queue.Action) queue.Action {
	sale, ok := a.(queue.RecordSale)
	if !ok {
		return a
	}
	if sale.SaleID == "" {
		sale.SaleID = uuid.NewString()
	}
	if sale.TerminalID == "" {
		sale.TerminalID = s.identity.TerminalID
	}
	if sale.StoreID == "" {
		sale.StoreID = s.identity.StoreID
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = s.now().UTC()
	}
	if sale.Total.IsZero() {
		sale.Total = sale.ComputeTotal()
	}
	return sale
}

func (s *Service) journalSale(ctx context.Context, actionID string, sale queue.RecordSale) {
	items := make([]localstore.OfflineSaleItem, 0, len(sale.Items))
	for _, line := range sale.Items {
		items = append(items, localstore.OfflineSaleItem{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
		})
	}
	record := localstore.NewOfflineSale(sale.SaleID, actionID, string(sale.PaymentMethod), items, sale.CreatedAt)
	if err := s.store.PutSale(ctx, record); err != nil {
		s.logg.Error(ctx, "failed to journal offline sale", err)
	}
}

func (s *Service) onSyncing(syncing bool) {
	ctx := context.Background()
	s.publish(Event{Type: EventState, State: &reachability.State{Online: s.IsOnline(), Syncing: syncing}})
	if !syncing {
		s.publishPending(ctx)
	}
}

func (s *Service) publishPending(ctx context.Context) {
	n, err := s.PendingCount(ctx)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "failed to count pending actions")
		return
	}
	s.metrics.SetQueueDepth(n)
	s.publish(Event{Type: EventPending, Pending: &n})
}

func (s *Service) publish(ev Event) {
	s.mu.Lock()
	subs := make([]func(Event), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()
	for _, fn := range subs {
		fn(ev)
	}
}
