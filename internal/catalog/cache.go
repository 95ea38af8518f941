package catalog

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/angelmondragon/possync/internal/localstore"
	"github.com/angelmondragon/possync/internal/remote"
	"github.com/angelmondragon/possync/pkg/logger"
)

// Where a read was answered from.
const (
	SourceRemote = "remote"
	SourceMemory = "memory"
	SourceStore  = "store"
	SourceNone   = "none"
)

type productStore interface {
	ListProducts(ctx context.Context) ([]localstore.Product, error)
	ReplaceProducts(ctx context.Context, products []localstore.Product) error
	GetProductByBarcode(ctx context.Context, code string) (*localstore.Product, error)
	PutProduct(ctx context.Context, p localstore.Product) error
}

type reachability interface {
	IsOnline() bool
}

// View is a product list and where it came from.
type View struct {
	Products   []localstore.Product `json:"products"`
	Source     string               `json:"source"`
	Generation uint64               `json:"generation"`
}

type Params struct {
	// Store is nil in remote-only mode.
	Store        productStore
	Backend      remote.Backend
	Reachability reachability
	Logger       *logger.Logger
}

// Cache answers product reads from the remote when reachable and from the
// last persisted snapshot otherwise.
type Cache struct {
	store   productStore
	backend remote.Backend
	reach   reachability
	logg    *logger.Logger
	now     func() time.Time

	mu   sync.Mutex
	view []localstore.Product

	generation atomic.Uint64
}

func New(params Params) (*Cache, error) {
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
	return &Cache{
		store:   params.Store,
		backend: params.Backend,
		reach:   params.Reachability,
		logg:    logg,
		now:     time.Now,
	}, nil
}

// GetProducts never fails: a remote error falls back to the snapshot and a
// store error degrades to an empty list.
func (c *Cache) GetProducts(ctx context.Context) View {
	if c.reach.IsOnline() {
		products, err := c.fetchRemote(ctx)
		if err == nil {
			c.setView(products)
			if c.store != nil {
				if err := c.store.ReplaceProducts(ctx, products); err != nil {
					c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), "failed to persist product snapshot")
				}
			}
			return c.viewOf(products, SourceRemote)
		}
		c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), "remote product fetch failed; serving cached snapshot")
	}

	c.mu.Lock()
	cached := c.view
	c.mu.Unlock()
	if cached != nil {
		return c.viewOf(cached, SourceMemory)
	}

	if c.store == nil {
		return c.viewOf(nil, SourceNone)
	}
	products, err := c.store.ListProducts(ctx)
	if err != nil {
		c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), "reading product snapshot failed")
		return c.viewOf(nil, SourceNone)
	}
	c.setView(products)
	return c.viewOf(products, SourceStore)
}

// GetByBarcode returns the product whose barcode equals code exactly, or nil.
func (c *Cache) GetByBarcode(ctx context.Context, code string) (*localstore.Product, string) {
	if code == "" {
		return nil, SourceNone
	}
	if c.reach.IsOnline() {
		rows, err := c.backend.Select(ctx, remote.TableProducts, remote.Filter{"barcode": code})
		if err == nil {
			if len(rows) == 0 {
				return nil, SourceRemote
			}
			p := productFromRecord(rows[0], c.now().UTC())
			if c.store != nil {
				if err := c.store.PutProduct(ctx, p); err != nil {
					c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), "failed to cache product")
				}
			}
			return &p, SourceRemote
		}
		c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), "remote barcode lookup failed; using cache")
	}

	if c.store == nil {
		return nil, SourceNone
	}
	p, err := c.store.GetProductByBarcode(ctx, code)
	if err != nil {
		c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), "cached barcode lookup failed")
		return nil, SourceNone
	}
	return p, SourceStore
}

// Invalidate drops the in-memory view so the next read refetches.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.view = nil
	c.mu.Unlock()
	c.generation.Add(1)
}

// Generation increases on every invalidation; readers compare it to decide
// when to refetch.
func (c *Cache) Generation() uint64 {
	return c.generation.Load()
}

func (c *Cache) fetchRemote(ctx context.Context) ([]localstore.Product, error) {
	rows, err := c.backend.Select(ctx, remote.TableProducts, nil)
	if err != nil {
		return nil, err
	}
	now := c.now().UTC()
	products := make([]localstore.Product, 0, len(rows))
	for _, rec := range rows {
		p := productFromRecord(rec, now)
		if p.ID == "" {
			continue
		}
		products = append(products, p)
	}
	return products, nil
}

func (c *Cache) setView(products []localstore.Product) {
	if products == nil {
		products = []localstore.Product{}
	}
	c.mu.Lock()
	c.view = products
	c.mu.Unlock()
}

func (c *Cache) viewOf(products []localstore.Product, source string) View {
	out := make([]localstore.Product, len(products))
	copy(out, products)
	return View{Products: out, Source: source, Generation: c.Generation()}
}
