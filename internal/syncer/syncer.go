// Package syncer periodically refetches the open orders and the service
// catalog and reconciles the local caches with them.
package syncer

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/washline/washsync/internal/model"
	"github.com/washline/washsync/internal/store"
)

// Backend is the part of the REST client the syncer calls.
type Backend interface {
	FetchOpenOrders(ctx context.Context) ([]model.Order, error)
	FetchCatalog(ctx context.Context) ([]model.ServiceCatalogEntry, error)
}

// Options configure a Syncer.
type Options struct {
	// Interval between order refetches. Zero disables polling.
	Interval time.Duration
	// CatalogInterval between catalog refetches. Zero disables polling.
	CatalogInterval time.Duration
	Logger          *zap.Logger
}

// Syncer keeps the order store and catalog close to the backend.
type Syncer struct {
	api     Backend
	store   *store.Store
	catalog *store.Catalog
	opts    Options
	lg      *zap.Logger
}

// New creates a Syncer.
func New(api Backend, s *store.Store, c *store.Catalog, opts Options) *Syncer {
	lg := opts.Logger
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Syncer{api: api, store: s, catalog: c, opts: opts, lg: lg}
}

// Refresh refetches the open orders and replaces the store content with
// them. Orders paid locally keep their paid flag, so a payment whose
// completion failed cannot be taken twice.
func (s *Syncer) Refresh(ctx context.Context) error {
	orders, err := s.api.FetchOpenOrders(ctx)
	if err != nil {
		return errors.Wrap(err, "refresh orders")
	}
	for i := range orders {
		if cached, ok := s.store.Get(orders[i].ID); ok && cached.Paid {
			orders[i].Paid = true
		}
	}
	s.store.ReplaceAll(orders)
	s.lg.Debug("Orders refreshed", zap.Int("count", len(orders)), zap.Uint64("version", s.store.Version()))
	return nil
}

// RefreshCatalog refetches the service catalog.
func (s *Syncer) RefreshCatalog(ctx context.Context) error {
	entries, err := s.api.FetchCatalog(ctx)
	if err != nil {
		return errors.Wrap(err, "refresh catalog")
	}
	s.catalog.Replace(entries)
	s.lg.Debug("Catalog refreshed", zap.Int("count", len(entries)))
	return nil
}

// Run refreshes both caches once, then on their intervals until ctx is
// done. Failed refreshes are logged and retried on the next tick.
func (s *Syncer) Run(ctx context.Context) error {
	s.tick(ctx, s.Refresh, "orders")
	s.tick(ctx, s.RefreshCatalog, "catalog")

	orders := newTicker(s.opts.Interval)
	defer orders.stop()
	catalog := newTicker(s.opts.CatalogInterval)
	defer catalog.stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-orders.c:
			s.tick(ctx, s.Refresh, "orders")
		case <-catalog.c:
			s.tick(ctx, s.RefreshCatalog, "catalog")
		}
	}
}

func (s *Syncer) tick(ctx context.Context, fn func(context.Context) error, what string) {
	if err := fn(ctx); err != nil && ctx.Err() == nil {
		s.lg.Warn("Refresh failed", zap.String("what", what), zap.Error(err))
	}
}

// ticker is a time.Ticker whose channel is nil, never firing, for a zero
// interval.
type ticker struct {
	t *time.Ticker
	c <-chan time.Time
}

func newTicker(d time.Duration) ticker {
	if d <= 0 {
		return ticker{}
	}
	t := time.NewTicker(d)
	return ticker{t: t, c: t.C}
}

func (t ticker) stop() {
	if t.t != nil {
		t.t.Stop()
	}
}
