package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/washline/washsync/internal/store"
)

// Refresher defines the syncer methods needed by SyncHandler.
// Satisfied by *syncer.Syncer.
type Refresher interface {
	Refresh(ctx context.Context) error
	RefreshCatalog(ctx context.Context) error
}

// SyncHandler serves the catalog and on-demand refreshes.
type SyncHandler struct {
	catalog *store.Catalog
	store   *store.Store
	sync    Refresher
	lg      *zap.Logger
}

// NewSyncHandler creates a new SyncHandler.
func NewSyncHandler(s *store.Store, c *store.Catalog, sync Refresher, lg *zap.Logger) *SyncHandler {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &SyncHandler{catalog: c, store: s, sync: sync, lg: lg}
}

// RegisterRoutes registers catalog and refresh endpoints.
func (h *SyncHandler) RegisterRoutes(r chi.Router) {
	r.Get("/catalog", h.Catalog)
	r.Post("/refresh", h.Refresh)
}

type catalogEntryResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Price string `json:"price"`
}

// Catalog handles GET /catalog.
func (h *SyncHandler) Catalog(w http.ResponseWriter, r *http.Request) {
	entries := h.catalog.List()
	resp := make([]catalogEntryResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, catalogEntryResponse{ID: e.ID, Name: e.Name, Price: e.Price.String()})
	}
	writeJSON(w, http.StatusOK, resp)
}

// Refresh handles POST /refresh: refetches orders and catalog together.
func (h *SyncHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error { return h.sync.Refresh(ctx) })
	g.Go(func() error { return h.sync.RefreshCatalog(ctx) })
	if err := g.Wait(); err != nil {
		writeError(w, h.lg, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"version": h.store.Version(),
		"orders":  h.store.Len(),
	})
}
