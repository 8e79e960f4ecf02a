package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/washline/washsync/internal/auth"
	"github.com/washline/washsync/internal/backend"
	"github.com/washline/washsync/internal/handler"
	mw "github.com/washline/washsync/internal/middleware"
	"github.com/washline/washsync/internal/store"
	"github.com/washline/washsync/internal/ws"
)

// Deps are the components the bridge exposes.
type Deps struct {
	Session   *auth.Session
	Store     *store.Store
	Catalog   *store.Catalog
	Lifecycle handler.Lifecycle
	Payments  handler.Payments
	Refresher handler.Refresher
	// Events streams store changes to the shell. Optional.
	Events *ws.Hub
	// Connectivity receives the shell's network state. Optional.
	Connectivity *backend.Reachability
	Logger *zap.Logger
	// AllowedOrigins of the shell's web view. Empty allows any origin.
	AllowedOrigins []string
}

// New creates a Chi router with all bridge routes wired up. Everything but
// /health, /session and /connectivity requires a signed-in session.
func New(d Deps) chi.Router {
	lg := d.Logger
	if lg == nil {
		lg = zap.NewNop()
	}

	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.RequestID)
	r.Use(mw.Logger(lg))
	r.Use(middleware.Recoverer)

	origins := d.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	handler.NewSessionHandler(d.Session, lg).RegisterRoutes(r)
	if d.Connectivity != nil {
		handler.NewConnectivityHandler(d.Connectivity, lg).RegisterRoutes(r)
	}

	// Signed-in routes
	r.Group(func(r chi.Router) {
		r.Use(mw.RequireSession(d.Session))

		orderHandler := handler.NewOrderHandler(d.Store, d.Lifecycle, lg)
		paymentHandler := handler.NewPaymentHandler(d.Payments, lg)
		r.Route("/orders", func(r chi.Router) {
			orderHandler.RegisterRoutes(r)
			r.Route("/{id}/payment", paymentHandler.RegisterRoutes)
		})

		handler.NewSyncHandler(d.Store, d.Catalog, d.Refresher, lg).RegisterRoutes(r)
		if d.Events != nil {
			r.Get("/events", ws.Handler(d.Events))
		}
	})

	lg.Debug("Router initialized")
	return r
}
