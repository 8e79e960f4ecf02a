// Package app wires the client together and runs it until shutdown.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	sdkapp "github.com/go-faster/sdk/app"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/washline/washsync/internal/auth"
	"github.com/washline/washsync/internal/backend"
	"github.com/washline/washsync/internal/config"
	"github.com/washline/washsync/internal/lifecycle"
	"github.com/washline/washsync/internal/payment"
	"github.com/washline/washsync/internal/realtime"
	"github.com/washline/washsync/internal/router"
	"github.com/washline/washsync/internal/store"
	"github.com/washline/washsync/internal/syncer"
	"github.com/washline/washsync/internal/ws"
)

// App holds the wired components of one client session.
type App struct {
	cfg *config.Config
	lg  *zap.Logger

	session  *auth.Session
	reach    *backend.Reachability
	api      *backend.Client
	store    *store.Store
	catalog  *store.Catalog
	lc       *lifecycle.Controller
	payments *payment.Reconciler
	syncer   *syncer.Syncer
	realtime *realtime.Sync
	events   *ws.Hub
	router   chi.Router
	dialer   *websocket.Dialer
}

// Run creates all dependencies, starts the poller, the realtime listener
// and the local bridge, and handles graceful shutdown. It is the single
// wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *sdkapp.Metrics, cfg *config.Config) error {
	a, err := New(lg, m.TracerProvider(), cfg)
	if err != nil {
		return err
	}
	return a.Run(ctx)
}

// New wires the components without starting anything.
func New(lg *zap.Logger, tp trace.TracerProvider, cfg *config.Config) (*App, error) {
	line, err := cfg.OrderLine()
	if err != nil {
		return nil, err
	}

	session := auth.NewSession(cfg.Token)
	reach := &backend.Reachability{}
	api, err := backend.New(backend.Options{
		BaseURL: cfg.BaseURL,
		Line:    line,
		HTTPClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport, otelhttp.WithTracerProvider(tp)),
		},
		Tokens:       session,
		Connectivity: reach,
		Logger:       lg.Named("backend"),
	})
	if err != nil {
		return nil, errors.Wrap(err, "create backend client")
	}

	orders := store.New(lg.Named("store"))
	catalog := store.NewCatalog()
	lc := lifecycle.New(api, orders, lifecycle.Options{
		Logger:         lg.Named("lifecycle"),
		TracerProvider: tp,
		Catalog:        catalog,
		Identity:       session,
	})
	payments := payment.New(api, lc, orders, payment.Options{
		Methods:        cfg.PaymentMethods.Methods(),
		Logger:         lg.Named("payment"),
		TracerProvider: tp,
	})
	poller := syncer.New(api, orders, catalog, syncer.Options{
		Interval:        cfg.PollInterval,
		CatalogInterval: cfg.CatalogInterval,
		Logger:          lg.Named("syncer"),
	})
	events := ws.NewHub(lg.Named("events"))
	orders.Subscribe(events.StoreChanged)

	a := &App{
		cfg:      cfg,
		lg:       lg,
		session:  session,
		reach:    reach,
		api:      api,
		store:    orders,
		catalog:  catalog,
		lc:       lc,
		payments: payments,
		syncer:   poller,
		realtime: realtime.NewSync(orders, lg.Named("realtime")),
		events:   events,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		},
	}
	a.router = router.New(router.Deps{
		Session:        session,
		Store:          orders,
		Catalog:        catalog,
		Lifecycle:      lc,
		Payments:       payments,
		Refresher:      poller,
		Events:         events,
		Connectivity:   reach,
		Logger:         lg.Named("bridge"),
		AllowedOrigins: cfg.AllowedOrigins,
	})
	return a, nil
}

// Handler returns the local bridge.
func (a *App) Handler() http.Handler {
	return a.router
}

// Run blocks until ctx is done or a component fails.
func (a *App) Run(ctx context.Context) error {
	lg := a.lg
	lg.Info("Initializing",
		zap.String("line", string(a.api.Line())),
		zap.String("base_url", a.cfg.BaseURL),
		zap.String("bridge", a.cfg.BridgeAddr),
	)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      35 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              a.cfg.BridgeAddr,
		Handler:           a.router,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.events.Run(ctx)
	})
	g.Go(func() error {
		return a.syncer.Run(ctx)
	})
	g.Go(func() error {
		return a.listen(ctx)
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down bridge", zap.Duration("timeout", a.cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "shutdown bridge")
		}
		return nil
	})
	g.Go(func() error {
		lg.Info("Bridge listening", zap.String("addr", a.cfg.BridgeAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "bridge")
		}
		return nil
	})

	return g.Wait()
}

// listen keeps the realtime channel connected, reconnecting with
// exponential backoff. Each new connection is followed by a full refresh
// to catch up on events missed while disconnected.
func (a *App) listen(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = a.cfg.Reconnect.InitialInterval
	b.MaxInterval = a.cfg.Reconnect.MaxInterval
	b.MaxElapsedTime = 0
	b.Reset()

	for {
		token, err := a.session.Token()
		connected := false
		if err == nil {
			connected, err = a.listenOnce(ctx, token)
		}
		if ctx.Err() != nil {
			return nil
		}
		if connected {
			b.Reset()
		}
		delay := b.NextBackOff()

		switch {
		case errors.Is(err, auth.ErrTokenMissing):
			a.lg.Debug("Realtime waiting for session", zap.Duration("retry_in", delay))
		case errors.Is(err, backend.ErrSubscriptionExpired):
			// Retrying cannot help until the shell signs in again.
			a.lg.Error("Realtime refused: subscription expired, waiting for a new session")
			if err := a.waitSessionChange(ctx, token); err != nil {
				return nil
			}
			b.Reset()
			continue
		case errors.Is(err, backend.ErrNetworkUnavailable):
			a.lg.Debug("Realtime waiting for network", zap.Duration("retry_in", delay))
		case errors.Is(err, realtime.ErrConnectionClosed):
			a.lg.Info("Realtime connection closed", zap.Duration("retry_in", delay))
		default:
			a.lg.Warn("Realtime disconnected", zap.Error(err), zap.Duration("retry_in", delay))
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

func (a *App) listenOnce(ctx context.Context, token string) (connected bool, err error) {
	if !a.reach.Online() {
		return false, backend.ErrNetworkUnavailable
	}
	conn, err := realtime.Dial(ctx, a.dialer, a.cfg.WebSocketURL, token)
	if err != nil {
		return false, err
	}
	a.lg.Info("Realtime connected")

	if err := a.syncer.Refresh(ctx); err != nil {
		a.lg.Warn("Catch-up refresh failed", zap.Error(err))
	}
	return true, a.realtime.Listen(ctx, conn)
}

// waitSessionChange blocks until the session holds a token other than
// stale.
func (a *App) waitSessionChange(ctx context.Context, stale string) error {
	every := a.cfg.Reconnect.InitialInterval
	if every <= 0 {
		every = time.Second
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if token, err := a.session.Token(); err == nil && token != stale {
				return nil
			}
		}
	}
}
