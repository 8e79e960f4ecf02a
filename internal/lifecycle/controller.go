// Package lifecycle drives orders through their states and owns every
// mutation of an order's services. Each order has at most one mutation in
// flight; the store is only patched after the backend accepted the change,
// so a failed request leaves it untouched.
package lifecycle

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/washline/washsync/internal/enum"
	"github.com/washline/washsync/internal/model"
	"github.com/washline/washsync/internal/store"
)

// allowedTransitions is keyed by current status. Terminal statuses have no
// entry.
var allowedTransitions = map[enum.OrderStatus][]enum.OrderStatus{
	enum.OrderStatusOpen:  {enum.OrderStatusReady, enum.OrderStatusCompleted, enum.OrderStatusDeleted},
	enum.OrderStatusReady: {enum.OrderStatusOpen, enum.OrderStatusCompleted, enum.OrderStatusDeleted},
}

// CanTransition reports whether the table allows from → to.
func CanTransition(from, to enum.OrderStatus) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Backend is the part of the REST client the controller calls.
type Backend interface {
	MarkReady(ctx context.Context, orderID string) error
	Reopen(ctx context.Context, orderID string) error
	Complete(ctx context.Context, orderID string) error
	Delete(ctx context.Context, orderID string) error

	CreateAssignment(ctx context.Context, req model.AssignmentRequest) (*model.ServiceAssignment, error)
	DeleteAssignment(ctx context.Context, assignmentID string) error
	GetSalarySetting(ctx context.Context, serviceID, userID string) (*model.SalarySetting, error)
	CreateSalarySetting(ctx context.Context, s model.SalarySetting) error
}

// Identity yields the signed-in staff user, the default assignee.
type Identity interface {
	UserID() (string, error)
}

// Options configure a Controller.
type Options struct {
	Logger         *zap.Logger
	TracerProvider trace.TracerProvider
	// Catalog fills service names and default prices of new assignments.
	Catalog  *store.Catalog
	Identity Identity
}

// Controller serializes order mutations and applies their outcome to the
// store.
type Controller struct {
	api     Backend
	store   *store.Store
	catalog *store.Catalog
	ident   Identity
	lg      *zap.Logger
	tracer  trace.Tracer

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// New creates a Controller.
func New(api Backend, s *store.Store, opts Options) *Controller {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.TracerProvider == nil {
		opts.TracerProvider = otel.GetTracerProvider()
	}
	return &Controller{
		api:      api,
		store:    s,
		catalog:  opts.Catalog,
		ident:    opts.Identity,
		lg:       opts.Logger,
		tracer:   opts.TracerProvider.Tracer("washsync/lifecycle"),
		inFlight: make(map[string]struct{}),
	}
}

// Acquire takes the order's in-flight guard. It fails with
// ErrConcurrentMutation when the guard is held; otherwise the returned
// function releases it.
func (c *Controller) Acquire(orderID string) (release func(), err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.inFlight[orderID]; busy {
		return nil, ErrConcurrentMutation
	}
	c.inFlight[orderID] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.inFlight, orderID)
			c.mu.Unlock()
		})
	}, nil
}

// InFlight reports whether a mutation of the order is running.
func (c *Controller) InFlight(orderID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, busy := c.inFlight[orderID]
	return busy
}

// RequestTransition moves the order to target.
//
// The call is rejected without a request when another mutation of the
// order is in flight, when the table forbids the move, or when completing
// an order with no services or no recorded payment. Backend failures come
// back as *TransitionError, except subscription, connectivity and token
// failures, which are returned unchanged.
func (c *Controller) RequestTransition(ctx context.Context, orderID string, target enum.OrderStatus) (rerr error) {
	ctx, span := c.tracer.Start(ctx, "lifecycle.RequestTransition",
		trace.WithAttributes(
			attribute.String("order.id", orderID),
			attribute.String("order.target", string(target)),
		),
	)
	defer func() {
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
		}
		span.End()
	}()

	release, err := c.Acquire(orderID)
	if err != nil {
		return err
	}
	defer release()

	o, ok := c.store.Get(orderID)
	if !ok {
		return ErrOrderNotFound
	}
	if !CanTransition(o.Status, target) {
		return &IllegalTransitionError{From: o.Status, To: target}
	}
	if target == enum.OrderStatusCompleted {
		if o.TotalServices.LessThanOrEqual(decimal.Zero) {
			return ErrNoServicesAssigned
		}
		if !o.Paid {
			return ErrPaymentRequired
		}
	}

	if err := c.send(ctx, o, target); err != nil {
		c.lg.Warn("Transition failed",
			zap.String("order_id", orderID),
			zap.String("from", string(o.Status)),
			zap.String("to", string(target)),
			zap.Error(err),
		)
		return classify(orderID, target, err)
	}

	if target == enum.OrderStatusDeleted {
		c.store.Remove(orderID)
	} else {
		c.store.Patch(orderID, model.OrderPatch{Status: model.Ptr(target)})
	}
	c.lg.Info("Order transitioned",
		zap.String("order_id", orderID),
		zap.String("from", string(o.Status)),
		zap.String("to", string(target)),
	)
	return nil
}

func (c *Controller) send(ctx context.Context, o model.Order, target enum.OrderStatus) error {
	switch target {
	case enum.OrderStatusReady:
		return c.api.MarkReady(ctx, o.ID)
	case enum.OrderStatusOpen:
		return c.api.Reopen(ctx, o.ID)
	case enum.OrderStatusCompleted:
		return c.api.Complete(ctx, o.ID)
	case enum.OrderStatusDeleted:
		return c.api.Delete(ctx, o.ID)
	}
	// Unreachable: CanTransition admits no other target.
	return &IllegalTransitionError{From: o.Status, To: target}
}
