// Package payment turns a chosen payment method into the single summed
// transaction the backend records, then completes the order.
package payment

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/washline/washsync/internal/enum"
	"github.com/washline/washsync/internal/lifecycle"
	"github.com/washline/washsync/internal/model"
	"github.com/washline/washsync/internal/store"
)

// Backend is the part of the REST client the reconciler calls.
type Backend interface {
	OrderTotal(ctx context.Context, orderID string) (decimal.Decimal, error)
	CreateTransaction(ctx context.Context, orderID string, req model.TransactionRequest) (string, error)
}

// Lifecycle guards the transaction call and completes the order.
type Lifecycle interface {
	Acquire(orderID string) (release func(), err error)
	RequestTransition(ctx context.Context, orderID string, target enum.OrderStatus) error
}

// Options configure a Reconciler.
type Options struct {
	Methods        Methods
	Logger         *zap.Logger
	TracerProvider trace.TracerProvider
}

// Reconciler prepares and submits order payments.
type Reconciler struct {
	api     Backend
	lc      Lifecycle
	store   *store.Store
	methods Methods
	lg      *zap.Logger
	tracer  trace.Tracer
}

// New creates a Reconciler.
func New(api Backend, lc Lifecycle, s *store.Store, opts Options) *Reconciler {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.TracerProvider == nil {
		opts.TracerProvider = otel.GetTracerProvider()
	}
	if opts.Methods == (Methods{}) {
		opts.Methods = DefaultMethods
	}
	return &Reconciler{
		api:     api,
		lc:      lc,
		store:   s,
		methods: opts.Methods,
		lg:      opts.Logger,
		tracer:  opts.TracerProvider.Tracer("washsync/payment"),
	}
}

// Prepare fetches the order's total from the backend, refreshes the cached
// total with it and quotes the payment against it.
func (r *Reconciler) Prepare(ctx context.Context, req Request) (*Quote, error) {
	o, ok := r.store.Get(req.OrderID)
	if !ok {
		return nil, lifecycle.ErrOrderNotFound
	}
	if o.Status.Terminal() {
		return nil, lifecycle.ErrOrderClosed
	}
	if o.Paid {
		return nil, ErrAlreadyPaid
	}

	total, err := r.api.OrderTotal(ctx, req.OrderID)
	if err != nil {
		return nil, errors.Wrap(err, "fetch order total")
	}
	if !total.Equal(o.TotalServices) {
		r.store.Patch(req.OrderID, model.OrderPatch{TotalServices: &total})
	}
	if !total.IsPositive() {
		return nil, lifecycle.ErrNoServicesAssigned
	}
	return Compute(total, req, r.methods)
}

// Submit records the quoted transaction and completes the order. A quote
// that needs confirmation is rejected unless confirmed is set. When the
// transaction succeeds and completion fails, the error is a
// *PostPaymentCompletionError.
func (r *Reconciler) Submit(ctx context.Context, q *Quote, confirmed bool) (_ *model.PaymentTransaction, rerr error) {
	ctx, span := r.tracer.Start(ctx, "payment.Submit",
		trace.WithAttributes(
			attribute.String("order.id", q.OrderID),
			attribute.String("payment.method", string(q.Method)),
			attribute.String("payment.summ", q.Summ.String()),
		),
	)
	defer func() {
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
		}
		span.End()
	}()

	if q.NeedsConfirmation && !confirmed {
		return nil, ErrConfirmationRequired
	}

	tx, err := r.record(ctx, q)
	if err != nil {
		return nil, err
	}

	if err := r.lc.RequestTransition(ctx, q.OrderID, enum.OrderStatusCompleted); err != nil {
		r.lg.Error("Order paid but not completed",
			zap.String("order_id", q.OrderID),
			zap.String("transaction_id", tx.ID),
			zap.String("summ", tx.Summ.String()),
			zap.Error(err),
		)
		return tx, &PostPaymentCompletionError{OrderID: q.OrderID, Transaction: *tx, Err: err}
	}
	return tx, nil
}

// record sends the transaction under the order's in-flight guard and marks
// the cached order paid.
func (r *Reconciler) record(ctx context.Context, q *Quote) (*model.PaymentTransaction, error) {
	release, err := r.lc.Acquire(q.OrderID)
	if err != nil {
		return nil, err
	}
	defer release()

	id, err := r.api.CreateTransaction(ctx, q.OrderID, model.TransactionRequest{
		PaymentMethodID: q.PaymentMethodID,
		Summ:            q.Summ,
		ToPay:           q.ToPay,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create transaction")
	}
	r.store.Patch(q.OrderID, model.OrderPatch{Paid: model.Ptr(true)})

	tx := &model.PaymentTransaction{
		ID:              id,
		OrderID:         q.OrderID,
		Method:          q.Method,
		PaymentMethodID: q.PaymentMethodID,
		Summ:            q.Summ,
		ToPay:           q.ToPay,
		CashPortion:     q.CashPortion,
		NonCashPortion:  q.NonCashPortion,
		Change:          q.Change,
	}
	r.lg.Info("Payment recorded",
		zap.String("order_id", q.OrderID),
		zap.String("transaction_id", id),
		zap.String("method", string(q.Method)),
		zap.String("summ", q.Summ.String()),
	)
	return tx, nil
}

// Pay prepares and submits req in one call.
func (r *Reconciler) Pay(ctx context.Context, req Request) (*model.PaymentTransaction, error) {
	q, err := r.Prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	return r.Submit(ctx, q, req.Confirmed)
}
