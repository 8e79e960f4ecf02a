package lifecycle

import (
	"fmt"

	"github.com/go-faster/errors"

	"github.com/washline/washsync/internal/backend"
	"github.com/washline/washsync/internal/enum"
)

// Errors returned by the controller before any request is sent.
var (
	ErrConcurrentMutation = errors.New("another mutation of this order is in flight")
	ErrNoServicesAssigned = errors.New("order has no services assigned")
	ErrPaymentRequired    = errors.New("order must be paid before completion")
	ErrOrderNotFound      = errors.New("order not found")
	ErrAssignmentNotFound = errors.New("assignment not found on order")
	ErrOrderClosed        = errors.New("order is closed")
	ErrInvalidPrice       = errors.New("price must be > 0")
	ErrInvalidSalary      = errors.New("salary must be >= 0")
	ErrUnknownAssignee    = errors.New("assignee is required")
)

// IllegalTransitionError rejects a transition missing from the table.
type IllegalTransitionError struct {
	From enum.OrderStatus
	To   enum.OrderStatus
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("cannot transition from %s to %s", e.From, e.To)
}

// TransitionError is a failed transition request: a transport error or a
// non-2xx answer. Local state is unchanged.
type TransitionError struct {
	OrderID string
	Target  enum.OrderStatus
	Reason  string
	Err     error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("transition order %s to %s failed: %s", e.OrderID, e.Target, e.Reason)
}

func (e *TransitionError) Unwrap() error {
	return e.Err
}

// passThrough reports whether err must reach the caller as is instead of
// being folded into a TransitionError.
func passThrough(err error) bool {
	return errors.Is(err, backend.ErrSubscriptionExpired) ||
		errors.Is(err, backend.ErrNetworkUnavailable) ||
		errors.Is(err, backend.ErrAuthTokenMissing)
}

// reason returns the user-facing part of a backend failure.
func reason(err error) string {
	var verr *backend.ValidationError
	if errors.As(err, &verr) && verr.Message != "" {
		return verr.Message
	}
	var serr *backend.StatusError
	if errors.As(err, &serr) {
		if serr.Message != "" {
			return serr.Message
		}
		return fmt.Sprintf("status %d", serr.Code)
	}
	return err.Error()
}

// classify maps a backend failure of a transition request.
func classify(orderID string, target enum.OrderStatus, err error) error {
	if passThrough(err) {
		return err
	}
	return &TransitionError{
		OrderID: orderID,
		Target:  target,
		Reason:  reason(err),
		Err:     err,
	}
}
