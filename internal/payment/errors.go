package payment

import (
	"fmt"

	"github.com/go-faster/errors"

	"github.com/washline/washsync/internal/model"
)

// Errors returned before any transaction is recorded.
var (
	ErrConfirmationRequired = errors.New("cash covers the whole total: confirm recording as cash payment")
	ErrInsufficientCash     = errors.New("tendered cash is less than the total")
	ErrInvalidAmount        = errors.New("amounts must be >= 0")
	ErrUnsupportedMethod    = errors.New("unsupported payment method")
	ErrAlreadyPaid          = errors.New("order is already paid")
)

// PostPaymentCompletionError means the transaction was recorded but the
// order could not be completed. Staff must reconcile it by hand; the
// completion is not retried.
type PostPaymentCompletionError struct {
	OrderID     string
	Transaction model.PaymentTransaction
	Err         error
}

func (e *PostPaymentCompletionError) Error() string {
	return fmt.Sprintf("order %s paid but not completed: %v", e.OrderID, e.Err)
}

func (e *PostPaymentCompletionError) Unwrap() error {
	return e.Err
}
