package payment

import (
	"github.com/shopspring/decimal"

	"github.com/washline/washsync/internal/enum"
)

// Methods maps payment methods to the backend's paymentMethodId values.
type Methods struct {
	Cash    int
	NonCash int
	Mixed   int
}

// DefaultMethods are the ids the backend seeds for new organizations.
var DefaultMethods = Methods{Cash: 1, NonCash: 2, Mixed: 3}

// Request is a payment the staff is about to take.
type Request struct {
	OrderID string
	Method  enum.PaymentMethod
	// Tendered is the cash handed over for cash payments and the cash
	// portion of mixed ones. Ignored for non-cash.
	Tendered decimal.Decimal
	// Confirmed acknowledges that a mixed payment whose cash covers the
	// whole total is recorded as a cash payment.
	Confirmed bool
}

// Quote is a validated payment ready for submission. Summ and ToPay are
// what the transaction records; the other figures are shown to staff only.
type Quote struct {
	OrderID         string
	Method          enum.PaymentMethod
	PaymentMethodID int

	Total          decimal.Decimal
	Summ           decimal.Decimal
	ToPay          decimal.Decimal
	Change         decimal.Decimal
	CashPortion    decimal.Decimal
	NonCashPortion decimal.Decimal

	// ExceedsAmount is set for mixed payments whose cash covers the total.
	ExceedsAmount bool
	// NeedsConfirmation blocks Submit until the staff confirmed.
	NeedsConfirmation bool
}

// Compute validates req against total and builds the quote. Amounts are
// passed through without rounding.
func Compute(total decimal.Decimal, req Request, methods Methods) (*Quote, error) {
	if total.IsNegative() || req.Tendered.IsNegative() {
		return nil, ErrInvalidAmount
	}
	q := &Quote{
		OrderID: req.OrderID,
		Method:  req.Method,
		Total:   total,
		Summ:    total,
		ToPay:   total,
	}

	switch req.Method {
	case enum.PaymentMethodNonCash:
		q.PaymentMethodID = methods.NonCash
		q.NonCashPortion = total
	case enum.PaymentMethodCash:
		if req.Tendered.LessThan(total) {
			return nil, ErrInsufficientCash
		}
		q.PaymentMethodID = methods.Cash
		q.CashPortion = total
		q.Change = req.Tendered.Sub(total)
	case enum.PaymentMethodMixed:
		cash := req.Tendered
		if cash.GreaterThanOrEqual(total) {
			// The backend keeps one summed record, so the excess cannot be
			// split off: the order is recorded as paid in cash.
			q.PaymentMethodID = methods.Cash
			q.CashPortion = total
			q.Change = cash.Sub(total)
			q.ExceedsAmount = true
			q.NeedsConfirmation = true
		} else {
			q.PaymentMethodID = methods.Mixed
			q.CashPortion = cash
			q.NonCashPortion = total.Sub(cash)
		}
	default:
		return nil, ErrUnsupportedMethod
	}
	return q, nil
}
