package model

import (
	"github.com/shopspring/decimal"

	"github.com/washline/washsync/internal/enum"
)

// ServiceCatalogEntry is immutable reference data describing a service the
// shop sells.
type ServiceCatalogEntry struct {
	ID    string
	Name  string
	Price decimal.Decimal
}

// ServiceAssignment is a priced service attached to an order and assigned
// to a staff member.
type ServiceAssignment struct {
	ID          string
	OrderID     string
	ServiceID   string
	ServiceName string
	UserID      string
	Price       decimal.Decimal
	Salary      decimal.Decimal
}

// SumPrices adds up the prices of the given assignments.
func SumPrices(as []ServiceAssignment) decimal.Decimal {
	total := decimal.Zero
	for _, a := range as {
		total = total.Add(a.Price)
	}
	return total
}

// AssignmentRequest is the body of a create-assignment call.
type AssignmentRequest struct {
	OrderID   string
	ServiceID string
	UserID    string
	Price     decimal.Decimal
	Salary    decimal.Decimal
}

// SalarySetting is the default salary rule for a (service, user) pair.
// A non-zero Amount wins over Percent.
type SalarySetting struct {
	ID        string
	ServiceID string
	UserID    string
	Percent   decimal.Decimal
	Amount    decimal.Decimal
}

// SalaryFor returns the salary the setting yields for an assignment priced
// at price.
func (s SalarySetting) SalaryFor(price decimal.Decimal) decimal.Decimal {
	if !s.Amount.IsZero() {
		return s.Amount
	}
	return price.Mul(s.Percent).Div(decimal.NewFromInt(100))
}

// TransactionRequest is the body of a create-transaction call.
type TransactionRequest struct {
	PaymentMethodID int
	Summ            decimal.Decimal
	ToPay           decimal.Decimal
}

// PaymentTransaction is an accepted payment. CashPortion and
// NonCashPortion are the split reported to staff; the backend persists a
// single summed record.
type PaymentTransaction struct {
	ID              string
	OrderID         string
	Method          enum.PaymentMethod
	PaymentMethodID int
	Summ            decimal.Decimal
	ToPay           decimal.Decimal
	CashPortion     decimal.Decimal
	NonCashPortion  decimal.Decimal
	Change          decimal.Decimal
}
