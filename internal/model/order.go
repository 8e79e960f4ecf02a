// Package model holds the client-side domain records shared by the store,
// the lifecycle controller and the payment reconciler.
package model

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/washline/washsync/internal/enum"
)

// UnknownPlaceholder fills descriptive fields of orders that were announced
// by a push event and have not been seen in a full fetch yet.
const UnknownPlaceholder = "unknown"

// Order is a customer's service ticket tracked from creation to
// completion or deletion.
type Order struct {
	ID           string
	Brand        string
	Model        string
	LicensePlate string
	PhoneNumber  string
	CreatedAt    time.Time

	// TotalServices is the sum of the live assignments' prices. Push
	// events may overwrite it with the server's figure before the
	// assignments themselves are refetched.
	TotalServices decimal.Decimal
	Status        enum.OrderStatus

	// Assignments is nil when the source did not carry assignment data.
	Assignments []ServiceAssignment

	// Paid is set once a payment transaction for the order was accepted.
	Paid bool
	// Placeholder marks orders built from a push event only.
	Placeholder bool
}

// RecalculateTotal sets TotalServices to the sum of Assignments.
func (o *Order) RecalculateTotal() {
	o.TotalServices = SumPrices(o.Assignments)
}

// Clone returns a copy that shares no slices with o.
func (o Order) Clone() Order {
	if o.Assignments != nil {
		as := make([]ServiceAssignment, len(o.Assignments))
		copy(as, o.Assignments)
		o.Assignments = as
	}
	return o
}

// OrderPatch lists fields to shallow-merge into an order. Nil fields are
// left untouched.
type OrderPatch struct {
	Brand         *string
	Model         *string
	LicensePlate  *string
	PhoneNumber   *string
	TotalServices *decimal.Decimal
	Status        *enum.OrderStatus
	Paid          *bool
}

// Apply merges the non-nil fields of p into o.
func (p OrderPatch) Apply(o *Order) {
	if p.Brand != nil {
		o.Brand = *p.Brand
	}
	if p.Model != nil {
		o.Model = *p.Model
	}
	if p.LicensePlate != nil {
		o.LicensePlate = *p.LicensePlate
	}
	if p.PhoneNumber != nil {
		o.PhoneNumber = *p.PhoneNumber
	}
	if p.TotalServices != nil {
		o.TotalServices = *p.TotalServices
	}
	if p.Status != nil {
		o.Status = *p.Status
	}
	if p.Paid != nil {
		o.Paid = *p.Paid
	}
}

// Ptr returns a pointer to v, for building patches.
func Ptr[T any](v T) *T {
	return &v
}
