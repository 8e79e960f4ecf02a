package store

import (
	"strings"

	"github.com/washline/washsync/internal/enum"
	"github.com/washline/washsync/internal/model"
)

// Filter is a Query predicate.
type Filter func(model.Order) bool

// WithStatus selects orders in any of the given statuses.
func WithStatus(statuses ...enum.OrderStatus) Filter {
	return func(o model.Order) bool {
		for _, s := range statuses {
			if o.Status == s {
				return true
			}
		}
		return false
	}
}

// Search selects orders whose plate, phone, brand or model contains text,
// ignoring case.
func Search(text string) Filter {
	needle := strings.ToLower(strings.TrimSpace(text))
	return func(o model.Order) bool {
		if needle == "" {
			return true
		}
		for _, f := range []string{o.LicensePlate, o.PhoneNumber, o.Brand, o.Model} {
			if strings.Contains(strings.ToLower(f), needle) {
				return true
			}
		}
		return false
	}
}

// All combines filters with logical AND.
func All(filters ...Filter) Filter {
	return func(o model.Order) bool {
		for _, f := range filters {
			if f != nil && !f(o) {
				return false
			}
		}
		return true
	}
}
