package enum

// ── Order lifecycle (validated by lifecycle.CanTransition) ──

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusOpen      OrderStatus = "open"
	OrderStatusReady     OrderStatus = "ready"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusDeleted   OrderStatus = "deleted"
)

// Terminal reports whether no transition may leave s.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusDeleted
}

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusOpen, OrderStatusReady, OrderStatusCompleted, OrderStatusDeleted:
		return true
	}
	return false
}

// ── Order lines (selects the backend endpoint table) ──

// Line is the shop line an order belongs to.
type Line string

const (
	LineWash      Line = "wash"
	LineDetailing Line = "detailing"
)

// ── Payment ──

// PaymentMethod is the way the customer settles an order.
type PaymentMethod string

const (
	PaymentMethodCash    PaymentMethod = "cash"
	PaymentMethodNonCash PaymentMethod = "non-cash"
	PaymentMethodMixed   PaymentMethod = "mixed"
)

// ── Realtime events ──

// EventType is the eventType discriminator of a push message.
type EventType string

const (
	EventCreate         EventType = "create"
	EventServiceUpdated EventType = "serviceUpdated"
	EventStatusChanged  EventType = "statusChanged"
	EventDeleted        EventType = "deleted"
)

// Known reports whether t is an event type the client folds.
func (t EventType) Known() bool {
	switch t {
	case EventCreate, EventServiceUpdated, EventStatusChanged, EventDeleted:
		return true
	}
	return false
}
