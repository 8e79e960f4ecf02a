package realtime

import (
	"bytes"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/washline/washsync/internal/enum"
	"github.com/washline/washsync/internal/model"
	"github.com/washline/washsync/internal/refgraph"
)

// Event is a decoded push message.
type Event struct {
	Type    enum.EventType
	OrderID string

	// Order is the partial order of a create event.
	Order *model.Order
	// Total is the new services total of a serviceUpdated event.
	Total    decimal.Decimal
	HasTotal bool
	// Status is the new status of a statusChanged event.
	Status enum.OrderStatus
}

var payloadKeys = [][]byte{[]byte("payload"), []byte("data"), []byte("order")}

// ParseEvent decodes one message. The payload is either nested under
// "payload" (or "data"/"order") or inlined next to eventType.
func ParseEvent(data []byte) (Event, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return Event{}, errors.New("empty message")
	}

	var (
		ev      Event
		payload []byte
	)
	d := jx.DecodeBytes(data)
	if d.Next() != jx.Object {
		return Event{}, errors.Errorf("message is not an object: %q", truncate(data))
	}
	if err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch {
		case bytes.EqualFold(key, []byte("eventType")):
			if d.Next() != jx.String {
				return d.Skip()
			}
			s, err := d.Str()
			ev.Type = enum.EventType(s)
			return err
		case matchAny(key, payloadKeys) && d.Next() == jx.Object:
			raw, err := d.Raw()
			payload = append([]byte(nil), raw...)
			return err
		default:
			return d.Skip()
		}
	}); err != nil {
		return Event{}, errors.Wrap(err, "read message")
	}
	if ev.Type == "" {
		return Event{}, errors.New("message has no eventType")
	}
	if payload == nil {
		payload = data
	}

	v, err := refgraph.DecodeResolved(payload)
	if err != nil {
		return Event{}, errors.Wrap(err, "decode payload")
	}
	obj := refgraph.AsObject(v)
	ev.OrderID = obj.String("orderId", "washOrderId", "detailingOrderId", "id")

	switch ev.Type {
	case enum.EventCreate:
		ev.Order = placeholder(ev.OrderID, obj)
	case enum.EventServiceUpdated:
		ev.Total, ev.HasTotal = obj.Decimal("newTotalServices", "totalServices")
	case enum.EventStatusChanged:
		ev.Status = enum.OrderStatus(obj.String("status", "newStatus"))
	}
	return ev, nil
}

// placeholder builds the minimal order a create event announces. Brand and
// model stay unknown until the next full fetch.
func placeholder(id string, obj refgraph.Object) *model.Order {
	o := &model.Order{
		ID:           id,
		Brand:        model.UnknownPlaceholder,
		Model:        model.UnknownPlaceholder,
		LicensePlate: obj.String("licensePlate", "carNumber"),
		PhoneNumber:  obj.String("phoneNumber", "phone"),
		CreatedAt:    obj.Time("createdAt", "dateCreated"),
		Status:       enum.OrderStatusOpen,
		Placeholder:  true,
	}
	if total, ok := obj.Decimal("totalServices"); ok {
		o.TotalServices = total
	}
	return o
}

func matchAny(key []byte, keys [][]byte) bool {
	for _, k := range keys {
		if bytes.EqualFold(key, k) {
			return true
		}
	}
	return false
}

func truncate(b []byte) string {
	const max = 120
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
