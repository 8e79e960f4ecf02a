// Package realtime folds backend push events into the order store.
//
// Sync holds no state between connections: it only reacts to the messages
// of the connection it is listening on. Reconnecting is the caller's job.
package realtime

import (
	"bytes"

	"go.uber.org/zap"

	"github.com/washline/washsync/internal/enum"
	"github.com/washline/washsync/internal/model"
	"github.com/washline/washsync/internal/store"
)

// Sync applies push events to a store.
type Sync struct {
	store *store.Store
	lg    *zap.Logger
}

// NewSync creates a Sync.
func NewSync(s *store.Store, lg *zap.Logger) *Sync {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Sync{store: s, lg: lg}
}

// HandleMessage decodes and applies a message. A frame may carry several
// newline separated events. Malformed or unknown events are logged and
// skipped.
func (s *Sync) HandleMessage(data []byte) {
	for _, line := range bytes.Split(data, []byte{'\n'}) {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		ev, err := ParseEvent(line)
		if err != nil {
			s.lg.Warn("Dropping malformed push message", zap.Error(err))
			continue
		}
		s.Apply(ev)
	}
}

// Apply folds one event into the store. Events for the same order are
// applied in receipt order, last write wins.
func (s *Sync) Apply(ev Event) {
	lg := s.lg.With(zap.String("event", string(ev.Type)), zap.String("order_id", ev.OrderID))
	if !ev.Type.Known() {
		lg.Warn("Ignoring unknown push event")
		return
	}
	if ev.OrderID == "" {
		lg.Warn("Push event without order id")
		return
	}

	switch ev.Type {
	case enum.EventCreate:
		if _, known := s.store.Get(ev.OrderID); known {
			// A fetched order carries more than the placeholder would.
			lg.Debug("Create event for cached order")
			return
		}
		s.store.UpsertFront(*ev.Order)
	case enum.EventServiceUpdated:
		if !ev.HasTotal {
			lg.Warn("serviceUpdated event without total")
			return
		}
		total := ev.Total
		s.store.Patch(ev.OrderID, model.OrderPatch{TotalServices: &total})
	case enum.EventStatusChanged:
		if !ev.Status.Valid() {
			lg.Warn("statusChanged event with unknown status", zap.String("status", string(ev.Status)))
			return
		}
		if ev.Status == enum.OrderStatusDeleted {
			s.store.Remove(ev.OrderID)
			return
		}
		status := ev.Status
		s.store.Patch(ev.OrderID, model.OrderPatch{Status: &status})
	case enum.EventDeleted:
		s.store.Remove(ev.OrderID)
	}
}
