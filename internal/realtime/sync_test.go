package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/washline/washsync/internal/backend"
	"github.com/washline/washsync/internal/enum"
	"github.com/washline/washsync/internal/model"
	"github.com/washline/washsync/internal/store"
)

func seeded(orders ...model.Order) *store.Store {
	s := store.New(nil)
	s.UpsertMany(orders...)
	return s
}

func TestParseEvent(t *testing.T) {
	tests := []struct {
		name  string
		input string
		check func(t *testing.T, ev Event)
	}{
		{
			name:  "nested payload",
			input: `{"eventType":"serviceUpdated","payload":{"orderId":7,"newTotalServices":"1500"}}`,
			check: func(t *testing.T, ev Event) {
				assert.Equal(t, enum.EventServiceUpdated, ev.Type)
				assert.Equal(t, "7", ev.OrderID)
				assert.True(t, ev.HasTotal)
				assert.True(t, decimal.NewFromInt(1500).Equal(ev.Total))
			},
		},
		{
			name:  "inline payload",
			input: `{"eventType":"serviceUpdated","orderId":"o1","newTotalServices":250.5}`,
			check: func(t *testing.T, ev Event) {
				assert.Equal(t, "o1", ev.OrderID)
				assert.True(t, decimal.RequireFromString("250.5").Equal(ev.Total))
			},
		},
		{
			name:  "create builds a placeholder",
			input: `{"eventType":"create","data":{"$id":"1","id":"o9","brand":"BMW","licensePlate":"X001XX","createdAt":"2026-10-19T08:00:00"}}`,
			check: func(t *testing.T, ev Event) {
				require.NotNil(t, ev.Order)
				assert.Equal(t, "o9", ev.Order.ID)
				assert.Equal(t, model.UnknownPlaceholder, ev.Order.Brand)
				assert.Equal(t, model.UnknownPlaceholder, ev.Order.Model)
				assert.Equal(t, "X001XX", ev.Order.LicensePlate)
				assert.Equal(t, enum.OrderStatusOpen, ev.Order.Status)
				assert.True(t, ev.Order.Placeholder)
				assert.Equal(t, 8, ev.Order.CreatedAt.Hour())
			},
		},
		{
			name:  "status change",
			input: `{"eventType":"statusChanged","payload":{"orderId":"o1","status":"ready"}}`,
			check: func(t *testing.T, ev Event) {
				assert.Equal(t, enum.OrderStatusReady, ev.Status)
			},
		},
		{
			name:  "unknown type still parses",
			input: `{"eventType":"priceListChanged","payload":{"foo":1}}`,
			check: func(t *testing.T, ev Event) {
				assert.Equal(t, enum.EventType("priceListChanged"), ev.Type)
				assert.False(t, ev.Type.Known())
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := ParseEvent([]byte(tt.input))
			require.NoError(t, err)
			tt.check(t, ev)
		})
	}
}

func TestParseEvent_Invalid(t *testing.T) {
	for _, input := range []string{``, `[]`, `{"orderId":"o1"}`, `{"eventType":`} {
		_, err := ParseEvent([]byte(input))
		assert.Error(t, err, input)
	}
}

func TestSync_CreateInsertsAtHead(t *testing.T) {
	s := seeded(model.Order{ID: "o1", Status: enum.OrderStatusOpen})
	sync := NewSync(s, nil)

	sync.HandleMessage([]byte(`{"eventType":"create","payload":{"id":"o2","licensePlate":"B2"}}`))

	got := s.Query(nil)
	require.Len(t, got, 2)
	assert.Equal(t, "o2", got[0].ID)
	assert.Equal(t, model.UnknownPlaceholder, got[0].Brand)
}

func TestSync_CreateKeepsFetchedOrder(t *testing.T) {
	s := seeded(model.Order{ID: "o1", Brand: "Audi", Status: enum.OrderStatusOpen})
	version := s.Version()

	NewSync(s, nil).HandleMessage([]byte(`{"eventType":"create","payload":{"id":"o1"}}`))

	o, _ := s.Get("o1")
	assert.Equal(t, "Audi", o.Brand)
	assert.Equal(t, version, s.Version())
}

func TestSync_ServiceUpdatedPatchesTotalOnly(t *testing.T) {
	before := model.Order{
		ID:            "o1",
		Brand:         "Audi",
		Model:         "A4",
		LicensePlate:  "A1",
		Status:        enum.OrderStatusReady,
		TotalServices: decimal.NewFromInt(100),
	}
	s := seeded(before)

	NewSync(s, nil).HandleMessage([]byte(`{"eventType":"serviceUpdated","payload":{"orderId":"o1","newTotalServices":900}}`))

	after, _ := s.Get("o1")
	assert.True(t, decimal.NewFromInt(900).Equal(after.TotalServices))
	after.TotalServices = before.TotalServices
	assert.Equal(t, before, after)
}

func TestSync_ServiceUpdatedLastWriteWins(t *testing.T) {
	s := seeded(model.Order{ID: "o1"})
	NewSync(s, nil).HandleMessage([]byte(
		`{"eventType":"serviceUpdated","orderId":"o1","newTotalServices":300}` + "\n" +
			`{"eventType":"serviceUpdated","orderId":"o1","newTotalServices":200}`,
	))
	total, _ := s.Total("o1")
	assert.True(t, decimal.NewFromInt(200).Equal(total))
}

func TestSync_ServiceUpdatedUnknownOrder(t *testing.T) {
	s := seeded(model.Order{ID: "o1"})
	version := s.Version()

	assert.NotPanics(t, func() {
		NewSync(s, nil).HandleMessage([]byte(`{"eventType":"serviceUpdated","payload":{"orderId":"missing","newTotalServices":10}}`))
	})
	assert.Equal(t, version, s.Version())
	_, ok := s.Get("missing")
	assert.False(t, ok)
}

func TestSync_UnknownEventIsLogged(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	s := seeded(model.Order{ID: "o1"})
	version := s.Version()

	NewSync(s, zap.New(core)).HandleMessage([]byte(`{"eventType":"somethingNew","payload":{"orderId":"o1"}}`))

	assert.Equal(t, version, s.Version())
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "Ignoring unknown push event", logs.All()[0].Message)
}

func TestSync_StatusAndDelete(t *testing.T) {
	s := seeded(model.Order{ID: "o1", Status: enum.OrderStatusOpen}, model.Order{ID: "o2", Status: enum.OrderStatusOpen})
	sync := NewSync(s, nil)

	sync.HandleMessage([]byte(`{"eventType":"statusChanged","orderId":"o1","status":"ready"}`))
	o, _ := s.Get("o1")
	assert.Equal(t, enum.OrderStatusReady, o.Status)

	sync.HandleMessage([]byte(`{"eventType":"statusChanged","orderId":"o1","status":"bogus"}`))
	o, _ = s.Get("o1")
	assert.Equal(t, enum.OrderStatusReady, o.Status)

	sync.HandleMessage([]byte(`{"eventType":"deleted","orderId":"o2"}`))
	_, ok := s.Get("o2")
	assert.False(t, ok)
}

func TestListen_AppliesPushedEvents(t *testing.T) {
	upgrader := websocket.Upgrader{}
	gotToken := make(chan string, 1)
	release := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken <- r.URL.Query().Get("token")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer func() { _ = conn.Close() }()

		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"eventType":"create","payload":{"id":"o2"}}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"eventType":"serviceUpdated","payload":{"orderId":"o1","newTotalServices":700}}`))
		<-release
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
	}))
	defer srv.Close()

	s := seeded(model.Order{ID: "o1"})
	sync := NewSync(s, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, err := Dial(ctx, nil, wsURL, "secret")
	require.NoError(t, err)
	assert.Equal(t, "secret", <-gotToken)

	done := make(chan error, 1)
	go func() { done <- sync.Listen(ctx, conn) }()

	require.Eventually(t, func() bool {
		total, _ := s.Total("o1")
		return s.Len() == 2 && decimal.NewFromInt(700).Equal(total)
	}, 3*time.Second, 10*time.Millisecond)
	close(release)

	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrConnectionClosed)
	case <-ctx.Done():
		t.Fatal("listener did not stop")
	}
	assert.Equal(t, "o2", s.Query(nil)[0].ID)
}

func TestListen_StopsOnCancel(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer func() { _ = conn.Close() }()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	conn, err := Dial(ctx, nil, "ws"+strings.TrimPrefix(srv.URL, "http"), "t")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- NewSync(store.New(nil), nil).Listen(ctx, conn) }()
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("listener did not stop")
	}
}

func TestDial_EmptyToken(t *testing.T) {
	_, err := Dial(context.Background(), nil, "ws://localhost", "")
	require.Error(t, err)
}

func TestDial_Forbidden(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "subscription expired", http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := Dial(context.Background(), nil, "ws"+strings.TrimPrefix(srv.URL, "http"), "t")
	require.ErrorIs(t, err, backend.ErrSubscriptionExpired)
}
