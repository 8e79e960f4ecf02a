package backend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/washline/washsync/internal/auth"
	"github.com/washline/washsync/internal/enum"
	"github.com/washline/washsync/internal/model"
)

type offline struct{}

func (offline) Online() bool { return false }

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := New(Options{
		BaseURL:    srv.URL,
		Line:       enum.LineWash,
		HTTPClient: srv.Client(),
		Tokens:     auth.NewSession("test-token"),
	})
	require.NoError(t, err)
	return c
}

func TestNew_UnknownLine(t *testing.T) {
	_, err := New(Options{BaseURL: "http://localhost", Line: "boats", Tokens: auth.NewSession("x")})
	require.Error(t, err)
}

func TestClient_AttachesBearerToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		assert.Equal(t, WashEndpoints.Ready, r.URL.Path)
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "o1", r.URL.Query().Get("id"))
		w.WriteHeader(http.StatusOK)
	})
	require.NoError(t, c.MarkReady(context.Background(), "o1"))
}

func TestClient_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "forbidden is subscription expired",
			status: http.StatusForbidden,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrSubscriptionExpired)
			},
		},
		{
			name:   "bad request carries backend message",
			status: http.StatusBadRequest,
			body:   `{"message":"car already on site"}`,
			check: func(t *testing.T, err error) {
				var verr *ValidationError
				require.True(t, errors.As(err, &verr))
				assert.Equal(t, "car already on site", verr.Message)
			},
		},
		{
			name:   "bad request with plain string body",
			status: http.StatusBadRequest,
			body:   `"price must be positive"`,
			check: func(t *testing.T, err error) {
				var verr *ValidationError
				require.True(t, errors.As(err, &verr))
				assert.Equal(t, "price must be positive", verr.Message)
			},
		},
		{
			name:   "not found",
			status: http.StatusNotFound,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrNotFound)
			},
		},
		{
			name:   "server error",
			status: http.StatusInternalServerError,
			body:   "boom",
			check: func(t *testing.T, err error) {
				var serr *StatusError
				require.True(t, errors.As(err, &serr))
				assert.Equal(t, http.StatusInternalServerError, serr.Code)
				assert.Equal(t, "boom", serr.Message)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})
			err := c.Complete(context.Background(), "o1")
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestClient_NoRequestWithoutTokenOrNetwork(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer srv.Close()

	c, err := New(Options{BaseURL: srv.URL, Line: enum.LineWash, Tokens: auth.NewSession("")})
	require.NoError(t, err)
	err = c.Delete(context.Background(), "o1")
	assert.ErrorIs(t, err, ErrAuthTokenMissing)

	c, err = New(Options{BaseURL: srv.URL, Line: enum.LineWash, Tokens: auth.NewSession("t"), Connectivity: offline{}})
	require.NoError(t, err)
	err = c.Delete(context.Background(), "o1")
	assert.ErrorIs(t, err, ErrNetworkUnavailable)

	assert.Zero(t, calls)
}

func TestReachability(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	var reach Reachability
	assert.True(t, reach.Online())
	c, err := New(Options{BaseURL: srv.URL, Line: enum.LineWash, Tokens: auth.NewSession("t"), Connectivity: &reach})
	require.NoError(t, err)

	assert.True(t, reach.SetOnline(false))
	assert.False(t, reach.SetOnline(false), "unchanged")
	assert.ErrorIs(t, c.Delete(context.Background(), "o1"), ErrNetworkUnavailable)
	assert.Zero(t, calls)

	assert.True(t, reach.SetOnline(true))
	require.NoError(t, c.Delete(context.Background(), "o1"))
	assert.Equal(t, 1, calls)
}

func TestClient_FetchOpenOrders(t *testing.T) {
	const payload = `{"$id":"1","$values":[
		{"$id":"2","id":"o1","brand":"Toyota","model":"Camry","licensePlate":"A123BC",
		 "phoneNumber":"+70000000000","createdAt":"2026-10-01T10:00:00Z","status":"open",
		 "washServices":{"$id":"3","$values":[
			{"$id":"4","id":"a1","serviceId":"s1","aspNetUserId":"u1","price":500,"salary":100,"washOrder":{"$ref":"2"}},
			{"$id":"5","id":"a2","service":{"$id":"6","id":"s2","name":"Wax"},"aspNetUserId":"u1","price":"250.50","salary":50}
		 ]}},
		{"$id":"7","id":"o2","brand":"Lada","isReady":true,"totalServices":300},
		{"$ref":"99"}
	]}`
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, WashEndpoints.OpenOrders, r.URL.Path)
		_, _ = io.WriteString(w, payload)
	})

	orders, err := c.FetchOpenOrders(context.Background())
	require.NoError(t, err)
	require.Len(t, orders, 2)

	o1 := orders[0]
	assert.Equal(t, "o1", o1.ID)
	assert.Equal(t, "Toyota", o1.Brand)
	assert.Equal(t, enum.OrderStatusOpen, o1.Status)
	require.Len(t, o1.Assignments, 2)
	assert.Equal(t, "s2", o1.Assignments[1].ServiceID)
	assert.Equal(t, "Wax", o1.Assignments[1].ServiceName)
	assert.Equal(t, "o1", o1.Assignments[1].OrderID)
	assert.True(t, decimal.RequireFromString("750.50").Equal(o1.TotalServices), o1.TotalServices.String())
	assert.Equal(t, 2026, o1.CreatedAt.Year())

	o2 := orders[1]
	assert.Equal(t, enum.OrderStatusReady, o2.Status)
	assert.Nil(t, o2.Assignments)
	assert.True(t, decimal.NewFromInt(300).Equal(o2.TotalServices))
}

func TestClient_OrderTotalShapes(t *testing.T) {
	for _, body := range []string{`1500`, `"1500"`, `"1500,00"`, `{"summ":1500}`, `{"result":"1500"}`} {
		t.Run(body, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "o1", r.URL.Query().Get("id"))
				_, _ = io.WriteString(w, body)
			})
			total, err := c.OrderTotal(context.Background(), "o1")
			require.NoError(t, err)
			assert.True(t, decimal.NewFromInt(1500).Equal(total), total.String())
		})
	}
}

func TestClient_CreateAssignment(t *testing.T) {
	for _, body := range []string{`42`, `"42"`, `{"id":42}`, `{"$id":"1","id":"42","serviceName":"Wash"}`} {
		t.Run(body, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				var got map[string]any
				require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
				assert.Equal(t, "s1", got["serviceId"])
				assert.Equal(t, "o1", got["orderId"])
				assert.Equal(t, "u1", got["assigneeId"])
				assert.EqualValues(t, 500, got["price"])
				assert.EqualValues(t, 50, got["salary"])
				_, _ = io.WriteString(w, body)
			})
			a, err := c.CreateAssignment(context.Background(), model.AssignmentRequest{
				OrderID:   "o1",
				ServiceID: "s1",
				UserID:    "u1",
				Price:     decimal.NewFromInt(500),
				Salary:    decimal.NewFromInt(50),
			})
			require.NoError(t, err)
			assert.Equal(t, "42", a.ID)
			assert.Equal(t, "o1", a.OrderID)
			assert.True(t, decimal.NewFromInt(500).Equal(a.Price))
		})
	}
}

func TestClient_CreateTransaction(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, WashEndpoints.Transaction, r.URL.Path)
		assert.Equal(t, "o1", r.URL.Query().Get("washOrderId"))
		var got map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		assert.EqualValues(t, 2, got["paymentMethodId"])
		assert.EqualValues(t, 1500, got["summ"])
		assert.EqualValues(t, 1500, got["toPay"])
		_, _ = io.WriteString(w, `{"id":"t9"}`)
	})
	id, err := c.CreateTransaction(context.Background(), "o1", model.TransactionRequest{
		PaymentMethodID: 2,
		Summ:            decimal.NewFromInt(1500),
		ToPay:           decimal.NewFromInt(1500),
	})
	require.NoError(t, err)
	assert.Equal(t, "t9", id)
}

func TestClient_DetailingLineUsesItsEndpoints(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, DetailingEndpoints.Transaction, r.URL.Path)
		assert.Equal(t, "o1", r.URL.Query().Get("detailingOrderId"))
	}))
	defer srv.Close()

	c, err := New(Options{BaseURL: srv.URL, Line: enum.LineDetailing, Tokens: auth.NewSession("t")})
	require.NoError(t, err)
	id, err := c.CreateTransaction(context.Background(), "o1", model.TransactionRequest{PaymentMethodID: 1})
	require.NoError(t, err)
	assert.Empty(t, id)
}

func TestClient_SalarySetting(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case WashEndpoints.SalaryGet:
			if r.URL.Query().Get("serviceId") == "missing" {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			assert.Equal(t, "u1", r.URL.Query().Get("aspNetUserId"))
			_, _ = io.WriteString(w, `{"id":"ss1","percent":20}`)
		case WashEndpoints.SalaryCreate:
			var got map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			assert.Equal(t, "s1", got["serviceId"])
			assert.Equal(t, "u1", got["aspNetUserId"])
			w.WriteHeader(http.StatusOK)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})
	ctx := context.Background()

	s, err := c.GetSalarySetting(ctx, "s1", "u1")
	require.NoError(t, err)
	assert.Equal(t, "ss1", s.ID)
	assert.True(t, decimal.NewFromInt(100).Equal(s.SalaryFor(decimal.NewFromInt(500))))

	_, err = c.GetSalarySetting(ctx, "missing", "u1")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, c.CreateSalarySetting(ctx, model.SalarySetting{
		ServiceID: "s1",
		UserID:    "u1",
		Percent:   decimal.NewFromInt(10),
	}))
}

func TestDecodeAmount_Invalid(t *testing.T) {
	_, err := DecodeAmount([]byte(`{"foo":1}`))
	require.Error(t, err)
	_, err = DecodeAmount([]byte(`"abc"`))
	require.Error(t, err)
	_, err = DecodeAmount(nil)
	require.Error(t, err)

	v, err := DecodeAmount([]byte(`null`))
	require.NoError(t, err)
	assert.True(t, v.IsZero())
}
