package lifecycle

import (
	"context"
	"strconv"
	"sync"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/washline/washsync/internal/backend"
	"github.com/washline/washsync/internal/enum"
	"github.com/washline/washsync/internal/model"
	"github.com/washline/washsync/internal/store"
)

// fakeBackend records calls. Transition calls block on gate when it is
// set, so tests can observe an in-flight request.
type fakeBackend struct {
	mu    sync.Mutex
	calls []string

	gate    chan struct{}
	entered chan struct{}
	err     error

	salary    *model.SalarySetting
	salaryErr error
	created   []model.SalarySetting
	assigned  []model.AssignmentRequest
	nextID    int
}

func (f *fakeBackend) record(call string) error {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	gate, entered, err := f.gate, f.entered, f.err
	f.mu.Unlock()
	if entered != nil {
		entered <- struct{}{}
	}
	if gate != nil {
		<-gate
	}
	return err
}

func (f *fakeBackend) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeBackend) MarkReady(_ context.Context, id string) error { return f.record("ready:" + id) }
func (f *fakeBackend) Reopen(_ context.Context, id string) error    { return f.record("reopen:" + id) }
func (f *fakeBackend) Complete(_ context.Context, id string) error  { return f.record("complete:" + id) }
func (f *fakeBackend) Delete(_ context.Context, id string) error    { return f.record("delete:" + id) }

func (f *fakeBackend) CreateAssignment(_ context.Context, req model.AssignmentRequest) (*model.ServiceAssignment, error) {
	if err := f.record("assign:" + req.OrderID); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.assigned = append(f.assigned, req)
	return &model.ServiceAssignment{
		ID:        "a" + strconv.Itoa(f.nextID),
		OrderID:   req.OrderID,
		ServiceID: req.ServiceID,
		UserID:    req.UserID,
		Price:     req.Price,
		Salary:    req.Salary,
	}, nil
}

func (f *fakeBackend) DeleteAssignment(_ context.Context, id string) error {
	return f.record("unassign:" + id)
}

func (f *fakeBackend) GetSalarySetting(_ context.Context, serviceID, userID string) (*model.SalarySetting, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "salary:"+serviceID+":"+userID)
	if f.salaryErr != nil {
		return nil, f.salaryErr
	}
	if f.salary == nil {
		return nil, errors.Wrap(backend.ErrNotFound, "get salary setting")
	}
	return f.salary, nil
}

func (f *fakeBackend) CreateSalarySetting(_ context.Context, s model.SalarySetting) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, s)
	return nil
}

type staticIdentity string

func (s staticIdentity) UserID() (string, error) { return string(s), nil }

func openOrder(id string, total int64) model.Order {
	return model.Order{
		ID:            id,
		Brand:         "Toyota",
		Model:         "Camry",
		LicensePlate:  "A123BC",
		Status:        enum.OrderStatusOpen,
		TotalServices: decimal.NewFromInt(total),
	}
}

func newController(t *testing.T, api *fakeBackend, orders ...model.Order) (*Controller, *store.Store) {
	t.Helper()
	s := store.New(nil)
	s.UpsertMany(orders...)
	return New(api, s, Options{Identity: staticIdentity("staff-1")}), s
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to enum.OrderStatus
		want     bool
	}{
		{enum.OrderStatusOpen, enum.OrderStatusReady, true},
		{enum.OrderStatusOpen, enum.OrderStatusCompleted, true},
		{enum.OrderStatusOpen, enum.OrderStatusDeleted, true},
		{enum.OrderStatusReady, enum.OrderStatusOpen, true},
		{enum.OrderStatusReady, enum.OrderStatusCompleted, true},
		{enum.OrderStatusReady, enum.OrderStatusDeleted, true},
		{enum.OrderStatusOpen, enum.OrderStatusOpen, false},
		{enum.OrderStatusCompleted, enum.OrderStatusOpen, false},
		{enum.OrderStatusCompleted, enum.OrderStatusDeleted, false},
		{enum.OrderStatusDeleted, enum.OrderStatusOpen, false},
		{enum.OrderStatusDeleted, enum.OrderStatusReady, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestRequestTransition_CompleteWithoutServices(t *testing.T) {
	api := &fakeBackend{}
	c, s := newController(t, api, openOrder("o1", 0))
	version := s.Version()

	err := c.RequestTransition(context.Background(), "o1", enum.OrderStatusCompleted)
	require.ErrorIs(t, err, ErrNoServicesAssigned)
	assert.Empty(t, api.Calls())
	assert.Equal(t, version, s.Version())
	assert.False(t, c.InFlight("o1"))
}

func TestRequestTransition_CompleteRequiresPayment(t *testing.T) {
	api := &fakeBackend{}
	c, _ := newController(t, api, openOrder("o1", 500))

	err := c.RequestTransition(context.Background(), "o1", enum.OrderStatusCompleted)
	require.ErrorIs(t, err, ErrPaymentRequired)
	assert.Empty(t, api.Calls())
}

func TestRequestTransition_Ready(t *testing.T) {
	api := &fakeBackend{}
	c, s := newController(t, api, openOrder("o1", 500), openOrder("o2", 100))

	require.NoError(t, c.RequestTransition(context.Background(), "o1", enum.OrderStatusReady))
	assert.Equal(t, []string{"ready:o1"}, api.Calls())

	o, ok := s.Get("o1")
	require.True(t, ok)
	assert.Equal(t, enum.OrderStatusReady, o.Status)

	require.NoError(t, c.RequestTransition(context.Background(), "o1", enum.OrderStatusOpen))
	o, _ = s.Get("o1")
	assert.Equal(t, enum.OrderStatusOpen, o.Status)

	// Status patches keep the list order.
	got := s.Query(nil)
	require.Len(t, got, 2)
	assert.Equal(t, "o1", got[0].ID)
}

func TestRequestTransition_Delete(t *testing.T) {
	api := &fakeBackend{}
	o := openOrder("o1", 500)
	o.Assignments = []model.ServiceAssignment{{ID: "a1", OrderID: "o1", Price: decimal.NewFromInt(500)}}
	c, s := newController(t, api, o)

	require.NoError(t, c.RequestTransition(context.Background(), "o1", enum.OrderStatusDeleted))
	_, ok := s.Get("o1")
	assert.False(t, ok)
	assert.Zero(t, s.Len())
}

func TestRequestTransition_FailureLeavesStoreUntouched(t *testing.T) {
	api := &fakeBackend{err: &backend.StatusError{Code: 500, Message: "boom"}}
	c, s := newController(t, api, openOrder("o1", 500))
	before, _ := s.Get("o1")
	version := s.Version()

	for _, target := range []enum.OrderStatus{enum.OrderStatusReady, enum.OrderStatusDeleted} {
		err := c.RequestTransition(context.Background(), "o1", target)

		var terr *TransitionError
		require.True(t, errors.As(err, &terr), "%v", err)
		assert.Equal(t, "boom", terr.Reason)
		assert.Equal(t, target, terr.Target)

		after, ok := s.Get("o1")
		require.True(t, ok)
		assert.Equal(t, before, after)
		assert.Equal(t, version, s.Version())
	}
}

func TestRequestTransition_PassThroughErrors(t *testing.T) {
	for _, sentinel := range []error{
		backend.ErrSubscriptionExpired,
		backend.ErrNetworkUnavailable,
		backend.ErrAuthTokenMissing,
	} {
		t.Run(sentinel.Error(), func(t *testing.T) {
			api := &fakeBackend{err: errors.Wrap(sentinel, "mark ready order o1")}
			c, _ := newController(t, api, openOrder("o1", 500))

			err := c.RequestTransition(context.Background(), "o1", enum.OrderStatusReady)
			require.ErrorIs(t, err, sentinel)

			var terr *TransitionError
			assert.False(t, errors.As(err, &terr))
		})
	}
}

func TestRequestTransition_ValidationReason(t *testing.T) {
	api := &fakeBackend{err: &backend.ValidationError{Message: "order already closed"}}
	c, _ := newController(t, api, openOrder("o1", 500))

	err := c.RequestTransition(context.Background(), "o1", enum.OrderStatusReady)
	var terr *TransitionError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, "order already closed", terr.Reason)

	var verr *backend.ValidationError
	assert.True(t, errors.As(err, &verr))
}

func TestRequestTransition_TerminalAndUnknown(t *testing.T) {
	api := &fakeBackend{}
	done := openOrder("o1", 500)
	done.Status = enum.OrderStatusCompleted
	c, _ := newController(t, api, done)

	err := c.RequestTransition(context.Background(), "o1", enum.OrderStatusDeleted)
	var ierr *IllegalTransitionError
	require.True(t, errors.As(err, &ierr))
	assert.Equal(t, enum.OrderStatusCompleted, ierr.From)

	err = c.RequestTransition(context.Background(), "missing", enum.OrderStatusReady)
	require.ErrorIs(t, err, ErrOrderNotFound)
	assert.Empty(t, api.Calls())
}

func TestRequestTransition_ConcurrentDelete(t *testing.T) {
	api := &fakeBackend{gate: make(chan struct{}), entered: make(chan struct{}, 1)}
	c, s := newController(t, api, openOrder("42", 500), openOrder("43", 500))

	first := make(chan error, 1)
	go func() {
		first <- c.RequestTransition(context.Background(), "42", enum.OrderStatusDeleted)
	}()
	<-api.entered

	err := c.RequestTransition(context.Background(), "42", enum.OrderStatusDeleted)
	require.ErrorIs(t, err, ErrConcurrentMutation)

	// Other orders are not blocked by the guard.
	release, err := c.Acquire("43")
	require.NoError(t, err)
	release()

	close(api.gate)
	require.NoError(t, <-first)
	assert.Equal(t, []string{"delete:42"}, api.Calls())

	_, ok := s.Get("42")
	assert.False(t, ok)
	assert.False(t, c.InFlight("42"))
}

func TestAcquire_ReleaseIsIdempotent(t *testing.T) {
	c, _ := newController(t, &fakeBackend{})

	release, err := c.Acquire("o1")
	require.NoError(t, err)
	_, err = c.Acquire("o1")
	require.ErrorIs(t, err, ErrConcurrentMutation)

	release()
	release()

	again, err := c.Acquire("o1")
	require.NoError(t, err)
	assert.True(t, c.InFlight("o1"))
	again()
}
