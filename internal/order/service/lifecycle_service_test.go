package service

import (
	"context"
	"database/sql"
	stderrors "errors"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gigmarket/internal/domain"
	"gigmarket/internal/errors"
	"gigmarket/internal/testutil"
)

// Mocks

type sentNotification struct {
	UserID  uint
	Payload domain.Payload
}

type recordingNotifier struct {
	mu        sync.Mutex
	sent      []sentNotification
	announced []domain.Notification
	NotifyErr error
}

func (n *recordingNotifier) Notify(ctx context.Context, tx *sql.Tx, userID uint, payload domain.Payload) (domain.Notification, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.NotifyErr != nil {
		return domain.Notification{}, n.NotifyErr
	}
	n.sent = append(n.sent, sentNotification{UserID: userID, Payload: payload})
	notification := domain.NewNotification(userID, payload)
	notification.ID = uint(len(n.sent))
	return notification, nil
}

func (n *recordingNotifier) Announce(ctx context.Context, notifications ...domain.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.announced = append(n.announced, notifications...)
}

type mockMetrics struct {
	mu          sync.Mutex
	transitions []string
}

func (m *mockMetrics) OrderTransitioned(from, to string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitions = append(m.transitions, from+"->"+to)
}

type fixture struct {
	store      *testutil.MemStore
	notifier   *recordingNotifier
	metrics    *mockMetrics
	svc        *LifecycleService
	client     uint
	freelancer uint
	stranger   uint
	service    uint
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := testutil.NewMemStore()
	f := &fixture{
		store:    store,
		notifier: &recordingNotifier{},
		metrics:  &mockMetrics{},
	}
	f.client = store.AddUser(domain.User{Email: "client@example.com"})
	f.freelancer = store.AddUser(domain.User{Email: "freelancer@example.com", Role: domain.RoleFreelancer})
	f.stranger = store.AddUser(domain.User{Email: "stranger@example.com"})
	f.service = store.AddService(domain.Service{
		OwnerID:      f.freelancer,
		Title:        "Logo design",
		Price:        decimal.NewFromInt(100),
		CurrencyCode: "USD",
	})
	f.svc = NewLifecycleService(store, store.Orders(), store.Deliveries(), store.Services(), f.notifier, f.metrics, zap.NewNop())
	return f
}

func (f *fixture) createOrder(t *testing.T) *domain.Order {
	t.Helper()
	order, err := f.svc.Create(context.Background(), CreateOrderCommand{
		ClientID:     f.client,
		ServiceID:    f.service,
		TotalPrice:   decimal.NewFromInt(100),
		CurrencyCode: "usd",
	})
	require.NoError(t, err)
	return order
}

func (f *fixture) seedOrder(status domain.OrderStatus) uint {
	serviceID := f.service
	return f.store.AddOrder(domain.Order{
		ClientID:     f.client,
		FreelancerID: f.freelancer,
		ServiceID:    &serviceID,
		TotalPrice:   decimal.NewFromInt(100),
		CurrencyCode: "USD",
		Status:       status,
	})
}

func (f *fixture) events() []domain.OrderEventKind {
	var out []domain.OrderEventKind
	for _, s := range f.notifier.sent {
		if e, ok := s.Payload.(domain.OrderEvent); ok {
			out = append(out, e.Event)
		}
	}
	return out
}

// Create

func TestCreate_Success(t *testing.T) {
	f := newFixture(t)

	order := f.createOrder(t)

	assert.Equal(t, domain.OrderStatusPending, order.Status)
	assert.Equal(t, f.freelancer, order.FreelancerID)
	assert.Equal(t, "USD", order.CurrencyCode)

	stored, ok := f.store.Order(order.ID)
	require.True(t, ok)
	assert.Equal(t, domain.OrderStatusPending, stored.Status)

	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, f.freelancer, f.notifier.sent[0].UserID)
	assert.Equal(t, domain.OrderEvent{OrderID: order.ID, Event: domain.OrderEventPlaced}, f.notifier.sent[0].Payload)
	assert.Len(t, f.notifier.announced, 1)
	assert.Equal(t, []string{"none->pending"}, f.metrics.transitions)
}

func TestCreate_Errors(t *testing.T) {
	tests := []struct {
		name  string
		cmd   func(f *fixture) CreateOrderCommand
		check func(t *testing.T, err error)
	}{
		{
			name: "unknown service",
			cmd: func(f *fixture) CreateOrderCommand {
				return CreateOrderCommand{ClientID: f.client, ServiceID: 999, TotalPrice: decimal.NewFromInt(10), CurrencyCode: "USD"}
			},
			check: func(t *testing.T, err error) {
				_, ok := errors.IsNotFoundError(err)
				assert.True(t, ok)
			},
		},
		{
			name: "self purchase",
			cmd: func(f *fixture) CreateOrderCommand {
				return CreateOrderCommand{ClientID: f.freelancer, ServiceID: f.service, TotalPrice: decimal.NewFromInt(10), CurrencyCode: "USD"}
			},
			check: func(t *testing.T, err error) {
				_, ok := errors.IsInvalidOperationError(err)
				assert.True(t, ok)
			},
		},
		{
			name: "currency differs from listing",
			cmd: func(f *fixture) CreateOrderCommand {
				return CreateOrderCommand{ClientID: f.client, ServiceID: f.service, TotalPrice: decimal.NewFromInt(100), CurrencyCode: "JPY"}
			},
			check: func(t *testing.T, err error) {
				_, ok := errors.IsInvalidOperationError(err)
				assert.True(t, ok)
			},
		},
		{
			name: "price differs from listing",
			cmd: func(f *fixture) CreateOrderCommand {
				return CreateOrderCommand{ClientID: f.client, ServiceID: f.service, TotalPrice: decimal.RequireFromString("0.01"), CurrencyCode: "USD"}
			},
			check: func(t *testing.T, err error) {
				_, ok := errors.IsInvalidOperationError(err)
				assert.True(t, ok)
			},
		},
		{
			name: "unknown client",
			cmd: func(f *fixture) CreateOrderCommand {
				return CreateOrderCommand{ClientID: 999, ServiceID: f.service, TotalPrice: decimal.NewFromInt(100), CurrencyCode: "USD"}
			},
			check: func(t *testing.T, err error) {
				_, ok := errors.IsNotFoundError(err)
				assert.True(t, ok)
			},
		},
		{
			name: "non positive price",
			cmd: func(f *fixture) CreateOrderCommand {
				return CreateOrderCommand{ClientID: f.client, ServiceID: f.service, TotalPrice: decimal.Zero, CurrencyCode: "USD"}
			},
			check: func(t *testing.T, err error) {
				ve, ok := errors.IsValidationError(err)
				require.True(t, ok)
				assert.Equal(t, "totalPrice", ve.Details[0].Field)
			},
		},
		{
			name: "bad currency",
			cmd: func(f *fixture) CreateOrderCommand {
				return CreateOrderCommand{ClientID: f.client, ServiceID: f.service, TotalPrice: decimal.NewFromInt(10), CurrencyCode: "US1"}
			},
			check: func(t *testing.T, err error) {
				ve, ok := errors.IsValidationError(err)
				require.True(t, ok)
				assert.Equal(t, "currencyCode", ve.Details[0].Field)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.svc.Create(context.Background(), tt.cmd(f))
			tt.check(t, err)
			assert.Empty(t, f.notifier.sent)

			orders, listErr := f.svc.ListForUser(context.Background(), f.client)
			require.NoError(t, listErr)
			assert.Empty(t, orders)
		})
	}
}

func TestCreate_DuplicateActiveOrder(t *testing.T) {
	f := newFixture(t)
	f.createOrder(t)

	_, err := f.svc.Create(context.Background(), CreateOrderCommand{
		ClientID: f.client, ServiceID: f.service, TotalPrice: decimal.NewFromInt(100), CurrencyCode: "USD",
	})

	_, ok := errors.IsConflictError(err)
	assert.True(t, ok)
	assert.Len(t, f.notifier.sent, 1)
}

func TestCreate_AllowedAfterCompletion(t *testing.T) {
	f := newFixture(t)
	f.seedOrder(domain.OrderStatusCompleted)

	order := f.createOrder(t)
	assert.Equal(t, domain.OrderStatusPending, order.Status)
}

func TestCreate_NotificationFailureLeavesNoOrder(t *testing.T) {
	f := newFixture(t)
	f.notifier.NotifyErr = stderrors.New("connection reset")

	_, err := f.svc.Create(context.Background(), CreateOrderCommand{
		ClientID: f.client, ServiceID: f.service, TotalPrice: decimal.NewFromInt(100), CurrencyCode: "USD",
	})

	_, ok := errors.IsUnavailableError(err)
	assert.True(t, ok)

	orders, listErr := f.svc.ListForUser(context.Background(), f.client)
	require.NoError(t, listErr)
	assert.Empty(t, orders)
	assert.Empty(t, f.notifier.announced)
}

// Accept

func TestAccept(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(t)

	accepted, err := f.svc.Accept(context.Background(), order.ID, f.freelancer)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusInProgress, accepted.Status)

	last := f.notifier.sent[len(f.notifier.sent)-1]
	assert.Equal(t, f.client, last.UserID)
	assert.Equal(t, domain.OrderEvent{OrderID: order.ID, Event: domain.OrderEventAccepted}, last.Payload)
}

func TestAccept_Errors(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(t)

	_, err := f.svc.Accept(context.Background(), order.ID, f.client)
	_, ok := errors.IsForbiddenError(err)
	assert.True(t, ok, "client cannot accept")

	_, err = f.svc.Accept(context.Background(), 999, f.freelancer)
	_, ok = errors.IsNotFoundError(err)
	assert.True(t, ok)

	_, err = f.svc.Accept(context.Background(), order.ID, f.freelancer)
	require.NoError(t, err)
	sent := len(f.notifier.sent)

	// A retried accept must not notify twice.
	_, err = f.svc.Accept(context.Background(), order.ID, f.freelancer)
	_, ok = errors.IsInvalidTransitionError(err)
	assert.True(t, ok)
	assert.Len(t, f.notifier.sent, sent)
}

func TestAccept_ConcurrentSingleWinner(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(t)

	const callers = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		winners  int
		rejected int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Accept(context.Background(), order.ID, f.freelancer)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				winners++
				return
			}
			_, isTransition := errors.IsInvalidTransitionError(err)
			_, isConflict := errors.IsConflictError(err)
			if isTransition || isConflict {
				rejected++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
	assert.Equal(t, callers-1, rejected)
	assert.Equal(t, []domain.OrderEventKind{domain.OrderEventPlaced, domain.OrderEventAccepted}, f.events())
}

// UpdateStatus

func TestUpdateStatus_Matrix(t *testing.T) {
	tests := []struct {
		name  string
		from  domain.OrderStatus
		to    domain.OrderStatus
		actor func(f *fixture) uint
		check func(t *testing.T, err error)
	}{
		{"freelancer delivers", domain.OrderStatusInProgress, domain.OrderStatusDelivered, func(f *fixture) uint { return f.freelancer }, noError},
		{"client completes", domain.OrderStatusDelivered, domain.OrderStatusCompleted, func(f *fixture) uint { return f.client }, noError},
		{"client cancels in progress", domain.OrderStatusInProgress, domain.OrderStatusCancelled, func(f *fixture) uint { return f.client }, noError},
		{"freelancer cancels pending", domain.OrderStatusPending, domain.OrderStatusCancelled, func(f *fixture) uint { return f.freelancer }, noError},
		{"client cannot deliver", domain.OrderStatusInProgress, domain.OrderStatusDelivered, func(f *fixture) uint { return f.client }, isForbidden},
		{"freelancer cannot complete", domain.OrderStatusDelivered, domain.OrderStatusCompleted, func(f *fixture) uint { return f.freelancer }, isForbidden},
		{"stranger is forbidden", domain.OrderStatusPending, domain.OrderStatusCancelled, func(f *fixture) uint { return f.stranger }, isForbidden},
		{"skip to completed", domain.OrderStatusPending, domain.OrderStatusCompleted, func(f *fixture) uint { return f.client }, isInvalidTransition},
		{"back to pending", domain.OrderStatusInProgress, domain.OrderStatusPending, func(f *fixture) uint { return f.freelancer }, isInvalidTransition},
		{"completed is terminal", domain.OrderStatusCompleted, domain.OrderStatusCancelled, func(f *fixture) uint { return f.client }, isInvalidTransition},
		{"cancelled is terminal", domain.OrderStatusCancelled, domain.OrderStatusInProgress, func(f *fixture) uint { return f.freelancer }, isInvalidTransition},
		{"delivered cannot be cancelled", domain.OrderStatusDelivered, domain.OrderStatusCancelled, func(f *fixture) uint { return f.client }, isInvalidTransition},
		{"same status conflicts", domain.OrderStatusDelivered, domain.OrderStatusDelivered, func(f *fixture) uint { return f.freelancer }, isConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			id := f.seedOrder(tt.from)

			_, err := f.svc.UpdateStatus(context.Background(), id, tt.actor(f), tt.to)
			tt.check(t, err)

			stored, _ := f.store.Order(id)
			if err == nil {
				assert.Equal(t, tt.to, stored.Status)
				assert.NotEmpty(t, f.notifier.sent)
			} else {
				assert.Equal(t, tt.from, stored.Status)
				assert.Empty(t, f.notifier.sent)
			}
		})
	}
}

func TestUpdateStatus_DeliveredRemindsClient(t *testing.T) {
	f := newFixture(t)
	id := f.seedOrder(domain.OrderStatusInProgress)

	_, err := f.svc.UpdateStatus(context.Background(), id, f.freelancer, domain.OrderStatusDelivered)
	require.NoError(t, err)

	require.Len(t, f.notifier.sent, 2)
	for _, s := range f.notifier.sent {
		assert.Equal(t, f.client, s.UserID)
	}
	assert.Equal(t, []domain.OrderEventKind{domain.OrderEventDelivered, domain.OrderEventReviewReminder}, f.events())
	assert.Len(t, f.notifier.announced, 2)
}

func TestUpdateStatus_NotifiesCounterparty(t *testing.T) {
	f := newFixture(t)
	id := f.seedOrder(domain.OrderStatusDelivered)

	_, err := f.svc.UpdateStatus(context.Background(), id, f.client, domain.OrderStatusCompleted)
	require.NoError(t, err)

	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, f.freelancer, f.notifier.sent[0].UserID)
	assert.Equal(t, []domain.OrderEventKind{domain.OrderEventCompleted}, f.events())
	assert.Equal(t, []string{"delivered->completed"}, f.metrics.transitions)
}

func TestUpdateStatus_UnknownStatus(t *testing.T) {
	f := newFixture(t)
	id := f.seedOrder(domain.OrderStatusPending)

	_, err := f.svc.UpdateStatus(context.Background(), id, f.client, domain.OrderStatus("archived"))
	_, ok := errors.IsValidationError(err)
	assert.True(t, ok)
}

// Deliver

func TestDeliver_Success(t *testing.T) {
	f := newFixture(t)
	id := f.seedOrder(domain.OrderStatusInProgress)

	order, err := f.svc.Deliver(context.Background(), DeliverOrderCommand{
		OrderID: id, FreelancerID: f.freelancer, FileURL: "https://x/y", Message: "here you go",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusDelivered, order.Status)
	assert.Equal(t, 1, f.store.DeliveryCount())
	assert.Equal(t, []domain.OrderEventKind{domain.OrderEventDelivered, domain.OrderEventReviewReminder}, f.events())
}

func TestDeliver_Validation(t *testing.T) {
	f := newFixture(t)
	id := f.seedOrder(domain.OrderStatusInProgress)

	for _, fileURL := range []string{"", "x/y", "ftp://files/x", "https://"} {
		_, err := f.svc.Deliver(context.Background(), DeliverOrderCommand{OrderID: id, FreelancerID: f.freelancer, FileURL: fileURL})
		_, ok := errors.IsValidationError(err)
		assert.True(t, ok, fileURL)
	}

	_, err := f.svc.Deliver(context.Background(), DeliverOrderCommand{
		OrderID: id, FreelancerID: f.freelancer, FileURL: "https://x/y",
		Message: strings.Repeat("é", MaxDeliveryMessageLength+1),
	})
	_, ok := errors.IsValidationError(err)
	assert.True(t, ok)
	assert.Equal(t, 0, f.store.DeliveryCount())
}

func TestDeliver_WrongStateOrParty(t *testing.T) {
	f := newFixture(t)
	pending := f.seedOrder(domain.OrderStatusPending)
	started := f.seedOrder(domain.OrderStatusInProgress)

	_, err := f.svc.Deliver(context.Background(), DeliverOrderCommand{OrderID: pending, FreelancerID: f.freelancer, FileURL: "https://x/y"})
	_, ok := errors.IsInvalidTransitionError(err)
	assert.True(t, ok)

	_, err = f.svc.Deliver(context.Background(), DeliverOrderCommand{OrderID: started, FreelancerID: f.client, FileURL: "https://x/y"})
	_, ok = errors.IsForbiddenError(err)
	assert.True(t, ok)

	assert.Equal(t, 0, f.store.DeliveryCount())
}

func TestDeliver_NotificationFailureRollsBackDelivery(t *testing.T) {
	f := newFixture(t)
	id := f.seedOrder(domain.OrderStatusInProgress)
	f.notifier.NotifyErr = stderrors.New("connection reset")

	_, err := f.svc.Deliver(context.Background(), DeliverOrderCommand{OrderID: id, FreelancerID: f.freelancer, FileURL: "https://x/y"})
	_, ok := errors.IsUnavailableError(err)
	assert.True(t, ok)

	stored, _ := f.store.Order(id)
	assert.Equal(t, domain.OrderStatusInProgress, stored.Status)
	assert.Equal(t, 0, f.store.DeliveryCount())
}

// Cancel

func TestCancel_Pending(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(t)

	require.NoError(t, f.svc.Cancel(context.Background(), order.ID, f.client))

	_, ok := f.store.Order(order.ID)
	assert.False(t, ok)

	last := f.notifier.sent[len(f.notifier.sent)-1]
	assert.Equal(t, f.freelancer, last.UserID)
	assert.Equal(t, domain.OrderEvent{OrderID: order.ID, Event: domain.OrderEventCancelled}, last.Payload)
}

func TestCancel_Errors(t *testing.T) {
	for _, status := range []domain.OrderStatus{
		domain.OrderStatusInProgress,
		domain.OrderStatusDelivered,
		domain.OrderStatusCompleted,
		domain.OrderStatusCancelled,
	} {
		t.Run(string(status), func(t *testing.T) {
			f := newFixture(t)
			id := f.seedOrder(status)

			err := f.svc.Cancel(context.Background(), id, f.client)
			_, ok := errors.IsInvalidOperationError(err)
			assert.True(t, ok)

			_, exists := f.store.Order(id)
			assert.True(t, exists)
		})
	}

	t.Run("stranger", func(t *testing.T) {
		f := newFixture(t)
		id := f.seedOrder(domain.OrderStatusPending)

		err := f.svc.Cancel(context.Background(), id, f.stranger)
		_, ok := errors.IsForbiddenError(err)
		assert.True(t, ok)
	})
}

// Reads

func TestGet(t *testing.T) {
	f := newFixture(t)
	id := f.seedOrder(domain.OrderStatusPending)

	order, err := f.svc.Get(context.Background(), id, f.freelancer)
	require.NoError(t, err)
	assert.Equal(t, id, order.ID)

	_, err = f.svc.Get(context.Background(), id, f.stranger)
	_, ok := errors.IsForbiddenError(err)
	assert.True(t, ok)

	_, err = f.svc.Get(context.Background(), 999, f.client)
	_, ok = errors.IsNotFoundError(err)
	assert.True(t, ok)
}

func noError(t *testing.T, err error) { assert.NoError(t, err) }

func isForbidden(t *testing.T, err error) {
	_, ok := errors.IsForbiddenError(err)
	assert.True(t, ok, "expected forbidden, got %v", err)
}

func isInvalidTransition(t *testing.T, err error) {
	_, ok := errors.IsInvalidTransitionError(err)
	assert.True(t, ok, "expected invalid transition, got %v", err)
}

func isConflict(t *testing.T, err error) {
	_, ok := errors.IsConflictError(err)
	assert.True(t, ok, "expected conflict, got %v", err)
}
