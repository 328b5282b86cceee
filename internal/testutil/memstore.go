package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"gigmarket/internal/domain"
	"gigmarket/internal/errors"
)

// MemStore keeps every table in memory and implements the repository ports
// the services consume. WithTransaction serializes units of work and
// restores the previous state when fn fails, so atomicity can be asserted
// without a database. The *sql.Tx handed to fn is always nil.
type MemStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	nextID        uint
	users         map[uint]domain.User
	services      map[uint]domain.Service
	orders        map[uint]domain.Order
	deliveries    map[uint]domain.OrderDelivery
	reviews       map[uint]domain.Review
	notifications map[uint]domain.Notification
	history       []domain.NotificationHistory

	faults       map[string]error
	Transactions []string
}

func NewMemStore() *MemStore {
	return &MemStore{
		users:         map[uint]domain.User{},
		services:      map[uint]domain.Service{},
		orders:        map[uint]domain.Order{},
		deliveries:    map[uint]domain.OrderDelivery{},
		reviews:       map[uint]domain.Review{},
		notifications: map[uint]domain.Notification{},
		faults:        map[string]error{},
	}
}

type memSnapshot struct {
	nextID        uint
	users         map[uint]domain.User
	services      map[uint]domain.Service
	orders        map[uint]domain.Order
	deliveries    map[uint]domain.OrderDelivery
	reviews       map[uint]domain.Review
	notifications map[uint]domain.Notification
	history       []domain.NotificationHistory
}

func (s *MemStore) WithTransaction(ctx context.Context, name string, fn func(ctx context.Context, tx *sql.Tx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	s.Transactions = append(s.Transactions, name)
	snap := memSnapshot{
		nextID:        s.nextID,
		users:         maps.Clone(s.users),
		services:      maps.Clone(s.services),
		orders:        maps.Clone(s.orders),
		deliveries:    maps.Clone(s.deliveries),
		reviews:       maps.Clone(s.reviews),
		notifications: maps.Clone(s.notifications),
		history:       slices.Clone(s.history),
	}
	s.mu.Unlock()

	if err := fn(ctx, nil); err != nil {
		s.mu.Lock()
		s.nextID = snap.nextID
		s.users = snap.users
		s.services = snap.services
		s.orders = snap.orders
		s.deliveries = snap.deliveries
		s.reviews = snap.reviews
		s.notifications = snap.notifications
		s.history = snap.history
		s.mu.Unlock()
		return errors.Classify(name, err)
	}

	return nil
}

// FailNext makes the next call of op return err. Ops are named
// "<table>.<method>", e.g. "notifications.Insert".
func (s *MemStore) FailNext(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[op] = err
}

func (s *MemStore) fault(op string) error {
	if err, ok := s.faults[op]; ok {
		delete(s.faults, op)
		return err
	}
	return nil
}

func (s *MemStore) id() uint {
	s.nextID++
	return s.nextID
}

func (s *MemStore) AddUser(u domain.User) uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	u.ID = s.id()
	if u.Role == "" {
		u.Role = domain.RoleClient
	}
	u.IsActive = true
	s.users[u.ID] = u
	return u.ID
}

func (s *MemStore) AddService(svc domain.Service) uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	svc.ID = s.id()
	s.services[svc.ID] = svc
	return svc.ID
}

// AddOrder stores o as is, bypassing the lifecycle.
func (s *MemStore) AddOrder(o domain.Order) uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	o.ID = s.id()
	s.orders[o.ID] = o
	return o.ID
}

func (s *MemStore) User(id uint) (domain.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	return u, ok
}

func (s *MemStore) Order(id uint) (domain.Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	return o, ok
}

func (s *MemStore) DeliveryCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.deliveries)
}

func (s *MemStore) ReviewCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reviews)
}

// NotificationsFor returns userID's notifications in creation order.
func (s *MemStore) NotificationsFor(userID uint) []domain.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Notification
	for _, n := range s.notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	slices.SortFunc(out, func(a, b domain.Notification) int { return int(a.ID) - int(b.ID) })
	return out
}

func (s *MemStore) History() []domain.NotificationHistory {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.history)
}

func (s *MemStore) Users() *MemUsers                 { return &MemUsers{s} }
func (s *MemStore) Services() *MemServices           { return &MemServices{s} }
func (s *MemStore) Orders() *MemOrders               { return &MemOrders{s} }
func (s *MemStore) Deliveries() *MemDeliveries       { return &MemDeliveries{s} }
func (s *MemStore) Reviews() *MemReviews             { return &MemReviews{s} }
func (s *MemStore) Notifications() *MemNotifications { return &MemNotifications{s} }

// Users

type MemUsers struct{ s *MemStore }

func (r *MemUsers) FindByID(ctx context.Context, id uint) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault("users.FindByID"); err != nil {
		return nil, err
	}
	u, ok := r.s.users[id]
	if !ok {
		return nil, errors.NewNotFoundError(fmt.Sprintf("user with id %d not found", id))
	}
	return &u, nil
}

func (r *MemUsers) FindByIDForUpdate(ctx context.Context, tx *sql.Tx, id uint) (*domain.User, error) {
	return r.FindByID(ctx, id)
}

func (r *MemUsers) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, errors.NewNotFoundError(fmt.Sprintf("user with email %s not found", email))
}

func (r *MemUsers) ListAdmins(ctx context.Context, tx *sql.Tx) ([]domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault("users.ListAdmins"); err != nil {
		return nil, err
	}
	var admins []domain.User
	for _, u := range r.s.users {
		if u.IsAdmin && u.IsActive {
			admins = append(admins, u)
		}
	}
	slices.SortFunc(admins, func(a, b domain.User) int { return int(a.ID) - int(b.ID) })
	return admins, nil
}

func (r *MemUsers) UpdateRole(ctx context.Context, tx *sql.Tx, id uint, role domain.Role) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault("users.UpdateRole"); err != nil {
		return err
	}
	u, ok := r.s.users[id]
	if !ok {
		return errors.NewNotFoundError(fmt.Sprintf("user with id %d not found", id))
	}
	u.Role = role
	r.s.users[id] = u
	return nil
}

// Services

type MemServices struct{ s *MemStore }

func (r *MemServices) FindByID(ctx context.Context, id uint) (*domain.Service, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	svc, ok := r.s.services[id]
	if !ok {
		return nil, errors.NewNotFoundError(fmt.Sprintf("service with id %d not found", id))
	}
	return &svc, nil
}

func (r *MemServices) FindByIDForUpdate(ctx context.Context, tx *sql.Tx, id uint) (*domain.Service, error) {
	return r.FindByID(ctx, id)
}

// Orders

type MemOrders struct{ s *MemStore }

func (r *MemOrders) FindByID(ctx context.Context, id uint) (*domain.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.orders[id]
	if !ok {
		return nil, errors.NewNotFoundError(fmt.Sprintf("order with id %d not found", id))
	}
	return &o, nil
}

func (r *MemOrders) FindByIDForUpdate(ctx context.Context, tx *sql.Tx, id uint) (*domain.Order, error) {
	return r.FindByID(ctx, id)
}

func (r *MemOrders) Insert(ctx context.Context, tx *sql.Tx, o domain.Order) (uint, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault("orders.Insert"); err != nil {
		return 0, err
	}
	if _, ok := r.s.users[o.ClientID]; !ok {
		return 0, errors.NewNotFoundError(fmt.Sprintf("user with id %d not found", o.ClientID))
	}
	o.ID = r.s.id()
	r.s.orders[o.ID] = o
	return o.ID, nil
}

func (r *MemOrders) CompareAndSetStatus(ctx context.Context, tx *sql.Tx, id uint, from, to domain.OrderStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault("orders.CompareAndSetStatus"); err != nil {
		return err
	}
	o, ok := r.s.orders[id]
	if !ok {
		return errors.NewNotFoundError(fmt.Sprintf("order with id %d not found", id))
	}
	if o.Status != from {
		return errors.NewConflictError(fmt.Sprintf("order %d is %s, expected %s", id, o.Status, from))
	}
	o.Status = to
	o.UpdatedAt = time.Now().UTC()
	r.s.orders[id] = o
	return nil
}

func (r *MemOrders) DeleteIfStatus(ctx context.Context, tx *sql.Tx, id uint, status domain.OrderStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.orders[id]
	if !ok {
		return errors.NewNotFoundError(fmt.Sprintf("order with id %d not found", id))
	}
	if o.Status != status {
		return errors.NewConflictError(fmt.Sprintf("order %d is %s, expected %s", id, o.Status, status))
	}
	delete(r.s.orders, id)
	return nil
}

func (r *MemOrders) ExistsActive(ctx context.Context, tx *sql.Tx, clientID, serviceID uint) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, o := range r.s.orders {
		if o.ClientID == clientID && o.ServiceID != nil && *o.ServiceID == serviceID && o.Status.IsActive() {
			return true, nil
		}
	}
	return false, nil
}

func (r *MemOrders) ListByUser(ctx context.Context, userID uint) ([]domain.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Order
	for _, o := range r.s.orders {
		if o.ClientID == userID || o.FreelancerID == userID {
			out = append(out, o)
		}
	}
	slices.SortFunc(out, func(a, b domain.Order) int { return int(b.ID) - int(a.ID) })
	return out, nil
}

// Deliveries

type MemDeliveries struct{ s *MemStore }

func (r *MemDeliveries) Insert(ctx context.Context, tx *sql.Tx, d domain.OrderDelivery) (uint, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault("deliveries.Insert"); err != nil {
		return 0, err
	}
	if _, ok := r.s.deliveries[d.OrderID]; ok {
		return 0, errors.NewConflictError(fmt.Sprintf("order %d already has a delivery", d.OrderID))
	}
	d.ID = r.s.id()
	r.s.deliveries[d.OrderID] = d
	return d.ID, nil
}

func (r *MemDeliveries) FindByOrderID(ctx context.Context, orderID uint) (*domain.OrderDelivery, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.deliveries[orderID]
	if !ok {
		return nil, errors.NewNotFoundError(fmt.Sprintf("order %d has no delivery", orderID))
	}
	return &d, nil
}

// Reviews

type MemReviews struct{ s *MemStore }

func (r *MemReviews) Insert(ctx context.Context, tx *sql.Tx, rv domain.Review) (uint, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault("reviews.Insert"); err != nil {
		return 0, err
	}
	if _, ok := r.s.reviews[rv.OrderID]; ok {
		return 0, errors.NewInvalidOperationError("order already reviewed")
	}
	rv.ID = r.s.id()
	rv.CreatedAt = time.Now().UTC()
	r.s.reviews[rv.OrderID] = rv
	return rv.ID, nil
}

func (r *MemReviews) ExistsForOrder(ctx context.Context, orderID uint) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	_, ok := r.s.reviews[orderID]
	return ok, nil
}

func (r *MemReviews) ExistsForOrderTx(ctx context.Context, tx *sql.Tx, orderID uint) (bool, error) {
	return r.ExistsForOrder(ctx, orderID)
}

func (r *MemReviews) ListByFreelancer(ctx context.Context, freelancerID uint) ([]domain.Review, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Review
	for _, rv := range r.s.reviews {
		if o, ok := r.s.orders[rv.OrderID]; ok && o.FreelancerID == freelancerID {
			out = append(out, rv)
		}
	}
	slices.SortFunc(out, func(a, b domain.Review) int { return int(b.ID) - int(a.ID) })
	return out, nil
}

// Notifications

type MemNotifications struct{ s *MemStore }

func (r *MemNotifications) Insert(ctx context.Context, tx *sql.Tx, n domain.Notification) (uint, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault("notifications.Insert"); err != nil {
		return 0, err
	}
	n.ID = r.s.id()
	n.CreatedAt = time.Now().UTC()
	n.UpdatedAt = n.CreatedAt
	r.s.notifications[n.ID] = n
	return n.ID, nil
}

func (r *MemNotifications) InsertHistory(ctx context.Context, tx *sql.Tx, h domain.NotificationHistory) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	h.ID = uint(len(r.s.history) + 1)
	h.RecordedAt = time.Now().UTC()
	r.s.history = append(r.s.history, h)
	return nil
}

func (r *MemNotifications) FindByID(ctx context.Context, id uint) (*domain.Notification, error) {
	return r.FindByIDForUpdate(ctx, nil, id)
}

func (r *MemNotifications) FindByIDForUpdate(ctx context.Context, tx *sql.Tx, id uint) (*domain.Notification, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n, ok := r.s.notifications[id]
	if !ok {
		return nil, errors.NewNotFoundError(fmt.Sprintf("notification with id %d not found", id))
	}
	return &n, nil
}

func (r *MemNotifications) FindByRequestIDForUpdate(ctx context.Context, tx *sql.Tx, requestID string) ([]domain.Notification, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Notification
	for _, n := range r.s.notifications {
		if n.RequestID != nil && *n.RequestID == requestID {
			out = append(out, n)
		}
	}
	slices.SortFunc(out, func(a, b domain.Notification) int { return int(a.ID) - int(b.ID) })
	return out, nil
}

func (r *MemNotifications) MarkRead(ctx context.Context, tx *sql.Tx, id uint) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n, ok := r.s.notifications[id]
	if !ok || n.IsRead {
		return errors.NewConflictError(fmt.Sprintf("notification %d is already read", id))
	}
	n.IsRead = true
	r.s.notifications[id] = n
	return nil
}

func (r *MemNotifications) Resolve(ctx context.Context, tx *sql.Tx, id uint, status domain.NotificationStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault("notifications.Resolve"); err != nil {
		return err
	}
	n, ok := r.s.notifications[id]
	if !ok || n.Status != domain.NotificationStatusPending {
		return errors.NewConflictError(fmt.Sprintf("notification %d is already resolved", id))
	}
	n.Status = status
	r.s.notifications[id] = n
	return nil
}

func (r *MemNotifications) ExistsPendingRequest(ctx context.Context, tx *sql.Tx, senderID uint, t domain.NotificationType) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, n := range r.s.notifications {
		if n.SenderID != nil && *n.SenderID == senderID && n.Type == t && n.Status == domain.NotificationStatusPending {
			return true, nil
		}
	}
	return false, nil
}

func (r *MemNotifications) ListByUser(ctx context.Context, userID uint, limit int) ([]domain.Notification, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Notification
	for _, n := range r.s.notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	slices.SortFunc(out, func(a, b domain.Notification) int { return int(b.ID) - int(a.ID) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemNotifications) CountUnread(ctx context.Context, userID uint) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	count := 0
	for _, n := range r.s.notifications {
		if n.UserID == userID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (r *MemNotifications) ListHistory(ctx context.Context, notificationID uint) ([]domain.NotificationHistory, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.NotificationHistory
	for _, h := range r.s.history {
		if h.NotificationID == notificationID {
			out = append(out, h)
		}
	}
	return out, nil
}
