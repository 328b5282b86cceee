package service

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"gigmarket/internal/commons"
	"gigmarket/internal/domain"
	"gigmarket/internal/errors"
)

// MaxDeliveryMessageLength bounds the note a freelancer attaches to a
// delivery, in characters.
const MaxDeliveryMessageLength = 2000

type Transactor interface {
	WithTransaction(ctx context.Context, name string, fn func(ctx context.Context, tx *sql.Tx) error) error
}

type OrderRepository interface {
	FindByID(ctx context.Context, id uint) (*domain.Order, error)
	FindByIDForUpdate(ctx context.Context, tx *sql.Tx, id uint) (*domain.Order, error)
	Insert(ctx context.Context, tx *sql.Tx, order domain.Order) (uint, error)
	CompareAndSetStatus(ctx context.Context, tx *sql.Tx, id uint, from, to domain.OrderStatus) error
	DeleteIfStatus(ctx context.Context, tx *sql.Tx, id uint, status domain.OrderStatus) error
	ExistsActive(ctx context.Context, tx *sql.Tx, clientID, serviceID uint) (bool, error)
	ListByUser(ctx context.Context, userID uint) ([]domain.Order, error)
}

type DeliveryRepository interface {
	Insert(ctx context.Context, tx *sql.Tx, d domain.OrderDelivery) (uint, error)
}

type ServiceCatalog interface {
	FindByIDForUpdate(ctx context.Context, tx *sql.Tx, id uint) (*domain.Service, error)
}

type Notifier interface {
	Notify(ctx context.Context, tx *sql.Tx, userID uint, payload domain.Payload) (domain.Notification, error)
	Announce(ctx context.Context, notifications ...domain.Notification)
}

type MetricsRecorder interface {
	OrderTransitioned(from, to string)
}

type CreateOrderCommand struct {
	ClientID     uint
	ServiceID    uint
	TotalPrice   decimal.Decimal
	CurrencyCode string
}

type DeliverOrderCommand struct {
	OrderID      uint
	FreelancerID uint
	FileURL      string
	Message      string
}

// LifecycleService drives orders through the status machine. Every mutator
// re-reads the order under a row lock and writes with a compare-and-swap in
// the same transaction as the notifications it produces.
type LifecycleService struct {
	tx         Transactor
	orders     OrderRepository
	deliveries DeliveryRepository
	catalog    ServiceCatalog
	notifier   Notifier
	metrics    MetricsRecorder
	logger     *zap.Logger
	now        func() time.Time
}

func NewLifecycleService(
	tx Transactor,
	orders OrderRepository,
	deliveries DeliveryRepository,
	catalog ServiceCatalog,
	notifier Notifier,
	metrics MetricsRecorder,
	logger *zap.Logger,
) *LifecycleService {
	return &LifecycleService{
		tx:         tx,
		orders:     orders,
		deliveries: deliveries,
		catalog:    catalog,
		notifier:   notifier,
		metrics:    metrics,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *LifecycleService) Create(ctx context.Context, cmd CreateOrderCommand) (*domain.Order, error) {
	cmd.CurrencyCode = strings.ToUpper(strings.TrimSpace(cmd.CurrencyCode))
	if err := validateCreate(cmd); err != nil {
		return nil, err
	}

	var (
		order   domain.Order
		created []domain.Notification
	)

	err := s.tx.WithTransaction(ctx, "create_order", func(ctx context.Context, tx *sql.Tx) error {
		created = created[:0]

		svc, err := s.catalog.FindByIDForUpdate(ctx, tx, cmd.ServiceID)
		if err != nil {
			return err
		}

		if svc.OwnerID == cmd.ClientID {
			return errors.NewInvalidOperationError("cannot order your own service")
		}

		if cmd.CurrencyCode != svc.CurrencyCode {
			return errors.NewInvalidOperationError(fmt.Sprintf("service is priced in %s, not %s", svc.CurrencyCode, cmd.CurrencyCode))
		}
		if !cmd.TotalPrice.Equal(svc.Price) {
			return errors.NewInvalidOperationError(fmt.Sprintf("total price must match the listed price %s", svc.Price.StringFixed(2)))
		}

		active, err := s.orders.ExistsActive(ctx, tx, cmd.ClientID, svc.ID)
		if err != nil {
			return err
		}
		if active {
			return errors.NewConflictError("an active order for this service already exists")
		}

		serviceID := svc.ID
		order = domain.Order{
			ClientID:     cmd.ClientID,
			FreelancerID: svc.OwnerID,
			ServiceID:    &serviceID,
			TotalPrice:   svc.Price,
			CurrencyCode: svc.CurrencyCode,
			Status:       domain.OrderStatusPending,
			OrderedAt:    s.now(),
		}
		order.UpdatedAt = order.OrderedAt

		order.ID, err = s.orders.Insert(ctx, tx, order)
		if err != nil {
			return err
		}

		n, err := s.notifier.Notify(ctx, tx, order.FreelancerID, domain.OrderEvent{OrderID: order.ID, Event: domain.OrderEventPlaced})
		if err != nil {
			return err
		}
		created = append(created, n)

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.OrderTransitioned("none", string(domain.OrderStatusPending))
	s.logger.Info("order created",
		zap.Uint("orderId", order.ID),
		zap.Uint("clientId", order.ClientID),
		zap.Uint("freelancerId", order.FreelancerID),
		zap.String("totalPrice", order.TotalPrice.StringFixed(2)),
		zap.String("currency", order.CurrencyCode),
	)
	s.notifier.Announce(ctx, created...)

	return &order, nil
}

// Accept is the freelancer taking on a pending order.
func (s *LifecycleService) Accept(ctx context.Context, orderID, freelancerID uint) (*domain.Order, error) {
	return s.transition(ctx, "accept_order", orderID, freelancerID, domain.OrderStatusInProgress,
		func(order *domain.Order) error {
			if order.FreelancerID != freelancerID {
				return errors.NewForbiddenError("only the order's freelancer can accept it")
			}
			if order.Status != domain.OrderStatusPending {
				return errors.NewInvalidTransitionError(string(order.Status), string(domain.OrderStatusInProgress))
			}
			return nil
		}, nil)
}

func (s *LifecycleService) UpdateStatus(ctx context.Context, orderID, actorID uint, newStatus domain.OrderStatus) (*domain.Order, error) {
	if _, ok := domain.ParseOrderStatus(string(newStatus)); !ok {
		return nil, errors.NewValidationError("invalid status", errors.ValidationDetail{
			Field:   "status",
			Message: fmt.Sprintf("status %q is not a known order status", newStatus),
		})
	}

	return s.transition(ctx, "update_order_status", orderID, actorID, newStatus,
		func(order *domain.Order) error {
			return checkTransition(order, actorID, newStatus)
		}, nil)
}

// Deliver records the freelancer's delivery and moves the order to
// delivered in one transaction.
func (s *LifecycleService) Deliver(ctx context.Context, cmd DeliverOrderCommand) (*domain.Order, error) {
	cmd.FileURL = strings.TrimSpace(cmd.FileURL)
	cmd.Message = commons.PlainText(cmd.Message)
	if err := validateDelivery(cmd); err != nil {
		return nil, err
	}

	return s.transition(ctx, "deliver_order", cmd.OrderID, cmd.FreelancerID, domain.OrderStatusDelivered,
		func(order *domain.Order) error {
			return checkTransition(order, cmd.FreelancerID, domain.OrderStatusDelivered)
		},
		func(ctx context.Context, tx *sql.Tx, order *domain.Order) error {
			_, err := s.deliveries.Insert(ctx, tx, domain.OrderDelivery{
				OrderID:     order.ID,
				Message:     cmd.Message,
				FileURL:     cmd.FileURL,
				DeliveredAt: s.now(),
			})
			return err
		})
}

// Cancel withdraws an order that nobody has started working on. The order
// row is removed and the counterparty is told.
func (s *LifecycleService) Cancel(ctx context.Context, orderID, actorID uint) error {
	var (
		order   *domain.Order
		created []domain.Notification
	)

	err := s.tx.WithTransaction(ctx, "cancel_order", func(ctx context.Context, tx *sql.Tx) error {
		created = created[:0]

		var err error
		order, err = s.orders.FindByIDForUpdate(ctx, tx, orderID)
		if err != nil {
			return err
		}

		if order.PartyOf(actorID) == domain.PartyNone {
			return errors.NewForbiddenError("user is not a party to this order")
		}

		if !order.Status.IsDeletable() {
			return errors.NewInvalidOperationError(fmt.Sprintf("cannot cancel an order that is %s", order.Status))
		}

		if err := s.orders.DeleteIfStatus(ctx, tx, order.ID, order.Status); err != nil {
			return err
		}

		n, err := s.notifier.Notify(ctx, tx, order.Counterparty(actorID), domain.OrderEvent{OrderID: order.ID, Event: domain.OrderEventCancelled})
		if err != nil {
			return err
		}
		created = append(created, n)

		return nil
	})
	if err != nil {
		return err
	}

	s.metrics.OrderTransitioned(string(order.Status), string(domain.OrderStatusCancelled))
	s.logger.Info("order cancelled", zap.Uint("orderId", order.ID), zap.Uint("actorId", actorID))
	s.notifier.Announce(ctx, created...)

	return nil
}

// Get returns the order to either of its parties.
func (s *LifecycleService) Get(ctx context.Context, orderID, actorID uint) (*domain.Order, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, errors.Classify("reading order", err)
	}

	if order.PartyOf(actorID) == domain.PartyNone {
		return nil, errors.NewForbiddenError("user is not a party to this order")
	}

	return order, nil
}

func (s *LifecycleService) ListForUser(ctx context.Context, userID uint) ([]domain.Order, error) {
	orders, err := s.orders.ListByUser(ctx, userID)
	if err != nil {
		return nil, errors.Classify("listing orders", err)
	}
	return orders, nil
}

// transition runs one guarded status change. guard sees the locked order;
// extra runs after the status write inside the same transaction.
func (s *LifecycleService) transition(
	ctx context.Context,
	name string,
	orderID, actorID uint,
	to domain.OrderStatus,
	guard func(order *domain.Order) error,
	extra func(ctx context.Context, tx *sql.Tx, order *domain.Order) error,
) (*domain.Order, error) {
	var (
		order   *domain.Order
		from    domain.OrderStatus
		created []domain.Notification
	)

	err := s.tx.WithTransaction(ctx, name, func(ctx context.Context, tx *sql.Tx) error {
		created = created[:0]

		var err error
		order, err = s.orders.FindByIDForUpdate(ctx, tx, orderID)
		if err != nil {
			return err
		}

		if err := guard(order); err != nil {
			return err
		}

		from = order.Status
		if err := s.orders.CompareAndSetStatus(ctx, tx, order.ID, from, to); err != nil {
			return err
		}
		order.Status = to
		order.UpdatedAt = s.now()

		if extra != nil {
			if err := extra(ctx, tx, order); err != nil {
				return err
			}
		}

		created, err = s.announceTransition(ctx, tx, order, actorID, created)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.OrderTransitioned(string(from), string(to))
	s.logger.Info("order transitioned",
		zap.Uint("orderId", order.ID),
		zap.Uint("actorId", actorID),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)
	s.notifier.Announce(ctx, created...)

	return order, nil
}

// announceTransition tells the counterparty about the status the order just
// entered. A delivery also asks the client for a review.
func (s *LifecycleService) announceTransition(ctx context.Context, tx *sql.Tx, order *domain.Order, actorID uint, created []domain.Notification) ([]domain.Notification, error) {
	event, ok := domain.OrderEventForStatus(order.Status)
	if !ok {
		return created, nil
	}

	n, err := s.notifier.Notify(ctx, tx, order.Counterparty(actorID), domain.OrderEvent{OrderID: order.ID, Event: event})
	if err != nil {
		return nil, err
	}
	created = append(created, n)

	if order.Status == domain.OrderStatusDelivered {
		n, err := s.notifier.Notify(ctx, tx, order.ClientID, domain.OrderEvent{OrderID: order.ID, Event: domain.OrderEventReviewReminder})
		if err != nil {
			return nil, err
		}
		created = append(created, n)
	}

	return created, nil
}

// checkTransition applies the transition table to the persisted order. A
// target equal to the current status means the move was already applied.
func checkTransition(order *domain.Order, actorID uint, to domain.OrderStatus) error {
	party := order.PartyOf(actorID)
	if party == domain.PartyNone {
		return errors.NewForbiddenError("user is not a party to this order")
	}

	if order.Status == to {
		return errors.NewConflictError(fmt.Sprintf("order is already %s", to))
	}

	if !domain.CanTransition(order.Status, to) {
		return errors.NewInvalidTransitionError(string(order.Status), string(to))
	}

	if !domain.CanTrigger(party, order.Status, to) {
		return errors.NewForbiddenError(fmt.Sprintf("the %s cannot move this order to %s", party, to))
	}

	return nil
}

func validateCreate(cmd CreateOrderCommand) error {
	var details []errors.ValidationDetail

	if cmd.ClientID == 0 {
		details = append(details, errors.ValidationDetail{Field: "clientId", Message: "clientId is required"})
	}

	if cmd.ServiceID == 0 {
		details = append(details, errors.ValidationDetail{Field: "serviceId", Message: "serviceId must be a positive integer"})
	}

	if !cmd.TotalPrice.IsPositive() {
		details = append(details, errors.ValidationDetail{Field: "totalPrice", Message: "totalPrice must be greater than zero"})
	}

	if !isCurrencyCode(cmd.CurrencyCode) {
		details = append(details, errors.ValidationDetail{Field: "currencyCode", Message: "currencyCode must be a 3-letter ISO code"})
	}

	if len(details) > 0 {
		return errors.NewValidationError("validation failed", details...)
	}

	return nil
}

func validateDelivery(cmd DeliverOrderCommand) error {
	var details []errors.ValidationDetail

	u, err := url.Parse(cmd.FileURL)
	if cmd.FileURL == "" || err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		details = append(details, errors.ValidationDetail{Field: "fileUrl", Message: "fileUrl must be an absolute http(s) URL"})
	}

	if utf8.RuneCountInString(cmd.Message) > MaxDeliveryMessageLength {
		details = append(details, errors.ValidationDetail{
			Field:   "message",
			Message: fmt.Sprintf("message must be at most %d characters", MaxDeliveryMessageLength),
		})
	}

	if len(details) > 0 {
		return errors.NewValidationError("validation failed", details...)
	}

	return nil
}

func isCurrencyCode(code string) bool {
	if len(code) != 3 {
		return false
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
