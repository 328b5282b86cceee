package service

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"gigmarket/internal/domain"
	"gigmarket/internal/errors"
)

// DefaultListLimit caps how many notifications List returns.
const DefaultListLimit = 50

type Transactor interface {
	WithTransaction(ctx context.Context, name string, fn func(ctx context.Context, tx *sql.Tx) error) error
}

type NotificationRepository interface {
	Insert(ctx context.Context, tx *sql.Tx, n domain.Notification) (uint, error)
	InsertHistory(ctx context.Context, tx *sql.Tx, h domain.NotificationHistory) error
	FindByID(ctx context.Context, id uint) (*domain.Notification, error)
	FindByIDForUpdate(ctx context.Context, tx *sql.Tx, id uint) (*domain.Notification, error)
	FindByRequestIDForUpdate(ctx context.Context, tx *sql.Tx, requestID string) ([]domain.Notification, error)
	MarkRead(ctx context.Context, tx *sql.Tx, id uint) error
	Resolve(ctx context.Context, tx *sql.Tx, id uint, status domain.NotificationStatus) error
	ExistsPendingRequest(ctx context.Context, tx *sql.Tx, senderID uint, t domain.NotificationType) (bool, error)
	ListByUser(ctx context.Context, userID uint, limit int) ([]domain.Notification, error)
	CountUnread(ctx context.Context, userID uint) (int, error)
	ListHistory(ctx context.Context, notificationID uint) ([]domain.NotificationHistory, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, notifications ...domain.Notification) error
}

type MetricsRecorder interface {
	NotificationCreated(notificationType string)
}

// RequestResolver settles a promotion request from one of its copies. The
// role change and the outcome notice it implies happen there.
type RequestResolver interface {
	ResolveNotification(ctx context.Context, notificationID, adminID uint, outcome domain.Resolution) error
}

// Dispatcher writes notifications inside the caller's transaction and
// announces them once that transaction has committed.
type Dispatcher struct {
	tx        Transactor
	repo      NotificationRepository
	publisher EventPublisher
	metrics   MetricsRecorder
	requests  RequestResolver
	logger    *zap.Logger
	now       func() time.Time
}

func NewDispatcher(
	tx Transactor,
	repo NotificationRepository,
	publisher EventPublisher,
	metrics MetricsRecorder,
	logger *zap.Logger,
) *Dispatcher {
	return &Dispatcher{
		tx:        tx,
		repo:      repo,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithRequestResolver lets Resolve settle promotion requests.
func (d *Dispatcher) WithRequestResolver(r RequestResolver) *Dispatcher {
	d.requests = r
	return d
}

// Notify appends one notification and its history row in tx. The caller
// decides nothing based on the result beyond collecting it for Announce.
func (d *Dispatcher) Notify(ctx context.Context, tx *sql.Tx, userID uint, payload domain.Payload) (domain.Notification, error) {
	if userID == 0 {
		return domain.Notification{}, errors.NewValidationError("notification needs an addressee", errors.ValidationDetail{
			Field:   "userId",
			Message: "userId must be a positive integer",
		})
	}

	n := domain.NewNotification(userID, payload)
	id, err := d.repo.Insert(ctx, tx, n)
	if err != nil {
		return domain.Notification{}, err
	}
	n.ID = id
	n.CreatedAt = d.now()
	n.UpdatedAt = n.CreatedAt

	if err := d.repo.InsertHistory(ctx, tx, n.Snapshot(domain.HistoryActionCreated)); err != nil {
		return domain.Notification{}, err
	}

	return n, nil
}

// Announce publishes committed notifications. Failures are logged and never
// reach the caller: the rows are already durable.
func (d *Dispatcher) Announce(ctx context.Context, notifications ...domain.Notification) {
	if len(notifications) == 0 {
		return
	}

	for _, n := range notifications {
		d.metrics.NotificationCreated(string(n.Type))
	}

	if err := d.publisher.Publish(ctx, notifications...); err != nil {
		d.logger.Warn("failed to announce notifications", zap.Int("count", len(notifications)), zap.Error(err))
	}
}

func (d *Dispatcher) MarkRead(ctx context.Context, notificationID, userID uint) (*domain.Notification, error) {
	var updated domain.Notification

	err := d.tx.WithTransaction(ctx, "mark_notification_read", func(ctx context.Context, tx *sql.Tx) error {
		n, err := d.repo.FindByIDForUpdate(ctx, tx, notificationID)
		if err != nil {
			return err
		}

		if n.UserID != userID {
			return errors.NewForbiddenError("notification belongs to another user")
		}

		if n.IsRead {
			return errors.NewConflictError("notification already read")
		}

		if err := d.repo.MarkRead(ctx, tx, n.ID); err != nil {
			return err
		}
		n.IsRead = true

		if err := d.repo.InsertHistory(ctx, tx, n.Snapshot(domain.HistoryActionRead)); err != nil {
			return err
		}

		updated = *n
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &updated, nil
}

// Resolve applies outcome to a pending notification addressed to userID.
// A promotion request is handed to the request resolver after the
// addressee check, which re-validates it under its own lock.
func (d *Dispatcher) Resolve(ctx context.Context, notificationID, userID uint, outcome domain.Resolution) (*domain.Notification, error) {
	var (
		resolved  domain.Notification
		isRequest bool
	)

	err := d.tx.WithTransaction(ctx, "resolve_notification", func(ctx context.Context, tx *sql.Tx) error {
		n, err := d.repo.FindByIDForUpdate(ctx, tx, notificationID)
		if err != nil {
			return err
		}

		if n.UserID != userID {
			return errors.NewForbiddenError("notification belongs to another user")
		}

		isRequest = n.Type == domain.NotificationTypeContactRequest
		if isRequest {
			if d.requests == nil {
				return errors.NewInvalidOperationError("promotion requests cannot be resolved here")
			}
			resolved = *n
			return nil
		}

		if err := d.resolveLocked(ctx, tx, n, outcome); err != nil {
			return err
		}

		resolved = *n
		return nil
	})
	if err != nil {
		return nil, err
	}

	if isRequest {
		if err := d.requests.ResolveNotification(ctx, notificationID, userID, outcome); err != nil {
			return nil, err
		}
		resolved.Status = outcome.Status()
		resolved.UpdatedAt = d.now()
	}

	return &resolved, nil
}

// History returns the audit trail of one of userID's notifications, oldest
// entry first.
func (d *Dispatcher) History(ctx context.Context, notificationID, userID uint) ([]domain.NotificationHistory, error) {
	n, err := d.repo.FindByID(ctx, notificationID)
	if err != nil {
		return nil, errors.Classify("loading notification", err)
	}
	if n.UserID != userID {
		return nil, errors.NewForbiddenError("notification belongs to another user")
	}

	history, err := d.repo.ListHistory(ctx, notificationID)
	if err != nil {
		return nil, errors.Classify("listing notification history", err)
	}
	return history, nil
}

// FindForUpdate locks one notification in tx.
func (d *Dispatcher) FindForUpdate(ctx context.Context, tx *sql.Tx, notificationID uint) (*domain.Notification, error) {
	return d.repo.FindByIDForUpdate(ctx, tx, notificationID)
}

// HasPendingRequest reports whether senderID still waits on a promotion
// request.
func (d *Dispatcher) HasPendingRequest(ctx context.Context, tx *sql.Tx, senderID uint) (bool, error) {
	return d.repo.ExistsPendingRequest(ctx, tx, senderID, domain.NotificationTypeContactRequest)
}

// ResolveRequest resolves every copy of a promotion request in tx. Copies
// move together, so a single resolved copy makes the whole call a conflict.
func (d *Dispatcher) ResolveRequest(ctx context.Context, tx *sql.Tx, requestID string, outcome domain.Resolution) ([]domain.Notification, error) {
	copies, err := d.repo.FindByRequestIDForUpdate(ctx, tx, requestID)
	if err != nil {
		return nil, err
	}
	if len(copies) == 0 {
		return nil, errors.NewNotFoundError("promotion request " + requestID + " not found")
	}

	for i := range copies {
		if err := d.resolveLocked(ctx, tx, &copies[i], outcome); err != nil {
			return nil, err
		}
	}

	return copies, nil
}

func (d *Dispatcher) resolveLocked(ctx context.Context, tx *sql.Tx, n *domain.Notification, outcome domain.Resolution) error {
	if n.Status.IsResolved() {
		return errors.NewConflictError("notification already resolved")
	}
	if n.Status != domain.NotificationStatusPending {
		return errors.NewInvalidOperationError("notification cannot be resolved")
	}

	if err := d.repo.Resolve(ctx, tx, n.ID, outcome.Status()); err != nil {
		return err
	}
	n.Status = outcome.Status()

	return d.repo.InsertHistory(ctx, tx, n.Snapshot(domain.HistoryActionResolved))
}

func (d *Dispatcher) List(ctx context.Context, userID uint) ([]domain.Notification, error) {
	notifications, err := d.repo.ListByUser(ctx, userID, DefaultListLimit)
	if err != nil {
		return nil, errors.Classify("listing notifications", err)
	}
	return notifications, nil
}

func (d *Dispatcher) UnreadCount(ctx context.Context, userID uint) (int, error) {
	count, err := d.repo.CountUnread(ctx, userID)
	if err != nil {
		return 0, errors.Classify("counting unread notifications", err)
	}
	return count, nil
}
