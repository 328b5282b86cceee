package service

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gigmarket/internal/domain"
	"gigmarket/internal/errors"
)

type Transactor interface {
	WithTransaction(ctx context.Context, name string, fn func(ctx context.Context, tx *sql.Tx) error) error
}

type UserDirectory interface {
	FindByID(ctx context.Context, id uint) (*domain.User, error)
	FindByIDForUpdate(ctx context.Context, tx *sql.Tx, id uint) (*domain.User, error)
	ListAdmins(ctx context.Context, tx *sql.Tx) ([]domain.User, error)
	UpdateRole(ctx context.Context, tx *sql.Tx, id uint, role domain.Role) error
}

type Notifier interface {
	Notify(ctx context.Context, tx *sql.Tx, userID uint, payload domain.Payload) (domain.Notification, error)
	Announce(ctx context.Context, notifications ...domain.Notification)
	FindForUpdate(ctx context.Context, tx *sql.Tx, notificationID uint) (*domain.Notification, error)
	HasPendingRequest(ctx context.Context, tx *sql.Tx, senderID uint) (bool, error)
	ResolveRequest(ctx context.Context, tx *sql.Tx, requestID string, outcome domain.Resolution) ([]domain.Notification, error)
}

type MetricsRecorder interface {
	PromotionResolved(outcome string)
}

// RequestReceipt identifies a submitted promotion request and the admins it
// was routed to.
type RequestReceipt struct {
	RequestID  string
	UserID     uint
	Recipients []uint
}

type Decision struct {
	RequestID   string
	RequesterID uint
	Outcome     domain.Resolution
	Copies      int
}

// Workflow lets a client ask to become a freelancer and lets any admin
// settle the request exactly once.
type Workflow struct {
	tx           Transactor
	users        UserDirectory
	notifier     Notifier
	metrics      MetricsRecorder
	logger       *zap.Logger
	newRequestID func() string
}

func NewWorkflow(
	tx Transactor,
	users UserDirectory,
	notifier Notifier,
	metrics MetricsRecorder,
	logger *zap.Logger,
) *Workflow {
	return &Workflow{
		tx:           tx,
		users:        users,
		notifier:     notifier,
		metrics:      metrics,
		logger:       logger,
		newRequestID: uuid.NewString,
	}
}

// Request routes a pending contact_request to every admin. The requester's
// row lock makes the pending-request check race free.
func (w *Workflow) Request(ctx context.Context, userID uint) (*RequestReceipt, error) {
	var (
		receipt RequestReceipt
		created []domain.Notification
	)

	err := w.tx.WithTransaction(ctx, "request_promotion", func(ctx context.Context, tx *sql.Tx) error {
		created = created[:0]

		user, err := w.users.FindByIDForUpdate(ctx, tx, userID)
		if err != nil {
			return err
		}

		if user.Role == domain.RoleFreelancer {
			return errors.NewInvalidOperationError("user is already a freelancer")
		}

		pending, err := w.notifier.HasPendingRequest(ctx, tx, user.ID)
		if err != nil {
			return err
		}
		if pending {
			return errors.NewConflictError("a promotion request is already pending")
		}

		admins, err := w.users.ListAdmins(ctx, tx)
		if err != nil {
			return err
		}

		receipt = RequestReceipt{RequestID: w.newRequestID(), UserID: user.ID}
		payload := domain.PromotionRequest{RequestID: receipt.RequestID, SenderID: user.ID}
		for _, admin := range admins {
			if admin.ID == user.ID {
				continue
			}
			n, err := w.notifier.Notify(ctx, tx, admin.ID, payload)
			if err != nil {
				return err
			}
			created = append(created, n)
			receipt.Recipients = append(receipt.Recipients, admin.ID)
		}

		if len(receipt.Recipients) == 0 {
			return errors.NewUnavailableError("no admin available to review the request", nil)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	w.logger.Info("promotion requested",
		zap.Uint("userId", receipt.UserID),
		zap.String("requestId", receipt.RequestID),
		zap.Int("recipients", len(receipt.Recipients)),
	)
	w.notifier.Announce(ctx, created...)

	return &receipt, nil
}

func (w *Workflow) Accept(ctx context.Context, notificationID, adminID uint) (*Decision, error) {
	return w.Resolve(ctx, notificationID, adminID, domain.ResolutionAccepted)
}

func (w *Workflow) Reject(ctx context.Context, notificationID, adminID uint) (*Decision, error) {
	return w.Resolve(ctx, notificationID, adminID, domain.ResolutionRejected)
}

// ResolveNotification settles the request for callers that only care
// whether it went through, such as the notification inbox.
func (w *Workflow) ResolveNotification(ctx context.Context, notificationID, adminID uint, outcome domain.Resolution) error {
	_, err := w.Resolve(ctx, notificationID, adminID, outcome)
	return err
}

// Resolve settles the request behind notificationID. Accepting promotes the
// requester; both outcomes close every copy and tell the requester, all in
// one transaction.
func (w *Workflow) Resolve(ctx context.Context, notificationID, adminID uint, outcome domain.Resolution) (*Decision, error) {
	if _, ok := domain.ParseResolution(string(outcome)); !ok {
		return nil, errors.NewValidationError("invalid outcome", errors.ValidationDetail{
			Field:   "outcome",
			Message: "outcome must be accepted or rejected",
		})
	}

	var (
		decision Decision
		created  []domain.Notification
	)

	err := w.tx.WithTransaction(ctx, "resolve_promotion", func(ctx context.Context, tx *sql.Tx) error {
		created = created[:0]

		admin, err := w.users.FindByID(ctx, adminID)
		if _, notFound := errors.IsNotFoundError(err); notFound {
			return errors.NewForbiddenError("only admins can resolve promotion requests")
		}
		if err != nil {
			return err
		}
		if !admin.IsAdmin {
			return errors.NewForbiddenError("only admins can resolve promotion requests")
		}

		n, err := w.notifier.FindForUpdate(ctx, tx, notificationID)
		if err != nil {
			return err
		}
		if n.Type != domain.NotificationTypeContactRequest || n.RequestID == nil || n.SenderID == nil {
			return errors.NewNotFoundError("promotion request not found")
		}
		if n.Status.IsResolved() {
			return errors.NewConflictError("promotion request already resolved")
		}

		decision = Decision{RequestID: *n.RequestID, RequesterID: *n.SenderID, Outcome: outcome}

		copies, err := w.notifier.ResolveRequest(ctx, tx, decision.RequestID, outcome)
		if err != nil {
			return err
		}
		decision.Copies = len(copies)

		if outcome == domain.ResolutionAccepted {
			if _, err := w.users.FindByIDForUpdate(ctx, tx, decision.RequesterID); err != nil {
				return err
			}
			if err := w.users.UpdateRole(ctx, tx, decision.RequesterID, domain.RoleFreelancer); err != nil {
				return err
			}
		}

		notice, err := w.notifier.Notify(ctx, tx, decision.RequesterID, domain.PromotionOutcome{
			RequestID: decision.RequestID,
			Outcome:   outcome,
		})
		if err != nil {
			return err
		}
		created = append(created, notice)

		return nil
	})
	if err != nil {
		return nil, err
	}

	w.metrics.PromotionResolved(string(outcome))
	w.logger.Info("promotion resolved",
		zap.String("requestId", decision.RequestID),
		zap.Uint("requesterId", decision.RequesterID),
		zap.Uint("adminId", adminID),
		zap.String("outcome", string(outcome)),
	)
	w.notifier.Announce(ctx, created...)

	return &decision, nil
}
