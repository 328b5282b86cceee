package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"gigmarket/internal/commons"
	"gigmarket/internal/domain"
	"gigmarket/internal/errors"
)

type Transactor interface {
	WithTransaction(ctx context.Context, name string, fn func(ctx context.Context, tx *sql.Tx) error) error
}

type OrderRepository interface {
	FindByID(ctx context.Context, id uint) (*domain.Order, error)
	FindByIDForUpdate(ctx context.Context, tx *sql.Tx, id uint) (*domain.Order, error)
}

type ReviewRepository interface {
	Insert(ctx context.Context, tx *sql.Tx, review domain.Review) (uint, error)
	ExistsForOrder(ctx context.Context, orderID uint) (bool, error)
	ExistsForOrderTx(ctx context.Context, tx *sql.Tx, orderID uint) (bool, error)
	ListByFreelancer(ctx context.Context, freelancerID uint) ([]domain.Review, error)
}

type Notifier interface {
	Notify(ctx context.Context, tx *sql.Tx, userID uint, payload domain.Payload) (domain.Notification, error)
	Announce(ctx context.Context, notifications ...domain.Notification)
}

type MetricsRecorder interface {
	ReviewCreated()
}

type CreateReviewCommand struct {
	OrderID    uint
	ReviewerID uint
	Rating     int
	Comment    string
}

// Eligibility explains a CanReview answer.
type Eligibility struct {
	Allowed bool
	Reason  string
}

type FreelancerReviews struct {
	FreelancerID  uint
	Reviews       []domain.Review
	AverageRating decimal.Decimal
}

// ReviewGate decides when a client may attach the single review an order
// allows, and records it.
type ReviewGate struct {
	tx       Transactor
	orders   OrderRepository
	reviews  ReviewRepository
	notifier Notifier
	metrics  MetricsRecorder
	logger   *zap.Logger
	now      func() time.Time
}

func NewReviewGate(
	tx Transactor,
	orders OrderRepository,
	reviews ReviewRepository,
	notifier Notifier,
	metrics MetricsRecorder,
	logger *zap.Logger,
) *ReviewGate {
	return &ReviewGate{
		tx:       tx,
		orders:   orders,
		reviews:  reviews,
		notifier: notifier,
		metrics:  metrics,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CanReview is advisory. CreateReview re-checks everything under the order
// row lock.
func (g *ReviewGate) CanReview(ctx context.Context, orderID, reviewerID uint) (Eligibility, error) {
	order, err := g.orders.FindByID(ctx, orderID)
	if _, notFound := errors.IsNotFoundError(err); notFound {
		return Eligibility{Reason: "order not found"}, nil
	}
	if err != nil {
		return Eligibility{}, errors.Classify("reading order", err)
	}

	if order.ClientID != reviewerID {
		return Eligibility{Reason: "only the client can review this order"}, nil
	}

	if !order.Status.IsReviewable() {
		return Eligibility{Reason: "order has not been delivered yet"}, nil
	}

	exists, err := g.reviews.ExistsForOrder(ctx, orderID)
	if err != nil {
		return Eligibility{}, errors.Classify("checking reviews", err)
	}
	if exists {
		return Eligibility{Reason: "order already reviewed"}, nil
	}

	return Eligibility{Allowed: true}, nil
}

func (g *ReviewGate) CreateReview(ctx context.Context, cmd CreateReviewCommand) (*domain.Review, error) {
	cmd.Comment = commons.PlainText(cmd.Comment)
	if err := validateReview(cmd); err != nil {
		return nil, err
	}

	var (
		review  domain.Review
		order   *domain.Order
		created []domain.Notification
	)

	err := g.tx.WithTransaction(ctx, "create_review", func(ctx context.Context, tx *sql.Tx) error {
		created = created[:0]

		var err error
		order, err = g.orders.FindByIDForUpdate(ctx, tx, cmd.OrderID)
		if err != nil {
			return err
		}

		if order.ClientID != cmd.ReviewerID {
			return errors.NewForbiddenError("only the client can review this order")
		}

		if !order.Status.IsReviewable() {
			return errors.NewInvalidOperationError("order has not been delivered yet")
		}

		exists, err := g.reviews.ExistsForOrderTx(ctx, tx, order.ID)
		if err != nil {
			return err
		}
		if exists {
			return errors.NewInvalidOperationError("order already reviewed")
		}

		review = domain.Review{
			OrderID:    order.ID,
			ReviewerID: cmd.ReviewerID,
			Rating:     cmd.Rating,
			Comment:    cmd.Comment,
			CreatedAt:  g.now(),
		}
		review.ID, err = g.reviews.Insert(ctx, tx, review)
		if err != nil {
			return err
		}

		n, err := g.notifier.Notify(ctx, tx, order.FreelancerID, domain.ReviewReceived{
			OrderID:  order.ID,
			ReviewID: review.ID,
			Rating:   review.Rating,
		})
		if err != nil {
			return err
		}
		created = append(created, n)

		return nil
	})
	if err != nil {
		return nil, err
	}

	g.metrics.ReviewCreated()
	g.logger.Info("review created",
		zap.Uint("orderId", order.ID),
		zap.Uint("reviewId", review.ID),
		zap.Int("rating", review.Rating),
	)
	g.notifier.Announce(ctx, created...)

	return &review, nil
}

func (g *ReviewGate) ListForFreelancer(ctx context.Context, freelancerID uint) (*FreelancerReviews, error) {
	reviews, err := g.reviews.ListByFreelancer(ctx, freelancerID)
	if err != nil {
		return nil, errors.Classify("listing reviews", err)
	}

	result := &FreelancerReviews{
		FreelancerID:  freelancerID,
		Reviews:       reviews,
		AverageRating: decimal.Zero,
	}
	if len(reviews) == 0 {
		return result, nil
	}

	var sum int64
	for _, r := range reviews {
		sum += int64(r.Rating)
	}
	result.AverageRating = decimal.NewFromInt(sum).Div(decimal.NewFromInt(int64(len(reviews)))).Round(2)

	return result, nil
}

func validateReview(cmd CreateReviewCommand) error {
	var details []errors.ValidationDetail

	if !domain.ValidRating(cmd.Rating) {
		details = append(details, errors.ValidationDetail{
			Field:   "rating",
			Message: fmt.Sprintf("rating must be between %d and %d", domain.MinRating, domain.MaxRating),
		})
	}

	switch n := domain.CommentLength(cmd.Comment); {
	case n == 0:
		details = append(details, errors.ValidationDetail{Field: "comment", Message: "comment is required"})
	case n > domain.MaxCommentLength:
		details = append(details, errors.ValidationDetail{
			Field:   "comment",
			Message: fmt.Sprintf("comment must be at most %d characters", domain.MaxCommentLength),
		})
	}

	if len(details) > 0 {
		return errors.NewValidationError("validation failed", details...)
	}

	return nil
}
