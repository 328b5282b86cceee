package repository

import (
	"context"
	"database/sql"
	"fmt"

	"gigmarket/internal/domain"
	"gigmarket/internal/errors"
	"gigmarket/internal/infrastructure/mysql"
)

type MySQLReviewRepository struct {
	db *sql.DB
}

func NewMySQLReviewRepository(db *sql.DB) *MySQLReviewRepository {
	return &MySQLReviewRepository{db: db}
}

// Insert stores the review. The unique index on order_id turns a concurrent
// second review into an InvalidOperationError.
func (r *MySQLReviewRepository) Insert(ctx context.Context, tx *sql.Tx, review domain.Review) (uint, error) {
	query := `INSERT INTO reviews (order_id, reviewer_id, rating, comment) VALUES (?, ?, ?, ?)`

	result, err := tx.ExecContext(ctx, query, review.OrderID, review.ReviewerID, review.Rating, review.Comment)
	if mysql.IsDuplicateKeyError(err) {
		return 0, errors.NewInvalidOperationError("order already reviewed")
	}
	if err != nil {
		return 0, fmt.Errorf("inserting review: %w", err)
	}

	lastInsertID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting last insert id: %w", err)
	}

	return uint(lastInsertID), nil
}

func (r *MySQLReviewRepository) ExistsForOrder(ctx context.Context, orderID uint) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reviews WHERE order_id = ?`, orderID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("counting reviews: %w", err)
	}
	return count > 0, nil
}

// ExistsForOrderTx is ExistsForOrder inside tx, where the caller already
// holds the order row lock.
func (r *MySQLReviewRepository) ExistsForOrderTx(ctx context.Context, tx *sql.Tx, orderID uint) (bool, error) {
	var count int
	err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM reviews WHERE order_id = ?`, orderID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("counting reviews: %w", err)
	}
	return count > 0, nil
}

// ListByFreelancer returns the reviews left on orders fulfilled by
// freelancerID, newest first.
func (r *MySQLReviewRepository) ListByFreelancer(ctx context.Context, freelancerID uint) ([]domain.Review, error) {
	query := `
		SELECT r.id, r.order_id, r.reviewer_id, r.rating, r.comment, r.created_at
		FROM reviews r
		JOIN orders o ON o.id = r.order_id
		WHERE o.freelancer_id = ?
		ORDER BY r.created_at DESC, r.id DESC
	`

	rows, err := r.db.QueryContext(ctx, query, freelancerID)
	if err != nil {
		return nil, fmt.Errorf("querying reviews: %w", err)
	}
	defer rows.Close()

	var reviews []domain.Review
	for rows.Next() {
		var rv domain.Review
		err := rows.Scan(&rv.ID, &rv.OrderID, &rv.ReviewerID, &rv.Rating, &rv.Comment, &rv.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning review row: %w", err)
		}
		reviews = append(reviews, rv)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating review rows: %w", err)
	}

	return reviews, nil
}
