package repository

import (
	"context"
	"database/sql"
	"fmt"

	"gigmarket/internal/domain"
	"gigmarket/internal/errors"
	"gigmarket/internal/infrastructure/mysql"
)

type MySQLDeliveryRepository struct {
	db *sql.DB
}

func NewMySQLDeliveryRepository(db *sql.DB) *MySQLDeliveryRepository {
	return &MySQLDeliveryRepository{db: db}
}

// Insert records the delivery. An order is delivered at most once.
func (r *MySQLDeliveryRepository) Insert(ctx context.Context, tx *sql.Tx, d domain.OrderDelivery) (uint, error) {
	query := `INSERT INTO order_deliveries (order_id, message, file_url) VALUES (?, ?, ?)`

	result, err := tx.ExecContext(ctx, query, d.OrderID, d.Message, d.FileURL)
	if mysql.IsDuplicateKeyError(err) {
		return 0, errors.NewConflictError(fmt.Sprintf("order %d already has a delivery", d.OrderID))
	}
	if err != nil {
		return 0, fmt.Errorf("inserting order delivery: %w", err)
	}

	lastInsertID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting last insert id: %w", err)
	}

	return uint(lastInsertID), nil
}

func (r *MySQLDeliveryRepository) FindByOrderID(ctx context.Context, orderID uint) (*domain.OrderDelivery, error) {
	query := `
		SELECT id, order_id, COALESCE(message, ''), file_url, delivered_at
		FROM order_deliveries
		WHERE order_id = ?
	`

	var d domain.OrderDelivery
	err := r.db.QueryRowContext(ctx, query, orderID).Scan(
		&d.ID, &d.OrderID, &d.Message, &d.FileURL, &d.DeliveredAt,
	)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError(fmt.Sprintf("order %d has no delivery", orderID))
	}
	if err != nil {
		return nil, fmt.Errorf("querying order delivery: %w", err)
	}

	return &d, nil
}
