package repository

import (
	"context"
	"database/sql"
	"fmt"

	"gigmarket/internal/domain"
	"gigmarket/internal/errors"
	"gigmarket/internal/infrastructure/mysql"
)

const orderColumns = `id, client_id, freelancer_id, services_id, total_price, currency_code,
		       status, ordered_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

type MySQLOrderRepository struct {
	db *sql.DB
}

func NewMySQLOrderRepository(db *sql.DB) *MySQLOrderRepository {
	return &MySQLOrderRepository{db: db}
}

func (r *MySQLOrderRepository) FindByID(ctx context.Context, id uint) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = ?`

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError(fmt.Sprintf("order with id %d not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("querying order by id: %w", err)
	}

	return order, nil
}

// FindByIDForUpdate reads the persisted order and holds its row lock until tx
// ends.
func (r *MySQLOrderRepository) FindByIDForUpdate(ctx context.Context, tx *sql.Tx, id uint) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = ? FOR UPDATE`

	order, err := scanOrder(tx.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError(fmt.Sprintf("order with id %d not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("querying order for update: %w", err)
	}

	return order, nil
}

func (r *MySQLOrderRepository) Insert(ctx context.Context, tx *sql.Tx, order domain.Order) (uint, error) {
	query := `
		INSERT INTO orders (client_id, freelancer_id, services_id, total_price, currency_code, status)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := tx.ExecContext(ctx, query,
		order.ClientID, order.FreelancerID, order.ServiceID,
		order.TotalPrice, order.CurrencyCode, order.Status,
	)
	if mysql.IsForeignKeyError(err) {
		return 0, errors.NewNotFoundError(fmt.Sprintf("user with id %d not found", order.ClientID))
	}
	if err != nil {
		return 0, fmt.Errorf("inserting order: %w", err)
	}

	lastInsertID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting last insert id: %w", err)
	}

	return uint(lastInsertID), nil
}

// CompareAndSetStatus moves the order to `to` only if it is still in `from`.
// A lost race is a ConflictError.
func (r *MySQLOrderRepository) CompareAndSetStatus(ctx context.Context, tx *sql.Tx, id uint, from, to domain.OrderStatus) error {
	query := `UPDATE orders SET status = ? WHERE id = ? AND status = ?`

	result, err := tx.ExecContext(ctx, query, to, id, from)
	if err != nil {
		return fmt.Errorf("updating order status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return r.missedWrite(ctx, tx, id, from)
	}

	return nil
}

// DeleteIfStatus removes the order only while it is still in status.
func (r *MySQLOrderRepository) DeleteIfStatus(ctx context.Context, tx *sql.Tx, id uint, status domain.OrderStatus) error {
	query := `DELETE FROM orders WHERE id = ? AND status = ?`

	result, err := tx.ExecContext(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("deleting order: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return r.missedWrite(ctx, tx, id, status)
	}

	return nil
}

// ExistsActive reports whether the client already has a pending or
// in-progress order for the service.
func (r *MySQLOrderRepository) ExistsActive(ctx context.Context, tx *sql.Tx, clientID, serviceID uint) (bool, error) {
	query := `
		SELECT COUNT(*)
		FROM orders
		WHERE client_id = ?
		  AND services_id = ?
		  AND status IN (?, ?)
	`

	var count int
	err := tx.QueryRowContext(ctx, query, clientID, serviceID,
		domain.OrderStatusPending, domain.OrderStatusInProgress,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("counting active orders: %w", err)
	}

	return count > 0, nil
}

// ListByUser returns the orders where userID is either party, newest first.
func (r *MySQLOrderRepository) ListByUser(ctx context.Context, userID uint) ([]domain.Order, error) {
	query := `SELECT ` + orderColumns + `
		FROM orders
		WHERE client_id = ? OR freelancer_id = ?
		ORDER BY ordered_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("querying orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning order row: %w", err)
		}
		orders = append(orders, *o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating order rows: %w", err)
	}

	return orders, nil
}

func (r *MySQLOrderRepository) missedWrite(ctx context.Context, tx *sql.Tx, id uint, expected domain.OrderStatus) error {
	var current domain.OrderStatus
	err := tx.QueryRowContext(ctx, `SELECT status FROM orders WHERE id = ?`, id).Scan(&current)
	if err == sql.ErrNoRows {
		return errors.NewNotFoundError(fmt.Sprintf("order with id %d not found", id))
	}
	if err != nil {
		return fmt.Errorf("re-reading order status: %w", err)
	}
	return errors.NewConflictError(fmt.Sprintf("order %d is %s, expected %s", id, current, expected))
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var (
		o         domain.Order
		serviceID sql.NullInt64
	)
	err := row.Scan(
		&o.ID, &o.ClientID, &o.FreelancerID, &serviceID, &o.TotalPrice, &o.CurrencyCode,
		&o.Status, &o.OrderedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if serviceID.Valid {
		id := uint(serviceID.Int64)
		o.ServiceID = &id
	}
	return &o, nil
}
