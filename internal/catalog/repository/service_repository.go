package repository

import (
	"context"
	"database/sql"
	"fmt"

	"gigmarket/internal/domain"
	"gigmarket/internal/errors"
)

const serviceColumns = `id, user_id, title, COALESCE(description, ''), price, currency_code,
		       delivery_days, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

type MySQLServiceRepository struct {
	db *sql.DB
}

func NewMySQLServiceRepository(db *sql.DB) *MySQLServiceRepository {
	return &MySQLServiceRepository{db: db}
}

// FindByIDForUpdate locks the service row so that concurrent orders for the
// same service check for active duplicates one at a time.
func (r *MySQLServiceRepository) FindByIDForUpdate(ctx context.Context, tx *sql.Tx, id uint) (*domain.Service, error) {
	query := `SELECT ` + serviceColumns + ` FROM services WHERE id = ? FOR UPDATE`

	svc, err := scanService(tx.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError(fmt.Sprintf("service with id %d not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("querying service for update: %w", err)
	}

	return svc, nil
}

func scanService(row rowScanner) (*domain.Service, error) {
	var s domain.Service
	err := row.Scan(
		&s.ID, &s.OwnerID, &s.Title, &s.Description, &s.Price, &s.CurrencyCode,
		&s.DeliveryDays, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
