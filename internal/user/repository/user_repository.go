package repository

import (
	"context"
	"database/sql"
	"fmt"

	"gigmarket/internal/domain"
	"gigmarket/internal/errors"
)

const userColumns = `id, email, name, role, is_admin, is_active, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

type MySQLUserRepository struct {
	db *sql.DB
}

func NewMySQLUserRepository(db *sql.DB) *MySQLUserRepository {
	return &MySQLUserRepository{db: db}
}

func (r *MySQLUserRepository) FindByID(ctx context.Context, id uint) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError(fmt.Sprintf("user with id %d not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("querying user by id: %w", err)
	}

	return user, nil
}

// FindByIDForUpdate locks the user row for the rest of tx. Promotion requests
// from the same user serialize on it.
func (r *MySQLUserRepository) FindByIDForUpdate(ctx context.Context, tx *sql.Tx, id uint) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ? FOR UPDATE`

	user, err := scanUser(tx.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError(fmt.Sprintf("user with id %d not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("querying user for update: %w", err)
	}

	return user, nil
}

func (r *MySQLUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = ?`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, email))
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError(fmt.Sprintf("user with email %s not found", email))
	}
	if err != nil {
		return nil, fmt.Errorf("querying user by email: %w", err)
	}

	return user, nil
}

// ListAdmins returns every active admin, oldest first.
func (r *MySQLUserRepository) ListAdmins(ctx context.Context, tx *sql.Tx) ([]domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE is_admin = 1 AND is_active = 1 ORDER BY id`

	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying admins: %w", err)
	}
	defer rows.Close()

	var admins []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning admin row: %w", err)
		}
		admins = append(admins, *u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating admin rows: %w", err)
	}

	return admins, nil
}

func (r *MySQLUserRepository) UpdateRole(ctx context.Context, tx *sql.Tx, id uint, role domain.Role) error {
	query := `UPDATE users SET role = ? WHERE id = ?`

	result, err := tx.ExecContext(ctx, query, role, id)
	if err != nil {
		return fmt.Errorf("updating user role: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}

	// MySQL reports 0 affected rows when the value is unchanged, so only a
	// missing row is an error here.
	if rowsAffected == 0 {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM users WHERE id = ?`, id).Scan(&exists)
		if err == sql.ErrNoRows {
			return errors.NewNotFoundError(fmt.Sprintf("user with id %d not found", id))
		}
		if err != nil {
			return fmt.Errorf("checking user existence: %w", err)
		}
	}

	return nil
}

func scanUser(row rowScanner) (*domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID, &u.Email, &u.Name, &u.Role, &u.IsAdmin, &u.IsActive,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}
