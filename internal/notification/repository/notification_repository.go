package repository

import (
	"context"
	"database/sql"
	"fmt"

	"gigmarket/internal/domain"
	"gigmarket/internal/errors"
)

const notificationColumns = `id, user_id, sender_id, request_id, type, content, payload,
		       status, is_read, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

type MySQLNotificationRepository struct {
	db *sql.DB
}

func NewMySQLNotificationRepository(db *sql.DB) *MySQLNotificationRepository {
	return &MySQLNotificationRepository{db: db}
}

func (r *MySQLNotificationRepository) Insert(ctx context.Context, tx *sql.Tx, n domain.Notification) (uint, error) {
	payload, err := domain.EncodePayload(n.Payload)
	if err != nil {
		return 0, err
	}

	// JSON columns reject binary-charset parameters, so payload goes in as text.
	query := `
		INSERT INTO notification (user_id, sender_id, request_id, type, content, payload, status, is_read)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := tx.ExecContext(ctx, query,
		n.UserID, n.SenderID, n.RequestID, n.Type, n.Content, string(payload),
		nullableStatus(n.Status), n.IsRead,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting notification: %w", err)
	}

	lastInsertID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting last insert id: %w", err)
	}

	return uint(lastInsertID), nil
}

func (r *MySQLNotificationRepository) InsertHistory(ctx context.Context, tx *sql.Tx, h domain.NotificationHistory) error {
	query := `
		INSERT INTO notification_history (notification_id, user_id, type, content, status, is_read, action)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := tx.ExecContext(ctx, query,
		h.NotificationID, h.UserID, h.Type, h.Content, nullableStatus(h.Status), h.IsRead, h.Action,
	)
	if err != nil {
		return fmt.Errorf("inserting notification history: %w", err)
	}

	return nil
}

func (r *MySQLNotificationRepository) FindByID(ctx context.Context, id uint) (*domain.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notification WHERE id = ?`

	n, err := scanNotification(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError(fmt.Sprintf("notification with id %d not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("querying notification by id: %w", err)
	}
	return n, nil
}

func (r *MySQLNotificationRepository) FindByIDForUpdate(ctx context.Context, tx *sql.Tx, id uint) (*domain.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notification WHERE id = ? FOR UPDATE`

	n, err := scanNotification(tx.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError(fmt.Sprintf("notification with id %d not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("querying notification for update: %w", err)
	}

	return n, nil
}

// FindByRequestIDForUpdate locks every copy of a promotion request.
func (r *MySQLNotificationRepository) FindByRequestIDForUpdate(ctx context.Context, tx *sql.Tx, requestID string) ([]domain.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notification WHERE request_id = ? ORDER BY id FOR UPDATE`

	rows, err := tx.QueryContext(ctx, query, requestID)
	if err != nil {
		return nil, fmt.Errorf("querying notifications by request: %w", err)
	}
	defer rows.Close()

	return collect(rows)
}

// MarkRead flips is_read once. A notification that is already read yields a
// ConflictError.
func (r *MySQLNotificationRepository) MarkRead(ctx context.Context, tx *sql.Tx, id uint) error {
	query := `UPDATE notification SET is_read = 1 WHERE id = ? AND is_read = 0`

	result, err := tx.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("marking notification read: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return errors.NewConflictError(fmt.Sprintf("notification %d is already read", id))
	}

	return nil
}

// Resolve moves a pending notification to status. Anything not pending any
// more yields a ConflictError.
func (r *MySQLNotificationRepository) Resolve(ctx context.Context, tx *sql.Tx, id uint, status domain.NotificationStatus) error {
	query := `UPDATE notification SET status = ? WHERE id = ? AND status = ?`

	result, err := tx.ExecContext(ctx, query, status, id, domain.NotificationStatusPending)
	if err != nil {
		return fmt.Errorf("resolving notification: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return errors.NewConflictError(fmt.Sprintf("notification %d is already resolved", id))
	}

	return nil
}

// ExistsPendingRequest reports whether senderID has an unresolved request of
// type t addressed to anyone.
func (r *MySQLNotificationRepository) ExistsPendingRequest(ctx context.Context, tx *sql.Tx, senderID uint, t domain.NotificationType) (bool, error) {
	query := `
		SELECT COUNT(*)
		FROM notification
		WHERE sender_id = ?
		  AND type = ?
		  AND status = ?
	`

	var count int
	err := tx.QueryRowContext(ctx, query, senderID, t, domain.NotificationStatusPending).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("counting pending requests: %w", err)
	}

	return count > 0, nil
}

// ListByUser returns the addressee's notifications, newest first.
func (r *MySQLNotificationRepository) ListByUser(ctx context.Context, userID uint, limit int) ([]domain.Notification, error) {
	query := `SELECT ` + notificationColumns + `
		FROM notification
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying notifications: %w", err)
	}
	defer rows.Close()

	return collect(rows)
}

func (r *MySQLNotificationRepository) CountUnread(ctx context.Context, userID uint) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notification WHERE user_id = ? AND is_read = 0`, userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting unread notifications: %w", err)
	}

	return count, nil
}

func (r *MySQLNotificationRepository) ListHistory(ctx context.Context, notificationID uint) ([]domain.NotificationHistory, error) {
	query := `
		SELECT id, notification_id, user_id, type, content, COALESCE(status, ''), is_read, action, recorded_at
		FROM notification_history
		WHERE notification_id = ?
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query, notificationID)
	if err != nil {
		return nil, fmt.Errorf("querying notification history: %w", err)
	}
	defer rows.Close()

	var history []domain.NotificationHistory
	for rows.Next() {
		var h domain.NotificationHistory
		err := rows.Scan(
			&h.ID, &h.NotificationID, &h.UserID, &h.Type, &h.Content, &h.Status,
			&h.IsRead, &h.Action, &h.RecordedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning notification history row: %w", err)
		}
		history = append(history, h)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating notification history rows: %w", err)
	}

	return history, nil
}

func collect(rows *sql.Rows) ([]domain.Notification, error) {
	var notifications []domain.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning notification row: %w", err)
		}
		notifications = append(notifications, *n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating notification rows: %w", err)
	}

	return notifications, nil
}

func scanNotification(row rowScanner) (*domain.Notification, error) {
	var (
		n         domain.Notification
		senderID  sql.NullInt64
		requestID sql.NullString
		status    sql.NullString
		payload   []byte
	)
	err := row.Scan(
		&n.ID, &n.UserID, &senderID, &requestID, &n.Type, &n.Content, &payload,
		&status, &n.IsRead, &n.CreatedAt, &n.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if senderID.Valid {
		id := uint(senderID.Int64)
		n.SenderID = &id
	}
	if requestID.Valid {
		n.RequestID = &requestID.String
	}
	n.Status = domain.NotificationStatus(status.String)

	n.Payload, err = domain.DecodePayload(payload)
	if err != nil {
		return nil, fmt.Errorf("notification %d: %w", n.ID, err)
	}

	return &n, nil
}

func nullableStatus(s domain.NotificationStatus) sql.NullString {
	return sql.NullString{String: string(s), Valid: s != domain.NotificationStatusNone}
}
