package mysql

import (
	"context"
	"database/sql"
	"math/rand"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	apperrors "gigmarket/internal/errors"
)

const tracerName = "gigmarket/mysql"

type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// RetryObserver is told about every transaction that is re-run after a
// deadlock and every transaction that finally fails.
type RetryObserver interface {
	TransactionRetried(name string)
	TransactionFailed(name string)
}

type nopObserver struct{}

func (nopObserver) TransactionRetried(string) {}
func (nopObserver) TransactionFailed(string)  {}

// Transactor runs a unit of work inside one database transaction: begin, run,
// commit, and roll back on every other exit path.
type Transactor struct {
	db          TxBeginner
	logger      *zap.Logger
	observer    RetryObserver
	timeout     time.Duration
	maxAttempts int
	backoffs    []time.Duration
}

func NewTransactor(db TxBeginner, logger *zap.Logger, timeout time.Duration, maxAttempts int) *Transactor {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Transactor{
		db:          db,
		logger:      logger,
		observer:    nopObserver{},
		timeout:     timeout,
		maxAttempts: maxAttempts,
		backoffs:    []time.Duration{0, 100 * time.Millisecond, 200 * time.Millisecond},
	}
}

func (t *Transactor) WithObserver(o RetryObserver) *Transactor {
	if o != nil {
		t.observer = o
	}
	return t
}

// WithTransaction runs fn in a REPEATABLE READ transaction. A deadlock or lock
// wait timeout re-runs fn from scratch with backoff. Errors that are not
// domain errors come back as Unavailable.
func (t *Transactor) WithTransaction(ctx context.Context, name string, fn func(ctx context.Context, tx *sql.Tx) error) error {
	var err error
	for attempt := 1; attempt <= t.maxAttempts; attempt++ {
		err = t.runOnce(ctx, name, attempt, fn)
		if err == nil {
			return nil
		}

		if !IsDeadlockError(err) {
			break
		}

		if attempt < t.maxAttempts {
			t.observer.TransactionRetried(name)
			t.logger.Warn("deadlock detected, retrying", zap.String("tx", name), zap.Int("attempt", attempt), zap.Int("maxAttempts", t.maxAttempts))
			if waitErr := t.wait(ctx, attempt); waitErr != nil {
				err = waitErr
				break
			}
			continue
		}

		t.observer.TransactionFailed(name)
		return apperrors.NewUnavailableError("max retries exceeded", err)
	}

	if _, unavailable := apperrors.IsUnavailableError(err); unavailable || !apperrors.IsDomainError(err) {
		t.observer.TransactionFailed(name)
		t.logger.Error("transaction failed", zap.String("tx", name), zap.Error(err))
	}
	return apperrors.Classify(name, err)
}

func (t *Transactor) runOnce(ctx context.Context, name string, attempt int, fn func(ctx context.Context, tx *sql.Tx) error) (err error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "tx."+name)
	span.SetAttributes(attribute.Int("tx.attempt", attempt))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	txCtx := ctx
	if t.timeout > 0 {
		var cancel context.CancelFunc
		txCtx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	tx, err := t.db.BeginTx(txCtx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead})
	if err != nil {
		return apperrors.NewUnavailableError("beginning transaction", err)
	}
	// Rollback after Commit is a no-op.
	defer tx.Rollback()

	if err = fn(txCtx, tx); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return apperrors.NewUnavailableError("committing transaction", err)
	}
	return nil
}

func (t *Transactor) wait(ctx context.Context, attempt int) error {
	base := t.backoffs[len(t.backoffs)-1]
	if attempt < len(t.backoffs) {
		base = t.backoffs[attempt]
	}
	if base == 0 {
		return nil
	}
	// ±20% jitter
	delay := time.Duration(float64(base) * (0.8 + rand.Float64()*0.4))

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return apperrors.NewUnavailableError("waiting to retry transaction", ctx.Err())
	case <-timer.C:
		return nil
	}
}
