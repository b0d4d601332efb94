package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cinefriends/backend/internal/db"
	"github.com/cinefriends/backend/internal/metrics"
	"github.com/cinefriends/backend/internal/models"
)

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = models.ErrNotFound
	// ErrConflict indicates the attempted write would violate a uniqueness constraint.
	ErrConflict = models.ErrDuplicate
	// ErrValidation indicates the input was rejected before or by the store.
	ErrValidation = models.ErrValidation
	// ErrSelfReference indicates a relation between a user and themselves.
	ErrSelfReference = models.ErrSelfReference
)

// classify maps driver errors onto the domain sentinels. Errors that already carry a
// sentinel pass through; anything else becomes a StoreError.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if models.IsDomainError(err) {
		return err
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%s: %w", op, ErrConflict)
		case "23503":
			return fmt.Errorf("%s: %w", op, ErrNotFound)
		case "23514":
			return fmt.Errorf("%s: %w: %s", op, ErrValidation, pgErr.ConstraintName)
		}
	}

	return &models.StoreError{Op: op, Err: err}
}

// track records the duration and outcome of a repository call. Use with a named error
// return: defer track("op", time.Now(), &err).
func track(op string, start time.Time, errp *error) {
	metrics.RecordStoreOperation(op, time.Since(start), *errp)
}

func withConn(ctx context.Context, pool db.Pool, fn func(conn *pgxpool.Conn) error) error {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return &models.StoreError{Op: "acquire connection", Err: err}
	}
	defer conn.Release()

	return fn(conn)
}

// inTx runs fn in a transaction and classifies whatever comes back.
func inTx(ctx context.Context, pool db.Pool, op string, fn func(tx pgx.Tx) error) error {
	return classify(op, db.InTx(ctx, pool, fn))
}
