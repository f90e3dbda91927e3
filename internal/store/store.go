// Package store reads catalogs and writes price records.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"

	"github.com/guarzo/tcgcomps/internal/retry"
	"github.com/guarzo/tcgcomps/internal/schema"
)

// ErrPersistence marks a write that failed for a reason retrying could not fix.
var ErrPersistence = errors.New("persistence failed")

// Store is the database side of a run.
type Store struct {
	db     schema.Querier
	policy retry.Policy
	logger logrus.FieldLogger
}

// New creates a store. policy's Retryable predicate is replaced with one
// that only retries known-transient PostgreSQL failures.
func New(db schema.Querier, policy retry.Policy, logger logrus.FieldLogger) *Store {
	policy.Retryable = IsTransient
	return &Store{db: db, policy: policy, logger: logger}
}

// transientCodes are SQLSTATEs worth another attempt outside class 08.
var transientCodes = map[string]bool{
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
	"53300": true, // too_many_connections
	"57P01": true, // admin_shutdown
	"57P02": true, // crash_shutdown
	"57P03": true, // cannot_connect_now
}

// IsTransient reports whether a database error is likely to succeed on retry.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// class 08: connection exceptions
		return len(pgErr.Code) == 5 && pgErr.Code[:2] == "08" || transientCodes[pgErr.Code]
	}
	return pgconn.SafeToRetry(err) || pgconn.Timeout(err) && !errors.Is(err, context.Canceled)
}

// exec runs one statement under the retry policy.
func (s *Store) exec(ctx context.Context, op, sql string, args ...any) (pgconn.CommandTag, error) {
	var tag pgconn.CommandTag
	err := s.policy.Do(ctx, func(ctx context.Context) error {
		var err error
		tag, err = s.db.Exec(ctx, sql, args...)
		return err
	})
	switch {
	case err == nil:
		return tag, nil
	case ctx.Err() != nil:
		// item deadline or stop request, not a database failure
		return tag, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
		return tag, fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
	}
}
