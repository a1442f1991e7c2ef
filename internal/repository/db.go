package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"
)

type scanner interface {
	Scan(dest ...any) error
}

// Querier is implemented by both *sql.DB and *sql.Tx, so read helpers can run
// inside a settlement transaction or standalone.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const uniqueViolation = "23505"

func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != uniqueViolation {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}

// dateParam renders a calendar date for DATE columns without any zone offset.
func dateParam(t time.Time) string {
	return t.Format(time.DateOnly)
}

func nullableDateParam(t *time.Time) any {
	if t == nil {
		return nil
	}
	return dateParam(*t)
}
