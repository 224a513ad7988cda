package database

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound is returned when a record is not found.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateKey is returned when a unique constraint is violated.
	ErrDuplicateKey = errors.New("duplicate key value")

	// ErrCheckViolation is returned when a CHECK constraint rejects a row.
	ErrCheckViolation = errors.New("check constraint violation")

	// ErrNotNullViolation is returned when a NOT NULL column receives NULL.
	ErrNotNullViolation = errors.New("not-null violation")

	// ErrForeignKeyViolation is returned when a foreign key constraint is violated.
	ErrForeignKeyViolation = errors.New("foreign key violation")

	// ErrUndefinedTable is returned when a referenced table does not exist.
	ErrUndefinedTable = errors.New("undefined table")

	// ErrNoConnection is returned when no database connection is available.
	ErrNoConnection = errors.New("no database connection")
)

// PostgreSQL SQLSTATE codes mapped to sentinel errors.
const (
	codeNotNullViolation    = "23502"
	codeForeignKeyViolation = "23503"
	codeUniqueViolation     = "23505"
	codeCheckViolation      = "23514"
	codeUndefinedTable      = "42P01"
)

// QueryError represents a query execution error.
type QueryError struct {
	Query string
	Err   error
}

// Error implements the error interface.
func (e *QueryError) Error() string {
	return fmt.Sprintf("query error: %v\nQuery: %s", e.Err, e.Query)
}

// Unwrap returns the underlying error.
func (e *QueryError) Unwrap() error {
	return e.Err
}

// CopyError represents a failure while streaming a file into a table.
type CopyError struct {
	Table string
	File  string
	Err   error
}

// Error implements the error interface.
func (e *CopyError) Error() string {
	return fmt.Sprintf("copy error: %v (table %s, file %s)", e.Err, e.Table, e.File)
}

// Unwrap returns the underlying error.
func (e *CopyError) Unwrap() error {
	return e.Err
}

// Classify maps a PostgreSQL error onto one of the sentinel errors so
// callers can branch with errors.Is. Errors that are not constraint
// related pass through unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case codeUniqueViolation:
		return fmt.Errorf("%w: %s: %w", ErrDuplicateKey, pgErr.ConstraintName, err)
	case codeCheckViolation:
		return fmt.Errorf("%w: %s: %w", ErrCheckViolation, pgErr.ConstraintName, err)
	case codeNotNullViolation:
		return fmt.Errorf("%w: column %s: %w", ErrNotNullViolation, pgErr.ColumnName, err)
	case codeForeignKeyViolation:
		return fmt.Errorf("%w: %s: %w", ErrForeignKeyViolation, pgErr.ConstraintName, err)
	case codeUndefinedTable:
		return fmt.Errorf("%w: %w", ErrUndefinedTable, err)
	default:
		return err
	}
}
