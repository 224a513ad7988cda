package database

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{
			name: "unique violation",
			err:  &pgconn.PgError{Code: "23505", ConstraintName: "customer_email_key"},
			want: ErrDuplicateKey,
		},
		{
			name: "check violation",
			err:  &pgconn.PgError{Code: "23514", ConstraintName: "order_quantity_check"},
			want: ErrCheckViolation,
		},
		{
			name: "not null violation",
			err:  &pgconn.PgError{Code: "23502", ColumnName: "order_id"},
			want: ErrNotNullViolation,
		},
		{
			name: "foreign key violation",
			err:  &pgconn.PgError{Code: "23503", ConstraintName: "order_customer_fkey"},
			want: ErrForeignKeyViolation,
		},
		{
			name: "undefined table",
			err:  &pgconn.PgError{Code: "42P01"},
			want: ErrUndefinedTable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			if !errors.Is(got, tt.want) {
				t.Errorf("Classify() = %v, want errors.Is %v", got, tt.want)
			}
			// The original error stays reachable for detailed inspection.
			var pgErr *pgconn.PgError
			if !errors.As(got, &pgErr) {
				t.Errorf("Classify() lost the underlying pg error")
			}
		})
	}
}

func TestClassify_Wrapped(t *testing.T) {
	inner := &pgconn.PgError{Code: "23505", ConstraintName: "customer_email_key"}
	wrapped := fmt.Errorf("merge failed: %w", inner)

	if !errors.Is(Classify(wrapped), ErrDuplicateKey) {
		t.Errorf("Classify did not unwrap nested pg error")
	}
}

func TestClassify_Passthrough(t *testing.T) {
	if Classify(nil) != nil {
		t.Errorf("Classify(nil) should be nil")
	}

	plain := errors.New("connection reset")
	if got := Classify(plain); got != plain {
		t.Errorf("Classify() = %v, want unchanged %v", got, plain)
	}

	unknown := &pgconn.PgError{Code: "57014"}
	if got := Classify(unknown); got != error(unknown) {
		t.Errorf("unrelated pg error should pass through, got %v", got)
	}
}

func TestQueryError(t *testing.T) {
	inner := errors.New("boom")
	err := &QueryError{Query: "SELECT 1", Err: inner}

	if !errors.Is(err, inner) {
		t.Errorf("QueryError should unwrap to the inner error")
	}
}

func TestCopyError(t *testing.T) {
	inner := &pgconn.PgError{Code: "23514", ConstraintName: "order_quantity_check"}
	err := &CopyError{Table: `"raw"."order"`, File: "orders.csv", Err: Classify(inner)}

	if !errors.Is(err, ErrCheckViolation) {
		t.Errorf("CopyError should unwrap to the classified sentinel")
	}
}
