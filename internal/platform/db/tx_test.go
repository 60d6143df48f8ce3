package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func pgErr(code, constraint string) error {
	return &pgconn.PgError{Code: code, ConstraintName: constraint}
}

func TestIsSerializationFailure(t *testing.T) {
	require.True(t, IsSerializationFailure(pgErr("40001", "")))
	require.True(t, IsSerializationFailure(pgErr("40P01", "")))
	require.True(t, IsSerializationFailure(fmt.Errorf("allocate: %w", pgErr("40001", ""))))
	require.False(t, IsSerializationFailure(pgErr("23505", "batches_barcode_key")))
	require.False(t, IsSerializationFailure(errors.New("connection reset")))
	require.False(t, IsSerializationFailure(nil))
}

func TestIsUniqueViolation(t *testing.T) {
	err := pgErr("23505", "bols_bol_number_key")
	require.True(t, IsUniqueViolation(err, "bols_bol_number_key"))
	require.True(t, IsUniqueViolation(err, ""))
	require.True(t, IsUniqueViolation(fmt.Errorf("insert: %w", err), "bols_bol_number_key"))
	require.False(t, IsUniqueViolation(err, "batches_barcode_key"))
	require.False(t, IsUniqueViolation(pgErr("23503", ""), ""))
	require.False(t, IsUniqueViolation(errors.New("not a pg error"), ""))
}

// A 23505 from one constraint must not satisfy a check scoped to another,
// so callers with several unique indexes on a table can report the right
// duplicate.
func TestIsUniqueViolationScopesByConstraint(t *testing.T) {
	codeCollision := pgErr("23505", "customers_customer_code_key")
	require.False(t, IsUniqueViolation(codeCollision, "customers_customer_name_key"))
	require.True(t, IsUniqueViolation(pgErr("23505", "customers_customer_name_key"), "customers_customer_name_key"))
}

func TestIsForeignKeyViolation(t *testing.T) {
	require.True(t, IsForeignKeyViolation(pgErr("23503", "bol_items_batch_id_fkey")))
	require.False(t, IsForeignKeyViolation(pgErr("23505", "")))
	require.False(t, IsForeignKeyViolation(nil))
}

func TestRetryConflictExhaustsBudget(t *testing.T) {
	calls := 0
	conflict := pgErr("40001", "")
	err := retryConflict(func() error {
		calls++
		return conflict
	})
	require.Equal(t, RetryBudget, calls)
	require.ErrorIs(t, err, conflict)
}

func TestRetryConflictStopsOnSuccess(t *testing.T) {
	calls := 0
	err := retryConflict(func() error {
		calls++
		if calls == 1 {
			return pgErr("40P01", "")
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 2, calls)
}

func TestRetryConflictReturnsOtherErrorsImmediately(t *testing.T) {
	calls := 0
	boom := errors.New("column does not exist")
	err := retryConflict(func() error {
		calls++
		return boom
	})
	require.Equal(t, 1, calls)
	require.ErrorIs(t, err, boom)
}
