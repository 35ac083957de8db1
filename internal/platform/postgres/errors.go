package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/phrazzld/goalforge/internal/store"
)

// SQLSTATE codes the stores react to.
const (
	// uniqueViolationCode is unique_violation, mapped to store.ErrDuplicate.
	uniqueViolationCode = "23505"
	// foreignKeyViolationCode is foreign_key_violation, mapped to
	// store.ErrInvalidEntity.
	foreignKeyViolationCode = "23503"
	// checkViolationCode is check_violation, mapped to store.ErrInvalidEntity.
	checkViolationCode = "23514"
	// notNullViolationCode is not_null_violation, mapped to
	// store.ErrInvalidEntity.
	notNullViolationCode = "23502"
	// serializationFailureCode is serialization_failure, mapped to
	// store.ErrConflict.
	serializationFailureCode = "40001"
	// deadlockDetectedCode is deadlock_detected, mapped to store.ErrConflict.
	deadlockDetectedCode = "40P01"
)

// codeErrors maps each SQLSTATE code to its store sentinel and a short
// description for the wrapped message.
var codeErrors = map[string]struct {
	sentinel error
	what     string
}{
	uniqueViolationCode:      {store.ErrDuplicate, "unique violation"},
	foreignKeyViolationCode:  {store.ErrInvalidEntity, "foreign key violation"},
	checkViolationCode:       {store.ErrInvalidEntity, "check violation"},
	notNullViolationCode:     {store.ErrInvalidEntity, "not null violation"},
	serializationFailureCode: {store.ErrConflict, "serialization failure"},
	deadlockDetectedCode:     {store.ErrConflict, "deadlock"},
}

// MapError translates sql.ErrNoRows and known SQLSTATE codes into store
// sentinels. Anything else is returned unchanged.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %v", store.ErrNotFound, err)
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	mapped, ok := codeErrors[pgErr.Code]
	if !ok {
		return err
	}
	detail := pgErr.ConstraintName
	if detail == "" {
		detail = pgErr.ColumnName
	}
	if detail != "" {
		return fmt.Errorf("%w: %s (%s): %v", mapped.sentinel, mapped.what, detail, err)
	}
	return fmt.Errorf("%w: %s: %v", mapped.sentinel, mapped.what, err)
}

// IsUniqueViolation reports whether err carries SQLSTATE 23505.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}

// MapUniqueViolation maps a unique violation to specific and anything else
// through MapError.
func MapUniqueViolation(err error, specific error) error {
	if IsUniqueViolation(err) {
		return fmt.Errorf("%w: %v", specific, err)
	}
	return MapError(err)
}

// CheckRowsAffected returns notFound (store.ErrNotFound when nil) if an
// UPDATE or DELETE matched no rows.
func CheckRowsAffected(result sql.Result, notFound error) error {
	if result == nil {
		return errors.New("nil result")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows > 0 {
		return nil
	}
	if notFound == nil {
		return store.ErrNotFound
	}
	return notFound
}
