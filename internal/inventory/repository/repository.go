package repository

import (
	stderrors "errors"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/pantryhub/pantry-backend/pkg/database"
	"github.com/pantryhub/pantry-backend/pkg/errors"
)

// ErrStaleVersion marks a compare-and-swap write that lost to a concurrent change
var ErrStaleVersion = stderrors.New("stale batch version")

// psql builds PostgreSQL ($n) placeholders
var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// StaleVersion is returned when a batch changed between read and write
func StaleVersion() *errors.AppError {
	return errors.Conflict("batch was modified concurrently").WithCause(ErrStaleVersion)
}

// validID reports whether id can name a row. Row ids are UUIDs, so any other
// string cannot match and is answered with NotFound before reaching the
// database.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// storageError keeps AppErrors raised inside a transaction, maps known
// PostgreSQL failures and hides everything else behind a storage error.
func storageError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := errors.AsApp(err); ok {
		return err
	}
	if appErr := database.MapPQError(err); appErr != nil {
		return appErr.WithCause(err)
	}
	return errors.Storage(err)
}
