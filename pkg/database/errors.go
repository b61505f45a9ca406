package database

import (
	stderrors "errors"
	"strings"

	"github.com/lib/pq"
	"github.com/pantryhub/pantry-backend/pkg/errors"
)

// UniqueViolation is the SQLSTATE for unique constraint violations.
const UniqueViolation = "23505"

// IsUniqueViolation reports whether err is a unique-constraint failure,
// optionally restricted to a constraint whose name contains one of names.
func IsUniqueViolation(err error, names ...string) bool {
	var pqErr *pq.Error
	if !stderrors.As(err, &pqErr) || pqErr.Code != UniqueViolation {
		return false
	}
	if len(names) == 0 {
		return true
	}
	for _, name := range names {
		if strings.Contains(pqErr.Constraint, name) {
			return true
		}
	}
	return false
}

// MapPQError converts a PostgreSQL error to an AppError with meaningful messages.
// Returns nil if the error is not a pq.Error.
func MapPQError(err error) *errors.AppError {
	var pqErr *pq.Error
	if !stderrors.As(err, &pqErr) {
		return nil
	}

	switch pqErr.Code {
	// Check constraint violation (23514)
	case "23514":
		return mapCheckConstraint(pqErr)

	// Unique constraint violation (23505)
	case UniqueViolation:
		return errors.Conflict(formatConstraintMessage(pqErr))

	// Foreign key violation (23503)
	case "23503":
		return errors.BadRequest("referenced record does not exist")

	// Not null violation (23502)
	case "23502":
		col := pqErr.Column
		if col == "" {
			col = "required field"
		}
		return errors.Validation(map[string]string{
			col: "must not be empty",
		})

	default:
		return nil
	}
}

// mapCheckConstraint maps specific CHECK constraint names to user-friendly messages.
func mapCheckConstraint(pqErr *pq.Error) *errors.AppError {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "quantity_non_negative"):
		return errors.Validation(map[string]string{
			"quantity": "must not be negative",
		})

	case strings.Contains(constraint, "unit_valid"):
		return errors.Validation(map[string]string{
			"unit": "must be one of: lbs, kg, oz, units",
		})

	case strings.Contains(constraint, "action_valid"):
		return errors.Validation(map[string]string{
			"action": "must be one of: added, updated, deleted, distributed",
		})

	case strings.Contains(constraint, "reason_valid"):
		return errors.Validation(map[string]string{
			"reason": "must be one of: individual, family, emergency, expired, damaged, other",
		})

	default:
		return errors.BadRequest("data validation failed: " + constraint)
	}
}

// formatConstraintMessage creates a user-friendly message for unique constraint violations.
func formatConstraintMessage(pqErr *pq.Error) string {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "stock_batches_lot"):
		return "a batch with this barcode and expiration date already exists"
	case strings.Contains(constraint, "barcode_cache"):
		return "this barcode is already registered"
	default:
		return "a record with these values already exists"
	}
}
