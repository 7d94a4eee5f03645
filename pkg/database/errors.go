package database

import (
	"strings"

	"github.com/barstock/barstock-backend/pkg/errors"
	"github.com/lib/pq"
)

// IsUniqueViolation reports whether err is a PostgreSQL unique constraint
// violation, optionally on the named constraint.
func IsUniqueViolation(err error, constraint string) bool {
	pqErr, ok := err.(*pq.Error)
	if !ok {
		return false
	}
	if pqErr.Code != "23505" {
		return false
	}
	return constraint == "" || strings.Contains(pqErr.Constraint, constraint)
}

// MapPQError converts a PostgreSQL error to an AppError with meaningful messages.
// Returns nil if the error is not a pq.Error.
func MapPQError(err error) *errors.AppError {
	pqErr, ok := err.(*pq.Error)
	if !ok {
		return nil
	}

	switch pqErr.Code {
	// Check constraint violation (23514)
	case "23514":
		return mapCheckConstraint(pqErr)

	// Unique constraint violation (23505)
	case "23505":
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
	case strings.Contains(constraint, "shape_valid"):
		return errors.Validation(map[string]string{
			"shape": "must be one of: round, hex, square",
		})

	case strings.Contains(constraint, "inspection_status_valid"):
		return errors.Validation(map[string]string{
			"inspection_status": "must be one of: pending, passed, failed",
		})

	case strings.Contains(constraint, "movement_type_valid"):
		return errors.Validation(map[string]string{
			"movement_type": "must be one of: in, out, return, adjustment",
		})

	case strings.Contains(constraint, "pieces_non_negative"), strings.Contains(constraint, "weight_non_negative"):
		return errors.InvalidState("operation would drive stock negative")

	default:
		return errors.BadRequest("data validation failed: " + constraint)
	}
}

// formatConstraintMessage creates a user-friendly message for unique constraint violations.
func formatConstraintMessage(pqErr *pq.Error) string {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "lot_number"):
		return "a lot with this lot number already exists"
	case strings.Contains(constraint, "identifier"):
		return "an item with this identifier already exists"
	case strings.Contains(constraint, "display_name"):
		return "a material with this name already exists"
	case strings.Contains(constraint, "alias"):
		return "this alias is already mapped to a material"
	default:
		return "a record with these values already exists"
	}
}
