package persistence

import (
	"errors"
	"strings"

	"github.com/erp/stockledger/internal/domain/shared"
	"gorm.io/gorm"
)

// isUniqueViolation reports whether err came from a unique index.
// TranslateError covers connections opened by NewDatabase; the string checks cover
// handles opened elsewhere (tests, sqlmock).
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "SQLSTATE 23505")
}

// isValueTooLong reports whether a string did not fit its varchar column
func isValueTooLong(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "value too long for type") ||
		strings.Contains(msg, "SQLSTATE 22001")
}

// translateNotFound maps gorm.ErrRecordNotFound to shared.ErrNotFound
func translateNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return shared.ErrNotFound
	}
	return err
}

// translateCreate maps unique violations on insert to an ALREADY_EXISTS domain
// error and oversized values to INVALID_INPUT
func translateCreate(err error, message string) error {
	switch {
	case isUniqueViolation(err):
		return shared.NewDomainError(shared.CodeAlreadyExists, message)
	case isValueTooLong(err):
		return shared.NewDomainError(shared.CodeInvalidInput, "Value exceeds the column length")
	}
	return err
}

// conflictError is returned when a compare-and-swap update matched no row
func conflictError(entity string) error {
	return shared.NewDomainErrorf(shared.CodeConcurrencyConflict, "%s was modified by another transaction", entity)
}
