package timeline

import (
	"errors"
	"fmt"
)

var (
	ErrEntryNotFound           = errors.New("ledger entry not found for projection entry")
	ErrOccurrenceNotFound      = errors.New("month is not an occurrence of this subscription")
	ErrProjectionEntryNotFound = errors.New("occurrence has no stored projection entry")
	ErrPaymentNotFound         = errors.New("payment not found on this occurrence")
)

// ValidationError rejects a request before anything is written.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func IsValidationError(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsNotFound covers every lookup failure the engine reports.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrEntryNotFound) ||
		errors.Is(err, ErrOccurrenceNotFound) ||
		errors.Is(err, ErrProjectionEntryNotFound) ||
		errors.Is(err, ErrPaymentNotFound)
}
