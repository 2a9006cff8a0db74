package leads

import (
	"errors"
	"strings"
)

// ErrValidation is matched by every ValidationError.
var ErrValidation = errors.New("leads: invalid submission")

// ValidationError reports missing or malformed submission fields. It never
// reaches the CRM or voice clients.
type ValidationError struct {
	Fields  []string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "invalid fields: " + strings.Join(e.Fields, ", ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
