package domain

import (
	"fmt"
	"strings"
)

// ValidationError is returned when user input fails required-field or shape checks.
// Nothing is written when it is returned.
type ValidationError struct {
	Message string
	Fields  []string
}

func NewValidationError(message string, fields ...string) *ValidationError {
	return &ValidationError{Message: message, Fields: fields}
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed: %s (%s)", e.Message, strings.Join(e.Fields, ", "))
}

// ExternalServiceError wraps a failure of a store, mail or blob collaborator.
type ExternalServiceError struct {
	Service string
	Op      string
	Err     error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s: %s failed: %v", e.Service, e.Op, e.Err)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

// SizeCapacityError refuses a product document whose serialized size is at or over the ceiling.
type SizeCapacityError struct {
	SizeKB  int
	LimitKB int
}

func (e *SizeCapacityError) Error() string {
	return fmt.Sprintf("product document is %dKB, limit is %dKB: remove some images", e.SizeKB, e.LimitKB)
}
