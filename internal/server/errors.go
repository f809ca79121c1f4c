package server

import (
	"errors"
	"fmt"
)

// NotFoundError represents an error when a GATT resource is not found
type NotFoundError struct {
	Resource string // "service", "characteristic"
	UUID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.UUID)
}

// Is matches any NotFoundError for the same resource kind
func (e *NotFoundError) Is(target error) bool {
	t, ok := target.(*NotFoundError)
	if !ok {
		return false
	}
	if t.UUID == "" {
		return e.Resource == t.Resource
	}
	return *e == *t
}

// Sentinel errors for errors.Is comparisons
var (
	ErrServiceNotFound        = &NotFoundError{Resource: "service"}
	ErrCharacteristicNotFound = &NotFoundError{Resource: "characteristic"}

	ErrAlreadyExists    = errors.New("already exists")
	ErrServiceStarted   = errors.New("service already started")
	ErrNotPermitted     = errors.New("operation not permitted by characteristic permissions")
	ErrAlreadyBegun     = errors.New("server already started")
	ErrInvalidValueSize = errors.New("invalid value size")
)
