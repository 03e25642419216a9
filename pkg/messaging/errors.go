package messaging

import (
	"errors"
	"fmt"
)

var (
	ErrOutOfRange      = errors.New("subscription option out of range")
	ErrInvalidOption   = errors.New("invalid subscription option")
	ErrNoSubscription  = errors.New("message has no subscription")
	ErrBadSubscription = errors.New("invalid subscription")
)

// RangeError reports a subscription option whose value violates its lower bound.
type RangeError struct {
	Field string
	Value interface{}
	Bound interface{}
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%s: %s must be at least %v, got %v", ErrOutOfRange, e.Field, e.Bound, e.Value)
}

func (e *RangeError) Is(target error) bool {
	return target == ErrOutOfRange
}

func invalidOption(field, reason string) error {
	return fmt.Errorf("%w: %s %s", ErrInvalidOption, field, reason)
}
