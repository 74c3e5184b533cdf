package wire

import (
	"errors"
	"fmt"
)

var (
	ErrCapacityTooLow           = errors.New("wire: capacity too low")
	ErrInvalidData              = errors.New("wire: invalid data")
	ErrShortRead                = fmt.Errorf("%w: unexpected end of buffer", ErrInvalidData)
	ErrLengthOverflow           = errors.New("wire: length overflows its field")
	ErrUnrecognizedDiscriminant = errors.New("wire: unrecognized discriminant")
)

// UnrecognizedDiscriminantError reports a variant tag outside the declared set.
type UnrecognizedDiscriminantError struct {
	Type         string
	Discriminant uint8
}

func (e *UnrecognizedDiscriminantError) Error() string {
	return fmt.Sprintf("wire: %s: unrecognized discriminant %d", e.Type, e.Discriminant)
}

func (e *UnrecognizedDiscriminantError) Is(target error) bool {
	return target == ErrUnrecognizedDiscriminant
}
