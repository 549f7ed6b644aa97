package property

import "errors"

var (
	// ErrPropertyNotFound is returned when a property ID does not exist.
	ErrPropertyNotFound = errors.New("property not found")

	// ErrUnitNotFound is returned when a unit ID does not exist.
	ErrUnitNotFound = errors.New("unit not found")

	// ErrInvalidReference is returned when an owner, supervisor, tenant or
	// property reference does not resolve.
	ErrInvalidReference = errors.New("referenced record does not exist")

	// ErrInvalidProperty is returned when a property fails validation.
	ErrInvalidProperty = errors.New("invalid property")

	// ErrInvalidUnit is returned when a unit fails validation.
	ErrInvalidUnit = errors.New("invalid unit")
)
