package utils

import (
	"github.com/pkg/errors"
)

var (
	// ErrUsage is returned when a stage is wired or constructed in a way it does not support,
	// such as feeding data into a pure source or reading from a pure sink.
	ErrUsage = errors.New("invalid usage")

	// ErrCountMismatch is returned when two collections that must pair up one-to-one do not.
	// It is a usage error.
	ErrCountMismatch = errors.Wrap(ErrUsage, "count mismatch")

	// ErrShape is returned when arrays or clouds have incompatible shapes.
	ErrShape = errors.New("incompatible shape")

	// ErrClustering is returned when clustering cannot produce the requested partition.
	ErrClustering = errors.New("clustering failed")
)

// NewSourceInputError is used when something attempts to feed input into a pure source.
func NewSourceInputError(name string) error {
	return errors.Wrapf(ErrUsage, "%s is a data source, attaching input to it is invalid", name)
}

// NewSinkReadError is used when something attempts to read output from a pure sink.
func NewSinkReadError(name string) error {
	return errors.Wrapf(ErrUsage, "%s is a data sink and does not produce outputs to iterate over", name)
}

// NewMissingInputError is used when a transform or sink is run without upstream input.
func NewMissingInputError(name string) error {
	return errors.Wrapf(ErrUsage, "%s needs an upstream input", name)
}

// NewUsageError is used for any other misuse of a stage, such as invalid constructor arguments.
func NewUsageError(format string, args ...interface{}) error {
	return errors.Wrapf(ErrUsage, format, args...)
}

// NewCountMismatchError is used when a stage receives an unequal number of items and the
// destinations or partners they must pair with.
func NewCountMismatchError(name string, items int, itemKind string, others int, otherKind string) error {
	return errors.Wrapf(ErrCountMismatch,
		"%s received an unequal number of %s and %s (%d %s, %d %s)",
		name, itemKind, otherKind, items, itemKind, others, otherKind)
}

// NewShapeError is used when an array or cloud does not have the shape an operation needs.
func NewShapeError(format string, args ...interface{}) error {
	return errors.Wrapf(ErrShape, format, args...)
}

// NewUnexpectedTypeError is used when there is a type mismatch.
func NewUnexpectedTypeError(expected, actual interface{}) error {
	return errors.Errorf("expected %T but got %T", expected, actual)
}
