// Package status declares error constants returned by
// the store packages.
package status

import (
	"github.com/oneconcern/pacbox/pkg/errors"
)

var (
	// ErrInvalidArgument indicates a call made with an unusable argument, such as an empty id
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrEntityNotFound indicates that no entity matches the lookup
	ErrEntityNotFound = errors.New("entity not found")

	// ErrEntityFind indicates a record that could not be decoded during a scan
	ErrEntityFind = errors.New("failed to decode entity")

	// ErrOperation indicates a failure of the underlying store
	ErrOperation = errors.New("store operation failed")

	// ErrDefunctTransaction indicates a unit of work used after it has been committed or rolled back
	ErrDefunctTransaction = errors.New("unit of work is no longer active")

	// ErrConflict indicates a commit rejected because an entity it read has been changed by another commit
	ErrConflict = errors.New("conflicting concurrent update")

	// ErrUnknownSection indicates an operation on a section the box does not know about
	ErrUnknownSection = errors.New("unknown section")
)

// IsReadError tells if an error belongs to the read error kinds
func IsReadError(err error) bool {
	return errors.Is(err, ErrInvalidArgument) || errors.Is(err, ErrEntityNotFound) || errors.Is(err, ErrEntityFind)
}

// IsWriteError tells if an error belongs to the write error kinds
func IsWriteError(err error) bool {
	return errors.Is(err, ErrInvalidArgument) || errors.Is(err, ErrOperation)
}
