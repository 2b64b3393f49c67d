package store

// Navigation tells a scan whether to continue or to stop
type Navigation int

const (
	// Next moves the scan to the next record
	Next Navigation = iota

	// Stop terminates the scan
	Stop
)

// Visitor is called for each record of a scan, in key order
type Visitor[E any] func(key string, entity E) Navigation

// Any is a predicate matching any entity
func Any[E any](E) bool { return true }
