// Copyright 2017 First Flamingo Enterprise B.V.
// This software is released under an MIT/X11 open source license.

package resource

// Query restricts a class-wide listing.  Results are always ordered by
// descending last-modified time; ties break on ascending identifier so
// listings are deterministic.
type Query struct {
	// Limit caps the number of objects returned.  Zero means no
	// limit.
	Limit int
}

// Store is the persistence interface the dispatcher and the catalog
// cache work against.  Implementations stamp the last-modified time on
// every Put; nothing above the store ever sets it.
//
// Get returns (nil, nil) for an identifier with no live instance;
// errors are reserved for storage faults.
type Store interface {
	// Get fetches one instance by identifier, or nil if absent.
	Get(class *Class, id string) (Object, error)

	// Query lists live instances of the class, newest first.
	Query(class *Class, q Query) ([]Object, error)

	// Put persists the object, stamping its last-modified time.
	Put(class *Class, obj Object) error

	// Delete removes the instance with the given identifier.
	// Deleting an absent identifier is not an error.
	Delete(class *Class, id string) error

	// NewID produces a fresh server-generated identifier for the
	// class, satisfying the Numeric grammar.
	NewID(class *Class) (string, error)
}
