// Copyright 2017 First Flamingo Enterprise B.V.
// This software is released under an MIT/X11 open source license.

// Package resource defines the core data model for the restkit REST
// protocol layer: resource classes, the object contract they must
// satisfy, identifier grammars, path resolution, and the storage
// interface the server dispatches against.
//
// A resource class comes in one of two kinds.  Publication resources
// have fixed, client-supplied identifiers; anyone may read them, only
// administrators may write them, and each publication class has a
// derived catalog listing all of its live instances.  Owned resources
// have server-generated identifiers and are readable and writable only
// by the principal recorded as their owner (or an administrator).
//
// The kind, the identifier grammar, and the supported media types are
// all plain data carried on the Class value, fixed when the class is
// registered with a server.  There is deliberately no runtime
// introspection of object capabilities beyond the small optional
// interfaces below.
package resource

import (
	"fmt"
	"time"
)

// MediaType names a serialization format a resource class can read or
// write.  The value is the exact MIME type used on the wire.
type MediaType string

// The two media types restkit resources know about.  Every class must
// support JSON at least in one direction; XML is optional per class.
const (
	JSON MediaType = "application/json"
	XML  MediaType = "application/xml"
)

// Kind distinguishes the two resource lifecycles the dispatcher knows
// how to drive.
type Kind int

const (
	// Publication resources have fixed identifiers assigned by an
	// administrator, are readable by everyone, and are listed in a
	// per-class catalog.
	Publication Kind = iota

	// OwnedResource resources have server-generated identifiers and
	// belong to exactly one principal.
	OwnedResource
)

// Object is the contract every instance of a registered class must
// satisfy.  The last-modified timestamp is owned by the store: it is
// stamped on every Put, and object code should never set it itself.
type Object interface {
	// ID returns the instance identifier, valid per the class grammar.
	ID() string

	// LastModified returns the UTC time of the last store write,
	// at second precision.
	LastModified() time.Time

	// SetLastModified is called by the store when the object is
	// written.
	SetLastModified(t time.Time)

	// Update applies a serialized representation in the given media
	// type to the object and reports whether any field actually
	// changed.  Malformed input returns ErrInvalidPayload without
	// partially applying anything that would be visible to callers.
	Update(data []byte, mt MediaType) (changed bool, err error)

	// Serialize renders the object's representation in the given
	// media type.
	Serialize(mt MediaType) ([]byte, error)
}

// Owner is implemented by objects that record an owning principal.
// Publication resources do not implement it; for those, write access
// is administrator-only.
type Owner interface {
	// Owner returns the identifier of the owning principal, or the
	// empty string if unowned.
	Owner() string
}

// OwnerSetter is implemented by objects whose owner is stamped by the
// dispatcher at creation time.
type OwnerSetter interface {
	SetOwner(id string)
}

// OriginSetter is implemented by objects that record the remote
// address a creation request came from.
type OriginSetter interface {
	SetOrigin(addr string)
}

// Class describes one registered resource class.  All fields are fixed
// at registration time.
type Class struct {
	// Name is the unique class name, also used as the catalog cache
	// key.
	Name string

	// URLName is the URL path segment addressing this class.
	URLName string

	// Kind selects the identifier-assignment and access policy.
	Kind Kind

	// Identifier is the grammar instance identifiers must satisfy.
	Identifier IDRule

	// Readable lists the media types instances accept as input, in
	// no particular order.
	Readable []MediaType

	// Writable lists the media types instances can serialize to.
	Writable []MediaType

	// AllowAnonymousCreate exempts POST requests for this class from
	// authentication.  Principal bootstrap needs this; nearly
	// everything else should leave it false.
	AllowAnonymousCreate bool

	// New constructs a blank instance carrying the given identifier.
	New func(id string) Object
}

// IsPublication reports whether the class uses the publication
// lifecycle.
func (c *Class) IsPublication() bool {
	return c.Kind == Publication
}

// ValidIdentifier checks a candidate identifier against the class
// grammar, returning it unchanged on success or ErrNoValidIdentifier.
func (c *Class) ValidIdentifier(id string) (string, error) {
	if !c.Identifier.Valid(id) {
		return "", ErrNoValidIdentifier
	}
	return id, nil
}

// CanRead reports whether the class accepts mt as an input type.
func (c *Class) CanRead(mt MediaType) bool {
	return containsType(c.Readable, mt)
}

// CanWrite reports whether the class can serialize to mt.
func (c *Class) CanWrite(mt MediaType) bool {
	return containsType(c.Writable, mt)
}

// Check validates the class definition.  The server calls this when
// the class is registered, so an incomplete class is rejected up front
// instead of failing on some later request.
func (c *Class) Check() error {
	switch {
	case c.Name == "":
		return fmt.Errorf("resource class has no name")
	case c.URLName == "":
		return fmt.Errorf("resource class %v has no URL name", c.Name)
	case c.New == nil:
		return fmt.Errorf("resource class %v has no constructor", c.Name)
	case len(c.Readable) == 0:
		return fmt.Errorf("resource class %v has no readable types", c.Name)
	case len(c.Writable) == 0:
		return fmt.Errorf("resource class %v has no writable types", c.Name)
	}
	return nil
}

func containsType(types []MediaType, mt MediaType) bool {
	for _, t := range types {
		if t == mt {
			return true
		}
	}
	return false
}

// Meta is the embeddable base carrying the metadata every resource
// has.  Concrete resource types embed it (or OwnedMeta) and get the
// identifier and timestamp accessors for free.
type Meta struct {
	Identifier string
	Modified   time.Time
}

// ID returns the instance identifier.
func (m *Meta) ID() string { return m.Identifier }

// LastModified returns the UTC last-write time at second precision.
func (m *Meta) LastModified() time.Time { return m.Modified }

// SetLastModified records a store write.  The time is normalized to
// UTC and truncated to whole seconds, matching the precision of the
// HTTP conditional headers it is compared against.
func (m *Meta) SetLastModified(t time.Time) {
	m.Modified = t.UTC().Truncate(time.Second)
}

// OwnedMeta extends Meta with the fields owned resources carry: the
// owning principal and the remote address that created the instance.
type OwnedMeta struct {
	Meta
	OwnerID string
	Origin  string
}

// Owner returns the owning principal's identifier.
func (m *OwnedMeta) Owner() string { return m.OwnerID }

// SetOwner records the owning principal.
func (m *OwnedMeta) SetOwner(id string) { m.OwnerID = id }

// SetOrigin records the remote address of the creating request.
func (m *OwnedMeta) SetOrigin(addr string) { m.Origin = addr }
