// Copyright 2017 First Flamingo Enterprise B.V.
// This software is released under an MIT/X11 open source license.

package resource

import "strings"

// PathKind classifies a request path resolved against a class.
type PathKind int

const (
	// PathInvalid means the path does not address the class at all:
	// too few or too many segments, a different class segment, or an
	// identifier that fails the class grammar.  This is a value, not
	// an error; callers treat it as "no such addressable resource".
	PathInvalid PathKind = iota

	// PathClass means the path addresses the class itself, with no
	// instance identifier.
	PathClass

	// PathInstance means the path addresses one instance; ParsePath
	// returns its validated identifier.
	PathInstance
)

// ParsePath resolves a request path of the shape /root/class/id
// against a class.  The first segment (the API root) is not
// interpreted here; the second must equal the class URL name.
func ParsePath(path string, class *Class) (PathKind, string) {
	comps := strings.Split(path, "/")
	if len(comps) < 3 {
		return PathInvalid, ""
	}
	if comps[2] != class.URLName {
		return PathInvalid, ""
	}
	switch len(comps) {
	case 3:
		return PathClass, ""
	case 4:
		id, err := class.ValidIdentifier(comps[3])
		if err != nil {
			return PathInvalid, ""
		}
		return PathInstance, id
	}
	return PathInvalid, ""
}
