// Copyright 2017 First Flamingo Enterprise B.V.
// This software is released under an MIT/X11 open source license.

// Package backend provides a standard way to construct a resource
// store based on command-line flags.
package backend

import (
	"errors"
	"strings"

	"github.com/firstflamingo/restkit/memstore"
	"github.com/firstflamingo/restkit/pgstore"
	"github.com/firstflamingo/restkit/resource"
)

// Backend describes user-visible parameters for resource storage.
// This implements the flag.Value interface, and so a typical use is
//
//     func main() {
//         storage := backend.Backend{Implementation: "memory"}
//         flag.Var(&storage, "backend", "impl:address of resource storage")
//         flag.Parse()
//         store, err := storage.Store()
//     }
type Backend struct {
	// Implementation holds the name of the implementation; for
	// instance, "memory" or "postgres".
	Implementation string

	// Address holds some backend-specific address, such as a database
	// connect string.
	Address string
}

// Store creates a new resource store.  This generally should be only
// called once.  If the backend has in-process state, such as a
// database connection pool or an in-memory store, calling this
// multiple times will create multiple copies of that state.  In
// particular, if b.Implementation is "memory", multiple calls to this
// will create multiple independent worlds.
func (b *Backend) Store() (resource.Store, error) {
	switch b.Implementation {
	case "memory":
		return memstore.New(), nil
	case "postgres":
		return pgstore.New(b.Address)
	default:
		return nil, errors.New("unknown storage backend " + b.Implementation)
	}
}

// String renders a backend description as a string.
func (b *Backend) String() string {
	if b.Address == "" {
		return b.Implementation
	}
	return b.Implementation + ":" + b.Address
}

// Set parses a string into an existing backend description.  The
// string should be of the form "implementation:address", where
// address can be any string.  Neither this nor Store attempts to
// validate the address part of the string before actually making a
// connection.
//
// This is part of the flag.Value interface.
func (b *Backend) Set(param string) error {
	parts := strings.SplitN(param, ":", 2)
	b.Implementation = parts[0]
	if len(parts) == 2 {
		b.Address = parts[1]
	} else {
		b.Address = ""
	}
	switch b.Implementation {
	case "memory", "postgres":
		return nil
	}
	return errors.New("unknown storage backend " + b.Implementation)
}
