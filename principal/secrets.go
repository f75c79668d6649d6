// Copyright 2017 First Flamingo Enterprise B.V.
// This software is released under an MIT/X11 open source license.

package principal

import (
	"github.com/firstflamingo/restkit/digest"
	"github.com/firstflamingo/restkit/resource"
)

// Secrets adapts a resource store into the credential lookup the
// authenticator depends on.  Usernames are validated against the
// principal identifier grammar before touching the store, so a
// syntactically invalid username never becomes a storage query.
func Secrets(store resource.Store, class *resource.Class) digest.Principals {
	return secrets{store: store, class: class}
}

type secrets struct {
	store resource.Store
	class *resource.Class
}

func (s secrets) Principal(username string) (digest.Principal, error) {
	id, err := s.class.ValidIdentifier(username)
	if err != nil {
		return nil, err
	}
	obj, err := s.store.Get(s.class, id)
	if err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, nil
	}
	p, ok := obj.(*Principal)
	if !ok {
		return nil, nil
	}
	return p, nil
}
