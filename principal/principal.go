// Copyright 2017 First Flamingo Enterprise B.V.
// This software is released under an MIT/X11 open source license.

// Package principal models the authenticated users of a restkit
// service.  A principal is itself an owned resource: it is created by
// an anonymous POST carrying a bootstrap token, it owns itself, and
// afterwards only the principal (or an administrator) can read or
// modify it.
//
// Principals never store passwords.  The stored secret is the digest
// HA1 value, the hash of username:realm:password, which is exactly
// what the authenticator needs to verify a response and nothing more.
package principal

import (
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/firstflamingo/restkit/digest"
	"github.com/firstflamingo/restkit/resource"
)

// Principal is one user of the service.
type Principal struct {
	resource.Meta

	// Realm is the deployment realm the secret was derived in.
	Realm string

	// HA1 is the derived authentication secret.  Empty until the
	// principal bootstraps with a token.
	HA1 string

	// Admin grants administrator privileges.  Never set through the
	// REST interface.
	Admin bool

	Name    string
	Email   string
	Created time.Time

	// CreationAddress records the remote address of the creating
	// request.
	CreationAddress string
}

// Class returns the resource class describing principals in the given
// realm.  The class allows anonymous creation so that new users can
// bootstrap themselves with a token.
func Class(realm string) *resource.Class {
	return &resource.Class{
		Name:                 "Principal",
		URLName:              "users",
		Kind:                 resource.OwnedResource,
		Identifier:           resource.Numeric,
		Readable:             []resource.MediaType{resource.JSON},
		Writable:             []resource.MediaType{resource.JSON},
		AllowAnonymousCreate: true,
		New: func(id string) resource.Object {
			return &Principal{
				Meta:  resource.Meta{Identifier: id},
				Realm: realm,
			}
		},
	}
}

// Username returns the principal identifier.
func (p *Principal) Username() string { return p.ID() }

// Secret returns the stored HA1 value.
func (p *Principal) Secret() string { return p.HA1 }

// HasAdminPrivileges reports whether the principal is an
// administrator.
func (p *Principal) HasAdminPrivileges() bool { return p.Admin }

// Owner returns the principal's own identifier: a principal always
// owns itself.
func (p *Principal) Owner() string { return p.ID() }

// SetOrigin records the remote address of the creating request.
func (p *Principal) SetOrigin(addr string) { p.CreationAddress = addr }

// SetLastModified records a store write.  The first write also stamps
// the creation time, so Created follows the store's clock rather than
// the wall clock.
func (p *Principal) SetLastModified(t time.Time) {
	p.Meta.SetLastModified(t)
	if p.Created.IsZero() {
		p.Created = p.Modified
	}
}

// SetPassword re-derives the stored secret from a new password.
func (p *Principal) SetPassword(password string) {
	p.HA1 = digest.Hash(p.ID(), p.Realm, password)
}

// PasswordEquals reports whether the given password derives the stored
// secret.
func (p *Principal) PasswordEquals(password string) bool {
	return p.HA1 != "" && digest.Hash(p.ID(), p.Realm, password) == p.HA1
}

// updatePayload is the shape of the JSON document accepted by Update.
type updatePayload struct {
	Realm       string `mapstructure:"realm"`
	Token       string `mapstructure:"token"`
	OldPassword string `mapstructure:"old-password"`
	NewPassword string `mapstructure:"new-password"`
	Name        string `mapstructure:"name"`
	Email       string `mapstructure:"email"`
}

// Update applies a JSON update document.
//
// A principal without a secret is still bootstrapping: the document
// must carry the deployment realm and a token, which becomes the
// initial password.  Anything else is an invalid payload.
//
// An established principal may change its password by presenting the
// old one, and may update its name and email.  A wrong old password
// silently leaves the secret unchanged, exactly like presenting no
// password change at all.
func (p *Principal) Update(data []byte, mt resource.MediaType) (bool, error) {
	if mt != resource.JSON {
		return false, resource.ErrUnsupportedMediaType{Type: string(mt)}
	}

	var document map[string]interface{}
	if err := resource.DecodeJSON(data, &document); err != nil {
		return false, resource.ErrInvalidPayload{Err: err}
	}
	var payload updatePayload
	if err := mapstructure.Decode(document, &payload); err != nil {
		return false, resource.ErrInvalidPayload{Err: err}
	}

	changed := false
	if p.HA1 == "" {
		if payload.Token == "" || payload.Realm != p.Realm {
			return false, resource.ErrInvalidPayload{}
		}
		p.SetPassword(payload.Token)
		changed = true
	} else if payload.NewPassword != "" && p.PasswordEquals(payload.OldPassword) {
		p.SetPassword(payload.NewPassword)
		changed = true
	}

	if payload.Name != "" && payload.Name != p.Name {
		p.Name = payload.Name
		changed = true
	}
	if payload.Email != "" && payload.Email != p.Email {
		p.Email = payload.Email
		changed = true
	}

	return changed, nil
}

// Serialize renders the principal's public representation.  The secret
// is never part of it.
func (p *Principal) Serialize(mt resource.MediaType) ([]byte, error) {
	if mt != resource.JSON {
		return nil, resource.ErrUnsupportedMediaType{Type: string(mt)}
	}
	document := map[string]string{"username": p.ID()}
	if p.Name != "" {
		document["name"] = p.Name
	}
	if p.Email != "" {
		document["email"] = p.Email
	}
	return resource.EncodeJSON(document)
}
