// Copyright 2017 First Flamingo Enterprise B.V.
// This software is released under an MIT/X11 open source license.

// Package digest implements the HTTP Digest Access Authentication
// scheme the restkit REST layer uses, with replay protection derived
// purely from wall-clock time buckets.
//
// The server never stores issued nonces.  Instead, every challenge
// carries an "opaque" value binding the nonce to a 12-minute time
// bucket, and validation recomputes the opaque for the current bucket
// (falling back to five minutes earlier to cover bucket-boundary
// races).  A challenge therefore stays answerable for at most about 24
// minutes, and a captured response can be replayed at most within that
// window.  That bounded window is a deliberate tradeoff for having no
// shared nonce state at all.
package digest

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/satori/go.uuid"
)

// defaultSalt is mixed into opaque values when no deployment-specific
// salt is configured.
const defaultSalt = "FDhgfliubnw"

// Validation failures.  The dispatcher renders all of them identically
// to the client, as a fresh 401 challenge; they are distinguished only
// for logging.
var (
	// ErrMalformedHeader means required parameters were missing from
	// the Authorization header.
	ErrMalformedHeader = errors.New("missing keys in Authorization header")

	// ErrBadRealm means the stated realm is not this deployment's.
	ErrBadRealm = errors.New("stated realm does not match")

	// ErrNonceExpired means the opaque value matches neither the
	// current time bucket nor the previous one.
	ErrNonceExpired = errors.New("nonce has expired")

	// ErrUnknownPrincipal means the username failed validation or
	// resolved to no principal.
	ErrUnknownPrincipal = errors.New("no principal with that username")

	// ErrURIMismatch means the uri parameter does not equal the
	// request path exactly.
	ErrURIMismatch = errors.New("uri does not match request path")

	// ErrResponseMismatch means the response hash did not verify.
	ErrResponseMismatch = errors.New("response hash does not match")
)

// requiredParams are the Authorization parameters validation needs.
var requiredParams = []string{
	"username", "nonce", "cnonce", "nc", "realm", "qop", "uri",
	"opaque", "response",
}

// Principal is the authenticated identity the dispatcher works with.
type Principal interface {
	// Username returns the principal identifier.
	Username() string

	// Secret returns the HA1 value, the hex digest of
	// username:realm:password.
	Secret() string

	// HasAdminPrivileges reports whether the principal is an
	// administrator.
	HasAdminPrivileges() bool
}

// Principals resolves usernames to principals.  Principal returns
// (nil, nil) or an error for usernames that resolve to nothing; the
// authenticator treats both the same way.
type Principals interface {
	Principal(username string) (Principal, error)
}

// Authenticator validates Authorization headers and issues challenges
// for one deployment realm.
type Authenticator struct {
	// Realm is the authentication realm advertised in challenges and
	// required in responses.
	Realm string

	// Salt is mixed into opaque values.  All servers answering for
	// the same realm must share it.  If empty, a fixed default is
	// used.
	Salt string

	// Principals resolves usernames presented by clients.
	Principals Principals

	// Clock is the time source for the opaque bucket scheme.  If
	// nil, the real time is used; tests inject a mock clock here.
	Clock clock.Clock
}

// New creates an authenticator for the given realm backed by the real
// wall clock.
func New(realm string, principals Principals) *Authenticator {
	return NewWithClock(realm, principals, clock.New())
}

// NewWithClock creates an authenticator with an explicit time source.
// Most code should call New; this entry point is for tests that need a
// mock clock.
func NewWithClock(realm string, principals Principals, clk clock.Clock) *Authenticator {
	return &Authenticator{Realm: realm, Principals: principals, Clock: clk}
}

func (a *Authenticator) setDefaults() {
	if a.Clock == nil {
		a.Clock = clock.New()
	}
	if a.Salt == "" {
		a.Salt = defaultSalt
	}
}

// Authenticate validates an Authorization header value against the
// request method and path, returning the authenticated principal or
// one of the failure errors above.
func (a *Authenticator) Authenticate(header, method, path string) (Principal, error) {
	a.setDefaults()

	params := ParseParams(header)
	for _, key := range requiredParams {
		if _, present := params[key]; !present {
			return nil, ErrMalformedHeader
		}
	}

	if params["realm"] != a.Realm {
		return nil, ErrBadRealm
	}

	nonce := params["nonce"]
	now := a.Clock.Now()
	if params["opaque"] != a.opaque(nonce, now) {
		// A challenge issued just before a bucket boundary is
		// still answerable shortly after it.
		if params["opaque"] != a.opaque(nonce, now.Add(-5*time.Minute)) {
			return nil, ErrNonceExpired
		}
	}

	principal, err := a.Principals.Principal(params["username"])
	if err != nil || principal == nil {
		return nil, ErrUnknownPrincipal
	}

	// No normalization: the uri parameter must be the request path
	// byte for byte.
	if params["uri"] != path {
		return nil, ErrURIMismatch
	}

	ha2 := Hash(method, params["uri"])
	expected := Hash(principal.Secret(), nonce, params["nc"],
		params["cnonce"], params["qop"], ha2)
	if params["response"] != expected {
		return nil, ErrResponseMismatch
	}

	return principal, nil
}

// Challenge produces a WWW-Authenticate header value carrying a fresh
// random nonce and the opaque value for the current time bucket.
// Nothing about the challenge is persisted server-side.
func (a *Authenticator) Challenge() string {
	a.setDefaults()
	nonce := uuid.NewV4().String()
	opaque := a.opaque(nonce, a.Clock.Now())
	return fmt.Sprintf("Digest realm=%q, qop=\"auth\", nonce=%q, opaque=%q",
		a.Realm, nonce, opaque)
}

// opaque derives the opaque value binding a nonce to the 12-minute
// time bucket containing t.  Buckets are keyed by the UTC hour plus
// the minute divided by 12.
func (a *Authenticator) opaque(nonce string, t time.Time) string {
	t = t.UTC()
	bucket := t.Format("2006010215") + strconv.Itoa(t.Minute()/12)
	return Hash(bucket, nonce, a.Salt)
}

// Hash computes the hex MD5 digest of its components joined by colons.
// Components are joined as-is, never escaped; a component containing a
// colon shifts the boundaries of its neighbors.  That ambiguity is a
// property of the wire protocol this layer is compatible with, so it
// is preserved here rather than fixed.
func Hash(components ...string) string {
	sum := md5.Sum([]byte(strings.Join(components, ":")))
	return hex.EncodeToString(sum[:])
}
