// Copyright 2017 First Flamingo Enterprise B.V.
// This software is released under an MIT/X11 open source license.

package digest

import (
	"errors"
	"fmt"
)

// clientNC and clientCnonce are the fixed nonce-count and client nonce
// this client sends.  Replay protection comes from the server's opaque
// time buckets, not from nonce counting, so there is nothing to gain
// from varying these.
const (
	clientNC     = "00000001"
	clientCnonce = "0a4f113b"
)

// ErrBadChallenge is returned from Authorize if the WWW-Authenticate
// header is missing the parameters an answer needs.
var ErrBadChallenge = errors.New("challenge is missing digest parameters")

// Authorize answers a digest challenge, building the Authorization
// header value for one request.  challenge is the WWW-Authenticate
// value from a preceding 401 response; ha1 is the principal's stored
// secret, Hash(username, realm, password).
func Authorize(challenge, method, uri, username, ha1 string) (string, error) {
	params := ParseParams(challenge)
	realm := params["realm"]
	nonce := params["nonce"]
	qop := params["qop"]
	opaque := params["opaque"]
	if realm == "" || nonce == "" || qop == "" || opaque == "" {
		return "", ErrBadChallenge
	}

	ha2 := Hash(method, uri)
	response := Hash(ha1, nonce, clientNC, clientCnonce, qop, ha2)

	header := fmt.Sprintf("Digest username=%q, realm=%q, nonce=%q, uri=%q, "+
		"qop=%s, nc=%s, cnonce=%q, response=%q, opaque=%q",
		username, realm, nonce, uri, qop, clientNC, clientCnonce,
		response, opaque)
	return header, nil
}
