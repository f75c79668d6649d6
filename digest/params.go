// Copyright 2017 First Flamingo Enterprise B.V.
// This software is released under an MIT/X11 open source license.

package digest

import "regexp"

// paramPattern matches one key="value" pair in an Authorization or
// WWW-Authenticate header.  Quotes are optional and values are limited
// to the characters that actually occur in digest parameters (hex
// hashes, UUID nonces, request paths, usernames).
var paramPattern = regexp.MustCompile(`(\w+)= ?"?([-\w.@/+=]+)"?`)

// ParseParams extracts the key/value parameters from a digest header
// value.  The leading "Digest" scheme token, separators, and anything
// unrecognized are ignored; repeated keys keep the last value.
func ParseParams(header string) map[string]string {
	params := make(map[string]string)
	for _, match := range paramPattern.FindAllStringSubmatch(header, -1) {
		params[match[1]] = match[2]
	}
	return params
}
