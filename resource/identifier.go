// Copyright 2017 First Flamingo Enterprise B.V.
// This software is released under an MIT/X11 open source license.

package resource

import "regexp"

// IDRule is one of the identifier grammars a class can declare.  All
// of them cap the identifier at 19 characters.
type IDRule int

const (
	// Numeric identifiers are decimal digit strings.  Owned resource
	// classes use this; the server-generated identifiers fit it.
	Numeric IDRule = iota

	// Capitalized identifiers start with an upper-case letter
	// followed by word characters.
	Capitalized

	// Word identifiers are any non-empty word-character string.
	Word
)

var idPatterns = map[IDRule]*regexp.Regexp{
	Numeric:     regexp.MustCompile(`^[0-9]{1,19}$`),
	Capitalized: regexp.MustCompile(`^[A-Z]\w{0,18}$`),
	Word:        regexp.MustCompile(`^\w{1,19}$`),
}

// Valid reports whether id satisfies the grammar.
func (r IDRule) Valid(id string) bool {
	pattern, known := idPatterns[r]
	return known && pattern.MatchString(id)
}
