// Package certname defines the Subject type used throughout the CA
// core: the certname an agent requests a certificate for, and the
// handful of checks and derivations the core performs on it.
//
// Function naming conventions:
// - "New" validates and wraps a raw string into a Subject.
// - "To" derives another representation (e.g. a DN string) from a
//   Subject.
package certname

import (
	"fmt"
	"strings"
)

// Subject is a validated certname: the identity an agent requests a
// certificate for, and the key signed certs/CSRs are filed under on
// disk.
type Subject string

// New validates raw and returns it as a Subject. Puppet certnames are
// expected to be pre-validated, lower-case, DNS-like labels; New
// performs the defensive check the spec marks as optional (rejecting
// path-traversal-capable characters), since subjects are used verbatim
// in filesystem paths.
func New(raw string) (Subject, error) {
	if raw == "" {
		return "", fmt.Errorf("certname must not be empty")
	}
	if strings.ContainsAny(raw, "/\\\x00") {
		return "", fmt.Errorf("certname %q contains a disallowed character", raw)
	}
	return Subject(raw), nil
}

// ToCommonName renders the Subject as the "CN={subject}"
// distinguished-name string.
func (s Subject) ToCommonName() string {
	return "CN=" + string(s)
}

// String returns the raw certname.
func (s Subject) String() string {
	return string(s)
}

// Normalize lowercases a raw certname for case-insensitive comparisons,
// without performing New's validation.
func Normalize(raw string) string {
	return strings.ToLower(raw)
}
