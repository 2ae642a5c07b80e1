// Package identifier implements the smart-constructor wrappers for the
// holder core's external identifiers (C1). Every constructor validates its
// input and returns an opaque value; there is no way to rebuild one of these
// types from an arbitrary string other than through its constructor.
package identifier

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/language"
)

// CredentialID is a freshly generated, immutable credential identifier.
type CredentialID struct {
	value string
}

// NewCredentialID generates a fresh UUIDv4-backed credential id. There is no
// parsing constructor: per spec, a CredentialID is always freshly generated
// at record construction, never rebuilt from caller input.
func NewCredentialID() CredentialID {
	return CredentialID{value: uuid.NewString()}
}

// String returns the identifier's string form.
func (c CredentialID) String() string { return c.value }

// CredentialIDFromString reconstructs a CredentialID from a previously
// generated value, e.g. when decoding a persisted record. It is not a
// general parsing constructor: it performs no UUID validation because the
// value is assumed to already be one this module generated.
func CredentialIDFromString(s string) CredentialID {
	return CredentialID{value: s}
}

// DocType is a validated, non-empty mdoc document type identifier.
type DocType struct{ value string }

// NewDocType validates s is non-empty.
func NewDocType(s string) (DocType, error) {
	if strings.TrimSpace(s) == "" {
		return DocType{}, fmt.Errorf("doc_type must not be empty")
	}
	return DocType{value: s}, nil
}

// String returns the doc type's string form.
func (d DocType) String() string { return d.value }

// Vct is a validated, non-empty SD-JWT VC type identifier.
type Vct struct{ value string }

// NewVct validates s is non-empty.
func NewVct(s string) (Vct, error) {
	if strings.TrimSpace(s) == "" {
		return Vct{}, fmt.Errorf("vct must not be empty")
	}
	return Vct{value: s}, nil
}

// String returns the vct's string form.
func (v Vct) String() string { return v.value }

// Scope is a validated, non-empty OAuth 2.0 scope value.
type Scope struct{ value string }

// NewScope validates s is non-empty.
func NewScope(s string) (Scope, error) {
	if strings.TrimSpace(s) == "" {
		return Scope{}, fmt.Errorf("scope must not be empty")
	}
	return Scope{value: s}, nil
}

// String returns the scope's string form.
func (s Scope) String() string { return s.value }

// Locale is a validated IETF BCP-47 language tag.
type Locale struct{ value string }

// DefaultLocale is used to fall back display filtering when the caller
// requests no locale.
var DefaultLocale = Locale{value: "en-US"}

// NewLocale parses and validates s as a BCP-47 language tag.
func NewLocale(s string) (Locale, error) {
	if strings.TrimSpace(s) == "" {
		return Locale{}, fmt.Errorf("locale must not be empty")
	}
	tag, err := language.Parse(s)
	if err != nil {
		return Locale{}, fmt.Errorf("invalid BCP-47 locale %q: %w", s, err)
	}
	return Locale{value: tag.String()}, nil
}

// String returns the locale's canonical string form.
func (l Locale) String() string { return l.value }
