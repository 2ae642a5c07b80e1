// Package sdjwtvc implements holder-side decoding of SD-JWT VC credentials:
// splitting the compact `issuer-jwt~disclosure~...~[kb-jwt]` form and
// decoding its disclosures. The issuer-signed JWT is kept in compact form:
// its claims are not decoded and its signature is not verified (that is the
// issuer's concern, not the holder's).
package sdjwtvc

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// Disclosure is a single selective-disclosure claim, decoded from one
// tilde-separated segment of the compact form.
type Disclosure struct {
	Raw       string
	Salt      string
	ClaimName string
	Value     any
}

// Credential is the decoded holder-side form of an SD-JWT VC: the
// issuer-signed JWT (still compact, unverified by the holder) plus the
// disclosures bound to it and an optional trailing key-binding JWT.
type Credential struct {
	IssuerSignedJWT string
	Disclosures     []Disclosure
	KeyBindingJWT   string
}

// Split decodes the compact SD-JWT VC form described in spec.md C6 step 5:
// the first segment is the issuer-signed JWT, the trailing segments are
// disclosures, and an optional key-binding JWT follows the final `~`.
func Split(compact string) (*Credential, error) {
	if compact == "" {
		return nil, fmt.Errorf("sdjwtvc: empty credential")
	}

	segments := strings.Split(compact, "~")
	if len(segments) < 2 {
		return nil, fmt.Errorf("sdjwtvc: expected at least one `~`-separated disclosure segment")
	}

	issuerJWT := segments[0]
	if strings.Count(issuerJWT, ".") != 2 {
		return nil, fmt.Errorf("sdjwtvc: issuer-signed segment is not a JWT")
	}

	rest := segments[1:]
	var kbJWT string
	// The compact form always ends in a trailing `~`; trailing `~kb-jwt`
	// without a final separator indicates a key-binding JWT.
	if last := rest[len(rest)-1]; last != "" && strings.Count(last, ".") == 2 {
		kbJWT = last
		rest = rest[:len(rest)-1]
	}

	disclosures := make([]Disclosure, 0, len(rest))
	for _, seg := range rest {
		if seg == "" {
			continue
		}
		d, err := decodeDisclosure(seg)
		if err != nil {
			return nil, fmt.Errorf("sdjwtvc: %w", err)
		}
		disclosures = append(disclosures, d)
	}

	return &Credential{
		IssuerSignedJWT: issuerJWT,
		Disclosures:     disclosures,
		KeyBindingJWT:   kbJWT,
	}, nil
}

func decodeDisclosure(seg string) (Disclosure, error) {
	raw, err := base64.RawURLEncoding.DecodeString(seg)
	if err != nil {
		return Disclosure{}, fmt.Errorf("invalid disclosure encoding: %w", err)
	}

	var tuple []any
	if err := json.Unmarshal(raw, &tuple); err != nil {
		return Disclosure{}, fmt.Errorf("invalid disclosure JSON: %w", err)
	}
	if len(tuple) != 3 {
		return Disclosure{}, fmt.Errorf("disclosure must be a [salt, claim_name, value] tuple")
	}

	salt, ok := tuple[0].(string)
	if !ok {
		return Disclosure{}, fmt.Errorf("disclosure salt must be a string")
	}
	claimName, ok := tuple[1].(string)
	if !ok {
		return Disclosure{}, fmt.Errorf("disclosure claim_name must be a string")
	}

	return Disclosure{Raw: seg, Salt: salt, ClaimName: claimName, Value: tuple[2]}, nil
}

// Join re-serializes a Credential to its compact form.
func (c *Credential) Join() string {
	var b strings.Builder
	b.WriteString(c.IssuerSignedJWT)
	for _, d := range c.Disclosures {
		b.WriteByte('~')
		b.WriteString(d.Raw)
	}
	b.WriteByte('~')
	if c.KeyBindingJWT != "" {
		b.WriteString(c.KeyBindingJWT)
	}
	return b.String()
}
