// Package mdoc implements the holder-side wire types and decode checks for
// ISO/IEC 18013-5 mobile documents (mdoc), CBOR-encoded and bound by a
// COSE_Sign1 issuer signature.
package mdoc

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"walletcore/pkg/cborelement"
)

// IssuerSignedItem is a single issuer-signed data element, as carried inside
// a nameSpaces entry.
type IssuerSignedItem struct {
	DigestID          uint64 `cbor:"digestID"`
	Random            []byte `cbor:"random"`
	ElementIdentifier string `cbor:"elementIdentifier"`
	ElementValue      any    `cbor:"elementValue"`
}

// IssuerSigned is the top-level issuer-signed structure of an mdoc
// credential: namespaced signed elements plus the COSE_Sign1 issuerAuth
// bytes that bind the Mobile Security Object.
type IssuerSigned struct {
	NameSpaces map[string][]IssuerSignedItem `cbor:"nameSpaces"`
	IssuerAuth cbor.RawMessage               `cbor:"issuerAuth"`
}

var decMode = func() cbor.DecMode {
	opts := cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyEnforcedAPF,
		IndefLength: cbor.IndefLengthAllowed,
	}
	m, err := opts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("mdoc: invalid decode options: %v", err))
	}
	return m
}()

// DecodeIssuerSigned validates raw is a well-formed IssuerSigned structure:
// a CBOR map carrying nameSpaces and issuerAuth (a COSE_Sign1 structure).
// It validates shape via cborelement before attempting the typed decode, so
// a caller gets a precise reason for malformed bytes.
func DecodeIssuerSigned(raw []byte) (*IssuerSigned, error) {
	el, err := cborelement.ValidElement(raw)
	if err != nil {
		return nil, fmt.Errorf("mdoc: %w", err)
	}

	if el.Kind != cborelement.KindMap {
		return nil, fmt.Errorf("mdoc: top-level IssuerSigned structure must be a CBOR map")
	}

	hasNameSpaces, hasIssuerAuth := false, false
	for _, entry := range el.Map {
		if entry.Key.Kind != cborelement.KindText {
			continue
		}
		switch entry.Key.Text {
		case "nameSpaces":
			hasNameSpaces = true
		case "issuerAuth":
			hasIssuerAuth = true
		}
	}
	if !hasNameSpaces {
		return nil, fmt.Errorf("mdoc: IssuerSigned is missing nameSpaces")
	}
	if !hasIssuerAuth {
		return nil, fmt.Errorf("mdoc: IssuerSigned is missing issuerAuth")
	}

	var issuerSigned IssuerSigned
	if err := decMode.Unmarshal(raw, &issuerSigned); err != nil {
		return nil, fmt.Errorf("mdoc: failed to decode IssuerSigned: %w", err)
	}

	// issuerAuth is a COSE_Sign1 structure: a 4-element CBOR array
	// (protected headers, unprotected headers, payload, signature). We only
	// validate shape here; COSE signature verification is out of scope for
	// the holder core (the wallet stores the bytes, it does not verify its
	// own issuer).
	authEl, err := cborelement.ValidElement(issuerSigned.IssuerAuth)
	if err != nil {
		return nil, fmt.Errorf("mdoc: issuerAuth is not valid CBOR: %w", err)
	}
	if authEl.Kind != cborelement.KindArray || len(authEl.Array) != 4 {
		return nil, fmt.Errorf("mdoc: issuerAuth is not a COSE_Sign1 structure")
	}

	return &issuerSigned, nil
}

// Encode serializes an IssuerSigned structure back to CBOR bytes.
func Encode(issuerSigned *IssuerSigned) ([]byte, error) {
	return cbor.Marshal(issuerSigned)
}
