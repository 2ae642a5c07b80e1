// Package credential implements the typed persistent credential records (C2):
// SD-JWT VC and mdoc forms, sharing a common display/lifecycle shape and a
// stable canonical JSON encoding.
package credential

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"walletcore/pkg/identifier"
	"walletcore/pkg/mdoc"
	"walletcore/pkg/sdjwtvc"
	"walletcore/pkg/walleterrors"
)

// State is the lifecycle state of a stored credential.
type State string

// Credential states per spec.md §3.
const (
	StateActive  State = "ACTIVE"
	StateRevoked State = "REVOKED"
	StateExpired State = "EXPIRED"
)

// Logo is a per-display logo reference.
type Logo struct {
	URL     string `json:"url"`
	AltText string `json:"alt_text,omitempty"`
}

// Display is one per-locale display descriptor.
type Display struct {
	Locale          string `json:"locale,omitempty"`
	Name            string `json:"name,omitempty"`
	Logo            *Logo  `json:"logo,omitempty"`
	BackgroundColor string `json:"background_color,omitempty"`
	TextColor       string `json:"text_color,omitempty"`
}

// Record is the common interface shared by SdJwtRecord and MdocRecord: the
// tagged-variant polymorphism called for in spec.md §9.
type Record interface {
	ID() identifier.CredentialID
	KeyID() string
	CredentialSetID() string
	CredentialState() State
	ExpiresAt() *time.Time
	Encode() ([]byte, error)
}

// SdJwtRecord is the persistent holder-side form of an SD-JWT VC credential.
type SdJwtRecord struct {
	Id                  identifier.CredentialID
	Key                 string
	CredSetID           string
	State               State
	Expires             *time.Time
	Vct                 identifier.Vct
	EncodedIssuerSigned string
	Disclosures         []string
	Displays            []Display
}

// NewSdJwtRecord constructs a fresh record. CredentialID is generated here
// and is never taken from caller input, per spec.md §3 invariants.
func NewSdJwtRecord(keyID, credentialSetID string, vct identifier.Vct, compact string, expiresAt *time.Time, displays []Display) (*SdJwtRecord, error) {
	if expiresAt != nil && !expiresAt.After(time.Now()) {
		return nil, fmt.Errorf("credential: expires_at must be in the future at issuance time")
	}

	split, err := sdjwtvc.Split(compact)
	if err != nil {
		return nil, &walleterrors.Error{Kind: walleterrors.KindDecodeFailed, Message: err.Error()}
	}

	disclosures := make([]string, len(split.Disclosures))
	for i, d := range split.Disclosures {
		disclosures[i] = d.Raw
	}

	return &SdJwtRecord{
		Id:                  identifier.NewCredentialID(),
		Key:                 keyID,
		CredSetID:           credentialSetID,
		State:               StateActive,
		Expires:             expiresAt,
		Vct:                 vct,
		EncodedIssuerSigned: split.IssuerSignedJWT,
		Disclosures:         disclosures,
		Displays:            displays,
	}, nil
}

// ID implements Record.
func (r *SdJwtRecord) ID() identifier.CredentialID { return r.Id }

// KeyID implements Record.
func (r *SdJwtRecord) KeyID() string { return r.Key }

// CredentialSetID implements Record.
func (r *SdJwtRecord) CredentialSetID() string { return r.CredSetID }

// CredentialState implements Record.
func (r *SdJwtRecord) CredentialState() State { return r.State }

// ExpiresAt implements Record.
func (r *SdJwtRecord) ExpiresAt() *time.Time { return r.Expires }

type sdJwtJSON struct {
	Id                  string     `json:"Id"`
	EncodedIssuerSigned string     `json:"encodedIssuerSigned"`
	Disclosures         []string   `json:"disclosures"`
	KeyID               string     `json:"keyId"`
	CredentialSetID     string     `json:"credentialSetId"`
	CredentialState     State      `json:"credentialState"`
	ExpiresAt           *time.Time `json:"expiresAt,omitempty"`
	Vct                 string     `json:"vct"`
	Displays            []Display  `json:"displays,omitempty"`
}

// Encode serializes the record to the stable, case-sensitive JSON keys from
// spec.md §6. Encoding is total: it never fails given an in-memory record.
func (r *SdJwtRecord) Encode() ([]byte, error) {
	return json.Marshal(sdJwtJSON{
		Id:                  r.Id.String(),
		EncodedIssuerSigned: r.EncodedIssuerSigned,
		Disclosures:         r.Disclosures,
		KeyID:               r.Key,
		CredentialSetID:     r.CredSetID,
		CredentialState:     r.State,
		ExpiresAt:           r.Expires,
		Vct:                 r.Vct.String(),
		Displays:            r.Displays,
	})
}

// DecodeSdJwtRecord decodes a record previously produced by Encode. Unknown
// fields are dropped; forward-compat is a non-goal.
func DecodeSdJwtRecord(data []byte) (*SdJwtRecord, error) {
	var raw sdJwtJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &walleterrors.Error{Kind: walleterrors.KindDecodeFailed, Message: err.Error()}
	}

	vct, err := identifier.NewVct(raw.Vct)
	if err != nil {
		return nil, &walleterrors.Error{Kind: walleterrors.KindDecodeFailed, Message: fmt.Sprintf("record %s: %v", raw.Id, err)}
	}

	return &SdJwtRecord{
		Id:                  identifier.CredentialIDFromString(raw.Id),
		Key:                 raw.KeyID,
		CredSetID:           raw.CredentialSetID,
		State:               raw.CredentialState,
		Expires:             raw.ExpiresAt,
		Vct:                 vct,
		EncodedIssuerSigned: raw.EncodedIssuerSigned,
		Disclosures:         raw.Disclosures,
		Displays:            raw.Displays,
	}, nil
}

// MdocRecord is the persistent holder-side form of an mdoc credential.
type MdocRecord struct {
	Id        identifier.CredentialID
	Key       string
	CredSetID string
	State     State
	Expires   *time.Time
	Doctype   identifier.DocType
	Mdoc      []byte
	Displays  []Display
}

// NewMdocRecord constructs a fresh record from raw IssuerSigned CBOR bytes,
// validating them via the mdoc package (which in turn uses C1's CBOR
// element decoder).
func NewMdocRecord(keyID, credentialSetID string, docType identifier.DocType, mdocBytes []byte, expiresAt *time.Time, displays []Display) (*MdocRecord, error) {
	if expiresAt != nil && !expiresAt.After(time.Now()) {
		return nil, fmt.Errorf("credential: expires_at must be in the future at issuance time")
	}

	if _, err := mdoc.DecodeIssuerSigned(mdocBytes); err != nil {
		return nil, &walleterrors.Error{Kind: walleterrors.KindDecodeFailed, Message: err.Error()}
	}

	return &MdocRecord{
		Id:        identifier.NewCredentialID(),
		Key:       keyID,
		CredSetID: credentialSetID,
		State:     StateActive,
		Expires:   expiresAt,
		Doctype:   docType,
		Mdoc:      mdocBytes,
		Displays:  displays,
	}, nil
}

// ID implements Record.
func (r *MdocRecord) ID() identifier.CredentialID { return r.Id }

// KeyID implements Record.
func (r *MdocRecord) KeyID() string { return r.Key }

// CredentialSetID implements Record.
func (r *MdocRecord) CredentialSetID() string { return r.CredSetID }

// CredentialState implements Record.
func (r *MdocRecord) CredentialState() State { return r.State }

// ExpiresAt implements Record.
func (r *MdocRecord) ExpiresAt() *time.Time { return r.Expires }

type mdocJSON struct {
	Id              string     `json:"Id"`
	Mdoc            string     `json:"mdoc"`
	KeyID           string     `json:"keyId"`
	CredentialSetID string     `json:"credentialSetId"`
	CredentialState State      `json:"credentialState"`
	ExpiresAt       *time.Time `json:"expiresAt,omitempty"`
	Doctype         string     `json:"doctype"`
	Displays        []Display  `json:"displays,omitempty"`
}

// Encode serializes the record to the stable JSON keys from spec.md §6.
func (r *MdocRecord) Encode() ([]byte, error) {
	return json.Marshal(mdocJSON{
		Id:              r.Id.String(),
		Mdoc:            base64.StdEncoding.EncodeToString(r.Mdoc),
		KeyID:           r.Key,
		CredentialSetID: r.CredSetID,
		CredentialState: r.State,
		ExpiresAt:       r.Expires,
		Doctype:         r.Doctype.String(),
		Displays:        r.Displays,
	})
}

// DecodeMdocRecord decodes a record previously produced by Encode, rejecting
// malformed mdoc bytes via the mdoc package and naming the offending id.
func DecodeMdocRecord(data []byte) (*MdocRecord, error) {
	var raw mdocJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &walleterrors.Error{Kind: walleterrors.KindDecodeFailed, Message: err.Error()}
	}

	mdocBytes, err := base64.StdEncoding.DecodeString(raw.Mdoc)
	if err != nil {
		return nil, &walleterrors.Error{Kind: walleterrors.KindDecodeFailed, Message: fmt.Sprintf("record %s: invalid mdoc base64: %v", raw.Id, err)}
	}

	if _, err := mdoc.DecodeIssuerSigned(mdocBytes); err != nil {
		return nil, &walleterrors.Error{Kind: walleterrors.KindDecodeFailed, Message: fmt.Sprintf("record %s: %v", raw.Id, err)}
	}

	docType, err := identifier.NewDocType(raw.Doctype)
	if err != nil {
		return nil, &walleterrors.Error{Kind: walleterrors.KindDecodeFailed, Message: fmt.Sprintf("record %s: %v", raw.Id, err)}
	}

	return &MdocRecord{
		Id:        identifier.CredentialIDFromString(raw.Id),
		Key:       raw.KeyID,
		CredSetID: raw.CredentialSetID,
		State:     raw.CredentialState,
		Expires:   raw.ExpiresAt,
		Doctype:   docType,
		Mdoc:      mdocBytes,
		Displays:  raw.Displays,
	}, nil
}

var (
	_ Record = (*SdJwtRecord)(nil)
	_ Record = (*MdocRecord)(nil)
)
