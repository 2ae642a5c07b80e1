// Package issuance implements the credential request dispatcher (C6):
// building a format-specific credential request bound to a fresh
// proof-of-possession key, dispatching it, and decoding the response into a
// typed credential record.
package issuance

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"walletcore/pkg/credential"
	"walletcore/pkg/holderkey"
	"walletcore/pkg/identifier"
	"walletcore/pkg/offer"
	"walletcore/pkg/walletclient"
	"walletcore/pkg/walleterrors"
)

// ProofTypeJWT is the only key-proof type this core builds, per spec.md
// §4.6 step 2.
const ProofTypeJWT = "jwt"

// proofJWTTyp is the fixed JWT "typ" header for OID4VCI key proofs.
const proofJWTTyp = "openid4vci-proof+jwt"

// ClientOptions carries the caller identity used as the proof JWT's iss
// claim. Absent for the pre-authorized-code grant.
type ClientOptions struct {
	ClientID string
}

// Dispatcher is C6: it requests a holder key, builds the proof, and
// dispatches the credential request.
type Dispatcher struct {
	HTTP *walletclient.Client
	Keys holderkey.Service
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(httpClient *walletclient.Client, keys holderkey.Service) *Dispatcher {
	return &Dispatcher{HTTP: httpClient, Keys: keys}
}

type proofRequest struct {
	Format  string `json:"format"`
	Vct     string `json:"vct,omitempty"`
	Doctype string `json:"doctype,omitempty"`
	Proof   proof  `json:"proof"`
}

type proof struct {
	ProofType string `json:"proof_type"`
	JWT       string `json:"jwt"`
}

type credentialResponse struct {
	Credential    string `json:"credential,omitempty"`
	TransactionID string `json:"transaction_id,omitempty"`
}

// Result is C6's output: the freshly minted record and the holder key id it
// is bound to. RequestCredential never sets TransactionID: a transaction_id
// response is returned as a KindDeferredIssuanceNotSupported error instead.
type Result struct {
	Record        credential.Record
	TransactionID string
	KeyID         string
}

// RequestCredential drives the full C6 algorithm from spec.md §4.6.
func (d *Dispatcher) RequestCredential(
	ctx context.Context,
	config offer.CredentialConfiguration,
	issuerMeta offer.IssuerMetadata,
	accessToken, cNonce string,
	clientOptions *ClientOptions,
	credentialSetID string,
	expiresAt *time.Time,
	displays []credential.Display,
) (*Result, error) {
	key, err := d.Keys.RequestKey()
	if err != nil {
		return nil, fmt.Errorf("issuance: requesting holder key: %w", err)
	}

	proofJWT, err := buildProofJWT(key, issuerMeta.CredentialIssuer, cNonce, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("issuance: building proof: %w", err)
	}

	body := proofRequest{Proof: proof{ProofType: ProofTypeJWT, JWT: proofJWT}}
	switch config.Kind {
	case offer.KindSdJwt:
		body.Format = "vc+sd-jwt"
		body.Vct = config.Vct
	case offer.KindMdoc:
		body.Format = "mso_mdoc"
		body.Doctype = config.DocType
	}

	var resp credentialResponse
	if _, err := d.HTTP.PostJSON(ctx, issuerMeta.CredentialEndpoint, accessToken, body, &resp); err != nil {
		if werr, ok := err.(*walleterrors.Error); ok && werr.Kind == walleterrors.KindTransportError {
			return nil, &walleterrors.Error{Kind: walleterrors.KindCredentialRequestFailed, Status: werr.Status, Body: werr.Body}
		}
		return nil, err
	}

	if resp.TransactionID != "" {
		return nil, walleterrors.New(walleterrors.KindDeferredIssuanceNotSupported, resp.TransactionID)
	}
	if resp.Credential == "" {
		return nil, walleterrors.New(walleterrors.KindCredentialRequestFailed, "response carried neither credential nor transaction_id")
	}

	record, err := decodeRecord(config, key.ID, credentialSetID, resp.Credential, expiresAt, displays)
	if err != nil {
		return nil, err
	}

	return &Result{Record: record, KeyID: key.ID}, nil
}

func decodeRecord(config offer.CredentialConfiguration, keyID, credentialSetID, compactOrEncoded string, expiresAt *time.Time, displays []credential.Display) (credential.Record, error) {
	switch config.Kind {
	case offer.KindSdJwt:
		vct, err := vctFromConfig(config)
		if err != nil {
			return nil, err
		}
		return credential.NewSdJwtRecord(keyID, credentialSetID, vct, compactOrEncoded, expiresAt, displays)
	case offer.KindMdoc:
		docType, err := docTypeFromConfig(config)
		if err != nil {
			return nil, err
		}
		raw, err := base64.RawURLEncoding.DecodeString(compactOrEncoded)
		if err != nil {
			raw, err = base64.URLEncoding.DecodeString(compactOrEncoded)
			if err != nil {
				return nil, &walleterrors.Error{Kind: walleterrors.KindDecodeFailed, Message: fmt.Sprintf("invalid mdoc base64url: %v", err)}
			}
		}
		return credential.NewMdocRecord(keyID, credentialSetID, docType, raw, expiresAt, displays)
	default:
		return nil, fmt.Errorf("issuance: unknown configuration kind")
	}
}

func vctFromConfig(config offer.CredentialConfiguration) (identifier.Vct, error) {
	vct, err := identifier.NewVct(config.Vct)
	if err != nil {
		return identifier.Vct{}, walleterrors.WithReasons(walleterrors.KindDecodeFailed, walleterrors.FieldReason{Field: "vct", Reason: err.Error()})
	}
	return vct, nil
}

func docTypeFromConfig(config offer.CredentialConfiguration) (identifier.DocType, error) {
	docType, err := identifier.NewDocType(config.DocType)
	if err != nil {
		return identifier.DocType{}, walleterrors.WithReasons(walleterrors.KindDecodeFailed, walleterrors.FieldReason{Field: "doctype", Reason: err.Error()})
	}
	return docType, nil
}

func buildProofJWT(key *holderkey.Key, audience, nonce string, clientOptions *ClientOptions) (string, error) {
	claims := jwt.MapClaims{
		"aud": audience,
		"iat": time.Now().Unix(),
	}
	if nonce != "" {
		claims["nonce"] = nonce
	}
	if clientOptions != nil && clientOptions.ClientID != "" {
		claims["iss"] = clientOptions.ClientID
	}

	token := jwt.NewWithClaims(key.SigningMethod(), claims)
	token.Header["typ"] = proofJWTTyp
	token.Header["jwk"] = key.JWK()

	return token.SignedString(key.PrivateKey)
}
