// Package presentation implements the request-object authenticator (C7): JWS
// signature verification against the x5c leaf certificate, X.509 trust-chain
// validation, and SAN-to-client-id binding checks for OpenID4VP authorization
// request objects.
package presentation

import (
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"walletcore/pkg/pki"
	"walletcore/pkg/walleterrors"
)

// AllowedAlgorithms is the recommended signing-algorithm whitelist from
// spec.md §4.7.
var AllowedAlgorithms = []string{"RS256", "ES256", "PS256", "EdDSA"}

// ClientIDSchemeX509SanDNS and ClientIDSchemeX509SanURI are the two binding
// schemes this core validates, per spec.md §4.7.
const (
	ClientIDSchemeX509SanDNS = "x509_san_dns"
	ClientIDSchemeX509SanURI = "x509_san_uri"
)

// Payload is the subset of an OID4VP request object's claims this core
// reads for SAN binding.
type Payload struct {
	ClientID       string `json:"client_id"`
	ClientIDScheme string `json:"client_id_scheme"`
}

// RequestObject is a parsed, not-yet-verified compact-JWS request object.
type RequestObject struct {
	Compact string
	Header  map[string]any
	Payload Payload
	Chain   []*x509.Certificate
}

// Parse decodes a compact JWS without verifying its signature, extracting
// the header (including x5c) and payload.
func Parse(compact string) (*RequestObject, error) {
	parts := strings.Split(compact, ".")
	if len(parts) != 3 {
		return nil, walleterrors.New(walleterrors.KindInvalidSignature, "request object is not a compact JWS")
	}

	headerBytes, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, walleterrors.New(walleterrors.KindInvalidSignature, fmt.Sprintf("invalid header encoding: %v", err))
	}
	var header map[string]any
	if err := json.Unmarshal(headerBytes, &header); err != nil {
		return nil, walleterrors.New(walleterrors.KindInvalidSignature, fmt.Sprintf("invalid header JSON: %v", err))
	}

	payloadBytes, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, walleterrors.New(walleterrors.KindInvalidSignature, fmt.Sprintf("invalid payload encoding: %v", err))
	}
	var payload Payload
	if err := json.Unmarshal(payloadBytes, &payload); err != nil {
		return nil, walleterrors.New(walleterrors.KindInvalidSignature, fmt.Sprintf("invalid payload JSON: %v", err))
	}

	x5cRaw, _ := header["x5c"].([]any)
	x5c := make([]string, 0, len(x5cRaw))
	for _, v := range x5cRaw {
		s, ok := v.(string)
		if !ok {
			return nil, walleterrors.New(walleterrors.KindInvalidSignature, "x5c entry is not a string")
		}
		x5c = append(x5c, s)
	}

	chain, err := pki.ParseX5C(x5c)
	if err != nil {
		return nil, walleterrors.New(walleterrors.KindInvalidSignature, fmt.Sprintf("invalid x5c chain: %v", err))
	}

	return &RequestObject{Compact: compact, Header: header, Payload: payload, Chain: chain}, nil
}

// ValidateJWT verifies the compact JWS signature over header.payload using
// the x5c[0] leaf certificate's public key and the header's alg, which must
// be in AllowedAlgorithms. Pure over the request object bytes and the
// current instant.
func ValidateJWT(ro *RequestObject) error {
	if len(ro.Chain) == 0 {
		return walleterrors.New(walleterrors.KindInvalidSignature, "x5c chain is empty")
	}
	leaf := ro.Chain[0]

	alg, _ := ro.Header["alg"].(string)
	if !slices.Contains(AllowedAlgorithms, alg) {
		return walleterrors.New(walleterrors.KindInvalidSignature, fmt.Sprintf("alg %q is not in the allowed signing algorithm whitelist", alg))
	}

	parser := jwt.NewParser(jwt.WithValidMethods(AllowedAlgorithms))
	_, err := parser.Parse(ro.Compact, func(token *jwt.Token) (any, error) {
		return leaf.PublicKey, nil
	})
	if err != nil {
		return walleterrors.New(walleterrors.KindInvalidSignature, err.Error())
	}

	return nil
}

// ValidateTrustChain reconstructs the certificate chain from x5c (leaf to
// root) and verifies each adjacent pair, plus each certificate's validity
// window against now. A single-element chain is accepted only when
// self-signed.
func ValidateTrustChain(ro *RequestObject) error {
	now := time.Now()

	for _, cert := range ro.Chain {
		if now.Before(cert.NotBefore) || now.After(cert.NotAfter) {
			return walleterrors.New(walleterrors.KindTrustChainInvalid, fmt.Sprintf("certificate %q is outside its validity window", cert.Subject.CommonName))
		}
	}

	if len(ro.Chain) == 1 {
		if !pki.IsSelfSigned(ro.Chain[0]) {
			return walleterrors.New(walleterrors.KindTrustChainInvalid, "single non-self-signed")
		}
		return nil
	}

	for i := 0; i < len(ro.Chain)-1; i++ {
		child, parent := ro.Chain[i], ro.Chain[i+1]
		if err := pki.VerifyPair(child, parent); err != nil {
			return walleterrors.New(walleterrors.KindTrustChainInvalid, fmt.Sprintf("certificate %d was not signed by certificate %d: %v", i, i+1, err))
		}
	}

	return nil
}

// ValidateSANName checks the payload's client_id against the leaf
// certificate's Subject Alternative Name extension, per the request's
// client_id_scheme.
func ValidateSANName(ro *RequestObject) error {
	if len(ro.Chain) == 0 {
		return walleterrors.New(walleterrors.KindClientIdBindingMismatch, "x5c chain is empty")
	}
	leaf := ro.Chain[0]

	switch ro.Payload.ClientIDScheme {
	case ClientIDSchemeX509SanDNS:
		if slices.Contains(leaf.DNSNames, ro.Payload.ClientID) {
			return nil
		}
		return walleterrors.New(walleterrors.KindClientIdBindingMismatch,
			fmt.Sprintf("client_id %q not found in leaf certificate SAN dNSName entries", ro.Payload.ClientID))

	case ClientIDSchemeX509SanURI:
		want, err := normalizeURI(ro.Payload.ClientID)
		if err != nil {
			return walleterrors.New(walleterrors.KindClientIdBindingMismatch, fmt.Sprintf("client_id is not a valid URI: %v", err))
		}
		for _, uri := range leaf.URIs {
			if normalizeParsedURI(uri) == want {
				return nil
			}
		}
		return walleterrors.New(walleterrors.KindClientIdBindingMismatch,
			fmt.Sprintf("client_id %q not found in leaf certificate SAN URI entries", ro.Payload.ClientID))

	default:
		return walleterrors.New(walleterrors.KindClientIdBindingMismatch, fmt.Sprintf("unsupported client_id_scheme %q", ro.Payload.ClientIDScheme))
	}
}

func normalizeURI(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	return normalizeParsedURI(u), nil
}

func normalizeParsedURI(u *url.URL) string {
	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	port := u.Port()

	isDefaultPort := (scheme == "http" && port == "80") || (scheme == "https" && port == "443")
	hostport := host
	if port != "" && !isDefaultPort {
		hostport = host + ":" + port
	}

	return fmt.Sprintf("%s://%s%s", scheme, hostport, u.EscapedPath())
}
