// Package pki provides X.509 certificate parsing and chain-verification
// helpers shared by the OpenID4VP request-object authenticator.
package pki

import (
	"bytes"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
)

// ParseX5C decodes an ordered x5c header (leaf first) into certificates.
// x5c entries are standard (padded) base64-encoded DER, per RFC 7515 §4.1.6.
func ParseX5C(x5c []string) ([]*x509.Certificate, error) {
	if len(x5c) == 0 {
		return nil, errors.New("x5c chain is empty")
	}

	chain := make([]*x509.Certificate, 0, len(x5c))
	for i, entry := range x5c {
		der, err := base64.StdEncoding.DecodeString(entry)
		if err != nil {
			return nil, fmt.Errorf("x5c[%d]: invalid base64: %w", i, err)
		}
		cert, err := x509.ParseCertificate(der)
		if err != nil {
			return nil, fmt.Errorf("x5c[%d]: invalid certificate: %w", i, err)
		}
		chain = append(chain, cert)
	}
	return chain, nil
}

// IsSelfSigned reports whether cert's issuer and subject match and the
// certificate verifies under its own public key.
func IsSelfSigned(cert *x509.Certificate) bool {
	if !bytes.Equal(cert.RawIssuer, cert.RawSubject) {
		return false
	}
	return cert.CheckSignature(cert.SignatureAlgorithm, cert.RawTBSCertificate, cert.Signature) == nil
}

// VerifyPair reports whether parent signed child.
func VerifyPair(child, parent *x509.Certificate) error {
	return child.CheckSignatureFrom(parent)
}
