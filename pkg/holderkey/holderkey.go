// Package holderkey implements the small capability interface the credential
// request dispatcher (C6) uses to obtain a fresh proof-of-possession key.
// Key generation policy itself is a non-goal of the holder core; this
// package supplies the default ECDSA-backed implementation of the interface
// the core depends on.
package holderkey

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// p256CoordinateSize is the fixed byte width of a P-256 curve coordinate;
// JWK requires fixed-width, left-zero-padded x/y values, not the variable
// width big.Int.Bytes() returns.
const p256CoordinateSize = 32

// Key is a holder-held proof-of-possession key.
type Key struct {
	ID         string
	PrivateKey *ecdsa.PrivateKey
}

// SigningMethod is the jwt/v5 signing method this key proves possession
// under.
func (k *Key) SigningMethod() jwt.SigningMethod {
	return jwt.SigningMethodES256
}

// JWK returns the public components of the key in JSON Web Key form, for
// embedding in a proof JWT's header. x and y are base64url-encoded
// (unpadded) per RFC 7518 §6.2.1, not the standard-alphabet encoding
// encoding/json would otherwise apply to a raw []byte field.
func (k *Key) JWK() map[string]any {
	x := k.PrivateKey.PublicKey.X.FillBytes(make([]byte, p256CoordinateSize))
	y := k.PrivateKey.PublicKey.Y.FillBytes(make([]byte, p256CoordinateSize))
	return map[string]any{
		"kty": "EC",
		"crv": "P-256",
		"x":   base64.RawURLEncoding.EncodeToString(x),
		"y":   base64.RawURLEncoding.EncodeToString(y),
	}
}

// Service requests fresh holder keys bound to proof-of-possession, per
// spec.md §9's cryptographic capability interface.
type Service interface {
	RequestKey() (*Key, error)
}

// ecdsaService is the default in-process ECDSA P-256 key service.
type ecdsaService struct{}

// NewService constructs the default holder key service.
func NewService() Service {
	return &ecdsaService{}
}

// RequestKey generates a fresh ECDSA P-256 key pair and assigns it a fresh
// key id, per spec.md §4.6 step 1.
func (s *ecdsaService) RequestKey() (*Key, error) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("holderkey: generating key: %w", err)
	}
	return &Key{ID: uuid.NewString(), PrivateKey: priv}, nil
}
