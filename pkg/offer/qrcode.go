package offer

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/png"

	"github.com/skip2/go-qrcode"
)

// QRCode is a base64-encoded PNG rendering of a credential offer URI,
// suitable for display in a presenting wallet's "scan to accept" screen.
type QRCode struct {
	Base64PNG string `json:"base64_png"`
	URI       string `json:"uri"`
}

// GenerateOfferQR renders offerURI (the credential_offer/credential_offer_uri
// deep link, not the resolved metadata) as a QR code at the given pixel size.
// size of 0 defaults to 256.
func GenerateOfferQR(offerURI string, size int) (*QRCode, error) {
	if size == 0 {
		size = 256
	}

	qr, err := qrcode.New(offerURI, qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("offer: failed to create QR code: %w", err)
	}

	var buf bytes.Buffer
	encoder := base64.NewEncoder(base64.StdEncoding, &buf)
	if err := png.Encode(encoder, qr.Image(size)); err != nil {
		return nil, fmt.Errorf("offer: failed to encode QR code: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return nil, err
	}

	return &QRCode{Base64PNG: buf.String(), URI: offerURI}, nil
}
