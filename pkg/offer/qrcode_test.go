package offer

import (
	"bytes"
	"encoding/base64"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateOfferQR(t *testing.T) {
	uri := "openid-credential-offer://?credential_offer_uri=https://issuer.example.com/offer/123"

	qr, err := GenerateOfferQR(uri, 0)
	require.NoError(t, err)
	assert.Equal(t, uri, qr.URI)
	require.NotEmpty(t, qr.Base64PNG)

	raw, err := base64.StdEncoding.DecodeString(qr.Base64PNG)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, 256, img.Bounds().Dx())
}

func TestGenerateOfferQR_CustomSize(t *testing.T) {
	qr, err := GenerateOfferQR("https://issuer.example.com/offer/123", 128)
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(qr.Base64PNG)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, 128, img.Bounds().Dx())
}
