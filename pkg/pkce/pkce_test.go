package pkce

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChallenge_RFC7636Vector(t *testing.T) {
	const verifier = "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	const want = "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM"

	assert.Equal(t, want, Challenge(verifier))
}

func TestGenerate(t *testing.T) {
	pair, err := Generate()
	require.NoError(t, err)

	assert.NotEmpty(t, pair.Verifier)
	assert.GreaterOrEqual(t, len(pair.Verifier), 43)
	assert.LessOrEqual(t, len(pair.Verifier), 128)
	assert.Equal(t, Challenge(pair.Verifier), pair.Challenge)

	other, err := Generate()
	require.NoError(t, err)
	assert.NotEqual(t, pair.Verifier, other.Verifier)
}
