package identifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCredentialID_IsUnique(t *testing.T) {
	a := NewCredentialID()
	b := NewCredentialID()
	assert.NotEqual(t, a.String(), b.String())
}

func TestCredentialIDFromString_RoundTrips(t *testing.T) {
	id := NewCredentialID()
	reconstructed := CredentialIDFromString(id.String())
	assert.Equal(t, id, reconstructed)
}

func TestNewDocType(t *testing.T) {
	t.Run("rejects empty", func(t *testing.T) {
		_, err := NewDocType("  ")
		assert.Error(t, err)
	})
	t.Run("accepts non-empty", func(t *testing.T) {
		dt, err := NewDocType("org.iso.18013.5.1.mDL")
		require.NoError(t, err)
		assert.Equal(t, "org.iso.18013.5.1.mDL", dt.String())
	})
}

func TestNewVct(t *testing.T) {
	t.Run("rejects empty", func(t *testing.T) {
		_, err := NewVct("")
		assert.Error(t, err)
	})
	t.Run("accepts non-empty", func(t *testing.T) {
		vct, err := NewVct("urn:eudi:pid:1")
		require.NoError(t, err)
		assert.Equal(t, "urn:eudi:pid:1", vct.String())
	})
}

func TestNewScope(t *testing.T) {
	_, err := NewScope("")
	assert.Error(t, err)

	scope, err := NewScope("pid")
	require.NoError(t, err)
	assert.Equal(t, "pid", scope.String())
}

func TestNewLocale(t *testing.T) {
	t.Run("rejects empty", func(t *testing.T) {
		_, err := NewLocale("")
		assert.Error(t, err)
	})
	t.Run("rejects malformed tag", func(t *testing.T) {
		_, err := NewLocale("not a bcp47 tag!!")
		assert.Error(t, err)
	})
	t.Run("canonicalizes a valid tag", func(t *testing.T) {
		loc, err := NewLocale("en-us")
		require.NoError(t, err)
		assert.Equal(t, "en-US", loc.String())
	})
}

func TestDefaultLocale(t *testing.T) {
	assert.Equal(t, "en-US", DefaultLocale.String())
}
