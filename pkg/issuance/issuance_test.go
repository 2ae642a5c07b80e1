package issuance

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"walletcore/pkg/credential"
	"walletcore/pkg/holderkey"
	"walletcore/pkg/offer"
	"walletcore/pkg/walletclient"
	"walletcore/pkg/walleterrors"
)

func newDispatcher() *Dispatcher {
	return NewDispatcher(walletclient.New(nil), holderkey.NewService())
}

func TestRequestCredential_SdJwt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req proofRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "vc+sd-jwt", req.Format)
		assert.Equal(t, ProofTypeJWT, req.Proof.ProofType)
		assert.NotEmpty(t, req.Proof.JWT)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(credentialResponse{Credential: "header.payload.sig~"})
	}))
	defer srv.Close()

	dispatcher := newDispatcher()
	config := offer.CredentialConfiguration{Kind: offer.KindSdJwt, Vct: "urn:eudi:pid:1"}
	issuerMeta := offer.IssuerMetadata{CredentialIssuer: srv.URL, CredentialEndpoint: srv.URL}

	result, err := dispatcher.RequestCredential(t.Context(), config, issuerMeta, "access-token", "nonce-1", &ClientOptions{ClientID: "wallet-1"}, "set-1", nil, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, result.KeyID)

	sdJwtRecord, ok := result.Record.(*credential.SdJwtRecord)
	require.True(t, ok)
	assert.Equal(t, "urn:eudi:pid:1", sdJwtRecord.Vct.String())
	assert.Equal(t, result.KeyID, sdJwtRecord.KeyID())
}

func TestRequestCredential_DeferredIssuanceIsRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(credentialResponse{TransactionID: "txn-1"})
	}))
	defer srv.Close()

	dispatcher := newDispatcher()
	config := offer.CredentialConfiguration{Kind: offer.KindSdJwt, Vct: "urn:eudi:pid:1"}
	issuerMeta := offer.IssuerMetadata{CredentialIssuer: srv.URL, CredentialEndpoint: srv.URL}

	_, err := dispatcher.RequestCredential(t.Context(), config, issuerMeta, "access-token", "", nil, "", nil, nil)
	require.Error(t, err)

	werr, ok := err.(*walleterrors.Error)
	require.True(t, ok)
	assert.Equal(t, walleterrors.KindDeferredIssuanceNotSupported, werr.Kind)
}

func TestRequestCredential_TransportFailureIsClassified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	dispatcher := newDispatcher()
	config := offer.CredentialConfiguration{Kind: offer.KindSdJwt, Vct: "urn:eudi:pid:1"}
	issuerMeta := offer.IssuerMetadata{CredentialIssuer: srv.URL, CredentialEndpoint: srv.URL}

	_, err := dispatcher.RequestCredential(t.Context(), config, issuerMeta, "access-token", "", nil, "", nil, nil)
	require.Error(t, err)

	werr, ok := err.(*walleterrors.Error)
	require.True(t, ok)
	assert.Equal(t, walleterrors.KindCredentialRequestFailed, werr.Kind)
	assert.Equal(t, http.StatusForbidden, werr.Status)
}
