package authflow

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"walletcore/pkg/credential"
	"walletcore/pkg/holderkey"
	"walletcore/pkg/issuance"
	"walletcore/pkg/offer"
	"walletcore/pkg/session"
	"walletcore/pkg/walletclient"
)

func newTestDriver() *Driver {
	httpClient := walletclient.New(nil)
	sessions := session.New(0)
	dispatcher := issuance.NewDispatcher(httpClient, holderkey.NewService())
	resolver := offer.NewResolver(httpClient)
	return NewDriver(httpClient, sessions, dispatcher, resolver)
}

func startIssuerAndAS(t *testing.T, credentialJSON string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	var srv *httptest.Server

	mux.HandleFunc("/.well-known/openid-credential-issuer", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"credential_issuer":   srv.URL,
			"credential_endpoint": srv.URL + "/credential",
			"credential_configurations_supported": map[string]any{
				"pid-sd-jwt": map[string]any{
					"vct":   "urn:eudi:pid:1",
					"scope": "pid",
				},
			},
		})
	})
	mux.HandleFunc("/.well-known/oauth-authorization-server", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"pushed_authorization_request_endpoint": srv.URL + "/par",
			"authorization_endpoint":                srv.URL + "/authorize",
			"token_endpoint":                        srv.URL + "/token",
		})
	})
	mux.HandleFunc("/par", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"request_uri": "urn:ietf:params:oauth:request_uri:abc", "expires_in": 60})
	})
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"access_token": "access-token-1", "token_type": "Bearer", "c_nonce": "nonce-1"})
	})
	mux.HandleFunc("/credential", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"credential": credentialJSON})
	})

	srv = httptest.NewServer(mux)
	return srv
}

func TestAcceptOffer_PreAuthorizedCodeSdJwtHappyPath(t *testing.T) {
	srv := startIssuerAndAS(t, "header.payload.sig~")
	defer srv.Close()

	meta := &offer.CredentialOfferMetadata{
		Offer: offer.CredentialOffer{
			CredentialIssuer:           srv.URL,
			CredentialConfigurationIDs: []string{"pid-sd-jwt"},
			Grants: &offer.Grants{
				PreAuthorizedCode: &offer.GrantPreAuthorizedCode{PreAuthorizedCode: "pre-auth-code-1"},
			},
		},
		IssuerMetadata: offer.IssuerMetadata{CredentialIssuer: srv.URL},
	}

	driver := newTestDriver()
	record, err := driver.AcceptOffer(t.Context(), meta, "")
	require.NoError(t, err)

	sdJwtRecord, ok := record.(*credential.SdJwtRecord)
	require.True(t, ok)
	assert.Equal(t, "urn:eudi:pid:1", sdJwtRecord.Vct.String())
}

func TestAcceptOffer_RejectsOfferWithoutPreAuthorizedGrant(t *testing.T) {
	driver := newTestDriver()
	meta := &offer.CredentialOfferMetadata{
		Offer: offer.CredentialOffer{CredentialConfigurationIDs: []string{"pid-sd-jwt"}},
	}

	_, err := driver.AcceptOffer(t.Context(), meta, "")
	assert.Error(t, err)
}

func TestInitiateAuthFlow_BuildsAuthorizationURI(t *testing.T) {
	srv := startIssuerAndAS(t, "header.payload.sig~")
	defer srv.Close()

	meta := &offer.CredentialOfferMetadata{
		Offer: offer.CredentialOffer{
			CredentialIssuer:           srv.URL,
			CredentialConfigurationIDs: []string{"pid-sd-jwt"},
			Grants: &offer.Grants{
				AuthorizationCode: &offer.GrantAuthorizationCode{IssuerState: "state-xyz"},
			},
		},
		IssuerMetadata: offer.IssuerMetadata{
			CredentialIssuer: srv.URL,
			CredentialConfigurations: map[string]offer.CredentialConfiguration{
				"pid-sd-jwt": {Kind: offer.KindSdJwt, Vct: "urn:eudi:pid:1", Scope: "pid"},
			},
		},
	}

	driver := newTestDriver()
	authURI, err := driver.InitiateAuthFlow(t.Context(), meta, ClientOptions{ClientID: "wallet-1", RedirectURI: "https://wallet.example.com/cb"})
	require.NoError(t, err)

	parsed, err := url.Parse(authURI)
	require.NoError(t, err)
	assert.Equal(t, "wallet-1", parsed.Query().Get("client_id"))
	assert.NotEmpty(t, parsed.Query().Get("request_uri"))
}

func TestRequestCredential_UnknownSessionFails(t *testing.T) {
	driver := newTestDriver()
	_, err := driver.RequestCredential(t.Context(), "does-not-exist", "code")
	assert.Error(t, err)
}
