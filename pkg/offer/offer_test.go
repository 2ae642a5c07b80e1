package offer

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"walletcore/pkg/identifier"
	"walletcore/pkg/walletclient"
)

func newTestResolver() *Resolver {
	return NewResolver(walletclient.New(nil))
}

func TestResolve_PreAuthorizedCodeOffer(t *testing.T) {
	issuerMeta := rawIssuerMetadata{
		CredentialIssuer:   "", // filled in below once the server URL is known
		CredentialEndpoint: "/credential",
		CredentialConfigurationsSupported: map[string]rawConfiguration{
			"pid-sd-jwt": {Vct: "urn:eudi:pid:1", Scope: "pid", Display: []Display{{Locale: "en-US", Name: "PID"}}},
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-credential-issuer", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(issuerMeta)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	issuerMeta.CredentialIssuer = srv.URL

	offerJSON, err := json.Marshal(map[string]any{
		"credential_issuer":            srv.URL,
		"credential_configuration_ids": []string{"pid-sd-jwt"},
		"grants": map[string]any{
			"urn:ietf:params:oauth:grant-type:pre-authorized_code": map[string]any{
				"pre-authorized_code": "abc123",
			},
		},
	})
	require.NoError(t, err)

	offerURI := "openid-credential-offer://?credential_offer=" + url.QueryEscape(string(offerJSON))

	resolver := newTestResolver()
	meta, err := resolver.Resolve(t.Context(), offerURI, identifier.DefaultLocale)
	require.NoError(t, err)

	assert.Equal(t, srv.URL, meta.Offer.CredentialIssuer)
	assert.Equal(t, []string{"pid-sd-jwt"}, meta.Offer.CredentialConfigurationIDs)
	require.NotNil(t, meta.Offer.Grants.PreAuthorizedCode)
	assert.Equal(t, "abc123", meta.Offer.Grants.PreAuthorizedCode.PreAuthorizedCode)

	cfg, ok := meta.IssuerMetadata.CredentialConfigurations["pid-sd-jwt"]
	require.True(t, ok)
	assert.Equal(t, KindSdJwt, cfg.Kind)
	assert.Equal(t, "urn:eudi:pid:1", cfg.Vct)
	require.Len(t, cfg.Displays, 1)
	assert.Equal(t, "PID", cfg.Displays[0].Name)
}

func TestParseOfferURI_RejectsMissingGrants(t *testing.T) {
	resolver := newTestResolver()
	offerJSON := `{"credential_issuer":"https://issuer.example.com","credential_configuration_ids":["pid-sd-jwt"]}`
	offerURI := "openid-credential-offer://?credential_offer=" + url.QueryEscape(offerJSON)

	_, err := resolver.parseOfferURI(t.Context(), offerURI)
	assert.Error(t, err)
}

func TestParseOfferURI_RejectsNeitherOfferParam(t *testing.T) {
	resolver := newTestResolver()
	_, err := resolver.parseOfferURI(t.Context(), "openid-credential-offer://?foo=bar")
	assert.Error(t, err)
}

func TestDeriveAuthorizationServerURL(t *testing.T) {
	cases := []struct {
		name   string
		issuer string
		want   string
	}{
		{"root path", "https://issuer.example.com", "https://issuer.example.com/.well-known/oauth-authorization-server"},
		{"with path", "https://issuer.example.com/org/pid", "https://issuer.example.com/.well-known/oauth-authorization-server/org/pid"},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := deriveAuthorizationServerURL(c.issuer)
			require.NoError(t, err)
			assert.Equal(t, c.want, got)
		})
	}
}

func TestResolveAuthorizationServerMetadataURL_PrefersAdvertised(t *testing.T) {
	meta := &IssuerMetadata{
		CredentialIssuer:     "https://issuer.example.com",
		AuthorizationServers: []string{"https://as.example.com"},
	}
	resolver := newTestResolver()

	got, err := resolver.ResolveAuthorizationServerMetadataURL(meta)
	require.NoError(t, err)
	assert.Equal(t, "https://as.example.com", got)
}

func TestFilterDisplays_FallsBackToDefaultLocale(t *testing.T) {
	meta := &IssuerMetadata{
		CredentialConfigurations: map[string]CredentialConfiguration{
			"pid-sd-jwt": {
				Displays: []Display{
					{Locale: "en-US", Name: "PID (English)"},
					{Locale: "sv-SE", Name: "PID (Svenska)"},
				},
			},
		},
	}

	loc, err := identifier.NewLocale("fr-FR")
	require.NoError(t, err)
	filterDisplays(meta, loc)

	cfg := meta.CredentialConfigurations["pid-sd-jwt"]
	require.Len(t, cfg.Displays, 1)
	assert.Equal(t, "PID (English)", cfg.Displays[0].Name)
}
