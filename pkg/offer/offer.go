// Package offer implements the offer & metadata resolver (C3): parsing a
// credential-offer URI, fetching issuer and authorization-server metadata,
// and filtering display content to a requested locale.
package offer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"walletcore/pkg/identifier"
	"walletcore/pkg/walletclient"
	"walletcore/pkg/walleterrors"
)

// GrantAuthorizationCode is the offer's authorization_code grant payload.
type GrantAuthorizationCode struct {
	IssuerState string `json:"issuer_state,omitempty"`
}

// GrantPreAuthorizedCode is the offer's pre-authorized_code grant payload.
type GrantPreAuthorizedCode struct {
	PreAuthorizedCode string  `json:"pre-authorized_code"`
	TxCode            *TxCode `json:"tx_code,omitempty"`
}

// TxCode describes the transaction-code prompt the holder must present to
// the user for a pre-authorized-code grant.
type TxCode struct {
	InputMode   string `json:"input_mode,omitempty"`
	Length      int    `json:"length,omitempty"`
	Description string `json:"description,omitempty"`
}

// Grants holds at most one of the two supported grant shapes, per spec.md
// §3's invariant that a grant set is decodable only if at least one is
// present.
type Grants struct {
	AuthorizationCode *GrantAuthorizationCode `json:"authorization_code,omitempty"`
	PreAuthorizedCode *GrantPreAuthorizedCode `json:"urn:ietf:params:oauth:grant-type:pre-authorized_code,omitempty"`
}

// CredentialOffer is the parsed, validated offer payload.
type CredentialOffer struct {
	CredentialIssuer           string
	CredentialConfigurationIDs []string
	Grants                     *Grants
}

// rawOffer mirrors the OID4VCI draft-13 wire shape before validation.
type rawOffer struct {
	CredentialIssuer           string          `json:"credential_issuer"`
	CredentialConfigurationIDs []string        `json:"credential_configuration_ids"`
	Grants                     json.RawMessage `json:"grants"`
}

// Logo mirrors credential.Logo; kept distinct here since C3 has no
// dependency on C2.
type Logo struct {
	URL     string `json:"url"`
	AltText string `json:"alt_text,omitempty"`
}

// Display is a single per-locale display descriptor as carried in issuer
// metadata, prior to locale filtering.
type Display struct {
	Locale          string `json:"locale,omitempty"`
	Name            string `json:"name,omitempty"`
	Logo            *Logo  `json:"logo,omitempty"`
	BackgroundColor string `json:"background_color,omitempty"`
	TextColor       string `json:"text_color,omitempty"`
}

// ConfigurationKind tags which of the two credential format variants a
// CredentialConfiguration carries.
type ConfigurationKind int

// Configuration kinds.
const (
	KindSdJwt ConfigurationKind = iota
	KindMdoc
)

// CredentialConfiguration is the tagged-variant description of one
// credential_configuration_id entry in issuer metadata.
type CredentialConfiguration struct {
	Kind     ConfigurationKind
	Vct      string
	DocType  string
	Scope    string
	Displays []Display
}

// IssuerMetadata is the merged issuer descriptor: its URL, the
// authorization-server URLs it advertises (if any), and its configuration
// catalog.
type IssuerMetadata struct {
	CredentialIssuer         string
	CredentialEndpoint       string
	AuthorizationServers     []string
	CredentialConfigurations map[string]CredentialConfiguration
}

// rawConfiguration mirrors the wire shape of one credential_configurations_supported entry.
type rawConfiguration struct {
	Format  string    `json:"format"`
	Vct     string    `json:"vct,omitempty"`
	Doctype string    `json:"doctype,omitempty"`
	Scope   string    `json:"scope,omitempty"`
	Display []Display `json:"display,omitempty"`
}

type rawIssuerMetadata struct {
	CredentialIssuer                  string                      `json:"credential_issuer"`
	CredentialEndpoint                string                      `json:"credential_endpoint"`
	AuthorizationServers              []string                    `json:"authorization_servers,omitempty"`
	CredentialConfigurationsSupported map[string]rawConfiguration `json:"credential_configurations_supported"`
}

// AuthorizationServerMetadata is the opaque-passthrough AS descriptor from
// spec.md §3: only the three endpoints this core dispatches to are parsed.
type AuthorizationServerMetadata struct {
	PushedAuthorizationRequestEndpoint string `json:"pushed_authorization_request_endpoint"`
	AuthorizationEndpoint              string `json:"authorization_endpoint"`
	TokenEndpoint                      string `json:"token_endpoint"`
}

// CredentialOfferMetadata is C3's output: the validated offer merged with
// the issuer's metadata document.
type CredentialOfferMetadata struct {
	Offer          CredentialOffer
	IssuerMetadata IssuerMetadata
}

// Resolver fetches and parses credential-offer URIs against a configurable
// HTTP client, per spec.md §4.3.
type Resolver struct {
	HTTP *walletclient.Client
}

// NewResolver constructs a Resolver over the given HTTP client.
func NewResolver(httpClient *walletclient.Client) *Resolver {
	return &Resolver{HTTP: httpClient}
}

// Resolve parses a credential-offer URI, fetches issuer metadata, and
// filters display content to locale (falling back to identifier.DefaultLocale
// when empty).
func (r *Resolver) Resolve(ctx context.Context, offerURI string, locale identifier.Locale) (*CredentialOfferMetadata, error) {
	parsedOffer, err := r.parseOfferURI(ctx, offerURI)
	if err != nil {
		return nil, err
	}

	issuerMeta, err := r.fetchIssuerMetadata(ctx, parsedOffer.CredentialIssuer)
	if err != nil {
		return nil, err
	}

	filterDisplays(issuerMeta, locale)

	return &CredentialOfferMetadata{
		Offer:          *parsedOffer,
		IssuerMetadata: *issuerMeta,
	}, nil
}

// parseOfferURI decodes either the inline credential_offer= JSON or fetches
// credential_offer_uri= over HTTPS, then validates the grant invariant.
func (r *Resolver) parseOfferURI(ctx context.Context, offerURI string) (*CredentialOffer, error) {
	parsed, err := url.Parse(offerURI)
	if err != nil {
		return nil, walleterrors.WithReasons(walleterrors.KindOfferMalformed,
			walleterrors.FieldReason{Field: "uri", Reason: fmt.Sprintf("not a valid URI: %v", err)})
	}

	query := parsed.Query()
	var raw []byte

	switch {
	case query.Has("credential_offer"):
		raw = []byte(query.Get("credential_offer"))
	case query.Has("credential_offer_uri"):
		fetchURL := query.Get("credential_offer_uri")
		var body json.RawMessage
		if _, err := r.HTTP.GetJSON(ctx, fetchURL, &body); err != nil {
			return nil, err
		}
		raw = body
	default:
		return nil, walleterrors.WithReasons(walleterrors.KindOfferMalformed,
			walleterrors.FieldReason{Field: "uri", Reason: "neither credential_offer nor credential_offer_uri is present"})
	}

	var ro rawOffer
	if err := json.Unmarshal(raw, &ro); err != nil {
		return nil, walleterrors.WithReasons(walleterrors.KindOfferMalformed,
			walleterrors.FieldReason{Field: "credential_offer", Reason: fmt.Sprintf("invalid JSON: %v", err)})
	}

	var reasons []walleterrors.FieldReason
	if ro.CredentialIssuer == "" {
		reasons = append(reasons, walleterrors.FieldReason{Field: "credential_issuer", Reason: "must not be empty"})
	}
	if len(ro.CredentialConfigurationIDs) == 0 {
		reasons = append(reasons, walleterrors.FieldReason{Field: "credential_configuration_ids", Reason: "must not be empty"})
	}

	grants, grantErr := parseGrants(ro.Grants)
	if grantErr != nil {
		reasons = append(reasons, *grantErr)
	}

	if len(reasons) > 0 {
		return nil, walleterrors.WithReasons(walleterrors.KindOfferMalformed, reasons...)
	}

	return &CredentialOffer{
		CredentialIssuer:           ro.CredentialIssuer,
		CredentialConfigurationIDs: ro.CredentialConfigurationIDs,
		Grants:                     grants,
	}, nil
}

func parseGrants(raw json.RawMessage) (*Grants, *walleterrors.FieldReason) {
	if len(raw) == 0 {
		return nil, &walleterrors.FieldReason{Field: "grants", Reason: "at least one grant must be decodable"}
	}

	var g Grants
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, &walleterrors.FieldReason{Field: "grants", Reason: fmt.Sprintf("invalid JSON: %v", err)}
	}

	if g.AuthorizationCode == nil && g.PreAuthorizedCode == nil {
		return nil, &walleterrors.FieldReason{Field: "grants", Reason: "at least one grant must be decodable"}
	}
	if g.AuthorizationCode != nil && g.PreAuthorizedCode != nil {
		return nil, &walleterrors.FieldReason{Field: "grants", Reason: "at most one grant may be present"}
	}

	return &g, nil
}

// FetchIssuerMetadataOnly re-fetches issuer metadata for a known issuer URL,
// without an accompanying offer. Used by the authorization driver (C5) to
// reload configuration metadata when dispatching a credential request.
func (r *Resolver) FetchIssuerMetadataOnly(ctx context.Context, issuerURL string) (*IssuerMetadata, error) {
	return r.fetchIssuerMetadata(ctx, issuerURL)
}

// fetchIssuerMetadata fetches and decodes issuer metadata, per spec.md §4.3.
func (r *Resolver) fetchIssuerMetadata(ctx context.Context, issuerURL string) (*IssuerMetadata, error) {
	metaURL, err := joinWellKnown(issuerURL, ".well-known/openid-credential-issuer")
	if err != nil {
		return nil, walleterrors.WithReasons(walleterrors.KindOfferMalformed,
			walleterrors.FieldReason{Field: "credential_issuer", Reason: err.Error()})
	}

	var raw rawIssuerMetadata
	if _, err := r.HTTP.GetJSON(ctx, metaURL, &raw); err != nil {
		return nil, err
	}

	configs := make(map[string]CredentialConfiguration, len(raw.CredentialConfigurationsSupported))
	for id, rc := range raw.CredentialConfigurationsSupported {
		cfg := CredentialConfiguration{
			Scope:    rc.Scope,
			Displays: rc.Display,
		}
		// The variant (SD-JWT vs mdoc) is authoritative over format, per
		// spec.md §4.6's tie-break rule: presence of vct vs doctype decides.
		if rc.Vct != "" {
			cfg.Kind = KindSdJwt
			cfg.Vct = rc.Vct
		} else {
			cfg.Kind = KindMdoc
			cfg.DocType = rc.Doctype
		}
		configs[id] = cfg
	}

	return &IssuerMetadata{
		CredentialIssuer:         raw.CredentialIssuer,
		CredentialEndpoint:       raw.CredentialEndpoint,
		AuthorizationServers:     raw.AuthorizationServers,
		CredentialConfigurations: configs,
	}, nil
}

// FetchAuthorizationServerMetadata resolves and fetches the
// authorization-server metadata document for the given issuer metadata, per
// spec.md §4.5 step 4 / §6.
func (r *Resolver) FetchAuthorizationServerMetadata(ctx context.Context, issuerMeta *IssuerMetadata) (*AuthorizationServerMetadata, error) {
	metaURL, err := r.ResolveAuthorizationServerMetadataURL(issuerMeta)
	if err != nil {
		return nil, walleterrors.WithReasons(walleterrors.KindOfferMalformed,
			walleterrors.FieldReason{Field: "credential_issuer", Reason: err.Error()})
	}

	var asMeta AuthorizationServerMetadata
	if _, err := r.HTTP.GetJSON(ctx, metaURL, &asMeta); err != nil {
		return nil, err
	}
	return &asMeta, nil
}

// ResolveAuthorizationServerMetadataURL returns the URL of the
// authorization-server metadata for the given issuer metadata, without
// fetching it: it prefers the first advertised
// authorization_servers entry and falling back to the derived well-known
// URL per spec.md §6.
func (r *Resolver) ResolveAuthorizationServerMetadataURL(issuerMeta *IssuerMetadata) (string, error) {
	if len(issuerMeta.AuthorizationServers) > 0 {
		return issuerMeta.AuthorizationServers[0], nil
	}
	return deriveAuthorizationServerURL(issuerMeta.CredentialIssuer)
}

// deriveAuthorizationServerURL implements spec.md §6's bit-exact rule.
func deriveAuthorizationServerURL(issuerURL string) (string, error) {
	parsed, err := url.Parse(issuerURL)
	if err != nil {
		return "", fmt.Errorf("offer: invalid issuer URL: %w", err)
	}

	path := parsed.Path
	if path == "" || path == "/" {
		return fmt.Sprintf("%s://%s/.well-known/oauth-authorization-server", parsed.Scheme, parsed.Host), nil
	}

	trimmed := strings.TrimSuffix(path, "/")
	return fmt.Sprintf("%s://%s/.well-known/oauth-authorization-server%s", parsed.Scheme, parsed.Host, trimmed), nil
}

func joinWellKnown(issuerURL, suffix string) (string, error) {
	parsed, err := url.Parse(issuerURL)
	if err != nil {
		return "", fmt.Errorf("invalid issuer URL: %w", err)
	}
	base := strings.TrimSuffix(parsed.String(), "/")
	return base + "/" + suffix, nil
}

// filterDisplays filters every configuration's Displays to the requested
// locale, falling back to identifier.DefaultLocale when locale is the zero
// value or when no display matches the requested locale. A configuration
// with no display in either locale is left with an empty Displays slice
// rather than an error: display is advisory, not required.
func filterDisplays(meta *IssuerMetadata, locale identifier.Locale) {
	want := locale.String()
	if want == "" {
		want = identifier.DefaultLocale.String()
	}

	for id, cfg := range meta.CredentialConfigurations {
		var filtered []Display
		for _, d := range cfg.Displays {
			if d.Locale == want {
				filtered = append(filtered, d)
			}
		}
		if len(filtered) == 0 && want != identifier.DefaultLocale.String() {
			for _, d := range cfg.Displays {
				if d.Locale == identifier.DefaultLocale.String() {
					filtered = append(filtered, d)
				}
			}
		}
		cfg.Displays = filtered
		meta.CredentialConfigurations[id] = cfg
	}
}
