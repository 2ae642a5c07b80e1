// Package authflow implements the authorization driver (C5): it drives the
// PAR + authorization-code + PKCE flow or the pre-authorized-code flow
// through to an access token, then hands off to the credential request
// dispatcher (C6).
package authflow

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"walletcore/pkg/credential"
	"walletcore/pkg/issuance"
	"walletcore/pkg/offer"
	"walletcore/pkg/pkce"
	"walletcore/pkg/session"
	"walletcore/pkg/walletclient"
	"walletcore/pkg/walleterrors"
)

// ClientOptions is the caller-supplied client identity and redirect target
// for the authorization-code grant.
type ClientOptions struct {
	ClientID    string
	RedirectURI string
}

// Driver is C5.
type Driver struct {
	HTTP       *walletclient.Client
	Sessions   *session.Store
	Dispatcher *issuance.Dispatcher
	Resolver   *offer.Resolver
}

// NewDriver constructs a Driver.
func NewDriver(httpClient *walletclient.Client, sessions *session.Store, dispatcher *issuance.Dispatcher, resolver *offer.Resolver) *Driver {
	return &Driver{HTTP: httpClient, Sessions: sessions, Dispatcher: dispatcher, Resolver: resolver}
}

type authorizationDetail struct {
	Format                    *string  `json:"format"`
	Vct                       *string  `json:"vct"`
	CredentialConfigurationID string   `json:"credential_configuration_id"`
	AuthorizationServers      []string `json:"authorization_servers,omitempty"`
	Doctype                   *string  `json:"doctype"`
}

type parResponse struct {
	RequestURI string `json:"request_uri"`
	ExpiresIn  int    `json:"expires_in"`
}

type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	TokenType        string `json:"token_type"`
	ExpiresIn        int    `json:"expires_in"`
	CNonce           string `json:"c_nonce"`
	CNonceExpiresIn  int    `json:"c_nonce_expires_in"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// InitiateAuthFlow implements spec.md §4.5's initiate_auth_flow: mints PKCE,
// computes scope and authorization_details over every referenced
// configuration, pushes the authorization request, and persists a session.
// Returns the browser-facing authorization URI.
func (d *Driver) InitiateAuthFlow(ctx context.Context, meta *offer.CredentialOfferMetadata, clientOptions ClientOptions) (string, error) {
	pair, err := pkce.Generate()
	if err != nil {
		return "", fmt.Errorf("authflow: %w", err)
	}

	var scopes []string
	var details []authorizationDetail
	for _, id := range meta.Offer.CredentialConfigurationIDs {
		config, ok := meta.IssuerMetadata.CredentialConfigurations[id]
		if !ok {
			continue
		}
		if config.Scope != "" {
			scopes = append(scopes, config.Scope)
		}
		details = append(details, detailFor(id, config))
	}

	asMeta, err := d.Resolver.FetchAuthorizationServerMetadata(ctx, &meta.IssuerMetadata)
	if err != nil {
		return "", err
	}

	sessionID, err := session.NewSessionID()
	if err != nil {
		return "", fmt.Errorf("authflow: %w", err)
	}

	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return "", fmt.Errorf("authflow: encoding authorization_details: %w", err)
	}

	form := url.Values{}
	form.Set("client_id", clientOptions.ClientID)
	form.Set("redirect_uri", clientOptions.RedirectURI)
	form.Set("code_challenge", pair.Challenge)
	form.Set("code_challenge_method", pkce.CodeChallengeMethod)
	form.Set("authorization_details", string(detailsJSON))
	form.Set("scope", strings.Join(scopes, " "))
	form.Set("state", sessionID)
	if meta.Offer.Grants != nil && meta.Offer.Grants.AuthorizationCode != nil && meta.Offer.Grants.AuthorizationCode.IssuerState != "" {
		form.Set("issuer_state", meta.Offer.Grants.AuthorizationCode.IssuerState)
	}

	var par parResponse
	if _, err := d.HTTP.PostForm(ctx, asMeta.PushedAuthorizationRequestEndpoint, form, &par); err != nil {
		if werr, ok := err.(*walleterrors.Error); ok && werr.Kind == walleterrors.KindTransportError {
			return "", &walleterrors.Error{Kind: walleterrors.KindPushedAuthorizationFailed, Status: werr.Status, Body: werr.Body}
		}
		return "", err
	}

	sd := session.Data{
		ClientOptions:          session.ClientOptions{ClientID: clientOptions.ClientID, RedirectURI: clientOptions.RedirectURI},
		IssuerURL:              meta.IssuerMetadata.CredentialIssuer,
		AuthorizationServerURL: asMeta.TokenEndpoint,
		ConfigurationIDs:       meta.Offer.CredentialConfigurationIDs,
	}
	if err := d.Sessions.Store(ctx, sd, session.Pkce{Verifier: pair.Verifier, Challenge: pair.Challenge}, sessionID); err != nil {
		return "", err
	}

	return fmt.Sprintf("%s?client_id=%s&request_uri=%s",
		asMeta.AuthorizationEndpoint, url.QueryEscape(clientOptions.ClientID), url.QueryEscape(par.RequestURI)), nil
}

func detailFor(configID string, config offer.CredentialConfiguration) authorizationDetail {
	d := authorizationDetail{CredentialConfigurationID: configID}
	switch config.Kind {
	case offer.KindSdJwt:
		if config.Vct != "" {
			vct := config.Vct
			d.Vct = &vct
		}
	case offer.KindMdoc:
		if config.DocType != "" {
			dt := config.DocType
			d.Doctype = &dt
		}
	}
	return d
}

// RequestCredential implements spec.md §4.5's request_credential: loads the
// session, exchanges the authorization code at the token endpoint, invokes
// C6, and deletes the session on any terminal outcome (success or a failed
// credential request). A failed token exchange leaves the session in place.
func (d *Driver) RequestCredential(ctx context.Context, sessionID, code string) (credential.Record, error) {
	data, pkcePair, err := d.Sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", data.ClientOptions.RedirectURI+"?session="+sessionID)
	form.Set("client_id", data.ClientOptions.ClientID)
	form.Set("code_verifier", pkcePair.Verifier)

	var tok tokenResponse
	if _, err := d.HTTP.PostForm(ctx, data.AuthorizationServerURL, form, &tok); err != nil {
		if werr, ok := err.(*walleterrors.Error); ok && werr.Kind == walleterrors.KindTransportError {
			// Session preserved for retry, per spec.md §7.
			return nil, &walleterrors.Error{Kind: walleterrors.KindTokenExchangeFailed, Status: werr.Status, Body: werr.Body}
		}
		return nil, err
	}
	if tok.Error != "" {
		return nil, walleterrors.WithOAuth(walleterrors.KindTokenExchangeFailed, tok.Error, tok.ErrorDescription)
	}

	record, err := d.dispatchFirstConfiguration(ctx, data.IssuerURL, data.ConfigurationIDs, tok, &issuance.ClientOptions{ClientID: data.ClientOptions.ClientID})
	if err != nil {
		// The authorization code is spent: the flow is terminal.
		_ = d.Sessions.Delete(ctx, sessionID)
		return nil, err
	}

	if err := d.Sessions.Delete(ctx, sessionID); err != nil {
		return nil, err
	}
	return record, nil
}

// AcceptOffer implements spec.md §4.5's accept_offer: the pre-authorized-code
// grant, which skips PAR and PKCE entirely. Per the spec's preserved
// asymmetry (§9 Open Question), only the first credential_configuration_id
// is dispatched.
func (d *Driver) AcceptOffer(ctx context.Context, meta *offer.CredentialOfferMetadata, txCode string) (credential.Record, error) {
	if meta.Offer.Grants == nil || meta.Offer.Grants.PreAuthorizedCode == nil {
		return nil, walleterrors.WithReasons(walleterrors.KindOfferMalformed,
			walleterrors.FieldReason{Field: "grants", Reason: "offer does not carry a pre-authorized_code grant"})
	}
	if len(meta.Offer.CredentialConfigurationIDs) == 0 {
		return nil, walleterrors.WithReasons(walleterrors.KindOfferMalformed,
			walleterrors.FieldReason{Field: "credential_configuration_ids", Reason: "must not be empty"})
	}

	asMeta, err := d.Resolver.FetchAuthorizationServerMetadata(ctx, &meta.IssuerMetadata)
	if err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("grant_type", "urn:ietf:params:oauth:grant-type:pre-authorized_code")
	form.Set("pre-authorized_code", meta.Offer.Grants.PreAuthorizedCode.PreAuthorizedCode)
	if txCode != "" {
		form.Set("tx_code", txCode)
	}

	var tok tokenResponse
	if _, err := d.HTTP.PostForm(ctx, asMeta.TokenEndpoint, form, &tok); err != nil {
		if werr, ok := err.(*walleterrors.Error); ok && werr.Kind == walleterrors.KindTransportError {
			return nil, &walleterrors.Error{Kind: walleterrors.KindTokenExchangeFailed, Status: werr.Status, Body: werr.Body}
		}
		return nil, err
	}
	if tok.Error != "" {
		return nil, walleterrors.WithOAuth(walleterrors.KindTokenExchangeFailed, tok.Error, tok.ErrorDescription)
	}

	return d.dispatchFirstConfiguration(ctx, meta.IssuerMetadata.CredentialIssuer, meta.Offer.CredentialConfigurationIDs[:1], tok, nil)
}

func (d *Driver) dispatchFirstConfiguration(ctx context.Context, issuerURL string, configIDs []string, tok tokenResponse, clientOptions *issuance.ClientOptions) (credential.Record, error) {
	if len(configIDs) == 0 {
		return nil, walleterrors.WithReasons(walleterrors.KindOfferMalformed,
			walleterrors.FieldReason{Field: "credential_configuration_ids", Reason: "must not be empty"})
	}

	issuerMeta, err := d.Resolver.FetchIssuerMetadataOnly(ctx, issuerURL)
	if err != nil {
		return nil, err
	}

	config, ok := issuerMeta.CredentialConfigurations[configIDs[0]]
	if !ok {
		return nil, walleterrors.WithReasons(walleterrors.KindOfferMalformed,
			walleterrors.FieldReason{Field: "credential_configuration_id", Reason: "not present in issuer metadata"})
	}

	result, err := d.Dispatcher.RequestCredential(ctx, config, *issuerMeta, tok.AccessToken, tok.CNonce, clientOptions, "", nil, toCredentialDisplays(config.Displays))
	if err != nil {
		return nil, err
	}
	return result.Record, nil
}

func toCredentialDisplays(displays []offer.Display) []credential.Display {
	out := make([]credential.Display, 0, len(displays))
	for _, dd := range displays {
		cd := credential.Display{
			Locale:          dd.Locale,
			Name:            dd.Name,
			BackgroundColor: dd.BackgroundColor,
			TextColor:       dd.TextColor,
		}
		if dd.Logo != nil {
			cd.Logo = &credential.Logo{URL: dd.Logo.URL, AltText: dd.Logo.AltText}
		}
		out = append(out, cd)
	}
	return out
}
