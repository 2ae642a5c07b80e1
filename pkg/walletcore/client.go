// Package walletcore wires the holder core's components (C3 through C7)
// into a single facade, in the style of the teacher's apiv1 "Client holds
// the public api object" construction.
package walletcore

import (
	"context"
	"fmt"
	"time"

	"walletcore/pkg/authflow"
	"walletcore/pkg/credential"
	"walletcore/pkg/holderkey"
	"walletcore/pkg/identifier"
	"walletcore/pkg/issuance"
	"walletcore/pkg/logger"
	"walletcore/pkg/offer"
	"walletcore/pkg/presentation"
	"walletcore/pkg/session"
	"walletcore/pkg/walletclient"
	"walletcore/pkg/walletconfig"
)

// Client is the holder core's public API surface.
type Client struct {
	cfg *walletconfig.Config
	log *logger.Log

	defaultLocale identifier.Locale

	resolver   *offer.Resolver
	driver     *authflow.Driver
	dispatcher *issuance.Dispatcher
	sessions   *session.Store
}

// New constructs a Client from a validated configuration.
func New(cfg *walletconfig.Config, log *logger.Log) (*Client, error) {
	if err := walletconfig.CheckSimple(cfg); err != nil {
		return nil, fmt.Errorf("walletcore: invalid configuration: %w", err)
	}
	if log == nil {
		log = logger.NewSimple("walletcore")
	}

	defaultLocale := identifier.DefaultLocale
	if cfg.DefaultLocale != "" {
		loc, err := identifier.NewLocale(cfg.DefaultLocale)
		if err != nil {
			return nil, fmt.Errorf("walletcore: invalid configuration: %w", err)
		}
		defaultLocale = loc
	}

	httpClient := walletclient.New(log.New("http"))
	resolver := offer.NewResolver(httpClient)
	sessions := session.New(time.Duration(cfg.SessionTTLSeconds) * time.Second)
	keys := holderkey.NewService()
	dispatcher := issuance.NewDispatcher(httpClient, keys)
	driver := authflow.NewDriver(httpClient, sessions, dispatcher, resolver)

	return &Client{
		cfg:           cfg,
		log:           log.New("walletcore"),
		defaultLocale: defaultLocale,
		resolver:      resolver,
		driver:        driver,
		dispatcher:    dispatcher,
		sessions:      sessions,
	}, nil
}

// ResolveOffer implements C3: parses offerURI and fetches issuer metadata,
// filtering display content to locale.
func (c *Client) ResolveOffer(ctx context.Context, offerURI string, locale string) (*offer.CredentialOfferMetadata, error) {
	loc := c.defaultLocale
	if locale != "" {
		parsed, err := identifier.NewLocale(locale)
		if err != nil {
			return nil, err
		}
		loc = parsed
	}
	return c.resolver.Resolve(ctx, offerURI, loc)
}

// InitiateAuthFlow implements C5's authorization-code entry point.
func (c *Client) InitiateAuthFlow(ctx context.Context, meta *offer.CredentialOfferMetadata) (string, error) {
	return c.driver.InitiateAuthFlow(ctx, meta, authflow.ClientOptions{
		ClientID:    c.cfg.ClientID,
		RedirectURI: c.cfg.RedirectURI,
	})
}

// RequestCredential implements C5's authorization-code resumption after
// browser redirect.
func (c *Client) RequestCredential(ctx context.Context, sessionID, code string) (credential.Record, error) {
	return c.driver.RequestCredential(ctx, sessionID, code)
}

// AcceptOffer implements C5's pre-authorized-code entry point.
func (c *Client) AcceptOffer(ctx context.Context, meta *offer.CredentialOfferMetadata, txCode string) (credential.Record, error) {
	return c.driver.AcceptOffer(ctx, meta, txCode)
}

// AuthenticateRequestObject implements C7's full policy: the conjunction of
// all three independently callable checks.
func AuthenticateRequestObject(compact string) (*presentation.RequestObject, error) {
	ro, err := presentation.Parse(compact)
	if err != nil {
		return nil, err
	}
	if err := presentation.ValidateJWT(ro); err != nil {
		return nil, err
	}
	if err := presentation.ValidateTrustChain(ro); err != nil {
		return nil, err
	}
	if err := presentation.ValidateSANName(ro); err != nil {
		return nil, err
	}
	return ro, nil
}
