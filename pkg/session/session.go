// Package session implements the auth-flow session store (C4): a durable
// keyed store for in-progress authorization-code flows, backed by a TTL
// cache so abandoned flows are garbage-collected rather than leaked.
package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"walletcore/pkg/walleterrors"
)

// DefaultTTL is the recommended session lifetime from spec.md §5.
const DefaultTTL = 10 * time.Minute

// Pkce is the PKCE material minted for one authorization-code flow.
type Pkce struct {
	Verifier  string
	Challenge string
}

// Data is the flow state persisted between initiate_auth_flow and
// request_credential, per spec.md §4.5 step 6.
type Data struct {
	ClientOptions          ClientOptions
	IssuerURL              string
	AuthorizationServerURL string
	ConfigurationIDs       []string
}

// ClientOptions carries the caller-supplied redirect/client identity used
// to build the token request in request_credential.
type ClientOptions struct {
	ClientID    string
	RedirectURI string
}

// Store is the durable keyed session store, C4.
type Store struct {
	cache *ttlcache.Cache[string, entry]
}

type entry struct {
	Data Data
	Pkce Pkce
}

// New constructs a session store with the given TTL (DefaultTTL when ttl is
// zero), and starts its background eviction loop.
func New(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	cache := ttlcache.New(ttlcache.WithTTL[string, entry](ttl))
	go cache.Start()
	return &Store{cache: cache}
}

// NewSessionID mints a fresh 128-bit CSPRNG session id, base64url-encoded,
// per spec.md §4.4.
func NewSessionID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("session: generating session id: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Store persists data and pkce under sessionID. Writes are last-writer-wins
// for the same id, per spec.md §4.4.
func (s *Store) Store(ctx context.Context, data Data, pkce Pkce, sessionID string) error {
	s.cache.Set(sessionID, entry{Data: data, Pkce: pkce}, ttlcache.DefaultTTL)
	return nil
}

// Get reads back a previously stored session. A missing session id fails
// SessionNotFound.
func (s *Store) Get(ctx context.Context, sessionID string) (Data, Pkce, error) {
	item := s.cache.Get(sessionID)
	if item == nil {
		return Data{}, Pkce{}, walleterrors.Sentinel(walleterrors.KindSessionNotFound)
	}
	e := item.Value()
	return e.Data, e.Pkce, nil
}

// Delete removes a session, e.g. on flow completion. Deleting an absent
// session id is not an error: it is the terminal state of a completed flow.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	s.cache.Delete(sessionID)
	return nil
}
