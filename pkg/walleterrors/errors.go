// Package walleterrors implements the typed failure taxonomy the holder core
// surfaces to its caller. The failures named in the taxonomy are returned as
// *Error, so a caller can branch on Kind without string matching; some
// internal failures (key generation, record expiry checks, response JSON
// decoding) are returned as plain wrapped errors.
package walleterrors

import (
	"fmt"
	"net/http"
)

// Kind identifies a failure category from the error taxonomy.
type Kind string

const (
	// KindOfferMalformed is raised by the offer parser (C3).
	KindOfferMalformed Kind = "offer_malformed"
	// KindMetadataFetchFailed is raised by C3 and C5 when a metadata fetch
	// returns a non-2xx status.
	KindMetadataFetchFailed Kind = "metadata_fetch_failed"
	// KindPushedAuthorizationFailed is raised by C5 when the PAR endpoint
	// rejects the request; no session is stored in this case.
	KindPushedAuthorizationFailed Kind = "pushed_authorization_failed"
	// KindSessionNotFound is raised by C4 on a missing session id.
	KindSessionNotFound Kind = "session_not_found"
	// KindTokenExchangeFailed is raised by C5; the session is preserved for
	// retry.
	KindTokenExchangeFailed Kind = "token_exchange_failed"
	// KindCredentialRequestFailed is raised by C6; the flow is terminal and
	// the session is deleted.
	KindCredentialRequestFailed Kind = "credential_request_failed"
	// KindDeferredIssuanceNotSupported is raised by C6 when the issuer
	// returns a transaction_id instead of a credential.
	KindDeferredIssuanceNotSupported Kind = "deferred_issuance_not_supported"
	// KindDecodeFailed is raised by C1, C2, C6 on malformed credential bytes.
	KindDecodeFailed Kind = "decode_failed"
	// KindInvalidSignature is raised by C7's ValidateJWT.
	KindInvalidSignature Kind = "invalid_signature"
	// KindTrustChainInvalid is raised by C7's ValidateTrustChain.
	KindTrustChainInvalid Kind = "trust_chain_invalid"
	// KindClientIdBindingMismatch is raised by C7's ValidateSANName.
	KindClientIdBindingMismatch Kind = "client_id_binding_mismatch"
	// KindTimeout is raised by any HTTP call exceeding its bound.
	KindTimeout Kind = "timeout"
	// KindTransportError is raised by any HTTP call that fails below the
	// application layer (DNS, connection refused, TLS, ...), and by POST
	// calls that receive a non-2xx response (carrying Status and Body), which
	// C5 and C6 reclassify into their own kinds.
	KindTransportError Kind = "transport_error"
)

// FieldReason names one malformed field and why it was rejected.
type FieldReason struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// Error is the structured failure surfaced by every component in this
// module. HTTP-facing kinds populate Status/Body; validation kinds populate
// Reasons.
type Error struct {
	Kind    Kind          `json:"kind"`
	Message string        `json:"message,omitempty"`
	Reasons []FieldReason `json:"reasons,omitempty"`
	Status  int           `json:"status,omitempty"`
	Body    string        `json:"body,omitempty"`
	Err     string        `json:"oauth_error,omitempty"`
	ErrDesc string        `json:"oauth_error_description,omitempty"`
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	if e.Err != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Err, e.ErrDesc)
	}
	return string(e.Kind)
}

// New builds a bare error of the given kind with a message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// WithReasons builds an offer/validation-style error carrying field reasons.
func WithReasons(kind Kind, reasons ...FieldReason) *Error {
	return &Error{Kind: kind, Reasons: reasons}
}

// WithHTTP builds an HTTP-failure error carrying the response status/body.
func WithHTTP(kind Kind, status int, body string) *Error {
	return &Error{Kind: kind, Status: status, Body: body}
}

// WithOAuth builds a token/PAR-endpoint failure carrying the OAuth error and
// error_description as returned by the authorization server.
func WithOAuth(kind Kind, oauthErr, oauthDesc string) *Error {
	return &Error{Kind: kind, Err: oauthErr, ErrDesc: oauthDesc}
}

// Is allows errors.Is(err, walleterrors.Sentinel(walleterrors.KindSessionNotFound))
// style checks by comparing Kind when the target is itself a *Error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinel builds a kind-only error usable as a comparison target for
// errors.Is, e.g. errors.Is(err, walleterrors.Sentinel(walleterrors.KindSessionNotFound)).
func Sentinel(kind Kind) *Error {
	return &Error{Kind: kind}
}

// StatusCode maps a Kind to the HTTP status a caller exposing this error
// over a transport (e.g. a companion app's local API) should report. HTTP
// failure kinds prefer the upstream Status they already carry.
func (e *Error) StatusCode() int {
	if e.Status != 0 {
		return e.Status
	}
	switch e.Kind {
	case KindOfferMalformed, KindInvalidSignature, KindTrustChainInvalid, KindClientIdBindingMismatch, KindDecodeFailed:
		return http.StatusBadRequest
	case KindSessionNotFound:
		return http.StatusNotFound
	case KindTimeout:
		return http.StatusGatewayTimeout
	case KindTransportError, KindMetadataFetchFailed, KindPushedAuthorizationFailed, KindTokenExchangeFailed, KindCredentialRequestFailed:
		return http.StatusBadGateway
	case KindDeferredIssuanceNotSupported:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}
