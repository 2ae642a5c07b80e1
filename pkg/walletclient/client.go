// Package walletclient implements the shared HTTP client used by the offer
// resolver (C3), the authorization driver (C5), and the credential
// dispatcher (C6) to talk to issuers and authorization servers.
package walletclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"walletcore/pkg/logger"
	"walletcore/pkg/walleterrors"
)

// DefaultTimeout is the bounded timeout every HTTP operation gets absent an
// explicit override, per spec.md §5.
const DefaultTimeout = 30 * time.Second

// Client is a small wrapper around *http.Client carrying the logger and
// retry policy shared by every outbound call the holder core makes.
type Client struct {
	HTTP *http.Client
	Log  *logger.Log

	// MaxRetries bounds the retry-with-backoff loop for idempotent GETs.
	MaxRetries int
}

// New creates a client with the default timeout and three-attempt retry
// policy for idempotent GETs, per spec.md §7 "Local recovery".
func New(log *logger.Log) *Client {
	if log == nil {
		log = logger.NewSimple("walletclient")
	}
	return &Client{
		HTTP:       &http.Client{Timeout: DefaultTimeout},
		Log:        log,
		MaxRetries: 3,
	}
}

// GetJSON performs a GET with retry-with-exponential-backoff (idempotent),
// decoding a JSON response body into out.
func (c *Client) GetJSON(ctx context.Context, rawURL string, out any) (*http.Response, error) {
	var lastErr error
	backoff := 200 * time.Millisecond

	for attempt := 0; attempt < max(1, c.MaxRetries); attempt++ {
		if attempt > 0 {
			c.Log.Debug("retrying GET", "url", rawURL, "attempt", attempt)
			select {
			case <-ctx.Done():
				return nil, classify(ctx.Err())
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		resp, err := c.doGet(ctx, rawURL, out)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if werr, ok := err.(*walleterrors.Error); ok && werr.Kind == walleterrors.KindMetadataFetchFailed {
			// Non-2xx is not retried: the server has spoken.
			return resp, err
		}
	}

	return nil, lastErr
}

func (c *Client) doGet(ctx context.Context, rawURL string, out any) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("walletclient: building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, classify(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp, classify(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, walleterrors.WithHTTP(walleterrors.KindMetadataFetchFailed, resp.StatusCode, string(body))
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return resp, fmt.Errorf("walletclient: decoding response: %w", err)
		}
	}

	return resp, nil
}

// PostForm POSTs form-url-encoded values, decoding a JSON response body into
// out. Used for PAR and token endpoint calls.
func (c *Client) PostForm(ctx context.Context, rawURL string, form url.Values, out any) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewBufferString(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("walletclient: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	return c.do(ctx, req, out)
}

// PostJSON POSTs a JSON body, decoding a JSON response body into out. Used
// for credential endpoint calls.
func (c *Client) PostJSON(ctx context.Context, rawURL string, accessToken string, body, out any) (*http.Response, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, fmt.Errorf("walletclient: encoding request body: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, &buf)
	if err != nil {
		return nil, fmt.Errorf("walletclient: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	return c.do(ctx, req, out)
}

func (c *Client) do(ctx context.Context, req *http.Request, out any) (*http.Response, error) {
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, classify(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp, classify(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, &walleterrors.Error{Kind: walleterrors.KindTransportError, Status: resp.StatusCode, Body: string(body)}
	}

	if out != nil && len(body) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return resp, fmt.Errorf("walletclient: decoding response: %w", err)
		}
	}

	return resp, nil
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	if err == context.DeadlineExceeded {
		return walleterrors.New(walleterrors.KindTimeout, err.Error())
	}
	var netErr interface{ Timeout() bool }
	if errorsAsTimeout(err, &netErr) && netErr.Timeout() {
		return walleterrors.New(walleterrors.KindTimeout, err.Error())
	}
	return walleterrors.New(walleterrors.KindTransportError, err.Error())
}

func errorsAsTimeout(err error, target *interface{ Timeout() bool }) bool {
	for err != nil {
		if t, ok := err.(interface{ Timeout() bool }); ok {
			*target = t
			return true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = unwrapper.Unwrap()
	}
	return false
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
