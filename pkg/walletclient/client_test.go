package walletclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"walletcore/pkg/walleterrors"
)

func TestGetJSON_DecodesSuccessfulResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"value":"ok"}`))
	}))
	defer srv.Close()

	client := New(nil)

	var out struct {
		Value string `json:"value"`
	}
	_, err := client.GetJSON(context.Background(), srv.URL, &out)
	require.NoError(t, err)
	assert.Equal(t, "ok", out.Value)
}

func TestGetJSON_NonRetryableOnHTTPError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := New(nil)
	_, err := client.GetJSON(context.Background(), srv.URL, nil)
	require.Error(t, err)

	werr, ok := err.(*walleterrors.Error)
	require.True(t, ok)
	assert.Equal(t, walleterrors.KindMetadataFetchFailed, werr.Kind)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "a non-2xx response must not be retried")
}

func TestGetJSON_RetriesTransportFailureThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n < 2 {
			// Simulate a transient failure by closing without a response.
			hj, _ := w.(http.Hijacker)
			conn, _, _ := hj.Hijack()
			conn.Close()
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"value":"ok"}`))
	}))
	defer srv.Close()

	client := New(nil)
	client.MaxRetries = 3

	var out struct {
		Value string `json:"value"`
	}
	_, err := client.GetJSON(context.Background(), srv.URL, &out)
	require.NoError(t, err)
	assert.Equal(t, "ok", out.Value)
	assert.GreaterOrEqual(t, atomic.LoadInt32(&calls), int32(2))
}

func TestPostForm_ReturnsTransportErrorOnNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_request"}`))
	}))
	defer srv.Close()

	client := New(nil)
	_, err := client.PostForm(context.Background(), srv.URL, nil, nil)
	require.Error(t, err)

	werr, ok := err.(*walleterrors.Error)
	require.True(t, ok)
	assert.Equal(t, walleterrors.KindTransportError, werr.Kind)
	assert.Equal(t, http.StatusBadRequest, werr.Status)
}

func TestPostJSON_SendsBearerTokenAndBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer abc123", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	client := New(nil)
	var out struct {
		OK bool `json:"ok"`
	}
	_, err := client.PostJSON(context.Background(), srv.URL, "abc123", map[string]string{"a": "b"}, &out)
	require.NoError(t, err)
	assert.True(t, out.OK)
}
