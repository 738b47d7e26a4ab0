package authflow

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCallbackServer(t *testing.T, expectedState string) (*httptest.Server, chan callback) {
	t.Helper()
	results := make(chan callback, 1)
	srv := httptest.NewServer(NewServer("0", nil).routes(expectedState, results))
	t.Cleanup(srv.Close)
	return srv, results
}

func get(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	return resp
}

func TestCallbackStrayRequestDoesNotEndTheWait(t *testing.T) {
	srv, results := newCallbackServer(t, "expected-state")

	resp := get(t, srv.URL+"/callback?state=wrong&code=attacker")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Empty(t, results, "a mismatched state must not deliver a result")

	// The genuine redirect still completes the flow afterwards.
	resp = get(t, srv.URL+"/callback?state=expected-state&code=auth-code")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	result := <-results
	require.NoError(t, result.err)
	assert.Equal(t, "auth-code", result.code)
}

func TestCallbackMissingCodeKeepsServing(t *testing.T) {
	srv, results := newCallbackServer(t, "expected-state")

	resp := get(t, srv.URL+"/callback?state=expected-state")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Empty(t, results)

	resp = get(t, srv.URL+"/callback?state=expected-state&code=auth-code")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	result := <-results
	assert.Equal(t, "auth-code", result.code)
}

func TestCallbackDenialWithMatchingStateEndsTheWait(t *testing.T) {
	srv, results := newCallbackServer(t, "expected-state")

	resp := get(t, srv.URL+"/callback?state=expected-state&error=access_denied")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	result := <-results
	require.Error(t, result.err)
	assert.Contains(t, result.err.Error(), "access_denied")
}
