package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookHandlerDeliversPost(t *testing.T) {
	var gotMethod, gotContentType, gotCustomHeader string
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		gotMethod = req.Method
		gotContentType = req.Header.Get("Content-Type")
		gotCustomHeader = req.Header.Get("X-Signature")
		gotBody, _ = io.ReadAll(req.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	payload, err := json.Marshal(WebhookPayload{
		Url:     server.URL,
		Headers: map[string]string{"X-Signature": "sig123"},
		Body:    json.RawMessage(`{"event":"created"}`),
	})
	require.NoError(t, err)

	handler := NewWebhookHandler(5 * time.Second)
	require.NoError(t, handler(payload, context.Background()))

	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, "sig123", gotCustomHeader)
	assert.JSONEq(t, `{"event":"created"}`, string(gotBody))
}

func TestWebhookHandlerCustomMethod(t *testing.T) {
	var gotMethod string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		gotMethod = req.Method
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	payload, err := json.Marshal(WebhookPayload{Url: server.URL, Method: http.MethodPut})
	require.NoError(t, err)

	handler := NewWebhookHandler(5 * time.Second)
	require.NoError(t, handler(payload, context.Background()))
	assert.Equal(t, http.MethodPut, gotMethod)
}

func TestWebhookHandlerNon2xxIsFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	payload, err := json.Marshal(WebhookPayload{Url: server.URL})
	require.NoError(t, err)

	handler := NewWebhookHandler(5 * time.Second)
	err = handler(payload, context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestWebhookHandlerRejectsBadPayload(t *testing.T) {
	handler := NewWebhookHandler(5 * time.Second)

	err := handler([]byte(`not-json`), context.Background())
	assert.Error(t, err)

	err = handler([]byte(`{"method":"POST"}`), context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no url")
}

func TestWebhookHandlerUnreachableEndpoint(t *testing.T) {
	// grab a port that is closed by the time the handler dials it
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {}))
	deadURL := server.URL
	server.Close()

	payload, err := json.Marshal(WebhookPayload{Url: deadURL})
	require.NoError(t, err)

	handler := NewWebhookHandler(1 * time.Second)
	assert.Error(t, handler(payload, context.Background()))
}
