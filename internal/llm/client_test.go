package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completionBody(content string) string {
	body := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"role": "assistant", "content": content}},
		},
	}
	data, _ := json.Marshal(body)
	return string(data)
}

func newTestClient(baseURL string) *GroqClient {
	cfg := DefaultGroqConfig("test-key")
	cfg.BaseURL = baseURL
	cfg.Timeout = 5 * time.Second
	return NewGroqClientWithConfig(cfg)
}

func TestGroqClient_CompleteWithSystem(t *testing.T) {
	var gotReq chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		w.Write([]byte(completionBody("  SELECT 1\n")))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	got, err := c.CompleteWithSystem(context.Background(), "you are a SQL expert", "generate a query")
	require.NoError(t, err)

	// The completion comes back trimmed.
	assert.Equal(t, "SELECT 1", got)
	require.Len(t, gotReq.Messages, 2)
	assert.Equal(t, "system", gotReq.Messages[0].Role)
	assert.Equal(t, "user", gotReq.Messages[1].Role)
	assert.Equal(t, "llama-3.3-70b-versatile", gotReq.Model)
}

func TestGroqClient_CompleteOmitsSystemMessage(t *testing.T) {
	var gotReq chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		w.Write([]byte(completionBody("ok")))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	_, err := c.Complete(context.Background(), "hello")
	require.NoError(t, err)

	require.Len(t, gotReq.Messages, 1)
	assert.Equal(t, "user", gotReq.Messages[0].Role)
}

func TestGroqClient_RetriesOn429(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(completionBody("recovered")))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	got, err := c.CompleteWithSystem(context.Background(), "", "prompt")
	require.NoError(t, err)
	assert.Equal(t, "recovered", got)
	assert.Equal(t, 2, calls)
}

func TestGroqClient_NonRetryableStatus(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": {"message": "bad key"}}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	_, err := c.CompleteWithSystem(context.Background(), "", "prompt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Equal(t, 1, calls)
}

func TestGroqClient_APIErrorBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error": {"message": "model decommissioned"}}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	_, err := c.CompleteWithSystem(context.Background(), "", "prompt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model decommissioned")
}

func TestGroqClient_MissingAPIKey(t *testing.T) {
	cfg := DefaultGroqConfig("")
	c := NewGroqClientWithConfig(cfg)
	_, err := c.CompleteWithSystem(context.Background(), "", "prompt")
	assert.Error(t, err)
}

func TestGroqClient_EmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices": []}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	_, err := c.CompleteWithSystem(context.Background(), "", "prompt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no completion")
}
