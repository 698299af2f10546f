package extract

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completionServer(t *testing.T, content string, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": content}},
			},
		})
	}))
}

func TestExtractParsesArray(t *testing.T) {
	srv := completionServer(t, `[
		{"model": "Catalyst 9300", "serialNumber": "FCW001", "site": "LDN01", "status": "RMARequested"},
		{"model": "ThinkPad X1", "serialNumber": "5CD005", "site": "FRA03"}
	]`, http.StatusOK)
	defer srv.Close()

	c := NewClient(Config{Endpoint: srv.URL, Model: "test-model"})
	rows, err := c.Extract(context.Background(), "two broken devices arrived today")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "FCW001", rows[0]["serialNumber"])
	assert.Equal(t, "RMARequested", rows[0]["status"])
	assert.Equal(t, "FRA03", rows[1]["site"])
}

func TestExtractParsesWrappedObjectAndCodeFence(t *testing.T) {
	srv := completionServer(t, "```json\n{\"assets\": [{\"model\": \"X\", \"serialNumber\": \"S1\", \"site\": \"A1\"}]}\n```", http.StatusOK)
	defer srv.Close()

	c := NewClient(Config{Endpoint: srv.URL, Model: "test-model"})
	rows, err := c.Extract(context.Background(), "one device")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "S1", rows[0]["serialNumber"])
}

func TestExtractUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(Config{Endpoint: srv.URL, Model: "test-model"})
	_, err := c.Extract(context.Background(), "text")
	assert.ErrorIs(t, err, ErrExtraction)
}

func TestExtractNoCandidates(t *testing.T) {
	srv := completionServer(t, `[]`, http.StatusOK)
	defer srv.Close()

	c := NewClient(Config{Endpoint: srv.URL, Model: "test-model"})
	_, err := c.Extract(context.Background(), "nothing useful here")
	assert.ErrorIs(t, err, ErrNoCandidates)
}

func TestExtractGarbageOutput(t *testing.T) {
	srv := completionServer(t, `sorry, I cannot help with that`, http.StatusOK)
	defer srv.Close()

	c := NewClient(Config{Endpoint: srv.URL, Model: "test-model"})
	_, err := c.Extract(context.Background(), "text")
	assert.ErrorIs(t, err, ErrExtraction)
}

func TestExtractEmptyInput(t *testing.T) {
	c := NewClient(Config{Endpoint: "http://unused.local", Model: "test-model"})
	_, err := c.Extract(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrExtraction)
}
