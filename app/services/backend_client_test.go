package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPBackendClientSendBatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/send", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req SendBatchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "campaign-1", req.CampaignID)
		assert.Equal(t, []string{"g1", "g2"}, req.TargetIDs)

		results := make([]SendOutcome, 0, len(req.TargetIDs))
		for _, id := range req.TargetIDs {
			results = append(results, SendOutcome{TargetID: id, Status: "sent", Timestamp: 1787486400000})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data":    SendBatchResult{Results: results, SentCount: len(results)},
		})
	}))
	defer server.Close()

	client := NewHTTPBackendClient(server.URL, "test-key")
	result, err := client.SendBatch(context.Background(), &SendBatchRequest{
		CampaignID:  "campaign-1",
		MessageBody: "hello",
		TargetIDs:   []string{"g1", "g2"},
	})
	require.NoError(t, err)
	require.Len(t, result.Results, 2)
	assert.Equal(t, "g1", result.Results[0].TargetID)
	assert.Equal(t, "sent", result.Results[0].Status)
	assert.Equal(t, 2, result.SentCount)
}

func TestHTTPBackendClientRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": false,
			"message": "flood limit reached",
		})
	}))
	defer server.Close()

	client := NewHTTPBackendClient(server.URL, "test-key")
	_, err := client.SendBatch(context.Background(), &SendBatchRequest{TargetIDs: []string{"g1"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "flood limit reached")
}

func TestHTTPBackendClientServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewHTTPBackendClient(server.URL, "test-key")
	_, err := client.SendBatch(context.Background(), &SendBatchRequest{TargetIDs: []string{"g1"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestHTTPBackendClientResolve(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/resolve", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "alice", body["input"])

		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data": ResolveResult{
				TargetID:    "direct:alice",
				DisplayName: "Alice Example",
			},
		})
	}))
	defer server.Close()

	client := NewHTTPBackendClient(server.URL, "test-key")
	result, err := client.Resolve(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "direct:alice", result.TargetID)
	assert.Equal(t, "Alice Example", result.DisplayName)
}

func TestHTTPBackendClientUnreachable(t *testing.T) {
	client := NewHTTPBackendClient("http://127.0.0.1:1", "test-key")
	_, err := client.SendBatch(context.Background(), &SendBatchRequest{TargetIDs: []string{"g1"}})
	require.Error(t, err)
}
