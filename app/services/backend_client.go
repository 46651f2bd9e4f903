// Package services provides external service integrations and technical concerns like send backends and tokens
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/amirphl/Susanoo/utils"
)

// SendBatchRequest describes one batch handed to the send backend
type SendBatchRequest struct {
	CampaignID  string   `json:"campaign_id"`
	MessageBody string   `json:"message_body"`
	TargetIDs   []string `json:"target_ids"`
	DryRun      bool     `json:"dry_run"`
	Overrides   []string `json:"overrides,omitempty"`
}

// SendOutcome is one synchronous per-target result of a batch. Timestamp is
// unix milliseconds.
type SendOutcome struct {
	TargetID   string   `json:"target_id"`
	Status     string   `json:"status"`
	Timestamp  int64    `json:"timestamp"`
	DurationMs *int64   `json:"duration_ms,omitempty"`
	Error      *string  `json:"error,omitempty"`
	RulesText  *string  `json:"rules_text,omitempty"`
	Reasons    []string `json:"reasons,omitempty"`
}

// SendBatchResult is the backend's synchronous response to a batch. The
// per-target results are the authoritative initial status of the batch;
// corrections and late updates arrive on the status stream afterwards.
type SendBatchResult struct {
	Results      []SendOutcome `json:"results"`
	SentCount    int           `json:"sent_count"`
	FailedCount  int           `json:"failed_count"`
	SkippedCount int           `json:"skipped_count"`
}

// ResolveResult is the backend's answer for one raw direct-target input
type ResolveResult struct {
	TargetID    string  `json:"target_id"`
	DisplayName string  `json:"display_name"`
	MatchedBy   *string `json:"matched_by,omitempty"`
}

// BackendClient talks to the send backend that owns actual message delivery
type BackendClient interface {
	SendBatch(ctx context.Context, req *SendBatchRequest) (*SendBatchResult, error)
	Resolve(ctx context.Context, input string) (*ResolveResult, error)
}

// HTTPBackendClient implements BackendClient over the backend's REST API
type HTTPBackendClient struct {
	baseURL string
	apiKey  string
}

// NewHTTPBackendClient creates a new HTTP backend client
func NewHTTPBackendClient(baseURL, apiKey string) BackendClient {
	return &HTTPBackendClient{
		baseURL: baseURL,
		apiKey:  apiKey,
	}
}

type backendEnvelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (c *HTTPBackendClient) SendBatch(ctx context.Context, req *SendBatchRequest) (*SendBatchResult, error) {
	var result SendBatchResult
	if err := c.post(ctx, "/api/v1/send", req, &result, utils.DispatchTimeout); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *HTTPBackendClient) Resolve(ctx context.Context, input string) (*ResolveResult, error) {
	body := map[string]string{"input": input}
	var result ResolveResult
	if err := c.post(ctx, "/api/v1/resolve", body, &result, utils.ResolveTimeout); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *HTTPBackendClient) post(ctx context.Context, path string, payload, out any, timeout time.Duration) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call %s: %w", path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response from %s: %w", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("backend returned status %d for %s: %s", resp.StatusCode, path, string(respBody))
	}

	var envelope backendEnvelope
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	if !envelope.Success {
		return fmt.Errorf("backend rejected %s: %s", path, envelope.Message)
	}
	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("failed to decode response data from %s: %w", path, err)
		}
	}

	return nil
}

// MockBackendClient is a development backend that accepts everything and
// resolves inputs to synthetic ids
type MockBackendClient struct{}

func NewMockBackendClient() BackendClient {
	return &MockBackendClient{}
}

func (c *MockBackendClient) SendBatch(_ context.Context, req *SendBatchRequest) (*SendBatchResult, error) {
	log.Printf("mock backend: accepted batch of %d targets for campaign %s (dry_run=%t)", len(req.TargetIDs), req.CampaignID, req.DryRun)

	status := "sent"
	if req.DryRun {
		status = "dry_run"
	}
	now := time.Now().UnixMilli()
	results := make([]SendOutcome, 0, len(req.TargetIDs))
	for _, id := range req.TargetIDs {
		results = append(results, SendOutcome{TargetID: id, Status: status, Timestamp: now})
	}
	return &SendBatchResult{Results: results, SentCount: len(results)}, nil
}

func (c *MockBackendClient) Resolve(_ context.Context, input string) (*ResolveResult, error) {
	log.Printf("mock backend: resolved %q", input)
	return &ResolveResult{
		TargetID:    "direct:" + input,
		DisplayName: input,
		MatchedBy:   utils.ToPtr("mock"),
	}, nil
}
