package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"conceptforge/internal/logger"
	"conceptforge/internal/model"
	"conceptforge/internal/resolver"
)

// DecisionClient is the resolver's HTTP client for the non-streamed decision
// endpoints. A 409 maps to resolver.ConflictError so the resolver can reload
// instead of assuming success.
type DecisionClient struct {
	baseURL string
	client  *http.Client
	log     *logger.Logger
}

// NewDecisionClient creates a new decision client
func NewDecisionClient(baseURL string, log *logger.Logger) *DecisionClient {
	return &DecisionClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
		log:     log.With("component", "decision-client"),
	}
}

// PendingAt implements resolver.DecisionAPI.
func (c *DecisionClient) PendingAt(ctx context.Context, conceptID string, index int) (*resolver.PendingItem, error) {
	path := fmt.Sprintf("/v1/concepts/%s/pending/%d", conceptID, index)
	body, err := c.doRequest(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return nil, err
	}

	var item resolver.PendingItem
	if err := json.Unmarshal(body, &item); err != nil {
		return nil, fmt.Errorf("failed to parse pending response: %w", err)
	}
	return &item, nil
}

// SubmitDecision implements resolver.DecisionAPI.
func (c *DecisionClient) SubmitDecision(ctx context.Context, conceptID string, d model.Decision) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return err
	}
	path := fmt.Sprintf("/v1/concepts/%s/decisions", conceptID)
	_, err = c.doRequest(ctx, http.MethodPost, path, payload, d.FragmentID)
	return err
}

// SkipFragment implements resolver.DecisionAPI.
func (c *DecisionClient) SkipFragment(ctx context.Context, conceptID, fragmentID string) error {
	path := fmt.Sprintf("/v1/concepts/%s/fragments/%s/skip", conceptID, fragmentID)
	_, err := c.doRequest(ctx, http.MethodPost, path, nil, fragmentID)
	return err
}

func (c *DecisionClient) doRequest(ctx context.Context, method, path string, payload []byte, fragmentID string) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusConflict {
		return nil, &resolver.ConflictError{FragmentID: fragmentID}
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("decision API error %d: %s", resp.StatusCode, string(respBody))
	}
	return respBody, nil
}
