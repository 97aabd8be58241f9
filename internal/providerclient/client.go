package providerclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/ignite/veribatch/internal/domain"
	"github.com/ignite/veribatch/internal/pkg/httpretry"
)

// Config holds the provider's connection details.
type Config struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	TokenURL     string
	MaxRetries   int
}

// Client is the HTTP client for the verification provider.
type Client struct {
	baseURL string
	http    *httpretry.RetryClient
}

// New builds a Client authenticated via OAuth2 client-credentials, with
// transient-failure retry through httpretry.
func New(cfg Config) *Client {
	oauthCfg := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
	}
	doer := oauthCfg.Client(context.Background())
	return &Client{
		baseURL: cfg.BaseURL,
		http:    httpretry.NewRetryClient(doer, cfg.MaxRetries),
	}
}

type createBatchRequest struct {
	CheckType string   `json:"check_type"`
	Emails    []string `json:"emails"`
}

type createBatchResponse struct {
	ProviderBatchID string `json:"provider_batch_id"`
}

// CreateBatch submits an email pool for verification (request kind
// create_batch, spec.md §6).
func (c *Client) CreateBatch(ctx context.Context, checkType domain.CheckType, emails []string) (string, error) {
	body, err := json.Marshal(createBatchRequest{CheckType: string(checkType), Emails: emails})
	if err != nil {
		return "", fmt.Errorf("providerclient: encode create batch: %w", err)
	}

	var out createBatchResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v1/batches", body, &out); err != nil {
		return "", err
	}
	return out.ProviderBatchID, nil
}

// StatusResult is the provider's reply to a status poll (request kind
// check_status, spec.md §6).
type StatusResult struct {
	Status    string `json:"status"` // pending|processing|completed|failed
	Processed int    `json:"processed"`
}

// Status polls a provider batch's progress.
func (c *Client) Status(ctx context.Context, checkType domain.CheckType, providerBatchID string) (StatusResult, error) {
	var out StatusResult
	path := fmt.Sprintf("/v1/batches/%s/status?check_type=%s", providerBatchID, checkType)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return StatusResult{}, err
	}
	return out, nil
}

type resultsResponse struct {
	Results []domain.ProviderResult `json:"results"`
}

// FetchResults downloads the completion payload for a provider batch
// (request kind download_results, spec.md §6). The applier treats
// unknown fields as ignored and missing fields as defaulted; this
// client does no interpretation beyond JSON decoding.
func (c *Client) FetchResults(ctx context.Context, checkType domain.CheckType, providerBatchID string) ([]domain.ProviderResult, error) {
	var out resultsResponse
	path := fmt.Sprintf("/v1/batches/%s/results?check_type=%s", providerBatchID, checkType)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body []byte, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("providerclient: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("providerclient: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusPaymentRequired:
		return ErrPaymentRequired
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	case resp.StatusCode >= 500:
		return ErrServerError
	case resp.StatusCode >= 400:
		return fmt.Errorf("providerclient: %s %s: status %d", method, path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("providerclient: decode response for %s %s: %w", method, path, err)
	}
	return nil
}
