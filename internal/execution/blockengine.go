package execution

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// BlockEngineClient is the minimal JSON-RPC 2.0 surface the bundle executor
// needs from a Jito-style block-engine endpoint: submit a bundle, poll its
// status, and learn the current tip-account list.
type BlockEngineClient interface {
	SendBundle(ctx context.Context, txsBase64 []string) (string, error)
	GetBundleStatuses(ctx context.Context, bundleIDs []string) ([]string, error)
	GetTipAccounts(ctx context.Context) ([]string, error)
}

// blockEngineHTTPClient implements BlockEngineClient over plain JSON-RPC
// 2.0 HTTP, in the same request/response shape as the RPC substrate's own
// HTTPClient, since block-engine endpoints speak the same protocol family.
type blockEngineHTTPClient struct {
	endpoint string
	client   *http.Client
	nextID   uint64
}

// NewBlockEngineClient constructs a client for the given block-engine URL.
func NewBlockEngineClient(endpoint string) BlockEngineClient {
	return &blockEngineHTTPClient{endpoint: endpoint, client: &http.Client{}}
}

type beRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type beResponse struct {
	Result json.RawMessage `json:"result,omitempty"`
	Error  *beError        `json:"error,omitempty"`
}

type beError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *beError) Error() string {
	return fmt.Sprintf("block-engine error %d: %s", e.Code, e.Message)
}

func (c *blockEngineHTTPClient) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	c.nextID++
	body, err := json.Marshal(beRequest{JSONRPC: "2.0", ID: c.nextID, Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("block-engine: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("block-engine: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("block-engine: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("block-engine: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("block-engine: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var out beResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return fmt.Errorf("block-engine: unmarshal response: %w", err)
	}
	if out.Error != nil {
		return out.Error
	}
	if result != nil && out.Result != nil {
		if err := json.Unmarshal(out.Result, result); err != nil {
			return fmt.Errorf("block-engine: unmarshal result: %w", err)
		}
	}
	return nil
}

// SendBundle submits an ordered group of base64 transactions, returning the
// bundle ID the block engine assigns.
func (c *blockEngineHTTPClient) SendBundle(ctx context.Context, txsBase64 []string) (string, error) {
	var bundleID string
	err := c.call(ctx, "sendBundle", []interface{}{txsBase64}, &bundleID)
	return bundleID, err
}

type bundleStatusEntry struct {
	BundleID           string `json:"bundle_id"`
	ConfirmationStatus string `json:"confirmation_status"`
}

type bundleStatusResult struct {
	Value []bundleStatusEntry `json:"value"`
}

// GetBundleStatuses returns the raw confirmation-status string for each
// requested bundle ID, in the same order requested; an unknown ID maps to
// an empty string.
func (c *blockEngineHTTPClient) GetBundleStatuses(ctx context.Context, bundleIDs []string) ([]string, error) {
	var result bundleStatusResult
	if err := c.call(ctx, "getBundleStatuses", []interface{}{bundleIDs}, &result); err != nil {
		return nil, err
	}
	byID := make(map[string]string, len(result.Value))
	for _, v := range result.Value {
		byID[v.BundleID] = v.ConfirmationStatus
	}
	out := make([]string, len(bundleIDs))
	for i, id := range bundleIDs {
		out[i] = byID[id]
	}
	return out, nil
}

// GetTipAccounts returns the block engine's current tip-account list. The
// executor does not call it; tips go to fixedTipRecipients.
func (c *blockEngineHTTPClient) GetTipAccounts(ctx context.Context) ([]string, error) {
	var accounts []string
	err := c.call(ctx, "getTipAccounts", nil, &accounts)
	return accounts, err
}
