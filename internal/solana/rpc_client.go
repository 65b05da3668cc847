package solana

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"
)

// Default configuration values.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0

	maxAccountsPerBatch = 100
)

// HTTPClient implements RPCClient using HTTP JSON-RPC 2.0, with an
// exponential-backoff retry loop around each call.
type HTTPClient struct {
	endpoint    string
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
	requestID   atomic.Uint64
}

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) { c.client.Timeout = d }
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *HTTPClient) { c.maxRetries = n }
}

// NewHTTPClient creates a new Solana RPC HTTP client for a single endpoint.
func NewHTTPClient(endpoint string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		endpoint:    endpoint,
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// call performs a JSON-RPC call with retries and exponential backoff.
func (c *HTTPClient) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	reqID := c.requestID.Add(1)
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: reqID, Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited (429)")
			continue
		}
		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
			continue
		}

		var rpcResp rpcResponse
		if err := json.Unmarshal(respBody, &rpcResp); err != nil {
			lastErr = fmt.Errorf("unmarshal response: %w", err)
			continue
		}

		if rpcResp.Error != nil {
			return rpcResp.Error // RPC errors are not retried
		}

		if result != nil && rpcResp.Result != nil {
			if err := json.Unmarshal(rpcResp.Result, result); err != nil {
				return fmt.Errorf("unmarshal result: %w", err)
			}
		}
		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

type rawMessage struct {
	AccountKeys  []string     `json:"accountKeys"`
	Instructions []rawInstruction `json:"instructions"`
}

type rawInstruction struct {
	ProgramIDIndex int    `json:"programIdIndex"`
	Accounts       []int  `json:"accounts"`
	Data           string `json:"data"`
}

type getTransactionResult struct {
	Slot        int64               `json:"slot"`
	BlockTime   *int64              `json:"blockTime"`
	Meta        *getTransactionMeta `json:"meta"`
	Transaction *getTransactionTx   `json:"transaction"`
}

type getTransactionMeta struct {
	Err         interface{} `json:"err"`
	LogMessages []string    `json:"logMessages"`
}

type getTransactionTx struct {
	Signatures []string    `json:"signatures"`
	Message    *rawMessage `json:"message"`
}

func toTxMessage(m *rawMessage) *TransactionMessage {
	if m == nil {
		return nil
	}
	out := &TransactionMessage{AccountKeys: m.AccountKeys}
	for _, ri := range m.Instructions {
		out.Instructions = append(out.Instructions, Instruction{
			ProgramIDIndex: ri.ProgramIDIndex,
			Accounts:       ri.Accounts,
			Data:           ri.Data,
		})
	}
	return out
}

// GetTransaction retrieves a transaction by signature.
func (c *HTTPClient) GetTransaction(ctx context.Context, signature string) (*Transaction, error) {
	params := []interface{}{signature, map[string]interface{}{
		"encoding":                       "json",
		"maxSupportedTransactionVersion": 0,
	}}

	var result getTransactionResult
	if err := c.call(ctx, "getTransaction", params, &result); err != nil {
		return nil, err
	}
	if result.Slot == 0 && result.BlockTime == nil {
		return nil, nil
	}

	tx := &Transaction{Slot: result.Slot, Signature: signature}
	if result.BlockTime != nil {
		tx.BlockTime = *result.BlockTime
	}
	if result.Meta != nil {
		tx.Meta = &TransactionMeta{Err: result.Meta.Err, LogMessages: result.Meta.LogMessages}
	}
	if result.Transaction != nil {
		tx.Message = toTxMessage(result.Transaction.Message)
	}
	return tx, nil
}

type getBlockResult struct {
	BlockTime    *int64              `json:"blockTime"`
	Transactions []getBlockTxWrapper `json:"transactions"`
}

type getBlockTxWrapper struct {
	Transaction getTransactionTx    `json:"transaction"`
	Meta        *getTransactionMeta `json:"meta"`
}

// GetBlock retrieves a block by slot number.
func (c *HTTPClient) GetBlock(ctx context.Context, slot int64) (*Block, error) {
	params := []interface{}{slot, map[string]interface{}{
		"encoding":                       "json",
		"transactionDetails":             "full",
		"maxSupportedTransactionVersion": 0,
	}}

	var result getBlockResult
	if err := c.call(ctx, "getBlock", params, &result); err != nil {
		return nil, err
	}

	block := &Block{Slot: slot, BlockTime: result.BlockTime}
	for _, txw := range result.Transactions {
		tx := Transaction{Slot: slot}
		if result.BlockTime != nil {
			tx.BlockTime = *result.BlockTime
		}
		if len(txw.Transaction.Signatures) > 0 {
			tx.Signature = txw.Transaction.Signatures[0]
		}
		if txw.Meta != nil {
			tx.Meta = &TransactionMeta{Err: txw.Meta.Err, LogMessages: txw.Meta.LogMessages}
		}
		tx.Message = toTxMessage(txw.Transaction.Message)
		block.Transactions = append(block.Transactions, tx)
	}
	return block, nil
}

type getSignaturesResult struct {
	Signature string      `json:"signature"`
	Slot      int64       `json:"slot"`
	BlockTime *int64      `json:"blockTime"`
	Err       interface{} `json:"err"`
}

// GetSignaturesForAddress retrieves signatures for an address with pagination.
func (c *HTTPClient) GetSignaturesForAddress(ctx context.Context, address string, opts *SignaturesOpts) ([]SignatureInfo, error) {
	config := make(map[string]interface{})
	if opts != nil {
		if opts.Before != "" {
			config["before"] = opts.Before
		}
		if opts.Until != "" {
			config["until"] = opts.Until
		}
		if opts.Limit > 0 {
			config["limit"] = opts.Limit
		}
	}

	params := []interface{}{address}
	if len(config) > 0 {
		params = append(params, config)
	}

	var result []getSignaturesResult
	if err := c.call(ctx, "getSignaturesForAddress", params, &result); err != nil {
		return nil, err
	}

	sigs := make([]SignatureInfo, len(result))
	for i, r := range result {
		sigs[i] = SignatureInfo{Signature: r.Signature, Slot: r.Slot, BlockTime: r.BlockTime, Err: r.Err}
	}
	return sigs, nil
}

// AccountInfo represents Solana account information.
type AccountInfo struct {
	Lamports   uint64 `json:"lamports"`
	Owner      string `json:"owner"`
	Data       string `json:"data"` // base64 encoded
	Executable bool   `json:"executable"`
	RentEpoch  uint64 `json:"rentEpoch"`
}

type getAccountInfoResult struct {
	Value *getAccountInfoValue `json:"value"`
}

type getAccountInfoValue struct {
	Lamports   uint64   `json:"lamports"`
	Owner      string   `json:"owner"`
	Data       []string `json:"data"`
	Executable bool     `json:"executable"`
	RentEpoch  uint64   `json:"rentEpoch"`
}

func valueToAccountInfo(v *getAccountInfoValue) *AccountInfo {
	if v == nil {
		return nil
	}
	info := &AccountInfo{Lamports: v.Lamports, Owner: v.Owner, Executable: v.Executable, RentEpoch: v.RentEpoch}
	if len(v.Data) >= 1 {
		info.Data = v.Data[0]
	}
	return info
}

// GetAccountInfo retrieves account info by public key. Returns nil if the
// account does not exist.
func (c *HTTPClient) GetAccountInfo(ctx context.Context, pubkey string) (*AccountInfo, error) {
	params := []interface{}{pubkey, map[string]interface{}{"encoding": "base64"}}
	var result getAccountInfoResult
	if err := c.call(ctx, "getAccountInfo", params, &result); err != nil {
		return nil, err
	}
	return valueToAccountInfo(result.Value), nil
}

type getMultipleAccountsResult struct {
	Value []*getAccountInfoValue `json:"value"`
}

// GetMultipleAccounts batches reads in groups of <= 100 per RPC call.
func (c *HTTPClient) GetMultipleAccounts(ctx context.Context, pubkeys []string) ([]*AccountInfo, error) {
	out := make([]*AccountInfo, 0, len(pubkeys))
	for start := 0; start < len(pubkeys); start += maxAccountsPerBatch {
		end := start + maxAccountsPerBatch
		if end > len(pubkeys) {
			end = len(pubkeys)
		}
		batch := pubkeys[start:end]

		params := []interface{}{batch, map[string]interface{}{"encoding": "base64"}}
		var result getMultipleAccountsResult
		if err := c.call(ctx, "getMultipleAccounts", params, &result); err != nil {
			return nil, err
		}
		for _, v := range result.Value {
			out = append(out, valueToAccountInfo(v))
		}
	}
	return out, nil
}

// GetSlot retrieves the current slot.
func (c *HTTPClient) GetSlot(ctx context.Context) (int64, error) {
	var result int64
	err := c.call(ctx, "getSlot", nil, &result)
	return result, err
}

// GetBlockTime retrieves the estimated production time of a block.
func (c *HTTPClient) GetBlockTime(ctx context.Context, slot int64) (*int64, error) {
	var result *int64
	err := c.call(ctx, "getBlockTime", []interface{}{slot}, &result)
	return result, err
}

type getBalanceResult struct {
	Value uint64 `json:"value"`
}

// GetBalance retrieves the lamport balance of an account.
func (c *HTTPClient) GetBalance(ctx context.Context, pubkey string) (uint64, error) {
	var result getBalanceResult
	err := c.call(ctx, "getBalance", []interface{}{pubkey}, &result)
	return result.Value, err
}

type getLatestBlockhashResult struct {
	Value struct {
		Blockhash string `json:"blockhash"`
	} `json:"value"`
}

// GetLatestBlockhash retrieves the recent blockhash needed for tx freshness.
func (c *HTTPClient) GetLatestBlockhash(ctx context.Context) (string, error) {
	var result getLatestBlockhashResult
	err := c.call(ctx, "getLatestBlockhash", nil, &result)
	return result.Value.Blockhash, err
}

type tokenLargestAccountsResult struct {
	Value []struct {
		Address string `json:"address"`
		Amount  string `json:"amount"`
	} `json:"value"`
}

// GetTokenLargestAccounts retrieves the largest holders of a mint, used by
// the risk analyzer's top-holder concentration check.
func (c *HTTPClient) GetTokenLargestAccounts(ctx context.Context, mint string) ([]TokenAccountBalance, error) {
	var result tokenLargestAccountsResult
	if err := c.call(ctx, "getTokenLargestAccounts", []interface{}{mint}, &result); err != nil {
		return nil, err
	}
	out := make([]TokenAccountBalance, 0, len(result.Value))
	for _, v := range result.Value {
		var amt uint64
		fmt.Sscanf(v.Amount, "%d", &amt)
		out = append(out, TokenAccountBalance{Address: v.Address, Amount: amt})
	}
	return out, nil
}

type tokenSupplyResult struct {
	Value struct {
		Amount string `json:"amount"`
	} `json:"value"`
}

// GetTokenSupply retrieves the circulating supply of a mint.
func (c *HTTPClient) GetTokenSupply(ctx context.Context, mint string) (uint64, error) {
	var result tokenSupplyResult
	if err := c.call(ctx, "getTokenSupply", []interface{}{mint}, &result); err != nil {
		return 0, err
	}
	var amt uint64
	fmt.Sscanf(result.Value.Amount, "%d", &amt)
	return amt, nil
}

type simulateTransactionResult struct {
	Value struct {
		Err           interface{} `json:"err"`
		Logs          []string    `json:"logs"`
		UnitsConsumed uint64      `json:"unitsConsumed"`
	} `json:"value"`
}

// SimulateTransaction runs simulateTransaction against the current slot,
// used by the risk analyzer's sell-simulation honeypot detection.
func (c *HTTPClient) SimulateTransaction(ctx context.Context, txBase64 string) (*SimulationResult, error) {
	params := []interface{}{txBase64, map[string]interface{}{
		"encoding":               "base64",
		"replaceRecentBlockhash": true,
		"commitment":             "confirmed",
	}}
	var result simulateTransactionResult
	if err := c.call(ctx, "simulateTransaction", params, &result); err != nil {
		return nil, err
	}
	return &SimulationResult{
		Err:           result.Value.Err,
		Logs:          result.Value.Logs,
		UnitsConsumed: result.Value.UnitsConsumed,
	}, nil
}

// SendTransaction submits a signed, base64-encoded transaction.
func (c *HTTPClient) SendTransaction(ctx context.Context, txBase64 string, skipPreflight bool) (string, error) {
	params := []interface{}{txBase64, map[string]interface{}{
		"encoding":       "base64",
		"skipPreflight":  skipPreflight,
		"maxRetries":     0,
		"preflightCommitment": "confirmed",
	}}
	var signature string
	err := c.call(ctx, "sendTransaction", params, &signature)
	return signature, err
}

type signatureStatusesResult struct {
	Value []*struct {
		ConfirmationStatus string      `json:"confirmationStatus"`
		Err                 interface{} `json:"err"`
	} `json:"value"`
}

// ConfirmTransaction polls getSignatureStatuses once and reports whether the
// signature is confirmed/finalized without error.
func (c *HTTPClient) ConfirmTransaction(ctx context.Context, signature string) (bool, error) {
	params := []interface{}{[]string{signature}, map[string]interface{}{"searchTransactionHistory": true}}
	var result signatureStatusesResult
	if err := c.call(ctx, "getSignatureStatuses", params, &result); err != nil {
		return false, err
	}
	if len(result.Value) == 0 || result.Value[0] == nil {
		return false, nil
	}
	st := result.Value[0]
	if st.Err != nil {
		return false, fmt.Errorf("transaction failed: %v", st.Err)
	}
	return st.ConfirmationStatus == "confirmed" || st.ConfirmationStatus == "finalized", nil
}
