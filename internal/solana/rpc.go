// Package solana is the RPC substrate: a JSON-RPC 2.0 HTTP client, a
// gorilla/websocket logs-subscription client, and a provider manager that
// wraps the HTTP client behind rate limiting, caching, coalescing and
// failover.
package solana

import "context"

// RPCClient is the raw, single-endpoint JSON-RPC surface. ProviderManager
// implements the cache/coalesce/failover-wrapped version of the same
// operations that the rest of the pipeline actually calls.
type RPCClient interface {
	GetAccountInfo(ctx context.Context, pubkey string) (*AccountInfo, error)
	GetMultipleAccounts(ctx context.Context, pubkeys []string) ([]*AccountInfo, error)
	GetTransaction(ctx context.Context, signature string) (*Transaction, error)
	GetBlock(ctx context.Context, slot int64) (*Block, error)
	GetSignaturesForAddress(ctx context.Context, address string, opts *SignaturesOpts) ([]SignatureInfo, error)
	GetSlot(ctx context.Context) (int64, error)
	GetBlockTime(ctx context.Context, slot int64) (*int64, error)
	GetBalance(ctx context.Context, pubkey string) (uint64, error)
	GetLatestBlockhash(ctx context.Context) (string, error)
	GetTokenLargestAccounts(ctx context.Context, mint string) ([]TokenAccountBalance, error)
	GetTokenSupply(ctx context.Context, mint string) (uint64, error)
	SimulateTransaction(ctx context.Context, txBase64 string) (*SimulationResult, error)
	SendTransaction(ctx context.Context, txBase64 string, skipPreflight bool) (string, error)
	ConfirmTransaction(ctx context.Context, signature string) (bool, error)
}

// Transaction represents a Solana transaction.
type Transaction struct {
	Slot      int64
	Signature string
	BlockTime int64 // Unix timestamp (seconds)
	Meta      *TransactionMeta
	Message   *TransactionMessage
}

// TransactionMeta contains transaction metadata.
type TransactionMeta struct {
	Err         interface{}
	LogMessages []string
}

// TransactionMessage contains parsed transaction message.
type TransactionMessage struct {
	AccountKeys  []string
	Instructions []Instruction
}

// Instruction is a single top-level instruction within a parsed transaction.
type Instruction struct {
	ProgramIDIndex int
	Accounts       []int
	Data           string // base58-encoded instruction data
}

// TokenAccountBalance is one entry from getTokenLargestAccounts.
type TokenAccountBalance struct {
	Address string
	Amount  uint64
}

// SimulationResult is the outcome of simulateTransaction.
type SimulationResult struct {
	Err         interface{}
	Logs        []string
	UnitsConsumed uint64
}
