package grpcsource

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
)

// subscribeStreamDesc describes the single bidi-streaming RPC this client
// drives. There is no generated service definition (see codec.go); the
// method name below is the bidi "Subscribe" call documented for the
// block-stream provider's gRPC surface.
var subscribeStreamDesc = grpc.StreamDesc{
	StreamName:    "Subscribe",
	ServerStreams: true,
	ClientStreams: true,
}

const subscribeMethod = "/geyser.GeyserService/Subscribe"

// AccountFilter mirrors account-subscription shape: filter by
// owning program, optionally narrowed by memcmp/datasize.
type AccountFilter struct {
	Owner    []string `json:"owner,omitempty"`
	Memcmp   []Memcmp `json:"memcmp,omitempty"`
	DataSize uint64   `json:"dataSize,omitempty"`
}

// Memcmp is a single byte-offset/bytes comparison filter.
type Memcmp struct {
	Offset uint64 `json:"offset"`
	Bytes  string `json:"bytes"` // base58
}

// TransactionFilter mirrors transaction-subscription shape.
type TransactionFilter struct {
	AccountInclude []string `json:"accountInclude,omitempty"`
	AccountExclude []string `json:"accountExclude,omitempty"`
	Vote           bool     `json:"vote"`
	Failed         bool     `json:"failed"`
}

// SubscribeRequest is sent once at stream open.
type SubscribeRequest struct {
	Accounts     map[string]AccountFilter     `json:"accounts,omitempty"`
	Transactions map[string]TransactionFilter `json:"transactions,omitempty"`
	Commitment   string                       `json:"commitment,omitempty"`
}

// AccountUpdate is one account-change notification.
type AccountUpdate struct {
	Pubkey string `json:"pubkey"`
	Owner  string `json:"owner"`
	Data   string `json:"data"` // base64
	Slot   int64  `json:"slot"`
}

// RawInstruction mirrors solana.Instruction on the wire.
type RawInstruction struct {
	ProgramIDIndex int    `json:"programIdIndex"`
	Accounts       []int  `json:"accounts"`
	Data           string `json:"data"`
}

// TransactionUpdate is one transaction notification.
type TransactionUpdate struct {
	Signature    string           `json:"signature"`
	Slot         int64            `json:"slot"`
	AccountKeys  []string         `json:"accountKeys"`
	Instructions []RawInstruction `json:"instructions"`
	LogMessages  []string         `json:"logMessages"`
}

// Update is one message off the stream: exactly one of Account or
// Transaction is populated.
type Update struct {
	Account     *AccountUpdate     `json:"account,omitempty"`
	Transaction *TransactionUpdate `json:"transaction,omitempty"`
}

// Client wraps a single gRPC subscribe stream to the block-stream provider.
type Client struct {
	conn   *grpc.ClientConn
	token  string
	stream grpc.ClientStream
}

// Dial opens (but does not yet subscribe on) a connection to endpoint.
func Dial(ctx context.Context, endpoint string) (*Client, error) {
	conn, err := grpc.NewClient(endpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
	)
	if err != nil {
		return nil, fmt.Errorf("grpcsource: dial %s: %w", endpoint, err)
	}
	return &Client{conn: conn}, nil
}

// WithToken attaches an auth token sent as outgoing stream metadata.
func (c *Client) WithToken(token string) *Client {
	c.token = token
	return c
}

// Subscribe opens the bidi stream and sends req as the first message.
// The returned channel is closed when the stream ends (error or EOF) or ctx
// is done; the stream's terminal error is not reported to the caller.
func (c *Client) Subscribe(ctx context.Context, req SubscribeRequest) (<-chan Update, error) {
	if c.token != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+c.token)
	}

	stream, err := c.conn.NewStream(ctx, &subscribeStreamDesc, subscribeMethod)
	if err != nil {
		return nil, fmt.Errorf("grpcsource: open stream: %w", err)
	}
	if err := stream.SendMsg(&req); err != nil {
		return nil, fmt.Errorf("grpcsource: send subscribe: %w", err)
	}
	c.stream = stream

	out := make(chan Update, 256)
	go func() {
		defer close(out)
		for {
			var upd Update
			if err := stream.RecvMsg(&upd); err != nil {
				return
			}
			select {
			case out <- upd:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Close tears down the underlying connection.
func (c *Client) Close() error {
	if c.stream != nil {
		_ = c.stream.CloseSend()
	}
	return c.conn.Close()
}
