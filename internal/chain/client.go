package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/nspcc-dev/neo-go/pkg/encoding/address"
	"github.com/nspcc-dev/neo-go/pkg/neorpc/result"
	"github.com/nspcc-dev/neo-go/pkg/util"
)

// Client is a minimal Neo N3 JSON-RPC client for balance lookups.
type Client struct {
	rpcURL     string
	httpClient *http.Client
	nextID     atomic.Uint64
}

// Config holds client configuration.
type Config struct {
	RPCURL  string
	Timeout time.Duration
}

// NewClient creates a new Neo N3 client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("RPC URL required")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		rpcURL:     cfg.RPCURL,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
	ID      uint64        `json:"id"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error,omitempty"`
}

// RPCError is an error object returned by the node.
type RPCError struct {
	Code    int64  `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Call makes an RPC call to the node.
func (c *Client) Call(ctx context.Context, method string, params []interface{}) (json.RawMessage, error) {
	if params == nil {
		params = []interface{}{}
	}
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      c.nextID.Add(1),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: http %d", method, resp.StatusCode)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if rpcResp.Error != nil {
		return nil, rpcResp.Error
	}
	return rpcResp.Result, nil
}

// NEP17Balance returns the balance of asset held by holder in the token's
// smallest unit. A holder that never touched the asset has zero.
func (c *Client) NEP17Balance(ctx context.Context, holder, asset util.Uint160) (*big.Int, error) {
	raw, err := c.Call(ctx, "getnep17balances", []interface{}{address.Uint160ToString(holder)})
	if err != nil {
		return nil, err
	}
	var res result.NEP17Balances
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("decode nep17 balances: %w", err)
	}
	for _, b := range res.Balances {
		if b.Asset.Equals(asset) {
			n, ok := new(big.Int).SetString(b.Amount, 10)
			if !ok {
				return nil, fmt.Errorf("invalid nep17 amount %q", b.Amount)
			}
			return n, nil
		}
	}
	return new(big.Int), nil
}

// NEP11Count returns how many tokens of collection holder owns.
func (c *Client) NEP11Count(ctx context.Context, holder, collection util.Uint160) (*big.Int, error) {
	raw, err := c.Call(ctx, "getnep11balances", []interface{}{address.Uint160ToString(holder)})
	if err != nil {
		return nil, err
	}
	var res result.NEP11Balances
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("decode nep11 balances: %w", err)
	}
	count := new(big.Int)
	for _, b := range res.Balances {
		if !b.Asset.Equals(collection) {
			continue
		}
		for _, tok := range b.Tokens {
			if tok.Amount != "0" {
				count.Add(count, big.NewInt(1))
			}
		}
	}
	return count, nil
}
