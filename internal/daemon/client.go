// Package daemon is the indexer's JSON-RPC client to the chain daemon: it
// fetches raw blocks, block hashes, and mempool contents, and exposes just
// the narrow interfaces internal/block, internal/prefetch, and
// internal/mempool need from it.
package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Klingon-tech/klingnet-index/pkg/types"
	"github.com/Klingon-tech/klingnet-index/pkg/wire"
)

// Client is a JSON-RPC 2.0 HTTP client for the chain daemon, grounded on
// the teacher's internal/rpcclient.Client request/response shape,
// generalized to thread a context.Context through every call so callers
// can bound or cancel a round trip.
type Client struct {
	endpoint string
	http     *http.Client
}

// DefaultTimeout is used when New is called without NewWithTimeout.
const DefaultTimeout = 10 * time.Second

// New creates a Client targeting endpoint with DefaultTimeout.
func New(endpoint string) *Client {
	return NewWithTimeout(endpoint, DefaultTimeout)
}

// NewWithTimeout creates a Client with a custom HTTP timeout.
func NewWithTimeout(endpoint string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: timeout},
	}
}

type request struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
	ID      int         `json:"id"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
	ID      int             `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// RPCError is returned when the daemon responds with a JSON-RPC error.
type RPCError struct {
	Code    int
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("daemon rpc error %d: %s", e.Code, e.Message)
}

// Call invokes method with params and unmarshals the result into result
// (ignored if nil).
func (c *Client) Call(ctx context.Context, method string, params, result interface{}) error {
	req := request{JSONRPC: "2.0", Method: method, Params: params, ID: 1}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var rpcResp response
	if err := json.Unmarshal(data, &rpcResp); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if rpcResp.Error != nil {
		return &RPCError{Code: rpcResp.Error.Code, Message: rpcResp.Error.Message}
	}
	if result != nil && rpcResp.Result != nil {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return fmt.Errorf("decode result: %w", err)
		}
	}
	return nil
}

// DaemonHeight returns the daemon's current chain height, satisfying
// internal/prefetch.Source.
func (c *Client) DaemonHeight(ctx context.Context) (types.Height, error) {
	var height uint32
	if err := c.Call(ctx, "blockchain.height", nil, &height); err != nil {
		return 0, err
	}
	return types.Height(height), nil
}

// BlockHashAt returns the hash of the block the daemon has at height,
// satisfying internal/block.HeaderSource.
func (c *Client) BlockHashAt(ctx context.Context, height types.Height) (types.Hash, error) {
	var hexHash string
	if err := c.Call(ctx, "blockchain.block.hash", []interface{}{uint32(height)}, &hexHash); err != nil {
		return types.Hash{}, err
	}
	return types.HexToHash(hexHash)
}

// BlocksFrom returns up to count raw blocks starting at fromHeight,
// satisfying internal/prefetch.Source.
func (c *Client) BlocksFrom(ctx context.Context, fromHeight types.Height, count int) ([]*wire.Block, error) {
	var blocks []*wire.Block
	if err := c.Call(ctx, "blockchain.block.range", []interface{}{uint32(fromHeight), count}, &blocks); err != nil {
		return nil, err
	}
	return blocks, nil
}

// MempoolHashes returns the transaction hashes currently in the daemon's
// mempool, satisfying internal/mempool.Source.
func (c *Client) MempoolHashes(ctx context.Context) ([]types.Hash, error) {
	var hexHashes []string
	if err := c.Call(ctx, "blockchain.mempool.hashes", nil, &hexHashes); err != nil {
		return nil, err
	}
	hashes := make([]types.Hash, len(hexHashes))
	for i, h := range hexHashes {
		hash, err := types.HexToHash(h)
		if err != nil {
			return nil, fmt.Errorf("mempool hash %d: %w", i, err)
		}
		hashes[i] = hash
	}
	return hashes, nil
}

// MempoolTransaction fetches one unconfirmed transaction by hash,
// satisfying internal/mempool.Source.
func (c *Client) MempoolTransaction(ctx context.Context, txHash types.Hash) (*wire.Transaction, error) {
	var tx wire.Transaction
	if err := c.Call(ctx, "blockchain.transaction.get", []interface{}{txHash.String()}, &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}
