package daemon

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Klingon-tech/klingnet-index/pkg/types"
)

// rpcHandler serves canned JSON-RPC responses keyed by method, for testing
// Client against a real HTTP round trip without a real daemon.
func rpcHandler(t *testing.T, results map[string]interface{}) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string      `json:"method"`
			Params interface{} `json:"params"`
			ID     int         `json:"id"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		result, ok := results[req.Method]
		if !ok {
			w.Write([]byte(`{"jsonrpc":"2.0","error":{"code":-32601,"message":"method not found"},"id":1}`))
			return
		}
		resultBytes, err := json.Marshal(result)
		require.NoError(t, err)
		w.Write([]byte(`{"jsonrpc":"2.0","result":` + string(resultBytes) + `,"id":1}`))
	}
}

func TestDaemonHeight(t *testing.T) {
	srv := httptest.NewServer(rpcHandler(t, map[string]interface{}{
		"blockchain.height": 42,
	}))
	defer srv.Close()

	c := New(srv.URL)
	height, err := c.DaemonHeight(t.Context())
	require.NoError(t, err)
	assert.Equal(t, types.Height(42), height)
}

func TestBlockHashAt(t *testing.T) {
	want := types.Hash{0xAB}
	srv := httptest.NewServer(rpcHandler(t, map[string]interface{}{
		"blockchain.block.hash": want.String(),
	}))
	defer srv.Close()

	c := New(srv.URL)
	got, err := c.BlockHashAt(t.Context(), 10)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestMempoolHashes(t *testing.T) {
	want := []types.Hash{{0x01}, {0x02}}
	srv := httptest.NewServer(rpcHandler(t, map[string]interface{}{
		"blockchain.mempool.hashes": []string{want[0].String(), want[1].String()},
	}))
	defer srv.Close()

	c := New(srv.URL)
	got, err := c.MempoolHashes(t.Context())
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestCallReturnsRPCError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"jsonrpc":"2.0","error":{"code":-1,"message":"boom"},"id":1}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.DaemonHeight(t.Context())
	require.Error(t, err)
	var rpcErr *RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, -1, rpcErr.Code)
}
