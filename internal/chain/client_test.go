package chain

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nspcc-dev/neo-go/pkg/encoding/address"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rpcServer(t *testing.T, results map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		res, ok := results[req.Method]
		if !ok {
			_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32601,"message":"method not found"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":` + res + `}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewClientRequiresURL(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Fatal("expected error for empty RPC URL")
	}
}

func TestNEP17Balance(t *testing.T) {
	holder := util.Uint160{1, 2, 3}
	gas := util.Uint160{0xd2, 0xa4}
	srv := rpcServer(t, map[string]string{
		"getnep17balances": `{"address":"` + address.Uint160ToString(holder) + `","balance":[
			{"assethash":"0x` + gas.StringLE() + `","amount":"150000000","lastupdatedblock":7}
		]}`,
	})
	c, err := NewClient(Config{RPCURL: srv.URL})
	require.NoError(t, err)

	n, err := c.NEP17Balance(context.Background(), holder, gas)
	require.NoError(t, err)
	assert.Equal(t, "150000000", n.String())

	n, err = c.NEP17Balance(context.Background(), holder, util.Uint160{9})
	require.NoError(t, err)
	assert.Zero(t, n.Sign())
}

func TestNEP11Count(t *testing.T) {
	holder := util.Uint160{1}
	punks := util.Uint160{7, 7}
	srv := rpcServer(t, map[string]string{
		"getnep11balances": `{"address":"` + address.Uint160ToString(holder) + `","balance":[
			{"assethash":"0x` + punks.StringLE() + `","tokens":[
				{"tokenid":"01","amount":"1","lastupdatedblock":3},
				{"tokenid":"02","amount":"1","lastupdatedblock":4}
			]}
		]}`,
	})
	c, err := NewClient(Config{RPCURL: srv.URL})
	require.NoError(t, err)

	n, err := c.NEP11Count(context.Background(), holder, punks)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n.Int64())
}

func TestCallReturnsRPCError(t *testing.T) {
	srv := rpcServer(t, nil)
	c, err := NewClient(Config{RPCURL: srv.URL})
	require.NoError(t, err)

	_, err = c.Call(context.Background(), "getblockcount", nil)
	var rpcErr *RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, int64(-32601), rpcErr.Code)
}
