package raffles

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/raffle_layer/internal/chain"
	"github.com/R3E-Network/raffle_layer/internal/httputil"
	"github.com/R3E-Network/raffle_layer/internal/raffle"
)

func TestVRFClientSubmitsJob(t *testing.T) {
	after := t0.Add(time.Hour)
	var got vrfJob
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/jobs" || r.Method != http.MethodPost {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if _, err := httputil.VerifyServiceToken([]byte("vrf-secret"), r.Header.Get(httputil.ServiceTokenHeader)); err != nil {
			t.Errorf("service token: %v", err)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	client := NewVRFClient(VRFClientConfig{
		URL:      server.URL,
		Secret:   "vrf-secret",
		Callback: "https://raffles.example.org/v1/raffles/{id}/randomness",
	})
	err := client.RequestRandomness(context.Background(), raffle.RandomnessRequest{
		RaffleID: 4,
		JobID:    "raffle-4",
		After:    after,
		Fee:      raffle.NewCoin(1, "ustars"),
	})
	require.NoError(t, err)
	assert.Equal(t, "raffle-4", got.JobID)
	assert.True(t, got.After.Equal(after))
	assert.Equal(t, "https://raffles.example.org/v1/raffles/4/randomness", got.Callback)
}

func TestVRFClientReportsRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "fee too low", http.StatusPaymentRequired)
	}))
	defer server.Close()

	err := NewVRFClient(VRFClientConfig{URL: server.URL}).RequestRandomness(context.Background(), raffle.RandomnessRequest{JobID: "raffle-1"})
	require.Error(t, err)
	assert.True(t, httputil.IsStatus(err, http.StatusPaymentRequired))
}

func TestAccountsClient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/accounts/alice/nfts/punks":
			httputil.WriteJSON(w, http.StatusOK, map[string]string{"amount": "3"})
		case "/v1/accounts/alice/balances/ustars":
			httputil.WriteJSON(w, http.StatusOK, map[string]string{"amount": "1000000"})
		case "/v1/accounts/bob/nfts/punks":
			http.NotFound(w, r)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer server.Close()

	client := NewAccountsClient(server.URL, "", time.Second)
	ctx := context.Background()

	n, err := client.NFTCount(ctx, "alice", "punks")
	require.NoError(t, err)
	assert.Equal(t, "3", n.String())

	bal, err := client.Balance(ctx, "alice", "ustars")
	require.NoError(t, err)
	assert.Equal(t, "1000000", bal.String())

	n, err = client.NFTCount(ctx, "bob", "punks")
	require.NoError(t, err)
	assert.True(t, n.IsZero())

	_, err = client.Staked(ctx, "alice", "ustars")
	assert.Error(t, err)

	// gating through the engine treats the failure as unmet
	cond := raffle.AdvantageCondition{Kind: raffle.ConditionNFT, Address: "punks", Min: raffle.NewAmount(2)}
	assert.True(t, cond.Satisfied(ctx, client, "alice"))
	assert.False(t, cond.Satisfied(ctx, client, "bob"))
}

type stubNode struct {
	nep17 map[util.Uint160]*big.Int
	nep11 map[util.Uint160]*big.Int
}

func (s stubNode) NEP17Balance(_ context.Context, _, asset util.Uint160) (*big.Int, error) {
	if n, ok := s.nep17[asset]; ok {
		return n, nil
	}
	return new(big.Int), nil
}

func (s stubNode) NEP11Count(_ context.Context, _, collection util.Uint160) (*big.Int, error) {
	if n, ok := s.nep11[collection]; ok {
		return n, nil
	}
	return new(big.Int), nil
}

func TestNodeQuerier(t *testing.T) {
	gas := util.Uint160{0xd2}
	punks := util.Uint160{0x07}
	node := stubNode{
		nep17: map[util.Uint160]*big.Int{gas: big.NewInt(500)},
		nep11: map[util.Uint160]*big.Int{punks: big.NewInt(2)},
	}
	holder, err := chain.NewAddress()
	require.NoError(t, err)

	q, err := NewNodeQuerier(node, map[string]string{"gas": "0x" + gas.StringLE()}, nil)
	require.NoError(t, err)
	ctx := context.Background()
	id := raffle.Identity(holder)

	bal, err := q.Balance(ctx, id, "gas")
	require.NoError(t, err)
	assert.Equal(t, "500", bal.String())

	_, err = q.Balance(ctx, id, "neo")
	assert.Error(t, err)

	n, err := q.NFTCount(ctx, id, "0x"+punks.StringLE())
	require.NoError(t, err)
	assert.Equal(t, "2", n.String())

	vp, err := q.VotingPower(ctx, id, "0x"+gas.StringLE())
	require.NoError(t, err)
	assert.Equal(t, "500", vp.String())

	_, err = q.Staked(ctx, id, "gas")
	assert.Error(t, err)

	_, err = q.TokenBalance(ctx, "not-an-address", "0x"+gas.StringLE())
	assert.Error(t, err)

	_, err = NewNodeQuerier(node, map[string]string{"bad": "zz"}, nil)
	assert.Error(t, err)
}
