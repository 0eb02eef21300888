package raffles

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/R3E-Network/raffle_layer/internal/httputil"
	"github.com/R3E-Network/raffle_layer/internal/raffle"
)

// AccountsClient answers account-state questions from the chain indexer. It
// implements raffle.AccountQuerier.
type AccountsClient struct {
	client *httputil.ServiceClient
}

func NewAccountsClient(baseURL, secret string, timeout time.Duration) *AccountsClient {
	return &AccountsClient{client: httputil.NewServiceClient(httputil.ServiceClientConfig{
		Secret:    secret,
		ServiceID: "raffled",
		BaseURL:   baseURL,
		Timeout:   timeout,
	})}
}

type amountResponse struct {
	Amount raffle.Amount `json:"amount"`
}

// lookup fetches /v1/accounts/{holder}/{kind}/{key}. A 404 reads as zero.
func (c *AccountsClient) lookup(ctx context.Context, holder raffle.Identity, kind, key string) (raffle.Amount, error) {
	path := fmt.Sprintf("/v1/accounts/%s/%s/%s",
		url.PathEscape(string(holder)), kind, url.PathEscape(key))
	resp, err := c.client.Get(ctx, path)
	if err != nil {
		return raffle.Amount{}, err
	}
	var out amountResponse
	if err := httputil.DecodeResponse(resp, &out); err != nil {
		if httputil.IsStatus(err, http.StatusNotFound) {
			return raffle.NewAmount(0), nil
		}
		return raffle.Amount{}, fmt.Errorf("%s %s of %s: %w", kind, key, holder, err)
	}
	return out.Amount, nil
}

func (c *AccountsClient) Balance(ctx context.Context, holder raffle.Identity, denom string) (raffle.Amount, error) {
	return c.lookup(ctx, holder, "balances", denom)
}

func (c *AccountsClient) TokenBalance(ctx context.Context, holder raffle.Identity, token string) (raffle.Amount, error) {
	return c.lookup(ctx, holder, "tokens", token)
}

func (c *AccountsClient) NFTCount(ctx context.Context, holder raffle.Identity, collection string) (raffle.Amount, error) {
	return c.lookup(ctx, holder, "nfts", collection)
}

func (c *AccountsClient) VotingPower(ctx context.Context, holder raffle.Identity, dao string) (raffle.Amount, error) {
	return c.lookup(ctx, holder, "voting-power", dao)
}

func (c *AccountsClient) Staked(ctx context.Context, holder raffle.Identity, denom string) (raffle.Amount, error) {
	return c.lookup(ctx, holder, "staked", denom)
}
