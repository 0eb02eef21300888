package raffles

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/R3E-Network/raffle_layer/internal/httputil"
	"github.com/R3E-Network/raffle_layer/internal/raffle"
)

// VRFClient submits randomness jobs to the VRF oracle service. The oracle
// answers later by calling the randomness endpoint of the raffle API as the
// configured oracle identity.
type VRFClient struct {
	client   *httputil.ServiceClient
	callback string
}

// VRFClientConfig configures a VRFClient. Callback is the URL template the
// oracle posts the seed to; "{id}" is replaced by the raffle id.
type VRFClientConfig struct {
	URL      string
	Secret   string
	Timeout  time.Duration
	Callback string
}

func NewVRFClient(cfg VRFClientConfig) *VRFClient {
	return &VRFClient{
		client: httputil.NewServiceClient(httputil.ServiceClientConfig{
			Secret:    cfg.Secret,
			ServiceID: "raffled",
			BaseURL:   cfg.URL,
			Timeout:   cfg.Timeout,
		}),
		callback: cfg.Callback,
	}
}

type vrfJob struct {
	JobID    string      `json:"job_id"`
	RaffleID uint64      `json:"raffle_id"`
	After    time.Time   `json:"not_before"`
	Fee      raffle.Coin `json:"fee"`
	Callback string      `json:"callback,omitempty"`
}

// RequestRandomness submits req. The oracle treats job ids idempotently, so
// resubmitting a pending job is harmless.
func (c *VRFClient) RequestRandomness(ctx context.Context, req raffle.RandomnessRequest) error {
	resp, err := c.client.Post(ctx, "/v1/jobs", vrfJob{
		JobID:    req.JobID,
		RaffleID: req.RaffleID,
		After:    req.After,
		Fee:      req.Fee,
		Callback: c.callbackFor(req.RaffleID),
	})
	if err != nil {
		return fmt.Errorf("submit vrf job %s: %w", req.JobID, err)
	}
	if err := httputil.DecodeResponse(resp, nil); err != nil {
		return fmt.Errorf("submit vrf job %s: %w", req.JobID, err)
	}
	return nil
}

func (c *VRFClient) callbackFor(id uint64) string {
	if c.callback == "" {
		return ""
	}
	return strings.ReplaceAll(c.callback, "{id}", strconv.FormatUint(id, 10))
}
