// Package httputil provides the HTTP plumbing shared by the raffle API and its
// outbound collaborator clients.
package httputil

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ServiceClient calls a collaborator service, attaching a signed service
// token to every request.
type ServiceClient struct {
	httpClient *http.Client
	signer     *TokenSigner
	baseURL    string
	maxRetries int
}

// ServiceClientConfig configures a ServiceClient. Secret and ServiceID are
// both required for requests to carry a service token.
type ServiceClientConfig struct {
	Secret     string
	ServiceID  string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
}

func NewServiceClient(cfg ServiceClientConfig) *ServiceClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 2
	}

	var signer *TokenSigner
	if cfg.Secret != "" && cfg.ServiceID != "" {
		signer = NewTokenSigner([]byte(cfg.Secret), cfg.ServiceID, time.Hour)
	}

	return &ServiceClient{
		httpClient: &http.Client{Timeout: timeout},
		signer:     signer,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		maxRetries: maxRetries,
	}
}

// Do sends a JSON request. Responses of 401 and 503 are retried up to
// MaxRetries times with a fresh token.
func (c *ServiceClient) Do(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	for attempt := 0; ; attempt++ {
		resp, err := c.send(ctx, method, path, payload)
		if err != nil {
			return nil, err
		}
		retryable := resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusServiceUnavailable
		if !retryable || attempt >= c.maxRetries {
			return resp, nil
		}
		resp.Body.Close()
	}
}

func (c *ServiceClient) send(ctx context.Context, method, path string, payload []byte) (*http.Response, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.signer != nil {
		token, err := c.signer.Sign()
		if err != nil {
			return nil, fmt.Errorf("failed to sign service token: %w", err)
		}
		req.Header.Set(ServiceTokenHeader, token)
	}
	if id := RequestIDFromContext(ctx); id != "" {
		req.Header.Set(RequestIDHeader, id)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

func (c *ServiceClient) Get(ctx context.Context, path string) (*http.Response, error) {
	return c.Do(ctx, http.MethodGet, path, nil)
}

func (c *ServiceClient) Post(ctx context.Context, path string, body interface{}) (*http.Response, error) {
	return c.Do(ctx, http.MethodPost, path, body)
}

// StatusError is returned by DecodeResponse for non-2xx responses.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request failed with status %d: %s", e.Status, e.Body)
}

// IsStatus reports whether err is a StatusError carrying status.
func IsStatus(err error, status int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == status
}

const (
	maxErrorBody    = 64 << 10
	maxResponseBody = 8 << 20
)

// DecodeResponse closes resp and decodes its JSON body into target, which may
// be nil to discard the body.
func DecodeResponse(resp *http.Response, target interface{}) error {
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody+1))
		if err != nil {
			return fmt.Errorf("read error response body: %w", err)
		}
		msg := strings.TrimSpace(string(body))
		if len(body) > maxErrorBody {
			msg = strings.TrimSpace(string(body[:maxErrorBody])) + "...(truncated)"
		}
		return &StatusError{Status: resp.StatusCode, Body: msg}
	}

	if target == nil {
		if _, err := io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBody)); err != nil {
			return fmt.Errorf("discard response body: %w", err)
		}
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody+1))
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}
	if len(body) > maxResponseBody {
		return fmt.Errorf("response body exceeds %d bytes", maxResponseBody)
	}
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
