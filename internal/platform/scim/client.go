// Package scim talks to the external identity provider that owns login
// accounts. The service only flips the active flag on the account tied
// to a user's auth id; account creation and credentials live elsewhere.
package scim

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client issues SCIM PatchOp requests against /Users/{id}.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the HTTP client used for requests.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// NewClient creates a client for the given SCIM base URL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	cl := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(cl)
	}
	return cl
}

type patchOp struct {
	Schemas    []string    `json:"schemas"`
	Operations []operation `json:"Operations"`
}

type operation struct {
	Op    string      `json:"op"`
	Path  string      `json:"path"`
	Value interface{} `json:"value"`
}

// Activate marks the account for the given auth id as active.
func (c *Client) Activate(ctx context.Context, userAuthID string) error {
	return c.setActive(ctx, userAuthID, true)
}

// Deactivate marks the account for the given auth id as inactive.
func (c *Client) Deactivate(ctx context.Context, userAuthID string) error {
	return c.setActive(ctx, userAuthID, false)
}

func (c *Client) setActive(ctx context.Context, userAuthID string, active bool) error {
	if userAuthID == "" {
		return fmt.Errorf("scim: empty user auth id")
	}

	body := patchOp{
		Schemas: []string{"urn:ietf:params:scim:api:messages:2.0:PatchOp"},
		Operations: []operation{
			{Op: "replace", Path: "active", Value: active},
		},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("scim: marshal patch: %w", err)
	}

	url := fmt.Sprintf("%s/Users/%s", c.baseURL, userAuthID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("scim: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/scim+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("scim: patch %s: %w", url, err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("scim: patch %s: status %d: %s", url, resp.StatusCode, string(respBody))
	}
	return nil
}
